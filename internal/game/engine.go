// internal/game/engine.go
//
// Move processor for a single Ghost/Superghost match.
// Responsibilities:
//   - Create matches with a fixed opening turn order.
//   - Validate and apply letters (append/prepend), challenges and word claims.
//   - Resolve challenges under the mode-specific containment rule.
//   - Track state transitions: open → turns ⇄ challenge → finished → rematch.
//
// Notes:
//   - Transitions are pure: no I/O, no clock reads. Dictionary verdicts are
//     computed by the caller and passed in as isWord.
//   - A rejected transition leaves the match untouched.
//   - Letters are stored upper-case; all comparisons are case-insensitive.
package game

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	minStandardWordLength   = 3
	minSuperghostWordLength = 4
)

// MinWordLength is the shortest sequence that can count as a complete word.
func MinWordLength(superghost bool) int {
	if superghost {
		return minSuperghostWordLength
	}
	return minStandardWordLength
}

// NewMatch constructs an open match created by player1.
// Player two moves first once somebody joins.
func NewMatch(id, player1ID string, profile json.RawMessage, private, superghost bool, now time.Time) Match {
	return Match{
		ID:                         id,
		Player1ID:                  player1ID,
		Player1Profile:             profile,
		IsBlockingMoveForPlayerOne: true,
		IsSuperghost:               superghost,
		IsPrivate:                  private,
		CreatedAt:                  now,
		LastMoveAt:                 now,
	}
}

// Join seats player two. Turn order is not changed by joining.
func (m *Match) Join(playerID string, profile json.RawMessage, now time.Time) error {
	if m.Status() != StatusOpen {
		return ErrAlreadyJoined
	}
	if playerID == "" || playerID == m.Player1ID {
		return ErrInvalidMove
	}
	m.Player2ID = playerID
	m.Player2Profile = profile
	m.touch(now)
	return nil
}

// Append adds letter at the end of the fragment.
func (m *Match) Append(playerID, letter string, now time.Time) error {
	return m.addLetter(playerID, letter, false, now)
}

// Prepend adds letter at the start of the fragment.
func (m *Match) Prepend(playerID, letter string, now time.Time) error {
	return m.addLetter(playerID, letter, true, now)
}

func (m *Match) addLetter(playerID, letter string, front bool, now time.Time) error {
	if err := m.requireMover(playerID); err != nil {
		return err
	}
	l, err := NormalizeLetter(letter)
	if err != nil {
		return err
	}
	m.Word = Candidate(m.Word, l, front)
	m.IsBlockingMoveForPlayerOne = !m.IsBlockingMoveForPlayerOne
	m.touch(now)
	return nil
}

// LoseWithWord records that playerID completed a dictionary word and
// therefore loses. Two claims are accepted: the mover names the fragment
// extended by one letter at either end, or the player who just moved
// names the current fragment. isWord must confirm the word either way.
func (m *Match) LoseWithWord(playerID, word string, isWord bool, now time.Time) error {
	if !m.Status().IsTurn() {
		return ErrInvalidMove
	}
	w := strings.ToUpper(strings.TrimSpace(word))
	switch playerID {
	case m.MoverID():
		if !ExtendsByOne(m.Word, w) {
			return ErrInvalidClaim
		}
	case m.BlockedPlayerID():
		if m.Word == "" || w != m.Word {
			return ErrNotYourTurn
		}
	default:
		return ErrNotYourTurn
	}
	if !isWord {
		return ErrInvalidClaim
	}
	m.Word = w
	m.finish(playerID != m.Player1ID, now)
	return nil
}

// Challenge disputes that the fragment can still become a word.
// The turn flag is left alone; the opponent must now answer.
func (m *Match) Challenge(playerID string, now time.Time) error {
	if err := m.requireMover(playerID); err != nil {
		return err
	}
	if len(m.Word) <= 1 {
		return ErrInvalidMove
	}
	m.Player1Challenges = boolPtr(playerID == m.Player1ID)
	m.touch(now)
	return nil
}

// SubmitWordAfterChallenge answers a challenge with a word. If the word
// is a real word consistent with the fragment the submitter wins,
// otherwise the submitter loses.
func (m *Match) SubmitWordAfterChallenge(playerID, word string, isWord bool, now time.Time) error {
	if err := m.requireChallenged(playerID); err != nil {
		return err
	}
	valid := isWord && Contains(word, m.Word, m.IsSuperghost)
	m.Player1Challenges = nil
	m.finish((playerID == m.Player1ID) == valid, now)
	return nil
}

// YesILiedAfterChallenge concedes a challenge; the challenger wins.
func (m *Match) YesILiedAfterChallenge(playerID string, now time.Time) error {
	if err := m.requireChallenged(playerID); err != nil {
		return err
	}
	challengerIsP1 := *m.Player1Challenges
	m.Player1Challenges = nil
	m.finish(challengerIsP1, now)
	return nil
}

// LinkRematch points a finished match at its successor.
func (m *Match) LinkRematch(newMatchID string) error {
	if newMatchID == "" || newMatchID == m.ID {
		return ErrInvalidMove
	}
	if !m.Status().IsFinished() {
		return ErrInvalidMove
	}
	m.RematchMatchID = newMatchID
	m.Version++
	return nil
}

// Forfeit resolves a timed-out match: whoever the match is waiting on
// loses with the current fragment.
func (m *Match) Forfeit(now time.Time) error {
	loser := m.AwaitedPlayerID()
	if loser == "" {
		return ErrInvalidMove
	}
	m.Player1Challenges = nil
	m.finish(loser != m.Player1ID, now)
	return nil
}

// requireMover checks that the match is in a normal turn and that
// playerID is the one expected to move.
func (m *Match) requireMover(playerID string) error {
	if !m.Status().IsTurn() {
		return ErrInvalidMove
	}
	if playerID != m.MoverID() {
		return ErrNotYourTurn
	}
	return nil
}

func (m *Match) requireChallenged(playerID string) error {
	if !m.Status().IsChallenge() {
		return ErrInvalidMove
	}
	if playerID != m.ChallengedID() {
		return ErrNotYourTurn
	}
	return nil
}

func (m *Match) finish(player1Wins bool, now time.Time) {
	m.Player1Wins = boolPtr(player1Wins)
	m.touch(now)
}

// touch bumps the version and keeps LastMoveAt monotonic.
func (m *Match) touch(now time.Time) {
	if now.After(m.LastMoveAt) {
		m.LastMoveAt = now
	}
	m.Version++
}

// NormalizeLetter validates a single ASCII letter and upper-cases it.
func NormalizeLetter(letter string) (string, error) {
	if len(letter) != 1 || !isAlpha(letter) {
		return "", ErrInvalidLetter
	}
	return strings.ToUpper(letter), nil
}

// Candidate is the fragment that results from adding letter.
func Candidate(word, letter string, front bool) string {
	if front {
		return letter + word
	}
	return word + letter
}

// ExtendsByOne reports whether word is fragment plus exactly one letter
// at either end. Comparison is case-insensitive.
func ExtendsByOne(fragment, word string) bool {
	f, w := strings.ToUpper(fragment), strings.ToUpper(word)
	if len(w) != len(f)+1 || !isAlpha(w) {
		return false
	}
	return strings.HasPrefix(w, f) || strings.HasSuffix(w, f)
}

// Contains applies the challenge containment rule: in superghost the
// fragment may appear anywhere in word, otherwise word must start with
// it. word must be strictly longer than the fragment.
func Contains(word, fragment string, superghost bool) bool {
	w := strings.ToUpper(strings.TrimSpace(word))
	f := strings.ToUpper(fragment)
	if len(w) <= len(f) || !isAlpha(w) {
		return false
	}
	if superghost {
		return strings.Contains(w, f)
	}
	return strings.HasPrefix(w, f)
}

// isAlpha checks that a string consists only of ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return s != ""
}

func boolPtr(b bool) *bool { return &b }
