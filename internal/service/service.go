// internal/service/service.go
//
// Match service: the entry point for every player action.
// Responsibilities:
//   - Create, find, join and delete matches through the registry.
//   - Run dictionary lookups on a snapshot, outside the match lock, then
//     apply the verdict under the lock where every other precondition is
//     re-checked against the current state.
//   - Publish a delta for every accepted change, in commit order.
//   - Book finished matches (winner, loser, streaks) in the stats store.
//
// Notes:
//   - Rejected actions never mutate state and never publish.
//   - Lookup failures surface as game.ErrLookupUnavailable; they are never
//     read as "not a word".

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/robalobadob/superghost/internal/game"
	"github.com/robalobadob/superghost/internal/notify"
	"github.com/robalobadob/superghost/internal/stats"
	"github.com/robalobadob/superghost/internal/store"
	"github.com/robalobadob/superghost/internal/words"
)

var (
	// ErrNotParticipant is returned when a player acts on a match they are not part of.
	ErrNotParticipant = errors.New("player is not part of this match")
	// ErrMatchChanged is returned when the match kept changing while a
	// move was being checked against the dictionary.
	ErrMatchChanged = errors.New("match changed during lookup")
)

const (
	createAttempts = 3
	lookupAttempts = 3
)

// Recorder books finished matches.
type Recorder interface {
	Record(ctx context.Context, r stats.Result) error
}

// Options tunes timeouts and optional rules.
type Options struct {
	MoveTimeout      time.Duration
	OpenMatchTTL     time.Duration
	FinishedMatchTTL time.Duration

	// EnforceWordCompletion makes append/prepend check the candidate
	// fragment and end the match when it completes a word.
	EnforceWordCompletion bool
}

// CreateRequest describes a new match.
type CreateRequest struct {
	PlayerID   string
	Profile    json.RawMessage
	Private    bool
	Superghost bool
}

type Service struct {
	registry  *store.Registry
	validator words.Validator
	publisher notify.Publisher
	recorder  Recorder
	opts      Options
	logger    zerolog.Logger

	now   func() time.Time
	newID func() (string, error)
}

// New wires a service. recorder may be nil.
func New(registry *store.Registry, validator words.Validator, publisher notify.Publisher, recorder Recorder, opts Options, logger zerolog.Logger) *Service {
	if opts.MoveTimeout <= 0 {
		opts.MoveTimeout = 45 * time.Second
	}
	return &Service{
		registry:  registry,
		validator: validator,
		publisher: publisher,
		recorder:  recorder,
		opts:      opts,
		logger:    logger.With().Str("component", "service").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() (string, error) { return gonanoid.New() },
	}
}

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create opens a new match for req.PlayerID.
func (s *Service) Create(ctx context.Context, req CreateRequest) (game.Match, error) {
	if req.PlayerID == "" {
		return game.Match{}, game.ErrInvalidMove
	}
	for i := 0; i < createAttempts; i++ {
		id, err := s.newID()
		if err != nil {
			return game.Match{}, fmt.Errorf("generate match id: %w", err)
		}
		m := game.NewMatch(id, req.PlayerID, req.Profile, req.Private, req.Superghost, s.now())
		if err := s.registry.Create(ctx, m); errors.Is(err, store.ErrDuplicateID) {
			continue
		} else if err != nil {
			return game.Match{}, err
		}
		s.logger.Info().
			Str("match_id", m.ID).
			Str("player_id", req.PlayerID).
			Bool("superghost", req.Superghost).
			Bool("private", req.Private).
			Msg("match created")
		return m, nil
	}
	return game.Match{}, errors.New("could not allocate a match id")
}

// Open returns the oldest joinable match not created by playerID.
func (s *Service) Open(ctx context.Context, playerID string, superghost *bool) (game.Match, error) {
	return s.registry.FindOpen(ctx, playerID, superghost)
}

// Get returns the current state of a match.
func (s *Service) Get(ctx context.Context, id string) (game.Match, error) {
	return s.registry.Get(ctx, id)
}

// Join seats playerID as player two.
func (s *Service) Join(ctx context.Context, id, playerID string, profile json.RawMessage) (game.Match, error) {
	m, _, err := s.apply(ctx, id, "join", func(m *game.Match) error {
		return m.Join(playerID, profile, s.now())
	})
	if err == nil {
		s.logger.Info().Str("match_id", id).Str("player_id", playerID).Msg("match joined")
	}
	return m, err
}

// Append adds letter at the end of the fragment.
func (s *Service) Append(ctx context.Context, id, playerID, letter string) (game.Match, error) {
	return s.addLetter(ctx, id, playerID, letter, false)
}

// Prepend adds letter at the start of the fragment.
func (s *Service) Prepend(ctx context.Context, id, playerID, letter string) (game.Match, error) {
	return s.addLetter(ctx, id, playerID, letter, true)
}

func (s *Service) addLetter(ctx context.Context, id, playerID, letter string, front bool) (game.Match, error) {
	op := "append"
	if front {
		op = "prepend"
	}
	add := func(m *game.Match) error {
		if front {
			return m.Prepend(playerID, letter, s.now())
		}
		return m.Append(playerID, letter, s.now())
	}
	if !s.opts.EnforceWordCompletion {
		m, _, err := s.apply(ctx, id, op, add)
		return m, err
	}

	// The verdict only holds for the fragment it was computed on. When the
	// match moved on in the meantime, look up the new candidate.
	for attempt := 0; attempt < lookupAttempts; attempt++ {
		snap, err := s.registry.Get(ctx, id)
		if err != nil {
			return game.Match{}, err
		}
		probe := snap
		if err := add(&probe); err != nil {
			return game.Match{}, err
		}
		l, _ := game.NormalizeLetter(letter)
		candidate := game.Candidate(snap.Word, l, front)
		isWord, err := s.validator.IsCompleteWord(ctx, candidate, snap.IsSuperghost)
		if err != nil {
			return game.Match{}, s.lookupFailed(id, candidate, err)
		}
		unchanged := func(m *game.Match) error {
			if m.Version != snap.Version {
				return errStale
			}
			return nil
		}

		var m game.Match
		if isWord {
			m, err = s.finishing(ctx, id, op, stats.ReasonWord, candidate, func(m *game.Match) error {
				if err := unchanged(m); err != nil {
					return err
				}
				return m.LoseWithWord(playerID, candidate, true, s.now())
			})
		} else {
			m, _, err = s.apply(ctx, id, op, func(m *game.Match) error {
				if err := unchanged(m); err != nil {
					return err
				}
				return add(m)
			})
		}
		if errors.Is(err, errStale) {
			continue
		}
		return m, err
	}
	return game.Match{}, ErrMatchChanged
}

// LoseWithWord records that playerID completed word with their move.
// The claim is re-validated against the dictionary.
func (s *Service) LoseWithWord(ctx context.Context, id, playerID, word string) (game.Match, error) {
	snap, err := s.registry.Get(ctx, id)
	if err != nil {
		return game.Match{}, err
	}
	probe := snap
	if err := probe.LoseWithWord(playerID, word, true, s.now()); err != nil {
		return game.Match{}, err
	}
	isWord, err := s.validator.IsCompleteWord(ctx, word, snap.IsSuperghost)
	if err != nil {
		return game.Match{}, s.lookupFailed(id, word, err)
	}
	return s.finishing(ctx, id, "loseWithWord", stats.ReasonWord, word, func(m *game.Match) error {
		return m.LoseWithWord(playerID, word, isWord, s.now())
	})
}

// Challenge disputes the current fragment.
func (s *Service) Challenge(ctx context.Context, id, playerID string) (game.Match, error) {
	m, _, err := s.apply(ctx, id, "challenge", func(m *game.Match) error {
		return m.Challenge(playerID, s.now())
	})
	return m, err
}

// SubmitWordAfterChallenge answers a pending challenge with word.
func (s *Service) SubmitWordAfterChallenge(ctx context.Context, id, playerID, word string) (game.Match, error) {
	snap, err := s.registry.Get(ctx, id)
	if err != nil {
		return game.Match{}, err
	}
	probe := snap
	if err := probe.SubmitWordAfterChallenge(playerID, word, false, s.now()); err != nil {
		return game.Match{}, err
	}

	isWord := false
	if game.Contains(word, snap.Word, snap.IsSuperghost) {
		isWord, err = s.validator.IsCompleteWord(ctx, word, snap.IsSuperghost)
		if err != nil {
			return game.Match{}, s.lookupFailed(id, word, err)
		}
	}
	return s.finishing(ctx, id, "submitWordAfterChallenge", stats.ReasonChallenge, word, func(m *game.Match) error {
		return m.SubmitWordAfterChallenge(playerID, word, isWord, s.now())
	})
}

// YesILiedAfterChallenge concedes a pending challenge.
func (s *Service) YesILiedAfterChallenge(ctx context.Context, id, playerID string) (game.Match, error) {
	return s.finishing(ctx, id, "yesILiedAfterChallenge", stats.ReasonConceded, "", func(m *game.Match) error {
		return m.YesILiedAfterChallenge(playerID, s.now())
	})
}

// Rematch links a finished match to its freshly created successor.
func (s *Service) Rematch(ctx context.Context, oldID, newID string) (game.Match, error) {
	next, err := s.registry.Get(ctx, newID)
	if err != nil {
		return game.Match{}, err
	}
	if next.Status() != game.StatusOpen {
		return game.Match{}, game.ErrInvalidMove
	}
	m, _, err := s.apply(ctx, oldID, "rematch", func(m *game.Match) error {
		return m.LinkRematch(newID)
	})
	if err == nil {
		s.logger.Info().Str("match_id", oldID).Str("rematch_id", newID).Msg("rematch linked")
	}
	return m, err
}

// Quit deletes the match; subscribers see it vanish. playerID may be
// empty when the caller is not identified.
func (s *Service) Quit(ctx context.Context, id, playerID string) error {
	if playerID != "" {
		m, err := s.registry.Get(ctx, id)
		if err != nil {
			return err
		}
		if !m.IsParticipant(playerID) {
			return ErrNotParticipant
		}
	}
	_, err := s.registry.Delete(ctx, id, func(last game.Match) {
		s.publisher.Publish(ctx, notify.Event{MatchID: id, Kind: notify.EventDeleted, Reason: notify.ReasonPlayerLeft})
	})
	if err == nil {
		s.logger.Info().Str("match_id", id).Str("player_id", playerID).Msg("match quit")
	}
	return err
}

// Definitions looks word up in the dictionary.
func (s *Service) Definitions(ctx context.Context, word string) ([]words.Definition, error) {
	defs, err := s.validator.Definitions(ctx, word)
	if err != nil {
		return nil, s.lookupFailed("", word, err)
	}
	return defs, nil
}

// apply runs fn under the match lock and publishes the resulting delta
// before the lock is released. It reports whether the match finished.
func (s *Service) apply(ctx context.Context, id, op string, fn func(m *game.Match) error) (game.Match, bool, error) {
	var finished bool
	m, err := s.registry.Update(ctx, id, fn, func(before, after game.Match) {
		finished = !before.Status().IsFinished() && after.Status().IsFinished()
		s.publisher.Publish(ctx, notify.UpdateEvent(before, after))
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("match_id", id).Str("op", op).Msg("action rejected")
		return game.Match{}, false, err
	}
	s.logger.Debug().
		Str("match_id", id).
		Str("op", op).
		Str("word", m.Word).
		Str("status", string(m.Status())).
		Msg("action applied")
	return m, finished, nil
}

// finishing applies an action that may end the match and books the result.
func (s *Service) finishing(ctx context.Context, id, op, reason, word string, fn func(m *game.Match) error) (game.Match, error) {
	m, finished, err := s.apply(ctx, id, op, fn)
	if err != nil {
		return m, err
	}
	if finished {
		s.record(ctx, m, reason, word)
	}
	return m, nil
}

// record books a finished match. Failures are logged, never returned:
// the match outcome already stands.
func (s *Service) record(ctx context.Context, m game.Match, reason, word string) {
	winner := m.WinnerID()
	s.logger.Info().
		Str("match_id", m.ID).
		Str("winner_id", winner).
		Str("reason", reason).
		Str("word", m.Word).
		Msg("match finished")
	if s.recorder == nil {
		return
	}
	if word == "" {
		word = m.Word
	}
	r := stats.Result{
		MatchID:    m.ID,
		WinnerID:   winner,
		LoserID:    m.Opponent(winner),
		Word:       word,
		Superghost: m.IsSuperghost,
		Reason:     reason,
		FinishedAt: m.LastMoveAt,
	}
	if err := s.recorder.Record(context.WithoutCancel(ctx), r); err != nil {
		s.logger.Warn().Err(err).Str("match_id", m.ID).Msg("record result")
	}
}

func (s *Service) lookupFailed(id, word string, err error) error {
	s.logger.Warn().Err(err).Str("match_id", id).Str("word", word).Msg("dictionary lookup failed")
	if errors.Is(err, game.ErrLookupUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", game.ErrLookupUnavailable, err)
}
