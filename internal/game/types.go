// internal/game/types.go
//
// Core type definitions for the Ghost/Superghost match engine.
// Defines:
//   - Status: derived state of a match (never stored).
//   - Match: authoritative per-match data.
//   - Sentinel errors returned by transitions and the registry.

package game

import (
	"encoding/json"
	"errors"
	"time"
)

// Status is the derived state of a match.
// Values are part of the wire contract and must not be renamed.
type Status string

const (
	StatusOpen              Status = "open"
	StatusPlayer1Turn       Status = "player1Turn"
	StatusPlayer2Turn       Status = "player2Turn"
	StatusPlayer1Wins       Status = "player1Wins"
	StatusPlayer2Wins       Status = "player2Wins"
	StatusRematch           Status = "rematch"
	StatusPlayer1Challenges Status = "player1Challenges"
	StatusPlayer2Challenges Status = "player2Challenges"
)

// Match holds the state of a single duel between two players.
type Match struct {
	ID             string          // Opaque identifier, assigned at creation.
	Player1ID      string          // Creator of the match.
	Player2ID      string          // Empty while the match is open.
	Player1Profile json.RawMessage // Display metadata, opaque to the engine.
	Player2Profile json.RawMessage

	Word string // Accumulated fragment, upper-case ASCII letters.

	// IsBlockingMoveForPlayerOne is true while player one is blocked,
	// i.e. player two is the one expected to move.
	IsBlockingMoveForPlayerOne bool

	Player1Wins       *bool  // Set once the match is finished.
	Player1Challenges *bool  // Set while a challenge is pending.
	RematchMatchID    string // Successor match; immutable once set.

	IsSuperghost bool
	IsPrivate    bool

	CreatedAt  time.Time
	LastMoveAt time.Time

	// Version is bumped on every accepted mutation.
	Version uint64
}

var (
	ErrNotFound          = errors.New("match not found")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrInvalidLetter     = errors.New("invalid letter")
	ErrInvalidClaim      = errors.New("invalid word claim")
	ErrAlreadyJoined     = errors.New("match already joined")
	ErrNoOpenMatch       = errors.New("no open match")
	ErrLookupUnavailable = errors.New("dictionary lookup unavailable")
	ErrInvalidMove       = errors.New("move not allowed in current state")
)
