package game

import (
	"bytes"
	"encoding/json"
)

// Delta is the partial state pushed to subscribers. Nil fields mean
// "unchanged"; clients apply non-nil fields over their local copy.
type Delta struct {
	Word                       *string         `json:"word,omitempty"`
	Player1ID                  *string         `json:"player1Id,omitempty"`
	Player2ID                  *string         `json:"player2Id,omitempty"`
	Player1Profile             json.RawMessage `json:"player1profile,omitempty"`
	Player2Profile             json.RawMessage `json:"player2profile,omitempty"`
	IsBlockingMoveForPlayerOne bool            `json:"isBlockingMoveForPlayerOne"`
	Player1Wins                *bool           `json:"player1Wins,omitempty"`
	Player1Challenges          *bool           `json:"player1Challenges,omitempty"`
	RematchGameID              *string         `json:"rematchGameId,omitempty"`
}

// Diff returns the fields of next that differ from prev.
// Diff(Match{}, m) yields the full state of m.
func Diff(prev, next Match) Delta {
	d := Delta{IsBlockingMoveForPlayerOne: next.IsBlockingMoveForPlayerOne}
	if prev.Word != next.Word {
		d.Word = stringPtr(next.Word)
	}
	if prev.Player1ID != next.Player1ID {
		d.Player1ID = stringPtr(next.Player1ID)
	}
	if prev.Player2ID != next.Player2ID {
		d.Player2ID = stringPtr(next.Player2ID)
	}
	if !bytes.Equal(prev.Player1Profile, next.Player1Profile) {
		d.Player1Profile = next.Player1Profile
	}
	if !bytes.Equal(prev.Player2Profile, next.Player2Profile) {
		d.Player2Profile = next.Player2Profile
	}
	if !sameBool(prev.Player1Wins, next.Player1Wins) && next.Player1Wins != nil {
		d.Player1Wins = boolPtr(*next.Player1Wins)
	}
	if !sameBool(prev.Player1Challenges, next.Player1Challenges) && next.Player1Challenges != nil {
		d.Player1Challenges = boolPtr(*next.Player1Challenges)
	}
	if prev.RematchMatchID != next.RematchMatchID && next.RematchMatchID != "" {
		d.RematchGameID = stringPtr(next.RematchMatchID)
	}
	return d
}

func sameBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func stringPtr(s string) *string { return &s }
