package game

// Status derives the match status from stored fields.
// Rules are evaluated in priority order; the first match wins.
func (m *Match) Status() Status {
	switch {
	case m.Player2ID == "":
		return StatusOpen
	case m.RematchMatchID != "":
		return StatusRematch
	case m.Player1Wins != nil:
		if *m.Player1Wins {
			return StatusPlayer1Wins
		}
		return StatusPlayer2Wins
	case m.Player1Challenges != nil:
		if *m.Player1Challenges {
			return StatusPlayer1Challenges
		}
		return StatusPlayer2Challenges
	case m.IsBlockingMoveForPlayerOne:
		return StatusPlayer2Turn
	default:
		return StatusPlayer1Turn
	}
}

// IsTurn reports whether s is a normal turn state.
func (s Status) IsTurn() bool {
	return s == StatusPlayer1Turn || s == StatusPlayer2Turn
}

// IsChallenge reports whether s is a pending challenge state.
func (s Status) IsChallenge() bool {
	return s == StatusPlayer1Challenges || s == StatusPlayer2Challenges
}

// IsFinished reports whether s is a terminal win/loss state.
func (s Status) IsFinished() bool {
	return s == StatusPlayer1Wins || s == StatusPlayer2Wins
}

// BlockedPlayerID is the participant who may not add a letter right now.
func (m *Match) BlockedPlayerID() string {
	if m.IsBlockingMoveForPlayerOne {
		return m.Player1ID
	}
	return m.Player2ID
}

// MoverID is the participant expected to add a letter or challenge.
func (m *Match) MoverID() string {
	if m.IsBlockingMoveForPlayerOne {
		return m.Player2ID
	}
	return m.Player1ID
}

// ChallengerID returns the player who raised the pending challenge, or "".
func (m *Match) ChallengerID() string {
	if m.Player1Challenges == nil {
		return ""
	}
	if *m.Player1Challenges {
		return m.Player1ID
	}
	return m.Player2ID
}

// ChallengedID returns the player who must answer the pending challenge, or "".
func (m *Match) ChallengedID() string {
	if m.Player1Challenges == nil {
		return ""
	}
	return m.Opponent(m.ChallengerID())
}

// AwaitedPlayerID is whoever the match is waiting on, or "" when
// nobody is (open, finished, rematch).
func (m *Match) AwaitedPlayerID() string {
	s := m.Status()
	switch {
	case s.IsTurn():
		return m.MoverID()
	case s.IsChallenge():
		return m.ChallengedID()
	}
	return ""
}

// WinnerID returns the winner of a finished match, or "".
func (m *Match) WinnerID() string {
	if m.Player1Wins == nil {
		return ""
	}
	if *m.Player1Wins {
		return m.Player1ID
	}
	return m.Player2ID
}

// Opponent returns the other participant of playerID, or "" if playerID
// does not take part in the match.
func (m *Match) Opponent(playerID string) string {
	switch playerID {
	case "":
		return ""
	case m.Player1ID:
		return m.Player2ID
	case m.Player2ID:
		return m.Player1ID
	}
	return ""
}

// IsParticipant reports whether playerID is one of the two players.
func (m *Match) IsParticipant(playerID string) bool {
	return playerID != "" && (playerID == m.Player1ID || playerID == m.Player2ID)
}
