package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/superghost/internal/game"
	"github.com/robalobadob/superghost/internal/service"
)

var (
	errBadJSON      = errors.New("bad_json")
	errMissingField = errors.New("missing_field")
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("forbidden")
)

// statusFor maps domain errors to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, game.ErrNoOpenMatch):
		return http.StatusNotFound, "no_open_match"
	case errors.Is(err, game.ErrNotYourTurn):
		return http.StatusConflict, "not_your_turn"
	case errors.Is(err, game.ErrAlreadyJoined):
		return http.StatusConflict, "already_joined"
	case errors.Is(err, service.ErrMatchChanged):
		return http.StatusConflict, "match_changed"
	case errors.Is(err, game.ErrInvalidMove):
		return http.StatusConflict, "invalid_move"
	case errors.Is(err, game.ErrInvalidLetter):
		return http.StatusBadRequest, "invalid_letter"
	case errors.Is(err, game.ErrInvalidClaim):
		return http.StatusUnprocessableEntity, "invalid_claim"
	case errors.Is(err, game.ErrLookupUnavailable):
		return http.StatusServiceUnavailable, "lookup_unavailable"
	case errors.Is(err, errForbidden), errors.Is(err, service.ErrNotParticipant):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errBadJSON):
		return http.StatusBadRequest, "bad_json"
	case errors.Is(err, errMissingField):
		return http.StatusBadRequest, "missing_field"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	body := map[string]string{"error": msg}
	if id := requestIDFrom(r.Context()); id != "" && code >= http.StatusInternalServerError {
		body["requestId"] = id
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

// writeID answers with a bare match id.
func writeID(w http.ResponseWriter, id string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, id)
}

// decode reads a JSON body into v. An empty body is accepted when
// optional is set.
func decode(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case optional && errors.Is(err, io.EOF):
		return nil
	}
	return errBadJSON
}

// matchView is the full match state returned by REST endpoints.
type matchView struct {
	ID                         string          `json:"gameId"`
	Status                     game.Status     `json:"status"`
	Player1ID                  string          `json:"player1Id"`
	Player2ID                  string          `json:"player2Id,omitempty"`
	Player1Profile             json.RawMessage `json:"player1profile,omitempty"`
	Player2Profile             json.RawMessage `json:"player2profile,omitempty"`
	Word                       string          `json:"word"`
	IsBlockingMoveForPlayerOne bool            `json:"isBlockingMoveForPlayerOne"`
	Player1Wins                *bool           `json:"player1Wins,omitempty"`
	Player1Challenges          *bool           `json:"player1Challenges,omitempty"`
	RematchGameID              string          `json:"rematchGameId,omitempty"`
	IsSuperghost               bool            `json:"isSuperghost"`
	IsPrivate                  bool            `json:"isPrivate"`
	CreatedAt                  time.Time       `json:"createdAt"`
	LastMoveAt                 time.Time       `json:"lastMoveAt"`
}

func viewOf(m game.Match) matchView {
	return matchView{
		ID:                         m.ID,
		Status:                     m.Status(),
		Player1ID:                  m.Player1ID,
		Player2ID:                  m.Player2ID,
		Player1Profile:             m.Player1Profile,
		Player2Profile:             m.Player2Profile,
		Word:                       m.Word,
		IsBlockingMoveForPlayerOne: m.IsBlockingMoveForPlayerOne,
		Player1Wins:                m.Player1Wins,
		Player1Challenges:          m.Player1Challenges,
		RematchGameID:              m.RematchMatchID,
		IsSuperghost:               m.IsSuperghost,
		IsPrivate:                  m.IsPrivate,
		CreatedAt:                  m.CreatedAt,
		LastMoveAt:                 m.LastMoveAt,
	}
}
