package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/superghost/internal/game"
	"github.com/robalobadob/superghost/internal/service"
)

// mountGame registers the match endpoints.
func (s *Server) mountGame(r chi.Router) {
	r.Post("/game/create", s.handleCreate)
	r.Put("/game/open", s.handleOpen)
	r.Post("/game/join", s.handleJoin)
	r.Put("/game/append", s.handleLetter(s.svc.Append))
	r.Put("/game/prepend", s.handleLetter(s.svc.Prepend))
	r.Put("/game/looseWithWord", s.handleWord(s.svc.LoseWithWord))
	r.Put("/game/challenge", s.handlePlayer(s.svc.Challenge))
	r.Put("/game/submitWordAfterChallenge", s.handleWord(s.svc.SubmitWordAfterChallenge))
	r.Put("/game/yesIliedAfterChallenge", s.handlePlayer(s.svc.YesILiedAfterChallenge))
	r.Put("/game/rematchGame", s.handleRematch)
	r.Delete("/game", s.handleQuit)
	r.Get("/game/{gameId}", s.handleGet)
}

type createReq struct {
	Player1ID      string          `json:"player1Id"`
	Player1Profile json.RawMessage `json:"player1profile"`
	IsPrivate      bool            `json:"isPrivate"`
	IsSuperghost   bool            `json:"isSuperghost"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	player, err := actor(r, req.Player1ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Create(r.Context(), service.CreateRequest{
		PlayerID:   player,
		Profile:    req.Player1Profile,
		Private:    req.IsPrivate,
		Superghost: req.IsSuperghost,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeID(w, m.ID)
}

type openReq struct {
	PlayerID     string `json:"playerId"`
	IsSuperghost *bool  `json:"isSuperghost"`
}

// handleOpen finds a joinable match. The caller is optional; when known
// their own matches are skipped.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openReq
	if err := decode(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	player, err := actor(r, req.PlayerID)
	if err != nil && !errors.Is(err, errMissingField) {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Open(r.Context(), player, req.IsSuperghost)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeID(w, m.ID)
}

type joinReq struct {
	GameID        string          `json:"gameId"`
	PlayerID      string          `json:"playerId"`
	PlayerProfile json.RawMessage `json:"playerProfile"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinReq
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	player, err := actor(r, req.PlayerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.GameID == "" {
		writeError(w, r, errMissingField)
		return
	}
	s.respond(w, r)(s.svc.Join(r.Context(), req.GameID, player, req.PlayerProfile))
}

type letterReq struct {
	Letter   string `json:"letter"`
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

func (s *Server) handleLetter(op func(ctx context.Context, id, playerID, letter string) (game.Match, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req letterReq
		if err := decode(r, &req, false); err != nil {
			writeError(w, r, err)
			return
		}
		player, err := actor(r, req.PlayerID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if req.GameID == "" {
			writeError(w, r, errMissingField)
			return
		}
		s.respond(w, r)(op(r.Context(), req.GameID, player, req.Letter))
	}
}

type wordReq struct {
	Word     string `json:"word"`
	PlayerID string `json:"playerId"`
	GameID   string `json:"gameId"`
}

func (s *Server) handleWord(op func(ctx context.Context, id, playerID, word string) (game.Match, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wordReq
		if err := decode(r, &req, false); err != nil {
			writeError(w, r, err)
			return
		}
		player, err := actor(r, req.PlayerID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if req.GameID == "" || strings.TrimSpace(req.Word) == "" {
			writeError(w, r, errMissingField)
			return
		}
		s.respond(w, r)(op(r.Context(), req.GameID, player, req.Word))
	}
}

type playerReq struct {
	PlayerID string `json:"playerId"`
	GameID   string `json:"gameId"`
}

func (s *Server) handlePlayer(op func(ctx context.Context, id, playerID string) (game.Match, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playerReq
		if err := decode(r, &req, false); err != nil {
			writeError(w, r, err)
			return
		}
		player, err := actor(r, req.PlayerID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if req.GameID == "" {
			writeError(w, r, errMissingField)
			return
		}
		s.respond(w, r)(op(r.Context(), req.GameID, player))
	}
}

type rematchReq struct {
	OldGameID string `json:"oldGameId"`
	NewGameID string `json:"newGameId"`
}

func (s *Server) handleRematch(w http.ResponseWriter, r *http.Request) {
	var req rematchReq
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.OldGameID == "" || req.NewGameID == "" {
		writeError(w, r, errMissingField)
		return
	}
	if p := playerFrom(r.Context()); p != "" {
		old, err := s.svc.Get(r.Context(), req.OldGameID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !old.IsParticipant(p) {
			writeError(w, r, errForbidden)
			return
		}
	}
	s.respond(w, r)(s.svc.Rematch(r.Context(), req.OldGameID, req.NewGameID))
}

// handleQuit deletes a match. The body is the bare JSON string id.
func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	var id string
	if err := decode(r, &id, false); err != nil {
		writeError(w, r, err)
		return
	}
	if id == "" {
		writeError(w, r, errMissingField)
		return
	}
	if err := s.svc.Quit(r.Context(), id, playerFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.svc.Get(r.Context(), chi.URLParam(r, "gameId")))
}

// respond writes the match state or the error of a service call.
func (s *Server) respond(w http.ResponseWriter, r *http.Request) func(game.Match, error) {
	return func(m game.Match, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, viewOf(m))
	}
}
