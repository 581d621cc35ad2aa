// internal/httpserver/server.go
//
// HTTP server wiring for the Superghost backend.
// Responsibilities:
//   - Router + middleware (CORS, request ids, panic recovery, timeouts, JSON).
//   - Public endpoints: "/", "/health", POST /auth/guest.
//   - Match endpoints (optional auth): /game/* plus the websocket feed.
//   - Lookup endpoints: word definitions and per-player results.
//
// Notes:
//   - The acting player comes from the body or from a bearer token; when
//     both are given they must agree.
//   - The websocket route is mounted outside the request timeout.

package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/robalobadob/superghost/internal/config"
	"github.com/robalobadob/superghost/internal/notify"
	"github.com/robalobadob/superghost/internal/service"
	"github.com/robalobadob/superghost/internal/stats"
)

const recentResults = 20

// StatsReader serves the per-player results page.
type StatsReader interface {
	Stats(ctx context.Context, playerID string) (stats.PlayerStats, error)
	Recent(ctx context.Context, playerID string, limit int) ([]stats.Result, error)
}

// Server bundles the router and its collaborators.
type Server struct {
	r        *chi.Mux
	handler  http.Handler
	svc      *service.Service
	hub      *notify.Hub
	stats    StatsReader
	tokens   *Tokens
	cfg      *config.Config
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg *config.Config, svc *service.Service, hub *notify.Hub, st StatsReader, logger zerolog.Logger) *Server {
	s := &Server{
		r:      chi.NewRouter(),
		svc:    svc,
		hub:    hub,
		stats:  st,
		tokens: NewTokens(cfg.JWTSecret, cfg.JWTExpiresDays),
		cfg:    cfg,
		logger: logger.With().Str("component", "http").Logger(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.ClientOrigins),
	}

	// --- middleware ---
	s.r.Use(chimw.RealIP)
	s.r.Use(requestLogger(s.logger))
	s.r.Use(chimw.Recoverer)

	// --- websocket feed (no request timeout) ---
	s.r.With(s.withOptionalAuth).Get("/v3/game/subscribe/{gameId}", s.handleSubscribe)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(jsonContentType)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"service":"superghost","endpoints":["/health","POST /auth/guest","/game/*","/v3/game/subscribe/{gameId}"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Post("/auth/guest", s.handleGuest)

		r.Get("/words/{word}/definitions", s.handleDefinitions)
		r.Get("/stats/{playerId}", s.handleStats)

		r.Group(func(r chi.Router) {
			r.Use(s.withOptionalAuth)
			s.mountGame(r)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not_found"}`))
		})
	})

	s.handler = newCORS(cfg.ClientOrigins).Handler(s.r)
	return s
}

// Handler is the root handler including CORS.
func (s *Server) Handler() http.Handler { return s.handler }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

func (s *Server) handleDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.svc.Definitions(r.Context(), chi.URLParam(r, "word"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, defs)
}

type statsRes struct {
	stats.PlayerStats
	Recent []stats.Result `json:"recent"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "playerId")
	st, err := s.stats.Stats(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recent, err := s.stats.Recent(r.Context(), id, recentResults)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if recent == nil {
		recent = []stats.Result{}
	}
	writeJSON(w, statsRes{PlayerStats: st, Recent: recent})
}

// originChecker accepts websocket upgrades from the configured origins.
func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		o := r.Header.Get("Origin")
		return o == "" || allowed[o]
	}
}
