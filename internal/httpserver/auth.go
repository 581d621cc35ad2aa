package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Tokens issues and verifies HS256 guest tokens. The subject is the
// player id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens builds a token issuer; days <= 0 falls back to 14.
func NewTokens(secret string, days int) *Tokens {
	if days <= 0 {
		days = 14
	}
	return &Tokens{
		secret: []byte(secret),
		ttl:    time.Duration(days) * 24 * time.Hour,
		now:    time.Now,
	}
}

// Issue signs a token for playerID.
func (t *Tokens) Issue(playerID string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   playerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	ss, err := tok.SignedString(t.secret)
	return ss, exp, err
}

// Parse verifies raw and returns its subject.
func (t *Tokens) Parse(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !tok.Valid {
		return "", errUnauthorized
	}
	if claims.Subject == "" {
		return "", errUnauthorized
	}
	return claims.Subject, nil
}

type ctxPlayerKey struct{}

// playerFrom returns the authenticated player id, or "".
func playerFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxPlayerKey{}).(string)
	return id
}

// withOptionalAuth puts the token subject into the request context when a
// valid token is presented. Invalid tokens are rejected; missing ones are
// fine unless requireAuth is set.
func (s *Server) withOptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			if s.cfg.RequireAuth && r.Method != http.MethodGet {
				writeError(w, r, errUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		id, err := s.tokens.Parse(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxPlayerKey{}, id)))
	})
}

// actor resolves who is acting: the body player id, the token subject, or
// both when they agree.
func actor(r *http.Request, bodyID string) (string, error) {
	tokenID := playerFrom(r.Context())
	switch {
	case tokenID != "" && bodyID != "" && tokenID != bodyID:
		return "", errForbidden
	case tokenID != "":
		return tokenID, nil
	case bodyID != "":
		return bodyID, nil
	}
	return "", errMissingField
}

// bearerToken reads "Authorization: Bearer <token>", or the token query
// parameter used by browser websocket clients.
func bearerToken(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return r.URL.Query().Get("token")
}

type guestRes struct {
	PlayerID  string    `json:"playerId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleGuest mints a player id and a token for it.
func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	id, err := gonanoid.New()
	if err != nil {
		writeError(w, r, err)
		return
	}
	tok, exp, err := s.tokens.Issue(id)
	if err != nil {
		writeError(w, r, fmt.Errorf("sign token: %w", err))
		return
	}
	s.logger.Info().Str("player_id", id).Msg("guest issued")
	_ = json.NewEncoder(w).Encode(guestRes{PlayerID: id, Token: tok, ExpiresAt: exp})
}
