package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/robalobadob/superghost/internal/game"
	"github.com/robalobadob/superghost/internal/notify"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInbound     = 512
	sendBuffer     = 32
	reasonResync   = "resync"
	reasonNotFound = "notFound"
)

// wsClient is one websocket subscriber of a match.
type wsClient struct {
	conn    *websocket.Conn
	send    chan notify.Event
	dropped chan struct{}
	done    chan struct{}
	once    sync.Once
	logger  zerolog.Logger
}

func newWSClient(conn *websocket.Conn, logger zerolog.Logger) *wsClient {
	return &wsClient{
		conn:    conn,
		send:    make(chan notify.Event, sendBuffer),
		dropped: make(chan struct{}),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Deliver queues ev without blocking. A full queue marks the client as
// dropped; it is then closed and must re-fetch the match.
func (c *wsClient) Deliver(ev notify.Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		c.once.Do(func() { close(c.dropped) })
		return false
	}
}

// handleSubscribe upgrades to a websocket and streams deltas for one
// match. The first frame carries the full state.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "gameId")
	if _, err := s.svc.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Str("match_id", id).Msg("websocket upgrade failed")
		return
	}
	log := zerolog.Ctx(r.Context()).With().Str("match_id", id).Logger()
	c := newWSClient(conn, log)

	unsubscribe := s.hub.Subscribe(id, c)
	defer unsubscribe()

	// Read the state after subscribing so no update falls in between.
	m, err := s.svc.Get(r.Context(), id)
	if err != nil {
		c.close(reasonNotFound)
		return
	}

	go c.readLoop()
	c.writeLoop(game.Diff(game.Match{}, m))
	log.Debug().Msg("websocket closed")
}

// readLoop consumes control frames until the peer goes away.
func (c *wsClient) readLoop() {
	defer close(c.done)
	c.conn.SetReadLimit(maxInbound)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug().Err(err).Msg("websocket read")
			}
			return
		}
	}
}

func (c *wsClient) writeLoop(initial game.Delta) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	if err := c.writeDelta(initial); err != nil {
		return
	}
	for {
		select {
		case ev := <-c.send:
			switch ev.Kind {
			case notify.EventDeleted:
				c.close(ev.Reason)
				return
			case notify.EventUpdate:
				if ev.Delta == nil {
					continue
				}
				if err := c.writeDelta(*ev.Delta); err != nil {
					return
				}
			}
		case <-c.dropped:
			c.close(reasonResync)
			return
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeDelta sends d as base64(JSON) in a text frame.
func (c *wsClient) writeDelta(d game.Delta) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	frame := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
	base64.StdEncoding.Encode(frame, b)

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Debug().Err(err).Msg("websocket write")
		}
		return err
	}
	return nil
}

// close sends a close frame carrying reason.
func (c *wsClient) close(reason string) {
	if reason == "" {
		reason = notify.ReasonPlayerLeft
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.conn.Close()
}
