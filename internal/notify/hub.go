// Package notify fans match state changes out to connected clients.
//
// Delivery is best effort to whoever is subscribed at publish time. There
// is no replay: a client that reconnects must re-fetch the match.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/robalobadob/superghost/internal/game"
)

// EventKind distinguishes state updates from match removal.
type EventKind string

const (
	EventUpdate  EventKind = "update"
	EventDeleted EventKind = "deleted"
)

// Reasons carried by EventDeleted.
const (
	ReasonPlayerLeft = "playerLeft"
	ReasonExpired    = "expired"
)

// Event is one change to a match.
type Event struct {
	MatchID string      `json:"matchId"`
	Kind    EventKind   `json:"kind"`
	Delta   *game.Delta `json:"delta,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// Publisher accepts events for fan-out. Publish must not block: it is
// called while the match lock is held so that events keep their order.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Subscriber receives events for one match. Deliver must not block and
// returns false if the subscriber can no longer keep up.
type Subscriber interface {
	Deliver(ev Event) bool
}

// Hub keeps the local subscribers of every match.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[Subscriber]struct{}
	logger zerolog.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[Subscriber]struct{}),
		logger: logger.With().Str("component", "hub").Logger(),
	}
}

// Subscribe registers s for matchID and returns a function that removes it.
func (h *Hub) Subscribe(matchID string, s Subscriber) (unsubscribe func()) {
	h.mu.Lock()
	set, ok := h.subs[matchID]
	if !ok {
		set = make(map[Subscriber]struct{})
		h.subs[matchID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug().Str("match_id", matchID).Msg("subscribed")
	var once sync.Once
	return func() {
		once.Do(func() { h.remove(matchID, s) })
	}
}

// Publish delivers ev to every local subscriber of ev.MatchID. Subscribers
// that cannot keep up are dropped. A deleted event drops everyone.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subs[ev.MatchID]))
	for s := range h.subs[ev.MatchID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if !s.Deliver(ev) {
			h.logger.Warn().Str("match_id", ev.MatchID).Msg("dropping slow subscriber")
			h.remove(ev.MatchID, s)
		}
	}
	if ev.Kind == EventDeleted {
		h.mu.Lock()
		delete(h.subs, ev.MatchID)
		h.mu.Unlock()
	}
}

// Subscribers reports how many local subscribers matchID has.
func (h *Hub) Subscribers(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[matchID])
}

func (h *Hub) remove(matchID string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[matchID]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, matchID)
	}
}

// UpdateEvent builds the event for a committed transition.
func UpdateEvent(before, after game.Match) Event {
	d := game.Diff(before, after)
	return Event{MatchID: after.ID, Kind: EventUpdate, Delta: &d}
}
