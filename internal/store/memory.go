// internal/store/memory.go
//
// In-memory match registry.
// The registry exclusively owns every game.Match; callers only ever see
// copies and mutate through Update.
//
// Characteristics:
//   - The lookup map is guarded by an RWMutex (concurrent reads, exclusive insert/delete).
//   - Each match has its own mutex; Update on one match never blocks another.
//   - Updates on the same match are linearised: fn always sees the result of
//     the previous accepted update.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/robalobadob/superghost/internal/game"
)

// ErrDuplicateID is returned by Create when the ID is already taken.
var ErrDuplicateID = errors.New("match id already in use")

// CommitFunc runs after an accepted update while the match lock is still
// held, so commits for one match are observed in order. It must not block.
type CommitFunc func(before, after game.Match)

// entry is a single match slot with its own lock.
type entry struct {
	mu      sync.Mutex
	match   game.Match
	deleted bool
}

// Registry holds all live matches keyed by ID.
type Registry struct {
	mu      sync.RWMutex      // guards matches
	matches map[string]*entry // keyed by Match.ID
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{matches: make(map[string]*entry)}
}

// Create inserts a new match. An existing ID is rejected with
// ErrDuplicateID so callers can regenerate.
func (r *Registry) Create(ctx context.Context, m game.Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[m.ID]; ok {
		return ErrDuplicateID
	}
	r.matches[m.ID] = &entry{match: m}
	return nil
}

// Get returns a copy of the match with the given ID.
func (r *Registry) Get(ctx context.Context, id string) (game.Match, error) {
	e, err := r.lookup(id)
	if err != nil {
		return game.Match{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return game.Match{}, game.ErrNotFound
	}
	return e.match, nil
}

// Update applies fn to a copy of the match under the match lock. If fn
// succeeds the copy replaces the stored match and onCommit (optional) is
// called with the previous and new state.
func (r *Registry) Update(ctx context.Context, id string, fn func(m *game.Match) error, onCommit CommitFunc) (game.Match, error) {
	e, err := r.lookup(id)
	if err != nil {
		return game.Match{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return game.Match{}, game.ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return game.Match{}, err
	}

	before := e.match
	next := e.match
	if err := fn(&next); err != nil {
		return before, err
	}
	e.match = next
	if onCommit != nil {
		onCommit(before, next)
	}
	return next, nil
}

// Delete removes a match and returns its last state. onDelete (optional)
// runs under the match lock after removal.
func (r *Registry) Delete(ctx context.Context, id string, onDelete func(last game.Match)) (game.Match, error) {
	return r.DeleteIf(ctx, id, nil, onDelete)
}

// DeleteIf removes the match only when keep reports false for its current
// state. A nil keep always deletes. A kept match yields game.ErrInvalidMove.
func (r *Registry) DeleteIf(ctx context.Context, id string, keep func(m game.Match) bool, onDelete func(last game.Match)) (game.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.matches[id]
	if !ok {
		return game.Match{}, game.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if keep != nil && keep(e.match) {
		return e.match, game.ErrInvalidMove
	}
	delete(r.matches, id)
	e.deleted = true
	if onDelete != nil {
		onDelete(e.match)
	}
	return e.match, nil
}

// FindOpen returns the oldest open, public match not created by
// excluding. If superghost is non-nil only matches of that mode qualify.
func (r *Registry) FindOpen(ctx context.Context, excluding string, superghost *bool) (game.Match, error) {
	candidates := r.Snapshot(ctx)
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	for _, m := range candidates {
		if m.Status() != game.StatusOpen || m.IsPrivate {
			continue
		}
		if excluding != "" && m.Player1ID == excluding {
			continue
		}
		if superghost != nil && m.IsSuperghost != *superghost {
			continue
		}
		return m, nil
	}
	return game.Match{}, game.ErrNoOpenMatch
}

// Snapshot returns copies of all live matches, in no particular order.
func (r *Registry) Snapshot(ctx context.Context) []game.Match {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.matches))
	for _, e := range r.matches {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]game.Match, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			out = append(out, e.match)
		}
		e.mu.Unlock()
	}
	return out
}

// Len reports the number of live matches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.matches[id]; ok {
		return e, nil
	}
	return nil, game.ErrNotFound
}
