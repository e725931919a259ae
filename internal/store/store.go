// Package store holds the shared match records every seat observes and
// mutates. Implementations provide conditional updates, change
// subscriptions, and server-side disconnect hooks.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/lox/dominoes/internal/game"
)

var (
	ErrNotFound = errors.New("match not found")
	ErrConflict = errors.New("match was modified concurrently")
	ErrExists   = errors.New("match already exists")

	// ErrAborted is returned from an UpdateFunc to leave the record as it was.
	ErrAborted = errors.New("update aborted")

	// ErrRemove is returned from an UpdateFunc to delete the record instead
	// of writing it back.
	ErrRemove = errors.New("remove match")
)

// UpdateFunc mutates a private copy of the current record. Returning an error
// discards the copy. It must not call back into the store.
type UpdateFunc func(m *game.Match) error

// Change is delivered to subscribers after every committed write.
type Change struct {
	MatchID string      `json:"matchId"`
	Match   *game.Match `json:"match,omitempty"`
	Deleted bool        `json:"deleted,omitempty"`
}

// Hook runs against the store when a session's connection drops.
type Hook func(ctx context.Context, s Store) error

// Store is the shared state every seat controller talks to.
type Store interface {
	Get(ctx context.Context, id string) (*game.Match, error)
	Create(ctx context.Context, m *game.Match) error
	// Update applies fn atomically. It returns the committed record, or nil
	// when fn asked for removal.
	Update(ctx context.Context, id string, fn UpdateFunc) (*game.Match, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*game.Match, error)
	// Subscribe delivers the current record and then every later change
	// until ctx is cancelled. Intermediate changes may be coalesced.
	Subscribe(ctx context.Context, id string) (<-chan Change, error)

	OnDisconnect(session, key string, hook Hook)
	CancelDisconnect(session, key string)
	Disconnect(ctx context.Context, session string) error
}

// FindBySeat returns the matches where seatID holds a seat.
func FindBySeat(ctx context.Context, s Store, seatID string) ([]*game.Match, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*game.Match
	for _, m := range all {
		if m.HasSeat(seatID) {
			out = append(out, m)
		}
	}
	return out, nil
}

// hooks is the per-session registry of disconnect hooks.
type hooks struct {
	mu        sync.Mutex
	bySession map[string]map[string]Hook
	order     map[string][]string
}

func newHooks() *hooks {
	return &hooks{
		bySession: make(map[string]map[string]Hook),
		order:     make(map[string][]string),
	}
}

func (h *hooks) OnDisconnect(session, key string, hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bySession[session] == nil {
		h.bySession[session] = make(map[string]Hook)
	}
	if _, ok := h.bySession[session][key]; !ok {
		h.order[session] = append(h.order[session], key)
	}
	h.bySession[session][key] = hook
}

func (h *hooks) CancelDisconnect(session, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.bySession[session], key)
	h.order[session] = slices.DeleteFunc(h.order[session], func(k string) bool { return k == key })
}

// take removes and returns a session's hooks in registration order.
func (h *hooks) take(session string) []Hook {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Hook
	for _, key := range h.order[session] {
		if hook, ok := h.bySession[session][key]; ok {
			out = append(out, hook)
		}
	}
	delete(h.bySession, session)
	delete(h.order, session)
	return out
}

func (h *hooks) run(ctx context.Context, s Store, session string) error {
	var errs []error
	for _, hook := range h.take(session) {
		if err := hook(ctx, s); err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAborted) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("disconnect %s: %w", session, errors.Join(errs...))
	}
	return nil
}

func encodeChange(c Change) ([]byte, error) {
	return json.Marshal(c)
}

func decodeChange(data []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(data, &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	return c, nil
}
