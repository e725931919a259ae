package store

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/coder/quartz"

	"github.com/lox/dominoes/internal/game"
)

// Memory keeps matches in process. It backs local play and tests, and a
// single-node server.
type Memory struct {
	*hooks

	mu      sync.Mutex
	clock   quartz.Clock
	matches map[string]*game.Match
	subs    map[string]map[*subscription]struct{}
}

// NewMemory creates an empty in-process store.
func NewMemory(clock quartz.Clock) *Memory {
	return &Memory{
		hooks:   newHooks(),
		clock:   clock,
		matches: make(map[string]*game.Match),
		subs:    make(map[string]map[*subscription]struct{}),
	}
}

func (s *Memory) Get(_ context.Context, id string) (*game.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *Memory) Create(_ context.Context, m *game.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; ok {
		return ErrExists
	}
	c := m.Clone()
	c.Version = 1
	c.UpdatedAt = s.clock.Now()
	s.matches[m.ID] = c
	m.Version, m.UpdatedAt = c.Version, c.UpdatedAt
	s.notifyLocked(Change{MatchID: c.ID, Match: c.Clone()})
	return nil
}

func (s *Memory) Update(_ context.Context, id string, fn UpdateFunc) (*game.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, ErrRemove) {
			s.deleteLocked(id)
			return nil, nil
		}
		return nil, err
	}
	next.ID = id
	next.Version = cur.Version + 1
	next.UpdatedAt = s.clock.Now()
	s.matches[id] = next
	s.notifyLocked(Change{MatchID: id, Match: next.Clone()})
	return next.Clone(), nil
}

func (s *Memory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[id]; !ok {
		return ErrNotFound
	}
	s.deleteLocked(id)
	return nil
}

func (s *Memory) List(_ context.Context) ([]*game.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := slices.Collect(maps.Keys(s.matches))
	sort.Strings(ids)
	out := make([]*game.Match, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.matches[id].Clone())
	}
	return out, nil
}

func (s *Memory) Subscribe(ctx context.Context, id string) (<-chan Change, error) {
	sub := newSubscription(ctx)

	s.mu.Lock()
	if s.subs[id] == nil {
		s.subs[id] = make(map[*subscription]struct{})
	}
	s.subs[id][sub] = struct{}{}
	if m, ok := s.matches[id]; ok {
		sub.push(Change{MatchID: id, Match: m.Clone()})
	}
	s.mu.Unlock()

	go func() {
		<-sub.done
		s.mu.Lock()
		delete(s.subs[id], sub)
		if len(s.subs[id]) == 0 {
			delete(s.subs, id)
		}
		s.mu.Unlock()
	}()
	return sub.out, nil
}

func (s *Memory) Disconnect(ctx context.Context, session string) error {
	return s.run(ctx, s, session)
}

func (s *Memory) deleteLocked(id string) {
	delete(s.matches, id)
	s.notifyLocked(Change{MatchID: id, Deleted: true})
}

func (s *Memory) notifyLocked(c Change) {
	for sub := range s.subs[c.MatchID] {
		if c.Match != nil {
			sub.push(Change{MatchID: c.MatchID, Match: c.Match.Clone()})
			continue
		}
		sub.push(c)
	}
}
