package store

import (
	"context"
	"sync"
)

// subscription coalesces changes so a slow reader always ends up with the
// newest record without blocking writers.
type subscription struct {
	mu          sync.Mutex
	pending     *Change
	lastVersion int64
	signal      chan struct{}
	out         chan Change
	done        chan struct{}
}

func newSubscription(ctx context.Context) *subscription {
	s := &subscription{
		signal: make(chan struct{}, 1),
		out:    make(chan Change),
		done:   make(chan struct{}),
	}
	go s.pump(ctx)
	return s
}

// push queues c, replacing anything not yet delivered. Records older than the
// last one seen are ignored.
func (s *subscription) push(c Change) {
	s.mu.Lock()
	if !c.Deleted && c.Match != nil {
		if c.Match.Version < s.lastVersion {
			s.mu.Unlock()
			return
		}
		s.lastVersion = c.Match.Version
	}
	s.pending = &c
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) pump(ctx context.Context) {
	defer close(s.done)
	defer close(s.out)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.signal:
		}
		s.mu.Lock()
		c := s.pending
		s.pending = nil
		s.mu.Unlock()
		if c == nil {
			continue
		}
		select {
		case s.out <- *c:
		case <-ctx.Done():
			return
		}
	}
}
