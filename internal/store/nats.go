package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/lox/dominoes/internal/game"
)

// NATS decorates a Store so committed writes are also announced on NATS.
// Subscribers listen on NATS instead of the backing store, which lets nodes
// share one Redis while fanning changes out over an existing NATS cluster.
type NATS struct {
	Store

	nc     *nats.Conn
	prefix string
	hooks  *hooks
	logger *log.Logger
}

// NewNATS wraps inner. prefix is the subject root, "dominoes" by default.
func NewNATS(inner Store, nc *nats.Conn, prefix string, logger *log.Logger) *NATS {
	if prefix == "" {
		prefix = "dominoes"
	}
	return &NATS{
		Store:  inner,
		nc:     nc,
		prefix: prefix,
		hooks:  newHooks(),
		logger: logger.WithPrefix("nats"),
	}
}

// Subject returns the subject changes to a match are published on.
func (s *NATS) Subject(id string) string {
	return fmt.Sprintf("%s.match.%s", s.prefix, id)
}

func (s *NATS) Create(ctx context.Context, m *game.Match) error {
	if err := s.Store.Create(ctx, m); err != nil {
		return err
	}
	s.publish(Change{MatchID: m.ID, Match: m})
	return nil
}

func (s *NATS) Update(ctx context.Context, id string, fn UpdateFunc) (*game.Match, error) {
	m, err := s.Store.Update(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	if m == nil {
		s.publish(Change{MatchID: id, Deleted: true})
		return nil, nil
	}
	s.publish(Change{MatchID: id, Match: m})
	return m, nil
}

func (s *NATS) Delete(ctx context.Context, id string) error {
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(Change{MatchID: id, Deleted: true})
	return nil
}

func (s *NATS) Subscribe(ctx context.Context, id string) (<-chan Change, error) {
	sub := newSubscription(ctx)
	ns, err := s.nc.Subscribe(s.Subject(id), func(msg *nats.Msg) {
		c, err := decodeChange(msg.Data)
		if err != nil {
			s.logger.Warn("Dropping unreadable change", "match", id, "error", err)
			return
		}
		sub.push(c)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", s.Subject(id), err)
	}
	if m, err := s.Store.Get(ctx, id); err == nil {
		sub.push(Change{MatchID: id, Match: m})
	} else if !errors.Is(err, ErrNotFound) {
		_ = ns.Unsubscribe()
		return nil, err
	}
	go func() {
		<-sub.done
		if err := ns.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			s.logger.Debug("Unsubscribe failed", "match", id, "error", err)
		}
	}()
	return sub.out, nil
}

func (s *NATS) OnDisconnect(session, key string, hook Hook) {
	s.hooks.OnDisconnect(session, key, hook)
}

func (s *NATS) CancelDisconnect(session, key string) {
	s.hooks.CancelDisconnect(session, key)
}

// Disconnect runs hooks against the decorated store so their writes are
// announced too.
func (s *NATS) Disconnect(ctx context.Context, session string) error {
	return s.hooks.run(ctx, s, session)
}

func (s *NATS) publish(c Change) {
	data, err := encodeChange(c)
	if err == nil {
		err = s.nc.Publish(s.Subject(c.MatchID), data)
	}
	if err != nil {
		s.logger.Warn("Failed to publish change", "match", c.MatchID, "error", err)
	}
}
