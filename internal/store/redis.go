package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"

	"github.com/lox/dominoes/internal/game"
)

const maxTxRetries = 16

// Redis stores matches as JSON documents. Updates run under WATCH so
// concurrent writers on different nodes retry instead of clobbering each
// other, and every commit is published on a per-match channel.
type Redis struct {
	*hooks

	client *redis.Client
	prefix string
	clock  quartz.Clock
	logger *log.Logger
}

// NewRedis wraps a connected client. prefix namespaces every key.
func NewRedis(client *redis.Client, prefix string, clock quartz.Clock, logger *log.Logger) *Redis {
	if prefix == "" {
		prefix = "dominoes"
	}
	return &Redis{
		hooks:  newHooks(),
		client: client,
		prefix: prefix,
		clock:  clock,
		logger: logger.WithPrefix("store"),
	}
}

func (s *Redis) matchKey(id string) string { return fmt.Sprintf("%s:match:%s", s.prefix, id) }
func (s *Redis) indexKey() string          { return s.prefix + ":matches" }
func (s *Redis) channel(id string) string  { return fmt.Sprintf("%s:changes:%s", s.prefix, id) }

func (s *Redis) Get(ctx context.Context, id string) (*game.Match, error) {
	data, err := s.client.Get(ctx, s.matchKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match %s: %w", id, err)
	}
	return decodeMatch(data)
}

func (s *Redis) Create(ctx context.Context, m *game.Match) error {
	c := m.Clone()
	c.Version = 1
	c.UpdatedAt = s.clock.Now()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode match: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.matchKey(c.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create match %s: %w", c.ID, err)
	}
	if !ok {
		return ErrExists
	}
	if err := s.client.SAdd(ctx, s.indexKey(), c.ID).Err(); err != nil {
		return fmt.Errorf("index match %s: %w", c.ID, err)
	}
	m.Version, m.UpdatedAt = c.Version, c.UpdatedAt
	s.publish(ctx, s.client, Change{MatchID: c.ID, Match: c})
	return nil
}

func (s *Redis) Update(ctx context.Context, id string, fn UpdateFunc) (*game.Match, error) {
	key := s.matchKey(id)
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		var committed *game.Match
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			m, err := decodeMatch(data)
			if err != nil {
				return err
			}
			version := m.Version

			if err := fn(m); err != nil {
				if !errors.Is(err, ErrRemove) {
					return err
				}
				_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					pipe.SRem(ctx, s.indexKey(), id)
					return s.queuePublish(ctx, pipe, Change{MatchID: id, Deleted: true})
				})
				return err
			}

			m.ID = id
			m.Version = version + 1
			m.UpdatedAt = s.clock.Now()
			out, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("encode match: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, out, 0)
				return s.queuePublish(ctx, pipe, Change{MatchID: id, Match: m})
			})
			if err == nil {
				committed = m
			}
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("Retrying contended update", "match", id, "attempt", attempt+1)
			continue
		}
		return committed, err
	}
	return nil, ErrConflict
}

func (s *Redis) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.matchKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete match %s: %w", id, err)
	}
	s.client.SRem(ctx, s.indexKey(), id)
	if n == 0 {
		return ErrNotFound
	}
	s.publish(ctx, s.client, Change{MatchID: id, Deleted: true})
	return nil
}

func (s *Redis) List(ctx context.Context) ([]*game.Match, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.matchKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	out := make([]*game.Match, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			s.client.SRem(ctx, s.indexKey(), ids[i])
			continue
		}
		m, err := decodeMatch([]byte(str))
		if err != nil {
			s.logger.Warn("Skipping unreadable match", "match", ids[i], "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Redis) Subscribe(ctx context.Context, id string) (<-chan Change, error) {
	ps := s.client.Subscribe(ctx, s.channel(id))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe match %s: %w", id, err)
	}

	sub := newSubscription(ctx)
	if m, err := s.Get(ctx, id); err == nil {
		sub.push(Change{MatchID: id, Match: m})
	} else if !errors.Is(err, ErrNotFound) {
		ps.Close()
		return nil, err
	}

	go func() {
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-sub.done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c, err := decodeChange([]byte(msg.Payload))
				if err != nil {
					s.logger.Warn("Dropping unreadable change", "match", id, "error", err)
					continue
				}
				sub.push(c)
			}
		}
	}()
	return sub.out, nil
}

func (s *Redis) Disconnect(ctx context.Context, session string) error {
	return s.run(ctx, s, session)
}

func (s *Redis) queuePublish(ctx context.Context, pipe redis.Pipeliner, c Change) error {
	data, err := encodeChange(c)
	if err != nil {
		return err
	}
	pipe.Publish(ctx, s.channel(c.MatchID), data)
	return nil
}

func (s *Redis) publish(ctx context.Context, client *redis.Client, c Change) {
	data, err := encodeChange(c)
	if err == nil {
		err = client.Publish(ctx, s.channel(c.MatchID), data).Err()
	}
	if err != nil {
		s.logger.Warn("Failed to publish change", "match", c.MatchID, "error", err)
	}
}

func decodeMatch(data []byte) (*game.Match, error) {
	var m game.Match
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}
	return &m, nil
}
