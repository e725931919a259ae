package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/dominoes/internal/game"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newRedisStore(t *testing.T) Store {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, "test", quartz.NewMock(t), quietLogger())
}

func newNATSStore(t *testing.T) Store {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	nc, err := nats.Connect(url)
	if err != nil {
		t.Skipf("cannot connect to nats: %v", err)
	}
	t.Cleanup(nc.Close)
	return NewNATS(NewMemory(quartz.NewMock(t)), nc, fmt.Sprintf("test%d", time.Now().UnixNano()), quietLogger())
}

var backends = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store { return NewMemory(quartz.NewMock(t)) },
	"redis":  newRedisStore,
	"nats":   newNATSStore,
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, mk(t))
		})
	}
}

func waitingMatch(id string, seats ...string) *game.Match {
	m := game.NewMatch(id, game.Room{ID: "free-2v2", Mode: game.Mode2v2}.WithDefaults())
	for _, s := range seats {
		m.Players[s] = game.Player{ID: s, IsConnected: true}
	}
	return m
}

func TestCreateAndGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Get(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)

		m := waitingMatch("m1", "0xa")
		require.NoError(t, s.Create(ctx, m))
		assert.Equal(t, int64(1), m.Version)
		require.ErrorIs(t, s.Create(ctx, waitingMatch("m1")), ErrExists)

		got, err := s.Get(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, "m1", got.ID)
		assert.True(t, got.HasSeat("0xa"))
		assert.Equal(t, game.PhaseWaiting, got.Phase)
	})
}

func TestUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, waitingMatch("m1", "0xa")))

		m, err := s.Update(ctx, "m1", func(m *game.Match) error {
			m.Players["0xb"] = game.Player{ID: "0xb", IsConnected: true}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), m.Version)
		assert.Equal(t, 2, m.ActiveCount())

		_, err = s.Update(ctx, "m1", func(m *game.Match) error {
			m.Players["0xc"] = game.Player{ID: "0xc"}
			return ErrAborted
		})
		require.ErrorIs(t, err, ErrAborted)
		got, err := s.Get(ctx, "m1")
		require.NoError(t, err)
		assert.False(t, got.HasSeat("0xc"))
		assert.Equal(t, int64(2), got.Version)

		_, err = s.Update(ctx, "missing", func(*game.Match) error { return nil })
		require.ErrorIs(t, err, ErrNotFound)

		m, err = s.Update(ctx, "m1", func(*game.Match) error { return ErrRemove })
		require.NoError(t, err)
		assert.Nil(t, m)
		_, err = s.Get(ctx, "m1")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestConcurrentAdmissionStaysAtCapacity(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, waitingMatch("m1")))

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			admitted int
			rejected int
		)
		for i := range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := fmt.Sprintf("0x%02d", i)
				_, err := s.Update(ctx, "m1", func(m *game.Match) error {
					if m.ActiveCount() >= m.MaxPlayers {
						return ErrAborted
					}
					m.Players[id] = game.Player{ID: id, IsConnected: true}
					return nil
				})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					admitted++
				} else {
					assert.ErrorIs(t, err, ErrAborted)
					rejected++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 4, admitted)
		assert.Equal(t, 6, rejected)
		got, err := s.Get(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, 4, got.ActiveCount())
	})
}

func next(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func TestSubscribe(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, s.Create(ctx, waitingMatch("m1", "0xa")))

		ch, err := s.Subscribe(ctx, "m1")
		require.NoError(t, err)

		c := next(t, ch)
		require.NotNil(t, c.Match)
		assert.Equal(t, int64(1), c.Match.Version)

		_, err = s.Update(ctx, "m1", func(m *game.Match) error {
			m.SetConnected("0xa", false)
			return nil
		})
		require.NoError(t, err)
		c = next(t, ch)
		require.NotNil(t, c.Match)
		assert.Equal(t, int64(2), c.Match.Version)
		assert.False(t, c.Match.Players["0xa"].IsConnected)

		require.NoError(t, s.Delete(ctx, "m1"))
		c = next(t, ch)
		assert.True(t, c.Deleted)
		assert.Equal(t, "m1", c.MatchID)

		cancel()
		require.Eventually(t, func() bool {
			select {
			case _, ok := <-ch:
				return !ok
			default:
				return false
			}
		}, 5*time.Second, 10*time.Millisecond)
	})
}

func TestDisconnectHooks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, waitingMatch("m1", "0xa", "0xb")))

		markOffline := func(seat string) Hook {
			return func(ctx context.Context, s Store) error {
				_, err := s.Update(ctx, "m1", func(m *game.Match) error {
					m.SetConnected(seat, false)
					return nil
				})
				return err
			}
		}
		s.OnDisconnect("session-a", "m1", markOffline("0xa"))
		s.OnDisconnect("session-b", "m1", markOffline("0xb"))
		s.CancelDisconnect("session-b", "m1")

		require.NoError(t, s.Disconnect(ctx, "session-a"))
		require.NoError(t, s.Disconnect(ctx, "session-b"))
		require.NoError(t, s.Disconnect(ctx, "session-a"))

		got, err := s.Get(ctx, "m1")
		require.NoError(t, err)
		assert.False(t, got.Players["0xa"].IsConnected)
		assert.True(t, got.Players["0xb"].IsConnected)
		assert.Equal(t, int64(2), got.Version)
	})
}

func TestFindBySeatAndList(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, waitingMatch("m1", "0xa")))
		require.NoError(t, s.Create(ctx, waitingMatch("m2", "0xb")))
		require.NoError(t, s.Create(ctx, waitingMatch("m3", "0xa", "0xb")))

		all, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		mine, err := FindBySeat(ctx, s, "0xa")
		require.NoError(t, err)
		var ids []string
		for _, m := range mine {
			ids = append(ids, m.ID)
		}
		assert.ElementsMatch(t, []string{"m1", "m3"}, ids)
	})
}

func TestSubscriptionSkipsStaleVersions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := newSubscription(ctx)

	newer := waitingMatch("m1")
	newer.Version = 5
	older := waitingMatch("m1")
	older.Version = 3

	sub.push(Change{MatchID: "m1", Match: newer})
	sub.push(Change{MatchID: "m1", Match: older})

	c := next(t, sub.out)
	assert.Equal(t, int64(5), c.Match.Version)
}
