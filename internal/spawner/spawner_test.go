package spawner

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/lobby"
	"github.com/lox/dominoes/internal/server"
	"github.com/lox/dominoes/internal/store"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func startServer(t *testing.T) string {
	t.Helper()
	logger := quietLogger()
	clock := quartz.NewMock(t)
	lb := lobby.New(lobby.Options{Store: store.NewMemory(clock), Clock: clock, Seed: 7, Logger: logger})
	srv := server.NewServer("127.0.0.1:0", lb, game.DefaultRooms(), logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
		ts.Close()
	})
	return ts.URL
}

func TestSpawnerPlaysARound(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := NewWithSeed(ctx, startServer(t), quietLogger(), 42)
	bots, err := s.Spawn(BotSpec{
		Strategy: "greedy",
		Room:     "free-1v1",
		Count:    2,
		Address:  "fleet",
		Done:     func(v server.MatchView) bool { return v.RoundWinner != nil },
	})
	require.NoError(t, err)
	require.Len(t, bots, 2)
	assert.Equal(t, "fleet-1", bots[0].Address)
	assert.Equal(t, "fleet-2", bots[1].Address)

	require.NoError(t, s.Wait())
	assert.Equal(t, 0, s.ActiveCount())
	assert.Len(t, s.Bots(), 2)

	a, b := bots[0].Results(), bots[1].Results()
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].ID, b[0].ID, "both bots sat at the same table")
	require.NotNil(t, a[0].RoundWinner)
	assert.NoError(t, bots[0].Err())
}

func TestSpawnerRejectsUnknownStrategy(t *testing.T) {
	s := New(context.Background(), "http://127.0.0.1:1", quietLogger())
	_, err := s.Spawn(BotSpec{Strategy: "chart", Room: "free-1v1"})
	assert.Error(t, err)
	assert.Equal(t, 0, s.ActiveCount())
}

func TestSpawnerStopAll(t *testing.T) {
	s := New(context.Background(), startServer(t), quietLogger())
	bots, err := s.Spawn(BotSpec{Strategy: "random", Room: "free-2v2"})
	require.NoError(t, err)
	assert.Equal(t, "bot-1", bots[0].Address)

	// A lone bot in a 2v2 room waits for players until stopped.
	s.StopAll()
	assert.Equal(t, 0, s.ActiveCount())
	assert.Error(t, bots[0].Err())
	assert.Empty(t, bots[0].Results())
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "bot-3", address("", "bot-3", 4, 2))
	assert.Equal(t, "0xabc", address("0xabc", "bot-1", 1, 0))
	assert.Equal(t, "0xabc-3", address("0xabc", "bot-3", 4, 2))
}
