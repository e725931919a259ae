package profile

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/dominoes/internal/game"
)

func finishedMatch() *game.Match {
	m := game.NewMatch("m", game.Room{ID: "cash", Mode: game.Mode2v2, Kind: game.KindCash, Bet: &game.Bet{Amount: 2, Currency: "USDC"}}.WithDefaults())
	m.Players["0xa"] = game.Player{ID: "0xa", Team: "A"}
	m.Players["0xb"] = game.Player{ID: "0xb", Team: "B"}
	m.Players["0xc"] = game.Player{ID: "0xc", Team: "A"}
	m.Players["AI_1"] = game.Player{ID: "AI_1", Team: "B", IsAI: true}
	m.Phase = game.PhaseGameOver
	m.MatchWinner = "A"
	return m
}

func TestResults(t *testing.T) {
	m := finishedMatch()
	assert.Equal(t, []Result{
		{SeatID: "0xa", Won: true, Earnings: 4},
		{SeatID: "0xb", Earnings: -2},
		{SeatID: "0xc", Won: true, Earnings: 4},
	}, Results(m))

	m.MarkDeserted("0xb")
	assert.Len(t, Results(m), 2)

	m.Phase = game.PhasePlaying
	assert.Nil(t, Results(m))
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	_, err := s.Get(ctx, "0xnew")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Record(ctx, Results(finishedMatch())...))
	require.NoError(t, s.Record(ctx, Result{SeatID: "0xa", Earnings: -2}))

	p, err := s.Get(ctx, "0xa")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Wins)
	assert.Equal(t, 1, p.Losses)
	assert.InDelta(t, 2.0, p.Earnings, 0.0001)
	assert.False(t, p.UpdatedAt.IsZero())

	require.NoError(t, s.Record(ctx))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemory())
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Skipf("cannot connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		t.Skipf("postgres ping failed: %v", err)
	}

	s := NewPostgres(pool)
	require.NoError(t, s.Migrate(ctx))
	_, err = pool.Exec(ctx, `DELETE FROM player_profiles WHERE seat_id IN ('0xa', '0xb', '0xc', '0xnew')`)
	require.NoError(t, err)
	testStore(t, s)
}
