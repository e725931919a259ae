package lobby

import (
	"context"
	"io"
	"maps"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/dominoes/internal/domino"
	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/profile"
	"github.com/lox/dominoes/internal/settlement"
	"github.com/lox/dominoes/internal/store"
)

const (
	waitTimeout = 2 * time.Second
	waitTick    = 5 * time.Millisecond
)

type harness struct {
	t        *testing.T
	ctx      context.Context
	clock    *quartz.Mock
	store    *store.Memory
	ledger   *settlement.Ledger
	profiles *profile.Memory
	lobby    *Lobby
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := quartz.NewMock(t)
	st := store.NewMemory(clock)
	ledger := settlement.NewLedger()
	profiles := profile.NewMemory()
	l := New(Options{
		Store:      st,
		Settlement: ledger,
		Profiles:   profiles,
		Clock:      clock,
		Seed:       42,
		Logger:     log.NewWithOptions(io.Discard, log.Options{}),
	})
	return &harness{t: t, ctx: ctx, clock: clock, store: st, ledger: ledger, profiles: profiles, lobby: l}
}

func seat(id string) game.Player {
	return game.Player{ID: id, Address: id}
}

func (h *harness) attach(matchID, seatID string) *Seat {
	h.t.Helper()
	s, err := h.lobby.Attach(h.ctx, matchID, seatID, "session-"+seatID, nil)
	require.NoError(h.t, err)
	return s
}

// run drives s in the background until the test ends.
func (h *harness) run(s *Seat) {
	ctx, cancel := context.WithCancel(h.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	h.t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (h *harness) match(id string) *game.Match {
	h.t.Helper()
	m, err := h.store.Get(h.ctx, id)
	require.NoError(h.t, err)
	return m
}

func (h *harness) waitFor(id string, cond func(m *game.Match) bool, msg string) *game.Match {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		m, err := h.store.Get(h.ctx, id)
		return err == nil && cond(m)
	}, waitTimeout, waitTick, msg)
	return h.match(id)
}

func (h *harness) waitPending(s *Seat, timer string) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return s.pending(timer) }, waitTimeout, waitTick, "timer %s never armed", timer)
}

// fire advances the clock to the next timer and checks it was due after want.
func (h *harness) fire(want time.Duration) {
	h.t.Helper()
	d, w := h.clock.AdvanceNext()
	require.Equal(h.t, want, d)
	w.MustWait(h.ctx)
}

// table creates a playing match with known hands. Seats named AI_n are
// fallback seats; every tile not dealt or on the board is in the boneyard.
func (h *harness) table(mode game.Mode, start, current string, hands map[string][]string) *game.Match {
	h.t.Helper()
	room := game.Room{ID: "test", Mode: mode}.WithDefaults()
	m := game.NewMatch("m-test", room)

	ids := slices.Sorted(maps.Keys(hands))
	teams := game.AssignTeams(ids, mode)
	startTile := domino.MustParse(start)
	used := domino.Hand{startTile}
	m.Hands = make(map[string]domino.Hand)
	for _, id := range ids {
		var hand domino.Hand
		for _, s := range hands[id] {
			hand = append(hand, domino.MustParse(s))
		}
		m.Hands[id] = hand
		used = append(used, hand...)
		m.Players[id] = game.Player{ID: id, Address: id, Team: teams[id], IsAI: strings.HasPrefix(id, "AI_")}
		m.TeamScores[teams[id]] = 0
	}
	for _, tile := range domino.StandardSet() {
		if !used.Contains(tile) {
			m.Boneyard = append(m.Boneyard, tile)
		}
	}
	m.Board = domino.Board{{Tile: startTile, Placement: domino.PlaceStart}}
	m.BoardEnds = [2]int{startTile.Left, startTile.Right}
	m.TurnOrder = ids
	m.CurrentSeatID = current
	m.Phase = game.PhasePlaying
	m.Round = 1
	require.NoError(h.t, m.CheckTiles())
	require.NoError(h.t, h.store.Create(h.ctx, m))
	return m
}
