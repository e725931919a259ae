package game

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/dominoes/internal/domino"
	"github.com/lox/dominoes/internal/randutil"
)

func TestPlayDoubleOntoMatchingEnd(t *testing.T) {
	m := riggedMatch(t, Mode1v1, map[string]domino.Hand{
		"p1": tiles(t, "5-5", "0-1"),
		"p2": tiles(t, "6-5", "2-3"),
	}, tiles(t, "1-2"), domino.MustParse("6-6"), "p2")

	_, err := m.Play("p2", domino.MustParse("6-5"), domino.PlaceRight)
	require.NoError(t, err)
	assert.Equal(t, [2]int{6, 5}, m.BoardEnds)
	assert.Equal(t, "p1", m.CurrentSeatID)

	_, err = m.Play("p1", domino.MustParse("5-5"), domino.PlaceRight)
	require.NoError(t, err)
	assert.Equal(t, [2]int{6, 5}, m.BoardEnds)
	assert.Len(t, m.Board, 3)
	assert.Equal(t, "p2", m.CurrentSeatID)
	assert.Equal(t, 0, m.ConsecutivePasses)

	left, right, ok := m.Board.Ends()
	require.True(t, ok)
	assert.Equal(t, m.BoardEnds, [2]int{left, right})
}

func TestIllegalMovesLeaveMatchUntouched(t *testing.T) {
	m := riggedMatch(t, Mode1v1, map[string]domino.Hand{
		"p1": tiles(t, "5-5", "0-1"),
		"p2": tiles(t, "6-5", "2-3"),
	}, tiles(t, "1-2"), domino.MustParse("6-6"), "p2")
	before := m.Clone()

	tests := []struct {
		name string
		move func() error
	}{
		{"wrong turn", func() error {
			_, err := m.Play("p1", domino.MustParse("5-5"), domino.PlaceLeft)
			return err
		}},
		{"tile does not match", func() error {
			_, err := m.Play("p2", domino.MustParse("2-3"), domino.PlaceLeft)
			return err
		}},
		{"tile not held", func() error {
			_, err := m.Play("p2", domino.MustParse("6-4"), domino.PlaceLeft)
			return err
		}},
		{"start placement", func() error {
			_, err := m.Play("p2", domino.MustParse("6-5"), domino.PlaceStart)
			return err
		}},
		{"draw with a playable tile", func() error {
			_, err := m.Draw("p2", domino.MustParse("1-2"))
			return err
		}},
		{"pass out of turn", func() error {
			_, err := m.Pass("p1")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.move()
			require.ErrorIs(t, err, ErrIllegalMove)
			var ime *IllegalMoveError
			require.ErrorAs(t, err, &ime)
			assert.NotEmpty(t, ime.Reason)
			assert.Equal(t, before, m)
		})
	}
}

func TestMovesOutsidePlayingPhase(t *testing.T) {
	m := NewMatch("m", Room{ID: "r"}.WithDefaults())
	m.Players["a"] = Player{ID: "a"}

	_, err := m.Play("a", domino.MustParse("1-1"), domino.PlaceLeft)
	assert.ErrorIs(t, err, ErrIllegalMove)
	_, err = m.Pass("a")
	assert.ErrorIs(t, err, ErrIllegalMove)
	_, err = m.NextRound(randutil.New(1))
	assert.ErrorIs(t, err, ErrIllegalMove)
	_, _, err = m.EndRound(MethodBlocked, "")
	assert.ErrorIs(t, err, ErrIllegalMove)
}

func TestEmptyHandBlocksFurtherMoves(t *testing.T) {
	m := riggedMatch(t, Mode1v1, map[string]domino.Hand{
		"p1": tiles(t, "5-1"),
		"p2": tiles(t, "2-3", "4-4"),
	}, tiles(t, "0-0"), domino.MustParse("6-5"), "p1")

	events, err := m.Play("p1", domino.MustParse("5-1"), domino.PlaceRight)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventTypeRoundEndQueued, events[1].EventType())
	assert.Equal(t, &EndRoundRequest{Method: MethodDomino, WinningSeatID: "p1"}, m.EndRoundRequest)
	assert.Equal(t, PhasePlaying, m.Phase)

	_, err = m.Play("p2", domino.MustParse("4-4"), domino.PlaceRight)
	assert.ErrorIs(t, err, ErrIllegalMove)
	_, err = m.Pass("p1")
	assert.ErrorIs(t, err, ErrIllegalMove)

	result, _, ok, err := m.ResolveEndRoundRequest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RoundResult{Team: "A", SeatID: "p1", Score: 13, Method: MethodDomino}, result)
	assert.Equal(t, PhaseRoundOver, m.Phase)
	assert.Nil(t, m.EndRoundRequest)
	assert.Equal(t, 13, m.TeamScores["A"])

	_, _, ok, err = m.ResolveEndRoundRequest()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDrawThenAutoPass(t *testing.T) {
	m := riggedMatch(t, Mode1v1, map[string]domino.Hand{
		"p1": tiles(t, "1-2"),
		"p2": tiles(t, "6-2"),
	}, tiles(t, "0-3"), domino.MustParse("6-6"), "p1")

	_, err := m.Draw("p1", domino.MustParse("1-1"))
	require.ErrorIs(t, err, ErrIllegalMove)

	events, err := m.Draw("p1", domino.MustParse("3-0"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, TileDrawnEvent{SeatID: "p1", Tile: domino.MustParse("3-0"), Boneyard: 0}, events[0])
	assert.Equal(t, PassedEvent{SeatID: "p1", Auto: true, Passes: 1}, events[1])
	assert.Equal(t, "p2", m.CurrentSeatID)
	assert.Len(t, m.Hands["p1"], 2)
	assert.Empty(t, m.Boneyard)
}

func TestDrawKeepsTurnWhenStillStuck(t *testing.T) {
	m := riggedMatch(t, Mode1v1, map[string]domino.Hand{
		"p1": tiles(t, "1-2"),
		"p2": tiles(t, "6-2"),
	}, tiles(t, "0-3", "0-0"), domino.MustParse("6-6"), "p1")

	_, err := m.Draw("p1", domino.MustParse("0-3"))
	require.NoError(t, err)
	assert.Equal(t, "p1", m.CurrentSeatID)
	assert.Equal(t, 0, m.ConsecutivePasses)
}

func TestStartUsesActiveSeats(t *testing.T) {
	m := NewMatch("m", Room{ID: "r", Mode: ModeFree}.WithDefaults())
	m.Players["a"] = Player{ID: "a", IsConnected: true}
	_, err := m.Start(randutil.New(1))
	require.ErrorIs(t, err, ErrIllegalMove)

	m.Players["b"] = Player{ID: "b", IsConnected: true}
	m.Players["c"] = Player{ID: "c", Left: true}
	events, err := m.Start(randutil.New(1))
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, EventTypeRoundStart, events[0].EventType())

	assert.Equal(t, PhasePlaying, m.Phase)
	assert.Equal(t, []string{"a", "b"}, m.TurnOrder)
	assert.Equal(t, 1, m.Round)
	assert.True(t, m.MatchmakingDeadline.IsZero())
	assert.NoError(t, m.CheckTiles())
	assert.Empty(t, m.Players["c"].Team)
}

func TestNextRoundCarriesScores(t *testing.T) {
	m := riggedMatch(t, Mode1v1, map[string]domino.Hand{
		"p1": tiles(t, "5-1"),
		"p2": tiles(t, "2-3"),
	}, tiles(t, "0-0"), domino.MustParse("6-5"), "p1")

	_, err := m.Play("p1", domino.MustParse("5-1"), domino.PlaceRight)
	require.NoError(t, err)
	_, _, _, err = m.ResolveEndRoundRequest()
	require.NoError(t, err)

	_, err = m.NextRound(randutil.New(5))
	require.NoError(t, err)
	assert.Equal(t, PhasePlaying, m.Phase)
	assert.Equal(t, 2, m.Round)
	assert.Equal(t, 5, m.TeamScores["A"])
	assert.Nil(t, m.RoundWinner)
	assert.NoError(t, m.CheckTiles())
}

func firstPlayable(m *Match, seat string) (domino.Tile, domino.Placement, bool) {
	for _, tile := range m.Hands[seat] {
		if tile.Matches(m.BoardEnds[0]) {
			return tile, domino.PlaceLeft, true
		}
		if tile.Matches(m.BoardEnds[1]) {
			return tile, domino.PlaceRight, true
		}
	}
	return domino.Tile{}, "", false
}

func TestFullMatchKeepsTileInvariant(t *testing.T) {
	for _, mode := range []Mode{Mode1v1, Mode2v2, ModeFree} {
		t.Run(string(mode), func(t *testing.T) {
			m := NewMatch("sim", Room{ID: "sim", Mode: mode}.WithDefaults())
			for _, id := range []string{"a", "b", "c", "d"}[:SeatsFor(mode)] {
				m.Players[id] = Player{ID: id, IsConnected: true}
			}
			rng := randutil.New(2024)
			_, err := m.Start(rng)
			require.NoError(t, err)

			for i := 0; i < 10000 && m.Phase != PhaseGameOver; i++ {
				require.NoError(t, m.CheckTiles())
				err = step(m, rng)
				require.NoError(t, err)
			}
			require.Equal(t, PhaseGameOver, m.Phase)
			assert.GreaterOrEqual(t, m.TeamScores[m.MatchWinner], m.ScoreToWin)
		})
	}
}

func step(m *Match, rng *rand.Rand) error {
	var err error
	switch {
	case m.Phase == PhaseRoundOver:
		_, err = m.NextRound(rng)
	case m.EndRoundRequest != nil:
		_, _, _, err = m.ResolveEndRoundRequest()
	default:
		seat := m.CurrentSeatID
		if tile, end, ok := firstPlayable(m, seat); ok {
			_, err = m.Play(seat, tile, end)
		} else if len(m.Boneyard) > 0 {
			_, err = m.Draw(seat, m.Boneyard[0])
		} else {
			_, err = m.Pass(seat)
		}
	}
	return err
}
