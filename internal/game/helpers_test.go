package game

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lox/dominoes/internal/domino"
)

func tiles(t *testing.T, specs ...string) domino.Hand {
	t.Helper()
	var h domino.Hand
	for _, s := range specs {
		tile, err := domino.Parse(s)
		require.NoError(t, err)
		h = append(h, tile)
	}
	return h
}

// riggedMatch builds a playing match with known hands and a single start
// tile on the board.
func riggedMatch(t *testing.T, mode Mode, hands map[string]domino.Hand, boneyard domino.Hand, start domino.Tile, current string) *Match {
	t.Helper()
	room := Room{ID: "test", Variant: Internacional, Mode: mode, MaxPlayers: SeatsFor(mode)}.WithDefaults()
	m := NewMatch("m-test", room)

	var ids []string
	for id := range hands {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	teams := AssignTeams(ids, mode)
	for _, id := range ids {
		m.Players[id] = Player{ID: id, Team: teams[id], IsConnected: true}
		m.TeamScores[teams[id]] = 0
	}

	m.Hands = hands
	m.Boneyard = boneyard
	m.Board = domino.Board{{Tile: start, Placement: domino.PlaceStart}}
	m.BoardEnds = [2]int{start.Left, start.Right}
	m.TurnOrder = ids
	m.CurrentSeatID = current
	m.Phase = PhasePlaying
	m.Round = 1
	return m
}
