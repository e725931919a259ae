package bot

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/dominoes/internal/domino"
	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/randutil"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func table(left, right int, hand []string, boneyard []string) *game.Match {
	m := game.NewMatch("m", game.Room{ID: "r"}.WithDefaults())
	m.Phase = game.PhasePlaying
	m.BoardEnds = [2]int{left, right}
	m.Board = domino.Board{{Tile: domino.New(left, right), Placement: domino.PlaceStart}}
	m.Players["ai"] = game.Player{ID: "ai", IsAI: true, Team: "A"}
	m.Players["other"] = game.Player{ID: "other", IsConnected: true, Team: "B"}
	m.TurnOrder = []string{"ai", "other"}
	m.CurrentSeatID = "ai"
	m.Hands = map[string]domino.Hand{"ai": parse(hand), "other": parse([]string{"0-0"})}
	m.Boneyard = parse(boneyard)
	return m
}

func parse(specs []string) domino.Hand {
	var h domino.Hand
	for _, s := range specs {
		h = append(h, domino.MustParse(s))
	}
	return h
}

func TestGreedyDecisions(t *testing.T) {
	tests := []struct {
		name     string
		left     int
		right    int
		hand     []string
		boneyard []string
		want     Decision
	}{
		{
			name: "left end first",
			left: 3, right: 5,
			hand: []string{"5-1", "3-2"},
			want: Decision{Action: Play, Tile: domino.New(3, 2), Placement: domino.PlaceLeft},
		},
		{
			name: "storage order wins on the left",
			left: 3, right: 5,
			hand: []string{"3-6", "3-2"},
			want: Decision{Action: Play, Tile: domino.New(3, 6), Placement: domino.PlaceLeft},
		},
		{
			name: "right end when left has nothing",
			left: 3, right: 5,
			hand: []string{"1-1", "5-4"},
			want: Decision{Action: Play, Tile: domino.New(5, 4), Placement: domino.PlaceRight},
		},
		{
			name: "pass when stuck with an empty boneyard",
			left: 6, right: 6,
			hand: []string{"1-2"},
			want: Decision{Action: Pass},
		},
		{
			name:     "draw when stuck",
			left:     6, right: 6,
			hand:     []string{"1-2"},
			boneyard: []string{"4-4"},
			want:     Decision{Action: Draw, Tile: domino.New(4, 4)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGreedy(randutil.New(1), quietLogger())
			got := g.Decide(table(tt.left, tt.right, tt.hand, tt.boneyard), "ai")
			got.Reasoning = ""
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGreedyDrawIsFromBoneyard(t *testing.T) {
	g := NewGreedy(randutil.New(9), quietLogger())
	m := table(6, 6, []string{"1-2"}, []string{"0-1", "0-2", "0-3", "0-4"})
	for i := 0; i < 20; i++ {
		d := g.Decide(m, "ai")
		require.Equal(t, Draw, d.Action)
		assert.True(t, m.Boneyard.Contains(d.Tile))
	}
}

func TestApply(t *testing.T) {
	g := NewGreedy(randutil.New(1), quietLogger())
	m := table(3, 5, []string{"1-1", "5-4"}, []string{"2-2"})

	events, err := Apply(m, "ai", g.Decide(m, "ai"))
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, [2]int{3, 4}, m.BoardEnds)
	assert.Equal(t, "other", m.CurrentSeatID)

	_, err = Apply(m, "ai", Decision{Action: "resign"})
	assert.Error(t, err)
}

func TestRandomAlwaysLegal(t *testing.T) {
	r := NewRandom(randutil.New(4), quietLogger())
	for seed := int64(0); seed < 20; seed++ {
		m := table(3, 5, []string{"1-1", "5-4", "3-3", "6-2"}, []string{"2-2"})
		d := r.Decide(m, "ai")
		_, err := Apply(m, "ai", d)
		require.NoError(t, err, d.String())
	}
}
