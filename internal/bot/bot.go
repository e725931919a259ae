package bot

import (
	"fmt"
	"math/rand/v2"

	"github.com/charmbracelet/log"

	"github.com/lox/dominoes/internal/domino"
	"github.com/lox/dominoes/internal/game"
)

// Action is what a seat does on its turn.
type Action string

const (
	Play Action = "play"
	Draw Action = "draw"
	Pass Action = "pass"
)

// Decision is a strategy's chosen move.
type Decision struct {
	Action    Action
	Tile      domino.Tile
	Placement domino.Placement
	Reasoning string
}

func (d Decision) String() string {
	switch d.Action {
	case Play:
		return fmt.Sprintf("play %s %s", d.Tile, d.Placement)
	case Draw:
		return fmt.Sprintf("draw %s", d.Tile)
	default:
		return string(d.Action)
	}
}

// Strategy picks a move for a seat from a match snapshot.
type Strategy interface {
	Decide(m *game.Match, seatID string) Decision
}

// Greedy is the fallback player for AI and absent seats. It has no lookahead:
// the first tile fitting the left end wins, then the first fitting the right
// end, then a random draw, then a pass.
type Greedy struct {
	rng    *rand.Rand
	logger *log.Logger
}

// NewGreedy creates the fallback strategy.
func NewGreedy(rng *rand.Rand, logger *log.Logger) *Greedy {
	return &Greedy{rng: rng, logger: logger.WithPrefix("bot")}
}

func (g *Greedy) Decide(m *game.Match, seatID string) Decision {
	left, right := m.BoardEnds[0], m.BoardEnds[1]
	hand := m.Hands[seatID]

	d := Decision{Action: Pass, Reasoning: "no move and nothing to draw"}
	if tile, ok := first(hand, left); ok {
		d = Decision{Action: Play, Tile: tile, Placement: domino.PlaceLeft, Reasoning: "first tile fitting the left end"}
	} else if left != right {
		if tile, ok := first(hand, right); ok {
			d = Decision{Action: Play, Tile: tile, Placement: domino.PlaceRight, Reasoning: "first tile fitting the right end"}
		}
	}
	if d.Action == Pass && len(m.Boneyard) > 0 {
		d = Decision{Action: Draw, Tile: m.Boneyard[g.rng.IntN(len(m.Boneyard))], Reasoning: "no move, drawing"}
	}

	g.logger.Debug("Bot decision made", "match", m.ID, "seat", seatID, "decision", d.String(), "reasoning", d.Reasoning)
	return d
}

func first(hand domino.Hand, pip int) (domino.Tile, bool) {
	for _, t := range hand {
		if t.Matches(pip) {
			return t, true
		}
	}
	return domino.Tile{}, false
}

// Apply executes a decision against the match on behalf of seatID.
func Apply(m *game.Match, seatID string, d Decision) ([]game.Event, error) {
	switch d.Action {
	case Play:
		return m.Play(seatID, d.Tile, d.Placement)
	case Draw:
		return m.Draw(seatID, d.Tile)
	case Pass:
		return m.Pass(seatID)
	default:
		return nil, fmt.Errorf("unknown action %q", d.Action)
	}
}
