package bot

import (
	"math/rand/v2"

	"github.com/charmbracelet/log"

	"github.com/lox/dominoes/internal/domino"
	"github.com/lox/dominoes/internal/game"
)

// Random plays a uniformly random legal move. Used by the simulator to vary
// matches against the greedy fallback.
type Random struct {
	rng    *rand.Rand
	logger *log.Logger
}

// NewRandom creates a random-move strategy.
func NewRandom(rng *rand.Rand, logger *log.Logger) *Random {
	return &Random{rng: rng, logger: logger.WithPrefix("randbot")}
}

func (r *Random) Decide(m *game.Match, seatID string) Decision {
	var moves []Decision
	for _, t := range m.Hands[seatID] {
		for i, end := range []domino.Placement{domino.PlaceLeft, domino.PlaceRight} {
			if t.Matches(m.BoardEnds[i]) {
				moves = append(moves, Decision{Action: Play, Tile: t, Placement: end, Reasoning: "random legal tile"})
			}
		}
	}
	if len(moves) > 0 {
		return moves[r.rng.IntN(len(moves))]
	}
	if len(m.Boneyard) > 0 {
		return Decision{Action: Draw, Tile: m.Boneyard[r.rng.IntN(len(m.Boneyard))], Reasoning: "random draw"}
	}
	return Decision{Action: Pass, Reasoning: "random pass"}
}
