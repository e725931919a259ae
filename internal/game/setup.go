package game

import (
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/lox/dominoes/internal/domino"
)

var teamNames = []string{"A", "B", "C", "D"}

// SetupOptions are the inputs of a round deal beyond the seats.
type SetupOptions struct {
	Variant    Variant
	Mode       Mode
	HandSize   int
	TeamScores map[string]int
	Rand       *rand.Rand
}

// Deal is a freshly dealt and opened round.
type Deal struct {
	TurnOrder     []string
	Teams         map[string]string
	Hands         map[string]domino.Hand
	Boneyard      domino.Hand
	StartSeatID   string
	StartTile     domino.Tile
	CurrentSeatID string
	TeamScores    map[string]int
}

// AssignTeams maps sorted seat ids to team ids. 4-seat 2v2 alternates A,B,A,B;
// any other table of more than two seats plays every seat for itself.
func AssignTeams(seatIDs []string, mode Mode) map[string]string {
	teams := make(map[string]string, len(seatIDs))
	paired := mode == Mode2v2 && len(seatIDs) == 4
	for i, id := range seatIDs {
		switch {
		case paired:
			teams[id] = teamNames[i%2]
		default:
			teams[id] = teamNames[i]
		}
	}
	return teams
}

// Setup shuffles, deals, and opens a round for the given seats.
func Setup(seatIDs []string, opts SetupOptions) (Deal, error) {
	if len(seatIDs) < 2 || len(seatIDs) > len(teamNames) {
		return Deal{}, fmt.Errorf("cannot deal to %d seats", len(seatIDs))
	}
	if opts.Rand == nil {
		return Deal{}, errors.New("setup requires a random source")
	}
	handSize := opts.HandSize
	if handSize == 0 {
		handSize = DefaultHandSize
	}
	if handSize*len(seatIDs) >= domino.SetSize {
		return Deal{}, fmt.Errorf("hand size %d cannot be dealt to %d seats", handSize, len(seatIDs))
	}

	order := slices.Clone(seatIDs)
	sort.Strings(order)

	set := domino.StandardSet()
	domino.Shuffle(set, opts.Rand)

	hands := make(map[string]domino.Hand, len(order))
	for i, id := range order {
		hands[id] = slices.Clone(domino.Hand(set[i*handSize : (i+1)*handSize]))
	}
	boneyard := slices.Clone(domino.Hand(set[len(order)*handSize:]))

	teams := AssignTeams(order, opts.Mode)
	scores := make(map[string]int)
	for _, team := range teams {
		scores[team] = 0
	}
	maps.Copy(scores, opts.TeamScores)

	starter, tile := startingTile(order, hands, opts.Variant)
	hands[starter], _ = hands[starter].Without(tile)

	next := order[(slices.Index(order, starter)+1)%len(order)]
	return Deal{
		TurnOrder:     order,
		Teams:         teams,
		Hands:         hands,
		Boneyard:      boneyard,
		StartSeatID:   starter,
		StartTile:     tile,
		CurrentSeatID: next,
		TeamScores:    scores,
	}, nil
}

// startingTile picks who opens the round and with what.
func startingTile(order []string, hands map[string]domino.Hand, variant Variant) (string, domino.Tile) {
	if variant == Dominicano {
		for pip := domino.MaxPip; pip >= 0; pip-- {
			double := domino.New(pip, pip)
			for _, id := range order {
				if hands[id].Contains(double) {
					return id, double
				}
			}
		}
	}

	var (
		bestSeat string
		best     domino.Tile
		found    bool
	)
	for _, id := range order {
		for _, t := range hands[id].Doubles() {
			if !found || t.Left > best.Left {
				bestSeat, best, found = id, t, true
			}
		}
	}
	if found {
		return bestSeat, best
	}

	for _, id := range order {
		for _, t := range hands[id] {
			if !found || t.Pips() > best.Pips() {
				bestSeat, best, found = id, t, true
			}
		}
	}
	return bestSeat, best
}
