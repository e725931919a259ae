package domino

import (
	"math/rand/v2"
	"strings"
)

// Hand is an unordered bag of tiles. Storage order is preserved because the
// AI fallback scans it in that order.
type Hand []Tile

// Pips returns the pip total of the hand.
func (h Hand) Pips() int {
	total := 0
	for _, t := range h {
		total += t.Pips()
	}
	return total
}

// Index returns the position of t in the hand, or -1.
func (h Hand) Index(t Tile) int {
	for i, held := range h {
		if held.Equal(t) {
			return i
		}
	}
	return -1
}

// Contains reports whether the hand holds t in either orientation.
func (h Hand) Contains(t Tile) bool {
	return h.Index(t) >= 0
}

// Without returns a copy of the hand with the first occurrence of t removed.
func (h Hand) Without(t Tile) (Hand, bool) {
	i := h.Index(t)
	if i < 0 {
		return h, false
	}
	out := make(Hand, 0, len(h)-1)
	out = append(out, h[:i]...)
	out = append(out, h[i+1:]...)
	return out, true
}

// With returns a copy of the hand with t appended.
func (h Hand) With(t Tile) Hand {
	out := make(Hand, 0, len(h)+1)
	out = append(out, h...)
	return append(out, t)
}

// CanPlay reports whether any tile matches one of the open ends.
func (h Hand) CanPlay(ends ...int) bool {
	for _, t := range h {
		for _, pip := range ends {
			if t.Matches(pip) {
				return true
			}
		}
	}
	return false
}

// Doubles returns the doubles held, in storage order.
func (h Hand) Doubles() Hand {
	var out Hand
	for _, t := range h {
		if t.IsDouble() {
			out = append(out, t)
		}
	}
	return out
}

func (h Hand) String() string {
	parts := make([]string, len(h))
	for i, t := range h {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// Shuffle applies a Fisher-Yates shuffle in place.
func Shuffle(tiles []Tile, rng *rand.Rand) {
	for i := len(tiles) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		tiles[i], tiles[j] = tiles[j], tiles[i]
	}
}
