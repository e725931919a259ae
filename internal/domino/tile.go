package domino

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxPip is the highest pip value in a double-six set.
	MaxPip = 6
	// SetSize is the number of unique tiles in a double-six set.
	SetSize = 28
)

// Tile is a domino with two pip values. Identity is orientation-independent:
// [6|5] and [5|6] are the same tile.
type Tile struct {
	Left  int
	Right int
}

// New returns the tile [left|right].
func New(left, right int) Tile {
	return Tile{Left: left, Right: right}
}

// IsDouble reports whether both pips are equal.
func (t Tile) IsDouble() bool {
	return t.Left == t.Right
}

// Inverted swaps the pips. Used for orientation only.
func (t Tile) Inverted() Tile {
	return Tile{Left: t.Right, Right: t.Left}
}

// Pips returns the pip sum of the tile.
func (t Tile) Pips() int {
	return t.Left + t.Right
}

// Matches reports whether either side equals pip.
func (t Tile) Matches(pip int) bool {
	return t.Left == pip || t.Right == pip
}

// Other returns the pip opposite to pip. The caller must ensure t.Matches(pip).
func (t Tile) Other(pip int) int {
	if t.Left == pip {
		return t.Right
	}
	return t.Left
}

// Equal compares tiles ignoring orientation.
func (t Tile) Equal(o Tile) bool {
	return (t.Left == o.Left && t.Right == o.Right) || (t.Left == o.Right && t.Right == o.Left)
}

// Valid reports whether both pips are within 0..MaxPip.
func (t Tile) Valid() bool {
	return t.Left >= 0 && t.Left <= MaxPip && t.Right >= 0 && t.Right <= MaxPip
}

// String renders the tile as [l|r].
func (t Tile) String() string {
	return fmt.Sprintf("[%d|%d]", t.Left, t.Right)
}

// MarshalJSON encodes the tile as a two element array, matching the shared
// match record format.
func (t Tile) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{t.Left, t.Right})
}

// UnmarshalJSON decodes a two element array.
func (t *Tile) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode tile: %w", err)
	}
	t.Left, t.Right = pair[0], pair[1]
	if !t.Valid() {
		return fmt.Errorf("decode tile: pips out of range: %v", pair)
	}
	return nil
}

// StandardSet returns the 28 tiles of a double-six set, lowest first.
func StandardSet() []Tile {
	set := make([]Tile, 0, SetSize)
	for i := 0; i <= MaxPip; i++ {
		for j := i; j <= MaxPip; j++ {
			set = append(set, Tile{Left: i, Right: j})
		}
	}
	return set
}

// Parse reads a tile written as "6-5", "6|5", "[6|5]" or "65".
func Parse(s string) (Tile, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	var parts []string
	switch {
	case strings.ContainsAny(s, "-|:,"):
		parts = strings.FieldsFunc(s, func(r rune) bool {
			return r == '-' || r == '|' || r == ':' || r == ','
		})
	case len(s) == 2:
		parts = []string{s[:1], s[1:]}
	}
	if len(parts) != 2 {
		return Tile{}, fmt.Errorf("invalid tile %q", s)
	}

	left, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Tile{}, fmt.Errorf("invalid tile %q: %w", s, err)
	}
	right, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Tile{}, fmt.Errorf("invalid tile %q: %w", s, err)
	}

	t := Tile{Left: left, Right: right}
	if !t.Valid() {
		return Tile{}, fmt.Errorf("invalid tile %q: pips must be 0-%d", s, MaxPip)
	}
	return t, nil
}

// MustParse is Parse for tests and fixtures.
func MustParse(s string) Tile {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}
