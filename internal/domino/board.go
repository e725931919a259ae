package domino

import "fmt"

// Placement says where a tile was attached to the line of play.
type Placement string

const (
	PlaceStart Placement = "start"
	PlaceLeft  Placement = "left"
	PlaceRight Placement = "right"
)

// Valid reports whether p is one of the known placements.
func (p Placement) Valid() bool {
	return p == PlaceStart || p == PlaceLeft || p == PlaceRight
}

// Play is one entry of the board history.
type Play struct {
	Tile      Tile      `json:"domino"`
	Placement Placement `json:"placement"`
}

// Board is the append-only history of plays for a round. The first entry is
// the round's start tile.
type Board []Play

// Ends folds the history from both boundaries and returns the open pips.
// ok is false for an empty board.
func (b Board) Ends() (left, right int, ok bool) {
	if len(b) == 0 {
		return 0, 0, false
	}
	left, right = b[0].Tile.Left, b[0].Tile.Right
	for _, p := range b[1:] {
		switch p.Placement {
		case PlaceLeft:
			left = p.Tile.Other(left)
		case PlaceRight:
			right = p.Tile.Other(right)
		}
	}
	return left, right, true
}

// Validate checks that the history is well formed: exactly one start entry,
// in first position, and every later tile matching the end it was placed on.
func (b Board) Validate() error {
	if len(b) == 0 {
		return nil
	}
	if b[0].Placement != PlaceStart {
		return fmt.Errorf("board entry 0 has placement %q, want %q", b[0].Placement, PlaceStart)
	}
	left, right := b[0].Tile.Left, b[0].Tile.Right
	for i, p := range b[1:] {
		switch p.Placement {
		case PlaceLeft:
			if !p.Tile.Matches(left) {
				return fmt.Errorf("board entry %d: %v does not match left end %d", i+1, p.Tile, left)
			}
			left = p.Tile.Other(left)
		case PlaceRight:
			if !p.Tile.Matches(right) {
				return fmt.Errorf("board entry %d: %v does not match right end %d", i+1, p.Tile, right)
			}
			right = p.Tile.Other(right)
		default:
			return fmt.Errorf("board entry %d has placement %q", i+1, p.Placement)
		}
	}
	return nil
}

// Tiles returns the tiles on the board in play order.
func (b Board) Tiles() []Tile {
	out := make([]Tile, len(b))
	for i, p := range b {
		out[i] = p.Tile
	}
	return out
}
