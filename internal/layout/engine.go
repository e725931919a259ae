// Package layout projects a board history onto a bounded grid for rendering.
//
// The projection is rebuilt from the history on every change; no state
// survives between rebuilds.
package layout

import (
	"errors"
	"fmt"

	"github.com/lox/dominoes/internal/domino"
)

var (
	// ErrInvalidMove is returned when a tile does not match the open pip of
	// the cursor it is placed on.
	ErrInvalidMove = errors.New("tile does not match open end")
	// ErrLayoutExhausted is returned when no free cell remains next to a
	// cursor. The grid is too small for the round.
	ErrLayoutExhausted = errors.New("no free cell for tile")
	// ErrNotStarted is returned by PlacePiece before StartGame.
	ErrNotStarted = errors.New("layout has no start tile")
)

// Direction is a cardinal growth direction on the grid.
type Direction int

const (
	Right Direction = iota
	Left
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Right:
		return "right"
	case Left:
		return "left"
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	switch d {
	case Right:
		return Left
	case Left:
		return Right
	case Up:
		return Down
	default:
		return Up
	}
}

// Perpendicular returns the two directions at right angles to d.
func (d Direction) Perpendicular() [2]Direction {
	if d.Horizontal() {
		return [2]Direction{Up, Down}
	}
	return [2]Direction{Right, Left}
}

// Horizontal reports whether d runs along the x axis.
func (d Direction) Horizontal() bool {
	return d == Right || d == Left
}

// Orientation is how a tile is drawn.
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

// Position is a grid cell, x to the right and y downwards.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) step(d Direction) Position {
	switch d {
	case Right:
		return Position{p.X + 1, p.Y}
	case Left:
		return Position{p.X - 1, p.Y}
	case Up:
		return Position{p.X, p.Y - 1}
	default:
		return Position{p.X, p.Y + 1}
	}
}

// Canvas is the grid size in cells.
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the middle cell of the canvas.
func (c Canvas) Center() Position {
	return Position{X: c.Width / 2, Y: c.Height / 2}
}

func (c Canvas) contains(p Position) bool {
	return p.X >= 0 && p.X < c.Width && p.Y >= 0 && p.Y < c.Height
}

// Placed is a tile as it should be drawn: oriented so the pip touching the
// chain faces it.
type Placed struct {
	Tile        domino.Tile `json:"tile"`
	Position    Position    `json:"position"`
	Orientation Orientation `json:"orientation"`
	Direction   Direction   `json:"direction"`
}

type cursor struct {
	pos  Position
	open int
	dir  Direction
}

// Engine places tiles one at a time. Head grows through right placements,
// tail through left placements.
type Engine struct {
	canvas   Canvas
	occupied map[Position]bool
	head     cursor
	tail     cursor
	started  bool
	placed   []Placed
}

// NewEngine returns an empty engine for the canvas.
func NewEngine(canvas Canvas) (*Engine, error) {
	if canvas.Width < 1 || canvas.Height < 1 {
		return nil, fmt.Errorf("invalid canvas %dx%d", canvas.Width, canvas.Height)
	}
	center := canvas.Center()
	return &Engine{
		canvas:   canvas,
		occupied: make(map[Position]bool),
		head:     cursor{pos: center, dir: Right},
		tail:     cursor{pos: center, dir: Left},
	}, nil
}

// StartGame places the first tile at the grid center.
func (e *Engine) StartGame(tile domino.Tile) error {
	if e.started {
		return errors.New("layout already started")
	}
	center := e.canvas.Center()
	e.occupied[center] = true
	e.head.open = tile.Right
	e.tail.open = tile.Left
	e.started = true

	orientation := Horizontal
	if tile.IsDouble() {
		orientation = Vertical
	}
	e.placed = append(e.placed, Placed{Tile: tile, Position: center, Orientation: orientation, Direction: Right})
	return nil
}

// PlacePiece attaches tile to the head (right end) or the tail (left end).
func (e *Engine) PlacePiece(tile domino.Tile, isHead bool) (Placed, error) {
	if !e.started {
		return Placed{}, ErrNotStarted
	}

	cur := &e.tail
	if isHead {
		cur = &e.head
	}
	if !tile.Matches(cur.open) {
		return Placed{}, fmt.Errorf("%w: %v on %d", ErrInvalidMove, tile, cur.open)
	}

	oriented := orient(tile, cur.open, isHead)

	pos, dir, err := e.nextCell(*cur)
	if err != nil {
		return Placed{}, fmt.Errorf("%w: %v at %v", err, tile, cur.pos)
	}

	e.occupied[pos] = true
	cur.pos = pos
	cur.dir = dir
	if isHead {
		cur.open = oriented.Right
	} else {
		cur.open = oriented.Left
	}

	orientation := Horizontal
	if !dir.Horizontal() {
		orientation = Vertical
	}
	if tile.IsDouble() {
		orientation = flip(orientation)
	}

	p := Placed{Tile: oriented, Position: pos, Orientation: orientation, Direction: dir}
	e.placed = append(e.placed, p)
	return p, nil
}

// nextCell tries the current direction, then both perpendiculars, then the
// reverse. The first free in-bounds cell wins.
func (e *Engine) nextCell(c cursor) (Position, Direction, error) {
	perp := c.dir.Perpendicular()
	for _, d := range []Direction{c.dir, perp[0], perp[1], c.dir.Opposite()} {
		p := c.pos.step(d)
		if e.canvas.contains(p) && !e.occupied[p] {
			return p, d, nil
		}
	}
	return Position{}, c.dir, ErrLayoutExhausted
}

// Placed returns the tiles placed so far.
func (e *Engine) Placed() []Placed {
	out := make([]Placed, len(e.placed))
	copy(out, e.placed)
	return out
}

// Ends returns the open pips of the tail and head cursors.
func (e *Engine) Ends() (tail, head int) {
	return e.tail.open, e.head.open
}

// Canvas returns the grid size.
func (e *Engine) Canvas() Canvas {
	return e.canvas
}

// orient flips a tile so the matching pip faces the chain. Doubles take the
// match value on both sides.
func orient(tile domino.Tile, match int, isHead bool) domino.Tile {
	switch {
	case tile.IsDouble():
		return domino.New(match, match)
	case isHead && tile.Left == match:
		return tile
	case !isHead && tile.Right == match:
		return tile
	default:
		return tile.Inverted()
	}
}

func flip(o Orientation) Orientation {
	if o == Horizontal {
		return Vertical
	}
	return Horizontal
}
