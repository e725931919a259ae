package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/dominoes/internal/domino"
)

func board(start domino.Tile, plays ...domino.Play) domino.Board {
	b := domino.Board{{Tile: start, Placement: domino.PlaceStart}}
	return append(b, plays...)
}

func right(l, r int) domino.Play {
	return domino.Play{Tile: domino.New(l, r), Placement: domino.PlaceRight}
}

func left(l, r int) domino.Play {
	return domino.Play{Tile: domino.New(l, r), Placement: domino.PlaceLeft}
}

func TestStartGame(t *testing.T) {
	e, err := NewEngine(Canvas{Width: 10, Height: 6})
	require.NoError(t, err)
	require.NoError(t, e.StartGame(domino.New(3, 5)))

	tail, head := e.Ends()
	assert.Equal(t, 3, tail)
	assert.Equal(t, 5, head)

	placed := e.Placed()
	require.Len(t, placed, 1)
	assert.Equal(t, Position{X: 5, Y: 3}, placed[0].Position)
	assert.Equal(t, Horizontal, placed[0].Orientation)

	require.Error(t, e.StartGame(domino.New(1, 1)))
}

func TestPlacePieceOrientation(t *testing.T) {
	e, err := NewEngine(Canvas{Width: 20, Height: 10})
	require.NoError(t, err)
	require.NoError(t, e.StartGame(domino.New(6, 6)))

	p, err := e.PlacePiece(domino.New(5, 6), true)
	require.NoError(t, err)
	assert.Equal(t, domino.New(6, 5), p.Tile, "matching pip faces the chain on the head")
	assert.Equal(t, Position{X: 11, Y: 5}, p.Position)
	assert.Equal(t, Horizontal, p.Orientation)

	p, err = e.PlacePiece(domino.New(5, 5), true)
	require.NoError(t, err)
	assert.Equal(t, Vertical, p.Orientation, "doubles are drawn across the run")

	p, err = e.PlacePiece(domino.New(6, 2), false)
	require.NoError(t, err)
	assert.Equal(t, domino.New(2, 6), p.Tile, "matching pip faces the chain on the tail")
	assert.Equal(t, Position{X: 9, Y: 5}, p.Position)

	tail, head := e.Ends()
	assert.Equal(t, 2, tail)
	assert.Equal(t, 5, head)
}

func TestPlacePieceRejectsMismatch(t *testing.T) {
	e, err := NewEngine(Canvas{Width: 10, Height: 6})
	require.NoError(t, err)

	_, err = e.PlacePiece(domino.New(1, 1), true)
	require.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, e.StartGame(domino.New(1, 2)))
	_, err = e.PlacePiece(domino.New(4, 5), true)
	require.ErrorIs(t, err, ErrInvalidMove)
	_, err = e.PlacePiece(domino.New(2, 5), false)
	require.ErrorIs(t, err, ErrInvalidMove)
	assert.Len(t, e.Placed(), 1)
}

func TestSnakeTurnsAtEdges(t *testing.T) {
	b := board(domino.New(1, 2),
		right(2, 3),
		right(3, 4),
		right(4, 5),
		right(5, 6),
		right(6, 0),
		right(0, 1),
		right(1, 1),
		right(1, 4),
	)

	placed, err := Layout(b, Canvas{Width: 3, Height: 3})
	require.NoError(t, err)

	want := []Position{
		{1, 1}, // start
		{2, 1}, // continue right
		{2, 0}, // right is off canvas, turn up
		{1, 0}, // up is off canvas, right too, turn left
		{0, 0}, // continue left
		{0, 1}, // left and up are off canvas, turn down
		{0, 2}, // continue down
		{1, 2}, // down off canvas, turn right
		{2, 2}, // continue right
	}
	got := make([]Position, len(placed))
	for i, p := range placed {
		got[i] = p.Position
	}
	assert.Equal(t, want, got)
	assert.Equal(t, Up, placed[2].Direction)
	assert.Equal(t, Vertical, placed[2].Orientation)
	assert.Equal(t, Vertical, placed[7].Orientation, "double running right is drawn vertically")
}

func TestLayoutExhausted(t *testing.T) {
	b := board(domino.New(1, 2),
		right(2, 3),
		right(3, 4),
		right(4, 5),
		right(5, 6),
		right(6, 0),
		right(0, 1),
		right(1, 1),
		right(1, 4),
		right(4, 4),
	)

	placed, err := Layout(b, Canvas{Width: 3, Height: 3})
	require.ErrorIs(t, err, ErrLayoutExhausted)
	assert.Len(t, placed, 9, "tiles placed before the failure are kept")
	assert.Len(t, b, 10, "board history is untouched")
}

func TestLayoutTail(t *testing.T) {
	placed, err := Layout(board(domino.New(1, 2), left(3, 1), left(3, 0)), Canvas{Width: 5, Height: 3})
	require.NoError(t, err)
	require.Len(t, placed, 3)
	assert.Equal(t, Position{X: 1, Y: 1}, placed[1].Position)
	assert.Equal(t, domino.New(3, 1), placed[1].Tile)
	assert.Equal(t, Position{X: 0, Y: 1}, placed[2].Position)
	assert.Equal(t, domino.New(0, 3), placed[2].Tile)
}

func TestLayoutDeterministic(t *testing.T) {
	b := board(domino.New(6, 6), right(6, 5), right(5, 5), left(6, 1), left(1, 3), right(5, 2))
	canvas := Canvas{Width: 12, Height: 8}

	first, err := Layout(b, canvas)
	require.NoError(t, err)
	second, err := Layout(b, canvas)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLayoutEmptyBoard(t *testing.T) {
	placed, err := Layout(nil, Canvas{Width: 8, Height: 6})
	require.NoError(t, err)
	assert.Empty(t, placed)

	_, err = Layout(nil, Canvas{})
	require.Error(t, err)
}

func TestCache(t *testing.T) {
	cache := NewCache()
	canvas := Canvas{Width: 12, Height: 8}
	b := board(domino.New(6, 6), right(6, 5))

	first, err := cache.Layout(b, canvas)
	require.NoError(t, err)
	first[0].Position = Position{X: -1, Y: -1}

	second, err := cache.Layout(b, canvas)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 6, Y: 4}, second[0].Position, "callers cannot corrupt cached entries")

	longer := append(b, right(5, 4))
	third, err := cache.Layout(longer, canvas)
	require.NoError(t, err)
	assert.Len(t, third, 3)

	other := board(domino.New(1, 1), right(1, 2), right(2, 3))
	fourth, err := cache.Layout(other, canvas)
	require.NoError(t, err)
	assert.Equal(t, domino.New(1, 1), fourth[0].Tile, "same length, different history is recomputed")
}

func TestCanvasFor(t *testing.T) {
	assert.Equal(t, Canvas{Width: 8, Height: 6}, CanvasFor(10, 10))
	assert.Equal(t, Canvas{Width: 40, Height: 30}, CanvasFor(5000, 5000))
	assert.Equal(t, Canvas{Width: 20, Height: 10}, CanvasFor(480, 240))
}
