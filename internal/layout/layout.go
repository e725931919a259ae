package layout

import (
	"fmt"
	"slices"
	"sync"

	"github.com/lox/dominoes/internal/domino"
)

const (
	unitPixels   = 24
	minCellsWide = 8
	maxCellsWide = 40
	minCellsHigh = 6
	maxCellsHigh = 30
)

// CanvasFor converts a pixel area into a cell canvas, clamped to the sizes
// the board is drawn at.
func CanvasFor(widthPx, heightPx int) Canvas {
	return Canvas{
		Width:  min(maxCellsWide, max(minCellsWide, widthPx/unitPixels)),
		Height: min(maxCellsHigh, max(minCellsHigh, heightPx/unitPixels)),
	}
}

// Layout replays board onto a fresh engine. On error the tiles placed before
// the failure are returned with it; the board itself is never modified.
func Layout(board domino.Board, canvas Canvas) ([]Placed, error) {
	engine, err := NewEngine(canvas)
	if err != nil {
		return nil, err
	}
	if len(board) == 0 {
		return nil, nil
	}
	if err := engine.StartGame(board[0].Tile); err != nil {
		return nil, err
	}
	for i, play := range board[1:] {
		if _, err := engine.PlacePiece(play.Tile, play.Placement == domino.PlaceRight); err != nil {
			return engine.Placed(), fmt.Errorf("board entry %d: %w", i+1, err)
		}
	}
	return engine.Placed(), nil
}

// Cache memoizes the last Layout result per canvas. A board of the same
// length and content on the same canvas is served from memory.
type Cache struct {
	mu      sync.Mutex
	entries map[Canvas]cacheEntry
}

type cacheEntry struct {
	board  domino.Board
	placed []Placed
	err    error
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Canvas]cacheEntry)}
}

// Layout returns the cached projection or computes a new one.
func (c *Cache) Layout(board domino.Board, canvas Canvas) ([]Placed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[canvas]; ok && slices.Equal(e.board, board) {
		return slices.Clone(e.placed), e.err
	}

	placed, err := Layout(board, canvas)
	c.entries[canvas] = cacheEntry{board: slices.Clone(board), placed: placed, err: err}
	return slices.Clone(placed), err
}
