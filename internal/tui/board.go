package tui

import (
	"fmt"
	"strings"

	"github.com/lox/dominoes/internal/domino"
	"github.com/lox/dominoes/internal/layout"
)

// CellWidth is the number of terminal columns one layout cell occupies.
const CellWidth = 5

// RenderBoard draws a projected layout onto its canvas grid, one cell per
// tile. Vertical tiles are drawn as [l:r].
func RenderBoard(placed []layout.Placed, canvas layout.Canvas) string {
	cells := make(map[layout.Position]string, len(placed))
	for i, p := range placed {
		style, sep := TileStyle, "|"
		if p.Orientation == layout.Vertical {
			style, sep = VerticalTileStyle, ":"
		}
		if i == 0 {
			style = StartTileStyle
		}
		cells[p.Position] = style.Render(fmt.Sprintf("[%d%s%d]", p.Tile.Left, sep, p.Tile.Right))
	}

	empty := EmptyCellStyle.Render("  ·  ")
	rows := make([]string, 0, canvas.Height)
	for y := range canvas.Height {
		var row strings.Builder
		for x := range canvas.Width {
			if cell, ok := cells[layout.Position{X: x, Y: y}]; ok {
				row.WriteString(cell)
			} else {
				row.WriteString(empty)
			}
		}
		rows = append(rows, row.String())
	}
	return BoardStyle.Render(strings.Join(rows, "\n"))
}

// RenderHand lists a hand, dimming tiles that fit neither open end. With an
// empty board every tile is shown as playable.
func RenderHand(hand domino.Hand, ends [2]int, boardEmpty bool) string {
	if len(hand) == 0 {
		return InfoStyle.Render("(empty)")
	}
	parts := make([]string, 0, len(hand))
	for _, t := range hand {
		style := DeadTileStyle
		if boardEmpty || t.Matches(ends[0]) || t.Matches(ends[1]) {
			style = TileStyle
		}
		parts = append(parts, style.Render(t.String()))
	}
	return strings.Join(parts, " ")
}

// CanvasPixels converts a terminal area into the pixel size the server
// expects, so the server projects the board onto a grid that fits.
func CanvasPixels(cols, rows int) (width, height int) {
	const unit = 24
	return (cols / CellWidth) * unit, rows * unit
}
