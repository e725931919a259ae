package main

import (
	"fmt"

	"github.com/lox/dominoes/internal/layout"
	"github.com/lox/dominoes/internal/randutil"
	"github.com/lox/dominoes/internal/simulator"
	"github.com/lox/dominoes/internal/tui"
)

// LayoutCmd plays one bot round and prints the board as a client would draw
// it.
type LayoutCmd struct {
	TableFlags `embed:""`

	Width  int `default:"960" help:"Viewport width in pixels"`
	Height int `default:"540" help:"Viewport height in pixels"`
}

func (c *LayoutCmd) Run() error {
	logger := c.logger()
	seed := randutil.Seed(c.Seed)

	sim, err := simulator.New(simulator.Config{
		Matches:  1,
		Room:     c.room(),
		Strategy: c.Strategy,
		Opponent: c.Opponent,
		Seed:     seed,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	m, err := sim.PlayRound(signalContext(logger), seed)
	if err != nil {
		return err
	}

	canvas := layout.CanvasFor(c.Width, c.Height)
	placed, layoutErr := layout.Layout(m.Board, canvas)

	fmt.Println(tui.HeaderStyle.Render(fmt.Sprintf("Round 1 of %s (seed %d)", m.RoomName, seed)))
	fmt.Println(tui.RenderBoard(placed, canvas))
	if layoutErr != nil {
		fmt.Println(tui.ErrorStyle.Render("layout: " + layoutErr.Error()))
	}
	fmt.Println(renderRound(m))
	return nil
}
