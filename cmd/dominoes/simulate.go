package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/dominoes/internal/fileutil"
	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/randutil"
	"github.com/lox/dominoes/internal/simulator"
)

// TableFlags selects the room and seats a command plays with.
type TableFlags struct {
	Mode       string `default:"1v1" enum:"1v1,2v2,free" help:"Seating: 1v1, 2v2 or free"`
	Variant    string `default:"internacional" enum:"internacional,cubano,dominicano" help:"Rule variant"`
	ScoreToWin int    `help:"Target score (variant default when zero)"`
	Strategy   string `default:"greedy" enum:"greedy,random" help:"Strategy of the tracked seat"`
	Opponent   string `default:"random" enum:"greedy,random" help:"Strategy of the other seats"`
	Seed       int64  `help:"RNG seed (0 for random)"`
	Verbose    bool   `help:"Verbose logging"`
}

func (f TableFlags) room() game.Room {
	return game.Room{
		ID:         "simulation",
		Variant:    game.Variant(f.Variant),
		Mode:       game.Mode(f.Mode),
		ScoreToWin: f.ScoreToWin,
	}.WithDefaults()
}

func (f TableFlags) logger() *log.Logger {
	if f.Verbose {
		return newLogger(log.DebugLevel)
	}
	return newLogger(log.WarnLevel)
}

// SimulateCmd plays bot-only matches
type SimulateCmd struct {
	TableFlags `embed:""`

	Matches int           `default:"1000" help:"Number of matches to simulate"`
	Workers int           `help:"Matches played in parallel (0 for one per CPU)"`
	Timeout time.Duration `default:"10s" help:"Per-match timeout"`
	Output  string        `short:"o" help:"Also write the statistics as JSON to this file"`
}

func (c *SimulateCmd) Run() error {
	logger := c.logger()
	seed := randutil.Seed(c.Seed)

	sim, err := simulator.New(simulator.Config{
		Matches:  c.Matches,
		Room:     c.room(),
		Strategy: c.Strategy,
		Opponent: c.Opponent,
		Seed:     seed,
		Timeout:  c.Timeout,
		Workers:  c.Workers,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Starting simulation: %d %s %s matches, %s vs %s (seed: %d)\n",
		c.Matches, c.Variant, c.Mode, c.Strategy, c.Opponent, seed)

	start := time.Now()
	stats, err := sim.Run(signalContext(logger))
	if err != nil {
		return err
	}
	duration := time.Since(start)

	fmt.Println()
	fmt.Println(renderStats(stats, fmt.Sprintf("%s vs %s", c.Strategy, c.Opponent)))
	fmt.Printf("\nTotal time: %v (%.1f matches/sec)\n",
		duration.Round(time.Millisecond), float64(stats.Matches)/duration.Seconds())

	if c.Output != "" {
		if err := fileutil.WriteJSONAtomic(c.Output, stats.Report()); err != nil {
			return err
		}
		fmt.Println(field("Written", c.Output))
	}
	return nil
}
