package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/dominoes/internal/client"
	"github.com/lox/dominoes/internal/randutil"
	"github.com/lox/dominoes/internal/server"
	"github.com/lox/dominoes/internal/spawner"
	"github.com/lox/dominoes/internal/tui"
)

// BotCmd seats strategy bots on a running server over WebSocket
type BotCmd struct {
	Config   string `short:"c" default:"bot.hcl" help:"Bot configuration file"`
	URL      string `short:"u" help:"Server URL (overrides config)"`
	Address  string `short:"a" help:"Wallet address to play as (overrides config)"`
	Room     string `short:"r" help:"Room to join (overrides config)"`
	Strategy string `help:"Strategy: greedy or random (overrides config)"`
	Matches  int    `short:"n" help:"Matches to play (overrides config)"`
	Count    int    `default:"1" help:"Bots to run; addresses get a numeric suffix when more than one"`
	Seed     int64  `help:"RNG seed (0 for random)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
}

func (c *BotCmd) Run() error {
	cfg, err := client.LoadClientConfig(c.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if c.URL != "" {
		cfg.Server.URL = c.URL
	}
	if c.Address != "" {
		cfg.Player.Address = c.Address
	}
	if c.Room != "" {
		cfg.Player.Room = c.Room
	}
	if c.Strategy != "" {
		cfg.Player.Strategy = c.Strategy
	}
	if c.Matches != 0 {
		cfg.Player.Matches = c.Matches
	}
	if c.LogLevel != "" {
		cfg.Player.LogLevel = c.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := log.ParseLevel(cfg.Player.LogLevel)
	if err != nil {
		return err
	}
	logger := newLogger(level)

	fleet := spawner.NewWithSeed(signalContext(logger), cfg.Server.URL, logger, randutil.Seed(c.Seed)).
		WithConnectTimeout(time.Duration(cfg.Server.ConnectTimeout) * time.Second)
	bots, err := fleet.Spawn(spawner.BotSpec{
		Strategy: cfg.Player.Strategy,
		Room:     cfg.Player.Room,
		Count:    c.Count,
		Matches:  cfg.Player.Matches,
		Address:  cfg.Player.Address,
		Token:    cfg.Player.Token,
	})
	if err != nil {
		return err
	}
	waitErr := fleet.Wait()

	for _, b := range bots {
		for n, v := range b.Results() {
			result := tui.ErrorStyle.Render("lost")
			if v.MatchWinner != "" && v.MatchWinner == teamOf(v, b.Address) {
				result = tui.SuccessStyle.Render("won")
			}
			fmt.Println(field(fmt.Sprintf("%s #%d", b.Address, n+1), fmt.Sprintf("%s %s after %d rounds %v", v.ID, result, v.Round, v.TeamScores)))
		}
	}
	return waitErr
}

func teamOf(v server.MatchView, seatID string) string {
	for _, s := range v.Seats {
		if s.ID == seatID {
			if s.Team == "" {
				return s.ID
			}
			return s.Team
		}
	}
	return ""
}
