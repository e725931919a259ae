package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/dominoes/internal/client"
	"github.com/lox/dominoes/internal/tui"
)

// PlayCmd takes a seat interactively in the terminal
type PlayCmd struct {
	URL      string `short:"u" default:"http://localhost:8080" help:"Server URL"`
	Address  string `short:"a" required:"" help:"Wallet address to play as"`
	Token    string `short:"t" env:"DOMINOES_TOKEN" help:"Session token, when the server verifies sessions"`
	Room     string `short:"r" default:"free-1v1" help:"Room to join"`
	Code     string `help:"Join a private match by access code instead"`
	LogFile  string `default:"dominoes-client.log" help:"Log file path"`
	LogLevel string `short:"l" default:"info" enum:"debug,info,warn,error" help:"Log level"`
}

func (c *PlayCmd) Run() error {
	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logger := log.NewWithOptions(logFile, log.Options{Level: level, ReportTimestamp: true})
	logger.Info("Starting client", "server", c.URL, "address", c.Address, "room", c.Room)

	conn := client.NewClient(c.URL, logger)

	var bridge *tui.Bridge
	model := tui.NewModel(c.Address,
		func(cmd tui.Command) { bridge.Submit(cmd) },
		func(cols, rows int) { bridge.Resize(cols, rows) },
		logger)
	program := tea.NewProgram(model, tea.WithAltScreen())
	bridge = tui.NewBridge(conn, program, c.Room, logger).WithCode(c.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = conn.Disconnect() }()

	model.AddLogEntry(tui.HeaderStyle.Render("Dominoes"))
	model.AddLogEntry("Connected to " + c.URL)
	model.AddLogEntry(tui.InfoStyle.Render(tui.HelpText))

	go func() {
		<-conn.Done()
		program.Send(tui.QuitMsg{})
	}()
	if err := bridge.Start(c.Address, c.Token); err != nil {
		return err
	}

	_, err = program.Run()
	return err
}
