package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Server   ServerCmd        `cmd:"" help:"Run the match server"`
	Simulate SimulateCmd      `cmd:"" help:"Play bot-only matches and report statistics"`
	Layout   LayoutCmd        `cmd:"" help:"Play one bot round and draw the board layout"`
	Bot      BotCmd           `cmd:"" help:"Play matches on a running server with a strategy bot"`
	Play     PlayCmd          `cmd:"" help:"Take a seat interactively in the terminal"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("dominoes"),
		kong.Description("Multiplayer dominoes match server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// newLogger builds the stderr logger every command uses.
func newLogger(level log.Level) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	if termenv.EnvNoColor() {
		logger.SetColorProfile(termenv.Ascii)
	}
	return logger
}

// signalContext is cancelled on the first interrupt or SIGTERM.
func signalContext(logger *log.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down gracefully", "signal", sig.String())
		cancel()
	}()

	return ctx
}
