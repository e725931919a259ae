package tui

import (
	"fmt"
	"strings"

	"github.com/lox/dominoes/internal/domino"
)

// CommandKind is what the player typed.
type CommandKind string

const (
	CmdPlay  CommandKind = "play"
	CmdDraw  CommandKind = "draw"
	CmdPass  CommandKind = "pass"
	CmdLeave CommandKind = "leave"
	CmdQuit  CommandKind = "quit"
	CmdHelp  CommandKind = "help"
)

// Command is a parsed input line.
type Command struct {
	Kind      CommandKind
	Tile      domino.Tile
	Placement domino.Placement
}

// HelpText lists the accepted input.
const HelpText = "play <tile> <left|right> (p 6-5 l) • draw (d) • pass • leave • quit (q) • help (?)"

// ParseCommand reads one line of input. A bare tile is played on whichever
// end the caller resolves; the placement is then empty.
func ParseCommand(input string) (Command, error) {
	fields := strings.Fields(strings.ToLower(input))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	switch fields[0] {
	case "draw", "d":
		return Command{Kind: CmdDraw}, nil
	case "pass":
		return Command{Kind: CmdPass}, nil
	case "leave":
		return Command{Kind: CmdLeave}, nil
	case "quit", "q", "exit":
		return Command{Kind: CmdQuit}, nil
	case "help", "?":
		return Command{Kind: CmdHelp}, nil
	case "play", "p":
		fields = fields[1:]
	}

	if len(fields) == 0 || len(fields) > 2 {
		return Command{}, fmt.Errorf("unknown command %q, try: %s", input, HelpText)
	}
	tile, err := domino.Parse(fields[0])
	if err != nil {
		return Command{}, fmt.Errorf("unknown command %q: %w", input, err)
	}
	cmd := Command{Kind: CmdPlay, Tile: tile}
	if len(fields) == 2 {
		switch fields[1] {
		case "left", "l":
			cmd.Placement = domino.PlaceLeft
		case "right", "r":
			cmd.Placement = domino.PlaceRight
		default:
			return Command{}, fmt.Errorf("unknown end %q, use left or right", fields[1])
		}
	}
	return cmd, nil
}

// ResolvePlacement picks the end for a play without one. It fails when the
// tile fits neither end, or fits both different ends and the choice matters.
func ResolvePlacement(cmd Command, ends [2]int) (Command, error) {
	if cmd.Kind != CmdPlay || cmd.Placement != "" {
		return cmd, nil
	}
	left, right := cmd.Tile.Matches(ends[0]), cmd.Tile.Matches(ends[1])
	switch {
	case left && right && ends[0] != ends[1]:
		return cmd, fmt.Errorf("%s fits both ends, say left or right", cmd.Tile)
	case left:
		cmd.Placement = domino.PlaceLeft
	case right:
		cmd.Placement = domino.PlaceRight
	default:
		return cmd, fmt.Errorf("%s fits neither end (%d/%d)", cmd.Tile, ends[0], ends[1])
	}
	return cmd, nil
}
