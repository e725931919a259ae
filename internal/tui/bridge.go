package tui

import (
	"encoding/json"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/dominoes/internal/client"
	"github.com/lox/dominoes/internal/server"
)

// Sender delivers messages into the running program. *tea.Program
// satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge connects a WebSocket client to the TUI: server messages become tea
// messages and entered commands become client requests.
type Bridge struct {
	client *client.Client
	ui     Sender
	logger *log.Logger
	room   string
	code   string
}

// NewBridge registers the client handlers. Call Start once the program runs.
func NewBridge(c *client.Client, ui Sender, room string, logger *log.Logger) *Bridge {
	b := &Bridge{client: c, ui: ui, room: room, logger: logger.WithPrefix("bridge")}

	c.AddEventHandler(server.MessageTypeAuthResponse, b.handleAuthResponse)
	c.AddEventHandler(server.MessageTypeReconnectOffer, b.handleReconnectOffer)
	c.AddEventHandler(server.MessageTypeMatchJoined, b.handleMatchJoined)
	c.AddEventHandler(server.MessageTypeMatchLeft, b.handleMatchLeft)
	c.AddEventHandler(server.MessageTypeMatchRemoved, b.handleMatchLeft)
	c.AddEventHandler(server.MessageTypeSnapshot, b.handleSnapshot)
	c.AddEventHandler(server.MessageTypeEvent, b.handleEvent)
	c.AddEventHandler(server.MessageTypeError, b.handleError)
	return b
}

// WithCode makes the bridge join a private match by access code instead of
// matchmaking into the room.
func (b *Bridge) WithCode(code string) *Bridge {
	b.code = code
	return b
}

// Start authenticates; joining follows the auth response.
func (b *Bridge) Start(address, token string) error {
	return b.client.Auth(address, token)
}

// Submit executes a command from the model.
func (b *Bridge) Submit(cmd Command) {
	var err error
	switch cmd.Kind {
	case CmdPlay:
		err = b.client.Play(cmd.Tile, cmd.Placement)
	case CmdDraw:
		err = b.client.Draw()
	case CmdPass:
		err = b.client.Pass()
	case CmdLeave:
		err = b.client.Leave()
	case CmdQuit:
		err = b.client.Disconnect()
	}
	if err != nil {
		b.ui.Send(ErrorMsg{Code: "send_failed", Message: err.Error()})
	}
}

// Resize tells the server how much room the board has.
func (b *Bridge) Resize(cols, rows int) {
	w, h := CanvasPixels(cols, rows)
	if err := b.client.SetCanvas(w, h); err != nil {
		b.logger.Debug("Failed to send canvas", "error", err)
	}
}

func decode[T any](b *Bridge, msg *server.Message) (T, bool) {
	var data T
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		b.logger.Warn("Bad message", "type", msg.Type, "error", err)
		return data, false
	}
	return data, true
}

func (b *Bridge) handleAuthResponse(msg *server.Message) {
	data, ok := decode[server.AuthResponseData](b, msg)
	if !ok {
		return
	}
	if !data.Success {
		b.ui.Send(ErrorMsg{Code: "auth_failed", Message: data.Error})
		return
	}
	b.ui.Send(LogMsg(SuccessStyle.Render("Signed in as " + data.SeatID)))
	join := func() error { return b.client.Join(b.room) }
	if b.code != "" {
		join = func() error { return b.client.JoinCode(b.code) }
	}
	if err := join(); err != nil {
		b.ui.Send(ErrorMsg{Code: "send_failed", Message: err.Error()})
	}
}

// Interactive players are always taken back to an unfinished match.
func (b *Bridge) handleReconnectOffer(msg *server.Message) {
	data, ok := decode[server.ReconnectOfferData](b, msg)
	if !ok {
		return
	}
	b.ui.Send(LogMsg(WarningStyle.Render(fmt.Sprintf("Resuming %s (%s)", data.RoomName, data.Phase))))
	if err := b.client.Rejoin(data.MatchID); err != nil {
		b.ui.Send(ErrorMsg{Code: "send_failed", Message: err.Error()})
	}
}

func (b *Bridge) handleMatchJoined(msg *server.Message) {
	data, ok := decode[server.MatchJoinedData](b, msg)
	if !ok {
		return
	}
	line := "Joined match " + data.MatchID
	if data.RoomCode != "" {
		line += ", share code " + data.RoomCode
	}
	b.ui.Send(LogMsg(line))
}

func (b *Bridge) handleMatchLeft(msg *server.Message) {
	data, _ := decode[server.MatchData](b, msg)
	b.ui.Send(LogMsg(WarningStyle.Render("Left match " + data.MatchID)))
}

func (b *Bridge) handleSnapshot(msg *server.Message) {
	if v, ok := decode[server.MatchView](b, msg); ok {
		b.ui.Send(SnapshotMsg(v))
	}
}

func (b *Bridge) handleEvent(msg *server.Message) {
	if data, ok := decode[server.EventData](b, msg); ok {
		b.ui.Send(LogMsg(LogStyle.Render(data.Summary)))
	}
}

func (b *Bridge) handleError(msg *server.Message) {
	if data, ok := decode[server.ErrorData](b, msg); ok {
		b.ui.Send(ErrorMsg(data))
	}
}
