// Package tui is the terminal client for playing a seat interactively.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/server"
)

const sidebarWidth = 28

// SnapshotMsg delivers a new view of the match.
type SnapshotMsg server.MatchView

// LogMsg appends a line to the game log.
type LogMsg string

// ErrorMsg reports a server error.
type ErrorMsg server.ErrorData

// QuitMsg is a custom message to signal quit
type QuitMsg struct{}

// ResizeFunc is told the board area whenever the terminal size changes.
type ResizeFunc func(cols, rows int)

// Model is the Bubble Tea model for one seat.
type Model struct {
	seatID string
	logger *log.Logger
	submit func(Command)
	resize ResizeFunc

	logViewport viewport.Model
	input       textinput.Model

	view     *server.MatchView
	gameLog  []string
	status   string
	quitting bool

	width  int
	height int
}

// NewModel creates the model. submit receives every command the player
// enters, already checked against the visible state.
func NewModel(seatID string, submit func(Command), resize ResizeFunc, logger *log.Logger) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "play 6-5 left, draw, pass"
	ti.Focus()
	ti.CharLimit = 40
	ti.Width = 40
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "

	return &Model{
		seatID:      seatID,
		logger:      logger.WithPrefix("tui"),
		submit:      submit,
		resize:      resize,
		logViewport: vp,
		input:       ti,
	}
}

// Init initializes the TUI model
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.resize != nil {
			m.resize(m.boardArea())
		}

	case SnapshotMsg:
		v := server.MatchView(msg)
		m.onSnapshot(&v)

	case LogMsg:
		m.AddLogEntry(string(msg))

	case ErrorMsg:
		m.status = ErrorStyle.Render(msg.Message)
		m.AddLogEntry(ErrorStyle.Render(fmt.Sprintf("%s: %s", msg.Code, msg.Message)))

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.send(Command{Kind: CmdQuit})
			return m, tea.Quit
		case "pgup":
			m.logViewport.HalfPageUp()
		case "pgdown":
			m.logViewport.HalfPageDown()
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line != "" {
				if quit := m.processInput(line); quit {
					m.quitting = true
					return m, tea.Quit
				}
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) onSnapshot(v *server.MatchView) {
	prev := m.view
	m.view = v
	if prev == nil || prev.Phase != v.Phase || prev.Round != v.Round {
		m.AddLogEntry(HeaderStyle.Render(fmt.Sprintf("%s: %s, round %d", v.RoomName, v.Phase, v.Round)))
	}
	if r := v.RoundWinner; r != nil && (prev == nil || prev.RoundWinner == nil) {
		m.AddLogEntry(SuccessStyle.Render(fmt.Sprintf("Team %s takes the round by %s for %d", r.Team, r.Method, r.Score)))
	}
	if v.MatchWinner != "" && (prev == nil || prev.MatchWinner == "") {
		m.AddLogEntry(SuccessStyle.Render("Match won by " + v.MatchWinner))
	}
	if v.LayoutError != "" {
		m.status = WarningStyle.Render("layout: " + v.LayoutError)
	} else if m.myTurn() {
		m.status = ActionsStyle.Render("Your turn")
	} else {
		m.status = ""
	}
}

func (m *Model) myTurn() bool {
	return m.view != nil && m.view.Phase == game.PhasePlaying && m.view.CurrentSeatID == m.seatID
}

// processInput parses and checks a line, reporting whether the player quit.
func (m *Model) processInput(line string) bool {
	cmd, err := ParseCommand(line)
	if err != nil {
		m.status = ErrorStyle.Render(err.Error())
		return false
	}

	switch cmd.Kind {
	case CmdQuit:
		m.send(cmd)
		return true
	case CmdHelp:
		m.AddLogEntry(InfoStyle.Render(HelpText))
		return false
	case CmdPlay, CmdDraw, CmdPass:
		if !m.myTurn() {
			m.status = ErrorStyle.Render("Not your turn")
			return false
		}
	}
	if cmd.Kind == CmdPlay {
		if !m.view.Hand.Contains(cmd.Tile) {
			m.status = ErrorStyle.Render(fmt.Sprintf("%s is not in your hand", cmd.Tile))
			return false
		}
		if cmd, err = ResolvePlacement(cmd, m.view.BoardEnds); err != nil {
			m.status = ErrorStyle.Render(err.Error())
			return false
		}
	}
	m.status = ""
	m.send(cmd)
	return false
}

func (m *Model) send(cmd Command) {
	if m.submit != nil {
		m.submit(cmd)
	}
}

// boardArea returns the columns and rows left for the board.
func (m *Model) boardArea() (cols, rows int) {
	return max(m.width-sidebarWidth-4, 1), max(m.height/2, 1)
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	board := InfoStyle.Render("Waiting for players...")
	if m.view != nil && len(m.view.Layout) > 0 {
		board = RenderBoard(m.view.Layout, m.view.Canvas)
	}

	action := m.renderActionPane()
	mainWidth := max(m.width-sidebarWidth-4, 1)
	logHeight := max(m.height-lipgloss.Height(board)-lipgloss.Height(action)-4, 1)
	m.logViewport.Width = mainWidth
	m.logViewport.Height = logHeight

	logPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(mainWidth).
		Height(logHeight).
		Render(m.logViewport.View())

	sidebar := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(sidebarWidth).
		Render(m.renderSidebar())

	left := lipgloss.JoinVertical(lipgloss.Left, board, logPane)
	top := lipgloss.JoinHorizontal(lipgloss.Top, left, sidebar)
	return lipgloss.JoinVertical(lipgloss.Left, top, action)
}

func (m *Model) renderSidebar() string {
	if m.view == nil {
		return InfoStyle.Render("Not seated")
	}
	v := m.view
	var b strings.Builder
	b.WriteString(HeaderStyle.Render(v.RoomName))
	b.WriteString("\n")
	b.WriteString(InfoStyle.Render(fmt.Sprintf("%s %s to %d", v.Variant, v.Mode, v.ScoreToWin)))
	b.WriteString("\n")
	if v.RoomCode != "" {
		b.WriteString(WarningStyle.Render("Code: " + v.RoomCode))
		b.WriteString("\n")
	}
	if v.Bet != nil {
		b.WriteString(WarningStyle.Render(fmt.Sprintf("Pot: %.2f %s", v.Pot, v.Bet.Currency)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for _, s := range v.Seats {
		marker := "  "
		if s.ID == v.CurrentSeatID {
			marker = "▶ "
		}
		state := fmt.Sprintf("%d tiles", s.Tiles)
		switch {
		case s.Deserted:
			state = "deserted"
		case !s.IsConnected && !s.IsAI:
			state += ", away"
		}
		name := s.ID
		if s.ID == m.seatID {
			name += " (you)"
		}
		style := PlayerInfoStyle
		if s.ID == v.HostID {
			style = style.Underline(true)
		}
		b.WriteString(marker + style.Render(name))
		b.WriteString("\n")
		b.WriteString(InfoStyle.Render("    " + state))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	teams := make([]string, 0, len(v.TeamScores))
	for team := range v.TeamScores {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	for _, team := range teams {
		b.WriteString(fmt.Sprintf("Team %s: %d\n", team, v.TeamScores[team]))
	}
	b.WriteString(InfoStyle.Render(fmt.Sprintf("Boneyard: %d", v.Boneyard)))
	return b.String()
}

func (m *Model) renderActionPane() string {
	var b strings.Builder
	if m.view != nil {
		ends := m.view.BoardEnds
		b.WriteString(HandInfoStyle.Render("Hand: "))
		b.WriteString(RenderHand(m.view.Hand, ends, len(m.view.Board) == 0))
		if len(m.view.Board) > 0 {
			b.WriteString(InfoStyle.Render(fmt.Sprintf("   ends %d/%d", ends[0], ends[1])))
		}
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(InfoStyle.Render("Enter to submit • PgUp/PgDn scroll log • Ctrl+C to quit"))
	return b.String()
}

// AddLogEntry adds an entry to the game log
func (m *Model) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// Log returns the game log lines.
func (m *Model) Log() []string {
	return append([]string(nil), m.gameLog...)
}

// Status returns the line shown above the input.
func (m *Model) Status() string {
	return m.status
}
