package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/statistics"
	"github.com/lox/dominoes/internal/tui"
)

var labelStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#626262")).
	Width(14)

func field(label string, value any) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), fmt.Sprint(value))
}

// renderRound summarises a finished round below its board.
func renderRound(m *game.Match) string {
	lines := []string{
		field("Variant", fmt.Sprintf("%s %s", m.Variant, m.Mode)),
		field("Tiles played", len(m.Board)),
		field("Boneyard", len(m.Boneyard)),
	}
	if r := m.RoundWinner; r != nil {
		winner := fmt.Sprintf("team %s by %s", r.Team, r.Method)
		if r.SeatID != "" {
			winner = fmt.Sprintf("%s (%s)", winner, r.SeatID)
		}
		lines = append(lines, field("Winner", winner), field("Points", r.Score))
	}
	for _, id := range m.SeatIDs() {
		lines = append(lines, field(id, m.Hands[id].String()))
	}
	return strings.Join(lines, "\n")
}

// renderStats prints simulation results in the terminal report layout.
func renderStats(stats *statistics.Statistics, title string) string {
	low, high := stats.ConfidenceInterval95()
	lines := []string{
		tui.HeaderStyle.Render(title),
		"",
		field("Matches", stats.Matches),
		field("Win rate", fmt.Sprintf("%.1f%%", stats.WinRate()*100)),
		field("Mean margin", fmt.Sprintf("%.2f ± %.2f SE", stats.Mean(), stats.StdError())),
		field("95% CI", fmt.Sprintf("[%.2f, %.2f]", low, high)),
		field("Median", fmt.Sprintf("%.1f", stats.Median())),
		field("Percentiles", fmt.Sprintf("P5=%.1f P25=%.1f P75=%.1f P95=%.1f",
			stats.Percentile(0.05), stats.Percentile(0.25), stats.Percentile(0.75), stats.Percentile(0.95))),
		"",
		field("Rounds", fmt.Sprintf("%d (%.2f per match)", stats.Rounds, float64(stats.Rounds)/float64(max(stats.Matches, 1)))),
		field("Rounds won", stats.RoundsWon),
		field("Domino", stats.DominoRounds),
		field("Blocked", stats.BlockedRounds),
		"",
	}

	for pos, ps := range stats.PositionResults {
		if ps.Matches == 0 {
			continue
		}
		lines = append(lines, field(fmt.Sprintf("Seat %d", pos+1),
			fmt.Sprintf("%d matches, %d wins, %.2f mean margin", ps.Matches, ps.Wins, stats.PositionMean(pos))))
	}

	status := tui.SuccessStyle.Render("✓ statistics consistent")
	if err := stats.Validate(); err != nil {
		status = tui.ErrorStyle.Render("✗ " + err.Error())
	}
	lines = append(lines, "", status)
	return strings.Join(lines, "\n")
}
