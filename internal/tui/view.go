package tui

import (
	"fmt"
	"strings"

	"ipreporter/internal/session"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	listeningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	stoppedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB347"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (m ReporterModel) View() string {
	headerText := "IP Reporter"
	if m.sourceName != "" {
		headerText += fmt.Sprintf(" - Source: %s", m.sourceName)
	}
	title := titleStyle.Render(headerText)

	status := stoppedStyle.Render(m.status)
	if m.state == session.Listening {
		status = listeningStyle.Render(m.status)
	}

	// Session panel
	sessionInfo := fmt.Sprintf("Status: %s\nFrames: %d (%s)\nMatches: %d (%s)\nTimeouts: %d  Read errors: %d\nSessions: %d",
		status,
		m.counters.FramesRead, formatRate(m.fps),
		m.counters.Matches, formatRate(m.mps),
		m.counters.Timeouts, m.counters.ReadErrors,
		m.counters.Sessions)
	sessionBox := infoStyle.Render(sessionInfo)

	// Senders
	senderLines := []string{fmt.Sprintf("Distinct senders: %d", m.distinct)}
	for _, s := range m.top {
		senderLines = append(senderLines, fmt.Sprintf("%s  %s  x%d", s.IP, s.MAC, s.Matches))
	}
	if len(m.top) == 0 {
		senderLines = append(senderLines, "Waiting for data...")
	}
	senderBox := infoStyle.Render(strings.Join(senderLines, "\n"))

	recordsBox := infoStyle.Render("Reported Devices\n" + m.table.View())

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, sessionBox, senderBox)
	body := lipgloss.JoinVertical(lipgloss.Left, title, row1, recordsBox)

	if m.exporting {
		body += "\n" + m.input.View() + "\n" + helpStyle.Render("enter: export  esc: cancel")
		return body
	}
	if m.errMsg != "" {
		body += "\n" + errorStyle.Render("Error: "+m.errMsg)
	}

	return body + "\n" + helpStyle.Render("s: start/stop  e: export  enter: open device  q: quit")
}

func formatRate(perSecond float64) string {
	if perSecond >= 1e3 {
		return fmt.Sprintf("%.2fk/s", perSecond/1e3)
	}
	return fmt.Sprintf("%.2f/s", perSecond)
}
