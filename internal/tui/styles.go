package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/terminally-online/warden/internal/directory"
	"github.com/terminally-online/warden/internal/session"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	cursorStyle = lipgloss.NewStyle().Reverse(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	badgeBase = lipgloss.NewStyle().Padding(0, 1).Bold(true)

	statusBadges = map[directory.Status]lipgloss.Style{
		directory.StatusActive:  badgeBase.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("42")),
		directory.StatusBanned:  badgeBase.Foreground(lipgloss.Color("15")).Background(lipgloss.Color("160")),
		directory.StatusPending: badgeBase.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("220")),
	}

	severityStyles = map[session.Severity]lipgloss.Style{
		session.SeveritySuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		session.SeverityError:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		session.SeverityInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	}
)

func badge(status directory.Status) string {
	style, ok := statusBadges[status]
	if !ok {
		style = badgeBase
	}
	return style.Render(string(status))
}
