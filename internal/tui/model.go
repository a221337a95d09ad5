// Package tui is a terminal front end for a directory session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/terminally-online/warden/internal/directory"
	"github.com/terminally-online/warden/internal/session"
)

const (
	refreshInterval = 250 * time.Millisecond
	chromeHeight    = 9
	minRows         = 3
	lastLoginLayout = "2006-01-02 15:04"
)

// Session is the part of session.Session the view drives.
type Session interface {
	Mount(ctx context.Context) error
	LoadDirectory(ctx context.Context) error
	SetSearchQuery(query string)
	ToggleBan(ctx context.Context, id string, banned bool) (session.Outcome, error)
	State() session.State
	Dismiss(id string) bool
}

type loadedMsg struct{ err error }

type toggledMsg struct {
	outcome session.Outcome
	err     error
}

type tickMsg time.Time

type Model struct {
	ctx     context.Context
	session Session
	keys    KeyMap
	help    help.Model
	search  textinput.Model

	state  session.State
	cursor int
	offset int
	width  int
	height int
}

func New(ctx context.Context, sess Session) Model {
	search := textinput.New()
	search.Placeholder = "Search by email or name"
	search.Prompt = "/ "
	search.Focus()

	return Model{
		ctx:     ctx,
		session: sess,
		keys:    DefaultKeyMap,
		help:    help.New(),
		search:  search,
		state:   sess.State(),
		height:  24,
	}
}

// Run shows the directory until the user quits or ctx ends.
func Run(ctx context.Context, sess Session) error {
	_, err := tea.NewProgram(New(ctx, sess), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.mount(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) mount() tea.Cmd {
	sess, ctx := m.session, m.ctx
	return func() tea.Msg { return loadedMsg{err: sess.Mount(ctx)} }
}

func (m Model) reload() tea.Cmd {
	sess, ctx := m.session, m.ctx
	return func() tea.Msg { return loadedMsg{err: sess.LoadDirectory(ctx)} }
}

func (m Model) toggle(u directory.User) tea.Cmd {
	sess, ctx := m.session, m.ctx
	banned := u.Status != directory.StatusBanned
	return func() tea.Msg {
		out, err := sess.ToggleBan(ctx, u.ID, banned)
		return toggledMsg{outcome: out, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.search.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case loadedMsg, toggledMsg:
		// Failures are already in the session state or its notifications.
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.moveCursor(-1)
			return m, nil
		case key.Matches(msg, m.keys.Down):
			m.moveCursor(1)
			return m, nil
		case key.Matches(msg, m.keys.Reload):
			return m, m.reload()
		case key.Matches(msg, m.keys.Dismiss):
			if n := len(m.state.Notifications); n > 0 {
				m.session.Dismiss(m.state.Notifications[n-1].ID)
				m.refresh()
			}
			return m, nil
		case key.Matches(msg, m.keys.ToggleBan):
			u, ok := m.selected()
			if !ok || m.inFlight(u.ID) {
				return m, nil
			}
			return m, m.toggle(u)
		}
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != before {
		m.session.SetSearchQuery(m.search.Value())
		m.cursor, m.offset = 0, 0
		m.refresh()
	}
	return m, cmd
}

func (m *Model) refresh() {
	m.state = m.session.State()
	m.clamp()
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.clamp()
}

func (m *Model) clamp() {
	n := len(m.state.Filtered)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	if m.offset > max(n-rows, 0) {
		m.offset = max(n-rows, 0)
	}
}

func (m Model) visibleRows() int {
	return max(m.height-chromeHeight-len(m.state.Notifications), minRows)
}

func (m Model) selected() (directory.User, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Filtered) {
		return directory.User{}, false
	}
	return m.state.Filtered[m.cursor], true
}

func (m Model) inFlight(id string) bool {
	for _, busy := range m.state.InFlight {
		if busy == id {
			return true
		}
	}
	return false
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("warden · user directory"))
	b.WriteString("\n")
	b.WriteString(m.search.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	if len(m.state.Filtered) == 0 {
		b.WriteString(mutedStyle.Render(m.emptyText()))
		b.WriteString("\n")
	} else {
		b.WriteString(headerStyle.Render(fmt.Sprintf("  %-32s %-24s %-8s %s", "EMAIL", "NAME", "STATUS", "LAST LOGIN")))
		b.WriteString("\n")
		end := min(m.offset+m.visibleRows(), len(m.state.Filtered))
		for i := m.offset; i < end; i++ {
			b.WriteString(m.row(i))
			b.WriteString("\n")
		}
	}

	for _, n := range m.state.Notifications {
		style := severityStyles[n.Severity]
		b.WriteString(style.Render("● " + n.Message))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) statusLine() string {
	total := len(m.state.Users)
	shown := len(m.state.Filtered)

	switch m.state.CacheStatus {
	case directory.LoadIdle, directory.LoadLoading:
		return mutedStyle.Render("Loading users…")
	case directory.LoadFailed:
		return errorStyle.Render(fmt.Sprintf("Failed to load users: %s (C-r to retry)", m.state.Err))
	}
	return mutedStyle.Render(fmt.Sprintf("%d of %d users", shown, total))
}

func (m Model) emptyText() string {
	if m.state.CacheStatus == directory.LoadSucceeded && m.state.Query != "" {
		return "No users match the search."
	}
	if m.state.CacheStatus == directory.LoadSucceeded {
		return "No users found."
	}
	return ""
}

func (m Model) row(i int) string {
	u := m.state.Filtered[i]

	marker := "  "
	if m.inFlight(u.ID) {
		marker = "⟳ "
	}
	line := fmt.Sprintf("%s%-32s %-24s ", marker, truncate(u.Email, 32), truncate(u.FullName, 24))
	line += badge(u.Status) + " " + formatLastLogin(u.LastLogin)

	if i == m.cursor {
		return cursorStyle.Render(line)
	}
	return line
}

func formatLastLogin(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(lastLoginLayout)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
