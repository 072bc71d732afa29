package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/offerforge/pkg/tui"
	"github.com/go-go-golems/offerforge/pkg/tui/styles"
	"github.com/go-go-golems/offerforge/pkg/tui/widgets"
)

const maxLogEntries = 500

var levelOrder = []tui.LogLevel{tui.LogLevelDebug, tui.LogLevelInfo, tui.LogLevelWarn, tui.LogLevelError}

func levelRank(l tui.LogLevel) int {
	for i, v := range levelOrder {
		if v == l {
			return i
		}
	}
	return 1
}

// logFilter keeps entries at or above minLevel whose text or source contains needle.
type logFilter struct {
	minLevel tui.LogLevel
	needle   string
}

func (f logFilter) keep(e tui.EventLogEntry) bool {
	if f.minLevel != "" && levelRank(e.Level) < levelRank(f.minLevel) {
		return false
	}
	if f.needle == "" {
		return true
	}
	n := strings.ToLower(f.needle)
	return strings.Contains(strings.ToLower(e.Text), n) || strings.Contains(strings.ToLower(e.Source), n)
}

func (f logFilter) describe() string {
	var parts []string
	if f.minLevel != "" {
		parts = append(parts, "≥"+string(f.minLevel))
	}
	if f.needle != "" {
		parts = append(parts, fmt.Sprintf("%q", f.needle))
	}
	return strings.Join(parts, " ")
}

// EventLogModel is the scrollable tab of everything the run reported.
type EventLogModel struct {
	entries []tui.EventLogEntry
	filter  logFilter

	input   textinput.Model
	editing bool

	vp     viewport.Model
	width  int
	height int
}

func NewEventLogModel() EventLogModel {
	in := textinput.New()
	in.Prompt = "/ "
	in.Placeholder = "text or step"
	in.CharLimit = 120
	return EventLogModel{input: in, vp: viewport.New(0, 0)}
}

func (m EventLogModel) Len() int { return len(m.entries) }

func (m EventLogModel) WithSize(width, height int) EventLogModel {
	m.width, m.height = width, height
	m.vp.Width = maxInt(0, width-2)
	m.vp.Height = maxInt(3, height-4)
	return m.render(false)
}

func (m EventLogModel) Append(e tui.EventLogEntry) EventLogModel {
	if e.Level == "" {
		e.Level = tui.LogLevelInfo
	}
	m.entries = append(m.entries, e)
	if over := len(m.entries) - maxLogEntries; over > 0 {
		m.entries = append([]tui.EventLogEntry(nil), m.entries[over:]...)
	}
	return m.render(true)
}

func (m EventLogModel) Update(msg tea.Msg) (EventLogModel, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.editing {
		switch k.String() {
		case "enter", "esc":
			if k.String() == "enter" {
				m.filter.needle = strings.TrimSpace(m.input.Value())
			}
			m.editing = false
			m.input.Blur()
			return m.render(true), nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(k)
		return m, cmd
	}

	switch k.String() {
	case "/":
		m.editing = true
		m.input.SetValue(m.filter.needle)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case "l":
		m.filter.minLevel = nextLevel(m.filter.minLevel)
		return m.render(true), nil
	case "ctrl+l":
		m.filter = logFilter{}
		return m.render(true), nil
	case "g":
		m.vp.GotoTop()
		return m, nil
	case "G":
		m.vp.GotoBottom()
		return m, nil
	case "enter":
		return m, nil
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(k)
	return m, cmd
}

// nextLevel cycles the threshold: none, info, warn, error, none.
func nextLevel(cur tui.LogLevel) tui.LogLevel {
	switch cur {
	case "":
		return tui.LogLevelInfo
	case tui.LogLevelInfo:
		return tui.LogLevelWarn
	case tui.LogLevelWarn:
		return tui.LogLevelError
	default:
		return ""
	}
}

func (m EventLogModel) render(follow bool) EventLogModel {
	theme := styles.DefaultTheme()
	var b strings.Builder
	for _, e := range m.entries {
		if !m.filter.keep(e) {
			continue
		}
		style := theme.Faint
		switch e.Level {
		case tui.LogLevelError:
			style = theme.Failed
		case tui.LogLevelWarn:
			style = lipgloss.NewStyle().Foreground(theme.Caution)
		case tui.LogLevelDebug:
			style = theme.Pending
		}
		source := e.Source
		if source == "" {
			source = "runner"
		}
		fmt.Fprintf(&b, "%s %s %s %s\n",
			style.Render(styles.LogLevelIcon(string(e.Level))),
			theme.Faint.Render(e.At.Format("15:04:05")),
			theme.Faint.Width(10).Render(source),
			style.Render(e.Text))
	}
	m.vp.SetContent(b.String())
	if follow {
		m.vp.GotoBottom()
	}
	return m
}

func (m EventLogModel) View() string {
	theme := styles.DefaultTheme()
	hint := "[/] find  [l] level  [g/G] top/bottom"
	if d := m.filter.describe(); d != "" {
		hint = d + "  " + hint
	}
	body := m.vp.View()
	if len(m.entries) == 0 {
		body = theme.Faint.Render("nothing reported yet")
	}
	panel := widgets.Panel{
		Title: fmt.Sprintf("Events (%d)", len(m.entries)),
		Hint:  hint,
		Body:  body,
		Width: m.width,
	}.Render(theme)
	if m.editing {
		return lipgloss.JoinVertical(lipgloss.Left, m.input.View(), panel)
	}
	return panel
}
