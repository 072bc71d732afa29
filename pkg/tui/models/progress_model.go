package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/go-go-golems/offerforge/pkg/tui/styles"
	"github.com/go-go-golems/offerforge/pkg/tui/widgets"
)

// ProgressModel shows a run in flight and the continue/halt prompt after a failure.
type ProgressModel struct {
	spinner spinner.Model
	width   int
}

func NewProgressModel() ProgressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.DefaultTheme().Running
	return ProgressModel{spinner: sp}
}

func (m ProgressModel) Init() tea.Cmd { return m.spinner.Tick }

func (m ProgressModel) WithSize(width int) ProgressModel {
	m.width = width
	return m
}

func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m ProgressModel) View(state RunState) string {
	theme := styles.DefaultTheme()
	width := m.width
	if width <= 0 {
		width = 80
	}

	bar := widgets.Meter(state.Progress, maxInt(10, width-12), theme)

	var lines []string
	for _, s := range state.Steps {
		if !s.Enabled {
			continue
		}
		icon := theme.Pending.Render(styles.StepIcon(string(s.Status), true))
		detail := theme.Faint.Render(s.Description)
		switch s.Status {
		case runner.StatusRunning:
			icon = m.spinner.View()
			detail = theme.Running.Render("working…")
		case runner.StatusDone:
			icon = theme.Done.Render(styles.IconSuccess)
			detail = s.Summary
		case runner.StatusFailed:
			icon = theme.Failed.Render(styles.IconError)
			detail = theme.Failed.Render(s.Error)
		}
		title := lipgloss.NewStyle().Width(22).Render(s.Title)
		lines = append(lines, fmt.Sprintf("%s %s %s", icon, title, detail))
	}

	status := "running"
	switch {
	case state.Awaiting != nil:
		status = "waiting for a decision"
	case state.Finished != nil:
		status = string(state.Finished.State)
	}
	panel := widgets.Panel{
		Title: "Progress",
		Hint:  status,
		Body:  bar + "\n\n" + strings.Join(lines, "\n"),
		Width: width,
	}
	sections := []string{panel.Render(theme)}
	if a := state.Awaiting; a != nil {
		prompt := fmt.Sprintf("%s failed: %s\n[c] continue with the next step   [h] halt", a.Title, a.Error)
		sections = append(sections, theme.Alert.Render(prompt))
	} else if f := state.Finished; f != nil && f.State != runner.OutcomeCompleted {
		sections = append(sections, theme.Faint.Render("Run stopped. [r] reset to start over."))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
