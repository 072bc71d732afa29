package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/go-go-golems/offerforge/pkg/tui/styles"
	"github.com/go-go-golems/offerforge/pkg/tui/widgets"
)

type CompleteModel struct {
	width int
}

func NewCompleteModel() CompleteModel { return CompleteModel{} }

func (m CompleteModel) WithSize(width int) CompleteModel {
	m.width = width
	return m
}

func (m CompleteModel) View(state RunState) string {
	theme := styles.DefaultTheme()
	width := m.width
	if width <= 0 {
		width = 80
	}

	var total time.Duration
	var lines []string
	for _, s := range state.Steps {
		if s.Status != runner.StatusDone {
			continue
		}
		total += time.Duration(s.DurationMs) * time.Millisecond
		title := lipgloss.NewStyle().Width(22).Bold(true).Render(s.Title)
		lines = append(lines, fmt.Sprintf("%s %s %s", theme.Done.Render(styles.IconSuccess), title, s.Summary))
	}

	head := theme.Done.Bold(true).Render(fmt.Sprintf("All steps finished in %s.", total.Round(time.Millisecond)))
	return widgets.Panel{
		Title: "Complete",
		Hint:  "[r] new run",
		Body:  head + "\n\n" + strings.Join(lines, "\n"),
		Width: width,
	}.Render(theme)
}
