package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/offerforge/pkg/engine"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/go-go-golems/offerforge/pkg/tui/styles"
	"github.com/go-go-golems/offerforge/pkg/tui/widgets"
)

// ConfigModel is the screen before a run: the brief and the step checklist.
type ConfigModel struct {
	brief   engine.Brief
	backend string
	cursor  int
	width   int
}

func NewConfigModel(brief engine.Brief, backend string) ConfigModel {
	return ConfigModel{brief: brief, backend: backend}
}

func (m ConfigModel) WithSize(width int) ConfigModel {
	m.width = width
	return m
}

func (m ConfigModel) Move(delta int, steps int) ConfigModel {
	m.cursor = clampInt(m.cursor+delta, 0, maxInt(0, steps-1))
	return m
}

func (m ConfigModel) Selected(state RunState) (runner.StepID, bool) {
	if len(state.Steps) == 0 {
		return "", false
	}
	return state.Steps[clampInt(m.cursor, 0, len(state.Steps)-1)].ID, true
}

func (m ConfigModel) View(state RunState) string {
	theme := styles.DefaultTheme()
	width := m.width
	if width <= 0 {
		width = 80
	}

	b := m.brief
	var lines []string
	row := func(label, value string) {
		lines = append(lines, theme.Faint.Render(fmt.Sprintf("%-12s", label))+" "+value)
	}
	row("Project", b.Name())
	row("Niche", b.Niche)
	row("Promise", b.Promise)
	row("Price", fmt.Sprintf("%s %s", b.Currency, strconv.FormatFloat(b.TargetPrice, 'f', -1, 64)))
	row("Avatar", fmt.Sprintf("%s (%s)", b.AvatarName, b.AgeRange))
	pr := b.PainResearch()
	row("Research", fmt.Sprintf("%d pain points, %d reviews, %d faqs", len(pr.PainPoints), len(pr.Reviews), len(pr.FAQs)))
	if m.backend != "" {
		row("Backend", m.backend)
	}
	brief := widgets.Panel{Title: "Brief", Body: strings.Join(lines, "\n"), Width: width}

	list := widgets.Checklist{
		Cursor: clampInt(m.cursor, 0, maxInt(0, len(state.Steps)-1)),
		Width:  width - 4,
	}
	for _, s := range state.Steps {
		list.Items = append(list.Items, widgets.ChecklistItem{Title: s.Title, Detail: s.Description, Checked: s.Enabled})
	}
	steps := widgets.Panel{
		Title: fmt.Sprintf("Steps (%d enabled)", list.Count()),
		Hint:  "[space] toggle  [enter] start",
		Body:  list.Render(theme),
		Width: width,
	}
	return lipgloss.JoinVertical(lipgloss.Left, brief.Render(theme), steps.Render(theme))
}
