package widgets

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/offerforge/pkg/tui/styles"
)

type Key struct {
	Key   string
	Label string
}

// TitleBar is the top line of every screen followed by a rule.
type TitleBar struct {
	Title   string
	Status  string
	OK      bool
	Elapsed time.Duration
	Width   int
}

func (t TitleBar) Render(theme styles.Theme) string {
	left := lipgloss.NewStyle().Bold(true).Foreground(theme.Fg).Background(theme.Accent).Padding(0, 1).Render(t.Title)
	if t.Status != "" {
		dot := theme.Done
		if !t.OK {
			dot = theme.Failed
		}
		left += "  " + dot.Render(styles.IconSystem) + " " + theme.Heading.UnsetBold().Render(t.Status)
	}
	right := ""
	if t.Elapsed > 0 {
		right = theme.Faint.Render("elapsed " + t.Elapsed.Round(time.Second).String())
	}
	gap := max(1, t.Width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right + "\n" + rule(t.Width, theme)
}

// KeyHints is the bottom rule with the key hints centered under it.
func KeyHints(keys []Key, width int, theme styles.Theme) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, theme.Key.Render("["+k.Key+"]")+theme.Faint.Render(" "+k.Label))
	}
	line := strings.Join(parts, "  ")
	pad := max(0, (width-lipgloss.Width(line))/2)
	return rule(width, theme) + "\n" + strings.Repeat(" ", pad) + line
}

func rule(width int, theme styles.Theme) string {
	if width <= 0 {
		width = 80
	}
	return lipgloss.NewStyle().Foreground(theme.Quiet).Render(strings.Repeat("━", width))
}

// Meter draws percent as a bar of width cells followed by the number. The bar
// turns to the done color at 100.
func Meter(percent, width int, theme styles.Theme) string {
	percent = min(100, max(0, percent))
	width = max(5, width)
	filled := width * percent / 100
	style := theme.Running
	if percent == 100 {
		style = theme.Done
	}
	bar := style.Render(strings.Repeat("█", filled)) + theme.Pending.Render(strings.Repeat("░", width-filled))
	return bar + " " + lipgloss.NewStyle().Width(4).Align(lipgloss.Right).Render(strconv.Itoa(percent)+"%")
}
