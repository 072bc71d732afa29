// Package widgets holds the small render helpers the OfferForge screens share.
// Every widget is a value rendered against a styles.Theme.
package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/offerforge/pkg/tui/styles"
)

// Panel is a rounded frame whose first line carries a title and a right-aligned hint.
type Panel struct {
	Title string
	Hint  string
	Body  string
	// Width is the outer width; zero fits the frame to its content.
	Width int
}

func (p Panel) Render(theme styles.Theme) string {
	frame := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Quiet).
		Padding(0, 1)

	head := theme.Heading.Render(p.Title)
	if p.Hint != "" {
		hint := theme.Faint.Render(p.Hint)
		gap := 2
		if p.Width > 0 {
			gap = max(1, p.Width-4-lipgloss.Width(head)-lipgloss.Width(hint))
		}
		head += strings.Repeat(" ", gap) + hint
	}
	if p.Width > 0 {
		frame = frame.Width(max(0, p.Width-2))
	}
	if p.Body == "" {
		return frame.Render(head)
	}
	return frame.Render(head + "\n" + p.Body)
}

// Truncate cuts s to n cells, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
