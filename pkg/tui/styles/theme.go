package styles

import "github.com/charmbracelet/lipgloss"

// Theme is the OfferForge palette and the styles derived from it.
type Theme struct {
	Accent  lipgloss.Color
	Good    lipgloss.Color
	Caution lipgloss.Color
	Bad     lipgloss.Color
	Quiet   lipgloss.Color
	Fg      lipgloss.Color
	FgDim   lipgloss.Color

	Heading  lipgloss.Style
	Faint    lipgloss.Style
	Key      lipgloss.Style
	Selected lipgloss.Style
	Struck   lipgloss.Style
	Done     lipgloss.Style
	Running  lipgloss.Style
	Failed   lipgloss.Style
	Pending  lipgloss.Style
	// Alert frames the continue/halt question after a failed step.
	Alert lipgloss.Style
}

func DefaultTheme() Theme {
	t := Theme{
		Accent:  lipgloss.Color("#7C3AED"),
		Good:    lipgloss.Color("#10B981"),
		Caution: lipgloss.Color("#F59E0B"),
		Bad:     lipgloss.Color("#F43F5E"),
		Quiet:   lipgloss.Color("#64748B"),
		Fg:      lipgloss.Color("#F8FAFC"),
		FgDim:   lipgloss.Color("#94A3B8"),
	}
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	t.Heading = fg(t.Fg).Bold(true)
	t.Faint = fg(t.FgDim)
	t.Key = fg(t.Accent).Bold(true)
	t.Selected = fg(t.Fg).Bold(true).Background(lipgloss.Color("#334155"))
	t.Struck = fg(t.Quiet).Strikethrough(true)
	t.Done = fg(t.Good)
	t.Running = fg(t.Caution)
	t.Failed = fg(t.Bad)
	t.Pending = fg(t.Quiet)
	t.Alert = fg(t.Bad).Bold(true).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Bad).
		Padding(0, 1)
	return t
}
