package widgets

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/offerforge/pkg/tui/styles"
)

type ChecklistItem struct {
	Title   string
	Detail  string
	Checked bool
}

// Checklist renders items as checkbox lines with a cursor. Unchecked items are struck
// through.
type Checklist struct {
	Items      []ChecklistItem
	Cursor     int
	TitleWidth int
	Width      int
}

func (c Checklist) Render(theme styles.Theme) string {
	if len(c.Items) == 0 {
		return theme.Faint.Render("no steps")
	}
	tw := c.TitleWidth
	if tw <= 0 {
		tw = 22
	}
	lines := make([]string, 0, len(c.Items))
	for i, it := range c.Items {
		marker := "  "
		if i == c.Cursor {
			marker = theme.Key.Render("› ")
		}
		box := theme.Done.Render(styles.ToggleIcon(it.Checked))
		text, detail := theme.Heading.UnsetBold(), theme.Faint
		if !it.Checked {
			box = theme.Pending.Render(styles.ToggleIcon(false))
			text, detail = theme.Struck, theme.Struck
		}
		line := marker + box + " " + text.Width(tw).Render(Truncate(it.Title, tw))
		if it.Detail != "" {
			room := c.Width - tw - 6
			if c.Width <= 0 {
				room = 0
			}
			line += " " + detail.Render(Truncate(it.Detail, room))
		}
		if i == c.Cursor && c.Width > 0 {
			line = theme.Selected.Width(c.Width).Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Count reports how many items are checked.
func (c Checklist) Count() int {
	n := 0
	for _, it := range c.Items {
		if it.Checked {
			n++
		}
	}
	return n
}
