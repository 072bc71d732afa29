package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/go-go-golems/offerforge/pkg/tui/styles"
	"github.com/pkg/errors"
)

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal output")
	}
	_, _ = fmt.Fprintln(w, string(b))
	return nil
}

func renderTable(headers []string, rows [][]string) string {
	theme := styles.DefaultTheme()
	headerStyle := lipgloss.NewStyle().Foreground(theme.Accent).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddStyle := cellStyle.Foreground(theme.FgDim)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Quiet)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return cellStyle
			default:
				return oddStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

type pair struct {
	key   string
	value string
}

func kv(key, value string) pair { return pair{key: key, value: value} }

// keyValues renders aligned "key: value" lines.
func keyValues(pairs ...pair) string {
	width := 0
	for _, p := range pairs {
		width = max(width, len(p.key))
	}
	label := styles.DefaultTheme().Faint
	var sb strings.Builder
	for _, p := range pairs {
		sb.WriteString(label.Render(fmt.Sprintf("%-*s", width+1, p.key+":")) + " " + p.value + "\n")
	}
	return sb.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
