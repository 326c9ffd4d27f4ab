package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// diffStyles colors each line kind; on a plain writer no color is emitted
type diffStyles struct {
	unchanged lipgloss.Style
	changed   lipgloss.Style
	added     lipgloss.Style
	removed   lipgloss.Style
}

func newDiffStyles(w io.Writer) diffStyles {
	r := lipgloss.NewRenderer(w)
	base := r.NewStyle().TabWidth(lipgloss.NoTabConversion)
	return diffStyles{
		unchanged: base.Foreground(lipgloss.Color("#B0B0B0")),
		changed:   base.Foreground(lipgloss.Color("#E6D7A3")),
		added:     base.Foreground(lipgloss.Color("#A8E6A3")),
		removed:   base.Foreground(lipgloss.Color("#E6A3A3")),
	}
}

// lineSymbol returns the marker printed before a line of kind k
func lineSymbol(k LineKind) string {
	switch k {
	case Changed:
		return "~"
	case Added:
		return "+"
	case Removed:
		return "-"
	default:
		return " "
	}
}

// renderDiff writes one marked line per diff line
func renderDiff(w io.Writer, lines []DiffLine) error {
	styles := newDiffStyles(w)
	var b strings.Builder
	for _, line := range lines {
		text := lineSymbol(line.Kind) + " " + line.Text
		switch line.Kind {
		case Changed:
			text = styles.changed.Render(text)
		case Added:
			text = styles.added.Render(text)
		case Removed:
			text = styles.removed.Render(text)
		default:
			text = styles.unchanged.Render(text)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// renderStats writes a one-line summary of a diff
func renderStats(w io.Writer, path string, lines []DiffLine) error {
	s := Stats(lines)
	_, err := fmt.Fprintf(w, "%s: %d changed, %d added, %d removed, %d unchanged\n", path, s.Changed, s.Added, s.Removed, s.Unchanged)
	return err
}
