package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const uiDivider = "──────────────────────────────────────────────────────"

// renderPage frames data between a title and an optional footer line.
func renderPage(title, data, footer string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(uiDivider))
	b.WriteString("\n")

	if strings.TrimSpace(data) != "" {
		b.WriteString(data)
		b.WriteString("\n")
	} else {
		b.WriteString("  -\n")
	}

	if strings.TrimSpace(footer) != "" {
		b.WriteString(helpStyle.Render(uiDivider))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(footer))
		b.WriteString("\n")
	}

	return b.String()
}

// renderTable lays out rows in left-aligned columns sized to their widest
// cell. The first row is the header.
func renderTable(rows [][]string, styles [][]lipgloss.Style) string {
	if len(rows) == 0 {
		return ""
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	lines := make([]string, 0, len(rows))
	for r, row := range rows {
		cells := make([]string, 0, len(row))
		for i, cell := range row {
			style := cellStyle
			if r < len(styles) && i < len(styles[r]) {
				style = styles[r][i].Inherit(cellStyle)
			}
			cells = append(cells, style.Width(widths[i]+cellStyle.GetPaddingRight()).Render(cell))
		}
		lines = append(lines, "  "+lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(lines, "\n")
}
