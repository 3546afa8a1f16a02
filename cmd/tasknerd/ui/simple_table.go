package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// maxCellWidth caps a column so long descriptions do not wrap the table.
const maxCellWidth = 40

// SimpleTable renders rows of static text as aligned columns.
type SimpleTable struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// NewSimpleTable creates a new SimpleTable with the given title and headers.
func NewSimpleTable(title string, headers ...string) *SimpleTable {
	return &SimpleTable{Title: title, Headers: headers}
}

// AddRow adds a row; missing cells render empty, extra cells are dropped.
func (t *SimpleTable) AddRow(cells ...string) {
	row := make([]string, len(t.Headers))
	for i := range row {
		if i < len(cells) {
			row[i] = truncate(cells[i], maxCellWidth)
		}
	}
	t.Rows = append(t.Rows, row)
}

// View renders the table using the provided styles. An empty table
// renders as the empty string.
func (t *SimpleTable) View(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	header := styles.Bold.Copy().Padding(0, 1)
	cell := styles.Body.Copy().Padding(0, 1)
	sep := styles.Muted.Render("│")

	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	line := func(style lipgloss.Style, cells []string) {
		for i, c := range cells {
			if i > 0 {
				sb.WriteString(sep)
			}
			sb.WriteString(style.Width(widths[i] + 2).Render(c))
		}
		sb.WriteString("\n")
	}

	line(header, t.Headers)
	total := len(widths) - 1
	for _, w := range widths {
		total += w + 2
	}
	sb.WriteString(styles.RenderDivider(total))
	sb.WriteString("\n")
	for _, row := range t.Rows {
		line(cell, row)
	}
	return sb.String()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
