// Package render writes structured texts for human review.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/coolbeans/normtree/pkg/text"
)

const maxHeadingLevel = 6

// Markdown writes t as a Markdown document. Node depth gives the heading
// level, alineas become paragraphs and tables become pipe tables with
// their spans flattened. Inactive content is struck through; warnings and
// the reasons recorded in each node's Applicability become blockquotes.
func Markdown(w io.Writer, t *text.StructuredText) error {
	if t == nil {
		return nil
	}
	var markdownBuilder strings.Builder
	writeNode(&markdownBuilder, t, 1, false)
	_, err := io.WriteString(w, markdownBuilder.String())
	return err
}

// MarkdownString is Markdown into a string.
func MarkdownString(t *text.StructuredText) string {
	var sb strings.Builder
	_ = Markdown(&sb, t)
	return sb.String()
}

func writeNode(b *strings.Builder, node *text.StructuredText, depth int, parentInactive bool) {
	inactive := parentInactive || (node.Applicability != nil && !node.Applicability.Active)

	if title := node.Title.Text; title != "" {
		level := min(depth, maxHeadingLevel)
		b.WriteString(strings.Repeat("#", level))
		b.WriteString(" ")
		b.WriteString(strike(escapeInline(title), inactive))
		b.WriteString("\n\n")
	}

	if a := node.Applicability; a != nil {
		// Descendants of an inactive node repeat the same reason; print it once.
		if !a.Active && !parentInactive && a.ReasonInactive != "" {
			quote(b, "Inactive", a.ReasonInactive)
		}
		if a.Modified && a.ReasonModified != "" {
			quote(b, "Modified", a.ReasonModified)
		}
		for _, warning := range a.Warnings {
			quote(b, "Warning", warning)
		}
	}

	for _, alinea := range node.OuterAlineas {
		off := inactive || alinea.Inactive
		if alinea.IsTable() {
			writeTable(b, alinea.Table, off)
			continue
		}
		if alinea.Text == "" {
			continue
		}
		b.WriteString(strike(linked(alinea), off))
		b.WriteString("\n\n")
	}

	for _, section := range node.Sections {
		writeNode(b, section, depth+1, inactive)
	}
}

func quote(b *strings.Builder, label, message string) {
	fmt.Fprintf(b, "> **%s:** %s\n\n", label, escapeInline(message))
}

func strike(s string, inactive bool) string {
	if !inactive || s == "" {
		return s
	}
	return "~~" + s + "~~"
}

// linked renders the text of s with its links as inline Markdown links.
func linked(s text.EnrichedString) string {
	if len(s.Links) == 0 {
		return escapeInline(s.Text)
	}
	runes := []rune(s.Text)
	var sb strings.Builder
	pos := 0
	for _, l := range s.Links {
		if l.Position < pos || l.Position+l.Length > len(runes) {
			continue
		}
		sb.WriteString(escapeInline(string(runes[pos:l.Position])))
		fmt.Fprintf(&sb, "[%s](%s)", escapeInline(string(runes[l.Position:l.Position+l.Length])), l.Target)
		pos = l.Position + l.Length
	}
	sb.WriteString(escapeInline(string(runes[pos:])))
	return sb.String()
}

// writeTable flattens spans: a spanning cell's content goes to its top-left
// slot and the slots it covers stay empty.
func writeTable(b *strings.Builder, t *text.Table, inactive bool) {
	grid := flatten(t)
	if len(grid) == 0 {
		return
	}
	width := 0
	for _, row := range grid {
		width = max(width, len(row))
	}

	writeRow := func(row []string) {
		b.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(row) {
				cell = strike(escapeMarkdownTableCell(row[i]), inactive)
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
	}

	// Pipe tables need exactly one header row. Without a header row in the
	// source the first row is used.
	writeRow(grid[0])
	b.WriteString("|")
	b.WriteString(strings.Repeat("---|", width))
	b.WriteString("\n")
	for _, row := range grid[1:] {
		writeRow(row)
	}
	b.WriteString("\n")
}

func flatten(t *text.Table) [][]string {
	var grid [][]string
	// pending[c] counts rows still covered by a rowspan in column c.
	pending := map[int]int{}
	for r, row := range t.Rows {
		for len(grid) <= r {
			grid = append(grid, nil)
		}
		col := 0
		put := func(s string) {
			for len(grid[r]) <= col {
				grid[r] = append(grid[r], "")
			}
			grid[r][col] = s
			col++
		}
		skipCovered := func() {
			for pending[col] > 0 {
				pending[col]--
				put("")
			}
		}
		for _, cell := range row.Cells {
			skipCovered()
			content := cell.Content.Text
			if cell.Content.IsTable() {
				content = "(table)"
			}
			span := max(cell.Colspan, 1)
			for i := 0; i < span; i++ {
				if cell.Rowspan > 1 {
					pending[col] = cell.Rowspan - 1
				}
				if i == 0 {
					put(content)
				} else {
					put("")
				}
			}
		}
		skipCovered()
		// Columns covered at the end of a row that has no cells there.
		for c, n := range pending {
			if c >= col && n > 0 {
				pending[c]--
				for len(grid[r]) <= c {
					grid[r] = append(grid[r], "")
				}
			}
		}
	}
	return grid
}

func escapeInline(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return markdownEscaper.Replace(s)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"~", `\~`,
	"[", `\[`,
	"]", `\]`,
)

// escapeMarkdownTableCell escapes pipe characters in table cell content.
func escapeMarkdownTableCell(content string) string {
	return strings.ReplaceAll(escapeInline(content), "|", "\\|")
}
