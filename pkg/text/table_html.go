package text

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TableToHTML serialises a table. Header rows use th cells; spans of 1 are
// omitted; line breaks inside a cell become <br/>.
func TableToHTML(t *Table) string {
	var sb strings.Builder
	sb.WriteString("<table>")
	for _, row := range t.Rows {
		sb.WriteString("<tr>")
		tag := "td"
		if row.IsHeader {
			tag = "th"
		}
		for _, c := range row.Cells {
			sb.WriteString("<" + tag)
			if c.Colspan > 1 {
				sb.WriteString(` colspan="` + strconv.Itoa(c.Colspan) + `"`)
			}
			if c.Rowspan > 1 {
				sb.WriteString(` rowspan="` + strconv.Itoa(c.Rowspan) + `"`)
			}
			sb.WriteString(">")
			sb.WriteString(StringToHTML(c.Content))
			sb.WriteString("</" + tag + ">")
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table>")
	return sb.String()
}

// StringToHTML renders an EnrichedString as inline HTML with its links.
func StringToHTML(s EnrichedString) string {
	if s.Table != nil {
		return TableToHTML(s.Table)
	}
	runes := []rune(s.Text)
	var sb strings.Builder
	pos := 0
	for _, l := range sortedLinks(s.Links) {
		if l.Position < pos || l.Position+l.Length > len(runes) {
			continue
		}
		sb.WriteString(escapeText(string(runes[pos:l.Position])))
		sb.WriteString(`<a href="` + html.EscapeString(l.Target) + `">`)
		sb.WriteString(escapeText(string(runes[l.Position : l.Position+l.Length])))
		sb.WriteString("</a>")
		pos = l.Position + l.Length
	}
	sb.WriteString(escapeText(string(runes[pos:])))
	return sb.String()
}

func escapeText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br/>")
}

// ParseTableHTML parses the first <table> found in markup. Cell text is
// trimmed of surrounding whitespace, so a table round-trips through
// TableToHTML only when its cell texts are trimmed; <br> becomes a newline,
// anchors with an href become links and a cell holding only a table becomes
// a nested table.
func ParseTableHTML(markup string) (*Table, error) {
	doc, err := xhtml.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing table markup: %w", err)
	}
	node := findFirst(doc, atom.Table)
	if node == nil {
		return nil, fmt.Errorf("%w: no <table> element in markup", ErrInvalidTable)
	}
	return TableFromNode(node)
}

// TableFromNode converts a parsed <table> node.
func TableFromNode(table *xhtml.Node) (*Table, error) {
	t := &Table{}
	for _, tr := range rowsOf(table) {
		row := Row{}
		allHeader := true
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xhtml.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
				continue
			}
			if c.DataAtom != atom.Th {
				allHeader = false
			}
			content := InlineString(c)
			if inner := soleTable(c); inner != nil {
				nested, err := TableFromNode(inner)
				if err != nil {
					return nil, err
				}
				content = NewTableString(nested)
			}
			row.Cells = append(row.Cells, Cell{
				Content: content,
				Colspan: spanAttr(c, "colspan"),
				Rowspan: spanAttr(c, "rowspan"),
			})
		}
		inHead := tr.Parent != nil && tr.Parent.DataAtom == atom.Thead
		row.IsHeader = len(row.Cells) > 0 && (allHeader || inHead)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// rowsOf returns the <tr> elements belonging to table, skipping nested tables.
func rowsOf(table *xhtml.Node) []*xhtml.Node {
	var rows []*xhtml.Node
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xhtml.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Tr:
				rows = append(rows, c)
			case atom.Table:
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

// soleTable returns the nested <table> of a cell whose only content is that
// table, ignoring whitespace text around it.
func soleTable(cell *xhtml.Node) *xhtml.Node {
	var table *xhtml.Node
	for c := cell.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xhtml.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return nil
			}
		case xhtml.ElementNode:
			if c.DataAtom != atom.Table || table != nil {
				return nil
			}
			table = c
		}
	}
	return table
}

func spanAttr(n *xhtml.Node, key string) int {
	for _, a := range n.Attr {
		if a.Key == key {
			if v, err := strconv.Atoi(strings.TrimSpace(a.Val)); err == nil && v > 0 {
				return v
			}
		}
	}
	return 1
}

// InlineString flattens the content of an element into an EnrichedString,
// keeping anchors as links. Surrounding whitespace is trimmed.
func InlineString(n *xhtml.Node) EnrichedString {
	var sb strings.Builder
	var links []Link
	length := 0
	write := func(s string) {
		sb.WriteString(s)
		length += utf8.RuneCountInString(s)
	}

	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case xhtml.TextNode:
				write(c.Data)
			case xhtml.ElementNode:
				switch c.DataAtom {
				case atom.Br:
					write("\n")
				case atom.A:
					href, ok := attr(c, "href")
					start := length
					walk(c)
					if ok && length > start {
						links = append(links, Link{Target: href, Position: start, Length: length - start})
					}
				case atom.P, atom.Div:
					if length > 0 {
						write("\n")
					}
					walk(c)
				default:
					walk(c)
				}
			}
		}
	}
	walk(n)

	return trimString(sb.String(), links)
}

// trimString trims surrounding whitespace and shifts links accordingly.
func trimString(s string, links []Link) EnrichedString {
	runes := []rune(s)
	start, end := 0, len(runes)
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	out := EnrichedString{Text: string(runes[start:end])}
	for _, l := range links {
		from, to := l.Position-start, l.Position+l.Length-start
		if from < 0 {
			from = 0
		}
		if to > end-start {
			to = end - start
		}
		if to > from {
			out.Links = append(out.Links, Link{Target: l.Target, Position: from, Length: to - from})
		}
	}
	return out
}

func attr(n *xhtml.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func findFirst(n *xhtml.Node, a atom.Atom) *xhtml.Node {
	if n.Type == xhtml.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}
