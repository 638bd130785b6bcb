package linkcheck

import (
	"fmt"
	"strings"

	"github.com/coolbeans/normtree/pkg/text"
)

// Collect returns the links of t in document order: titles, then alineas,
// then sections. Links inside tables are included.
func Collect(t *text.StructuredText) []LinkInput {
	if t == nil {
		return nil
	}
	var links []LinkInput
	collectNode(t, nil, &links)
	return links
}

func collectNode(node *text.StructuredText, trail []string, links *[]LinkInput) {
	if title := strings.TrimSpace(node.Title.Text); title != "" {
		trail = append(trail, title)
	}
	location := strings.Join(trail, " > ")

	collectString(node.Title, location, links)
	for i, alinea := range node.OuterAlineas {
		collectString(alinea, fmt.Sprintf("%s, alinea %d", location, i+1), links)
	}
	for _, section := range node.Sections {
		collectNode(section, trail, links)
	}
}

func collectString(s text.EnrichedString, location string, links *[]LinkInput) {
	for _, l := range s.Links {
		*links = append(*links, LinkInput{URI: l.Target, Source: strings.TrimPrefix(location, ", ")})
	}
	if !s.IsTable() {
		return
	}
	for r, row := range s.Table.Rows {
		for c, cell := range row.Cells {
			collectString(cell.Content, fmt.Sprintf("%s, row %d cell %d", location, r+1, c+1), links)
		}
	}
}
