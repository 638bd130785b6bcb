package placeholder

import (
	"fmt"

	"github.com/coolbeans/normtree/pkg/reader"
	"github.com/coolbeans/normtree/pkg/structure"
	"github.com/coolbeans/normtree/pkg/text"
)

// StructureHTML structures an HTML fragment by numbering patterns: tables
// and links are lifted out, the remaining text is split into alineas and
// structured, then tables and links are restored into the tree.
func StructureHTML(title text.EnrichedString, markup string, s *structure.Structurer, gen *TokenGenerator) (*text.StructuredText, error) {
	extracted, mapping, err := Extract(markup, gen)
	if err != nil {
		return nil, err
	}
	alineas, err := reader.HTMLAlineas(extracted)
	if err != nil {
		return nil, fmt.Errorf("splitting alineas: %w", err)
	}
	tree := s.StructureAlineas(title, alineas)
	return Restore(tree, mapping)
}
