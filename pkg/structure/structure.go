// Package structure builds StructuredText trees from flat element sequences,
// splitting on explicit title markers or, failing that, on the numbering
// patterns of the alineas.
package structure

import (
	"errors"
	"fmt"

	"github.com/coolbeans/normtree/pkg/pattern"
	"github.com/coolbeans/normtree/pkg/text"
)

// ErrUnexpectedElement is returned when the element sequence holds a value
// that is not a Paragraph, *Table, TitleMarker or Linebreak.
var ErrUnexpectedElement = errors.New("unexpected text element")

// DefaultMaxPatternDepth bounds pattern-based splitting in StructureAlineas.
const DefaultMaxPatternDepth = 3

// Structurer turns element sequences into trees. It is safe for concurrent
// use if its id generator is.
type Structurer struct {
	catalog         *pattern.Catalog
	ids             *text.IDGenerator
	maxPatternDepth int
}

// Option configures a Structurer.
type Option func(*Structurer)

// WithIDGenerator sets the generator used to assign node ids.
func WithIDGenerator(gen *text.IDGenerator) Option {
	return func(s *Structurer) {
		if gen != nil {
			s.ids = gen
		}
	}
}

// WithMaxPatternDepth overrides the number of numbering levels that
// StructureAlineas splits on.
func WithMaxPatternDepth(n int) Option {
	return func(s *Structurer) {
		if n >= 0 {
			s.maxPatternDepth = n
		}
	}
}

// New returns a Structurer over catalog. A nil catalog means the built-in
// one.
func New(catalog *pattern.Catalog, opts ...Option) *Structurer {
	if catalog == nil {
		catalog = pattern.Default()
	}
	s := &Structurer{
		catalog:         catalog,
		ids:             text.NewIDGenerator(),
		maxPatternDepth: DefaultMaxPatternDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the pattern catalog in use.
func (s *Structurer) Catalog() *pattern.Catalog {
	return s.catalog
}

// Structure builds a tree from elements. The highest title level present
// splits the sequence; without titles, the first detected numbering pattern
// does. Depth is unbounded.
func (s *Structurer) Structure(title *text.TitleMarker, elements []text.TextElement) (*text.StructuredText, error) {
	for i, el := range elements {
		if err := checkElement(el); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	var t text.EnrichedString
	if title != nil {
		t = title.Enriched()
	}
	return s.structureElements(t, elements)
}

func (s *Structurer) structureElements(title text.EnrichedString, elements []text.TextElement) (*text.StructuredText, error) {
	level, ok := highestLevel(elements)
	if !ok {
		alineas, err := flatten(elements)
		if err != nil {
			return nil, err
		}
		return s.splitByPattern(title, alineas, 0, -1), nil
	}

	node := s.newNode(title)
	first := -1
	for i, el := range elements {
		if m, ok := el.(text.TitleMarker); ok && m.Level == level {
			first = i
			break
		}
	}
	outer, err := flatten(elements[:first])
	if err != nil {
		return nil, err
	}
	node.OuterAlineas = outer

	start := first
	for start < len(elements) {
		end := start + 1
		for end < len(elements) {
			if m, ok := elements[end].(text.TitleMarker); ok && m.Level == level {
				break
			}
			end++
		}
		marker := elements[start].(text.TitleMarker)
		child, err := s.structureElements(marker.Enriched(), elements[start+1:end])
		if err != nil {
			return nil, err
		}
		node.Sections = append(node.Sections, child)
		start = end
	}
	return node, nil
}

// StructureAlineas builds a tree from already flattened alineas using
// numbering patterns only. Splitting stops after the configured number of
// pattern levels; deeper numbering stays as body text.
func (s *Structurer) StructureAlineas(title text.EnrichedString, alineas []text.EnrichedString) *text.StructuredText {
	return s.splitByPattern(title, alineas, 0, s.maxPatternDepth)
}

// splitByPattern splits alineas on the first detected pattern. maxDepth < 0
// disables the depth bound.
func (s *Structurer) splitByPattern(title text.EnrichedString, alineas []text.EnrichedString, depth, maxDepth int) *text.StructuredText {
	node := s.newNode(title)

	if maxDepth >= 0 && depth >= maxDepth {
		node.OuterAlineas = append(node.OuterAlineas, alineas...)
		return node
	}

	detected := make([]string, len(alineas))
	split := ""
	for i, a := range alineas {
		if a.IsTable() {
			continue
		}
		detected[i], _ = s.catalog.Detect(a.Text)
		if split == "" {
			split = detected[i]
		}
	}
	if split == "" {
		node.OuterAlineas = append(node.OuterAlineas, alineas...)
		return node
	}

	var markers []int
	for i, name := range detected {
		if name == split {
			markers = append(markers, i)
		}
	}

	node.OuterAlineas = append(node.OuterAlineas, alineas[:markers[0]]...)
	for k, m := range markers {
		end := len(alineas)
		if k+1 < len(markers) {
			end = markers[k+1]
		}
		child := s.splitByPattern(alineas[m], alineas[m+1:end], depth+1, maxDepth)
		node.Sections = append(node.Sections, child)
	}
	return node
}

func (s *Structurer) newNode(title text.EnrichedString) *text.StructuredText {
	return &text.StructuredText{
		ID:           s.ids.Next(),
		Title:        title,
		OuterAlineas: []text.EnrichedString{},
		Sections:     []*text.StructuredText{},
	}
}

// highestLevel returns the lowest Level value among title markers.
func highestLevel(elements []text.TextElement) (int, bool) {
	level, found := 0, false
	for _, el := range elements {
		if m, ok := el.(text.TitleMarker); ok && (!found || m.Level < level) {
			level, found = m.Level, true
		}
	}
	return level, found
}
