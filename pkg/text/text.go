// Package text defines the document model shared by the structuring and
// parametrization engines: enriched strings, tables, text elements and the
// StructuredText tree.
package text

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidString is returned when an EnrichedString breaks its invariants.
var ErrInvalidString = errors.New("invalid enriched string")

// Link is a hyperlink anchored on a span of an EnrichedString. Position and
// Length are counted in code points, not bytes.
type Link struct {
	Target   string `json:"target"`
	Position int    `json:"position"`
	Length   int    `json:"length"`
}

// EnrichedString is one alinea or title: either plain text with links, or a
// table. When Table is set, Text is empty.
type EnrichedString struct {
	Text     string `json:"text"`
	Links    []Link `json:"links,omitempty"`
	Table    *Table `json:"table,omitempty"`
	Inactive bool   `json:"inactive,omitempty"`
}

// NewString returns a plain-text EnrichedString.
func NewString(s string) EnrichedString {
	return EnrichedString{Text: s}
}

// NewTableString returns an EnrichedString holding a table.
func NewTableString(t *Table) EnrichedString {
	return EnrichedString{Table: t}
}

// IsTable reports whether the string holds a table.
func (s EnrichedString) IsTable() bool {
	return s.Table != nil
}

// RuneLen returns the length of the text in code points.
func (s EnrichedString) RuneLen() int {
	return utf8.RuneCountInString(s.Text)
}

// LinkText returns the anchor text of a link.
func (s EnrichedString) LinkText(l Link) string {
	runes := []rune(s.Text)
	if l.Position < 0 || l.Position+l.Length > len(runes) {
		return ""
	}
	return string(runes[l.Position : l.Position+l.Length])
}

// Validate checks text/table exclusivity and that links lie inside the text
// without overlapping.
func (s EnrichedString) Validate() error {
	if s.Table != nil {
		if s.Text != "" {
			return fmt.Errorf("%w: table string carries text %q", ErrInvalidString, truncate(s.Text, 40))
		}
		if len(s.Links) > 0 {
			return fmt.Errorf("%w: table string carries %d links", ErrInvalidString, len(s.Links))
		}
		return s.Table.Validate()
	}

	n := s.RuneLen()
	end := 0
	for i, l := range sortedLinks(s.Links) {
		if l.Position < 0 || l.Length < 0 || l.Position+l.Length > n {
			return fmt.Errorf("%w: link to %s at [%d,%d) outside text of length %d",
				ErrInvalidString, l.Target, l.Position, l.Position+l.Length, n)
		}
		if i > 0 && l.Position < end {
			return fmt.Errorf("%w: link to %s overlaps previous link", ErrInvalidString, l.Target)
		}
		end = l.Position + l.Length
	}
	return nil
}

// Clone returns a deep copy.
func (s EnrichedString) Clone() EnrichedString {
	out := s
	if s.Links != nil {
		out.Links = make([]Link, len(s.Links))
		copy(out.Links, s.Links)
	}
	if s.Table != nil {
		out.Table = s.Table.Clone()
	}
	return out
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

func sortedLinks(links []Link) []Link {
	out := make([]Link, len(links))
	copy(out, links)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// CollapseSpace replaces every run of white space, including no-break
// spaces, with a single ASCII space, the way a browser renders text.
func CollapseSpace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.WriteRune(r)
	}
	if space {
		sb.WriteByte(' ')
	}
	return sb.String()
}

// TrimSpace returns s without surrounding white space, links shifted and
// clipped to the remaining text.
func (s EnrichedString) TrimSpace() EnrichedString {
	if s.Table != nil {
		return s
	}
	out := trimString(s.Text, s.Links)
	out.Inactive = s.Inactive
	return out
}
