package text

import (
	"fmt"
	"strconv"
	"strings"
)

// Applicability records how a parametrization affected a node.
type Applicability struct {
	Active          bool            `json:"active"`
	Modified        bool            `json:"modified"`
	Warnings        []string        `json:"warnings,omitempty"`
	ReasonInactive  string          `json:"reason_inactive,omitempty"`
	ReasonModified  string          `json:"reason_modified,omitempty"`
	PreviousVersion *StructuredText `json:"previous_version,omitempty"`
}

// Reference identifies a node inside its source document (for example
// "Article 2.1"). Filled by external enrichment.
type Reference struct {
	Name     string `json:"name"`
	Nickname string `json:"nickname,omitempty"`
}

// Annotations carry topic classification results. Filled by external
// enrichment.
type Annotations struct {
	Topic        string `json:"topic,omitempty"`
	Prescriptive bool   `json:"prescriptive"`
	Guide        string `json:"guide,omitempty"`
}

// StructuredText is a node of the document tree: a title, the alineas that
// precede any subsection, and the subsections.
type StructuredText struct {
	ID            string            `json:"id"`
	Title         EnrichedString    `json:"title"`
	OuterAlineas  []EnrichedString  `json:"outer_alineas"`
	Sections      []*StructuredText `json:"sections"`
	Applicability *Applicability    `json:"applicability,omitempty"`
	Reference     *Reference        `json:"reference,omitempty"`
	Annotations   *Annotations      `json:"annotations,omitempty"`
}

// Clone returns a deep copy of the subtree.
func (t *StructuredText) Clone() *StructuredText {
	if t == nil {
		return nil
	}
	out := &StructuredText{
		ID:    t.ID,
		Title: t.Title.Clone(),
	}
	if t.OuterAlineas != nil {
		out.OuterAlineas = make([]EnrichedString, len(t.OuterAlineas))
		for i, a := range t.OuterAlineas {
			out.OuterAlineas[i] = a.Clone()
		}
	}
	if t.Sections != nil {
		out.Sections = make([]*StructuredText, len(t.Sections))
		for i, s := range t.Sections {
			out.Sections[i] = s.Clone()
		}
	}
	if t.Applicability != nil {
		a := *t.Applicability
		a.Warnings = append([]string(nil), t.Applicability.Warnings...)
		a.PreviousVersion = t.Applicability.PreviousVersion.Clone()
		out.Applicability = &a
	}
	if t.Reference != nil {
		r := *t.Reference
		out.Reference = &r
	}
	if t.Annotations != nil {
		a := *t.Annotations
		out.Annotations = &a
	}
	return out
}

// Path addresses a node by its section indices from the root. The root's
// path is empty.
type Path []int

// Key returns a stable map key such as "0.2.1". The root's key is "".
func (p Path) Key() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// String implements fmt.Stringer.
func (p Path) String() string {
	if len(p) == 0 {
		return "<root>"
	}
	return p.Key()
}

// Child returns a new path extended by i.
func (p Path) Child(i int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

// ParsePath parses the output of Key.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, ".")
	p := make(Path, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid path %q: segment %q", s, part)
		}
		p[i] = n
	}
	return p, nil
}

// Walk visits every node depth-first, parents before children. Returning
// false from fn skips the node's children.
func Walk(t *StructuredText, fn func(path Path, node *StructuredText) bool) {
	walk(t, Path{}, fn)
}

func walk(t *StructuredText, path Path, fn func(Path, *StructuredText) bool) {
	if t == nil || !fn(path, t) {
		return
	}
	for i, s := range t.Sections {
		walk(s, path.Child(i), fn)
	}
}

// AtPath returns the node at path.
func AtPath(t *StructuredText, path Path) (*StructuredText, bool) {
	node := t
	for _, i := range path {
		if node == nil || i < 0 || i >= len(node.Sections) {
			return nil, false
		}
		node = node.Sections[i]
	}
	return node, node != nil
}

// PathOf returns the path of the node carrying id.
func PathOf(t *StructuredText, id string) (Path, bool) {
	var found Path
	ok := false
	Walk(t, func(path Path, node *StructuredText) bool {
		if ok {
			return false
		}
		if node.ID == id {
			found, ok = path, true
			return false
		}
		return true
	})
	return found, ok
}

// Titles returns the title texts of the node at path and all its ancestors,
// root first.
func Titles(t *StructuredText, path Path) []string {
	var titles []string
	node := t
	titles = append(titles, node.Title.Text)
	for _, i := range path {
		if i < 0 || i >= len(node.Sections) {
			break
		}
		node = node.Sections[i]
		titles = append(titles, node.Title.Text)
	}
	return titles
}
