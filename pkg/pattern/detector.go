package pattern

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Detect returns the name of the pattern numbering s. The exception table is
// consulted first; otherwise the longest match wins and ties go to the
// pattern declared first. ok is false when no pattern applies.
func (c *Catalog) Detect(s string) (name string, ok bool) {
	if verdict, found := c.exceptions[c.prefixKey(s)]; found {
		return verdict, verdict != ""
	}

	s = norm.NFC.String(s)
	best := 0
	for _, p := range c.patterns {
		if n := p.Match(s); n > best {
			best, name = n, p.Name
		}
	}
	return name, best > 0
}

// DetectAll runs Detect over each string. Entries without a pattern are "".
func (c *Catalog) DetectAll(strs []string) []string {
	out := make([]string, len(strs))
	for i, s := range strs {
		out[i], _ = c.Detect(s)
	}
	return out
}

// IsValid reports whether strs, all numbered by the named pattern, form a
// plausible enumeration. For increasing patterns each string must start
// with a canonical prefix, at strictly increasing positions in the canonical
// list. For semicolon-terminated patterns each string must end in ";" or
// ":". Unknown patterns are never valid.
func (c *Catalog) IsValid(name string, strs []string) bool {
	p, ok := c.byName[name]
	if !ok {
		return false
	}

	if p.Increasing() {
		last := -1
		for _, s := range strs {
			idx := p.canonicalIndex(norm.NFC.String(s))
			if idx <= last {
				return false
			}
			last = idx
		}
	}

	if p.SemicolonTerminated {
		for _, s := range strs {
			s = strings.TrimRight(s, " \t\n")
			if !strings.HasSuffix(s, ";") && !strings.HasSuffix(s, ":") {
				return false
			}
		}
	}
	return true
}

// canonicalIndex returns the index of the longest canonical prefix of s, or
// -1. The longest one is taken so that "ANNEXE III" is not read as
// "ANNEXE I".
func (p *Pattern) canonicalIndex(s string) int {
	idx, best := -1, 0
	for i, prefix := range p.prefixes {
		if len(prefix) > best && strings.HasPrefix(s, prefix) {
			idx, best = i, len(prefix)
		}
	}
	return idx
}
