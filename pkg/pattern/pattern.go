// Package pattern provides the numbering pattern catalog used to detect how an
// alinea is numbered ("I. ", "1.1. ", "a) ", "ANNEXE 2") and to check that a
// run of numbered alineas follows its canonical sequence.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// CatalogFile is the YAML form of a catalog or of an exception overlay.
type CatalogFile struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`

	// MaxPrefixLength bounds the exception keys, in code points. Zero keeps
	// the value of the catalog being overlaid.
	MaxPrefixLength int `yaml:"max_prefix_length,omitempty" json:"max_prefix_length,omitempty"`

	// Patterns, when present, replace the pattern list. Order matters: the
	// first declared pattern wins ties during detection.
	Patterns []PatternDef `yaml:"patterns,omitempty" json:"patterns,omitempty"`

	// Exceptions override detection for known problem strings.
	Exceptions []ExceptionDef `yaml:"exceptions,omitempty" json:"exceptions,omitempty"`
}

// PatternDef declares one numbering pattern.
type PatternDef struct {
	Name   string `yaml:"name" json:"name"`
	Regexp string `yaml:"regexp" json:"regexp"`

	// Sequence names the symbol family of an increasing pattern (roman,
	// arabic, upper, lower). Empty for patterns without canonical order.
	Sequence string `yaml:"sequence,omitempty" json:"sequence,omitempty"`

	// PrefixFormat turns a symbol into a canonical prefix, e.g. "%s. ".
	PrefixFormat string `yaml:"prefix_format,omitempty" json:"prefix_format,omitempty"`

	// SemicolonTerminated patterns number enumerations whose items end in
	// ";" (or ":" before a sub-enumeration).
	SemicolonTerminated bool `yaml:"semicolon_terminated,omitempty" json:"semicolon_terminated,omitempty"`
}

// ExceptionDef forces the detection verdict of strings starting with Prefix.
// An empty Pattern means "no pattern".
type ExceptionDef struct {
	Prefix  string `yaml:"prefix" json:"prefix"`
	Pattern string `yaml:"pattern" json:"pattern"`
}

// Pattern is a compiled numbering pattern.
type Pattern struct {
	Name                string
	SemicolonTerminated bool

	re       *regexp.Regexp
	prefixes []string
}

// Increasing reports whether the pattern has a canonical sequence.
func (p *Pattern) Increasing() bool {
	return len(p.prefixes) > 0
}

// Prefixes returns the canonical prefix list, first element first.
func (p *Pattern) Prefixes() []string {
	return append([]string(nil), p.prefixes...)
}

// Match returns the length in bytes of the pattern's match at the start of s,
// or 0 when it does not match.
func (p *Pattern) Match(s string) int {
	loc := p.re.FindStringIndex(s)
	if loc == nil || loc[0] != 0 {
		return 0
	}
	return loc[1]
}

// Compile compiles a pattern definition.
func (d PatternDef) Compile() (*Pattern, error) {
	expr := d.Regexp
	if !strings.HasPrefix(expr, "^") {
		expr = "^" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q regexp: %w", d.Name, err)
	}

	p := &Pattern{Name: d.Name, SemicolonTerminated: d.SemicolonTerminated, re: re}
	if d.Sequence != "" {
		symbols, ok := sequences[d.Sequence]
		if !ok {
			return nil, fmt.Errorf("pattern %q: unknown sequence %q", d.Name, d.Sequence)
		}
		p.prefixes = make([]string, len(symbols))
		for i, sym := range symbols {
			p.prefixes[i] = fmt.Sprintf(d.PrefixFormat, sym)
		}
	}
	return p, nil
}
