package pattern

import (
	_ "embed"
	"fmt"
	"sync"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// DefaultMaxPrefixLength is the exception key length used when a catalog
// file does not set one.
const DefaultMaxPrefixLength = 60

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Catalog is an immutable, ordered set of compiled patterns plus the
// exception table. It is safe for concurrent use.
type Catalog struct {
	name            string
	version         string
	patterns        []*Pattern
	byName          map[string]*Pattern
	exceptions      map[string]string
	maxPrefixLength int
}

var defaultCatalog = sync.OnceValues(func() (*CatalogFile, *Catalog) {
	f, err := ParseCatalogFile(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("pattern: embedded catalog: %v", err))
	}
	c, err := Build(f)
	if err != nil {
		panic(fmt.Sprintf("pattern: embedded catalog: %v", err))
	}
	return f, c
})

// Default returns the built-in catalog.
func Default() *Catalog {
	_, c := defaultCatalog()
	return c
}

// DefaultFile returns a copy of the built-in catalog definition.
func DefaultFile() *CatalogFile {
	f, _ := defaultCatalog()
	out := *f
	out.Patterns = append([]PatternDef(nil), f.Patterns...)
	out.Exceptions = append([]ExceptionDef(nil), f.Exceptions...)
	return &out
}

// ParseCatalogFile decodes and validates a YAML catalog file.
func ParseCatalogFile(data []byte) (*CatalogFile, error) {
	var f CatalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if errs := ValidateSchema(&f); len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog %q: %w", f.Name, errs)
	}
	return &f, nil
}

// Build compiles a catalog from its base definition and optional overlays.
// An overlay declaring patterns replaces the pattern list; exceptions are
// merged, later files winning.
func Build(base *CatalogFile, overlays ...*CatalogFile) (*Catalog, error) {
	c := &Catalog{
		name:            base.Name,
		version:         base.Version,
		byName:          make(map[string]*Pattern),
		exceptions:      make(map[string]string),
		maxPrefixLength: base.MaxPrefixLength,
	}
	if c.maxPrefixLength == 0 {
		c.maxPrefixLength = DefaultMaxPrefixLength
	}

	defs := base.Patterns
	for _, o := range overlays {
		if len(o.Patterns) > 0 {
			defs = o.Patterns
		}
		if o.MaxPrefixLength > 0 {
			c.maxPrefixLength = o.MaxPrefixLength
		}
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog %q declares no patterns", base.Name)
	}

	for _, d := range defs {
		p, err := d.Compile()
		if err != nil {
			return nil, err
		}
		if _, dup := c.byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate pattern %q", p.Name)
		}
		c.patterns = append(c.patterns, p)
		c.byName[p.Name] = p
	}

	for _, f := range append([]*CatalogFile{base}, overlays...) {
		for _, e := range f.Exceptions {
			if e.Pattern != "" {
				if _, ok := c.byName[e.Pattern]; !ok {
					return nil, fmt.Errorf("%s: exception %q names unknown pattern %q", f.Name, e.Prefix, e.Pattern)
				}
			}
			c.exceptions[c.prefixKey(e.Prefix)] = e.Pattern
		}
	}
	return c, nil
}

// Name returns the catalog name.
func (c *Catalog) Name() string { return c.name }

// Version returns the catalog version.
func (c *Catalog) Version() string { return c.version }

// Names returns the pattern names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.patterns))
	for i, p := range c.patterns {
		names[i] = p.Name
	}
	return names
}

// Pattern returns the named pattern.
func (c *Catalog) Pattern(name string) (*Pattern, bool) {
	p, ok := c.byName[name]
	return p, ok
}

// ExceptionCount returns the number of exception entries.
func (c *Catalog) ExceptionCount() int {
	return len(c.exceptions)
}

// prefixKey normalises s to NFC and keeps its first maxPrefixLength code
// points.
func (c *Catalog) prefixKey(s string) string {
	s = norm.NFC.String(s)
	n := 0
	for i := range s {
		if n == c.maxPrefixLength {
			return s[:i]
		}
		n++
	}
	return s
}
