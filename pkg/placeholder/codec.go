// Package placeholder lifts tables and hyperlinks out of HTML markup before
// structuring, replacing them with unique tokens, and puts them back into
// the structured tree afterwards with exact character offsets.
package placeholder

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/coolbeans/normtree/pkg/text"
)

var (
	// ErrContamination is returned when a table token shares its alinea
	// with other text.
	ErrContamination = errors.New("table placeholder merged with surrounding text")

	// ErrPlaceholderMismatch is returned when a recorded token is not found
	// exactly once in the structured tree.
	ErrPlaceholderMismatch = errors.New("placeholder mismatch")
)

// LinkRef is a hyperlink lifted out of the markup.
type LinkRef struct {
	Target string `json:"target"`
	Text   string `json:"text"`
}

// Mapping records what each token stands for. It belongs to one document.
type Mapping struct {
	Tables map[string]*text.Table `json:"tables"`
	Links  map[string]LinkRef     `json:"links"`
}

func newMapping() *Mapping {
	return &Mapping{Tables: make(map[string]*text.Table), Links: make(map[string]LinkRef)}
}

// Len returns the number of recorded tokens.
func (m *Mapping) Len() int {
	return len(m.Tables) + len(m.Links)
}

// Extract replaces every top-level <table> with "<br/>TOKEN<br/>" and every
// <a href> outside tables with TOKEN followed by its escaped text. Markup
// outside those spans is copied unchanged. Links inside tables stay with
// the table as cell links.
func Extract(markup string, gen *TokenGenerator) (string, *Mapping, error) {
	m := newMapping()
	used := make(map[string]bool)

	var (
		out        strings.Builder
		tableRaw   strings.Builder
		tableDepth int
		link       *LinkRef
		anchor     strings.Builder
	)

	closeLink := func() {
		tok := gen.Next(markup, used)
		ref := LinkRef{Target: link.Target, Text: text.CollapseSpace(anchor.String())}
		m.Links[tok] = ref
		out.WriteString(tok)
		out.WriteString(xhtml.EscapeString(ref.Text))
		link = nil
		anchor.Reset()
	}
	closeTable := func() error {
		table, err := text.ParseTableHTML(tableRaw.String())
		if err != nil {
			return fmt.Errorf("extracting table: %w", err)
		}
		tok := gen.Next(markup, used)
		m.Tables[tok] = table
		out.WriteString("<br/>" + tok + "<br/>")
		tableRaw.Reset()
		return nil
	}

	z := xhtml.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return "", nil, fmt.Errorf("tokenizing markup: %w", err)
			}
			break
		}
		raw := string(z.Raw())
		tok := z.Token()

		switch {
		case tableDepth > 0:
			tableRaw.WriteString(raw)
			if tok.DataAtom == atom.Table {
				switch tt {
				case xhtml.StartTagToken:
					tableDepth++
				case xhtml.EndTagToken:
					tableDepth--
				}
			}
			if tableDepth == 0 {
				if err := closeTable(); err != nil {
					return "", nil, err
				}
			}

		case tt == xhtml.StartTagToken && tok.DataAtom == atom.Table:
			if link != nil {
				closeLink()
			}
			tableDepth = 1
			tableRaw.WriteString(raw)

		case link != nil:
			switch {
			case tt == xhtml.EndTagToken && tok.DataAtom == atom.A:
				closeLink()
			case tt == xhtml.TextToken:
				anchor.WriteString(tok.Data)
			}
			// Other markup inside an anchor is dropped.

		case tt == xhtml.StartTagToken && tok.DataAtom == atom.A:
			if href, ok := tokenAttr(tok, "href"); ok {
				link = &LinkRef{Target: href}
				continue
			}
			out.WriteString(raw)

		default:
			out.WriteString(raw)
		}
	}

	if tableDepth > 0 {
		if err := closeTable(); err != nil {
			return "", nil, err
		}
	}
	if link != nil {
		closeLink()
	}

	if m.Len() == 0 {
		return markup, m, nil
	}
	return out.String(), m, nil
}

func tokenAttr(tok xhtml.Token, key string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Restore returns a copy of tree with every token replaced by what it stands
// for. A table token must be an alinea on its own; a link token becomes a
// Link over the anchor text that follows it.
func Restore(tree *text.StructuredText, m *Mapping) (*text.StructuredText, error) {
	out := tree.Clone()
	seen := make(map[string]int)

	var err error
	text.Walk(out, func(path text.Path, node *text.StructuredText) bool {
		if err != nil {
			return false
		}
		node.Title, err = restoreString(node.Title, m, seen, false)
		if err != nil {
			err = fmt.Errorf("title of %s: %w", path, err)
			return false
		}
		for i := range node.OuterAlineas {
			node.OuterAlineas[i], err = restoreString(node.OuterAlineas[i], m, seen, true)
			if err != nil {
				err = fmt.Errorf("alinea %d of %s: %w", i, path, err)
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	for _, tok := range sortedTokens(m) {
		if n := seen[tok]; n != 1 {
			return nil, fmt.Errorf("%w: token %s found %d times", ErrPlaceholderMismatch, tok, n)
		}
	}
	return out, nil
}

type occurrence struct {
	pos int // byte offset in the original text
	tok string
}

func restoreString(s text.EnrichedString, m *Mapping, seen map[string]int, allowTable bool) (text.EnrichedString, error) {
	if s.IsTable() {
		return s, nil
	}

	trimmed := strings.TrimSpace(s.Text)
	if table, ok := m.Tables[trimmed]; ok {
		if !allowTable {
			return s, fmt.Errorf("%w: table %s used as a title", ErrContamination, trimmed)
		}
		seen[trimmed]++
		return text.NewTableString(table.Clone()), nil
	}
	for tok := range m.Tables {
		if strings.Contains(s.Text, tok) {
			return s, fmt.Errorf("%w: table %s inside %q", ErrContamination, tok, s.Text)
		}
	}

	var occs []occurrence
	for tok := range m.Links {
		for from := 0; ; {
			i := strings.Index(s.Text[from:], tok)
			if i < 0 {
				break
			}
			occs = append(occs, occurrence{pos: from + i, tok: tok})
			from += i + TokenLength
		}
	}
	if len(occs) == 0 {
		return s, nil
	}
	sort.Slice(occs, func(i, j int) bool { return occs[i].pos < occs[j].pos })

	var (
		sb      strings.Builder
		added   []text.Link
		runePos []int
		prev    int
		removed int
	)
	for _, occ := range occs {
		if occ.pos < prev {
			continue
		}
		ref := m.Links[occ.tok]
		anchor := ref.Text
		rest := s.Text[occ.pos+TokenLength:]
		if !strings.HasPrefix(rest, anchor) {
			anchor = strings.TrimRightFunc(anchor, unicode.IsSpace)
			if !strings.HasPrefix(rest, anchor) {
				return s, fmt.Errorf("%w: anchor text of %s altered in %q", ErrPlaceholderMismatch, occ.tok, s.Text)
			}
		}

		sb.WriteString(s.Text[prev:occ.pos])
		origin := utf8.RuneCountInString(s.Text[:occ.pos])
		runePos = append(runePos, origin)
		added = append(added, text.Link{
			Target:   ref.Target,
			Position: origin - removed,
			Length:   utf8.RuneCountInString(anchor),
		})
		removed += TokenLength
		prev = occ.pos + TokenLength
		seen[occ.tok]++
	}
	sb.WriteString(s.Text[prev:])

	out := s.Clone()
	out.Text = sb.String()
	out.Links = out.Links[:0]
	for _, l := range s.Links {
		shift := 0
		for _, p := range runePos {
			if p < l.Position {
				shift += TokenLength
			}
		}
		l.Position -= shift
		out.Links = append(out.Links, l)
	}
	out.Links = append(out.Links, added...)
	return out, nil
}

func sortedTokens(m *Mapping) []string {
	toks := make([]string, 0, m.Len())
	for tok := range m.Tables {
		toks = append(toks, tok)
	}
	for tok := range m.Links {
		toks = append(toks, tok)
	}
	sort.Strings(toks)
	return toks
}
