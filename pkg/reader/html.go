// Package reader turns source documents (HTML, Markdown, DOCX) into the flat
// element sequences consumed by the structuring engine.
package reader

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/coolbeans/normtree/pkg/text"
)

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.Blockquote: true, atom.Section: true, atom.Article: true, atom.Pre: true,
	atom.Dl: true, atom.Dt: true, atom.Dd: true, atom.Header: true, atom.Footer: true,
	atom.Hr: true, atom.Body: true, atom.Center: true,
}

var skippedAtoms = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Template: true, atom.Noscript: true,
}

var headingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// HTMLElements reads an HTML document. Headings become title markers (level
// = heading number), blocks become paragraphs, <br> becomes a line break and
// tables are parsed with their spans.
func HTMLElements(r io.Reader) ([]text.TextElement, error) {
	doc, err := xhtml.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var elements []text.TextElement
	w := &htmlWalker{
		onText: func(s text.EnrichedString) {
			elements = append(elements, text.Paragraph{Text: s.Text, Links: s.Links})
		},
		onBreak: func() { elements = append(elements, text.Linebreak{}) },
		onHeading: func(level int, s text.EnrichedString) {
			elements = append(elements, text.TitleMarker{Text: s.Text, Level: level})
		},
		onTable: func(t *text.Table) { elements = append(elements, t) },
	}
	if err := w.run(doc); err != nil {
		return nil, err
	}
	return elements, nil
}

// HTMLAlineas splits markup into alineas at block and <br> boundaries.
// Headings are ordinary alineas here: structure comes from numbering
// patterns only.
func HTMLAlineas(markup string) ([]text.EnrichedString, error) {
	doc, err := xhtml.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	alineas := []text.EnrichedString{}
	emit := func(s text.EnrichedString) { alineas = append(alineas, s) }
	w := &htmlWalker{
		onText:    emit,
		onHeading: func(_ int, s text.EnrichedString) { emit(s) },
		onTable:   func(t *text.Table) { emit(text.NewTableString(t)) },
	}
	if err := w.run(doc); err != nil {
		return nil, err
	}
	return alineas, nil
}

type htmlWalker struct {
	onText    func(text.EnrichedString)
	onBreak   func()
	onHeading func(level int, s text.EnrichedString)
	onTable   func(*text.Table)

	sb    strings.Builder
	runes int
	links []text.Link
}

func (w *htmlWalker) run(doc *xhtml.Node) error {
	if err := w.walk(doc); err != nil {
		return err
	}
	w.flush()
	return nil
}

func (w *htmlWalker) write(s string) {
	w.sb.WriteString(s)
	w.runes += utf8.RuneCountInString(s)
}

func (w *htmlWalker) flush() {
	s := text.EnrichedString{Text: w.sb.String(), Links: w.links}.TrimSpace()
	w.sb.Reset()
	w.runes = 0
	w.links = nil
	if s.Text != "" {
		w.onText(s)
	}
}

func (w *htmlWalker) walk(n *xhtml.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xhtml.TextNode:
			w.write(text.CollapseSpace(c.Data))
		case xhtml.ElementNode:
			if err := w.element(c); err != nil {
				return err
			}
		case xhtml.DocumentNode:
			if err := w.walk(c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *htmlWalker) element(n *xhtml.Node) error {
	switch {
	case skippedAtoms[n.DataAtom]:
		return nil

	case n.DataAtom == atom.Br:
		w.flush()
		if w.onBreak != nil {
			w.onBreak()
		}
		return nil

	case n.DataAtom == atom.Table:
		w.flush()
		t, err := text.TableFromNode(n)
		if err != nil {
			return fmt.Errorf("reading table: %w", err)
		}
		w.onTable(t)
		return nil

	case headingLevels[n.DataAtom] > 0:
		w.flush()
		s := text.InlineString(n)
		s.Text = text.CollapseSpace(s.Text)
		if s.Text != "" {
			w.onHeading(headingLevels[n.DataAtom], s)
		}
		return nil

	case n.DataAtom == atom.A:
		href, ok := nodeAttr(n, "href")
		start := w.runes
		if err := w.walk(n); err != nil {
			return err
		}
		if ok && w.runes > start {
			w.links = append(w.links, text.Link{Target: href, Position: start, Length: w.runes - start})
		}
		return nil

	case blockAtoms[n.DataAtom]:
		w.flush()
		if err := w.walk(n); err != nil {
			return err
		}
		w.flush()
		return nil

	default:
		return w.walk(n)
	}
}

func nodeAttr(n *xhtml.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
