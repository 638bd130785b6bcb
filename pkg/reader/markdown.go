package reader

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/coolbeans/normtree/pkg/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// MarkdownElements reads a Markdown document. ATX and setext headings become
// title markers, paragraphs and list items become paragraphs with their
// links, and GFM tables become tables.
func MarkdownElements(src []byte) ([]text.TextElement, error) {
	doc := markdown.Parser().Parse(gtext.NewReader(src))
	if doc == nil {
		return nil, fmt.Errorf("parsing Markdown: empty document")
	}
	r := &mdReader{src: src}
	r.blocks(doc)
	return r.elements, nil
}

type mdReader struct {
	src      []byte
	elements []text.TextElement
}

func (r *mdReader) blocks(parent ast.Node) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Heading:
			s := inlineString(n, r.src)
			if s.Text != "" {
				r.elements = append(r.elements, text.TitleMarker{Text: s.Text, Level: n.Level})
			}
		case *ast.Paragraph, *ast.TextBlock:
			r.paragraph(inlineString(n, r.src))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				r.paragraph(text.NewString(strings.TrimSpace(string(seg.Value(r.src)))))
			}
		case *ast.ThematicBreak:
			r.elements = append(r.elements, text.Linebreak{})
		case *east.Table:
			r.elements = append(r.elements, mdTable(n, r.src))
		case *ast.HTMLBlock:
			// raw HTML is left to the HTML reader
		default:
			r.blocks(n)
		}
	}
}

func (r *mdReader) paragraph(s text.EnrichedString) {
	if s.Text == "" {
		return
	}
	r.elements = append(r.elements, text.Paragraph{Text: s.Text, Links: s.Links})
}

func mdTable(n *east.Table, src []byte) *text.Table {
	t := &text.Table{}
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		_, header := row.(*east.TableHeader)
		var cells []text.Cell
		for c := row.FirstChild(); c != nil; c = c.NextSibling() {
			if _, ok := c.(*east.TableCell); !ok {
				continue
			}
			cells = append(cells, text.Cell{Content: inlineString(c, src), Colspan: 1, Rowspan: 1})
		}
		t.Rows = append(t.Rows, text.Row{Cells: cells, IsHeader: header})
	}
	return t
}

// inlineString collects the inline content of n. Line breaks inside a
// paragraph become spaces.
func inlineString(n ast.Node, src []byte) text.EnrichedString {
	b := &inlineBuilder{src: src}
	b.walk(n)
	return text.EnrichedString{Text: b.sb.String(), Links: b.links}.TrimSpace()
}

type inlineBuilder struct {
	src   []byte
	sb    strings.Builder
	runes int
	links []text.Link
}

func (b *inlineBuilder) write(s string) {
	b.sb.WriteString(s)
	b.runes += utf8.RuneCountInString(s)
}

func (b *inlineBuilder) walk(parent ast.Node) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Text:
			b.write(string(n.Segment.Value(b.src)))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.write(" ")
			}
		case *ast.String:
			b.write(string(n.Value))
		case *ast.Link:
			start := b.runes
			b.walk(n)
			if b.runes > start {
				b.links = append(b.links, text.Link{Target: string(n.Destination), Position: start, Length: b.runes - start})
			}
		case *ast.AutoLink:
			start := b.runes
			b.write(string(n.Label(b.src)))
			b.links = append(b.links, text.Link{Target: string(n.URL(b.src)), Position: start, Length: b.runes - start})
		case *ast.RawHTML:
		default:
			b.walk(n)
		}
	}
}
