package reader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/coolbeans/normtree/pkg/text"
)

var (
	docxBody      = xpath.MustCompile("//w:body")
	docxStyle     = xpath.MustCompile("w:pPr/w:pStyle")
	docxGridSpan  = xpath.MustCompile("w:tcPr/w:gridSpan")
	docxVMerge    = xpath.MustCompile("w:tcPr/w:vMerge")
	docxRowHeader = xpath.MustCompile("w:trPr/w:tblHeader")
	docxRels      = xpath.MustCompile("//Relationship")
)

var headingStyle = regexp.MustCompile(`^(?i:heading|titre)\s*([1-9])$`)

// DocxElements reads the main part (word/document.xml) of a word-processor
// document. Paragraph styles HeadingN or TitreN become title markers, w:br
// becomes a line break and tables keep their horizontal (gridSpan) and
// vertical (vMerge) merges.
func DocxElements(documentXML []byte) ([]text.TextElement, error) {
	return docxElements(documentXML, nil)
}

// ReadDocx reads a .docx archive, resolving hyperlink targets from the
// document relationships.
func ReadDocx(r io.ReaderAt, size int64) ([]text.TextElement, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening docx archive: %w", err)
	}
	var documentXML, relsXML []byte
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			documentXML, err = readZipFile(f)
		case "word/_rels/document.xml.rels":
			relsXML, err = readZipFile(f)
		}
		if err != nil {
			return nil, err
		}
	}
	if documentXML == nil {
		return nil, fmt.Errorf("docx archive has no word/document.xml")
	}

	rels := map[string]string{}
	if relsXML != nil {
		doc, err := xmlquery.Parse(bytes.NewReader(relsXML))
		if err != nil {
			return nil, fmt.Errorf("parsing document relationships: %w", err)
		}
		for _, n := range xmlquery.QuerySelectorAll(doc, docxRels) {
			rels[n.SelectAttr("Id")] = n.SelectAttr("Target")
		}
	}
	return docxElements(documentXML, rels)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return data, nil
}

func docxElements(documentXML []byte, rels map[string]string) ([]text.TextElement, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(documentXML))
	if err != nil {
		return nil, fmt.Errorf("parsing document XML: %w", err)
	}
	body := xmlquery.QuerySelector(doc, docxBody)
	if body == nil {
		return nil, fmt.Errorf("document XML has no w:body")
	}

	r := &docxReader{rels: rels}
	for n := body.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode {
			continue
		}
		switch n.Data {
		case "p":
			r.paragraph(n)
		case "tbl":
			t, err := r.table(n)
			if err != nil {
				return nil, err
			}
			r.elements = append(r.elements, t)
		}
	}
	return r.elements, nil
}

type docxReader struct {
	rels     map[string]string
	elements []text.TextElement
}

func (r *docxReader) paragraph(p *xmlquery.Node) {
	if level, ok := headingLevel(p); ok {
		s := r.runs(p, nil)
		if s.Text != "" {
			r.elements = append(r.elements, text.TitleMarker{Text: s.Text, Level: level})
		}
		return
	}
	first := true
	r.runs(p, func(s text.EnrichedString) {
		if !first {
			r.elements = append(r.elements, text.Linebreak{})
		}
		first = false
		if s.Text != "" {
			r.elements = append(r.elements, text.Paragraph{Text: s.Text, Links: s.Links})
		}
	})
}

func headingLevel(p *xmlquery.Node) (int, bool) {
	style := xmlquery.QuerySelector(p, docxStyle)
	if style == nil {
		return 0, false
	}
	m := headingStyle.FindStringSubmatch(localAttr(style, "val"))
	if m == nil {
		return 0, false
	}
	level, _ := strconv.Atoi(m[1])
	return level, true
}

// runs collects the text of a paragraph. When onFragment is set, each w:br
// closes a fragment and passes it on, and so does the end of the paragraph.
// Without it breaks read as spaces.
func (r *docxReader) runs(p *xmlquery.Node, onFragment func(text.EnrichedString)) text.EnrichedString {
	var (
		sb    strings.Builder
		runes int
		links []text.Link
	)
	write := func(s string) {
		sb.WriteString(s)
		runes += utf8.RuneCountInString(s)
	}
	emit := func() text.EnrichedString {
		s := text.EnrichedString{Text: sb.String(), Links: links}.TrimSpace()
		sb.Reset()
		runes = 0
		links = nil
		if onFragment != nil {
			onFragment(s)
		}
		return s
	}

	var walk func(n *xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xmlquery.ElementNode {
				continue
			}
			switch c.Data {
			case "t":
				write(c.InnerText())
			case "tab":
				write(" ")
			case "br", "cr":
				if onFragment != nil {
					emit()
				} else {
					write(" ")
				}
			case "hyperlink":
				start := runes
				walk(c)
				target, ok := r.hyperlinkTarget(c)
				if ok && runes > start {
					links = append(links, text.Link{Target: target, Position: start, Length: runes - start})
				}
			case "pPr", "rPr", "instrText", "delText":
			default:
				walk(c)
			}
		}
	}
	walk(p)
	return emit()
}

func (r *docxReader) hyperlinkTarget(n *xmlquery.Node) (string, bool) {
	if id := localAttr(n, "id"); id != "" {
		if target, ok := r.rels[id]; ok {
			return target, true
		}
	}
	if anchor := localAttr(n, "anchor"); anchor != "" {
		return "#" + anchor, true
	}
	return "", false
}

func (r *docxReader) table(tbl *xmlquery.Node) (*text.Table, error) {
	b := text.NewGridBuilder()
	for tr := tbl.FirstChild; tr != nil; tr = tr.NextSibling {
		if tr.Type != xmlquery.ElementNode || tr.Data != "tr" {
			continue
		}
		var cells []text.RawCell
		for tc := tr.FirstChild; tc != nil; tc = tc.NextSibling {
			if tc.Type != xmlquery.ElementNode || tc.Data != "tc" {
				continue
			}
			cells = append(cells, r.cell(tc))
		}
		header := xmlquery.QuerySelector(tr, docxRowHeader) != nil
		if err := b.AddRow(cells, header); err != nil {
			return nil, fmt.Errorf("reading table: %w", err)
		}
	}
	return b.Table(), nil
}

func (r *docxReader) cell(tc *xmlquery.Node) text.RawCell {
	rc := text.RawCell{Colspan: 1}
	if span := xmlquery.QuerySelector(tc, docxGridSpan); span != nil {
		if n, err := strconv.Atoi(localAttr(span, "val")); err == nil && n > 1 {
			rc.Colspan = n
		}
	}
	if merge := xmlquery.QuerySelector(tc, docxVMerge); merge != nil {
		rc.Continuation = localAttr(merge, "val") != "restart"
	}

	var parts []string
	var links []text.Link
	offset := 0
	for p := tc.FirstChild; p != nil; p = p.NextSibling {
		if p.Type != xmlquery.ElementNode || p.Data != "p" {
			continue
		}
		s := r.runs(p, nil)
		if s.Text == "" {
			continue
		}
		if len(parts) > 0 {
			offset++
		}
		for _, l := range s.Links {
			l.Position += offset
			links = append(links, l)
		}
		parts = append(parts, s.Text)
		offset += utf8.RuneCountInString(s.Text)
	}
	rc.Content = text.EnrichedString{Text: strings.Join(parts, "\n"), Links: links}
	return rc
}

// localAttr returns the attribute with the given local name, whatever its
// namespace prefix.
func localAttr(n *xmlquery.Node, local string) string {
	for _, a := range n.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
