package reader

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/coolbeans/normtree/pkg/text"
)

func describe(elements []text.TextElement) []string {
	var out []string
	for _, e := range elements {
		switch e := e.(type) {
		case text.Paragraph:
			out = append(out, "P:"+e.Text)
		case text.TitleMarker:
			out = append(out, "T"+string(rune('0'+e.Level))+":"+e.Text)
		case text.Linebreak:
			out = append(out, "BR")
		case *text.Table:
			out = append(out, "TABLE")
		}
	}
	return out
}

func assertSequence(t *testing.T, got []text.TextElement, want []string) {
	t.Helper()
	d := describe(got)
	if strings.Join(d, "|") != strings.Join(want, "|") {
		t.Errorf("Expected %q, got %q", want, d)
	}
}

func TestHTMLElements(t *testing.T) {
	markup := `<html><head><title>ignored</title></head><body>
<h1>Arrêté du 3 août</h1>
<p>Vu le <a href="https://example.org/code">code   de l'environnement</a> ;</p>
<h3>Article 1</h3>
<div>Les installations<br>sont soumises</div>
<table><tr><th colspan="2">Seuils</th></tr><tr><td>A</td><td>B</td></tr></table>
<script>var x = 1;</script>
</body></html>`

	elements, err := HTMLElements(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("HTMLElements() error = %v", err)
	}
	assertSequence(t, elements, []string{
		"T1:Arrêté du 3 août",
		"P:Vu le code de l'environnement ;",
		"T3:Article 1",
		"P:Les installations",
		"BR",
		"P:sont soumises",
		"TABLE",
	})

	p := elements[1].(text.Paragraph)
	if len(p.Links) != 1 {
		t.Fatalf("Expected 1 link, got %d", len(p.Links))
	}
	anchor := text.EnrichedString{Text: p.Text, Links: p.Links}.LinkText(p.Links[0])
	if anchor != "code de l'environnement" {
		t.Errorf("Expected anchor %q, got %q", "code de l'environnement", anchor)
	}
	if p.Links[0].Target != "https://example.org/code" {
		t.Errorf("Expected target https://example.org/code, got %s", p.Links[0].Target)
	}

	table := elements[6].(*text.Table)
	if len(table.Rows) != 2 || !table.Rows[0].IsHeader || table.Rows[0].Cells[0].Colspan != 2 {
		t.Errorf("Unexpected table %+v", table)
	}
}

func TestHTMLAlineas(t *testing.T) {
	alineas, err := HTMLAlineas(`<h2>Titre I</h2><p>1. Premier<br/>2. Second</p><table><tr><td>x</td></tr></table>`)
	if err != nil {
		t.Fatalf("HTMLAlineas() error = %v", err)
	}
	if len(alineas) != 4 {
		t.Fatalf("Expected 4 alineas, got %d: %+v", len(alineas), alineas)
	}
	want := []string{"Titre I", "1. Premier", "2. Second"}
	for i, w := range want {
		if alineas[i].Text != w {
			t.Errorf("alinea %d: expected %q, got %q", i, w, alineas[i].Text)
		}
	}
	if !alineas[3].IsTable() {
		t.Error("Expected the last alinea to hold the table")
	}
}

func TestHTMLAlineasEmpty(t *testing.T) {
	alineas, err := HTMLAlineas("")
	if err != nil {
		t.Fatalf("HTMLAlineas() error = %v", err)
	}
	if alineas == nil || len(alineas) != 0 {
		t.Errorf("Expected an empty non-nil slice, got %#v", alineas)
	}
}

func TestMarkdownElements(t *testing.T) {
	src := "# Arrêté\n\n" +
		"Vu le [code](https://example.org/code) et\nle décret.\n\n" +
		"## Article 1\n\n" +
		"- I. Première\n" +
		"- II. Seconde\n\n" +
		"---\n\n" +
		"| Rubrique | Régime |\n" +
		"|---|---|\n" +
		"| 2510 | A |\n" +
		"| 1510 | E |\n"

	elements, err := MarkdownElements([]byte(src))
	if err != nil {
		t.Fatalf("MarkdownElements() error = %v", err)
	}
	assertSequence(t, elements, []string{
		"T1:Arrêté",
		"P:Vu le code et le décret.",
		"T2:Article 1",
		"P:I. Première",
		"P:II. Seconde",
		"BR",
		"TABLE",
	})

	p := elements[1].(text.Paragraph)
	if len(p.Links) != 1 || p.Links[0].Position != 6 || p.Links[0].Length != 4 {
		t.Errorf("Unexpected links %+v", p.Links)
	}

	table := elements[6].(*text.Table)
	if len(table.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(table.Rows))
	}
	if !table.Rows[0].IsHeader || table.Rows[1].IsHeader {
		t.Error("Expected only the first row to be a header")
	}
	if got := table.Rows[2].Cells[1].Content.Text; got != "E" {
		t.Errorf("Expected cell E, got %q", got)
	}
	if err := table.Validate(); err != nil {
		t.Errorf("table.Validate() error = %v", err)
	}
}

const docxNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`

const documentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document ` + docxNS + `>
<w:body>
  <w:p><w:pPr><w:pStyle w:val="Titre1"/></w:pPr><w:r><w:t>Chapitre I</w:t></w:r></w:p>
  <w:p>
    <w:r><w:t xml:space="preserve">Voir </w:t></w:r>
    <w:hyperlink r:id="rId5"><w:r><w:t>l'annexe</w:t></w:r></w:hyperlink>
    <w:r><w:br/><w:t>suite</w:t></w:r>
  </w:p>
  <w:tbl>
    <w:tr><w:trPr><w:tblHeader/></w:trPr>
      <w:tc><w:tcPr><w:gridSpan w:val="2"/></w:tcPr><w:p><w:r><w:t>Seuils</w:t></w:r></w:p></w:tc>
    </w:tr>
    <w:tr>
      <w:tc><w:tcPr><w:vMerge w:val="restart"/></w:tcPr><w:p><w:r><w:t>A</w:t></w:r></w:p></w:tc>
      <w:tc><w:p><w:r><w:t>1</w:t></w:r></w:p><w:p><w:r><w:t>2</w:t></w:r></w:p></w:tc>
    </w:tr>
    <w:tr>
      <w:tc><w:tcPr><w:vMerge/></w:tcPr><w:p/></w:tc>
      <w:tc><w:p><w:r><w:t>3</w:t></w:r></w:p></w:tc>
    </w:tr>
  </w:tbl>
  <w:sectPr/>
</w:body>
</w:document>`

func TestDocxElements(t *testing.T) {
	elements, err := DocxElements([]byte(documentXML))
	if err != nil {
		t.Fatalf("DocxElements() error = %v", err)
	}
	assertSequence(t, elements, []string{"T1:Chapitre I", "P:Voir l'annexe", "BR", "P:suite", "TABLE"})

	if links := elements[1].(text.Paragraph).Links; len(links) != 0 {
		t.Errorf("Expected no link without relationships, got %+v", links)
	}

	table := elements[4].(*text.Table)
	if err := table.Validate(); err != nil {
		t.Fatalf("table.Validate() error = %v", err)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(table.Rows))
	}
	if !table.Rows[0].IsHeader || table.Rows[0].Cells[0].Colspan != 2 {
		t.Errorf("Unexpected header row %+v", table.Rows[0])
	}
	a := table.Rows[1].Cells[0]
	if a.Content.Text != "A" || a.Rowspan != 2 {
		t.Errorf("Expected merged cell A with rowspan 2, got %+v", a)
	}
	if got := table.Rows[1].Cells[1].Content.Text; got != "1\n2" {
		t.Errorf("Expected %q, got %q", "1\n2", got)
	}
	if len(table.Rows[2].Cells) != 1 {
		t.Errorf("Expected the continuation to be absorbed, got %d cells", len(table.Rows[2].Cells))
	}
}

func TestDocxElementsErrors(t *testing.T) {
	if _, err := DocxElements(nil); err == nil {
		t.Error("Expected an error for an empty part")
	}
	if _, err := DocxElements([]byte(`<w:document ` + docxNS + `/>`)); err == nil {
		t.Error("Expected an error without a body")
	}
}

func TestReadDocx(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"word/document.xml": documentXML,
		"word/_rels/document.xml.rels": `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId5" Type="hyperlink" Target="https://example.org/annexe" TargetMode="External"/>
</Relationships>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	elements, err := ReadDocx(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("ReadDocx() error = %v", err)
	}
	p := elements[1].(text.Paragraph)
	if len(p.Links) != 1 {
		t.Fatalf("Expected 1 link, got %d", len(p.Links))
	}
	want := text.Link{Target: "https://example.org/annexe", Position: 5, Length: 8}
	if p.Links[0] != want {
		t.Errorf("Expected %+v, got %+v", want, p.Links[0])
	}

	if _, err := ReadDocx(bytes.NewReader([]byte("not a zip")), 9); err == nil {
		t.Error("Expected an error for a non-zip input")
	}
}
