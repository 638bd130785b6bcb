package placeholder

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/coolbeans/normtree/pkg/structure"
	"github.com/coolbeans/normtree/pkg/text"
)

var tokenRE = regexp.MustCompile(`^[A-Z0-9]{8}$`)

func onlyKey[V any](t *testing.T, m map[string]V) string {
	t.Helper()
	if len(m) != 1 {
		t.Fatalf("Expected exactly one token, got %d", len(m))
	}
	for k := range m {
		return k
	}
	return ""
}

func TestTokenGenerator(t *testing.T) {
	a, b := NewTokenGenerator(3), NewTokenGenerator(3)
	usedA, usedB := map[string]bool{}, map[string]bool{}
	for i := 0; i < 20; i++ {
		x, y := a.Next("", usedA), b.Next("", usedB)
		if x != y {
			t.Fatalf("Expected identical tokens at step %d, got %s and %s", i, x, y)
		}
		if !tokenRE.MatchString(x) {
			t.Errorf("Token %q does not match the alphabet", x)
		}
	}
	if len(usedA) != 20 {
		t.Errorf("Expected 20 distinct tokens, got %d", len(usedA))
	}
}

func TestRandomTokenGenerator(t *testing.T) {
	a, b := NewRandomTokenGenerator(), NewRandomTokenGenerator()
	x, y := a.Next("", map[string]bool{}), b.Next("", map[string]bool{})
	if x == y {
		t.Errorf("Expected unseeded generators to differ, both issued %s", x)
	}
	if !tokenRE.MatchString(x) {
		t.Errorf("Token %q does not match the alphabet", x)
	}
}

func TestTokenGeneratorAvoidsSourceText(t *testing.T) {
	first := NewTokenGenerator(5).Next("", map[string]bool{})
	got := NewTokenGenerator(5).Next("prefix "+first+" suffix", map[string]bool{})
	if got == first {
		t.Errorf("Expected a token absent from the source, got %s again", got)
	}
}

func TestExtractWithoutTablesOrLinks(t *testing.T) {
	markup := "<p class=\"x\">A &amp; B</p>\n<p>C<br>D</p>"
	out, m, err := Extract(markup, NewTokenGenerator(1))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out != markup {
		t.Errorf("Expected markup unchanged, got %q", out)
	}
	if m.Len() != 0 {
		t.Errorf("Expected empty mapping, got %d tokens", m.Len())
	}
}

func TestExtractTableKeepsSurroundingBytes(t *testing.T) {
	markup := `<p class="x">A &amp; B</p><table><tr><td><a href="u">lien</a></td></tr></table><p>C</p>`
	out, m, err := Extract(markup, NewTokenGenerator(1))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	tok := onlyKey(t, m.Tables)
	want := `<p class="x">A &amp; B</p><br/>` + tok + `<br/><p>C</p>`
	if out != want {
		t.Errorf("Expected %q, got %q", want, out)
	}
	if len(m.Links) != 0 {
		t.Error("Expected links inside tables to stay in the table")
	}
	cell := m.Tables[tok].Rows[0].Cells[0].Content
	if len(cell.Links) != 1 || cell.Links[0].Target != "u" {
		t.Errorf("Expected cell link, got %+v", cell)
	}
}

func TestExtractLink(t *testing.T) {
	markup := `<p>voir <a href="https://x.test/?a=1&amp;b=2">l'arrêté <b>du</b> 2 février</a>.</p>`
	out, m, err := Extract(markup, NewTokenGenerator(1))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	tok := onlyKey(t, m.Links)
	ref := m.Links[tok]
	if ref.Target != "https://x.test/?a=1&b=2" {
		t.Errorf("Expected unescaped target, got %q", ref.Target)
	}
	if ref.Text != "l'arrêté du 2 février" {
		t.Errorf("Expected anchor text, got %q", ref.Text)
	}
	want := `<p>voir ` + tok + `l&#39;arrêté du 2 février.</p>`
	if out != want {
		t.Errorf("Expected %q, got %q", want, out)
	}
}

func TestStructureHTMLRestoresLinks(t *testing.T) {
	markup := `<p>1. Voir <a href="u">l'arrêté</a> et <a href="v">le code</a>.</p><p>texte</p><p>2. Fin</p>`
	s := structure.New(nil, structure.WithIDGenerator(text.NewSeededIDGenerator(1)))

	tree, err := StructureHTML(text.NewString(""), markup, s, NewTokenGenerator(1))
	if err != nil {
		t.Fatalf("StructureHTML: %v", err)
	}
	if len(tree.Sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(tree.Sections))
	}

	title := tree.Sections[0].Title
	if title.Text != "1. Voir l'arrêté et le code." {
		t.Fatalf("Unexpected title %q", title.Text)
	}
	want := []text.Link{
		{Target: "u", Position: 8, Length: 8},
		{Target: "v", Position: 20, Length: 7},
	}
	if len(title.Links) != len(want) {
		t.Fatalf("Expected %d links, got %+v", len(want), title.Links)
	}
	for i, l := range want {
		if title.Links[i] != l {
			t.Errorf("link %d: expected %+v, got %+v", i, l, title.Links[i])
		}
	}
	if title.LinkText(title.Links[0]) != "l'arrêté" || title.LinkText(title.Links[1]) != "le code" {
		t.Error("Link offsets do not cover the anchor texts")
	}
	if err := title.Validate(); err != nil {
		t.Errorf("Restored title invalid: %v", err)
	}
}

func TestStructureHTMLRestoresTables(t *testing.T) {
	markup := `<p>I. Titre</p><p>texte</p><table><tr><th>A</th><th>B</th></tr><tr><td colspan="2">c</td></tr></table><p>II. Suite</p>`
	s := structure.New(nil, structure.WithIDGenerator(text.NewSeededIDGenerator(1)))

	tree, err := StructureHTML(text.NewString("Arrêté"), markup, s, NewTokenGenerator(2))
	if err != nil {
		t.Fatalf("StructureHTML: %v", err)
	}
	if len(tree.Sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(tree.Sections))
	}
	alineas := tree.Sections[0].OuterAlineas
	if len(alineas) != 2 {
		t.Fatalf("Expected 2 alineas, got %d", len(alineas))
	}
	if alineas[0].Text != "texte" {
		t.Errorf("Expected 'texte', got %q", alineas[0].Text)
	}
	if !alineas[1].IsTable() || alineas[1].Text != "" {
		t.Fatalf("Expected a table alinea, got %+v", alineas[1])
	}
	if got := alineas[1].Table.Rows[1].Cells[0].Colspan; got != 2 {
		t.Errorf("Expected colspan 2, got %d", got)
	}
}

func TestRestoreContamination(t *testing.T) {
	m := newMapping()
	m.Tables["ABCDEFGH"] = &text.Table{}
	tree := &text.StructuredText{OuterAlineas: []text.EnrichedString{text.NewString("voir ABCDEFGH ci-dessous")}}

	if _, err := Restore(tree, m); !errors.Is(err, ErrContamination) {
		t.Errorf("Expected ErrContamination, got %v", err)
	}
}

func TestRestoreMismatch(t *testing.T) {
	tests := []struct {
		name    string
		alineas []string
	}{
		{"token missing", []string{"rien"}},
		{"token twice", []string{"ZZZZ0000x", "ZZZZ0000x"}},
		{"anchor altered", []string{"ZZZZ0000y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMapping()
			m.Links["ZZZZ0000"] = LinkRef{Target: "u", Text: "x"}
			tree := &text.StructuredText{}
			for _, a := range tt.alineas {
				tree.OuterAlineas = append(tree.OuterAlineas, text.NewString(a))
			}
			if _, err := Restore(tree, m); !errors.Is(err, ErrPlaceholderMismatch) {
				t.Errorf("Expected ErrPlaceholderMismatch, got %v", err)
			}
		})
	}
}

func TestRestoreDoesNotMutateInput(t *testing.T) {
	m := newMapping()
	m.Links["ZZZZ0000"] = LinkRef{Target: "u", Text: "x"}
	tree := &text.StructuredText{OuterAlineas: []text.EnrichedString{text.NewString("a ZZZZ0000x b")}}

	out, err := Restore(tree, m)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if out.OuterAlineas[0].Text != "a x b" {
		t.Errorf("Expected 'a x b', got %q", out.OuterAlineas[0].Text)
	}
	if !strings.Contains(tree.OuterAlineas[0].Text, "ZZZZ0000") {
		t.Error("Restore modified its input")
	}
}

func TestRestoreShiftsExistingLinks(t *testing.T) {
	m := newMapping()
	m.Links["ZZZZ0000"] = LinkRef{Target: "u", Text: "x"}
	s := text.EnrichedString{
		Text:  "ZZZZ0000x puis y",
		Links: []text.Link{{Target: "w", Position: 15, Length: 1}},
	}
	tree := &text.StructuredText{OuterAlineas: []text.EnrichedString{s}}

	out, err := Restore(tree, m)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got := out.OuterAlineas[0]
	if got.Text != "x puis y" {
		t.Fatalf("Unexpected text %q", got.Text)
	}
	if len(got.Links) != 2 || got.LinkText(got.Links[0]) != "y" || got.LinkText(got.Links[1]) != "x" {
		t.Errorf("Unexpected links %+v", got.Links)
	}
}
