package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coolbeans/normtree/internal/config"
	"github.com/coolbeans/normtree/pkg/parametrization"
	"github.com/coolbeans/normtree/pkg/text"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

const cliParametrization = `
parameters:
  - id: regime
    type: REGIME
inapplicable:
  - id: r1
    target: "1"
    condition: regime == D
`

func cliTree(t *testing.T, dir string) string {
	t.Helper()
	tree := &text.StructuredText{
		ID:    "root",
		Title: text.NewString("Arrêté"),
		Sections: []*text.StructuredText{
			{ID: "n0", Title: text.NewString("Article 1"), OuterAlineas: []text.EnrichedString{text.NewString("Texte un.")}},
			{ID: "n1", Title: text.NewString("Article 2"), OuterAlineas: []text.EnrichedString{text.NewString("Texte deux.")}},
		},
	}
	data, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("Failed to encode tree: %v", err)
	}
	return writeFile(t, dir, "ap.json", string(data))
}

func TestDetectCommand(t *testing.T) {
	out, err := runCLI(t, "detect", "I. Champ", "hola")
	if err != nil {
		t.Fatalf("detect error = %v", err)
	}
	expected := "roman\tI. Champ\n-\thola\n"
	if out != expected {
		t.Errorf("Expected %q, got %q", expected, out)
	}
}

func TestStructureCommand(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		content  string
		title    string
		sections int
	}{
		{
			name:     "markdown with lone top heading",
			file:     "arrete.md",
			content:  "# Arrêté\n\n## Article 1\n\nTexte un.\n\n## Article 2\n\nTexte deux.\n",
			title:    "Arrêté",
			sections: 2,
		},
		{
			name:     "plain text split by numbering",
			file:     "arrete.txt",
			content:  "I. Champ\nTexte un.\n\nII. Définitions\nTexte deux.\n",
			title:    "arrete",
			sections: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := writeFile(t, dir, tt.file, tt.content)
			out, err := runCLI(t, "structure", "--input", input)
			if err != nil {
				t.Fatalf("structure error = %v", err)
			}
			var tree text.StructuredText
			if err := json.Unmarshal([]byte(out), &tree); err != nil {
				t.Fatalf("Output is not a tree: %v\n%s", err, out)
			}
			if tree.Title.Text != tt.title {
				t.Errorf("Expected root title %q, got %q", tt.title, tree.Title.Text)
			}
			if len(tree.Sections) != tt.sections {
				t.Errorf("Expected %d sections, got %d", tt.sections, len(tree.Sections))
			}
		})
	}
}

func TestStructureCommandErrors(t *testing.T) {
	dir := t.TempDir()
	md := writeFile(t, dir, "a.md", "text\n")

	if _, err := runCLI(t, "structure"); err == nil {
		t.Error("Expected error without --input")
	}
	if _, err := runCLI(t, "structure", "--input", filepath.Join(dir, "missing.md")); err == nil {
		t.Error("Expected error for a missing input")
	}
	if _, err := runCLI(t, "structure", "--input", md, "--by-patterns"); err == nil {
		t.Error("Expected error for --by-patterns on Markdown")
	}
	if _, err := runCLI(t, "structure", "--input", md, "--format", "pdf"); err == nil {
		t.Error("Expected error for an unsupported format")
	}
}

func TestStructureSaveAndLibrary(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NORMTREE_LIBRARY_PATH", filepath.Join(dir, "lib.db"))
	input := writeFile(t, dir, "arrete.md", "# Arrêté\n\n## Article 1\n\nTexte un.\n")

	if _, err := runCLI(t, "structure", "--input", input, "--save", "ap-1", "--out", filepath.Join(dir, "tree.json")); err != nil {
		t.Fatalf("structure --save error = %v", err)
	}

	out, err := runCLI(t, "library", "list")
	if err != nil {
		t.Fatalf("library list error = %v", err)
	}
	if !strings.Contains(out, "ap-1") || !strings.Contains(out, "draft") {
		t.Errorf("Expected ap-1 as draft in listing, got:\n%s", out)
	}

	out, err = runCLI(t, "library", "status", "ap-1", "structured")
	if err != nil {
		t.Fatalf("library status error = %v", err)
	}
	if out != "ap-1: structured\n" {
		t.Errorf("Expected status line, got %q", out)
	}
	if _, err := runCLI(t, "library", "status", "ap-1", "archived"); err == nil {
		t.Error("Expected error for an unknown status")
	}

	out, err = runCLI(t, "library", "show", "ap-1", "--format", "md")
	if err != nil {
		t.Fatalf("library show error = %v", err)
	}
	if !strings.HasPrefix(out, "# Arrêté\n") {
		t.Errorf("Expected Markdown document, got:\n%s", out)
	}

	if _, err := runCLI(t, "library", "delete", "ap-1"); err != nil {
		t.Fatalf("library delete error = %v", err)
	}
	out, err = runCLI(t, "library", "list")
	if err != nil {
		t.Fatalf("library list error = %v", err)
	}
	if out != "Library is empty.\n" {
		t.Errorf("Expected empty library, got %q", out)
	}
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	tree := cliTree(t, dir)
	params := writeFile(t, dir, "p.yaml", cliParametrization)

	out, err := runCLI(t, "check", "--parametrization", params, "--input", tree)
	if err != nil {
		t.Fatalf("check error = %v", err)
	}
	if !strings.Contains(out, "Parametrization OK") || !strings.Contains(out, "Inapplicable sections: 1") {
		t.Errorf("Unexpected summary:\n%s", out)
	}

	missing := writeFile(t, dir, "missing.yaml", strings.Replace(cliParametrization, `target: "1"`, `target: "5"`, 1))
	_, err = runCLI(t, "check", "--parametrization", missing, "--input", tree)
	if !errors.Is(err, parametrization.ErrInvalidRule) {
		t.Errorf("Expected ErrInvalidRule for a missing target, got %v", err)
	}

	if _, err := runCLI(t, "check"); err == nil {
		t.Error("Expected error without --parametrization")
	}
}

func TestCombinationsCommand(t *testing.T) {
	dir := t.TempDir()
	params := writeFile(t, dir, "p.yaml", cliParametrization)

	out, err := runCLI(t, "combinations", "--parametrization", params)
	if err != nil {
		t.Fatalf("combinations error = %v", err)
	}
	expected := "1\tregime == D\n2\tregime != D\n"
	if out != expected {
		t.Errorf("Expected %q, got %q", expected, out)
	}

	out, err = runCLI(t, "combinations", "--parametrization", params, "--json")
	if err != nil {
		t.Fatalf("combinations --json error = %v", err)
	}
	var entries []struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if len(entries) != 2 || entries[0].Label != "regime == D" {
		t.Errorf("Unexpected entries: %+v", entries)
	}
}

func TestApplyCommand(t *testing.T) {
	dir := t.TempDir()
	tree := cliTree(t, dir)
	params := writeFile(t, dir, "p.yaml", cliParametrization)

	out, err := runCLI(t, "apply", "--input", tree, "--parametrization", params, "--set", "regime=D", "--format", "md")
	if err != nil {
		t.Fatalf("apply error = %v", err)
	}
	for _, want := range []string{"## Article 1\n", "## ~~Article 2~~\n", "> **Inactive:** Not applicable when regime is D.\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	out, err = runCLI(t, "apply", "--input", tree, "--parametrization", params, "--set", "regime=A")
	if err != nil {
		t.Fatalf("apply error = %v", err)
	}
	var applied text.StructuredText
	if err := json.Unmarshal([]byte(out), &applied); err != nil {
		t.Fatalf("Output is not a tree: %v", err)
	}
	if a := applied.Sections[1].Applicability; a == nil || !a.Active {
		t.Errorf("Expected Article 2 active for regime A, got %+v", a)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"unknown parameter", []string{"--set", "rubrique=2510"}},
		{"malformed assignment", []string{"--set", "regime"}},
		{"invalid value", []string{"--set", "regime=Z"}},
		{"unknown format", []string{"--format", "pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"apply", "--input", tree, "--parametrization", params}, tt.args...)
			if _, err := runCLI(t, args...); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestVersionsCommand(t *testing.T) {
	dir := t.TempDir()
	tree := cliTree(t, dir)
	params := writeFile(t, dir, "p.yaml", cliParametrization)
	lib := filepath.Join(dir, "lib.db")

	out, err := runCLI(t, "versions", "--input", tree, "--parametrization", params, "--library", lib, "--workers", "2")
	if err != nil {
		t.Fatalf("versions error = %v", err)
	}
	if !strings.Contains(out, "Document: ap\n") || !strings.Contains(out, "Versions: 2 (2 new or changed)") {
		t.Errorf("Unexpected summary:\n%s", out)
	}

	out, err = runCLI(t, "versions", "--input", tree, "--parametrization", params, "--library", lib)
	if err != nil {
		t.Fatalf("versions error = %v", err)
	}
	if !strings.Contains(out, "Versions: 2 (0 new or changed)") {
		t.Errorf("Expected unchanged versions on rerun, got:\n%s", out)
	}

	out, err = runCLI(t, "library", "show", "ap", "--library", lib, "--version", "regime == D", "--format", "md")
	if err != nil {
		t.Fatalf("library show --version error = %v", err)
	}
	if !strings.Contains(out, "~~Article 2~~") {
		t.Errorf("Expected Article 2 struck out, got:\n%s", out)
	}

	out, err = runCLI(t, "library", "stats", "--library", lib)
	if err != nil {
		t.Fatalf("library stats error = %v", err)
	}
	if !strings.Contains(out, "Versions:     2") || !strings.Contains(out, "Parametrized: 1") {
		t.Errorf("Unexpected stats:\n%s", out)
	}
}

func TestLinksCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dir := t.TempDir()
	write := func(name, target string) string {
		tree := &text.StructuredText{
			Title: text.NewString("Arrêté"),
			OuterAlineas: []text.EnrichedString{
				{Text: "Voir annexe.", Links: []text.Link{{Target: target, Position: 5, Length: 6}}},
			},
		}
		data, err := json.Marshal(tree)
		if err != nil {
			t.Fatalf("Failed to encode tree: %v", err)
		}
		return writeFile(t, dir, name, string(data))
	}

	out, err := runCLI(t, "links", "--input", write("ok.json", server.URL+"/annexe"), "--retries", "0")
	if err != nil {
		t.Fatalf("links error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Valid:    1") {
		t.Errorf("Unexpected report:\n%s", out)
	}

	out, err = runCLI(t, "links", "--input", write("gone.json", server.URL+"/gone"), "--retries", "0", "--format", "md")
	if err == nil {
		t.Fatal("Expected error for a broken link")
	}
	if !strings.Contains(out, "| HTTP 410 | Arrêté, alinea 1 |") {
		t.Errorf("Expected broken link row, got:\n%s", out)
	}

	if _, err := runCLI(t, "links"); err == nil {
		t.Error("Expected error without --input or --id")
	}
}

func TestTokensFollowSeed(t *testing.T) {
	seeded := &app{cfg: &config.Config{Seed: 9}}
	x := seeded.tokens().Next("", map[string]bool{})
	if y := seeded.tokens().Next("", map[string]bool{}); x != y {
		t.Errorf("Expected seeded tokens to repeat, got %s and %s", x, y)
	}

	unseeded := &app{cfg: &config.Config{}}
	x = unseeded.tokens().Next("", map[string]bool{})
	if y := unseeded.tokens().Next("", map[string]bool{}); x == y {
		t.Errorf("Expected tokens to vary without a seed, got %s twice", x)
	}
}
