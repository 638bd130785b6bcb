package text

import (
	"errors"
	"testing"
)

func TestEnrichedStringValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       EnrichedString
		wantErr bool
	}{
		{name: "plain", s: NewString("hello")},
		{name: "link inside", s: EnrichedString{Text: "voir arrêté", Links: []Link{{Target: "u", Position: 5, Length: 6}}}},
		{name: "link past end", s: EnrichedString{Text: "abc", Links: []Link{{Target: "u", Position: 2, Length: 2}}}, wantErr: true},
		{name: "overlapping links", s: EnrichedString{Text: "abcdef", Links: []Link{{Target: "u", Position: 0, Length: 3}, {Target: "v", Position: 2, Length: 2}}}, wantErr: true},
		{name: "table with text", s: EnrichedString{Text: "x", Table: &Table{}}, wantErr: true},
		{name: "table only", s: NewTableString(&Table{Rows: []Row{{Cells: []Cell{NewCell("a")}}}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLinkTextCountsCodePoints(t *testing.T) {
	s := EnrichedString{Text: "l'arrêté du 2 février", Links: []Link{{Target: "u", Position: 2, Length: 6}}}
	if got := s.LinkText(s.Links[0]); got != "arrêté" {
		t.Errorf("Expected 'arrêté', got %q", got)
	}
}

func TestPathKeyAndParse(t *testing.T) {
	p := Path{0, 2, 11}
	if p.Key() != "0.2.11" {
		t.Errorf("Expected key '0.2.11', got %q", p.Key())
	}
	back, err := ParsePath(p.Key())
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if back.Key() != p.Key() {
		t.Errorf("Expected %v, got %v", p, back)
	}
	root, err := ParsePath("")
	if err != nil || len(root) != 0 {
		t.Errorf("Expected empty root path, got %v (%v)", root, err)
	}
	if _, err := ParsePath("1.x"); err == nil {
		t.Error("Expected error for malformed path")
	}
}

func sampleTree() *StructuredText {
	return &StructuredText{
		ID:    "root",
		Title: NewString("Arrêté"),
		Sections: []*StructuredText{
			{ID: "a", Title: NewString("Article 1")},
			{ID: "b", Title: NewString("Article 2"), Sections: []*StructuredText{
				{ID: "b1", Title: NewString("2.1"), OuterAlineas: []EnrichedString{NewString("x")}},
			}},
		},
	}
}

func TestPathOfAndAtPath(t *testing.T) {
	tree := sampleTree()
	p, ok := PathOf(tree, "b1")
	if !ok || p.Key() != "1.0" {
		t.Fatalf("Expected path 1.0, got %v (%v)", p, ok)
	}
	node, ok := AtPath(tree, p)
	if !ok || node.ID != "b1" {
		t.Errorf("Expected node b1, got %+v", node)
	}
	if _, ok := AtPath(tree, Path{5}); ok {
		t.Error("Expected out-of-range path to fail")
	}
	if _, ok := PathOf(tree, "missing"); ok {
		t.Error("Expected unknown id to fail")
	}
	titles := Titles(tree, p)
	if len(titles) != 3 || titles[2] != "2.1" {
		t.Errorf("Unexpected titles %v", titles)
	}
}

func TestCloneIsDeep(t *testing.T) {
	tree := sampleTree()
	clone := tree.Clone()
	clone.Sections[1].Sections[0].OuterAlineas[0].Text = "changed"
	if tree.Sections[1].Sections[0].OuterAlineas[0].Text != "x" {
		t.Error("Clone shares alineas with the original")
	}
}

func TestSeededIDGeneratorIsDeterministic(t *testing.T) {
	a, b := NewSeededIDGenerator(42), NewSeededIDGenerator(42)
	for i := 0; i < 5; i++ {
		if x, y := a.Next(), b.Next(); x != y {
			t.Fatalf("Expected identical ids at step %d, got %s and %s", i, x, y)
		}
	}
	if NewSeededIDGenerator(1).Next() == NewSeededIDGenerator(2).Next() {
		t.Error("Expected different seeds to give different ids")
	}
}

func TestAssignIDsKeepsExisting(t *testing.T) {
	tree := &StructuredText{ID: "keep", Sections: []*StructuredText{{}, {}}}
	AssignIDs(tree, NewSeededIDGenerator(7))
	if tree.ID != "keep" {
		t.Errorf("Expected existing id preserved, got %s", tree.ID)
	}
	if tree.Sections[0].ID == "" || tree.Sections[0].ID == tree.Sections[1].ID {
		t.Error("Expected distinct generated ids")
	}
}

func TestValidateWrapsSentinel(t *testing.T) {
	err := EnrichedString{Text: "a", Links: []Link{{Position: -1, Length: 1}}}.Validate()
	if !errors.Is(err, ErrInvalidString) {
		t.Errorf("Expected ErrInvalidString, got %v", err)
	}
}
