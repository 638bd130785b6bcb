package pattern

import (
	"reflect"
	"testing"
)

func TestDefaultCatalogOrder(t *testing.T) {
	want := []string{
		"roman", "roman-dash",
		"numeric-d1", "numeric-d2", "numeric-d3", "numeric-d4",
		"numeric-d1-dash", "numeric-d2-dash", "numeric-d3-dash",
		"numeric-d2-space", "numeric-d3-space",
		"numeric-circle", "parenthesis", "letters", "caps",
		"annexe", "annexe-roman",
	}
	if got := Default().Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestPatternCompile(t *testing.T) {
	p, err := PatternDef{Name: "caps", Regexp: `[A-Z]\. `, Sequence: "upper", PrefixFormat: "%s. "}.Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if p.Match("B. x") != 3 {
		t.Errorf("Match() = %d, want 3 (regexp is anchored)", p.Match("B. x"))
	}
	if p.Match("xB. x") != 0 {
		t.Error("Match() should only accept matches at the start")
	}
	if !p.Increasing() || p.Prefixes()[1] != "B. " {
		t.Errorf("Prefixes() = %v", p.Prefixes())
	}

	if _, err := (PatternDef{Name: "x", Regexp: `(`}).Compile(); err == nil {
		t.Error("Compile() should fail on a bad regexp")
	}
	if _, err := (PatternDef{Name: "x", Regexp: `a`, Sequence: "nope"}).Compile(); err == nil {
		t.Error("Compile() should fail on an unknown sequence")
	}
}

func TestRomanSequence(t *testing.T) {
	seq := romanSequence(39)
	checks := map[int]string{0: "I", 3: "IV", 8: "IX", 13: "XIV", 18: "XIX", 38: "XXXIX"}
	for i, want := range checks {
		if seq[i] != want {
			t.Errorf("romanSequence[%d] = %q, want %q", i, seq[i], want)
		}
	}
}

func TestRomanRegexpCoversSequence(t *testing.T) {
	roman, _ := Default().Pattern("roman")
	for _, prefix := range roman.Prefixes() {
		if roman.Match(prefix+"x") != len(prefix) {
			t.Errorf("roman pattern does not match canonical prefix %q", prefix)
		}
	}
}
