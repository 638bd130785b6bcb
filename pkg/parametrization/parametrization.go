// Package parametrization holds the conditional rules attached to a
// document: sections that become inapplicable, sections replaced by an
// alternative text, and reviewer warnings. Rule sets are checked for
// ambiguity when they are built.
package parametrization

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/samber/lo"

	"github.com/coolbeans/normtree/pkg/condition"
	"github.com/coolbeans/normtree/pkg/text"
)

var (
	// ErrInconsistent is returned when two rules on the same target could
	// both hold for one assignment.
	ErrInconsistent = errors.New("inconsistent parametrization")

	// ErrInvalidRule is returned for malformed rules: a missing id or
	// condition, a duplicate id, bad alinea indices or an alternative
	// targeting the root.
	ErrInvalidRule = errors.New("invalid rule")
)

// InapplicableSection makes the target node inapplicable when Condition
// holds. With AlineaIndices nil the whole node and its descendants are
// inapplicable; otherwise only the listed outer alineas are.
type InapplicableSection struct {
	ID            string
	Target        text.Path
	AlineaIndices []int
	Condition     condition.Condition
	Description   string
}

// WholeNode reports whether the rule targets the whole node.
func (r InapplicableSection) WholeNode() bool {
	return r.AlineaIndices == nil
}

// SameEffect reports whether r and o remove the same content: both the
// whole node, or the same set of alineas.
func (r InapplicableSection) SameEffect(o InapplicableSection) bool {
	if r.WholeNode() != o.WholeNode() {
		return false
	}
	return sameSet(r.AlineaIndices, o.AlineaIndices)
}

// AlternativeSection replaces the target node's content by Replacement when
// Condition holds.
type AlternativeSection struct {
	ID          string
	Target      text.Path
	Replacement *text.StructuredText
	Condition   condition.Condition
	Description string
}

// SameEffect reports whether r and o install the same replacement.
func (r AlternativeSection) SameEffect(o AlternativeSection) bool {
	return SameShape(r.Replacement, o.Replacement)
}

// Warning is a reviewer note attached to a node in every version.
type Warning struct {
	ID     string
	Target text.Path
	Text   string
}

// Rules are the rules attached to one node.
type Rules struct {
	Inapplicable []InapplicableSection
	Alternatives []AlternativeSection
	Warnings     []Warning
}

// Empty reports whether no rule is attached.
func (r Rules) Empty() bool {
	return len(r.Inapplicable) == 0 && len(r.Alternatives) == 0 && len(r.Warnings) == 0
}

// Parametrization is a checked rule set. Build it with New.
type Parametrization struct {
	inapplicable []InapplicableSection
	alternatives []AlternativeSection
	warnings     []Warning
	byPath       map[string]*Rules
}

// New validates the rules, indexes them by target and checks that rules
// sharing a target cannot hold together. A pair of rules is checked when
// their conditions share exactly one parameter and the rules are not
// similar (same alinea set, or replacements of the same shape).
func New(inapplicable []InapplicableSection, alternatives []AlternativeSection, warnings []Warning) (*Parametrization, error) {
	p := &Parametrization{
		inapplicable: slices.Clone(inapplicable),
		alternatives: slices.Clone(alternatives),
		warnings:     slices.Clone(warnings),
		byPath:       make(map[string]*Rules),
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	for _, r := range p.inapplicable {
		p.rulesAt(r.Target).Inapplicable = append(p.rulesAt(r.Target).Inapplicable, r)
	}
	for _, r := range p.alternatives {
		p.rulesAt(r.Target).Alternatives = append(p.rulesAt(r.Target).Alternatives, r)
	}
	for _, w := range p.warnings {
		p.rulesAt(w.Target).Warnings = append(p.rulesAt(w.Target).Warnings, w)
	}
	if err := p.checkConsistency(); err != nil {
		return nil, err
	}
	return p, nil
}

// Empty returns a parametrization without rules.
func Empty() *Parametrization {
	return &Parametrization{byPath: make(map[string]*Rules)}
}

func (p *Parametrization) rulesAt(path text.Path) *Rules {
	key := path.Key()
	r, ok := p.byPath[key]
	if !ok {
		r = &Rules{}
		p.byPath[key] = r
	}
	return r
}

func (p *Parametrization) validate() error {
	seen := make(map[string]bool)
	checkID := func(id string) error {
		if id == "" {
			return fmt.Errorf("%w: rule without id", ErrInvalidRule)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidRule, id)
		}
		seen[id] = true
		return nil
	}

	for _, r := range p.inapplicable {
		if err := checkID(r.ID); err != nil {
			return err
		}
		if err := checkCondition(r.ID, r.Condition); err != nil {
			return err
		}
		if r.AlineaIndices != nil {
			if len(r.Target) == 0 {
				return fmt.Errorf("%w: %s removes alineas of the root", ErrInvalidRule, r.ID)
			}
			if len(r.AlineaIndices) == 0 {
				return fmt.Errorf("%w: %s has an empty alinea list", ErrInvalidRule, r.ID)
			}
			if lo.SomeBy(r.AlineaIndices, func(i int) bool { return i < 0 }) {
				return fmt.Errorf("%w: %s has a negative alinea index", ErrInvalidRule, r.ID)
			}
			if len(lo.Uniq(r.AlineaIndices)) != len(r.AlineaIndices) {
				return fmt.Errorf("%w: %s repeats an alinea index", ErrInvalidRule, r.ID)
			}
		}
	}
	for _, r := range p.alternatives {
		if err := checkID(r.ID); err != nil {
			return err
		}
		if err := checkCondition(r.ID, r.Condition); err != nil {
			return err
		}
		if len(r.Target) == 0 {
			return fmt.Errorf("%w: alternative %s targets the root", ErrInvalidRule, r.ID)
		}
		if r.Replacement == nil {
			return fmt.Errorf("%w: alternative %s has no replacement", ErrInvalidRule, r.ID)
		}
	}
	for _, w := range p.warnings {
		if err := checkID(w.ID); err != nil {
			return err
		}
		if w.Text == "" {
			return fmt.Errorf("%w: warning %s has no text", ErrInvalidRule, w.ID)
		}
	}
	return nil
}

func checkCondition(id string, c condition.Condition) error {
	if c == nil {
		return fmt.Errorf("%w: %s has no condition", ErrInvalidRule, id)
	}
	if err := condition.Validate(c); err != nil {
		return fmt.Errorf("rule %s: %w", id, err)
	}
	return nil
}

// Inapplicable returns every inapplicability rule in declaration order.
func (p *Parametrization) Inapplicable() []InapplicableSection {
	return p.inapplicable
}

// Alternatives returns every alternative rule in declaration order.
func (p *Parametrization) Alternatives() []AlternativeSection {
	return p.alternatives
}

// Warnings returns every warning in declaration order.
func (p *Parametrization) Warnings() []Warning {
	return p.warnings
}

// ForPath returns the rules attached to the node at path.
func (p *Parametrization) ForPath(path text.Path) Rules {
	if r, ok := p.byPath[path.Key()]; ok {
		return *r
	}
	return Rules{}
}

// Targets returns the paths that carry at least one rule.
func (p *Parametrization) Targets() []text.Path {
	keys := lo.Keys(p.byPath)
	slices.Sort(keys)
	return lo.Map(keys, func(k string, _ int) text.Path {
		path, _ := text.ParsePath(k)
		return path
	})
}

// Conditions returns the condition of every rule, inapplicability rules
// first.
func (p *Parametrization) Conditions() []condition.Condition {
	out := lo.Map(p.inapplicable, func(r InapplicableSection, _ int) condition.Condition { return r.Condition })
	return append(out, lo.Map(p.alternatives, func(r AlternativeSection, _ int) condition.Condition { return r.Condition })...)
}

// Parameters returns the distinct parameters referenced by the rules,
// ordered by id.
func (p *Parametrization) Parameters() []condition.Parameter {
	params := lo.Uniq(lo.FlatMap(p.Conditions(), func(c condition.Condition, _ int) []condition.Parameter {
		return condition.Parameters(c)
	}))
	condition.SortParameters(params)
	return params
}

// Len returns the number of rules and warnings.
func (p *Parametrization) Len() int {
	return len(p.inapplicable) + len(p.alternatives) + len(p.warnings)
}

// rule is the view of a rule used by the consistency check.
type rule struct {
	id        string
	condition condition.Condition
	alineas   []int
	alt       *text.StructuredText
	isAlt     bool
}

func (p *Parametrization) checkConsistency() error {
	keys := lo.Keys(p.byPath)
	slices.Sort(keys)
	for _, key := range keys {
		group := p.byPath[key]
		rules := lo.Map(group.Inapplicable, func(r InapplicableSection, _ int) rule {
			return rule{id: r.ID, condition: r.Condition, alineas: r.AlineaIndices}
		})
		rules = append(rules, lo.Map(group.Alternatives, func(r AlternativeSection, _ int) rule {
			return rule{id: r.ID, condition: r.Condition, alt: r.Replacement, isAlt: true}
		})...)

		for i := 0; i < len(rules); i++ {
			for j := i + 1; j < len(rules); j++ {
				if err := checkPair(rules[i], rules[j]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkPair(a, b rule) error {
	pa, pb := condition.Parameters(a.condition), condition.Parameters(b.condition)
	shared := lo.CountBy(pa, func(x condition.Parameter) bool { return slices.Contains(pb, x) })
	if shared != 1 || similar(a, b) {
		return nil
	}
	both, err := condition.CouldBeSimultaneouslySatisfied(a.condition, b.condition)
	if err != nil {
		return fmt.Errorf("checking rules %s and %s: %w", a.id, b.id, err)
	}
	if both {
		return fmt.Errorf("%w: rules %s and %s can both hold (%s / %s)",
			ErrInconsistent, a.id, b.id, condition.Format(a.condition), condition.Format(b.condition))
	}
	return nil
}

func similar(a, b rule) bool {
	if a.isAlt != b.isAlt {
		return false
	}
	if a.isAlt {
		return AlternativeSection{Replacement: a.alt}.SameEffect(AlternativeSection{Replacement: b.alt})
	}
	return InapplicableSection{AlineaIndices: a.alineas}.SameEffect(InapplicableSection{AlineaIndices: b.alineas})
}

func sameSet(a, b []int) bool {
	x, y := lo.Uniq(a), lo.Uniq(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

// SameShape reports whether two trees carry the same content, ignoring
// node ids.
func SameShape(a, b *text.StructuredText) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !reflect.DeepEqual(a.Title, b.Title) || len(a.OuterAlineas) != len(b.OuterAlineas) || len(a.Sections) != len(b.Sections) {
		return false
	}
	for i := range a.OuterAlineas {
		if !reflect.DeepEqual(a.OuterAlineas[i], b.OuterAlineas[i]) {
			return false
		}
	}
	for i := range a.Sections {
		if !SameShape(a.Sections[i], b.Sections[i]) {
			return false
		}
	}
	return true
}
