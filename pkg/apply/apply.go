// Package apply produces the version of a document that holds for one
// parameter assignment. The template tree is never modified: Apply rebuilds
// every node and records what happened to it in its Applicability.
package apply

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/coolbeans/normtree/pkg/condition"
	"github.com/coolbeans/normtree/pkg/parametrization"
	"github.com/coolbeans/normtree/pkg/text"
)

var (
	// ErrAmbiguousRootRule is returned when several whole-document rules
	// hold at once.
	ErrAmbiguousRootRule = errors.New("ambiguous root rules")

	// ErrAmbiguousRules is returned when several rules of the same kind
	// hold on one node.
	ErrAmbiguousRules = errors.New("ambiguous rules")

	// ErrConflictingRules is returned when an alternative and an
	// inapplicability both hold on one node.
	ErrConflictingRules = errors.New("conflicting rules")
)

// Apply returns the version of tree for assignment a.
func Apply(tree *text.StructuredText, p *parametrization.Parametrization, a condition.Assignment) (*text.StructuredText, error) {
	if tree == nil {
		return nil, nil
	}
	if p == nil {
		p = parametrization.Empty()
	}

	root := text.Path{}
	rules := p.ForPath(root)
	satisfied := collapse(lo.Filter(rules.Inapplicable, func(r parametrization.InapplicableSection, _ int) bool {
		return condition.IsSatisfied(r.Condition, a)
	}), parametrization.InapplicableSection.SameEffect)
	if len(satisfied) > 1 {
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRootRule, strings.Join(inapplicableIDs(satisfied), ", "))
	}
	if len(satisfied) == 1 {
		return deactivate(tree, inactiveReason(satisfied[0])), nil
	}

	out := shallow(tree)
	out.OuterAlineas = cloneStrings(tree.OuterAlineas)
	out.Applicability = &text.Applicability{Active: true, Warnings: warnings(rules, a)}
	sections, err := applySections(tree, root, p, a)
	if err != nil {
		return nil, err
	}
	out.Sections = sections
	return out, nil
}

func applySections(node *text.StructuredText, path text.Path, p *parametrization.Parametrization, a condition.Assignment) ([]*text.StructuredText, error) {
	if node.Sections == nil {
		return nil, nil
	}
	out := make([]*text.StructuredText, len(node.Sections))
	for i, child := range node.Sections {
		rebuilt, err := applyNode(child, path.Child(i), p, a)
		if err != nil {
			return nil, err
		}
		out[i] = rebuilt
	}
	return out, nil
}

func applyNode(node *text.StructuredText, path text.Path, p *parametrization.Parametrization, a condition.Assignment) (*text.StructuredText, error) {
	rules := p.ForPath(path)
	inapplicable := collapse(lo.Filter(rules.Inapplicable, func(r parametrization.InapplicableSection, _ int) bool {
		return condition.IsSatisfied(r.Condition, a)
	}), parametrization.InapplicableSection.SameEffect)
	alternatives := collapse(lo.Filter(rules.Alternatives, func(r parametrization.AlternativeSection, _ int) bool {
		return condition.IsSatisfied(r.Condition, a)
	}), parametrization.AlternativeSection.SameEffect)

	switch {
	case len(inapplicable) > 0 && len(alternatives) > 0:
		return nil, fmt.Errorf("%w at %s: %s and %s", ErrConflictingRules, path,
			strings.Join(inapplicableIDs(inapplicable), ", "), strings.Join(alternativeIDs(alternatives), ", "))
	case len(inapplicable) > 1:
		return nil, fmt.Errorf("%w at %s: %s", ErrAmbiguousRules, path, strings.Join(inapplicableIDs(inapplicable), ", "))
	case len(alternatives) > 1:
		return nil, fmt.Errorf("%w at %s: %s", ErrAmbiguousRules, path, strings.Join(alternativeIDs(alternatives), ", "))
	case len(alternatives) == 1:
		return replace(node, alternatives[0], rules), nil
	case len(inapplicable) == 1 && inapplicable[0].WholeNode():
		return deactivate(node, inactiveReason(inapplicable[0])), nil
	case len(inapplicable) == 1:
		return removeAlineas(node, path, inapplicable[0], rules, p, a)
	}

	out := shallow(node)
	out.OuterAlineas = cloneStrings(node.OuterAlineas)
	out.Applicability = &text.Applicability{Active: true, Warnings: warnings(rules, a)}
	sections, err := applySections(node, path, p, a)
	if err != nil {
		return nil, err
	}
	out.Sections = sections
	return out, nil
}

// collapse keeps the first of each group of rules with the same effect.
// Construction lets such rules hold together.
func collapse[R any](rules []R, same func(R, R) bool) []R {
	var out []R
	for _, r := range rules {
		if !slices.ContainsFunc(out, func(kept R) bool { return same(kept, r) }) {
			out = append(out, r)
		}
	}
	return out
}

// shallow copies the node's id, title and enrichment, not its content.
func shallow(node *text.StructuredText) *text.StructuredText {
	out := &text.StructuredText{ID: node.ID, Title: node.Title.Clone()}
	if node.Reference != nil {
		r := *node.Reference
		out.Reference = &r
	}
	if node.Annotations != nil {
		a := *node.Annotations
		out.Annotations = &a
	}
	return out
}

func replace(node *text.StructuredText, alt parametrization.AlternativeSection, rules parametrization.Rules) *text.StructuredText {
	replacement := alt.Replacement.Clone()
	out := shallow(node)
	out.Title = replacement.Title
	out.OuterAlineas = replacement.OuterAlineas
	out.Sections = replacement.Sections
	out.Applicability = &text.Applicability{
		Active:          true,
		Modified:        true,
		ReasonModified:  modifiedReason(alt),
		Warnings:        explicitWarnings(rules),
		PreviousVersion: node.Clone(),
	}
	return out
}

func removeAlineas(node *text.StructuredText, path text.Path, r parametrization.InapplicableSection, rules parametrization.Rules, p *parametrization.Parametrization, a condition.Assignment) (*text.StructuredText, error) {
	out := shallow(node)
	removed := 0
	for i, alinea := range node.OuterAlineas {
		if slices.Contains(r.AlineaIndices, i) {
			removed++
			continue
		}
		out.OuterAlineas = append(out.OuterAlineas, alinea.Clone())
	}
	if out.OuterAlineas == nil && node.OuterAlineas != nil {
		out.OuterAlineas = []text.EnrichedString{}
	}

	reason := r.Description
	if reason == "" {
		reason = fmt.Sprintf("%d %s removed", removed, lo.Ternary(removed == 1, "alinea", "alineas"))
	}
	out.Applicability = &text.Applicability{
		Active:          true,
		Modified:        true,
		ReasonModified:  reason,
		Warnings:        explicitWarnings(rules),
		PreviousVersion: node.Clone(),
	}
	sections, err := applySections(node, path, p, a)
	if err != nil {
		return nil, err
	}
	out.Sections = sections
	return out, nil
}

// deactivate marks node and every descendant inactive. Content is kept.
func deactivate(node *text.StructuredText, reason string) *text.StructuredText {
	out := node.Clone()
	text.Walk(out, func(_ text.Path, n *text.StructuredText) bool {
		n.Applicability = &text.Applicability{Active: false, ReasonInactive: reason}
		return true
	})
	return out
}

// warnings lists, for every rule of the node that depends on an unassigned
// parameter, a note that its applicability is undetermined, followed by the
// node's explicit warnings.
func warnings(rules parametrization.Rules, a condition.Assignment) []string {
	var out []string
	note := func(c condition.Condition, description string) {
		missing := condition.MissingParameters(c, a)
		if len(missing) == 0 {
			return
		}
		if description != "" {
			out = append(out, description)
			return
		}
		ids := lo.Map(missing, func(p condition.Parameter, _ int) string { return p.ID })
		out = append(out, fmt.Sprintf("Applicability depends on %s, which is not set: %s.",
			strings.Join(ids, ", "), condition.Describe(c)))
	}
	for _, r := range rules.Inapplicable {
		note(r.Condition, r.Description)
	}
	for _, r := range rules.Alternatives {
		note(r.Condition, r.Description)
	}
	return append(out, explicitWarnings(rules)...)
}

func explicitWarnings(rules parametrization.Rules) []string {
	if len(rules.Warnings) == 0 {
		return nil
	}
	return lo.Map(rules.Warnings, func(w parametrization.Warning, _ int) string { return w.Text })
}

func inactiveReason(r parametrization.InapplicableSection) string {
	if r.Description != "" {
		return r.Description
	}
	return fmt.Sprintf("Not applicable when %s.", condition.Describe(r.Condition))
}

func modifiedReason(r parametrization.AlternativeSection) string {
	if r.Description != "" {
		return r.Description
	}
	return fmt.Sprintf("Modified when %s.", condition.Describe(r.Condition))
}

func inapplicableIDs(rules []parametrization.InapplicableSection) []string {
	return lo.Map(rules, func(r parametrization.InapplicableSection, _ int) string { return r.ID })
}

func alternativeIDs(rules []parametrization.AlternativeSection) []string {
	return lo.Map(rules, func(r parametrization.AlternativeSection, _ int) string { return r.ID })
}

func cloneStrings(in []text.EnrichedString) []text.EnrichedString {
	if in == nil {
		return nil
	}
	out := make([]text.EnrichedString, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
