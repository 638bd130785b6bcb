package parametrization

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/normtree/pkg/condition"
	"github.com/coolbeans/normtree/pkg/text"
)

// File is the authoring format of a parametrization. Parameters are
// declared once and conditions are written in the condition expression
// grammar, for example:
//
//	parameters:
//	  - id: regime
//	    type: REGIME
//	inapplicable:
//	  - id: r1
//	    target: "2.1"
//	    condition: regime == D
//	alternatives:
//	  - id: a1
//	    target_id: 8f0c...
//	    condition: date < 2003-07-01
//	    replacement:
//	      title: "Article 3"
//	      alineas: ["Les installations existantes ..."]
type File struct {
	Parameters   []condition.Parameter `yaml:"parameters"`
	Inapplicable []InapplicableDef     `yaml:"inapplicable"`
	Alternatives []AlternativeDef      `yaml:"alternatives"`
	Warnings     []WarningDef          `yaml:"warnings"`
}

// TargetDef addresses a node by path key ("0.2", "" for the root) or by id.
type TargetDef struct {
	Target   string `yaml:"target"`
	TargetID string `yaml:"target_id"`
}

// InapplicableDef is an authored InapplicableSection.
type InapplicableDef struct {
	ID          string `yaml:"id"`
	TargetDef   `yaml:",inline"`
	Alineas     []int  `yaml:"alineas"`
	Condition   string `yaml:"condition"`
	Description string `yaml:"description"`
}

// AlternativeDef is an authored AlternativeSection.
type AlternativeDef struct {
	ID          string         `yaml:"id"`
	TargetDef   `yaml:",inline"`
	Replacement ReplacementDef `yaml:"replacement"`
	Condition   string         `yaml:"condition"`
	Description string         `yaml:"description"`
}

// ReplacementDef is the plain-text content of an alternative section.
type ReplacementDef struct {
	Title    string           `yaml:"title"`
	Alineas  []string         `yaml:"alineas"`
	Sections []ReplacementDef `yaml:"sections"`
}

// WarningDef is an authored Warning.
type WarningDef struct {
	ID        string `yaml:"id"`
	TargetDef `yaml:",inline"`
	Text      string `yaml:"text"`
}

// LoadFile reads an authoring file from disk. See LoadYAML.
func LoadFile(path string, tree *text.StructuredText) (*Parametrization, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parametrization file: %w", err)
	}
	p, err := LoadYAML(data, tree)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// LoadYAML parses an authoring document and builds the parametrization.
// tree resolves target_id references and may be nil when every target is
// given as a path.
func LoadYAML(data []byte, tree *text.StructuredText) (*Parametrization, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing parametrization YAML: %w", err)
	}
	return f.Build(tree)
}

// Build resolves targets, parses conditions and calls New.
func (f *File) Build(tree *text.StructuredText) (*Parametrization, error) {
	params, err := condition.NewParameterSet(f.Parameters...)
	if err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}
	ids := text.NewIDGenerator()

	var inapplicable []InapplicableSection
	for _, d := range f.Inapplicable {
		target, err := d.resolve(tree)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", d.ID, err)
		}
		c, err := condition.Parse(d.Condition, params)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", d.ID, err)
		}
		inapplicable = append(inapplicable, InapplicableSection{
			ID:            d.ID,
			Target:        target,
			AlineaIndices: d.Alineas,
			Condition:     c,
			Description:   d.Description,
		})
	}

	var alternatives []AlternativeSection
	for _, d := range f.Alternatives {
		target, err := d.resolve(tree)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", d.ID, err)
		}
		c, err := condition.Parse(d.Condition, params)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", d.ID, err)
		}
		replacement := d.Replacement.tree()
		text.AssignIDs(replacement, ids)
		alternatives = append(alternatives, AlternativeSection{
			ID:          d.ID,
			Target:      target,
			Replacement: replacement,
			Condition:   c,
			Description: d.Description,
		})
	}

	var warnings []Warning
	for _, d := range f.Warnings {
		target, err := d.resolve(tree)
		if err != nil {
			return nil, fmt.Errorf("warning %s: %w", d.ID, err)
		}
		warnings = append(warnings, Warning{ID: d.ID, Target: target, Text: d.Text})
	}

	return New(inapplicable, alternatives, warnings)
}

func (d TargetDef) resolve(tree *text.StructuredText) (text.Path, error) {
	if d.TargetID == "" {
		return text.ParsePath(d.Target)
	}
	if d.Target != "" {
		return nil, fmt.Errorf("%w: both target and target_id given", ErrInvalidRule)
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: target_id %s needs a document", ErrInvalidRule, d.TargetID)
	}
	path, ok := text.PathOf(tree, d.TargetID)
	if !ok {
		return nil, fmt.Errorf("%w: no node with id %s", ErrInvalidRule, d.TargetID)
	}
	return path, nil
}

func (r ReplacementDef) tree() *text.StructuredText {
	node := &text.StructuredText{
		Title:        text.NewString(r.Title),
		OuterAlineas: make([]text.EnrichedString, 0, len(r.Alineas)),
		Sections:     make([]*text.StructuredText, 0, len(r.Sections)),
	}
	for _, a := range r.Alineas {
		node.OuterAlineas = append(node.OuterAlineas, text.NewString(a))
	}
	for _, s := range r.Sections {
		node.Sections = append(node.Sections, s.tree())
	}
	return node
}
