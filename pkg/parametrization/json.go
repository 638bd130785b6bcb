package parametrization

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"

	"github.com/coolbeans/normtree/pkg/condition"
	"github.com/coolbeans/normtree/pkg/text"
)

type inapplicableJSON struct {
	ID            string         `json:"id"`
	Target        string         `json:"target"`
	AlineaIndices []int          `json:"alinea_indices"`
	Condition     condition.JSON `json:"condition"`
	Description   string         `json:"description,omitempty"`
}

type alternativeJSON struct {
	ID          string               `json:"id"`
	Target      string               `json:"target"`
	Replacement *text.StructuredText `json:"replacement"`
	Condition   condition.JSON       `json:"condition"`
	Description string               `json:"description,omitempty"`
}

type warningJSON struct {
	ID     string `json:"id"`
	Target string `json:"target"`
	Text   string `json:"text"`
}

type documentJSON struct {
	Inapplicable []inapplicableJSON `json:"inapplicable"`
	Alternatives []alternativeJSON  `json:"alternatives"`
	Warnings     []warningJSON      `json:"warnings"`
}

// MarshalJSON encodes the rules. Targets are path keys such as "0.2".
func (p *Parametrization) MarshalJSON() ([]byte, error) {
	doc := documentJSON{
		Inapplicable: lo.Map(p.inapplicable, func(r InapplicableSection, _ int) inapplicableJSON {
			return inapplicableJSON{
				ID:            r.ID,
				Target:        r.Target.Key(),
				AlineaIndices: r.AlineaIndices,
				Condition:     condition.JSON{Condition: r.Condition},
				Description:   r.Description,
			}
		}),
		Alternatives: lo.Map(p.alternatives, func(r AlternativeSection, _ int) alternativeJSON {
			return alternativeJSON{
				ID:          r.ID,
				Target:      r.Target.Key(),
				Replacement: r.Replacement,
				Condition:   condition.JSON{Condition: r.Condition},
				Description: r.Description,
			}
		}),
		Warnings: lo.Map(p.warnings, func(w Warning, _ int) warningJSON {
			return warningJSON{ID: w.ID, Target: w.Target.Key(), Text: w.Text}
		}),
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes the output of MarshalJSON and runs the same checks
// as New.
func (p *Parametrization) UnmarshalJSON(data []byte) error {
	var doc documentJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding parametrization: %w", err)
	}

	var (
		inapplicable []InapplicableSection
		alternatives []AlternativeSection
		warnings     []Warning
	)
	for _, r := range doc.Inapplicable {
		target, err := text.ParsePath(r.Target)
		if err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
		inapplicable = append(inapplicable, InapplicableSection{
			ID:            r.ID,
			Target:        target,
			AlineaIndices: r.AlineaIndices,
			Condition:     r.Condition.Condition,
			Description:   r.Description,
		})
	}
	for _, r := range doc.Alternatives {
		target, err := text.ParsePath(r.Target)
		if err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
		alternatives = append(alternatives, AlternativeSection{
			ID:          r.ID,
			Target:      target,
			Replacement: r.Replacement,
			Condition:   r.Condition.Condition,
			Description: r.Description,
		})
	}
	for _, w := range doc.Warnings {
		target, err := text.ParsePath(w.Target)
		if err != nil {
			return fmt.Errorf("warning %s: %w", w.ID, err)
		}
		warnings = append(warnings, Warning{ID: w.ID, Target: target, Text: w.Text})
	}

	built, err := New(inapplicable, alternatives, warnings)
	if err != nil {
		return err
	}
	*p = *built
	return nil
}
