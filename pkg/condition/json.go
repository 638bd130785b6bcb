package condition

import (
	"encoding/json"
	"fmt"
)

// Condition kinds in the tagged JSON form.
const (
	KindEqual   = "EQUAL"
	KindGreater = "GREATER"
	KindLittler = "LITTLER"
	KindRange   = "RANGE"
	KindAnd     = "AND"
	KindOr      = "OR"
)

type wireCondition struct {
	Type        string            `json:"type"`
	Parameter   *Parameter        `json:"parameter,omitempty"`
	Target      json.RawMessage   `json:"target,omitempty"`
	Strict      *bool             `json:"strict,omitempty"`
	Left        json.RawMessage   `json:"left,omitempty"`
	Right       json.RawMessage   `json:"right,omitempty"`
	LeftStrict  *bool             `json:"left_strict,omitempty"`
	RightStrict *bool             `json:"right_strict,omitempty"`
	Conditions  []json.RawMessage `json:"conditions,omitempty"`
}

// MarshalCondition encodes c as a JSON object tagged by "type".
func MarshalCondition(c Condition) ([]byte, error) {
	w, err := toWire(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func toWire(c Condition) (*wireCondition, error) {
	switch c := c.(type) {
	case Equal:
		target, err := marshalValue(c.Target)
		if err != nil {
			return nil, err
		}
		p := c.Parameter
		return &wireCondition{Type: KindEqual, Parameter: &p, Target: target}, nil
	case Greater:
		return orderedWire(KindGreater, c.Parameter, c.Target, c.Strict)
	case Littler:
		return orderedWire(KindLittler, c.Parameter, c.Target, c.Strict)
	case Range:
		left, err := marshalValue(c.Left)
		if err != nil {
			return nil, err
		}
		right, err := marshalValue(c.Right)
		if err != nil {
			return nil, err
		}
		p, ls, rs := c.Parameter, c.LeftStrict, c.RightStrict
		return &wireCondition{Type: KindRange, Parameter: &p, Left: left, Right: right, LeftStrict: &ls, RightStrict: &rs}, nil
	case And:
		return compositeWire(KindAnd, c.Conditions)
	case Or:
		return compositeWire(KindOr, c.Conditions)
	}
	return nil, fmt.Errorf("%w: cannot encode %T", ErrInvalidCondition, c)
}

func orderedWire(kind string, p Parameter, target any, strict bool) (*wireCondition, error) {
	raw, err := marshalValue(target)
	if err != nil {
		return nil, err
	}
	return &wireCondition{Type: kind, Parameter: &p, Target: raw, Strict: &strict}, nil
}

func compositeWire(kind string, conditions []Condition) (*wireCondition, error) {
	w := &wireCondition{Type: kind, Conditions: make([]json.RawMessage, 0, len(conditions))}
	for _, child := range conditions {
		raw, err := MarshalCondition(child)
		if err != nil {
			return nil, err
		}
		w.Conditions = append(w.Conditions, raw)
	}
	return w, nil
}

// UnmarshalCondition decodes the output of MarshalCondition and validates
// the result.
func UnmarshalCondition(data []byte) (Condition, error) {
	var w wireCondition
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding condition: %w", err)
	}

	switch w.Type {
	case KindAnd, KindOr:
		children := make([]Condition, 0, len(w.Conditions))
		for _, raw := range w.Conditions {
			child, err := UnmarshalCondition(raw)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if w.Type == KindAnd {
			return NewAnd(children...)
		}
		return NewOr(children...)
	}

	if w.Parameter == nil {
		return nil, fmt.Errorf("%w: %s without parameter", ErrInvalidCondition, w.Type)
	}
	p := *w.Parameter
	switch w.Type {
	case KindEqual:
		target, err := unmarshalValue(p.Type, w.Target)
		if err != nil {
			return nil, err
		}
		return NewEqual(p, target)
	case KindGreater, KindLittler:
		target, err := unmarshalValue(p.Type, w.Target)
		if err != nil {
			return nil, err
		}
		strict := w.Strict != nil && *w.Strict
		if w.Type == KindGreater {
			return NewGreater(p, target, strict)
		}
		return NewLittler(p, target, strict)
	case KindRange:
		left, err := unmarshalValue(p.Type, w.Left)
		if err != nil {
			return nil, err
		}
		right, err := unmarshalValue(p.Type, w.Right)
		if err != nil {
			return nil, err
		}
		return NewRange(p, left, right, w.LeftStrict != nil && *w.LeftStrict, w.RightStrict != nil && *w.RightStrict)
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidCondition, w.Type)
}

// JSON wraps a Condition so it can sit in structs encoded with
// encoding/json.
type JSON struct {
	Condition Condition
}

// MarshalJSON implements json.Marshaler.
func (j JSON) MarshalJSON() ([]byte, error) {
	if j.Condition == nil {
		return []byte("null"), nil
	}
	return MarshalCondition(j.Condition)
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSON) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		j.Condition = nil
		return nil
	}
	c, err := UnmarshalCondition(data)
	if err != nil {
		return err
	}
	j.Condition = c
	return nil
}
