// Package condition models the conditions under which parametrization rules
// apply: typed leaf comparisons over parameters composed with AND and OR,
// their evaluation, and the consistency check used to reject ambiguous rule
// sets.
package condition

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCondition is returned when a condition is malformed: a
	// target of the wrong type, an ordering on a discrete parameter, an
	// empty range or an empty AND/OR.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrNotImplemented is returned by the consistency check for
	// condition shapes it does not decide.
	ErrNotImplemented = errors.New("not implemented")
)

// Condition is a leaf comparison (Equal, Greater, Littler, Range) or a
// composition (And, Or).
type Condition interface {
	isCondition()
}

// Leaf is a condition over a single parameter.
type Leaf interface {
	Condition
	Param() Parameter
}

// Equal holds when the parameter equals Target.
type Equal struct {
	Parameter Parameter
	Target    any
}

// Greater holds when the parameter is above Target (or equal to it when
// not Strict).
type Greater struct {
	Parameter Parameter
	Target    any
	Strict    bool
}

// Littler holds when the parameter is below Target (or equal to it when
// not Strict).
type Littler struct {
	Parameter Parameter
	Target    any
	Strict    bool
}

// Range holds when the parameter lies between Left and Right. A strict
// bound excludes its endpoint.
type Range struct {
	Parameter   Parameter
	Left        any
	Right       any
	LeftStrict  bool
	RightStrict bool
}

// And holds when every sub-condition holds.
type And struct {
	Conditions []Condition
}

// Or holds when at least one sub-condition holds.
type Or struct {
	Conditions []Condition
}

func (Equal) isCondition()   {}
func (Greater) isCondition() {}
func (Littler) isCondition() {}
func (Range) isCondition()   {}
func (And) isCondition()     {}
func (Or) isCondition()      {}

func (c Equal) Param() Parameter   { return c.Parameter }
func (c Greater) Param() Parameter { return c.Parameter }
func (c Littler) Param() Parameter { return c.Parameter }
func (c Range) Param() Parameter   { return c.Parameter }

// NewEqual builds an Equal condition, normalising the target.
func NewEqual(p Parameter, target any) (Equal, error) {
	v, err := NormalizeValue(p.Type, target)
	if err != nil {
		return Equal{}, fmt.Errorf("%w: %s == %v: %v", ErrInvalidCondition, p.ID, target, err)
	}
	return Equal{Parameter: p, Target: v}, nil
}

// NewGreater builds a Greater condition on an ordered parameter.
func NewGreater(p Parameter, target any, strict bool) (Greater, error) {
	v, err := orderedTarget(p, target)
	if err != nil {
		return Greater{}, err
	}
	return Greater{Parameter: p, Target: v, Strict: strict}, nil
}

// NewLittler builds a Littler condition on an ordered parameter.
func NewLittler(p Parameter, target any, strict bool) (Littler, error) {
	v, err := orderedTarget(p, target)
	if err != nil {
		return Littler{}, err
	}
	return Littler{Parameter: p, Target: v, Strict: strict}, nil
}

// NewRange builds a Range condition. The range must contain at least one
// value.
func NewRange(p Parameter, left, right any, leftStrict, rightStrict bool) (Range, error) {
	l, err := orderedTarget(p, left)
	if err != nil {
		return Range{}, err
	}
	r, err := orderedTarget(p, right)
	if err != nil {
		return Range{}, err
	}
	c := Range{Parameter: p, Left: l, Right: r, LeftStrict: leftStrict, RightStrict: rightStrict}
	if leafInterval(c).empty() {
		return Range{}, fmt.Errorf("%w: empty range %s", ErrInvalidCondition, Format(c))
	}
	return c, nil
}

// NewAnd builds an And over at least one condition.
func NewAnd(conditions ...Condition) (And, error) {
	if err := checkChildren("AND", conditions); err != nil {
		return And{}, err
	}
	return And{Conditions: conditions}, nil
}

// NewOr builds an Or over at least one condition.
func NewOr(conditions ...Condition) (Or, error) {
	if err := checkChildren("OR", conditions); err != nil {
		return Or{}, err
	}
	return Or{Conditions: conditions}, nil
}

func checkChildren(op string, conditions []Condition) error {
	if len(conditions) == 0 {
		return fmt.Errorf("%w: %s without operands", ErrInvalidCondition, op)
	}
	for i, c := range conditions {
		if c == nil {
			return fmt.Errorf("%w: %s operand %d is nil", ErrInvalidCondition, op, i)
		}
	}
	return nil
}

func orderedTarget(p Parameter, target any) (any, error) {
	if !p.Type.Ordered() {
		return nil, fmt.Errorf("%w: %s is %s, which has no order", ErrInvalidCondition, p.ID, p.Type)
	}
	v, err := NormalizeValue(p.Type, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCondition, p.ID, err)
	}
	return v, nil
}

// Validate checks a condition built without the constructors, for example
// one decoded from storage.
func Validate(c Condition) error {
	switch c := c.(type) {
	case Equal:
		_, err := NewEqual(c.Parameter, c.Target)
		return err
	case Greater:
		_, err := NewGreater(c.Parameter, c.Target, c.Strict)
		return err
	case Littler:
		_, err := NewLittler(c.Parameter, c.Target, c.Strict)
		return err
	case Range:
		_, err := NewRange(c.Parameter, c.Left, c.Right, c.LeftStrict, c.RightStrict)
		return err
	case And:
		return validateChildren("AND", c.Conditions)
	case Or:
		return validateChildren("OR", c.Conditions)
	case nil:
		return fmt.Errorf("%w: nil condition", ErrInvalidCondition)
	}
	return fmt.Errorf("%w: unknown condition %T", ErrInvalidCondition, c)
}

func validateChildren(op string, conditions []Condition) error {
	if err := checkChildren(op, conditions); err != nil {
		return err
	}
	for _, child := range conditions {
		if err := Validate(child); err != nil {
			return err
		}
	}
	return nil
}

// Leaves returns the leaf conditions of c, left to right.
func Leaves(c Condition) []Leaf {
	var out []Leaf
	var walk func(Condition)
	walk = func(c Condition) {
		switch c := c.(type) {
		case Leaf:
			out = append(out, c)
		case And:
			for _, child := range c.Conditions {
				walk(child)
			}
		case Or:
			for _, child := range c.Conditions {
				walk(child)
			}
		}
	}
	walk(c)
	return out
}

// Parameters returns the distinct parameters c refers to, ordered by id.
func Parameters(c Condition) []Parameter {
	seen := make(map[Parameter]bool)
	var out []Parameter
	for _, l := range Leaves(c) {
		if p := l.Param(); !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	SortParameters(out)
	return out
}

// Depth returns the nesting depth: 0 for a leaf, 1 for an And/Or of leaves.
func Depth(c Condition) int {
	var children []Condition
	switch c := c.(type) {
	case And:
		children = c.Conditions
	case Or:
		children = c.Conditions
	default:
		return 0
	}
	d := 0
	for _, child := range children {
		if cd := Depth(child); cd > d {
			d = cd
		}
	}
	return d + 1
}
