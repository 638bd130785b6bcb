package condition

import (
	"fmt"
	"sort"
)

// ParameterType is the declared type of a parameter's values.
type ParameterType string

const (
	Date       ParameterType = "DATE"
	RegimeType ParameterType = "REGIME"
	Boolean    ParameterType = "BOOLEAN"
	Rubrique   ParameterType = "RUBRIQUE"
	RealNumber ParameterType = "REAL_NUMBER"
	String     ParameterType = "STRING"
)

// Ordered reports whether values of the type can be compared with < and >.
func (t ParameterType) Ordered() bool {
	return t == Date || t == RealNumber
}

// Valid reports whether t is a known type.
func (t ParameterType) Valid() bool {
	switch t {
	case Date, RegimeType, Boolean, Rubrique, RealNumber, String:
		return true
	}
	return false
}

// Parameter is a typed variable conditions are expressed over.
type Parameter struct {
	ID   string        `json:"id" yaml:"id"`
	Type ParameterType `json:"type" yaml:"type"`
}

func (p Parameter) String() string {
	return p.ID
}

// Regime is the regulatory regime of an installation.
type Regime string

const (
	RegimeA  Regime = "A"
	RegimeE  Regime = "E"
	RegimeD  Regime = "D"
	RegimeNC Regime = "NC"
)

// Regimes lists every regime in declaration order.
func Regimes() []Regime {
	return []Regime{RegimeA, RegimeE, RegimeD, RegimeNC}
}

// Valid reports whether r is a known regime.
func (r Regime) Valid() bool {
	switch r {
	case RegimeA, RegimeE, RegimeD, RegimeNC:
		return true
	}
	return false
}

// ParameterSet indexes parameters by id.
type ParameterSet map[string]Parameter

// NewParameterSet builds a set, rejecting duplicate ids and unknown types.
func NewParameterSet(params ...Parameter) (ParameterSet, error) {
	set := make(ParameterSet, len(params))
	for _, p := range params {
		if p.ID == "" {
			return nil, fmt.Errorf("parameter with empty id")
		}
		if !p.Type.Valid() {
			return nil, fmt.Errorf("parameter %s: unknown type %q", p.ID, p.Type)
		}
		if _, dup := set[p.ID]; dup {
			return nil, fmt.Errorf("parameter %s declared twice", p.ID)
		}
		set[p.ID] = p
	}
	return set, nil
}

// Sorted returns the parameters ordered by id.
func (s ParameterSet) Sorted() []Parameter {
	out := make([]Parameter, 0, len(s))
	for _, p := range s {
		out = append(out, p)
	}
	SortParameters(out)
	return out
}

// SortParameters orders parameters by id, then type.
func SortParameters(ps []Parameter) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].ID != ps[j].ID {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].Type < ps[j].Type
	})
}
