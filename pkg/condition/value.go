package condition

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidValue is returned when a value does not fit its parameter type.
var ErrInvalidValue = errors.New("invalid parameter value")

// DateLayout is the textual form of DATE values.
const DateLayout = "2006-01-02"

// Assignment gives a value to some parameters. Values are time.Time (UTC
// midnight) for DATE, Regime, bool, float64 for REAL_NUMBER and string for
// RUBRIQUE and STRING.
type Assignment map[Parameter]any

// Lookup returns the value assigned to p.
func (a Assignment) Lookup(p Parameter) (any, bool) {
	v, ok := a[p]
	return v, ok
}

// Parameters returns the assigned parameters ordered by id.
func (a Assignment) Parameters() []Parameter {
	out := make([]Parameter, 0, len(a))
	for p := range a {
		out = append(out, p)
	}
	SortParameters(out)
	return out
}

// String renders the assignment as "p1=v1, p2=v2" ordered by id.
func (a Assignment) String() string {
	parts := make([]string, 0, len(a))
	for _, p := range a.Parameters() {
		parts = append(parts, p.ID+"="+FormatValue(a[p]))
	}
	return strings.Join(parts, ", ")
}

type assignmentEntry struct {
	Parameter Parameter       `json:"parameter"`
	Value     json.RawMessage `json:"value"`
}

// MarshalJSON encodes the assignment as a list ordered by parameter id.
func (a Assignment) MarshalJSON() ([]byte, error) {
	entries := make([]assignmentEntry, 0, len(a))
	for _, p := range a.Parameters() {
		raw, err := marshalValue(a[p])
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.ID, err)
		}
		entries = append(entries, assignmentEntry{Parameter: p, Value: raw})
	}
	return json.Marshal(entries)
}

// UnmarshalJSON decodes the output of MarshalJSON.
func (a *Assignment) UnmarshalJSON(data []byte) error {
	var entries []assignmentEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	out := make(Assignment, len(entries))
	for _, e := range entries {
		v, err := unmarshalValue(e.Parameter.Type, e.Value)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", e.Parameter.ID, err)
		}
		out[e.Parameter] = v
	}
	*a = out
	return nil
}

// NormalizeValue converts v to the canonical Go type of t. Strings are
// parsed as with ParseValue.
func NormalizeValue(t ParameterType, v any) (any, error) {
	if s, ok := v.(string); ok && t != String && t != Rubrique {
		return ParseValue(t, s)
	}
	switch t {
	case Date:
		if d, ok := v.(time.Time); ok {
			return Day(d), nil
		}
	case RegimeType:
		if r, ok := v.(Regime); ok && r.Valid() {
			return r, nil
		}
	case Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case RealNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case String, Rubrique:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %v (%T) is not a %s", ErrInvalidValue, v, v, t)
}

// ParseValue parses the textual form of a value of type t.
func ParseValue(t ParameterType, s string) (any, error) {
	s = strings.TrimSpace(s)
	switch t {
	case Date:
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a date (%s)", ErrInvalidValue, s, DateLayout)
		}
		return d, nil
	case RegimeType:
		r := Regime(strings.ToUpper(s))
		if !r.Valid() {
			return nil, fmt.Errorf("%w: %q is not a regime", ErrInvalidValue, s)
		}
		return r, nil
	case Boolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, s)
		}
		return b, nil
	case RealNumber:
		f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, s)
		}
		return f, nil
	case String, Rubrique:
		return s, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidValue, t)
}

// FormatValue renders a canonical value.
func FormatValue(v any) string {
	switch x := v.(type) {
	case time.Time:
		return x.Format(DateLayout)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case Regime:
		return string(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayOrdinal counts days since the Unix epoch.
func dayOrdinal(t time.Time) int64 {
	return Day(t).Unix() / 86400
}

// EqualValues reports whether two canonical values are equal.
func EqualValues(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// CompareValues orders two values of the same ordered type. ok is false
// when the values are not comparable.
func CompareValues(a, b any) (int, bool) {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func marshalValue(v any) (json.RawMessage, error) {
	switch x := v.(type) {
	case time.Time:
		return json.Marshal(x.Format(DateLayout))
	case Regime:
		return json.Marshal(string(x))
	case bool, float64, string:
		return json.Marshal(x)
	}
	return nil, fmt.Errorf("%w: cannot encode %T", ErrInvalidValue, v)
}

func unmarshalValue(t ParameterType, raw json.RawMessage) (any, error) {
	switch t {
	case Boolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidValue, raw)
		}
		return b, nil
	case RealNumber:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidValue, raw)
		}
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, raw)
	}
	return ParseValue(t, s)
}
