// Package combination enumerates the distinct document variants a
// parametrization can produce: one option per meaningful value range of each
// parameter, combined by cartesian product.
package combination

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/coolbeans/normtree/pkg/condition"
	"github.com/coolbeans/normtree/pkg/parametrization"
)

// Option is one value range of a parameter and a representative value
// inside it.
type Option struct {
	Name  string
	Value any
}

// Combination is one concrete assignment, named by the option chosen for
// each parameter.
type Combination struct {
	Name   []string
	Values condition.Assignment
}

// Label joins the option names.
func (c Combination) Label() string {
	if len(c.Name) == 0 {
		return "(no parameters)"
	}
	return strings.Join(c.Name, ", ")
}

// Generate returns every combination of the parameters referenced by p,
// parameters ordered by id with the first one varying slowest. Without
// parameters it returns a single empty combination.
func Generate(p *parametrization.Parametrization) ([]Combination, error) {
	leaves := lo.FlatMap(p.Conditions(), func(c condition.Condition, _ int) []condition.Leaf {
		return condition.Leaves(c)
	})
	byParam := lo.GroupBy(leaves, func(l condition.Leaf) condition.Parameter { return l.Param() })

	combos := []Combination{{Name: []string{}, Values: condition.Assignment{}}}
	for _, param := range p.Parameters() {
		options, err := Options(param, byParam[param])
		if err != nil {
			return nil, err
		}
		combos = lo.FlatMap(combos, func(c Combination, _ int) []Combination {
			return lo.Map(options, func(o Option, _ int) Combination {
				values := make(condition.Assignment, len(c.Values)+1)
				for k, v := range c.Values {
					values[k] = v
				}
				values[param] = o.Value
				return Combination{Name: append(slices.Clone(c.Name), o.Name), Values: values}
			})
		})
	}
	return combos, nil
}

// Options returns the options of one parameter given every leaf condition
// on it.
func Options(p condition.Parameter, leaves []condition.Leaf) ([]Option, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("parameter %s: no conditions", p.ID)
	}
	var targets []any
	ordering := false
	for _, l := range leaves {
		switch c := l.(type) {
		case condition.Equal:
			if !slices.ContainsFunc(targets, func(t any) bool { return condition.EqualValues(t, c.Target) }) {
				targets = append(targets, c.Target)
			}
		default:
			ordering = true
		}
	}
	if ordering && !p.Type.Ordered() {
		return nil, fmt.Errorf("%w: ordering condition on %s", condition.ErrInvalidCondition, p.ID)
	}

	switch {
	case ordering:
		return intervalOptions(p, leaves, targets), nil
	case len(targets) == 1:
		t := targets[0]
		return []Option{
			{Name: p.ID + " == " + condition.FormatValue(t), Value: t},
			{Name: p.ID + " != " + condition.FormatValue(t), Value: otherValue(p, targets)},
		}, nil
	case p.Type == condition.RegimeType:
		return lo.Map(condition.Regimes(), func(r condition.Regime, _ int) Option {
			return Option{Name: p.ID + " == " + string(r), Value: r}
		}), nil
	}

	options := lo.Map(targets, func(t any, _ int) Option {
		return Option{Name: p.ID + " == " + condition.FormatValue(t), Value: t}
	})
	if other := otherValue(p, targets); other != nil {
		names := lo.Map(targets, func(t any, _ int) string { return condition.FormatValue(t) })
		options = append(options, Option{Name: p.ID + " not in {" + strings.Join(names, ", ") + "}", Value: other})
	}
	return options, nil
}

// otherValue returns a value of p's type equal to none of targets, or nil
// when the type has no such value.
func otherValue(p condition.Parameter, targets []any) any {
	taken := func(v any) bool {
		return slices.ContainsFunc(targets, func(t any) bool { return condition.EqualValues(t, v) })
	}
	var candidates []any
	switch p.Type {
	case condition.Boolean:
		candidates = []any{true, false}
	case condition.RegimeType:
		candidates = lo.Map(condition.Regimes(), func(r condition.Regime, _ int) any { return r })
	case condition.Date:
		latest := lo.MaxBy(targets, func(a, b any) bool { return a.(time.Time).After(b.(time.Time)) })
		candidates = []any{latest.(time.Time).AddDate(0, 0, 1)}
	case condition.RealNumber:
		candidates = []any{lo.Max(lo.Map(targets, func(t any, _ int) float64 { return t.(float64) })) + 1}
	case condition.String, condition.Rubrique:
		candidates = []any{""}
		for _, t := range targets {
			candidates = append(candidates, t.(string)+"-other")
		}
	}
	for _, c := range candidates {
		if !taken(c) {
			return c
		}
	}
	return nil
}

// intervalOptions splits the axis at every boundary of the leaves. An Equal
// target t adds the boundaries t and t+1 unit so that it gets an interval
// of its own. So does a value bounded both strictly and non-strictly, or
// bounded from both sides of itself: q > t and q < t leave t in neither.
func intervalOptions(p condition.Parameter, leaves []condition.Leaf, equalTargets []any) []Option {
	var bounds []float64
	kinds := make(map[float64]*boundKinds)
	mark := func(v any, strict, below bool) {
		x := axis(v)
		bounds = append(bounds, x)
		k, ok := kinds[x]
		if !ok {
			k = &boundKinds{}
			kinds[x] = k
		}
		k.add(strict, below)
	}
	for _, l := range leaves {
		switch c := l.(type) {
		case condition.Greater:
			mark(c.Target, c.Strict, !c.Strict)
		case condition.Littler:
			mark(c.Target, c.Strict, c.Strict)
		case condition.Range:
			mark(c.Left, c.LeftStrict, !c.LeftStrict)
			mark(c.Right, c.RightStrict, c.RightStrict)
		}
	}
	exact := make(map[float64]bool)
	for _, t := range equalTargets {
		x := axis(t)
		exact[x] = true
		bounds = append(bounds, x, x+1)
	}
	for x, k := range kinds {
		if k.mixed() && !exact[x] {
			exact[x] = true
			bounds = append(bounds, x+1)
		}
	}
	bounds = lo.Uniq(bounds)
	slices.Sort(bounds)

	n := len(bounds)
	options := make([]Option, 0, n+1)
	options = append(options, Option{
		Name:  p.ID + " < " + format(p, bounds[0]),
		Value: value(p, bounds[0]-1),
	})
	for i := 0; i+1 < n; i++ {
		left, right := bounds[i], bounds[i+1]
		rep := left
		if !exact[left] {
			rep = midpoint(p, left, right)
		}
		options = append(options, Option{
			Name:  format(p, left) + " <= " + p.ID + " < " + format(p, right),
			Value: value(p, rep),
		})
	}
	options = append(options, Option{
		Name:  p.ID + " >= " + format(p, bounds[n-1]),
		Value: value(p, bounds[n-1]+1),
	})
	return options
}

// boundKinds records how the leaves bound one value. A bound splits the
// axis below the value (q >= t, q < t) or above it (q > t, q <= t).
type boundKinds struct {
	strict, nonStrict bool
	below, above      bool
}

func (k *boundKinds) add(strict, below bool) {
	if strict {
		k.strict = true
	} else {
		k.nonStrict = true
	}
	if below {
		k.below = true
	} else {
		k.above = true
	}
}

func (k *boundKinds) mixed() bool {
	return (k.strict && k.nonStrict) || (k.below && k.above)
}

const secondsPerDay = 86400

// axis maps dates to day ordinals and numbers to themselves.
func axis(v any) float64 {
	switch x := v.(type) {
	case time.Time:
		return float64(condition.Day(x).Unix() / secondsPerDay)
	case float64:
		return x
	}
	return math.NaN()
}

func value(p condition.Parameter, x float64) any {
	if p.Type == condition.Date {
		return time.Unix(int64(x)*secondsPerDay, 0).UTC()
	}
	return x
}

func midpoint(p condition.Parameter, left, right float64) float64 {
	if p.Type == condition.Date {
		return math.Floor((left + right) / 2)
	}
	return (left + right) / 2
}

func format(p condition.Parameter, x float64) string {
	return condition.FormatValue(value(p, x))
}
