package condition

import (
	"fmt"
	"math"
	"time"
)

// interval is the set of values a leaf accepts on an ordered axis. Dates are
// day ordinals with strict bounds already moved one day inward, so their
// intervals are always closed.
type interval struct {
	lo, hi         float64
	loOpen, hiOpen bool
}

func (iv interval) empty() bool {
	if iv.lo < iv.hi {
		return false
	}
	return iv.lo > iv.hi || iv.loOpen || iv.hiOpen
}

func intersect(a, b interval) interval {
	out := a
	if b.lo > out.lo || (b.lo == out.lo && b.loOpen) {
		out.lo, out.loOpen = b.lo, b.loOpen
	}
	if b.hi < out.hi || (b.hi == out.hi && b.hiOpen) {
		out.hi, out.hiOpen = b.hi, b.hiOpen
	}
	return out
}

func axisValue(v any) float64 {
	switch x := v.(type) {
	case time.Time:
		return float64(dayOrdinal(x))
	case float64:
		return x
	}
	return math.NaN()
}

// bound returns the axis position of a bound and whether it stays open.
// Strict date bounds are shifted by one day toward the inside.
func bound(p Parameter, v any, strict bool, lower bool) (float64, bool) {
	x := axisValue(v)
	if p.Type == Date && strict {
		if lower {
			return x + 1, false
		}
		return x - 1, false
	}
	return x, strict
}

func leafInterval(l Leaf) interval {
	p := l.Param()
	full := interval{lo: math.Inf(-1), hi: math.Inf(1), loOpen: true, hiOpen: true}
	switch c := l.(type) {
	case Equal:
		x := axisValue(c.Target)
		return interval{lo: x, hi: x}
	case Greater:
		full.lo, full.loOpen = bound(p, c.Target, c.Strict, true)
	case Littler:
		full.hi, full.hiOpen = bound(p, c.Target, c.Strict, false)
	case Range:
		full.lo, full.loOpen = bound(p, c.Left, c.LeftStrict, true)
		full.hi, full.hiOpen = bound(p, c.Right, c.RightStrict, false)
	}
	return full
}

// compatible reports whether the leaves, all on the same parameter, can
// hold together.
func compatible(leaves []Leaf) (bool, error) {
	if len(leaves) < 2 {
		return true, nil
	}
	p := leaves[0].Param()

	if !p.Type.Ordered() {
		var target any
		for i, l := range leaves {
			eq, ok := l.(Equal)
			if !ok {
				return false, fmt.Errorf("%w: %T on discrete parameter %s", ErrInvalidCondition, l, p.ID)
			}
			if i == 0 {
				target = eq.Target
			} else if !EqualValues(target, eq.Target) {
				return false, nil
			}
		}
		return true, nil
	}

	iv := leafInterval(leaves[0])
	for _, l := range leaves[1:] {
		iv = intersect(iv, leafInterval(l))
	}
	return !iv.empty(), nil
}

func leavesOn(p Parameter, conditions []Condition) []Leaf {
	var out []Leaf
	for _, c := range conditions {
		if l, ok := c.(Leaf); ok && l.Param() == p {
			out = append(out, l)
		}
	}
	return out
}

// CouldBeSimultaneouslySatisfied reports whether some assignment might
// satisfy both a and b. Supported shapes are leaf, And of leaves and Or of
// leaves on either side, except Or against Or.
//
// Against an Or, the other condition must be compatible with every branch.
// Between two Ands, each shared parameter is checked on its own.
func CouldBeSimultaneouslySatisfied(a, b Condition) (bool, error) {
	if Depth(a) > 1 || Depth(b) > 1 {
		return false, fmt.Errorf("%w: conditions nested deeper than one level", ErrNotImplemented)
	}
	if rank(a) > rank(b) {
		a, b = b, a
	}

	switch x := a.(type) {
	case Leaf:
		switch y := b.(type) {
		case Leaf:
			return leafLeaf(x, y)
		case And:
			return leafAnd(x, y)
		case Or:
			return forAllBranches(y, func(branch Leaf) (bool, error) { return leafLeaf(x, branch) })
		}
	case And:
		switch y := b.(type) {
		case And:
			return andAnd(x, y)
		case Or:
			return forAllBranches(y, func(branch Leaf) (bool, error) { return leafAnd(branch, x) })
		}
	case Or:
		if _, ok := b.(Or); ok {
			return false, fmt.Errorf("%w: OR against OR", ErrNotImplemented)
		}
	}
	return false, fmt.Errorf("%w: %T against %T", ErrNotImplemented, a, b)
}

func rank(c Condition) int {
	switch c.(type) {
	case Leaf:
		return 0
	case And:
		return 1
	case Or:
		return 2
	}
	return 3
}

func leafLeaf(a, b Leaf) (bool, error) {
	if a.Param() != b.Param() {
		return true, nil
	}
	return compatible([]Leaf{a, b})
}

func leafAnd(l Leaf, and And) (bool, error) {
	return compatible(append([]Leaf{l}, leavesOn(l.Param(), and.Conditions)...))
}

func andAnd(a, b And) (bool, error) {
	for _, p := range Parameters(a) {
		other := leavesOn(p, b.Conditions)
		if len(other) == 0 {
			continue
		}
		ok, err := compatible(append(leavesOn(p, a.Conditions), other...))
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func forAllBranches(or Or, check func(Leaf) (bool, error)) (bool, error) {
	for _, c := range or.Conditions {
		branch, ok := c.(Leaf)
		if !ok {
			return false, fmt.Errorf("%w: OR branch %T", ErrNotImplemented, c)
		}
		ok, err := check(branch)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
