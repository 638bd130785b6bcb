package condition

// IsSatisfied evaluates c under a. A leaf whose parameter is not assigned is
// not satisfied.
func IsSatisfied(c Condition, a Assignment) bool {
	switch c := c.(type) {
	case Equal:
		v, ok := a[c.Parameter]
		return ok && EqualValues(v, c.Target)
	case Greater:
		cmp, ok := compareAssigned(a, c.Parameter, c.Target)
		return ok && (cmp > 0 || (!c.Strict && cmp == 0))
	case Littler:
		cmp, ok := compareAssigned(a, c.Parameter, c.Target)
		return ok && (cmp < 0 || (!c.Strict && cmp == 0))
	case Range:
		left, ok := compareAssigned(a, c.Parameter, c.Left)
		if !ok || left < 0 || (c.LeftStrict && left == 0) {
			return false
		}
		right, ok := compareAssigned(a, c.Parameter, c.Right)
		return ok && (right < 0 || (!c.RightStrict && right == 0))
	case And:
		for _, child := range c.Conditions {
			if !IsSatisfied(child, a) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range c.Conditions {
			if IsSatisfied(child, a) {
				return true
			}
		}
		return false
	}
	return false
}

func compareAssigned(a Assignment, p Parameter, target any) (int, bool) {
	v, ok := a[p]
	if !ok {
		return 0, false
	}
	return CompareValues(v, target)
}

// MissingParameters returns the parameters of c that a does not assign,
// ordered by id.
func MissingParameters(c Condition, a Assignment) []Parameter {
	var out []Parameter
	for _, p := range Parameters(c) {
		if _, ok := a[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}
