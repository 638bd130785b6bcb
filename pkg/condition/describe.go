package condition

import "strings"

// Describe renders c as an English sentence, for example
// "regime is D and date is before 2003-07-01".
func Describe(c Condition) string {
	switch c := c.(type) {
	case Equal:
		return c.Parameter.ID + " is " + FormatValue(c.Target)
	case Greater:
		if c.Parameter.Type == Date {
			return c.Parameter.ID + " is " + pick(c.Strict, "after ", "on or after ") + FormatValue(c.Target)
		}
		return c.Parameter.ID + " is " + pick(c.Strict, "above ", "at least ") + FormatValue(c.Target)
	case Littler:
		if c.Parameter.Type == Date {
			return c.Parameter.ID + " is " + pick(c.Strict, "before ", "on or before ") + FormatValue(c.Target)
		}
		return c.Parameter.ID + " is " + pick(c.Strict, "below ", "at most ") + FormatValue(c.Target)
	case Range:
		return c.Parameter.ID + " is between " + FormatValue(c.Left) + pick(c.LeftStrict, " (excluded)", "") +
			" and " + FormatValue(c.Right) + pick(c.RightStrict, " (excluded)", "")
	case And:
		return joinDescriptions(c.Conditions, " and ")
	case Or:
		return joinDescriptions(c.Conditions, " or ")
	}
	return ""
}

func joinDescriptions(conditions []Condition, sep string) string {
	parts := make([]string, len(conditions))
	for i, child := range conditions {
		parts[i] = Describe(child)
		switch child.(type) {
		case And, Or:
			parts[i] = "(" + parts[i] + ")"
		}
	}
	return strings.Join(parts, sep)
}
