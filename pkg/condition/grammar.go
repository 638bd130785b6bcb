package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Condition expressions read like
//
//	regime == A
//	date < 2003-07-01
//	2003-07-01 <= date < 2017-07-01
//	regime == E AND (date < 2003-07-01 OR rubrique == "2510-1")
//
// AND binds tighter than OR.

//nolint:govet // participle grammar tags are not standard struct tags
type exprNode struct {
	Terms []*andNode `@@ ( "OR" @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type andNode struct {
	Terms []*termNode `@@ ( "AND" @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type termNode struct {
	Group *exprNode `  "(" @@ ")"`
	Cmp   *cmpNode  `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type cmpNode struct {
	Left   *operandNode `@@`
	Op     string       `@Operator`
	Middle *operandNode `@@`
	Tail   *cmpTail     `@@?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type cmpTail struct {
	Op    string       `@Operator`
	Right *operandNode `@@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type operandNode struct {
	Date   *string `  @Date`
	Number *string `| @Number`
	String *string `| @String`
	Ident  *string `| @Ident`
}

func (o *operandNode) raw() string {
	switch {
	case o.Date != nil:
		return *o.Date
	case o.Number != nil:
		return *o.Number
	case o.String != nil:
		if s, err := strconv.Unquote(*o.String); err == nil {
			return s
		}
		return *o.String
	case o.Ident != nil:
		return *o.Ident
	}
	return ""
}

var conditionLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Date", Pattern: `\d{4}-\d{2}-\d{2}`},
	{Name: "Number", Pattern: `-?\d+(?:[.,]\d+)?`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_\-]*`},
	{Name: "Operator", Pattern: `==|<=|>=|<|>`},
	{Name: "Punct", Pattern: `[()]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var conditionParser = participle.MustBuild[exprNode](
	participle.Lexer(conditionLexer),
	participle.Elide("Whitespace"),
)

// Parse reads a condition expression. Identifiers naming a parameter of
// params are parameters; every other operand is a value of the parameter it
// is compared with.
func Parse(expr string, params ParameterSet) (Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidCondition)
	}
	tree, err := conditionParser.ParseString("", expr)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %q: %v", ErrInvalidCondition, expr, err)
	}
	c, err := buildExpr(tree, params)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", expr, err)
	}
	return c, nil
}

func buildExpr(e *exprNode, params ParameterSet) (Condition, error) {
	terms := make([]Condition, 0, len(e.Terms))
	for _, t := range e.Terms {
		c, err := buildAnd(t, params)
		if err != nil {
			return nil, err
		}
		terms = append(terms, c)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return NewOr(terms...)
}

func buildAnd(a *andNode, params ParameterSet) (Condition, error) {
	terms := make([]Condition, 0, len(a.Terms))
	for _, t := range a.Terms {
		var (
			c   Condition
			err error
		)
		if t.Group != nil {
			c, err = buildExpr(t.Group, params)
		} else {
			c, err = buildCmp(t.Cmp, params)
		}
		if err != nil {
			return nil, err
		}
		terms = append(terms, c)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return NewAnd(terms...)
}

func (o *operandNode) parameter(params ParameterSet) (Parameter, bool) {
	if o.Ident == nil {
		return Parameter{}, false
	}
	p, ok := params[*o.Ident]
	return p, ok
}

func buildCmp(c *cmpNode, params ParameterSet) (Condition, error) {
	if c.Tail != nil {
		return buildRange(c, params)
	}

	if p, ok := c.Left.parameter(params); ok {
		return leafFor(p, c.Op, c.Middle.raw())
	}
	if p, ok := c.Middle.parameter(params); ok {
		return leafFor(p, mirror(c.Op), c.Left.raw())
	}
	return nil, fmt.Errorf("%w: no known parameter in %s %s %s", ErrInvalidCondition, c.Left.raw(), c.Op, c.Middle.raw())
}

func buildRange(c *cmpNode, params ParameterSet) (Condition, error) {
	p, ok := c.Middle.parameter(params)
	if !ok {
		return nil, fmt.Errorf("%w: range needs a parameter in the middle, got %s", ErrInvalidCondition, c.Middle.raw())
	}
	left, right := c.Left.raw(), c.Tail.Right.raw()
	op1, op2 := c.Op, c.Tail.Op
	if (op1 == ">" || op1 == ">=") && (op2 == ">" || op2 == ">=") {
		left, right = right, left
		op1, op2 = mirror(op2), mirror(op1)
	}
	if (op1 != "<" && op1 != "<=") || (op2 != "<" && op2 != "<=") {
		return nil, fmt.Errorf("%w: range operators %s and %s", ErrInvalidCondition, c.Op, c.Tail.Op)
	}
	return NewRange(p, left, right, op1 == "<", op2 == "<")
}

func leafFor(p Parameter, op, value string) (Condition, error) {
	switch op {
	case "==":
		return NewEqual(p, value)
	case "<":
		return NewLittler(p, value, true)
	case "<=":
		return NewLittler(p, value, false)
	case ">":
		return NewGreater(p, value, true)
	case ">=":
		return NewGreater(p, value, false)
	}
	return nil, fmt.Errorf("%w: operator %q", ErrInvalidCondition, op)
}

func mirror(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	}
	return op
}

var bareValue = regexp.MustCompile(`^(?:\d{4}-\d{2}-\d{2}|-?\d+(?:\.\d+)?|[\p{L}_][\p{L}\p{N}_\-]*)$`)

func formatOperand(v any) string {
	s := FormatValue(v)
	if _, isString := v.(string); isString {
		if !bareValue.MatchString(s) || s == "AND" || s == "OR" {
			return strconv.Quote(s)
		}
	}
	return s
}

// Format prints c in the expression grammar read by Parse.
func Format(c Condition) string {
	switch c := c.(type) {
	case Equal:
		return c.Parameter.ID + " == " + formatOperand(c.Target)
	case Greater:
		return c.Parameter.ID + " " + pick(c.Strict, ">", ">=") + " " + formatOperand(c.Target)
	case Littler:
		return c.Parameter.ID + " " + pick(c.Strict, "<", "<=") + " " + formatOperand(c.Target)
	case Range:
		return formatOperand(c.Left) + " " + pick(c.LeftStrict, "<", "<=") + " " + c.Parameter.ID +
			" " + pick(c.RightStrict, "<", "<=") + " " + formatOperand(c.Right)
	case And:
		parts := make([]string, len(c.Conditions))
		for i, child := range c.Conditions {
			parts[i] = Format(child)
			if _, isOr := child.(Or); isOr {
				parts[i] = "(" + parts[i] + ")"
			}
		}
		return strings.Join(parts, " AND ")
	case Or:
		parts := make([]string, len(c.Conditions))
		for i, child := range c.Conditions {
			parts[i] = Format(child)
		}
		return strings.Join(parts, " OR ")
	}
	return fmt.Sprintf("<%T>", c)
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
