package parser

import "strings"

// TypeExpr is an unresolved type expression. Names are resolved against
// declarations by the caller.
type TypeExpr struct {
	Name     string // Empty for star projections and function types
	Args     []*TypeExpr
	Nullable bool
	Star     bool
	Tags     []string
	Variance string // "in", "out" or empty; only on type arguments

	// Params is set for function types "(A, B) -> R"; the result is Args[0].
	Params   []*TypeExpr
	Function bool

	Offset int
}

// Result returns the result type of a function type.
func (t *TypeExpr) Result() *TypeExpr {
	if !t.Function || len(t.Args) == 0 {
		return nil
	}
	return t.Args[0]
}

func (t *TypeExpr) String() string {
	var sb strings.Builder
	for _, tag := range t.Tags {
		sb.WriteString("@" + tag + " ")
	}
	if t.Variance != "" {
		sb.WriteString(t.Variance + " ")
	}
	switch {
	case t.Star:
		sb.WriteString("*")
		return sb.String()
	case t.Function:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = p.String()
		}
		if t.Nullable {
			sb.WriteString("(")
		}
		sb.WriteString("(" + strings.Join(params, ", ") + ") -> " + t.Result().String())
		if t.Nullable {
			sb.WriteString(")?")
		}
		return sb.String()
	}
	sb.WriteString(t.Name)
	if len(t.Args) > 0 {
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.String()
		}
		sb.WriteString("<" + strings.Join(args, ", ") + ">")
	}
	if t.Nullable {
		sb.WriteString("?")
	}
	return sb.String()
}
