package symbols

import (
	"github.com/funvibe/given/internal/diagnostics"
)

// Rule is one independent check over a declaration snapshot.
type Rule struct {
	Code  diagnostics.Code
	Name  string
	Check func(d *Decl) []diagnostics.Diagnostic
}

// Rules is a registry of declaration rules.
type Rules []Rule

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		{Code: diagnostics.CodePatternOnNonProvider, Name: "pattern-on-non-provider", Check: checkPatternOnNonProvider},
		{Code: diagnostics.CodeMultiplePatternParams, Name: "multiple-pattern-params", Check: checkMultiplePatternParams},
		{Code: diagnostics.CodeUntypedRequestedParam, Name: "untyped-requested-param", Check: checkUntypedRequestedParams},
		{Code: diagnostics.CodePreferredWithoutMarker, Name: "preferred-without-provide", Check: checkPreferredWithoutProvide},
		{Code: diagnostics.CodeUninjectableParam, Name: "uninjectable-param", Check: checkUninjectableParams},
	}
}

// Register appends r.
func (rs *Rules) Register(r Rule) {
	*rs = append(*rs, r)
}

// Check runs every rule over each declaration, its members and companion.
func (rs Rules) Check(decls ...*Decl) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	for _, d := range decls {
		d.Walk(func(d *Decl) {
			for _, r := range rs {
				out = append(out, r.Check(d)...)
			}
		})
	}
	return out
}

func checkPatternOnNonProvider(d *Decl) []diagnostics.Diagnostic {
	if d.Provide || len(d.PatternParams()) == 0 {
		return nil
	}
	return []diagnostics.Diagnostic{diagnostics.New(diagnostics.CodePatternOnNonProvider, d.Span,
		"pattern type parameter %s on %s, which is not a provider", d.PatternParams()[0], d.Name)}
}

func checkMultiplePatternParams(d *Decl) []diagnostics.Diagnostic {
	if patterns := d.PatternParams(); len(patterns) > 1 {
		return []diagnostics.Diagnostic{diagnostics.New(diagnostics.CodeMultiplePatternParams, d.Span,
			"%s declares %d pattern type parameters, at most one is allowed", d.Name, len(patterns))}
	}
	return nil
}

func checkUntypedRequestedParams(d *Decl) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	for _, p := range d.Params {
		if p.Requested && !p.Typed {
			out = append(out, diagnostics.New(diagnostics.CodeUntypedRequestedParam, p.Span,
				"requested parameter %s of %s must declare a type", p.Name, d.Name))
		}
	}
	return out
}

func checkPreferredWithoutProvide(d *Decl) []diagnostics.Diagnostic {
	if d.Preferred && !d.Provide {
		return []diagnostics.Diagnostic{diagnostics.New(diagnostics.CodePreferredWithoutMarker, d.Span,
			"%s is marked preferred but is not a provider", d.Name)}
	}
	return nil
}

// A provider is invoked with resolved arguments only, so every ordinary
// parameter needs a default.
func checkUninjectableParams(d *Decl) []diagnostics.Diagnostic {
	if !d.Provide {
		return nil
	}
	var out []diagnostics.Diagnostic
	for _, p := range d.Params {
		if !p.Requested && !p.HasDefault {
			out = append(out, diagnostics.New(diagnostics.CodeUninjectableParam, p.Span,
				"parameter %s of provider %s is neither requested nor defaulted", p.Name, d.Name))
		}
	}
	return out
}
