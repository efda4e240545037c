package symbols

import (
	"fmt"
	"strings"

	"github.com/funvibe/given/internal/config"
	"github.com/funvibe/given/internal/typesystem"
)

// Variant distinguishes providers of one fixed type from templates that are
// instantiated per requested type.
type Variant int

const (
	Fixed Variant = iota
	PatternTemplate
)

func (v Variant) String() string {
	if v == PatternTemplate {
		return "pattern"
	}
	return "fixed"
}

// Dependency is a sub-capability a candidate needs before it can be invoked.
type Dependency struct {
	Type     typesystem.TypeRef
	Required bool // False when the parameter declares a default
	Name     string
}

// Provenance records where a candidate came from relative to the unit being resolved.
type Provenance struct {
	Imported   bool
	ImportPath string // The import pattern that made the candidate visible
}

// Candidate is a declaration able to supply a value of Type.
// Candidates are immutable; Substitute and WithProvenance return copies.
type Candidate struct {
	Decl         *Decl
	Type         typesystem.TypeRef
	Dependencies []Dependency

	// TypeParams are the type parameters still to be inferred.
	TypeParams []*typesystem.Classifier

	Variant      Variant
	PatternParam *typesystem.Classifier
	// PatternBounds are the upper bounds a pattern argument must satisfy;
	// empty means unbounded.
	PatternBounds []typesystem.TypeRef

	Preferred bool
	Priority  int

	Provenance Provenance

	// Subst is the specialization applied so far.
	Subst typesystem.Subst
}

// NewCandidate builds a candidate for decl producing typ. The variant is
// derived from typeParams.
func NewCandidate(decl *Decl, typ typesystem.TypeRef, deps []Dependency, typeParams []*typesystem.Classifier) *Candidate {
	c := &Candidate{
		Decl:         decl,
		Type:         typ,
		Dependencies: deps,
		TypeParams:   typeParams,
		Preferred:    decl.Preferred,
		Priority:     decl.Priority,
	}
	for _, tp := range typeParams {
		if tp.Pattern {
			c.Variant = PatternTemplate
			c.PatternParam = tp
			c.PatternBounds = tp.Supertypes
			break
		}
	}
	return c
}

// ID is the identity of the originating declaration.
func (c *Candidate) ID() string {
	return c.Decl.ID
}

// IsPattern reports whether c is an uninstantiated template.
func (c *Candidate) IsPattern() bool {
	return c.Variant == PatternTemplate
}

// Vars indexes the inferable type parameters, excluding static ones.
func (c *Candidate) Vars(static map[string]bool) map[string]*typesystem.Classifier {
	vars := make(map[string]*typesystem.Classifier, len(c.TypeParams))
	for _, tp := range c.TypeParams {
		if !static[tp.Key] {
			vars[tp.Key] = tp
		}
	}
	return vars
}

// Substitute returns c specialized by subst. Bound type parameters are
// removed; a template whose pattern parameter is bound becomes Fixed.
func (c *Candidate) Substitute(subst typesystem.Subst) *Candidate {
	if len(subst) == 0 {
		return c
	}
	out := *c
	out.Type = c.Type.Apply(subst)
	out.Dependencies = make([]Dependency, len(c.Dependencies))
	for i, dep := range c.Dependencies {
		dep.Type = dep.Type.Apply(subst)
		out.Dependencies[i] = dep
	}
	out.TypeParams = nil
	for _, tp := range c.TypeParams {
		if _, bound := subst[tp.Key]; !bound {
			out.TypeParams = append(out.TypeParams, tp)
		}
	}
	if c.PatternParam != nil {
		if _, bound := subst[c.PatternParam.Key]; bound {
			out.Variant = Fixed
		}
	}
	if c.Subst == nil {
		out.Subst = subst
	} else {
		out.Subst = c.Subst.Compose(subst)
	}
	return &out
}

// WithProvenance returns a copy of c carrying p.
func (c *Candidate) WithProvenance(p Provenance) *Candidate {
	out := *c
	out.Provenance = p
	return &out
}

// cacheKey identifies c together with its specialization.
func (c *Candidate) cacheKey(subst typesystem.Subst) string {
	var sb strings.Builder
	sb.WriteString(c.Decl.ID)
	sb.WriteString("@")
	sb.WriteString(c.Provenance.ImportPath)
	for _, k := range subst.Keys() {
		sb.WriteString("|")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(typesystem.Identity(subst[k]))
	}
	for _, k := range c.Subst.Keys() {
		sb.WriteString(";")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(typesystem.Identity(c.Subst[k]))
	}
	return sb.String()
}

func (c *Candidate) String() string {
	var sb strings.Builder
	sb.WriteString(c.Decl.Name)
	if len(c.Dependencies) > 0 {
		sb.WriteString("(")
		for i, dep := range c.Dependencies {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: %s", dep.Name, dep.Type))
		}
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(c.Type.String())
	return sb.String()
}

// receiverDependency is the dependency of a member on its enclosing instance.
func receiverDependency(d *Decl) Dependency {
	return Dependency{Type: d.OwnerType(), Required: true, Name: config.DispatchReceiverName}
}
