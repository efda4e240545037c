package symbols

import (
	"github.com/funvibe/given/internal/typesystem"
)

// Index computes candidates from declarations and caches them for the
// lifetime of a resolution session. Entries are written once and never
// invalidated. An Index is not safe for concurrent use.
type Index struct {
	byDecl    map[string][]*Candidate
	instances map[string]*Candidate
	synthetic map[string]*Candidate
}

func NewIndex() *Index {
	return &Index{
		byDecl:    make(map[string][]*Candidate),
		instances: make(map[string]*Candidate),
		synthetic: make(map[string]*Candidate),
	}
}

// CandidatesOf returns the candidates contributed by d, or nil when d is
// not a provider.
//
//   - a function, property or local carrying the provider marker yields one candidate
//   - a provider class yields its constructor, its provider property
//     parameters and the candidates of its provider members
//   - members of a class request the enclosing instance first
func (ix *Index) CandidatesOf(d *Decl) []*Candidate {
	if cached, ok := ix.byDecl[d.ID]; ok {
		return cached
	}
	out := ix.compute(d)
	ix.byDecl[d.ID] = out
	return out
}

func (ix *Index) compute(d *Decl) []*Candidate {
	switch d.Kind {
	case ClassDecl:
		if !d.Provide || d.Class == nil {
			return nil
		}
		var out []*Candidate
		out = append(out, NewCandidate(d, d.Class.Type(), dependenciesOf(d), ownerTypeParams(d.Owner, d.TypeParams)))
		for _, p := range d.Params {
			if p.Property && p.Provide {
				out = append(out, ix.PropertyCandidate(d, p))
			}
		}
		for _, m := range d.Members {
			if m.Provide {
				out = append(out, ix.CandidatesOf(m)...)
			}
		}
		return out

	case FunctionDecl, PropertyDecl, LocalDecl:
		if !d.Provide {
			return nil
		}
		var deps []Dependency
		if d.IsMember() {
			deps = append(deps, receiverDependency(d))
		}
		deps = append(deps, dependenciesOf(d)...)
		return []*Candidate{NewCandidate(d, d.Type, deps, ownerTypeParams(d.Owner, d.TypeParams))}
	}
	return nil
}

// PropertyCandidate returns the candidate of a value-backed constructor
// parameter of class. It requests the class instance.
func (ix *Index) PropertyCandidate(class *Decl, p Param) *Candidate {
	id := class.ID + "." + p.Name
	if c, ok := ix.synthetic[id]; ok {
		return c
	}
	decl := &Decl{
		ID:      id,
		Name:    p.Name,
		Package: class.Package,
		Kind:    PropertyDecl,
		Provide: true,
		Type:    p.Type,
		Owner:   class,
		Span:    p.Span,
	}
	c := NewCandidate(decl, p.Type, []Dependency{receiverDependency(decl)}, ownerTypeParams(class, nil))
	ix.synthetic[id] = c
	return c
}

// ParameterCandidate returns the candidate supplied by a requested value
// parameter inside the body of fn.
func (ix *Index) ParameterCandidate(fn *Decl, p Param) *Candidate {
	id := fn.ID + "." + p.Name
	if c, ok := ix.synthetic[id]; ok {
		return c
	}
	decl := &Decl{
		ID:      id,
		Name:    p.Name,
		Package: fn.Package,
		Kind:    ParameterDecl,
		Type:    p.Type,
		Span:    p.Span,
	}
	c := NewCandidate(decl, p.Type, nil, nil)
	ix.synthetic[id] = c
	return c
}

// BoundCandidate returns the candidate supplied inside the body of fn by
// the value its pattern type parameter tp was matched against. Its type is
// tp itself, so it satisfies every upper bound of tp.
func (ix *Index) BoundCandidate(fn *Decl, tp *typesystem.Classifier) *Candidate {
	id := fn.ID + "#" + tp.Name
	if c, ok := ix.synthetic[id]; ok {
		return c
	}
	t := typesystem.TypeRef{Classifier: tp}
	decl := &Decl{
		ID:      id,
		Name:    tp.Name,
		Package: fn.Package,
		Kind:    ParameterDecl,
		Type:    t,
		Span:    fn.Span,
	}
	c := NewCandidate(decl, t, nil, nil)
	ix.synthetic[id] = c
	return c
}

// ReceiverCandidate returns the dispatch receiver of class: the instance
// available to code inside the class body.
func (ix *Index) ReceiverCandidate(class *Decl) *Candidate {
	id := class.ID + ".this"
	if c, ok := ix.synthetic[id]; ok {
		return c
	}
	decl := &Decl{
		ID:      id,
		Name:    "this@" + class.Name,
		Package: class.Package,
		Kind:    ParameterDecl,
		Type:    class.Class.Type(),
		Span:    class.Span,
	}
	c := NewCandidate(decl, decl.Type, nil, nil)
	ix.synthetic[id] = c
	return c
}

// Instantiate returns c.Substitute(subst), cached by candidate identity and substitution.
func (ix *Index) Instantiate(c *Candidate, subst typesystem.Subst) *Candidate {
	if len(subst) == 0 {
		return c
	}
	key := c.cacheKey(subst)
	if cached, ok := ix.instances[key]; ok {
		return cached
	}
	out := c.Substitute(subst)
	ix.instances[key] = out
	return out
}

// Len returns the number of declarations indexed so far.
func (ix *Index) Len() int {
	return len(ix.byDecl)
}

func dependenciesOf(d *Decl) []Dependency {
	var deps []Dependency
	for _, p := range d.RequestedParams() {
		deps = append(deps, Dependency{Type: p.Type, Required: !p.HasDefault, Name: p.Name})
	}
	return deps
}

// ownerTypeParams prepends the type parameters of every enclosing class.
func ownerTypeParams(owner *Decl, own []*typesystem.Classifier) []*typesystem.Classifier {
	var chain []*typesystem.Classifier
	for o := owner; o != nil; o = o.Owner {
		chain = append(append([]*typesystem.Classifier(nil), o.TypeParams...), chain...)
	}
	if len(chain) == 0 {
		return own
	}
	return append(chain, own...)
}
