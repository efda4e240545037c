// Package scope implements the chain of lookup contexts a call site sees:
// imported units, the current unit and file, enclosing classes and
// functions, and the locals declared before the call.
package scope

import (
	"strings"

	"github.com/funvibe/given/internal/symbols"
	"github.com/funvibe/given/internal/typesystem"
)

// Kind is the syntactic construct a scope frame belongs to.
type Kind int

const (
	External Kind = iota
	Module
	File
	Class
	Function
	Local
	Lambda // Nested frame offering the parameters of a deferred provider
)

func (k Kind) String() string {
	switch k {
	case External:
		return "external"
	case Module:
		return "module"
	case File:
		return "file"
	case Class:
		return "class"
	case Function:
		return "function"
	case Local:
		return "local"
	case Lambda:
		return "lambda"
	default:
		return "unknown"
	}
}

// Entry is a candidate visible from a scope together with the nesting of
// the frame that contributes it. Greater nesting means nearer.
type Entry struct {
	Candidate *symbols.Candidate
	Nesting   int
	Scope     *Scope
}

// Scope is one immutable frame of the lookup chain.
type Scope struct {
	Name    string
	Kind    Kind
	Parent  *Scope
	Nesting int

	candidates []*symbols.Candidate
	byKey      map[string][]*symbols.Candidate
	wildcard   []*symbols.Candidate // produced type is a type parameter
	static     []*typesystem.Classifier
}

// New creates a frame below parent. The frame is one level deeper than its
// parent; a nil parent makes a root frame at nesting 0.
func New(kind Kind, name string, parent *Scope, candidates []*symbols.Candidate, static []*typesystem.Classifier) *Scope {
	s := &Scope{
		Name:       name,
		Kind:       kind,
		Parent:     parent,
		candidates: candidates,
		byKey:      make(map[string][]*symbols.Candidate),
		static:     static,
	}
	if parent != nil {
		s.Nesting = parent.Nesting + 1
	}
	for _, c := range candidates {
		s.index(c)
	}
	return s
}

// OrParent returns a new frame, or parent itself when the frame would
// contribute nothing.
func OrParent(kind Kind, name string, parent *Scope, candidates []*symbols.Candidate, static []*typesystem.Classifier) *Scope {
	if parent != nil && len(candidates) == 0 && len(static) == 0 {
		return parent
	}
	return New(kind, name, parent, candidates, static)
}

func (s *Scope) index(c *symbols.Candidate) {
	if c.Type.IsTypeParameter() || c.Type.IsNothing() {
		s.wildcard = append(s.wildcard, c)
		return
	}
	for _, key := range supertypeKeys(c.Type.Classifier) {
		s.byKey[key] = append(s.byKey[key], c)
	}
}

// supertypeKeys lists c and every classifier reachable through its supertypes.
func supertypeKeys(c *typesystem.Classifier) []string {
	var keys []string
	seen := make(map[string]bool)
	var walk func(*typesystem.Classifier)
	walk = func(c *typesystem.Classifier) {
		if c == nil || seen[c.Key] {
			return
		}
		seen[c.Key] = true
		keys = append(keys, c.Key)
		for _, super := range c.Supertypes {
			walk(super.Classifier)
		}
	}
	walk(c)
	return keys
}

// Own returns the candidates this frame contributes, in declaration order.
func (s *Scope) Own() []*symbols.Candidate {
	return s.candidates
}

// ownFor returns own candidates that may produce t, in declaration order.
func (s *Scope) ownFor(t typesystem.TypeRef) []*symbols.Candidate {
	if t.IsAny() || t.IsNothing() {
		return s.candidates
	}
	byKey := s.byKey[t.Key()]
	if len(s.wildcard) == 0 {
		return byKey
	}
	if len(byKey) == 0 {
		return s.wildcard
	}
	// keep declaration order
	want := make(map[*symbols.Candidate]bool, len(byKey)+len(s.wildcard))
	for _, c := range byKey {
		want[c] = true
	}
	for _, c := range s.wildcard {
		want[c] = true
	}
	var out []*symbols.Candidate
	for _, c := range s.candidates {
		if want[c] {
			out = append(out, c)
		}
	}
	return out
}

// CandidatesFor returns the candidates of the whole chain whose produced
// type may satisfy t, nearest frame first. A declaration visible from
// several frames is reported once, from the nearest. Entries are a
// pre-filter by classifier; callers still check the types.
func (s *Scope) CandidatesFor(t typesystem.TypeRef) []Entry {
	var out []Entry
	seen := make(map[string]bool)
	for sc := s; sc != nil; sc = sc.Parent {
		for _, c := range sc.ownFor(t) {
			id := c.ID()
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, Entry{Candidate: c, Nesting: sc.Nesting, Scope: sc})
		}
	}
	return out
}

// StaticTypeParams returns the keys of the type parameters that are fixed
// within this scope: those of enclosing functions and classes.
func (s *Scope) StaticTypeParams() map[string]bool {
	out := make(map[string]bool)
	for sc := s; sc != nil; sc = sc.Parent {
		for _, tp := range sc.static {
			out[tp.Key] = true
		}
	}
	return out
}

// Chain lists the frames from s up to the root.
func (s *Scope) Chain() []*Scope {
	var out []*Scope
	for sc := s; sc != nil; sc = sc.Parent {
		out = append(out, sc)
	}
	return out
}

// Root returns the outermost frame.
func (s *Scope) Root() *Scope {
	sc := s
	for sc.Parent != nil {
		sc = sc.Parent
	}
	return sc
}

func (s *Scope) String() string {
	var parts []string
	for _, sc := range s.Chain() {
		parts = append(parts, sc.Kind.String()+"("+sc.Name+")")
	}
	return strings.Join(parts, " -> ")
}
