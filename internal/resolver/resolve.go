package resolver

import (
	"fmt"
	"sort"

	"github.com/funvibe/given/internal/scope"
	"github.com/funvibe/given/internal/symbols"
	"github.com/funvibe/given/internal/typesystem"
)

// outcome is the result of one lookup. Transient outcomes depend on the
// in-flight chain or on the call site and are never memoized.
type outcome struct {
	node      *Node
	failure   *failure
	transient bool
}

func (o *outcome) ok() bool {
	return o.failure == nil
}

// forRequest returns o as the answer to req. Memoized failures carry the
// request that first produced them.
func (o *outcome) forRequest(req Request) *outcome {
	if o.ok() {
		return o
	}
	f := *o.failure
	f.request = req
	return &outcome{failure: &f, transient: o.transient}
}

func failed(reason Reason, req Request, candidates ...*symbols.Candidate) *outcome {
	return &outcome{failure: &failure{reason: reason, request: req, candidates: candidates}}
}

// match is a visible candidate specialized to a requested type.
type match struct {
	candidate *symbols.Candidate
	template  *symbols.Candidate
	nesting   int
	malformed string
}

func (s *Session) resolveRequest(req Request, sc *scope.Scope) *outcome {
	table := s.table(sc)
	key := typesystem.Identity(req.Type)
	if o, ok := table.byType[key]; ok {
		return o.forRequest(req)
	}
	o := s.lookup(req, sc)
	if !o.transient {
		table.byType[key] = o
	}
	return o
}

// lookup tries the user candidates visible from sc, then the built-ins.
// List requests always collect every matching candidate.
func (s *Session) lookup(req Request, sc *scope.Scope) *outcome {
	if isList(req.Type) {
		if o := s.resolveList(req, sc); o != nil {
			return o
		}
		return failed(NoCandidates, req)
	}
	if matches := s.matching(req.Type, sc); len(matches) > 0 {
		return s.resolveCandidates(req, sc, matches)
	}
	if o := s.builtin(req, sc); o != nil {
		return o
	}
	return failed(NoCandidates, req)
}

// matching returns the candidates visible from sc that can produce target,
// specialized to it.
func (s *Session) matching(target typesystem.TypeRef, sc *scope.Scope) []match {
	static := sc.StaticTypeParams()
	var out []match
	for _, e := range sc.CandidatesFor(target) {
		if m, ok := s.specialize(e, target, static); ok {
			out = append(out, m)
		}
	}
	return out
}

// specialize infers the type arguments of e's candidate from target.
// Candidates whose type cannot be made a subtype of target are rejected;
// a pattern template that matches without a usable pattern argument is
// kept as malformed.
func (s *Session) specialize(e scope.Entry, target typesystem.TypeRef, static map[string]bool) (match, bool) {
	c := e.Candidate
	m := match{candidate: c, template: c, nesting: e.Nesting}
	vars := c.Vars(static)
	if len(vars) == 0 {
		return m, typesystem.IsSubtypeOf(c.Type, target)
	}

	var pattern *typesystem.Classifier
	if c.IsPattern() {
		if _, ok := vars[c.PatternParam.Key]; ok {
			// the pattern bound is checked below so that a violation is reported
			pattern = c.PatternParam
			unbounded := *pattern
			unbounded.Supertypes = nil
			vars[pattern.Key] = &unbounded
		}
	}
	subst, err := typesystem.Unify(c.Type, target, vars)
	if err != nil {
		s.logger.Debug("candidate rejected", "candidate", c.String(), "type", target.String(), "err", err)
		return m, false
	}
	if pattern != nil {
		if reason := malformed(c, subst, vars); reason != "" {
			m.malformed = reason
			return m, true
		}
	}

	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, ok := subst[key]; !ok {
			subst[key] = typesystem.DefaultFor(vars[key])
		}
	}

	inst := s.Index.Instantiate(c, subst)
	if !typesystem.IsSubtypeOf(inst.Type, target) {
		return m, false
	}
	m.candidate = inst
	return m, true
}

// malformed explains why the binding of c's pattern parameter is
// unusable, or returns "".
func malformed(c *symbols.Candidate, subst typesystem.Subst, vars map[string]*typesystem.Classifier) string {
	p := c.PatternParam
	binding, ok := subst[p.Key]
	if !ok {
		return fmt.Sprintf("%s is not inferred from the requested type", p.Name)
	}
	if binding.Star {
		return fmt.Sprintf("%s is bound to a star projection", p.Name)
	}
	for _, free := range typesystem.FreeTypeParameters(binding) {
		if _, isVar := vars[free.Key]; isVar {
			return fmt.Sprintf("%s = %s mentions the uninferred %s", p.Name, binding, free.Name)
		}
	}
	for _, bound := range c.PatternBounds {
		bound = bound.Apply(subst)
		if !typesystem.IsSubtypeOf(binding, bound) {
			return fmt.Sprintf("%s = %s is outside its bound %s", p.Name, binding, bound)
		}
	}
	return ""
}

// resolveCandidates tries matches in rank order. A match ranked strictly
// below the first success is never tried; successes of equal rank are
// ambiguous. When nothing succeeds the most relevant failure is kept.
func (s *Session) resolveCandidates(req Request, sc *scope.Scope, matches []match) *outcome {
	sort.SliceStable(matches, func(i, j int) bool {
		return compareMatches(matches[i], matches[j]) < 0
	})

	var (
		winners   []match
		winner    *outcome
		best      *failure
		transient bool
	)
	for _, m := range matches {
		if len(winners) > 0 && compareMatches(winners[0], m) < 0 {
			break
		}
		o := s.resolveCandidate(req, sc, m)
		transient = transient || o.transient
		if o.ok() {
			if winner == nil {
				winner = o
			}
			winners = append(winners, m)
			continue
		}
		if best == nil || o.failure.ordering() < best.ordering() {
			best = o.failure
		}
	}

	switch {
	case len(winners) == 1:
		s.logger.Debug("candidate selected", "request", req.String(), "candidate", winners[0].candidate.String(), "visible", len(matches))
		return &outcome{node: winner.node, transient: transient}
	case len(winners) > 1:
		tied := make([]*symbols.Candidate, len(winners))
		for i, w := range winners {
			tied[i] = w.candidate
		}
		o := failed(Ambiguous, req, tied...)
		o.transient = transient
		return o
	}
	return &outcome{failure: best, transient: transient}
}

func (s *Session) resolveCandidate(req Request, sc *scope.Scope, m match) *outcome {
	if m.malformed != "" {
		o := failed(MalformedPattern, req, m.template)
		o.failure.detail = m.malformed
		return o
	}
	table := s.table(sc)
	if o, ok := table.byCandidate[m.candidate]; ok {
		return o.forRequest(req)
	}
	o := s.invoke(req, sc, m.candidate)
	if !o.transient {
		table.byCandidate[m.candidate] = o
	}
	return o
}

// invoke resolves the dependencies of c in sc with c in flight.
func (s *Session) invoke(req Request, sc *scope.Scope, c *symbols.Candidate) *outcome {
	node := &Node{Kind: CallNode, Candidate: c, Type: c.Type}
	if len(c.Dependencies) == 0 {
		return &outcome{node: node}
	}
	if o := s.checkCycle(req, c); o != nil {
		return o
	}

	s.chain = append(s.chain, inflight{candidate: c, deferred: s.deferred})
	defer func() {
		s.chain = s.chain[:len(s.chain)-1]
	}()

	transient := false
	for _, dep := range c.Dependencies {
		depReq := Request{Type: dep.Type, Required: dep.Required, Requester: c.Decl, Parameter: dep.Name}
		o := s.resolveRequest(depReq, sc)
		transient = transient || o.transient
		switch {
		case o.ok():
			node.Children = append(node.Children, Binding{Request: depReq, Node: o.node})
		case defaultable(depReq, o.failure):
			node.Children = append(node.Children, Binding{Request: depReq, Defaulted: true})
		default:
			return &outcome{
				failure:   &failure{request: req, candidate: c, cause: o.failure},
				transient: transient,
			}
		}
	}
	return &outcome{node: node, transient: transient}
}

// checkCycle looks for c's declaration in flight. The same type again is a
// cycle, unless a deferred provider was entered since, which makes it a
// back reference. A specialized candidate whose type keeps growing
// diverges and is reported as a cycle too.
func (s *Session) checkCycle(req Request, c *symbols.Candidate) *outcome {
	specialized := len(c.Subst) > 0
	for i := len(s.chain) - 1; i >= 0; i-- {
		prev := s.chain[i]
		if prev.candidate.ID() != c.ID() {
			continue
		}
		same := typesystem.Equal(prev.candidate.Type, c.Type)
		if same && prev.deferred < s.deferred {
			return &outcome{node: &Node{Kind: RecursiveNode, Candidate: c, Type: c.Type}, transient: true}
		}
		if same || (specialized && typesystem.Complexity(c.Type) > typesystem.Complexity(prev.candidate.Type)) {
			s.logger.Debug("cycle detected", "candidate", c.String(), "depth", len(s.chain))
			o := failed(CandidateCycle, req, c)
			o.transient = true
			return o
		}
	}
	return nil
}
