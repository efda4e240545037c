package resolver

import (
	"fmt"

	"github.com/funvibe/given/internal/scope"
	"github.com/funvibe/given/internal/symbols"
	"github.com/funvibe/given/internal/typesystem"
)

func isList(t typesystem.TypeRef) bool {
	return !t.Star && t.Classifier != nil && t.Key() == typesystem.List.Key &&
		len(t.Args) == 1 && !t.Args[0].Star
}

// builtin answers requests no user candidate can satisfy: deferred
// providers, type keys and source keys. It returns nil for other types.
func (s *Session) builtin(req Request, sc *scope.Scope) *outcome {
	t := req.Type
	if t.Star || t.Classifier == nil {
		return nil
	}
	if arity, ok := typesystem.FunctionArity(t.Classifier); ok {
		return s.resolveLambda(req, sc, arity)
	}
	switch t.Key() {
	case typesystem.TypeKey.Key:
		if len(t.Args) != 1 || t.Args[0].Star {
			return nil
		}
		arg := t.Args[0].WithVariance(typesystem.Invariant)
		return &outcome{node: &Node{Kind: TypeKeyNode, Type: t, Value: arg.String()}}
	case typesystem.SourceKey.Key:
		return &outcome{
			node:      &Node{Kind: SourceKeyNode, Type: t, Value: s.site.String()},
			transient: true,
		}
	}
	return nil
}

// resolveList collects every candidate producing the element type, and
// every candidate producing a collection of it, into one node. It returns
// nil when there is none.
func (s *Session) resolveList(req Request, sc *scope.Scope) *outcome {
	elem := req.Type.Args[0].WithVariance(typesystem.Invariant)
	static := sc.StaticTypeParams()

	var (
		elems  []match
		spread []bool
	)
	seen := make(map[string]bool)
	collect := func(target typesystem.TypeRef, isSpread bool) {
		for _, e := range sc.CandidatesFor(target) {
			if seen[e.Candidate.ID()] {
				continue
			}
			m, ok := s.specialize(e, target, static)
			if !ok || m.malformed != "" {
				continue
			}
			seen[e.Candidate.ID()] = true
			elems = append(elems, m)
			spread = append(spread, isSpread)
		}
	}
	collect(elem, false)
	collect(typesystem.NewType(typesystem.Collection, elem), true)
	if len(elems) == 0 {
		return nil
	}

	node := &Node{Kind: ListNode, Type: req.Type}
	transient := false
	for i, m := range elems {
		elemReq := Request{
			Type:      m.candidate.Type,
			Required:  true,
			Requester: req.Requester,
			Parameter: fmt.Sprintf("%s[%d]", req.Parameter, i),
		}
		o := s.resolveCandidate(elemReq, sc, m)
		transient = transient || o.transient
		if !o.ok() {
			return &outcome{failure: &failure{request: req, cause: o.failure}, transient: transient}
		}
		node.Children = append(node.Children, Binding{Request: elemReq, Node: o.node, Spread: spread[i]})
	}
	s.logger.Debug("list collected", "request", req.String(), "elements", len(elems))
	return &outcome{node: node, transient: transient}
}

// resolveLambda answers a function type with a deferred provider. The
// result type is resolved in a nested frame that offers the function's
// parameters; candidates met again behind it become back references.
func (s *Session) resolveLambda(req Request, sc *scope.Scope, arity int) *outcome {
	t := req.Type
	if len(t.Args) != arity+1 {
		return nil
	}
	params := make([]typesystem.TypeRef, arity)
	for i := 0; i < arity; i++ {
		if t.Args[i].Star {
			return nil
		}
		params[i] = t.Args[i].WithVariance(typesystem.Invariant)
	}
	result := t.Args[arity]
	if result.Star {
		return nil
	}
	result = result.WithVariance(typesystem.Invariant)

	decl := &symbols.Decl{
		ID:   "lambda:" + typesystem.Identity(t),
		Name: t.String(),
		Kind: symbols.LocalDecl,
	}
	lambda, paramCands := s.lambdaScope(decl, sc, params)

	s.deferred++
	defer func() {
		s.deferred--
	}()
	body := Request{Type: result, Required: true, Requester: decl, Parameter: "result"}
	o := s.resolveRequest(body, lambda)
	if !o.ok() {
		return &outcome{failure: &failure{request: req, cause: o.failure}, transient: o.transient}
	}
	node := &Node{
		Kind:     LambdaNode,
		Type:     t,
		Children: []Binding{{Request: body, Node: o.node}},
		Params:   paramCands,
	}
	return &outcome{node: node, transient: o.transient}
}

// lambdaScope returns the frame below sc offering params, cached per parent
// and function type.
func (s *Session) lambdaScope(lambda *symbols.Decl, sc *scope.Scope, params []typesystem.TypeRef) (*scope.Scope, []*symbols.Candidate) {
	cands := make([]*symbols.Candidate, len(params))
	for i, p := range params {
		name := "it"
		if len(params) > 1 {
			name = fmt.Sprintf("p%d", i+1)
		}
		decl := &symbols.Decl{
			ID:   fmt.Sprintf("%s#%d", lambda.ID, i),
			Name: name,
			Kind: symbols.ParameterDecl,
			Type: p,
		}
		cands[i] = symbols.NewCandidate(decl, p, nil, nil)
	}
	if len(cands) == 0 {
		return sc, nil
	}
	key := fmt.Sprintf("%p|%s", sc, lambda.ID)
	if cached, ok := s.lambdas[key]; ok {
		return cached, cached.Own()
	}
	frame := scope.New(scope.Lambda, lambda.Name, sc, cands, nil)
	s.lambdas[key] = frame
	return frame, cands
}
