package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/given/internal/ast"
	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/metrics"
	"github.com/funvibe/given/internal/scope"
	"github.com/funvibe/given/internal/symbols"
	"github.com/funvibe/given/internal/typesystem"
)

var (
	aClass   = &typesystem.Classifier{Key: "app.A", Name: "A"}
	bClass   = &typesystem.Classifier{Key: "app.B", Name: "B"}
	cClass   = &typesystem.Classifier{Key: "app.C", Name: "C"}
	fooClass = &typesystem.Classifier{Key: "app.Foo", Name: "Foo"}

	wrapperT     = &typesystem.Classifier{Key: "app.Wrapper.T", Name: "T", IsTypeParameter: true}
	wrapperClass = &typesystem.Classifier{Key: "app.Wrapper", Name: "Wrapper", TypeParams: []*typesystem.Classifier{wrapperT}}
)

func typ(c *typesystem.Classifier, args ...typesystem.TypeRef) typesystem.TypeRef {
	return typesystem.NewType(c, args...)
}

func dep(name string, t typesystem.TypeRef) symbols.Param {
	return symbols.Param{Name: name, Type: t, Requested: true, Typed: true}
}

func optional(name string, t typesystem.TypeRef) symbols.Param {
	p := dep(name, t)
	p.HasDefault = true
	return p
}

func fn(name string, out typesystem.TypeRef, params ...symbols.Param) *symbols.Decl {
	return &symbols.Decl{
		ID: "app." + name, Name: name, Package: "app", Kind: symbols.FunctionDecl,
		Provide: true, Type: out, Params: params,
	}
}

// patternFn declares a provider generic in one pattern parameter X.
func patternFn(name string, build func(x typesystem.TypeRef) (typesystem.TypeRef, []symbols.Param)) (*symbols.Decl, *typesystem.Classifier) {
	x := &typesystem.Classifier{Key: "app." + name + ".X", Name: "X", IsTypeParameter: true, Pattern: true}
	out, params := build(typesystem.TypeRef{Classifier: x})
	d := fn(name, out, params...)
	d.TypeParams = []*typesystem.Classifier{x}
	return d, x
}

func frame(ix *symbols.Index, kind scope.Kind, parent *scope.Scope, decls ...*symbols.Decl) *scope.Scope {
	var cands []*symbols.Candidate
	for _, d := range decls {
		cands = append(cands, ix.CandidatesOf(d)...)
	}
	return scope.New(kind, kind.String(), parent, cands, nil)
}

func need(t typesystem.TypeRef) Request {
	return Request{Type: t, Required: true}
}

func succeeded(t *testing.T, g Graph) *SuccessGraph {
	t.Helper()
	if eg, ok := g.(*ErrorGraph); ok {
		require.FailNow(t, "unexpected failure", eg.Failure.Message())
	}
	return g.(*SuccessGraph)
}

func failedWith(t *testing.T, g Graph, reason Reason) *Failure {
	t.Helper()
	require.False(t, g.Succeeded())
	f := g.(*ErrorGraph).Failure
	require.Equal(t, reason, f.Reason, f.Message())
	return f
}

func TestResolve_Scenario(t *testing.T) {
	ix := symbols.NewIndex()
	provideA := fn("provideA", typ(aClass))
	provideB := fn("provideB", typ(bClass), dep("a", typ(aClass)))
	s := frame(ix, scope.Module, nil, provideA, provideB)
	sess := NewSession(ix)

	g := succeeded(t, sess.ResolveRequests([]Request{need(typ(bClass))}, s))
	require.Len(t, g.Results, 1)
	b := g.Results[0].Node
	assert.Equal(t, CallNode, b.Kind)
	assert.Equal(t, "app.provideB", b.Candidate.ID())
	require.Len(t, b.Children, 1)
	a := b.Children[0].Node
	assert.Equal(t, "app.provideA", a.Candidate.ID())
	assert.Empty(t, a.Children)

	nodes := 0
	g.Walk(func(*Node) { nodes++ })
	assert.Equal(t, 2, nodes)
	assert.Equal(t, []string{"app.provideA", "app.provideB"}, g.Candidates())

	f := failedWith(t, sess.ResolveRequests([]Request{need(typ(cClass))}, s), NoCandidates)
	require.Len(t, f.Path, 1)
	assert.True(t, typesystem.Equal(typ(cClass), f.Path[0].Type))
	assert.Equal(t, "requested C: no candidate", f.Message())
}

func TestResolve_Deterministic(t *testing.T) {
	ix := symbols.NewIndex()
	s := frame(ix, scope.Module, nil,
		fn("provideA", typ(aClass)),
		fn("provideB", typ(bClass), dep("a", typ(aClass))),
	)
	sess := NewSession(ix)
	requests := []Request{need(typ(bClass)), need(typ(aClass))}

	g1 := succeeded(t, sess.ResolveRequests(requests, s))
	g2 := succeeded(t, sess.ResolveRequests(requests, s))
	assert.Equal(t, g1.String(), g2.String())
	assert.Same(t, g1.Results[0].Node, g2.Results[0].Node)

	fresh := succeeded(t, NewSession(ix).ResolveRequests(requests, s))
	assert.Equal(t, g1.String(), fresh.String())
}

func TestResolve_Shadowing(t *testing.T) {
	ix := symbols.NewIndex()
	outer := frame(ix, scope.Module, nil, fn("outerA1", typ(aClass)), fn("outerA2", typ(aClass)))
	inner := frame(ix, scope.Function, outer, fn("innerA", typ(aClass)))
	sess := NewSession(ix)

	g := succeeded(t, sess.ResolveRequests([]Request{need(typ(aClass))}, inner))
	assert.Equal(t, "app.innerA", g.Results[0].Node.Candidate.ID())

	// the outer frame alone is ambiguous
	failedWith(t, sess.ResolveRequests([]Request{need(typ(aClass))}, outer), Ambiguous)
}

func TestResolve_Ambiguous(t *testing.T) {
	ix := symbols.NewIndex()
	s := frame(ix, scope.Module, nil, fn("a1", typ(aClass)), fn("a2", typ(aClass)))
	site := diagnostics.Span{File: "main.given", Start: 10, End: 20}
	main := &symbols.Decl{ID: "app.main", Name: "main"}

	g := NewSession(ix).ResolveCall(main, site, []Request{{Type: typ(aClass), Required: true, Requester: main, Parameter: "a"}}, s)
	f := failedWith(t, g, Ambiguous)
	require.Len(t, f.Candidates, 2)
	assert.Equal(t, "requested A, needed by main: 2 ambiguous candidates: a1, a2", f.Message())

	d := g.(*ErrorGraph).Diagnostic()
	assert.Equal(t, diagnostics.CodeAmbiguous, d.Code)
	assert.Equal(t, site, d.Span)
	assert.Equal(t, site, g.CallSite())
}

func TestResolve_Cycle(t *testing.T) {
	ix := symbols.NewIndex()
	s := frame(ix, scope.Module, nil,
		fn("provideA", typ(aClass), dep("b", typ(bClass))),
		fn("provideB", typ(bClass), dep("a", typ(aClass))),
	)
	f := failedWith(t, NewSession(ix).ResolveRequests([]Request{need(typ(aClass))}, s), CandidateCycle)
	require.Len(t, f.Path, 3)
	require.Len(t, f.Via, 2)
	assert.Equal(t, "app.provideA", f.Via[0].ID())
	assert.Equal(t, "app.provideB", f.Via[1].ID())
	assert.Equal(t, "requested A, needed by provideB, needed by provideA: cyclic via provideA", f.Message())
	assert.Equal(t, diagnostics.CodeCycle, f.Reason.Code())
}

func TestResolve_DivergentPattern(t *testing.T) {
	ix := symbols.NewIndex()
	grow, _ := patternFn("grow", func(x typesystem.TypeRef) (typesystem.TypeRef, []symbols.Param) {
		return typ(wrapperClass, x), []symbols.Param{dep("inner", typ(wrapperClass, typ(wrapperClass, x)))}
	})
	s := frame(ix, scope.Module, nil, grow)
	failedWith(t, NewSession(ix).ResolveRequests([]Request{need(typ(wrapperClass, typ(typesystem.Int)))}, s), CandidateCycle)
}

func TestResolve_OptionalDefault(t *testing.T) {
	ix := symbols.NewIndex()
	s := frame(ix, scope.Module, nil,
		fn("provideA", typ(aClass), dep("c", typ(cClass))),
		fn("provideB", typ(bClass), optional("a", typ(aClass))),
	)
	sess := NewSession(ix)

	g := succeeded(t, sess.ResolveRequests([]Request{{Type: typ(cClass), Parameter: "c"}}, s))
	require.Len(t, g.Results, 1)
	assert.True(t, g.Results[0].Defaulted)
	assert.Nil(t, g.Results[0].Node)

	// a missing capability deeper down also falls back to the default
	g = succeeded(t, sess.ResolveRequests([]Request{need(typ(bClass))}, s))
	b := g.Results[0].Node
	require.Len(t, b.Children, 1)
	assert.True(t, b.Children[0].Defaulted)

	nodes := 0
	g.Walk(func(*Node) { nodes++ })
	assert.Equal(t, 1, nodes)
}

func TestResolve_PatternExpansion(t *testing.T) {
	ix := symbols.NewIndex()
	wrap, x := patternFn("wrap", func(x typesystem.TypeRef) (typesystem.TypeRef, []symbols.Param) {
		return typ(wrapperClass, x), []symbols.Param{dep("inner", x)}
	})
	s := frame(ix, scope.Module, nil, wrap, fn("number", typ(typesystem.Int)))

	g := succeeded(t, NewSession(ix).ResolveRequests([]Request{need(typ(wrapperClass, typ(typesystem.Int)))}, s))
	node := g.Results[0].Node
	assert.Equal(t, "app.wrap", node.Candidate.ID())
	assert.Equal(t, "Wrapper<Int>", node.Type.String())
	assert.True(t, typesystem.Equal(typ(typesystem.Int), node.Subst()[x.Key]))
	require.Len(t, node.Children, 1)
	assert.Equal(t, "app.number", node.Children[0].Node.Candidate.ID())

	wraps := 0
	g.Walk(func(n *Node) {
		if n.Candidate.ID() == "app.wrap" {
			wraps++
		}
	})
	assert.Equal(t, 1, wraps)
}

func TestResolve_FixedBeatsPattern(t *testing.T) {
	ix := symbols.NewIndex()
	wrap, _ := patternFn("wrap", func(x typesystem.TypeRef) (typesystem.TypeRef, []symbols.Param) {
		return typ(wrapperClass, x), []symbols.Param{dep("inner", x)}
	})
	s := frame(ix, scope.Module, nil, wrap, fn("wrapInt", typ(wrapperClass, typ(typesystem.Int))), fn("number", typ(typesystem.Int)))

	g := succeeded(t, NewSession(ix).ResolveRequests([]Request{need(typ(wrapperClass, typ(typesystem.Int)))}, s))
	assert.Equal(t, "app.wrapInt", g.Results[0].Node.Candidate.ID())
}

func TestResolve_MalformedPattern(t *testing.T) {
	unbound, _ := patternFn("unbound", func(x typesystem.TypeRef) (typesystem.TypeRef, []symbols.Param) {
		return typ(wrapperClass, typ(typesystem.Int)), nil
	})
	wrap, _ := patternFn("wrap", func(x typesystem.TypeRef) (typesystem.TypeRef, []symbols.Param) {
		return typ(wrapperClass, x), []symbols.Param{dep("inner", x)}
	})

	tests := []struct {
		name    string
		decl    *symbols.Decl
		request typesystem.TypeRef
	}{
		{name: "pattern not inferred", decl: unbound, request: typ(wrapperClass, typ(typesystem.Int))},
		{name: "star projection", decl: wrap, request: typ(wrapperClass, typesystem.StarProjection())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := symbols.NewIndex()
			s := frame(ix, scope.Module, nil, tt.decl)
			f := failedWith(t, NewSession(ix).ResolveRequests([]Request{need(tt.request)}, s), MalformedPattern)
			assert.Contains(t, f.Message(), "malformed pattern "+tt.decl.Name)
			assert.NotEmpty(t, f.Detail)
		})
	}
}

func TestResolve_PatternBoundViolation(t *testing.T) {
	ix := symbols.NewIndex()
	numbered, x := patternFn("numbered", func(x typesystem.TypeRef) (typesystem.TypeRef, []symbols.Param) {
		return typ(wrapperClass, x), nil
	})
	x.Supertypes = []typesystem.TypeRef{typ(typesystem.Number)}
	s := frame(ix, scope.Module, nil, numbered)
	sess := NewSession(ix)

	succeeded(t, sess.ResolveRequests([]Request{need(typ(wrapperClass, typ(typesystem.Int)))}, s))
	f := failedWith(t, sess.ResolveRequests([]Request{need(typ(wrapperClass, typ(typesystem.String)))}, s), MalformedPattern)
	assert.Contains(t, f.Detail, "outside its bound")
}

func TestResolve_PatternBoundInBody(t *testing.T) {
	ix := symbols.NewIndex()
	numbered, x := patternFn("numbered", func(x typesystem.TypeRef) (typesystem.TypeRef, []symbols.Param) {
		return typ(wrapperClass, x), nil
	})
	x.Supertypes = []typesystem.TypeRef{typ(typesystem.Number)}
	module := frame(ix, scope.Module, nil)
	factory := scope.NewFactory(ix, nil, nil, nil)
	body := factory.Function(&ast.Function{Decl: numbered}, module)
	sess := NewSession(ix)

	failedWith(t, sess.ResolveRequests([]Request{need(typ(typesystem.Number))}, module), NoCandidates)

	g := succeeded(t, sess.ResolveRequests([]Request{need(typ(typesystem.Number))}, body))
	n := g.Results[0].Node
	assert.Equal(t, "app.numbered#X", n.Candidate.ID())
	assert.Equal(t, "X", n.Type.String())
	failedWith(t, sess.ResolveRequests([]Request{need(typ(typesystem.String))}, body), NoCandidates)

	// a requested parameter of the pattern type already supplies the value
	wrap, _ := patternFn("wrap", func(x typesystem.TypeRef) (typesystem.TypeRef, []symbols.Param) {
		x.Classifier.Supertypes = []typesystem.TypeRef{typ(typesystem.Number)}
		return typ(wrapperClass, x), []symbols.Param{dep("inner", x)}
	})
	body = factory.Function(&ast.Function{Decl: wrap}, module)
	g = succeeded(t, NewSession(ix).ResolveRequests([]Request{need(typ(typesystem.Number))}, body))
	assert.Equal(t, "app.wrap.inner", g.Results[0].Node.Candidate.ID())
}

func TestResolve_FallbackToFartherSuccess(t *testing.T) {
	ix := symbols.NewIndex()
	outer := frame(ix, scope.Module, nil, fn("outerA", typ(aClass)))
	inner := frame(ix, scope.Function, outer, fn("innerA", typ(aClass), dep("c", typ(cClass))))

	g := succeeded(t, NewSession(ix).ResolveRequests([]Request{need(typ(aClass))}, inner))
	assert.Equal(t, "app.outerA", g.Results[0].Node.Candidate.ID())
}

func TestResolve_FailureOfNearestReported(t *testing.T) {
	ix := symbols.NewIndex()
	outer := frame(ix, scope.Module, nil, fn("outerA", typ(aClass), dep("c", typ(cClass))))
	inner := frame(ix, scope.Function, outer, fn("innerA", typ(aClass), dep("b", typ(bClass))))

	f := failedWith(t, NewSession(ix).ResolveRequests([]Request{need(typ(aClass))}, inner), NoCandidates)
	assert.Equal(t, "app.innerA", f.Via[0].ID())
	assert.Equal(t, "requested B, needed by innerA: no candidate", f.Message())
}

func TestResolve_Preferred(t *testing.T) {
	ix := symbols.NewIndex()
	low := fn("low", typ(aClass))
	low.Preferred, low.Priority = true, 1
	high := fn("high", typ(aClass))
	high.Preferred, high.Priority = true, 5
	outer := frame(ix, scope.Module, nil, low, high)
	inner := frame(ix, scope.Function, outer, fn("innerA", typ(aClass)))

	g := succeeded(t, NewSession(ix).ResolveRequests([]Request{need(typ(aClass))}, inner))
	assert.Equal(t, "app.high", g.Results[0].Node.Candidate.ID())
}

func TestResolve_TypeSpecificity(t *testing.T) {
	tests := []struct {
		name    string
		decls   []*symbols.Decl
		request typesystem.TypeRef
		want    string
	}{
		{
			name:    "subtype wins",
			decls:   []*symbols.Decl{fn("number", typ(typesystem.Number)), fn("int", typ(typesystem.Int))},
			request: typ(typesystem.Number),
			want:    "app.int",
		},
		{
			name:    "non-null wins",
			decls:   []*symbols.Decl{fn("maybe", typ(typesystem.Int).WithNullable(true)), fn("sure", typ(typesystem.Int))},
			request: typ(typesystem.Int).WithNullable(true),
			want:    "app.sure",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := symbols.NewIndex()
			s := frame(ix, scope.Module, nil, tt.decls...)
			g := succeeded(t, NewSession(ix).ResolveRequests([]Request{need(tt.request)}, s))
			assert.Equal(t, tt.want, g.Results[0].Node.Candidate.ID())
		})
	}
}

func TestResolve_TagsAffectIdentity(t *testing.T) {
	ix := symbols.NewIndex()
	s := frame(ix, scope.Module, nil,
		fn("port", typ(typesystem.Int).WithTags("Port")),
		fn("count", typ(typesystem.Int)),
	)
	sess := NewSession(ix)

	g := succeeded(t, sess.ResolveRequests([]Request{need(typ(typesystem.Int))}, s))
	assert.Equal(t, "app.count", g.Results[0].Node.Candidate.ID())
	g = succeeded(t, sess.ResolveRequests([]Request{need(typ(typesystem.Int).WithTags("Port"))}, s))
	assert.Equal(t, "app.port", g.Results[0].Node.Candidate.ID())
	failedWith(t, sess.ResolveRequests([]Request{need(typ(typesystem.Int).WithTags("Timeout"))}, s), NoCandidates)
}

func TestResolve_VarianceAware(t *testing.T) {
	ix := symbols.NewIndex()
	s := frame(ix, scope.Module, nil, fn("ints", typ(typesystem.List, typ(typesystem.Int))))
	sess := NewSession(ix)

	succeeded(t, sess.ResolveRequests([]Request{need(typ(typesystem.Collection, typ(typesystem.Number)))}, s))
	failedWith(t, sess.ResolveRequests([]Request{need(typ(typesystem.Collection, typ(typesystem.String)))}, s), NoCandidates)
}

func TestResolve_List(t *testing.T) {
	ix := symbols.NewIndex()
	s := frame(ix, scope.Module, nil,
		fn("one", typ(fooClass)),
		fn("two", typ(fooClass)),
		fn("many", typ(typesystem.List, typ(fooClass))),
	)
	sess := NewSession(ix)

	g := succeeded(t, sess.ResolveRequests([]Request{need(typ(typesystem.List, typ(fooClass)))}, s))
	list := g.Results[0].Node
	assert.Equal(t, ListNode, list.Kind)
	require.Len(t, list.Children, 3)
	assert.Equal(t, "app.one", list.Children[0].Node.Candidate.ID())
	assert.Equal(t, "app.two", list.Children[1].Node.Candidate.ID())
	assert.Equal(t, "app.many", list.Children[2].Node.Candidate.ID())
	assert.False(t, list.Children[0].Spread)
	assert.True(t, list.Children[2].Spread)

	failedWith(t, sess.ResolveRequests([]Request{need(typ(typesystem.List, typ(aClass)))}, s), NoCandidates)
	g = succeeded(t, sess.ResolveRequests([]Request{{Type: typ(typesystem.List, typ(aClass))}}, s))
	assert.True(t, g.Results[0].Defaulted)
}

func TestResolve_ListElementFailure(t *testing.T) {
	ix := symbols.NewIndex()
	s := frame(ix, scope.Module, nil,
		fn("one", typ(fooClass)),
		fn("two", typ(fooClass), dep("c", typ(cClass))),
	)
	list := typ(typesystem.List, typ(fooClass))
	use := fn("useFoos", typ(typesystem.Unit), dep("foos", list))
	requests := CallRequests(use, nil, nil)

	g := NewSession(ix).ResolveCall(use, diagnostics.Span{File: "app.given"}, requests, s)
	f := failedWith(t, g, NoCandidates)
	require.Len(t, f.Path, 3)
	assert.True(t, typesystem.Equal(list, f.Path[0].Type), "the list request heads the chain")
	assert.Equal(t, "foos[1]", f.Path[1].Parameter)
	assert.Equal(t, "c", f.Path[2].Parameter)
	require.Len(t, f.Via, 2)
	assert.Nil(t, f.Via[0], "collected by the built-in")
	assert.Equal(t, "app.two", f.Via[1].ID())
	assert.Equal(t, "requested C, needed by two, needed by useFoos: no candidate", f.Message())
}

func TestResolve_DeferredProviderBreaksCycle(t *testing.T) {
	ix := symbols.NewIndex()
	lazyB := typ(typesystem.Functions[0], typ(bClass))
	s := frame(ix, scope.Module, nil,
		fn("provideA", typ(aClass), dep("b", lazyB)),
		fn("provideB", typ(bClass), dep("a", typ(aClass))),
	)

	g := succeeded(t, NewSession(ix).ResolveRequests([]Request{need(typ(aClass))}, s))
	a := g.Results[0].Node
	require.Len(t, a.Children, 1)
	lambda := a.Children[0].Node
	assert.Equal(t, LambdaNode, lambda.Kind)
	b := lambda.Children[0].Node
	assert.Equal(t, "app.provideB", b.Candidate.ID())
	back := b.Children[0].Node
	assert.Equal(t, RecursiveNode, back.Kind)
	assert.Equal(t, "app.provideA", back.Candidate.ID())
}

func TestResolve_LambdaParameters(t *testing.T) {
	ix := symbols.NewIndex()
	s := frame(ix, scope.Module, nil, fn("provideB", typ(bClass), dep("n", typ(typesystem.Int))))
	factory := typ(typesystem.Functions[1], typ(typesystem.Int), typ(bClass))
	sess := NewSession(ix)

	g := succeeded(t, sess.ResolveRequests([]Request{need(factory)}, s))
	lambda := g.Results[0].Node
	assert.Equal(t, LambdaNode, lambda.Kind)
	require.Len(t, lambda.Params, 1)
	assert.Equal(t, "it", lambda.Params[0].Decl.Name)
	b := lambda.Children[0].Node
	assert.Same(t, lambda.Params[0], b.Children[0].Node.Candidate)

	// the parameter is not visible outside the lambda
	failedWith(t, sess.ResolveRequests([]Request{need(typ(bClass))}, s), NoCandidates)
}

func TestResolve_Keys(t *testing.T) {
	ix := symbols.NewIndex()
	s := frame(ix, scope.Module, nil)
	site := diagnostics.Span{File: "main.given", Start: 3, End: 9}
	g := succeeded(t, NewSession(ix).ResolveCall(nil, site, []Request{
		need(typ(typesystem.SourceKey)),
		need(typ(typesystem.TypeKey, typ(typesystem.List, typ(typesystem.Int)))),
	}, s))
	assert.Equal(t, SourceKeyNode, g.Results[0].Node.Kind)
	assert.Equal(t, "main.given:3-9", g.Results[0].Node.Value)
	assert.Equal(t, TypeKeyNode, g.Results[1].Node.Kind)
	assert.Equal(t, "List<Int>", g.Results[1].Node.Value)
}

func TestResolve_UsedImports(t *testing.T) {
	ix := symbols.NewIndex()
	libA := ix.CandidatesOf(&symbols.Decl{ID: "lib.a", Name: "a", Package: "lib", Kind: symbols.PropertyDecl, Provide: true, Type: typ(aClass)})[0]
	libC := ix.CandidatesOf(&symbols.Decl{ID: "other.c", Name: "c", Package: "other", Kind: symbols.PropertyDecl, Provide: true, Type: typ(cClass)})[0]
	external := scope.New(scope.External, "main.given", nil, []*symbols.Candidate{
		libA.WithProvenance(symbols.Provenance{Imported: true, ImportPath: "lib.*"}),
		libC.WithProvenance(symbols.Provenance{Imported: true, ImportPath: "other.c"}),
	}, nil)
	module := frame(ix, scope.Module, external, fn("provideB", typ(bClass), dep("a", typ(aClass))))

	g := succeeded(t, NewSession(ix).ResolveRequests([]Request{need(typ(bClass))}, module))
	assert.Equal(t, []string{"lib.*"}, g.UsedImports())
	assert.Equal(t, "lib.*", g.Results[0].Node.Children[0].Node.Import())
}

func TestCallRequests(t *testing.T) {
	tp := &typesystem.Classifier{Key: "app.run.T", Name: "T", IsTypeParameter: true}
	run := &symbols.Decl{ID: "app.run", Name: "run", Kind: symbols.FunctionDecl, TypeParams: []*typesystem.Classifier{tp},
		Params: []symbols.Param{
			{Name: "x", Type: typ(typesystem.Int), Typed: true},
			dep("item", typesystem.TypeRef{Classifier: tp}),
			optional("a", typ(aClass)),
			dep("b", typ(bClass)),
		}}
	reqs := CallRequests(run, typesystem.Subst{tp.Key: typ(typesystem.String)}, func(name string) bool { return name == "b" })
	require.Len(t, reqs, 2)
	assert.Equal(t, "item: String", reqs[0].String())
	assert.True(t, reqs[0].Required)
	assert.Same(t, run, reqs[0].Requester)
	assert.False(t, reqs[1].Required)
}

func TestSession_Memo(t *testing.T) {
	ix := symbols.NewIndex()
	s := frame(ix, scope.Module, nil, fn("provideA", typ(aClass)))
	sess := NewSession(ix, WithMetrics(metrics.New(nil)))
	assert.NotEmpty(t, sess.ID)
	assert.NotEqual(t, sess.ID, NewSession(ix).ID)

	succeeded(t, sess.ResolveRequests([]Request{need(typ(aClass))}, s))
	assert.Equal(t, 1, sess.Memoized())
	sess.Discard(s)
	assert.Equal(t, 0, sess.Memoized())
}
