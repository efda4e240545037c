package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/given/internal/ast"
	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/symbols"
	"github.com/funvibe/given/internal/typesystem"
)

var (
	fooClass = &typesystem.Classifier{Key: "app.Foo", Name: "Foo"}
	barClass = &typesystem.Classifier{Key: "app.Bar", Name: "Bar", Supertypes: []typesystem.TypeRef{typesystem.NewType(fooClass)}}
)

func provider(pkg, name string, typ typesystem.TypeRef) *ast.Property {
	return &ast.Property{Decl: &symbols.Decl{
		ID: pkg + "." + name, Name: name, Package: pkg, Kind: symbols.PropertyDecl, Provide: true, Type: typ,
	}}
}

func ids(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Candidate.ID())
	}
	return out
}

func TestCandidatesFor_IndexBySupertype(t *testing.T) {
	ix := symbols.NewIndex()
	foo := ix.CandidatesOf(provider("app", "foo", typesystem.NewType(fooClass)).Decl)
	bar := ix.CandidatesOf(provider("app", "bar", typesystem.NewType(barClass)).Decl)
	num := ix.CandidatesOf(provider("app", "num", typesystem.NewType(typesystem.Int)).Decl)

	s := New(Module, "app", nil, append(append(foo, bar...), num...), nil)

	assert.Equal(t, []string{"app.foo", "app.bar"}, ids(s.CandidatesFor(typesystem.NewType(fooClass))))
	assert.Equal(t, []string{"app.bar"}, ids(s.CandidatesFor(typesystem.NewType(barClass).WithNullable(true))))
	assert.Equal(t, []string{"app.num"}, ids(s.CandidatesFor(typesystem.NewType(typesystem.Number))))
	assert.Len(t, s.CandidatesFor(typesystem.NewType(typesystem.Any)), 3)
	assert.Empty(t, s.CandidatesFor(typesystem.NewType(typesystem.String)))
}

func TestCandidatesFor_WildcardTypeParameter(t *testing.T) {
	ix := symbols.NewIndex()
	tp := &typesystem.Classifier{Key: "app.make.T", Name: "T", IsTypeParameter: true}
	generic := &symbols.Decl{ID: "app.make", Name: "make", Kind: symbols.FunctionDecl, Provide: true,
		TypeParams: []*typesystem.Classifier{tp}, Type: typesystem.TypeRef{Classifier: tp}}
	cands := append(ix.CandidatesOf(provider("app", "foo", typesystem.NewType(fooClass)).Decl), ix.CandidatesOf(generic)...)

	s := New(Module, "app", nil, cands, nil)
	assert.Equal(t, []string{"app.foo", "app.make"}, ids(s.CandidatesFor(typesystem.NewType(fooClass))))
	assert.Equal(t, []string{"app.make"}, ids(s.CandidatesFor(typesystem.NewType(typesystem.String))))
}

func TestCandidatesFor_NearestFirstAndDeduplicated(t *testing.T) {
	ix := symbols.NewIndex()
	outer := ix.CandidatesOf(provider("app", "outer", typesystem.NewType(fooClass)).Decl)
	inner := ix.CandidatesOf(provider("app", "inner", typesystem.NewType(fooClass)).Decl)

	root := New(External, "root", nil, outer, nil)
	mid := New(Module, "mid", root, outer, nil)
	leaf := New(Function, "leaf", mid, inner, nil)

	entries := leaf.CandidatesFor(typesystem.NewType(fooClass))
	require.Len(t, entries, 2)
	assert.Equal(t, "app.inner", entries[0].Candidate.ID())
	assert.Equal(t, 2, entries[0].Nesting)
	assert.Equal(t, "app.outer", entries[1].Candidate.ID())
	assert.Equal(t, 1, entries[1].Nesting, "nearest frame wins for a declaration visible twice")
	assert.Same(t, mid, entries[1].Scope)
}

func TestOrParent(t *testing.T) {
	root := New(External, "root", nil, nil, nil)
	assert.Same(t, root, OrParent(Function, "f", root, nil, nil))

	tp := &typesystem.Classifier{Key: "f.T", Name: "T", IsTypeParameter: true}
	fn := OrParent(Function, "f", root, nil, []*typesystem.Classifier{tp})
	assert.NotSame(t, root, fn)
	assert.Equal(t, 1, fn.Nesting)
	assert.True(t, fn.StaticTypeParams()["f.T"])
	assert.Equal(t, "function(f) -> external(root)", fn.String())
	assert.Same(t, root, fn.Root())
}

func TestStack(t *testing.T) {
	root := New(External, "root", nil, nil, nil)
	child := New(Module, "m", root, nil, nil)

	var st Stack
	st.Push(root)
	st.Mark()
	st.Push(child)
	st.Push(child)
	assert.Equal(t, 3, st.Depth())

	s, gone := st.Pop()
	assert.Same(t, child, s)
	assert.False(t, gone, "child is still on the stack")

	dropped := st.Unwind()
	assert.Equal(t, []*Scope{child}, dropped)
	assert.Same(t, root, st.Top())
	assert.Nil(t, st.Unwind())

	st.Mark()
	st.Push(child)
	st.Mark()
	assert.Equal(t, []*Scope{child}, st.Truncate(1))
	assert.Equal(t, 1, st.Depth())
	assert.Nil(t, st.Unwind(), "only the mark at depth 1 is left")
}

func testProgram() (*ast.Program, *ast.File, *ast.Class, *ast.Function, *ast.Block) {
	ext := provider("lib", "libFoo", typesystem.NewType(fooClass))
	hidden := provider("lib", "hidden", typesystem.NewType(fooClass))
	hidden.Decl.Private = true
	libUnit := &ast.Unit{Package: "lib", External: true, Files: []*ast.File{{Path: "lib.yaml", Package: "lib", Decls: []ast.Declaration{ext, hidden}}}}

	top := provider("app", "topFoo", typesystem.NewType(fooClass))
	private := provider("app", "fileFoo", typesystem.NewType(fooClass))
	private.Decl.Private = true

	svcDecl := &symbols.Decl{ID: "app.Service", Name: "Service", Package: "app", Kind: symbols.ClassDecl,
		Class: &typesystem.Classifier{Key: "app.Service", Name: "Service"}}
	member := &ast.Property{Decl: &symbols.Decl{ID: "app.Service.memberFoo", Name: "memberFoo", Package: "app",
		Kind: symbols.PropertyDecl, Provide: true, Type: typesystem.NewType(fooClass), Owner: svcDecl}}

	local1 := &ast.Local{Decl: &symbols.Decl{ID: "app.Service.run.l1", Name: "l1", Kind: symbols.LocalDecl, Provide: true,
		Type: typesystem.NewType(fooClass)}, Loc: diagnostics.Span{File: "app.yaml", Start: 10, End: 20}}
	local2 := &ast.Local{Decl: &symbols.Decl{ID: "app.Service.run.l2", Name: "l2", Kind: symbols.LocalDecl, Provide: true,
		Type: typesystem.NewType(fooClass)}, Loc: diagnostics.Span{File: "app.yaml", Start: 30, End: 40}}
	body := &ast.Block{Stmts: []ast.Node{local1, local2}}

	fnDecl := &symbols.Decl{ID: "app.Service.run", Name: "run", Package: "app", Kind: symbols.FunctionDecl, Owner: svcDecl,
		Params: []symbols.Param{{Name: "given", Type: typesystem.NewType(fooClass), Requested: true, Typed: true}}}
	fn := &ast.Function{Decl: fnDecl, Body: body}
	svc := &ast.Class{Decl: svcDecl, Members: []ast.Declaration{member, fn}}

	file := &ast.File{Path: "app.yaml", Package: "app", Imports: []string{"lib.*"}, Decls: []ast.Declaration{top, private, svc}}
	appUnit := &ast.Unit{Package: "app", Files: []*ast.File{file}}
	return &ast.Program{Units: []*ast.Unit{libUnit, appUnit}}, file, svc, fn, body
}

func TestFactory_Element(t *testing.T) {
	program, file, svc, fn, body := testProgram()
	f := NewFactory(symbols.NewIndex(), program, nil, nil)

	foo := typesystem.NewType(fooClass)
	at := diagnostics.Span{File: "app.yaml", Start: 25, End: 26}
	s := f.Element(file, []ast.Node{svc, fn, body}, at)

	entries := s.CandidatesFor(foo)
	assert.Equal(t, []string{
		"app.Service.run.l1",
		"app.Service.run.given",
		"app.Service.memberFoo",
		"app.fileFoo",
		"app.topFoo",
		"lib.libFoo",
	}, ids(entries), "l2 ends after the position and lib.hidden is private")

	ext := entries[len(entries)-1].Candidate
	assert.True(t, ext.Provenance.Imported)
	assert.Equal(t, "lib.*", ext.Provenance.ImportPath)

	// nesting strictly decreases outward
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i-1].Nesting, entries[i].Nesting)
	}

	// frames are cached
	assert.Same(t, s, f.Element(file, []ast.Node{svc, fn, body}, at))

	// the class frame offers the receiver
	receiver := typesystem.NewType(svc.Decl.Class)
	assert.Equal(t, []string{"app.Service.this"}, ids(s.CandidatesFor(receiver)))
}

func TestFactory_ImportByName(t *testing.T) {
	program, file, _, _, _ := testProgram()
	file.Imports = []string{"lib.hidden", "lib.libFoo", "app.topFoo"}
	f := NewFactory(symbols.NewIndex(), program, nil, nil)
	assert.Equal(t, []string{"lib.libFoo"}, ids(f.External(file).CandidatesFor(typesystem.NewType(fooClass))))
}

func TestFactory_Roots(t *testing.T) {
	program, file, _, _, _ := testProgram()
	file.Imports = nil
	f := NewFactory(symbols.NewIndex(), program, []string{"lib"}, nil)
	entries := f.External(file).CandidatesFor(typesystem.NewType(fooClass))
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Candidate.Provenance.Imported)
	assert.Empty(t, entries[0].Candidate.Provenance.ImportPath)
}

func TestFactory_InheritedMembersAndCompanion(t *testing.T) {
	baseClassifier := &typesystem.Classifier{Key: "app.Base", Name: "Base"}
	baseDecl := &symbols.Decl{ID: "app.Base", Name: "Base", Kind: symbols.ClassDecl, Class: baseClassifier}
	baseMember := &ast.Property{Decl: &symbols.Decl{ID: "app.Base.inherited", Name: "inherited", Kind: symbols.PropertyDecl,
		Provide: true, Type: typesystem.NewType(fooClass), Owner: baseDecl}}
	base := &ast.Class{Decl: baseDecl, Members: []ast.Declaration{baseMember}}

	compDecl := &symbols.Decl{ID: "app.Sub.Companion", Name: "Companion", Kind: symbols.ClassDecl,
		Class: &typesystem.Classifier{Key: "app.Sub.Companion", Name: "Companion"}}
	compMember := &ast.Property{Decl: &symbols.Decl{ID: "app.Sub.Companion.shared", Name: "shared", Kind: symbols.PropertyDecl,
		Provide: true, Type: typesystem.NewType(fooClass), Owner: compDecl}}
	companion := &ast.Class{Decl: compDecl, Members: []ast.Declaration{compMember}}

	subDecl := &symbols.Decl{ID: "app.Sub", Name: "Sub", Kind: symbols.ClassDecl,
		Class: &typesystem.Classifier{Key: "app.Sub", Name: "Sub", Supertypes: []typesystem.TypeRef{typesystem.NewType(baseClassifier)}}}
	sub := &ast.Class{Decl: subDecl, Companion: companion}

	file := &ast.File{Path: "a.yaml", Package: "app", Decls: []ast.Declaration{base, sub}}
	program := &ast.Program{Units: []*ast.Unit{{Package: "app", Files: []*ast.File{file}}}}
	f := NewFactory(symbols.NewIndex(), program, nil, nil)

	s := f.Element(file, []ast.Node{sub}, diagnostics.Span{File: "a.yaml"})
	entries := s.CandidatesFor(typesystem.NewType(fooClass))
	assert.Equal(t, []string{"app.Base.inherited", "app.Sub.Companion.shared"}, ids(entries))
	assert.Greater(t, entries[0].Nesting, entries[1].Nesting)
}
