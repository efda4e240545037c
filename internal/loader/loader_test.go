package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/given/internal/analyzer"
	"github.com/funvibe/given/internal/ast"
	"github.com/funvibe/given/internal/pipeline"
	"github.com/funvibe/given/internal/resolver"
	"github.com/funvibe/given/internal/symbols"
	"github.com/funvibe/given/internal/typesystem"
)

const scenario = `package: lib
external: true
declarations:
  - name: Logger
    kind: class
    provide: true
---
file: app.given.yaml
package: app
imports: [lib.*]
declarations:
  - name: A
    kind: class
  - name: B
    kind: class
  - name: provideA
    provide: true
    type: A
  - name: provideB
    provide: true
    type: B
    params:
      - name: a
        type: A
        requested: true
  - name: useB
    params:
      - {name: b, type: B, requested: true}
  - name: main
    body:
      - call: useB
`

func findDecl(t *testing.T, p *ast.Program, id string) *symbols.Decl {
	t.Helper()
	var found *symbols.Decl
	for _, u := range p.Units {
		for _, n := range u.TopLevel() {
			n.Declaration().Walk(func(d *symbols.Decl) {
				if d.ID == id {
					found = d
				}
			})
		}
	}
	require.NotNil(t, found, "declaration %s", id)
	return found
}

func TestParse_Scenario(t *testing.T) {
	data := []byte(scenario)
	program, err := Parse(data, "prog.given.yaml")
	require.NoError(t, err)

	require.Len(t, program.Units, 2)
	lib, app := program.Units[0], program.Units[1]
	assert.True(t, lib.External)
	assert.Equal(t, "prog.given.yaml", lib.Files[0].Path)
	assert.False(t, app.External)
	assert.Equal(t, "app.given.yaml", app.Files[0].Path)
	assert.Equal(t, []string{"lib.*"}, app.Files[0].Imports)

	provideB := findDecl(t, program, "app.provideB")
	assert.True(t, provideB.Provide)
	require.Len(t, provideB.Params, 1)
	assert.Equal(t, "A", provideB.Params[0].Type.String())
	assert.True(t, provideB.Params[0].Requested)
	assert.Same(t, findDecl(t, program, "app.A").Class, provideB.Params[0].Type.Classifier)

	main := app.Files[0].Decls[5].(*ast.Function)
	call := main.Body.Stmts[0].(*ast.Call)
	assert.Same(t, findDecl(t, program, "app.useB"), call.Callee)
	assert.Equal(t, "app.given.yaml", call.Loc.File)
	assert.Equal(t, "call: useB", string(data[call.Loc.Start:call.Loc.End]))

	result := analyzer.New(symbols.NewIndex()).Analyze(program)
	require.Empty(t, result.Diagnostics)
	g, ok := result.Graph(call.Loc)
	require.True(t, ok)
	require.True(t, g.Succeeded())
	assert.Equal(t, []string{"app.provideA", "app.provideB"}, g.(*resolver.SuccessGraph).Candidates())
}

func TestParse_Types(t *testing.T) {
	program, err := Parse([]byte(`package: app
declarations:
  - name: Base
    kind: class
    typeParams: [{name: T, variance: out}]
  - name: Box
    kind: class
    typeParams: [{name: T}]
    supertypes: ["Base<T>"]
    members:
      - name: inner
        kind: class
      - name: make
        provide: true
        type: "Box<T>"
        body:
          - call: inner
    companion:
      members:
        - name: fallback
          kind: val
          provide: true
          type: Int
  - name: wrap
    provide: true
    typeParams: [{name: X, pattern: true, bounds: [Number]}]
    params: [{name: x, type: "@Port X", requested: true}]
    type: "Box<out X?>"
  - name: run
    params:
      - {name: f, type: "(Int) -> Box<*>", requested: true}
      - {name: plain}
`), "types.given.yaml")
	require.NoError(t, err)

	base := findDecl(t, program, "app.Base")
	assert.Equal(t, typesystem.Covariant, base.TypeParams[0].Variance)

	box := findDecl(t, program, "app.Box")
	require.Len(t, box.Class.Supertypes, 1)
	assert.Equal(t, "Base<T>", box.Class.Supertypes[0].String())
	assert.Same(t, box.TypeParams[0], box.Class.Supertypes[0].Args[0].Classifier)

	maker := findDecl(t, program, "app.Box.make")
	assert.Same(t, box, maker.Owner)
	assert.Same(t, box.TypeParams[0], maker.Type.Args[0].Classifier)

	require.NotNil(t, box.Companion)
	assert.Equal(t, "app.Box.Companion", box.Companion.ID)
	assert.Nil(t, box.Companion.Owner)
	fallback := findDecl(t, program, "app.Box.Companion.fallback")
	assert.Equal(t, symbols.PropertyDecl, fallback.Kind)
	assert.Same(t, box.Companion, fallback.Owner)

	wrap := findDecl(t, program, "app.wrap")
	x := wrap.TypeParams[0]
	assert.Equal(t, "app.wrap.X", x.Key)
	assert.True(t, x.Pattern)
	assert.Equal(t, "Number", x.Supertypes[0].String())
	assert.Equal(t, "@Port X", wrap.Params[0].Type.String())
	assert.Equal(t, "Box<out X?>", wrap.Type.String())

	run := findDecl(t, program, "app.run")
	assert.Equal(t, "Function1<Int, Box<*>>", run.Params[0].Type.String())
	assert.True(t, run.Params[0].Typed)
	assert.False(t, run.Params[1].Typed)
	assert.Equal(t, "Unit", run.Type.String())

	class := program.Units[0].Files[0].Decls[1].(*ast.Class)
	require.Len(t, class.Members, 2)
	require.NotNil(t, class.Companion)
	body := class.Members[1].(*ast.Function).Body
	assert.Equal(t, "app.Box.inner", body.Stmts[0].(*ast.Call).Callee.ID)
}

func TestParse_Locals(t *testing.T) {
	program, err := Parse([]byte(`package: app
declarations:
  - name: main
    params: [{name: log, type: String, requested: true}]
    body:
      - local: log
        type: String
        provide: true
      - block:
          - local: n
            type: Int
            init:
              - call: main
                explicit: [log]
      - local: n
        type: Int
`), "locals.given.yaml")
	require.NoError(t, err)

	body := program.Units[0].Files[0].Decls[0].(*ast.Function).Body
	require.Len(t, body.Stmts, 3)
	assert.Equal(t, "app.main.log#2", body.Stmts[0].(*ast.Local).Decl.ID)
	assert.True(t, body.Stmts[0].(*ast.Local).Decl.Provide)

	inner := body.Stmts[1].(*ast.Block).Stmts[0].(*ast.Local)
	assert.Equal(t, "app.main.n", inner.Decl.ID)
	require.NotNil(t, inner.Init)
	assert.True(t, inner.Loc.Contains(inner.Init.Loc))
	assert.Equal(t, []string{"log"}, inner.Init.Stmts[0].(*ast.Call).Explicit)

	assert.Equal(t, "app.main.n#2", body.Stmts[2].(*ast.Local).Decl.ID)
	assert.True(t, body.Loc.Contains(body.Stmts[2].Span()))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
		msg   string
	}{
		{
			name:  "missing package",
			input: "declarations: []\n",
			line:  1,
			msg:   "missing package",
		},
		{
			name:  "unknown type",
			input: "package: app\ndeclarations:\n  - name: f\n    type: Missing\n",
			line:  3,
			msg:   "unknown type Missing",
		},
		{
			name:  "type syntax",
			input: "package: app\ndeclarations:\n  - name: f\n    type: List<\n",
			line:  3,
			msg:   `type "List<" at 5: expected type, got end of input`,
		},
		{
			name:  "type arity",
			input: "package: app\ndeclarations:\n  - name: f\n    type: List\n",
			line:  3,
			msg:   "List takes 1 type arguments, got 0",
		},
		{
			name:  "redeclared",
			input: "package: app\ndeclarations:\n  - name: f\n  - name: f\n",
			line:  4,
			msg:   "app.f redeclared",
		},
		{
			name:  "unknown callee",
			input: "package: app\ndeclarations:\n  - name: f\n    body:\n      - call: nope\n",
			line:  5,
			msg:   "unknown callee nope",
		},
		{
			name:  "ambiguous statement",
			input: "package: app\ndeclarations:\n  - name: f\n    body:\n      - {call: f, local: x}\n",
			line:  5,
			msg:   "statement must be exactly one of call, local or block",
		},
		{
			name:  "explicit not requested",
			input: "package: app\ndeclarations:\n  - name: f\n    body:\n      - call: f\n        explicit: [x]\n",
			line:  5,
			msg:   "f has no requested parameter x",
		},
		{
			name:  "property without type",
			input: "package: app\ndeclarations:\n  - name: p\n    kind: property\n",
			line:  3,
			msg:   "property p needs a type",
		},
		{
			name:  "members on function",
			input: "package: app\ndeclarations:\n  - name: f\n    members: [{name: g}]\n",
			line:  3,
			msg:   "f: only classes declare members, companions and supertypes",
		},
		{
			name:  "property param outside class",
			input: "package: app\ndeclarations:\n  - name: f\n    params:\n      - {name: a, type: Int, property: true}\n",
			line:  5,
			msg:   "parameter a: only class parameters can be properties",
		},
		{
			name:  "bad import",
			input: "package: app\nimports: [lib]\n",
			line:  1,
			msg:   `imports[0]: import pattern "lib" must be pkg.Name or pkg.*`,
		},
		{
			name:  "mixed unit",
			input: "package: app\nexternal: true\n---\nfile: b.given.yaml\npackage: app\n",
			line:  4,
			msg:   "package app mixes external and analyzed files",
		},
		{
			name:  "bad variance",
			input: "package: app\ndeclarations:\n  - name: f\n    typeParams: [{name: T, variance: up}]\n",
			line:  3,
			msg:   `f: type parameter T: variance must be in or out, got "up"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), "bad.given.yaml")
			require.Error(t, err)
			var lerr *Error
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, tt.line, lerr.Line)
			assert.Equal(t, tt.msg, lerr.Msg)
		})
	}
}

func TestParse_YAMLSyntax(t *testing.T) {
	_, err := Parse([]byte("package: [\n"), "broken.given.yaml")
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 0, lerr.Line)
	assert.True(t, strings.HasPrefix(lerr.Error(), "broken.given.yaml: yaml:"), lerr.Error())
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("a.given.yaml", "package: app\ndeclarations:\n  - name: main\n    body:\n      - call: helper\n")
	write("sub/b.given.yml", "package: app\ndeclarations:\n  - name: helper\n")
	write(".cache/c.given.yaml", "package: hidden\n")
	write("notes.txt", "not a program")

	program, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, program.Units, 1)
	app := program.Units[0]
	require.Len(t, app.Files, 2)
	assert.Equal(t, filepath.Join(dir, "a.given.yaml"), app.Files[0].Path)
	assert.Equal(t, filepath.Join(dir, "sub", "b.given.yml"), app.Files[1].Path)
	assert.Equal(t, app.Files[1].Path, app.Files[1].Origin)

	write("multi.given.yaml", "file: x.given.yaml\npackage: x\n---\npackage: y\n")
	program, err = Load(filepath.Join(dir, "multi.given.yaml"))
	require.NoError(t, err)
	require.Len(t, program.Units, 2)
	for _, u := range program.Units {
		assert.Equal(t, filepath.Join(dir, "multi.given.yaml"), u.Files[0].Origin, u.Files[0].Path)
	}
	assert.Equal(t, filepath.Join(dir, "multi.given.yaml")+"#1", program.Units[1].Files[0].Path)

	parsed, err := Parse([]byte("package: app\n"), "mem.given.yaml")
	require.NoError(t, err)
	assert.Empty(t, parsed.Units[0].Files[0].Origin, "in-memory sources have no origin")

	_, err = Load(filepath.Join(dir, "missing.given.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoaderProcessor(t *testing.T) {
	ctx := (&LoaderProcessor{}).Process(&pipeline.PipelineContext{FilePath: "prog.given.yaml", SourceCode: []byte(scenario)})
	require.Empty(t, ctx.Errors)
	require.NotNil(t, ctx.Program)
	assert.Len(t, ctx.Program.Units, 2)

	ctx = (&LoaderProcessor{}).Process(&pipeline.PipelineContext{FilePath: filepath.Join(t.TempDir(), "none.given.yaml")})
	require.Len(t, ctx.Errors, 1)
	assert.Nil(t, ctx.Program)
}
