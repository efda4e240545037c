package gosrc

import (
	goast "go/ast"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/given/internal/analyzer"
	"github.com/funvibe/given/internal/ast"
	"github.com/funvibe/given/internal/pipeline"
	"github.com/funvibe/given/internal/resolver"
	"github.com/funvibe/given/internal/symbols"
)

const appSource = `package app

type Logger struct{ prefix string }

//given:provide
func NewLogger() *Logger { return &Logger{} }

type Store interface{ Get(key string) string }

type memStore struct{}

func (memStore) Get(key string) string { return key }

//given:provide
func NewStore() memStore { return memStore{} }

//given:provide
type Service struct {
	Log   *Logger ` + "`given:\"requested\"`" + `
	Store Store   ` + "`given:\"requested\"`" + `
	Name  string
}

//given:provide
func (s *Service) Greeting() string { return "hello " + s.Name }

//given:requested svc
func Run(svc *Service, name string) {}

//given:entry
func Main() {
	Run(nil, "main")
}

func Local(log *Logger) {
	//given:provide
	store := NewStore()
	if store.Get("x") != "" {
		Run(nil, "local")
	}
	Run(&Service{}, "explicit")
}
`

func loadApp(t *testing.T) *ast.Program {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/app\n\ngo 1.22\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.go"), []byte(appSource), 0o644))
	program, err := Load(dir, "./...")
	require.NoError(t, err)
	return program
}

func findDecl(p *ast.Program, id string) *symbols.Decl {
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
	return found
}

func TestLoad_Declarations(t *testing.T) {
	program := loadApp(t)
	require.Len(t, program.Units, 1)
	unit := program.Units[0]
	assert.Equal(t, "example.com/app", unit.Package)
	assert.False(t, unit.External)

	svc := findDecl(program, "example.com/app.Service")
	require.NotNil(t, svc)
	assert.Equal(t, symbols.ClassDecl, svc.Kind)
	assert.True(t, svc.Provide)
	require.Len(t, svc.Params, 2, "only tagged fields are constructor parameters")
	assert.Equal(t, "Log", svc.Params[0].Name)
	assert.Equal(t, "Logger", svc.Params[0].Type.String(), "pointers are dropped")
	assert.True(t, svc.Params[1].Requested)

	greeting := findDecl(program, "example.com/app.Service.Greeting")
	require.NotNil(t, greeting)
	assert.Same(t, svc, greeting.Owner)
	assert.Equal(t, "String", greeting.Type.String())

	mem := findDecl(program, "example.com/app.memStore")
	require.NotNil(t, mem)
	require.Len(t, mem.Class.Supertypes, 1)
	assert.Equal(t, "Store", mem.Class.Supertypes[0].String())

	run := findDecl(program, "example.com/app.Run")
	require.NotNil(t, run)
	assert.True(t, run.Params[0].Requested)
	assert.False(t, run.Params[1].Requested)
	assert.Equal(t, "Unit", run.Type.String())

	assert.True(t, findDecl(program, "example.com/app.Main").Entry)
}

func TestLoad_Resolution(t *testing.T) {
	program := loadApp(t)
	result := analyzer.New(symbols.NewIndex()).Analyze(program)
	require.Empty(t, result.Diagnostics)

	sites := result.Sites()
	require.Len(t, sites, 2, "explicit arguments request nothing")

	g, _ := result.Graph(sites[0])
	require.True(t, g.Succeeded())
	assert.Equal(t, []string{
		"example.com/app.NewLogger",
		"example.com/app.NewStore",
		"example.com/app.Service",
	}, g.(*resolver.SuccessGraph).Candidates())

	g, _ = result.Graph(sites[1])
	require.True(t, g.Succeeded())
	assert.Contains(t, g.(*resolver.SuccessGraph).Candidates(), "example.com/app.Local.store", "the nearer local wins")
	assert.NotContains(t, g.(*resolver.SuccessGraph).Candidates(), "example.com/app.NewStore")
}

func TestParseMarkers(t *testing.T) {
	group := func(lines ...string) *goast.CommentGroup {
		g := &goast.CommentGroup{}
		for _, l := range lines {
			g.List = append(g.List, &goast.Comment{Text: l})
		}
		return g
	}

	m, err := parseMarkers(group(
		"// NewService builds the service.",
		"//given:provide",
		"//given:preferred 3",
		"//given:requested log store",
		"//given:optional store",
		"//given:pattern T",
	))
	require.NoError(t, err)
	assert.True(t, m.provide)
	assert.True(t, m.preferred)
	assert.Equal(t, 3, m.priority)
	assert.True(t, m.isRequested("log"))
	assert.False(t, m.isRequested("name"))
	assert.Equal(t, []string{"store"}, m.optional)
	assert.Equal(t, []string{"T"}, m.patterns)

	m, err = parseMarkers(group("//given:requested", "//given:preferred"), nil)
	require.NoError(t, err)
	assert.True(t, m.isRequested("anything"))
	assert.Equal(t, 1, m.priority)

	tests := []struct {
		line string
		err  string
	}{
		{"//given:", `empty directive "//given:"`},
		{"//given:inject", `unknown directive "inject"`},
		{"//given:preferred high", `preferred: priority "high" is not a number`},
		{"//given:pattern", "pattern needs type parameter names"},
		{"//given:optional", "optional needs parameter names"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := parseMarkers(group(tt.line))
			assert.EqualError(t, err, tt.err)
		})
	}
}

func TestParseFieldTag(t *testing.T) {
	o, err := parseFieldTag("requested, optional,provide")
	require.NoError(t, err)
	assert.Equal(t, fieldOptions{requested: true, optional: true, provide: true}, o)

	_, err = parseFieldTag("requested,lazy")
	assert.EqualError(t, err, `unknown field option "lazy"`)
}

func TestGoProcessor(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/app\n\ngo 1.22\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.go"), []byte(appSource), 0o644))
	assert.True(t, IsModuleDir(dir))
	assert.False(t, IsModuleDir(filepath.Join(dir, "missing")))

	ctx := pipeline.New(&GoProcessor{}, &analyzer.AnalyzerProcessor{}).Run(&pipeline.PipelineContext{FilePath: dir})
	require.Empty(t, ctx.Errors)
	assert.Len(t, ctx.Graphs, 2)

	broken := (&GoProcessor{}).Process(&pipeline.PipelineContext{FilePath: filepath.Join(dir, "missing")})
	assert.NotEmpty(t, broken.Errors)
}
