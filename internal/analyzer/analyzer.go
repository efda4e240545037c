// Package analyzer drives a resolution pass over a program: it walks every
// non-external unit, keeps the scope frames of the current position on a
// stack and resolves the requests of each call site it reaches.
package analyzer

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/funvibe/given/internal/ast"
	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/logging"
	"github.com/funvibe/given/internal/metrics"
	"github.com/funvibe/given/internal/resolver"
	"github.com/funvibe/given/internal/scope"
	"github.com/funvibe/given/internal/symbols"
)

// Analyzer resolves the call sites of programs.
type Analyzer struct {
	Index *symbols.Index
	Rules symbols.Rules

	// Roots and Imports configure the external frame of every file.
	Roots   []string
	Imports []string

	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// New creates an Analyzer over ix with the default declaration rules.
func New(ix *symbols.Index) *Analyzer {
	if ix == nil {
		ix = symbols.NewIndex()
	}
	return &Analyzer{
		Index:  ix,
		Rules:  symbols.DefaultRules(),
		Logger: logging.Discard(),
	}
}

// Result is the outcome of one pass.
type Result struct {
	Session     string
	Graphs      map[diagnostics.Span]resolver.Graph
	Diagnostics []diagnostics.Diagnostic
}

// Graph returns the graph of the call site at span.
func (r *Result) Graph(span diagnostics.Span) (resolver.Graph, bool) {
	g, ok := r.Graphs[span]
	return g, ok
}

// Sites returns the resolved call sites in source order.
func (r *Result) Sites() []diagnostics.Span {
	sites := make([]diagnostics.Span, 0, len(r.Graphs))
	for span := range r.Graphs {
		sites = append(sites, span)
	}
	sort.Slice(sites, func(i, j int) bool {
		return sites[i].Less(sites[j])
	})
	return sites
}

// UsedImports returns, per file, the import patterns that supplied a
// candidate to one of its call sites.
func (r *Result) UsedImports() map[string][]string {
	seen := make(map[string]map[string]bool)
	for span, g := range r.Graphs {
		sg, ok := g.(*resolver.SuccessGraph)
		if !ok {
			continue
		}
		for _, imp := range sg.UsedImports() {
			if seen[span.File] == nil {
				seen[span.File] = make(map[string]bool)
			}
			seen[span.File][imp] = true
		}
	}
	out := make(map[string][]string, len(seen))
	for file, imports := range seen {
		for imp := range imports {
			out[file] = append(out[file], imp)
		}
		sort.Strings(out[file])
	}
	return out
}

// HasErrors reports whether any error diagnostic was produced.
func (r *Result) HasErrors() bool {
	return diagnostics.HasErrors(r.Diagnostics)
}

// Analyze checks the declaration rules and resolves every call site of the
// program's non-external units. It never fails: problems are diagnostics.
func (a *Analyzer) Analyze(program *ast.Program) *Result {
	logger := logging.OrDiscard(a.Logger)
	session := resolver.NewSession(a.Index, resolver.WithLogger(logger), resolver.WithMetrics(a.Metrics))
	done := a.Metrics.BeginAnalysis()

	w := &walker{
		program:  program,
		session:  session,
		factory:  scope.NewFactory(a.Index, program, a.Roots, a.Imports),
		stack:    &scope.Stack{},
		logger:   logger,
		recorded: make(map[diagnostics.Span]bool),
		graphs:   make(map[diagnostics.Span]resolver.Graph),
		errorSet: make(map[string]diagnostics.Diagnostic),
	}
	for _, u := range program.Units {
		if u.External {
			continue
		}
		for _, n := range u.TopLevel() {
			w.addDiagnostics(a.Rules.Check(n.Declaration()))
		}
	}
	program.Accept(w)

	result := &Result{Session: session.ID, Graphs: w.graphs, Diagnostics: w.getDiagnostics()}
	logger.Info("analysis finished",
		"session", session.ID,
		"sites", len(result.Graphs),
		"diagnostics", len(result.Diagnostics))
	done(result.HasErrors())
	return result
}

// ResolveAt resolves the single call of file whose span contains offset,
// synthesizing its scope from the enclosing constructs instead of walking
// the whole program.
func (a *Analyzer) ResolveAt(program *ast.Program, file string, offset int) (resolver.Graph, error) {
	f, ancestors, call, ok := program.CallAt(file, offset)
	if !ok {
		return nil, fmt.Errorf("no call site at %s:%d", file, offset)
	}
	if call.Callee == nil {
		return nil, fmt.Errorf("call at %s has no callee", call.Loc)
	}
	requests := resolver.CallRequests(call.Callee, callSubst(call), call.IsExplicit)
	if len(requests) == 0 {
		return nil, fmt.Errorf("call to %s at %s requests nothing", call.Callee.Name, call.Loc)
	}

	logger := logging.OrDiscard(a.Logger)
	session := resolver.NewSession(a.Index, resolver.WithLogger(logger), resolver.WithMetrics(a.Metrics))
	factory := scope.NewFactory(a.Index, program, a.Roots, a.Imports)
	sc := factory.Element(f, ancestors, call.Loc)
	logger.Debug("resolving single site", "session", session.ID, "site", call.Loc.String(), "scope", sc.String())
	return session.ResolveCall(call.Callee, call.Loc, requests, sc), nil
}
