package analyzer

import (
	"fmt"
	"log/slog"

	"github.com/funvibe/given/internal/ast"
	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/resolver"
	"github.com/funvibe/given/internal/scope"
	"github.com/funvibe/given/internal/typesystem"
)

type walker struct {
	program *ast.Program
	session *resolver.Session
	factory *scope.Factory
	stack   *scope.Stack
	logger  *slog.Logger

	recorded map[diagnostics.Span]bool // Call sites already resolved
	graphs   map[diagnostics.Span]resolver.Graph
	errorSet map[string]diagnostics.Diagnostic // Key: "span:code" for deduplication
}

// addDiagnostic adds d, deduplicating by position and code.
func (w *walker) addDiagnostic(d diagnostics.Diagnostic) {
	key := fmt.Sprintf("%s:%s", d.Span, d.Code)
	if _, ok := w.errorSet[key]; ok {
		return
	}
	w.errorSet[key] = d
}

func (w *walker) addDiagnostics(diags []diagnostics.Diagnostic) {
	for _, d := range diags {
		w.addDiagnostic(d)
	}
}

// getDiagnostics returns all unique diagnostics sorted by position.
func (w *walker) getDiagnostics() []diagnostics.Diagnostic {
	out := make([]diagnostics.Diagnostic, 0, len(w.errorSet))
	for _, d := range w.errorSet {
		out = append(out, d)
	}
	diagnostics.Sort(out)
	return out
}

// step visits one construct. A panic inside leaves the construct
// unresolved; it surfaces as a diagnostic and the walk goes on.
func (w *walker) step(n ast.Node) {
	depth := w.stack.Depth()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Warn("traversal step recovered", "span", n.Span().String(), "panic", fmt.Sprint(r))
			w.addDiagnostic(diagnostics.New(diagnostics.CodeUnresolved, n.Span(), "left unresolved: %v", r))
			w.discard(w.stack.Truncate(depth))
		}
	}()
	n.Accept(w)
}

func (w *walker) push(s *scope.Scope) {
	w.stack.Push(s)
}

func (w *walker) pop() {
	if s, gone := w.stack.Pop(); gone {
		w.session.Discard(s)
	}
}

func (w *walker) discard(frames []*scope.Scope) {
	for _, s := range frames {
		w.session.Discard(s)
	}
}

func (w *walker) VisitProgram(p *ast.Program) {
	for _, u := range p.Units {
		if !u.External {
			u.Accept(w)
		}
	}
}

func (w *walker) VisitUnit(u *ast.Unit) {
	for _, f := range u.Files {
		w.step(f)
	}
}

func (w *walker) VisitFile(f *ast.File) {
	w.stack.Mark()
	w.push(w.factory.External(f))
	if unit, ok := w.program.Unit(f.Package); ok {
		w.push(w.factory.Module(unit, w.stack.Top()))
	}
	w.push(w.factory.File(f, w.stack.Top()))
	for _, d := range f.Decls {
		w.step(d)
	}
	w.discard(w.stack.Unwind())
}

func (w *walker) VisitClass(c *ast.Class) {
	w.push(w.factory.Class(c, w.stack.Top()))
	for _, m := range c.Members {
		w.step(m)
	}
	if c.Companion != nil {
		w.step(c.Companion)
	}
	w.pop()
}

func (w *walker) VisitFunction(f *ast.Function) {
	w.push(w.factory.Function(f, w.stack.Top()))
	if f.Body != nil {
		f.Body.Accept(w)
	}
	w.pop()
}

func (w *walker) VisitProperty(p *ast.Property) {
	if p.Init != nil {
		p.Init.Accept(w)
	}
}

func (w *walker) VisitBlock(b *ast.Block) {
	w.stack.Mark()
	for _, stmt := range b.Stmts {
		w.step(stmt)
	}
	w.discard(w.stack.Unwind())
}

// VisitLocal resolves the initializer first: a local is visible only to
// code after it.
func (w *walker) VisitLocal(l *ast.Local) {
	if l.Init != nil {
		l.Init.Accept(w)
	}
	w.push(w.factory.Local(l, w.stack.Top()))
}

func (w *walker) VisitCall(c *ast.Call) {
	if c.Callee == nil {
		panic(fmt.Sprintf("call at %s has no callee", c.Loc))
	}
	if w.recorded[c.Loc] {
		return
	}
	w.recorded[c.Loc] = true

	requests := resolver.CallRequests(c.Callee, callSubst(c), c.IsExplicit)
	if len(requests) == 0 {
		return
	}
	g := w.session.ResolveCall(c.Callee, c.Loc, requests, w.stack.Top())
	w.graphs[c.Loc] = g
	if eg, ok := g.(*resolver.ErrorGraph); ok {
		w.addDiagnostic(eg.Diagnostic())
	}
}

// callSubst binds the callee's type parameters to the explicit type
// arguments of the call.
func callSubst(c *ast.Call) typesystem.Subst {
	subst := typesystem.Subst{}
	for i, tp := range c.Callee.TypeParams {
		if i < len(c.TypeArgs) {
			subst[tp.Key] = c.TypeArgs[i]
		}
	}
	return subst
}
