package gosrc

import (
	"fmt"
	goast "go/ast"
	"go/token"
	"go/types"

	"github.com/funvibe/given/internal/ast"
	"github.com/funvibe/given/internal/symbols"
)

// block converts statements in program order. Nested blocks of if, for,
// switch and select statements become nested blocks; a local declared
// with //given:provide on the line above becomes a provider local.
func (c *converter) block(f *funcState, stmts []goast.Stmt, pos, end token.Pos) *ast.Block {
	b := &ast.Block{Loc: c.span(f.unit.pkg.Fset, pos, end)}
	for _, s := range stmts {
		b.Stmts = append(b.Stmts, c.statement(f, s)...)
	}
	return b
}

func (c *converter) statement(f *funcState, s goast.Stmt) []ast.Node {
	switch s := s.(type) {
	case *goast.BlockStmt:
		return []ast.Node{c.block(f, s.List, s.Pos(), s.End())}

	case *goast.IfStmt:
		var out []ast.Node
		if s.Init != nil {
			out = append(out, c.statement(f, s.Init)...)
		}
		out = append(out, c.calls(f, s.Cond)...)
		out = append(out, c.block(f, s.Body.List, s.Body.Pos(), s.Body.End()))
		if s.Else != nil {
			out = append(out, c.statement(f, s.Else)...)
		}
		return []ast.Node{&ast.Block{Stmts: out, Loc: c.span(f.unit.pkg.Fset, s.Pos(), s.End())}}

	case *goast.ForStmt:
		var out []ast.Node
		if s.Init != nil {
			out = append(out, c.statement(f, s.Init)...)
		}
		if s.Cond != nil {
			out = append(out, c.calls(f, s.Cond)...)
		}
		out = append(out, c.block(f, s.Body.List, s.Body.Pos(), s.Body.End()))
		return []ast.Node{&ast.Block{Stmts: out, Loc: c.span(f.unit.pkg.Fset, s.Pos(), s.End())}}

	case *goast.RangeStmt:
		out := c.calls(f, s.X)
		out = append(out, c.block(f, s.Body.List, s.Body.Pos(), s.Body.End()))
		return out

	case *goast.SwitchStmt, *goast.TypeSwitchStmt, *goast.SelectStmt:
		return c.clauses(f, s)

	case *goast.AssignStmt:
		if s.Tok == token.DEFINE {
			return c.locals(f, s, s.Lhs, s.Rhs)
		}

	case *goast.DeclStmt:
		if gen, ok := s.Decl.(*goast.GenDecl); ok && gen.Tok == token.VAR && len(gen.Specs) == 1 {
			spec := gen.Specs[0].(*goast.ValueSpec)
			lhs := make([]goast.Expr, len(spec.Names))
			for i, n := range spec.Names {
				lhs[i] = n
			}
			return c.locals(f, s, lhs, spec.Values)
		}
	}
	return c.calls(f, s)
}

// clauses converts each case of a switch or select into its own block.
func (c *converter) clauses(f *funcState, s goast.Stmt) []ast.Node {
	var out []ast.Node
	var body *goast.BlockStmt
	switch s := s.(type) {
	case *goast.SwitchStmt:
		if s.Init != nil {
			out = append(out, c.statement(f, s.Init)...)
		}
		if s.Tag != nil {
			out = append(out, c.calls(f, s.Tag)...)
		}
		body = s.Body
	case *goast.TypeSwitchStmt:
		if s.Init != nil {
			out = append(out, c.statement(f, s.Init)...)
		}
		out = append(out, c.calls(f, s.Assign)...)
		body = s.Body
	case *goast.SelectStmt:
		body = s.Body
	}
	for _, clause := range body.List {
		switch cl := clause.(type) {
		case *goast.CaseClause:
			for _, e := range cl.List {
				out = append(out, c.calls(f, e)...)
			}
			out = append(out, c.block(f, cl.Body, cl.Pos(), cl.End()))
		case *goast.CommClause:
			var stmts []goast.Stmt
			if cl.Comm != nil {
				stmts = append(stmts, cl.Comm)
			}
			out = append(out, c.block(f, append(stmts, cl.Body...), cl.Pos(), cl.End()))
		}
	}
	return []ast.Node{&ast.Block{Stmts: out, Loc: c.span(f.unit.pkg.Fset, s.Pos(), s.End())}}
}

// locals converts a variable declaration. Without a provide directive it
// only contributes the calls of its initializer.
func (c *converter) locals(f *funcState, s goast.Stmt, lhs, rhs []goast.Expr) []ast.Node {
	m, err := parseMarkers(c.commentAbove(f, s))
	if err != nil || !m.provide {
		return c.calls(f, s)
	}

	var init *ast.Block
	for _, e := range rhs {
		if calls := c.calls(f, e); len(calls) > 0 {
			if init == nil {
				init = &ast.Block{Loc: c.span(f.unit.pkg.Fset, rhs[0].Pos(), rhs[len(rhs)-1].End())}
			}
			init.Stmts = append(init.Stmts, calls...)
		}
	}

	info := f.unit.pkg.TypesInfo
	var out []ast.Node
	for _, e := range lhs {
		id, ok := e.(*goast.Ident)
		if !ok || id.Name == "_" {
			continue
		}
		obj := info.Defs[id]
		if obj == nil {
			continue
		}
		local := &ast.Local{
			Decl: &symbols.Decl{
				ID:      c.localID(f.decl, id.Name),
				Name:    id.Name,
				Package: f.decl.Package,
				Kind:    symbols.LocalDecl,
				Provide: true,
				Type:    c.typeRef(obj.Type()),
				Span:    c.span(f.unit.pkg.Fset, id.Pos(), id.End()),
			},
			Init: init,
			Loc:  c.span(f.unit.pkg.Fset, s.Pos(), s.End()),
		}
		init = nil
		out = append(out, local)
	}
	return out
}

// commentAbove returns the comment group ending on the line before s.
func (c *converter) commentAbove(f *funcState, s goast.Stmt) *goast.CommentGroup {
	fset := f.unit.pkg.Fset
	line := fset.Position(s.Pos()).Line
	for _, g := range f.file.Comments {
		if fset.Position(g.End()).Line == line-1 {
			return g
		}
	}
	return nil
}

// calls returns the call sites of known declarations below n in source
// order. Function literals are not entered.
func (c *converter) calls(f *funcState, n goast.Node) []ast.Node {
	if n == nil {
		return nil
	}
	var out []ast.Node
	goast.Inspect(n, func(n goast.Node) bool {
		switch n := n.(type) {
		case *goast.FuncLit:
			return false
		case *goast.CallExpr:
			call, ok := c.call(f, n)
			if !ok {
				return true
			}
			// operands are evaluated before the call
			out = append(out, c.calls(f, n.Fun)...)
			for _, a := range n.Args {
				out = append(out, c.calls(f, a)...)
			}
			out = append(out, call)
			return false
		}
		return true
	})
	return out
}

func (c *converter) call(f *funcState, ce *goast.CallExpr) (*ast.Call, bool) {
	info := f.unit.pkg.TypesInfo
	id := calleeIdent(ce.Fun)
	if id == nil {
		return nil, false
	}
	fn, ok := info.Uses[id].(*types.Func)
	if !ok {
		return nil, false
	}
	callee, ok := c.funcs[fn.Origin()]
	if !ok {
		return nil, false
	}

	call := &ast.Call{Callee: callee, Loc: c.span(f.unit.pkg.Fset, ce.Pos(), ce.End())}
	for i, p := range callee.Params {
		if p.Requested && i < len(ce.Args) && !isNil(info, ce.Args[i]) {
			call.Explicit = append(call.Explicit, p.Name)
		}
	}
	if inst, ok := info.Instances[id]; ok {
		for i := 0; i < inst.TypeArgs.Len(); i++ {
			call.TypeArgs = append(call.TypeArgs, c.typeRef(inst.TypeArgs.At(i)))
		}
	}
	return call, true
}

func calleeIdent(e goast.Expr) *goast.Ident {
	switch e := goast.Unparen(e).(type) {
	case *goast.Ident:
		return e
	case *goast.SelectorExpr:
		return e.Sel
	case *goast.IndexExpr:
		return calleeIdent(e.X)
	case *goast.IndexListExpr:
		return calleeIdent(e.X)
	}
	return nil
}

func isNil(info *types.Info, e goast.Expr) bool {
	if info.Types[e].IsNil() {
		return true
	}
	id, ok := goast.Unparen(e).(*goast.Ident)
	if !ok {
		return false
	}
	_, isNil := info.Uses[id].(*types.Nil)
	return isNil
}

// localID names a local after its function. Locals sharing a name with
// another local or a parameter are numbered.
func (c *converter) localID(fn *symbols.Decl, name string) string {
	base := fn.ID + "." + name
	n := c.localCounts[base]
	if n == 0 {
		for _, p := range fn.Params {
			if p.Name == name {
				n = 1
			}
		}
	}
	c.localCounts[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s#%d", base, n+1)
}
