package loader

import (
	"fmt"

	"github.com/funvibe/given/internal/ast"
	"github.com/funvibe/given/internal/config"
	"github.com/funvibe/given/internal/symbols"
	"github.com/funvibe/given/internal/typesystem"
)

const companionName = "Companion"

func (l *Loader) declareFile(src *source) error {
	doc := src.doc
	src.file = &ast.File{
		Path:    src.path,
		Package: doc.Package,
		Imports: doc.Imports,
		Loc:     l.span(src, doc.pos),
		Origin:  src.origin,
	}
	fileEnv := &env{src: src}
	for _, d := range doc.Decls {
		node, err := l.declare(src, d, fileEnv, nil, doc.Package+".")
		if err != nil {
			return err
		}
		src.file.Decls = append(src.file.Decls, node)
	}
	return nil
}

func declKind(kind string) (symbols.DeclKind, bool) {
	switch kind {
	case "", "function", "fun":
		return symbols.FunctionDecl, true
	case "property", "val":
		return symbols.PropertyDecl, true
	case "class":
		return symbols.ClassDecl, true
	}
	return 0, false
}

func variance(v string) (typesystem.Variance, bool) {
	switch v {
	case "":
		return typesystem.Invariant, true
	case "out":
		return typesystem.Covariant, true
	case "in":
		return typesystem.Contravariant, true
	}
	return 0, false
}

// declare registers d and everything nested in it.
func (l *Loader) declare(src *source, d *declDoc, parent *env, owner *symbols.Decl, prefix string) (ast.Declaration, error) {
	if d.Name == "" {
		return nil, l.errorf(src, d.pos, "declaration without a name")
	}
	kind, ok := declKind(d.Kind)
	if !ok {
		return nil, l.errorf(src, d.pos, "%s: unknown kind %q", d.Name, d.Kind)
	}

	decl := &symbols.Decl{
		ID:      prefix + d.Name,
		Name:    d.Name,
		Package: src.doc.Package,
		Kind:    kind,
		Provide: d.Provide,
		Private: d.Private,
		Entry:   d.Entry,
		Owner:   owner,
		Span:    l.span(src, d.pos),
	}
	if d.Preferred != nil {
		decl.Preferred = true
		decl.Priority = *d.Preferred
	}
	if _, dup := l.decls[decl.ID]; dup {
		return nil, l.errorf(src, d.pos, "%s redeclared", decl.ID)
	}
	l.decls[decl.ID] = decl

	e := &env{src: src, owner: decl, parent: parent, params: make(map[string]*typesystem.Classifier)}
	for _, tp := range d.TypeParams {
		if tp.Name == "" {
			return nil, l.errorf(src, d.pos, "%s: type parameter without a name", d.Name)
		}
		if _, dup := e.params[tp.Name]; dup {
			return nil, l.errorf(src, d.pos, "%s: type parameter %s declared twice", d.Name, tp.Name)
		}
		v, ok := variance(tp.Variance)
		if !ok {
			return nil, l.errorf(src, d.pos, "%s: type parameter %s: variance must be in or out, got %q", d.Name, tp.Name, tp.Variance)
		}
		c := &typesystem.Classifier{
			Key:             decl.ID + "." + tp.Name,
			Name:            tp.Name,
			IsTypeParameter: true,
			Variance:        v,
			Pattern:         tp.Pattern,
		}
		e.params[tp.Name] = c
		decl.TypeParams = append(decl.TypeParams, c)
	}

	en := &entry{src: src, doc: d, decl: decl, env: e}
	l.entries = append(l.entries, en)

	if kind != symbols.ClassDecl {
		if len(d.Members) > 0 || d.Companion != nil || len(d.Supertypes) > 0 {
			return nil, l.errorf(src, d.pos, "%s: only classes declare members, companions and supertypes", d.Name)
		}
		if kind == symbols.FunctionDecl {
			en.node = &ast.Function{Decl: decl, Loc: decl.Span}
		} else {
			if len(d.Params) > 0 {
				return nil, l.errorf(src, d.pos, "property %s cannot declare parameters", d.Name)
			}
			en.node = &ast.Property{Decl: decl, Loc: decl.Span}
		}
		return en.node, nil
	}

	if len(d.Body) > 0 {
		return nil, l.errorf(src, d.pos, "class %s has no body; declare members instead", d.Name)
	}
	decl.Class = &typesystem.Classifier{Key: decl.ID, Name: d.Name, TypeParams: decl.TypeParams}
	l.classes[decl.ID] = decl.Class

	node := &ast.Class{Decl: decl, Loc: decl.Span}
	for _, m := range d.Members {
		mn, err := l.declare(src, m, e, decl, decl.ID+".")
		if err != nil {
			return nil, err
		}
		node.Members = append(node.Members, mn)
		decl.Members = append(decl.Members, mn.Declaration())
	}
	if d.Companion != nil {
		comp := *d.Companion
		if comp.Kind == "" {
			comp.Kind = "class"
		}
		if comp.Name == "" {
			comp.Name = companionName
		}
		if comp.Kind != "class" {
			return nil, l.errorf(src, comp.pos, "companion of %s must be a class", d.Name)
		}
		// A companion is static: it sees neither the instance nor its type parameters.
		cn, err := l.declare(src, &comp, parent, nil, decl.ID+".")
		if err != nil {
			return nil, err
		}
		node.Companion = cn.(*ast.Class)
		decl.Companion = cn.Declaration()
	}
	en.node = node
	return node, nil
}

// signature resolves the types of e's declaration.
func (l *Loader) signature(e *entry) error {
	d, decl := e.doc, e.decl

	for i, tp := range d.TypeParams {
		for _, b := range tp.Bounds {
			t, err := l.resolveType(e.env, b, d.pos)
			if err != nil {
				return err
			}
			decl.TypeParams[i].Supertypes = append(decl.TypeParams[i].Supertypes, t)
		}
	}

	for _, s := range d.Supertypes {
		t, err := l.resolveType(e.env, s, d.pos)
		if err != nil {
			return err
		}
		if t.Classifier == nil || t.IsTypeParameter() || t.Nullable {
			return l.errorf(e.src, d.pos, "supertype %s of %s is not a class", s, d.Name)
		}
		decl.Class.Supertypes = append(decl.Class.Supertypes, t)
	}

	for _, p := range d.Params {
		param, err := l.param(e, p)
		if err != nil {
			return err
		}
		decl.Params = append(decl.Params, param)
	}

	switch decl.Kind {
	case symbols.ClassDecl:
		if d.Type != "" {
			return l.errorf(e.src, d.pos, "class %s cannot declare a type", d.Name)
		}
		decl.Type = decl.Class.Type()
	case symbols.FunctionDecl:
		decl.Type = typesystem.NewType(typesystem.Unit)
		if d.Type != "" {
			t, err := l.resolveType(e.env, d.Type, d.pos)
			if err != nil {
				return err
			}
			decl.Type = t
		}
	case symbols.PropertyDecl:
		if d.Type == "" {
			return l.errorf(e.src, d.pos, "property %s needs a type", d.Name)
		}
		t, err := l.resolveType(e.env, d.Type, d.pos)
		if err != nil {
			return err
		}
		decl.Type = t
	}
	return nil
}

func (l *Loader) param(e *entry, p *paramDoc) (symbols.Param, error) {
	if p.Name == "" {
		return symbols.Param{}, l.errorf(e.src, p.pos, "%s: parameter without a name", e.decl.Name)
	}
	if (p.Property || p.Provide) && e.decl.Kind != symbols.ClassDecl {
		return symbols.Param{}, l.errorf(e.src, p.pos, "parameter %s: only class parameters can be properties", p.Name)
	}
	if p.Provide && !p.Property {
		return symbols.Param{}, l.errorf(e.src, p.pos, "parameter %s: %s requires property", p.Name, config.ProvideMarker)
	}
	param := symbols.Param{
		Name:       p.Name,
		Type:       typesystem.NullableAny(),
		Requested:  p.Requested,
		HasDefault: p.Default,
		Property:   p.Property,
		Provide:    p.Provide,
		Span:       l.span(e.src, p.pos),
	}
	if p.Type != "" {
		t, err := l.resolveType(e.env, p.Type, p.pos)
		if err != nil {
			return symbols.Param{}, err
		}
		param.Type = t
		param.Typed = true
	}
	return param, nil
}

// body builds the statements of e's declaration.
func (l *Loader) body(e *entry) error {
	if len(e.doc.Body) == 0 {
		return nil
	}
	b, err := l.block(e, e.doc.Body, blockPosition(e.doc.Body))
	if err != nil {
		return err
	}
	switch n := e.node.(type) {
	case *ast.Function:
		n.Body = b
	case *ast.Property:
		n.Init = b
	}
	return nil
}

func blockPosition(stmts []*stmtDoc) position {
	first, last := stmts[0].pos, stmts[len(stmts)-1].pos
	return position{line: first.line, column: first.column, endLine: last.endLine, endColumn: last.endColumn}
}

func (l *Loader) block(e *entry, stmts []*stmtDoc, p position) (*ast.Block, error) {
	b := &ast.Block{Loc: l.span(e.src, p)}
	for _, s := range stmts {
		n, err := l.statement(e, s)
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, n)
	}
	return b, nil
}

func (l *Loader) statement(e *entry, s *stmtDoc) (ast.Node, error) {
	set := 0
	for _, ok := range []bool{s.Call != "", s.Local != "", s.Block != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, l.errorf(e.src, s.pos, "statement must be exactly one of call, local or block")
	}

	switch {
	case s.Call != "":
		return l.call(e, s)

	case s.Local != "":
		if s.Type == "" {
			return nil, l.errorf(e.src, s.pos, "local %s needs a type", s.Local)
		}
		t, err := l.resolveType(e.env, s.Type, s.pos)
		if err != nil {
			return nil, err
		}
		local := &ast.Local{
			Decl: &symbols.Decl{
				ID:      l.localID(e.decl, s.Local),
				Name:    s.Local,
				Package: e.decl.Package,
				Kind:    symbols.LocalDecl,
				Provide: s.Provide,
				Type:    t,
				Span:    l.span(e.src, s.pos),
			},
			Loc: l.span(e.src, s.pos),
		}
		if len(s.Init) > 0 {
			if local.Init, err = l.block(e, s.Init, blockPosition(s.Init)); err != nil {
				return nil, err
			}
		}
		return local, nil
	}
	return l.block(e, s.Block, s.pos)
}

func (l *Loader) call(e *entry, s *stmtDoc) (*ast.Call, error) {
	callee, ok := l.lookupDecl(e.env, s.Call)
	if !ok {
		return nil, l.errorf(e.src, s.pos, "unknown callee %s", s.Call)
	}
	if len(s.TypeArgs) > len(callee.TypeParams) {
		return nil, l.errorf(e.src, s.pos, "%s takes %d type arguments, got %d", callee.Name, len(callee.TypeParams), len(s.TypeArgs))
	}
	for _, name := range s.Explicit {
		if !hasRequested(callee, name) {
			return nil, l.errorf(e.src, s.pos, "%s has no requested parameter %s", callee.Name, name)
		}
	}
	c := &ast.Call{Callee: callee, Explicit: s.Explicit, Loc: l.span(e.src, s.pos)}
	for _, ta := range s.TypeArgs {
		t, err := l.resolveType(e.env, ta, s.pos)
		if err != nil {
			return nil, err
		}
		c.TypeArgs = append(c.TypeArgs, t)
	}
	return c, nil
}

func hasRequested(d *symbols.Decl, name string) bool {
	for _, p := range d.RequestedParams() {
		if p.Name == name {
			return true
		}
	}
	return false
}

// localID names a local after its enclosing declaration. Locals sharing a
// name with another local, a parameter or a member are numbered.
func (l *Loader) localID(owner *symbols.Decl, name string) string {
	base := owner.ID + "." + name
	n := l.locals[base]
	if n == 0 {
		if _, taken := l.decls[base]; taken || hasParam(owner, name) {
			n = 1
		}
	}
	l.locals[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s#%d", base, n+1)
}

func hasParam(d *symbols.Decl, name string) bool {
	for _, p := range d.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}
