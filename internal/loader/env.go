package loader

import (
	"strings"

	"github.com/funvibe/given/internal/config"
	"github.com/funvibe/given/internal/parser"
	"github.com/funvibe/given/internal/scope"
	"github.com/funvibe/given/internal/symbols"
	"github.com/funvibe/given/internal/typesystem"
)

// env is the naming context of a declaration: its type parameters and
// those of every enclosing declaration.
type env struct {
	src    *source
	owner  *symbols.Decl
	params map[string]*typesystem.Classifier
	parent *env
}

// lookupDecl finds the declaration a call names. Members of enclosing
// classes come first, then the file's package, its imports, and finally
// fully qualified IDs.
func (l *Loader) lookupDecl(e *env, name string) (*symbols.Decl, bool) {
	for sc := e; sc != nil; sc = sc.parent {
		o := sc.owner
		if o == nil || o.Kind != symbols.ClassDecl {
			continue
		}
		if d, ok := l.decls[o.ID+"."+name]; ok {
			return d, true
		}
		if d, ok := l.decls[o.ID+"."+companionName+"."+name]; ok {
			return d, true
		}
	}
	for _, prefix := range l.prefixes(e.src, name) {
		if d, ok := l.decls[prefix+name]; ok {
			return d, true
		}
	}
	d, ok := l.decls[name]
	return d, ok
}

// lookupClassifier finds the classifier a type names. Type parameters and
// nested classes of enclosing declarations come first, then the package,
// its imports, the built-ins, and fully qualified keys.
func (l *Loader) lookupClassifier(e *env, name string) (*typesystem.Classifier, bool) {
	for sc := e; sc != nil; sc = sc.parent {
		if c, ok := sc.params[name]; ok {
			return c, true
		}
		if o := sc.owner; o != nil && o.Kind == symbols.ClassDecl {
			if c, ok := l.classes[o.ID+"."+name]; ok {
				return c, true
			}
		}
	}
	for _, prefix := range l.prefixes(e.src, name) {
		if c, ok := l.classes[prefix+name]; ok {
			return c, true
		}
	}
	if c, ok := l.builtins[name]; ok {
		return c, true
	}
	c, ok := l.classes[name]
	return c, ok
}

// prefixes lists the qualifiers under which name may be declared: the
// file's own package and every import that admits the name.
func (l *Loader) prefixes(src *source, name string) []string {
	head := name
	if i := strings.Index(name, "."); i >= 0 {
		head = name[:i]
	}
	out := []string{src.doc.Package + "."}
	for _, imp := range src.doc.Imports {
		pkg, only := scope.SplitImport(imp)
		if pkg == "" || (only != "" && only != head) {
			continue
		}
		out = append(out, pkg+".")
	}
	return out
}

func (l *Loader) resolveType(e *env, text string, at position) (typesystem.TypeRef, error) {
	expr, err := parser.ParseType(text)
	if err != nil {
		return typesystem.TypeRef{}, l.errorf(e.src, at, "%v", err)
	}
	return l.typeOf(e, expr, at)
}

func (l *Loader) typeOf(e *env, x *parser.TypeExpr, at position) (typesystem.TypeRef, error) {
	if x.Star {
		return typesystem.StarProjection(), nil
	}

	var t typesystem.TypeRef
	if x.Function {
		if len(x.Params) > config.MaxFunctionArity {
			return t, l.errorf(e.src, at, "function type %s has more than %d parameters", x, config.MaxFunctionArity)
		}
		var args []typesystem.TypeRef
		for _, p := range append(append([]*parser.TypeExpr(nil), x.Params...), x.Result()) {
			a, err := l.typeOf(e, p, at)
			if err != nil {
				return t, err
			}
			args = append(args, a)
		}
		t = typesystem.NewType(typesystem.Functions[len(x.Params)], args...)
	} else {
		c, ok := l.lookupClassifier(e, x.Name)
		if !ok {
			return t, l.errorf(e.src, at, "unknown type %s", x.Name)
		}
		if len(x.Args) != len(c.TypeParams) {
			return t, l.errorf(e.src, at, "%s takes %d type arguments, got %d", c.Name, len(c.TypeParams), len(x.Args))
		}
		var args []typesystem.TypeRef
		for _, xa := range x.Args {
			a, err := l.typeOf(e, xa, at)
			if err != nil {
				return t, err
			}
			args = append(args, a)
		}
		t = typesystem.NewType(c, args...)
	}

	t = t.WithNullable(x.Nullable)
	if len(x.Tags) > 0 {
		t = t.WithTags(x.Tags...)
	}
	if v, ok := variance(x.Variance); ok && v != typesystem.Invariant {
		t = t.WithVariance(v)
	}
	return t, nil
}
