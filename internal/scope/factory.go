package scope

import (
	"fmt"
	"strings"

	"github.com/funvibe/given/internal/ast"
	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/symbols"
)

// Factory builds scope frames for the constructs of a program. Frames are
// cached by construct and parent, so asking twice for the same position
// yields the same frames.
type Factory struct {
	Index   *symbols.Index
	Program *ast.Program

	// Roots are packages whose providers are visible everywhere.
	Roots []string
	// Imports are import patterns added to every file.
	Imports []string

	frames  map[string]*Scope
	classes map[string]*ast.Class
}

func NewFactory(ix *symbols.Index, program *ast.Program, roots, imports []string) *Factory {
	return &Factory{
		Index:   ix,
		Program: program,
		Roots:   roots,
		Imports: imports,
		frames:  make(map[string]*Scope),
	}
}

func (f *Factory) cached(key string, build func() *Scope) *Scope {
	if s, ok := f.frames[key]; ok {
		return s
	}
	s := build()
	f.frames[key] = s
	return s
}

func parentKey(parent *Scope) string {
	if parent == nil {
		return "<root>"
	}
	return fmt.Sprintf("%p", parent)
}

// External returns the root frame of file: candidates of root packages and
// of every unit reachable through the file's imports.
func (f *Factory) External(file *ast.File) *Scope {
	return f.cached("external:"+file.Path, func() *Scope {
		var cands []*symbols.Candidate
		seen := make(map[string]bool)
		add := func(c *symbols.Candidate, p symbols.Provenance) {
			if seen[c.ID()] {
				return
			}
			seen[c.ID()] = true
			cands = append(cands, c.WithProvenance(p))
		}

		for _, root := range f.Roots {
			if root == file.Package {
				continue
			}
			for _, d := range f.exported(root, "") {
				for _, c := range f.Index.CandidatesOf(d) {
					add(c, symbols.Provenance{Imported: true})
				}
			}
		}

		patterns := append(append([]string(nil), file.Imports...), f.Imports...)
		for _, pattern := range patterns {
			pkg, name := SplitImport(pattern)
			if pkg == "" || pkg == file.Package {
				continue
			}
			for _, d := range f.exported(pkg, name) {
				for _, c := range f.Index.CandidatesOf(d) {
					add(c, symbols.Provenance{Imported: true, ImportPath: pattern})
				}
			}
		}
		return New(External, file.Path, nil, cands, nil)
	})
}

// SplitImport splits "pkg.Name" into its package and name. A wildcard
// pattern "pkg.*" yields an empty name.
func SplitImport(pattern string) (pkg, name string) {
	idx := strings.LastIndex(pattern, ".")
	if idx <= 0 {
		return "", ""
	}
	pkg, name = pattern[:idx], pattern[idx+1:]
	if name == "*" {
		name = ""
	}
	return pkg, name
}

// exported returns the non-private top-level declarations of pkg, or only
// those called name when name is set.
func (f *Factory) exported(pkg, name string) []*symbols.Decl {
	if f.Program == nil {
		return nil
	}
	unit, ok := f.Program.Unit(pkg)
	if !ok {
		return nil
	}
	var out []*symbols.Decl
	for _, n := range unit.TopLevel() {
		d := n.Declaration()
		if d.Private || (name != "" && d.Name != name) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Module returns the frame of the non-private top-level candidates of unit.
func (f *Factory) Module(unit *ast.Unit, parent *Scope) *Scope {
	return f.cached("module:"+unit.Package+"@"+parentKey(parent), func() *Scope {
		var cands []*symbols.Candidate
		for _, n := range unit.TopLevel() {
			if d := n.Declaration(); !d.Private {
				cands = append(cands, f.Index.CandidatesOf(d)...)
			}
		}
		return OrParent(Module, unit.Package, parent, cands, nil)
	})
}

// File returns the frame of the file-private top-level candidates of file.
func (f *Factory) File(file *ast.File, parent *Scope) *Scope {
	return f.cached("file:"+file.Path+"@"+parentKey(parent), func() *Scope {
		var cands []*symbols.Candidate
		for _, n := range file.Decls {
			if d := n.Declaration(); d.Private {
				cands = append(cands, f.Index.CandidatesOf(d)...)
			}
		}
		return OrParent(File, file.Path, parent, cands, nil)
	})
}

// Class returns the frame of code inside class: the instance itself, its
// provider members including inherited ones, and its provider property
// parameters. A companion contributes its own frame between parent and
// the class frame.
func (f *Factory) Class(class *ast.Class, parent *Scope) *Scope {
	return f.cached("class:"+class.Decl.ID+"@"+parentKey(parent), func() *Scope {
		if class.Companion != nil {
			parent = f.classFrame(class.Companion, parent)
		}
		return f.classFrame(class, parent)
	})
}

func (f *Factory) classFrame(class *ast.Class, parent *Scope) *Scope {
	d := class.Decl
	var cands []*symbols.Candidate
	if d.Class != nil {
		cands = append(cands, f.Index.ReceiverCandidate(d))
	}
	for _, p := range d.Params {
		if p.Property && p.Provide {
			cands = append(cands, f.Index.PropertyCandidate(d, p))
		}
	}
	seen := map[string]bool{d.ID: true}
	var addMembers func(c *ast.Class)
	addMembers = func(c *ast.Class) {
		for _, m := range c.Members {
			if md := m.Declaration(); md.Provide {
				cands = append(cands, f.Index.CandidatesOf(md)...)
			}
		}
		if c.Decl.Class == nil {
			return
		}
		for _, super := range c.Decl.Class.Supertypes {
			sc, ok := f.classByKey(super.Key())
			if !ok || seen[sc.Decl.ID] {
				continue
			}
			seen[sc.Decl.ID] = true
			addMembers(sc)
		}
	}
	addMembers(class)
	return OrParent(Class, d.Name, parent, cands, d.TypeParams)
}

func (f *Factory) classByKey(key string) (*ast.Class, bool) {
	if f.classes == nil {
		f.classes = make(map[string]*ast.Class)
		if f.Program != nil {
			for _, u := range f.Program.Units {
				for _, n := range u.TopLevel() {
					f.collectClasses(n)
				}
			}
		}
	}
	c, ok := f.classes[key]
	return c, ok
}

func (f *Factory) collectClasses(n ast.Node) {
	c, ok := n.(*ast.Class)
	if !ok {
		return
	}
	if c.Decl.Class != nil {
		f.classes[c.Decl.Class.Key] = c
	}
	for _, m := range c.Members {
		f.collectClasses(m)
	}
	if c.Companion != nil {
		f.collectClasses(c.Companion)
	}
}

// Function returns the frame of the body of fn: its requested parameters,
// and for each bounded pattern type parameter not already requested the
// matched value, which satisfies the parameter's upper bounds. The
// function's type parameters are static inside the body.
func (f *Factory) Function(fn *ast.Function, parent *Scope) *Scope {
	return f.cached("function:"+fn.Decl.ID+"@"+parentKey(parent), func() *Scope {
		var cands []*symbols.Candidate
		supplied := make(map[string]bool)
		for _, p := range fn.Decl.RequestedParams() {
			cands = append(cands, f.Index.ParameterCandidate(fn.Decl, p))
			if p.Type.IsTypeParameter() {
				supplied[p.Type.Key()] = true
			}
		}
		for _, tp := range fn.Decl.TypeParams {
			if tp.Pattern && len(tp.Supertypes) > 0 && !supplied[tp.Key] {
				cands = append(cands, f.Index.BoundCandidate(fn.Decl, tp))
			}
		}
		return OrParent(Function, fn.Decl.Name, parent, cands, fn.Decl.TypeParams)
	})
}

// Local returns the frame seen by code after local.
func (f *Factory) Local(local *ast.Local, parent *Scope) *Scope {
	return f.cached("local:"+local.Decl.ID+"@"+parentKey(parent), func() *Scope {
		return OrParent(Local, local.Decl.Name, parent, f.Index.CandidatesOf(local.Decl), nil)
	})
}

// Element synthesizes the scope of the position at inside file. ancestors
// are the syntactic constructs enclosing the position, outermost first.
// Locals of an enclosing block are visible only if they end before at.
func (f *Factory) Element(file *ast.File, ancestors []ast.Node, at diagnostics.Span) *Scope {
	s := f.External(file)
	if f.Program != nil {
		if unit, ok := f.Program.Unit(file.Package); ok {
			s = f.Module(unit, s)
		}
	}
	s = f.File(file, s)

	for _, n := range ancestors {
		switch node := n.(type) {
		case *ast.Class:
			s = f.Class(node, s)
		case *ast.Function:
			s = f.Function(node, s)
		case *ast.Block:
			for _, stmt := range node.Stmts {
				local, ok := stmt.(*ast.Local)
				if !ok {
					continue
				}
				if local.Loc.End > at.Start {
					break
				}
				s = f.Local(local, s)
			}
		}
	}
	return s
}
