// Package ast is the program structure the resolver traverses: compilation
// units, files, declarations with bodies, and the call sites that request
// capabilities. Frontends build it; the analyzer walks it.
package ast

import (
	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/symbols"
	"github.com/funvibe/given/internal/typesystem"
)

// Node is the base interface for all program nodes.
type Node interface {
	Span() diagnostics.Span
	Accept(v Visitor)
}

// Declaration is a Node backed by a declaration snapshot.
type Declaration interface {
	Node
	Declaration() *symbols.Decl
}

// Visitor visits program nodes. Walkers decide themselves whether to descend.
type Visitor interface {
	VisitProgram(p *Program)
	VisitUnit(u *Unit)
	VisitFile(f *File)
	VisitClass(c *Class)
	VisitFunction(f *Function)
	VisitProperty(p *Property)
	VisitBlock(b *Block)
	VisitLocal(l *Local)
	VisitCall(c *Call)
}

// Program is every compilation unit taking part in a pass.
type Program struct {
	Units []*Unit
}

func (p *Program) Span() diagnostics.Span { return diagnostics.Span{} }
func (p *Program) Accept(v Visitor)       { v.VisitProgram(p) }

// Unit finds a unit by package path.
func (p *Program) Unit(pkg string) (*Unit, bool) {
	for _, u := range p.Units {
		if u.Package == pkg {
			return u, true
		}
	}
	return nil, false
}

// Unit is one compilation unit (a package). External units are only
// visible through imports and are never traversed.
type Unit struct {
	Package  string
	Files    []*File
	External bool
}

func (u *Unit) Span() diagnostics.Span { return diagnostics.Span{} }
func (u *Unit) Accept(v Visitor)       { v.VisitUnit(u) }

// TopLevel returns the top-level declarations of every file of u.
func (u *Unit) TopLevel() []Declaration {
	var out []Declaration
	for _, f := range u.Files {
		out = append(out, f.Decls...)
	}
	return out
}

// File is one source file of a unit.
type File struct {
	Path    string
	Package string
	Imports []string // Import-path patterns, "pkg.*" or "pkg.Name"
	Decls   []Declaration
	Loc     diagnostics.Span

	// Origin is the file on disk the source was read from. Several files
	// may share one origin; it is empty for sources passed in memory.
	Origin string
}

func (f *File) Span() diagnostics.Span { return f.Loc }
func (f *File) Accept(v Visitor)       { v.VisitFile(f) }

// Class is a class declaration with its body.
type Class struct {
	Decl      *symbols.Decl
	Members   []Declaration
	Companion *Class
	Loc       diagnostics.Span
}

func (c *Class) Span() diagnostics.Span     { return c.Loc }
func (c *Class) Accept(v Visitor)           { v.VisitClass(c) }
func (c *Class) Declaration() *symbols.Decl { return c.Decl }

// Function is a function declaration with an optional body.
type Function struct {
	Decl *symbols.Decl
	Body *Block
	Loc  diagnostics.Span
}

func (f *Function) Span() diagnostics.Span     { return f.Loc }
func (f *Function) Accept(v Visitor)           { v.VisitFunction(f) }
func (f *Function) Declaration() *symbols.Decl { return f.Decl }

// Property is a property declaration; Init holds the calls of its initializer.
type Property struct {
	Decl *symbols.Decl
	Init *Block
	Loc  diagnostics.Span
}

func (p *Property) Span() diagnostics.Span     { return p.Loc }
func (p *Property) Accept(v Visitor)           { v.VisitProperty(p) }
func (p *Property) Declaration() *symbols.Decl { return p.Decl }

// Block is a lexical block. Statements are Locals, Calls, nested Blocks,
// Functions and Classes, in program order.
type Block struct {
	Stmts []Node
	Loc   diagnostics.Span
}

func (b *Block) Span() diagnostics.Span { return b.Loc }
func (b *Block) Accept(v Visitor)       { v.VisitBlock(b) }

// Local is a local value declaration. Its initializer runs before the
// value becomes visible.
type Local struct {
	Decl *symbols.Decl
	Init *Block
	Loc  diagnostics.Span
}

func (l *Local) Span() diagnostics.Span     { return l.Loc }
func (l *Local) Accept(v Visitor)           { v.VisitLocal(l) }
func (l *Local) Declaration() *symbols.Decl { return l.Decl }

// Call is a call site. Its span is the call-site identity.
type Call struct {
	Callee   *symbols.Decl
	TypeArgs []typesystem.TypeRef
	Explicit []string // Requested parameters passed explicitly
	Loc      diagnostics.Span
}

func (c *Call) Span() diagnostics.Span { return c.Loc }
func (c *Call) Accept(v Visitor)       { v.VisitCall(c) }

// IsExplicit reports whether the requested parameter name was passed explicitly.
func (c *Call) IsExplicit(name string) bool {
	for _, e := range c.Explicit {
		if e == name {
			return true
		}
	}
	return false
}

// CallAt finds the innermost call of file whose span contains offset. It
// returns the file and the classes, functions and blocks enclosing the
// call, outermost first.
func (p *Program) CallAt(path string, offset int) (*File, []Node, *Call, bool) {
	for _, u := range p.Units {
		if u.External {
			continue
		}
		for _, f := range u.Files {
			if f.Path != path {
				continue
			}
			for _, d := range f.Decls {
				if ancestors, call := callAt(d, offset, nil); call != nil {
					return f, ancestors, call, true
				}
			}
		}
	}
	return nil, nil, nil, false
}

func callAt(n Node, offset int, ancestors []Node) ([]Node, *Call) {
	var children []Node
	switch n := n.(type) {
	case *Call:
		if n.Loc.Start <= offset && offset < n.Loc.End {
			return ancestors, n
		}
		return nil, nil
	case *Class:
		ancestors = append(ancestors, n)
		for _, m := range n.Members {
			children = append(children, m)
		}
		if n.Companion != nil {
			children = append(children, n.Companion)
		}
	case *Function:
		ancestors = append(ancestors, n)
		if n.Body != nil {
			children = append(children, n.Body)
		}
	case *Property:
		if n.Init != nil {
			children = append(children, n.Init)
		}
	case *Local:
		if n.Init != nil {
			children = append(children, n.Init)
		}
	case *Block:
		ancestors = append(ancestors, n)
		children = n.Stmts
	}
	for _, c := range children {
		// each branch gets its own copy of the path
		path := append([]Node(nil), ancestors...)
		if found, call := callAt(c, offset, path); call != nil {
			return found, call
		}
	}
	return nil, nil
}
