package symbols

import (
	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/typesystem"
)

// DeclKind classifies a declaration.
type DeclKind int

const (
	FunctionDecl DeclKind = iota
	PropertyDecl          // top-level or member val
	ClassDecl
	LocalDecl     // val declared inside a block
	ParameterDecl // synthetic declaration of a requested value parameter
)

func (k DeclKind) String() string {
	switch k {
	case FunctionDecl:
		return "function"
	case PropertyDecl:
		return "property"
	case ClassDecl:
		return "class"
	case LocalDecl:
		return "local"
	case ParameterDecl:
		return "parameter"
	default:
		return "unknown"
	}
}

// Param is a value parameter of a function or class constructor.
type Param struct {
	Name       string
	Type       typesystem.TypeRef
	Typed      bool // False when the frontend could not read a declared type
	Requested  bool // Resolved at call sites instead of passed explicitly
	HasDefault bool
	Property   bool // Constructor parameter backing a property
	Provide    bool // Property parameter carrying the provider marker
	Span       diagnostics.Span
}

// Decl is the resolver's snapshot of one declaration.
type Decl struct {
	ID      string // Unique identity, e.g. "app.provideB" or "app.Service.logger"
	Name    string
	Package string
	Kind    DeclKind

	Provide   bool
	Preferred bool
	Priority  int // Value of the preferred marker; higher wins
	Private   bool
	Entry     bool // Traversal entry point

	TypeParams []*typesystem.Classifier
	Params     []Param

	// Type is the produced type: the return type of a function, the type of
	// a property or local, or the class type of a class.
	Type typesystem.TypeRef

	Class     *typesystem.Classifier // Set for class declarations
	Members   []*Decl
	Companion *Decl
	Owner     *Decl // Enclosing class, if any

	Span diagnostics.Span
}

func (d *Decl) String() string {
	return d.ID
}

// RequestedParams returns the parameters resolved at call sites, in declaration order.
func (d *Decl) RequestedParams() []Param {
	var out []Param
	for _, p := range d.Params {
		if p.Requested {
			out = append(out, p)
		}
	}
	return out
}

// PatternParams returns the spread type parameters.
func (d *Decl) PatternParams() []*typesystem.Classifier {
	var out []*typesystem.Classifier
	for _, tp := range d.TypeParams {
		if tp.Pattern {
			out = append(out, tp)
		}
	}
	return out
}

// IsMember reports whether the declaration lives in a class body.
func (d *Decl) IsMember() bool {
	return d.Owner != nil
}

// OwnerType is the type of the enclosing class instance.
func (d *Decl) OwnerType() typesystem.TypeRef {
	if d.Owner == nil || d.Owner.Class == nil {
		return typesystem.TypeRef{}
	}
	return d.Owner.Class.Type()
}

// Walk visits d, its members and its companion depth-first.
func (d *Decl) Walk(visit func(*Decl)) {
	visit(d)
	for _, m := range d.Members {
		m.Walk(visit)
	}
	if d.Companion != nil {
		d.Companion.Walk(visit)
	}
}
