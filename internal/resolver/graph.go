package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/scope"
	"github.com/funvibe/given/internal/symbols"
	"github.com/funvibe/given/internal/typesystem"
)

// NodeKind tells how a node supplies its value.
type NodeKind int

const (
	CallNode      NodeKind = iota // Invoke Candidate with Children as arguments
	ListNode                      // Collect Children, spreading collection elements
	LambdaNode                    // Defer Children[0] behind a function taking Params
	TypeKeyNode                   // Value is the rendered type
	SourceKeyNode                 // Value is the call-site location
	RecursiveNode                 // Refers back to the enclosing in-flight Candidate
)

func (k NodeKind) String() string {
	switch k {
	case CallNode:
		return "call"
	case ListNode:
		return "list"
	case LambdaNode:
		return "lambda"
	case TypeKeyNode:
		return "typekey"
	case SourceKeyNode:
		return "sourcekey"
	case RecursiveNode:
		return "recursive"
	default:
		return "unknown"
	}
}

// Node is one resolved value of a graph. Nodes are shared between graphs
// of the same session and must not be modified.
type Node struct {
	Kind      NodeKind
	Candidate *symbols.Candidate
	Type      typesystem.TypeRef
	Children  []Binding
	Params    []*symbols.Candidate
	Value     string
}

// Binding is the answer to one request.
type Binding struct {
	Request   Request
	Node      *Node
	Defaulted bool // Left to the parameter's default; Node is nil
	Spread    bool // A list element contributing a whole collection
}

// Subst returns the specialization of the node's candidate.
func (n *Node) Subst() typesystem.Subst {
	if n.Candidate == nil {
		return nil
	}
	return n.Candidate.Subst
}

// Import returns the import pattern that made the node's candidate
// visible, or "" when it is local.
func (n *Node) Import() string {
	if n.Candidate == nil {
		return ""
	}
	return n.Candidate.Provenance.ImportPath
}

// Walk visits n and its descendants depth-first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, b := range n.Children {
		if b.Node != nil {
			b.Node.Walk(fn)
		}
	}
}

func (n *Node) String() string {
	switch n.Kind {
	case CallNode, RecursiveNode:
		s := n.Candidate.Decl.Name
		if n.Kind == RecursiveNode {
			s = "^" + s
		}
		if imp := n.Import(); imp != "" {
			s += " [" + imp + "]"
		}
		return s
	case TypeKeyNode, SourceKeyNode:
		return fmt.Sprintf("%s(%q)", n.Kind, n.Value)
	default:
		return n.Kind.String()
	}
}

// Graph is the outcome of resolving the requests of one call site: either
// a *SuccessGraph or an *ErrorGraph.
type Graph interface {
	CallSite() diagnostics.Span
	Succeeded() bool
}

// SuccessGraph binds every request of a call site.
type SuccessGraph struct {
	Site    diagnostics.Span
	Callee  *symbols.Decl
	Scope   *scope.Scope
	Results []Binding
}

func (g *SuccessGraph) CallSite() diagnostics.Span { return g.Site }
func (g *SuccessGraph) Succeeded() bool            { return true }

// Result returns the binding of the named parameter.
func (g *SuccessGraph) Result(param string) (Binding, bool) {
	for _, b := range g.Results {
		if b.Request.Parameter == param {
			return b, true
		}
	}
	return Binding{}, false
}

// Walk visits every node of the graph.
func (g *SuccessGraph) Walk(fn func(*Node)) {
	for _, b := range g.Results {
		if b.Node != nil {
			b.Node.Walk(fn)
		}
	}
}

// UsedImports returns the sorted import patterns that supplied a node.
func (g *SuccessGraph) UsedImports() []string {
	seen := make(map[string]bool)
	var out []string
	g.Walk(func(n *Node) {
		if imp := n.Import(); imp != "" && !seen[imp] {
			seen[imp] = true
			out = append(out, imp)
		}
	})
	sort.Strings(out)
	return out
}

// Candidates returns the distinct declarations invoked by the graph.
func (g *SuccessGraph) Candidates() []string {
	seen := make(map[string]bool)
	var out []string
	g.Walk(func(n *Node) {
		if n.Kind == CallNode && !seen[n.Candidate.ID()] {
			seen[n.Candidate.ID()] = true
			out = append(out, n.Candidate.ID())
		}
	})
	sort.Strings(out)
	return out
}

// String renders the graph as an indented tree, one binding per line.
func (g *SuccessGraph) String() string {
	var sb strings.Builder
	var write func(bs []Binding, depth int)
	write = func(bs []Binding, depth int) {
		for _, b := range bs {
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString(b.Request.String())
			switch {
			case b.Defaulted:
				sb.WriteString(" = default\n")
			default:
				sb.WriteString(" = " + b.Node.String() + "\n")
				write(b.Node.Children, depth+1)
			}
		}
	}
	write(g.Results, 0)
	return sb.String()
}

// ErrorGraph carries the first failure of a call site.
type ErrorGraph struct {
	Site    diagnostics.Span
	Callee  *symbols.Decl
	Scope   *scope.Scope
	Failure *Failure
}

func (g *ErrorGraph) CallSite() diagnostics.Span { return g.Site }
func (g *ErrorGraph) Succeeded() bool            { return false }

// Diagnostic returns the single diagnostic reported for the call site.
func (g *ErrorGraph) Diagnostic() diagnostics.Diagnostic {
	return diagnostics.New(g.Failure.Reason.Code(), g.Site, "%s", g.Failure.Message())
}
