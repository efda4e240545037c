// Package export converts resolution results into a plain report and its
// protobuf wire form, for tools that consume graphs outside the process.
package export

import (
	"sort"

	"github.com/funvibe/given/internal/analyzer"
	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/resolver"
	"github.com/funvibe/given/internal/symbols"
)

// Report is the outcome of one resolution pass.
type Report struct {
	Session     string
	Graphs      []Graph // Ordered by call site
	Diagnostics []diagnostics.Diagnostic
}

// Graph is the result of one call site. Exactly one of Results and
// Failure is meaningful.
type Graph struct {
	Site        diagnostics.Span
	Callee      string
	Results     []Binding
	Failure     *Failure
	UsedImports []string
}

func (g Graph) Succeeded() bool {
	return g.Failure == nil
}

type Binding struct {
	Parameter string
	Type      string
	Defaulted bool
	Spread    bool
	Node      *Node
}

type Node struct {
	Kind       string
	Candidate  string
	Type       string
	Value      string
	ImportPath string
	Params     []string
	Children   []Binding
}

type Failure struct {
	Code       diagnostics.Code
	Reason     string
	Message    string
	Path       []string
	Candidates []string
}

// Graph returns the graph of site.
func (r *Report) Graph(site diagnostics.Span) (Graph, bool) {
	for _, g := range r.Graphs {
		if g.Site == site {
			return g, true
		}
	}
	return Graph{}, false
}

// FromGraphs builds a report from the graphs and diagnostics of a session.
func FromGraphs(session string, graphs map[diagnostics.Span]resolver.Graph, diags []diagnostics.Diagnostic) *Report {
	r := &Report{Session: session, Diagnostics: diags}
	sites := make([]diagnostics.Span, 0, len(graphs))
	for site := range graphs {
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].Less(sites[j]) })

	for _, site := range sites {
		r.Graphs = append(r.Graphs, graphOf(graphs[site]))
	}
	return r
}

func graphOf(g resolver.Graph) Graph {
	switch g := g.(type) {
	case *resolver.SuccessGraph:
		out := Graph{Site: g.Site, Callee: declID(g.Callee), UsedImports: g.UsedImports()}
		out.Results = bindingsOf(g.Results)
		return out
	case *resolver.ErrorGraph:
		f := g.Failure
		out := Graph{Site: g.Site, Callee: declID(g.Callee), Failure: &Failure{
			Code:    f.Reason.Code(),
			Reason:  f.Reason.String(),
			Message: f.Message(),
		}}
		for _, req := range f.Path {
			out.Failure.Path = append(out.Failure.Path, req.String())
		}
		for _, c := range f.Candidates {
			out.Failure.Candidates = append(out.Failure.Candidates, c.ID())
		}
		return out
	}
	return Graph{Site: g.CallSite()}
}

func declID(d *symbols.Decl) string {
	if d == nil {
		return ""
	}
	return d.ID
}

func bindingsOf(bs []resolver.Binding) []Binding {
	var out []Binding
	for _, b := range bs {
		out = append(out, Binding{
			Parameter: b.Request.Parameter,
			Type:      b.Request.Type.String(),
			Defaulted: b.Defaulted,
			Spread:    b.Spread,
			Node:      nodeOf(b.Node),
		})
	}
	return out
}

func nodeOf(n *resolver.Node) *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Kind:       n.Kind.String(),
		Type:       n.Type.String(),
		Value:      n.Value,
		ImportPath: n.Import(),
		Children:   bindingsOf(n.Children),
	}
	if n.Candidate != nil {
		out.Candidate = n.Candidate.ID()
	}
	for _, p := range n.Params {
		out.Params = append(out.Params, p.ID())
	}
	return out
}

// FromResult builds a report from an analysis pass.
func FromResult(res *analyzer.Result) *Report {
	return FromGraphs(res.Session, res.Graphs, res.Diagnostics)
}
