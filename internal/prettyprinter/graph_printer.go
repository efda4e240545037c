// Package prettyprinter renders resolved graphs as indented text, one
// binding per line, the way `given graph` prints them.
package prettyprinter

import (
	"bytes"
	"sort"

	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/export"
	"github.com/funvibe/given/internal/resolver"
)

const indentUnit = "  "

type GraphPrinter struct {
	buf    bytes.Buffer
	indent int
}

func NewGraphPrinter() *GraphPrinter {
	return &GraphPrinter{}
}

func (p *GraphPrinter) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString(indentUnit)
	}
}

func (p *GraphPrinter) line(parts ...string) {
	p.writeIndent()
	for _, s := range parts {
		p.buf.WriteString(s)
	}
	p.buf.WriteByte('\n')
}

func (p *GraphPrinter) String() string {
	return p.buf.String()
}

// PrintGraphs prints every graph, ordered by call site.
func (p *GraphPrinter) PrintGraphs(graphs map[diagnostics.Span]resolver.Graph) {
	sites := make([]diagnostics.Span, 0, len(graphs))
	for site := range graphs {
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].Less(sites[j]) })
	for _, site := range sites {
		p.PrintGraph(graphs[site])
	}
}

// PrintGraph prints the call site header followed by its bindings or its
// failure.
func (p *GraphPrinter) PrintGraph(g resolver.Graph) {
	switch g := g.(type) {
	case *resolver.SuccessGraph:
		p.line(g.Site.String(), " ", g.Callee.Name)
		p.indent++
		p.printBindings(g.Results)
		p.indent--
	case *resolver.ErrorGraph:
		p.line(g.Site.String(), " ", g.Callee.Name)
		p.indent++
		p.line("error: ", g.Failure.Message())
		p.indent--
	}
}

func (p *GraphPrinter) printBindings(bs []resolver.Binding) {
	for _, b := range bs {
		if b.Defaulted || b.Node == nil {
			p.line(b.Request.String(), " = default")
			continue
		}
		p.line(b.Request.String(), " = ", b.Node.String())
		p.indent++
		p.printBindings(b.Node.Children)
		p.indent--
	}
}

// PrintReport prints a decoded report. Nodes are named by declaration ID,
// since a report no longer carries the declarations.
func (p *GraphPrinter) PrintReport(r *export.Report) {
	for _, g := range r.Graphs {
		p.line(g.Site.String(), " ", g.Callee)
		p.indent++
		if g.Failure != nil {
			p.line("error: ", g.Failure.Message)
		} else {
			p.printReportBindings(g.Results)
		}
		p.indent--
	}
}

func (p *GraphPrinter) printReportBindings(bs []export.Binding) {
	for _, b := range bs {
		request := b.Parameter + ": " + b.Type
		if b.Parameter == "" {
			request = b.Type
		}
		if b.Defaulted || b.Node == nil {
			p.line(request, " = default")
			continue
		}
		label := b.Node.Candidate
		if label == "" {
			label = b.Node.Kind
		}
		if b.Node.ImportPath != "" {
			label += " [" + b.Node.ImportPath + "]"
		}
		p.line(request, " = ", label)
		p.indent++
		p.printReportBindings(b.Node.Children)
		p.indent--
	}
}
