package analyzer

import (
	"github.com/funvibe/given/internal/pipeline"
	"github.com/funvibe/given/internal/symbols"
)

// AnalyzerProcessor runs Analyze over the program loaded by an earlier stage.
type AnalyzerProcessor struct{}

func (ap *AnalyzerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Program == nil {
		return ctx
	}
	if ctx.Index == nil {
		ctx.Index = symbols.NewIndex()
	}

	analyzer := New(ctx.Index)
	analyzer.Metrics = ctx.Metrics
	if ctx.Logger != nil {
		analyzer.Logger = ctx.Logger
	}
	if ctx.Config != nil {
		analyzer.Roots = ctx.Config.Roots
		analyzer.Imports = ctx.Config.Imports
	}
	result := analyzer.Analyze(ctx.Program)

	ctx.SessionID = result.Session
	ctx.Graphs = result.Graphs
	ctx.Diagnostics = append(ctx.Diagnostics, result.Diagnostics...)
	return ctx
}
