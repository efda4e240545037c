package pipeline

import (
	"log/slog"

	"github.com/funvibe/given/internal/ast"
	"github.com/funvibe/given/internal/config"
	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/metrics"
	"github.com/funvibe/given/internal/resolver"
	"github.com/funvibe/given/internal/symbols"
)

// Processor is one stage of a pipeline.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// PipelineContext carries the state shared by the stages of one pass.
type PipelineContext struct {
	FilePath   string // Program description or source directory
	SourceCode []byte // Optional; read from FilePath when empty
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Recorder

	Program *ast.Program
	Index   *symbols.Index

	SessionID   string
	Graphs      map[diagnostics.Span]resolver.Graph
	Diagnostics []diagnostics.Diagnostic

	// Errors are failures of the pass itself, as opposed to diagnostics
	// about the program.
	Errors []error
}

// Failed reports whether a stage failed or an error diagnostic was produced.
func (ctx *PipelineContext) Failed() bool {
	return len(ctx.Errors) > 0 || diagnostics.HasErrors(ctx.Diagnostics)
}
