package loader

import (
	"github.com/funvibe/given/internal/logging"
	"github.com/funvibe/given/internal/pipeline"
)

// LoaderProcessor loads the program description named by ctx.FilePath, or
// parses ctx.SourceCode when it is set.
type LoaderProcessor struct{}

func (lp *LoaderProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	var err error
	if len(ctx.SourceCode) > 0 {
		ctx.Program, err = Parse(ctx.SourceCode, ctx.FilePath)
	} else {
		ctx.Program, err = Load(ctx.FilePath)
	}
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	logging.OrDiscard(ctx.Logger).Debug("program loaded", "path", ctx.FilePath, "units", len(ctx.Program.Units))
	return ctx
}
