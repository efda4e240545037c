package gosrc

import (
	"os"
	"path/filepath"

	"github.com/funvibe/given/internal/logging"
	"github.com/funvibe/given/internal/pipeline"
)

// GoProcessor loads the Go packages below the directory ctx.FilePath.
type GoProcessor struct {
	// Patterns default to "./...".
	Patterns []string
}

func (gp *GoProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	patterns := gp.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	program, err := Load(ctx.FilePath, patterns...)
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	ctx.Program = program
	logging.OrDiscard(ctx.Logger).Debug("packages loaded", "dir", ctx.FilePath, "units", len(program.Units))
	return ctx
}

// IsModuleDir reports whether dir is the root of a Go module.
func IsModuleDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "go.mod"))
	return err == nil && !info.IsDir()
}
