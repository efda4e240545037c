package incremental

import (
	"context"
	"os"

	"github.com/funvibe/given/internal/export"
	"github.com/funvibe/given/internal/logging"
	"github.com/funvibe/given/internal/pipeline"
)

// StoreProcessor records the results of an analysis pass in Store. It runs
// after the analyzer and never fails the pass: store errors are logged.
type StoreProcessor struct {
	Store *Store
}

func (sp *StoreProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if sp.Store == nil || ctx.Program == nil || ctx.Graphs == nil {
		return ctx
	}
	logger := logging.OrDiscard(ctx.Logger)

	hashes := make(map[string]string)
	sources := make(map[string][]byte)
	changed := 0
	for _, u := range ctx.Program.Units {
		if u.External {
			continue
		}
		for _, f := range u.Files {
			// documents sharing an origin share its hash
			data := ctx.SourceCode
			if len(data) == 0 {
				origin := f.Origin
				if origin == "" {
					origin = f.Path
				}
				var ok bool
				if data, ok = sources[origin]; !ok {
					var err error
					if data, err = os.ReadFile(origin); err != nil {
						logger.Warn("file not hashed", "path", f.Path, "origin", origin, "error", err)
						continue
					}
					sources[origin] = data
				}
			}
			hash := Hash(data)
			if ok, err := sp.Store.Changed(context.Background(), f.Path, hash); err == nil && ok {
				changed++
			}
			hashes[f.Path] = hash
		}
	}

	report := export.FromGraphs(ctx.SessionID, ctx.Graphs, ctx.Diagnostics)
	if err := sp.Store.Save(context.Background(), report, hashes); err != nil {
		logger.Warn("results not stored", "store", sp.Store.Path(), "error", err)
		return ctx
	}
	logger.Debug("results stored", "store", sp.Store.Path(), "files", len(hashes), "changed", changed)
	return ctx
}
