package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/viant/gmetric"

	"github.com/funvibe/given/internal/analyzer"
	"github.com/funvibe/given/internal/daemon"
	"github.com/funvibe/given/internal/diagnostics"
	"github.com/funvibe/given/internal/export"
	"github.com/funvibe/given/internal/gosrc"
	"github.com/funvibe/given/internal/incremental"
	"github.com/funvibe/given/internal/loader"
	"github.com/funvibe/given/internal/metrics"
	"github.com/funvibe/given/internal/pipeline"
	"github.com/funvibe/given/internal/prettyprinter"
	"github.com/funvibe/given/internal/resolver"
)

// Source selects the frontend reading the program.
type Source struct {
	Go bool `long:"go" description:"read Go packages instead of program descriptions"`
}

// Check implements `given check`.
type Check struct {
	Source
	NoStore bool `long:"no-store" description:"do not record results in the incremental store"`

	root *Options
}

func (c *Check) Execute(args []string) error {
	e, err := c.root.setup()
	if err != nil {
		return err
	}
	ctx, closeStore, err := analyze(e, args, c.Go, !c.NoStore)
	if err != nil {
		return err
	}
	defer closeStore()

	errs, err := diagnostics.NewRenderer(c.root.stdout, e.cfg.Color).Render(ctx.Diagnostics)
	if err != nil {
		return err
	}
	e.logger.Info("check finished", "session", ctx.SessionID, "sites", len(ctx.Graphs), "errors", errs)
	if errs > 0 {
		return errFailed
	}
	return nil
}

// Graph implements `given graph`.
type Graph struct {
	Source
	Format string `short:"f" long:"format" choice:"text" choice:"proto" default:"text" description:"output format"`
	Out    string `short:"o" long:"out" description:"write the output to a file"`
	Cached bool   `long:"cached" description:"print the results stored by an earlier check instead of resolving"`
	At     string `long:"at" value-name:"FILE:OFFSET" description:"resolve only the call site containing this position"`

	root *Options
}

func (g *Graph) Execute(args []string) error {
	e, err := g.root.setup()
	if err != nil {
		return err
	}

	var report *export.Report
	printer := prettyprinter.NewGraphPrinter()
	if g.Cached {
		report, err = cachedReport(e, args)
		if err != nil {
			return err
		}
		printer.PrintReport(report)
	} else {
		ctx, closeStore, err := analyze(e, args, g.Go, false)
		if err != nil {
			return err
		}
		defer closeStore()
		graphs := ctx.Graphs
		if g.At != "" {
			if graphs, err = resolveAt(e, ctx, g.At); err != nil {
				return err
			}
		}
		report = export.FromGraphs(ctx.SessionID, graphs, ctx.Diagnostics)
		printer.PrintGraphs(graphs)
	}

	var data []byte
	if g.Format == "proto" {
		if data, err = export.Encode(report); err != nil {
			return err
		}
	} else {
		data = []byte(printer.String())
	}
	if g.Out != "" {
		return os.WriteFile(g.Out, data, 0o644)
	}
	_, err = g.root.stdout.Write(data)
	return err
}

// Serve implements `given serve`.
type Serve struct {
	Addr        string `short:"a" long:"addr" description:"listen address; defaults to daemon.addr of given.yaml"`
	MetricsAddr string `long:"metrics-addr" description:"serve operation counters over HTTP at this address"`

	root *Options
}

func (s *Serve) Execute(args []string) error {
	e, err := s.root.setup()
	if err != nil {
		return err
	}
	srv, err := daemon.NewServer(e.cfg, e.logger)
	if err != nil {
		return err
	}
	srv.Metrics = e.metrics
	if e.cfg.StoreEnabled() {
		store, err := incremental.Open(e.cfg.Cache.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		srv.Store = store
	}
	if s.MetricsAddr != "" {
		if srv.Metrics == nil {
			srv.Metrics = metrics.New(nil)
		}
		go func() {
			handler := gmetric.NewHandler("/v1/api/metric/", srv.Metrics.Service())
			if err := http.ListenAndServe(s.MetricsAddr, handler); err != nil {
				e.logger.Error("metrics endpoint stopped", "addr", s.MetricsAddr, "error", err)
			}
		}()
	}

	addr := s.Addr
	if addr == "" {
		addr = e.cfg.Daemon.Addr
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		srv.Stop()
	}()
	return srv.ListenAndServe(addr)
}

// Clean implements `given clean`.
type Clean struct {
	root *Options
}

func (c *Clean) Execute(args []string) error {
	e, err := c.root.setup()
	if err != nil {
		return err
	}
	if err := incremental.Clean(e.cfg.Cache.Path); err != nil {
		return err
	}
	fmt.Fprintf(c.root.stdout, "removed %s\n", e.cfg.Cache.Path)
	return nil
}

// analyze loads the program at paths and resolves it. The returned func
// closes the store opened for the pass.
func analyze(e *env, paths []string, goMode, store bool) (*pipeline.PipelineContext, func(), error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	closeStore := func() {}

	var frontend pipeline.Processor
	switch {
	case goMode || (len(paths) == 1 && gosrc.IsModuleDir(paths[0])):
		if len(paths) > 1 {
			return nil, closeStore, errors.New("--go takes a single module directory")
		}
		frontend = &gosrc.GoProcessor{}
	case len(paths) == 1:
		frontend = &loader.LoaderProcessor{}
	default:
		frontend = pipeline.ProcessorFunc(func(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
			program, err := loader.Load(paths...)
			if err != nil {
				ctx.Errors = append(ctx.Errors, err)
				return ctx
			}
			ctx.Program = program
			return ctx
		})
	}

	processors := []pipeline.Processor{frontend, &analyzer.AnalyzerProcessor{}}
	if store && e.cfg.StoreEnabled() {
		s, err := incremental.Open(e.cfg.Cache.Path)
		if err != nil {
			return nil, closeStore, err
		}
		closeStore = func() { s.Close() }
		processors = append(processors, &incremental.StoreProcessor{Store: s})
	}

	ctx := pipeline.New(processors...).Run(&pipeline.PipelineContext{
		FilePath: paths[0],
		Config:   e.cfg,
		Logger:   e.logger,
		Metrics:  e.metrics,
	})
	if len(ctx.Errors) > 0 {
		closeStore()
		return nil, func() {}, errors.Join(ctx.Errors...)
	}
	return ctx, closeStore, nil
}

// resolveAt answers `graph --at file:offset` for a program already loaded
// into ctx.
func resolveAt(e *env, ctx *pipeline.PipelineContext, at string) (map[diagnostics.Span]resolver.Graph, error) {
	idx := strings.LastIndex(at, ":")
	if idx <= 0 {
		return nil, fmt.Errorf("--at %q: want FILE:OFFSET", at)
	}
	offset, err := strconv.Atoi(at[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("--at %q: %w", at, err)
	}

	a := analyzer.New(ctx.Index)
	a.Roots = e.cfg.Roots
	a.Imports = e.cfg.Imports
	a.Logger = e.logger
	a.Metrics = e.metrics
	g, err := a.ResolveAt(ctx.Program, at[:idx], offset)
	if err != nil {
		return nil, err
	}
	return map[diagnostics.Span]resolver.Graph{g.CallSite(): g}, nil
}

func cachedReport(e *env, paths []string) (*export.Report, error) {
	store, err := incremental.Open(e.cfg.Cache.Path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	bg := context.Background()
	if len(paths) == 0 {
		if paths, err = store.Files(bg); err != nil {
			return nil, err
		}
	}
	out := &export.Report{}
	for _, path := range paths {
		r, ok, err := store.Report(bg, path)
		if err != nil {
			return nil, err
		}
		if !ok {
			if abs, aerr := filepath.Abs(path); aerr == nil {
				r, ok, err = store.Report(bg, abs)
				if err != nil {
					return nil, err
				}
			}
		}
		if !ok {
			return nil, fmt.Errorf("no stored results for %s", path)
		}
		out.Session = r.Session
		out.Graphs = append(out.Graphs, r.Graphs...)
		out.Diagnostics = append(out.Diagnostics, r.Diagnostics...)
	}
	return out, nil
}
