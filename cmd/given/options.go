package main

import (
	"io"
	"log/slog"

	"github.com/funvibe/given/internal/config"
	"github.com/funvibe/given/internal/logging"
	"github.com/funvibe/given/internal/metrics"
)

// Options are the global flags and the commands.
type Options struct {
	Config   string `short:"c" long:"config" description:"given.yaml to use; searched upwards from the working directory by default"`
	LogLevel string `long:"log-level" description:"log level: debug, info, warn or error"`
	Color    string `long:"color" choice:"auto" choice:"always" choice:"never" description:"colour diagnostics"`

	Check Check `command:"check" description:"resolve every call site and report the unresolved ones"`
	Graph Graph `command:"graph" description:"print the resolved graph of every call site"`
	Serve Serve `command:"serve" description:"answer resolution requests over gRPC"`
	Clean Clean `command:"clean" description:"remove the incremental store"`

	stdout io.Writer
	stderr io.Writer
}

func newOptions(stdout, stderr io.Writer) *Options {
	o := &Options{stdout: stdout, stderr: stderr}
	o.Check.root = o
	o.Graph.root = o
	o.Serve.root = o
	o.Clean.root = o
	return o
}

// env is what every command needs before it starts.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Recorder
}

func (o *Options) setup() (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.Color != "" {
		cfg.Color = o.Color
	}
	e := &env{cfg: cfg, logger: logging.New(cfg.Log.Level, cfg.Log.Format, o.stderr)}
	if cfg.Metrics.Enabled {
		e.metrics = metrics.New(nil)
	}
	return e, nil
}

func (o *Options) loadConfig() (*config.Config, error) {
	path := o.Config
	if path == "" {
		found, err := config.FindConfig(".")
		if err != nil {
			return nil, err
		}
		path = found
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}
