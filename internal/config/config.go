// Package config holds the resolver's built-in names and the given.yaml
// project configuration.
//
// A given.yaml file configures:
//   - import-path patterns that are visible from every compilation unit
//   - well-known root packages whose providers are always in scope
//   - logging, metrics, colour output and the incremental cache location
//   - the resolution daemon's listen address
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level given.yaml configuration.
type Config struct {
	// Imports are import-path patterns added to every file, e.g. "std.*".
	Imports []string `yaml:"imports,omitempty"`

	// Roots are packages whose non-private providers are visible everywhere
	// without an import, like a prelude.
	Roots []string `yaml:"roots,omitempty"`

	Log     LogConfig     `yaml:"log,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	Cache   CacheConfig   `yaml:"cache,omitempty"`
	Daemon  DaemonConfig  `yaml:"daemon,omitempty"`

	// Color is one of auto, always or never.
	Color string `yaml:"color,omitempty"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to warn.
	Level string `yaml:"level,omitempty"`

	// Format is text or json. Defaults to text.
	Format string `yaml:"format,omitempty"`
}

// MetricsConfig toggles resolver operation counters.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// CacheConfig locates the incremental resolution store.
type CacheConfig struct {
	// Path of the sqlite database, relative to the config file.
	// Defaults to .given/cache.db. An empty path after defaults disables the store.
	Path string `yaml:"path,omitempty"`

	// Disabled turns the store off even when Path is set.
	Disabled bool `yaml:"disabled,omitempty"`
}

// DaemonConfig configures `given serve`.
type DaemonConfig struct {
	// Addr is the TCP listen address. Defaults to 127.0.0.1:7457.
	Addr string `yaml:"addr,omitempty"`
}

// Error is returned for semantic problems in a configuration file.
type Error struct {
	Path  string
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Field, e.Msg)
}

// Default returns the configuration used when no given.yaml exists.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a given.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Path != "" && !filepath.IsAbs(cfg.Cache.Path) {
		cfg.Cache.Path = filepath.Join(filepath.Dir(path), cfg.Cache.Path)
	}
	return cfg, nil
}

// ParseConfig parses given.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for given.yaml starting from dir and walking up
// to parent directories.
// Returns the path to the config file, or empty string if none was found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	for i, imp := range c.Imports {
		if err := ValidateImportPattern(imp); err != nil {
			return &Error{Path: path, Field: fmt.Sprintf("imports[%d]", i), Msg: err.Error()}
		}
	}

	seenRoots := make(map[string]bool)
	for i, root := range c.Roots {
		if strings.TrimSpace(root) == "" {
			return &Error{Path: path, Field: fmt.Sprintf("roots[%d]", i), Msg: "root package is empty"}
		}
		if strings.HasSuffix(root, ".*") {
			return &Error{Path: path, Field: fmt.Sprintf("roots[%d]", i), Msg: "roots name packages, not import patterns"}
		}
		if seenRoots[root] {
			return &Error{Path: path, Field: fmt.Sprintf("roots[%d]", i), Msg: fmt.Sprintf("duplicate root %q", root)}
		}
		seenRoots[root] = true
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return &Error{Path: path, Field: "log.level", Msg: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return &Error{Path: path, Field: "log.format", Msg: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}

	switch strings.ToLower(c.Color) {
	case "", "auto", "always", "never":
	default:
		return &Error{Path: path, Field: "color", Msg: fmt.Sprintf("expected auto, always or never, got %q", c.Color)}
	}

	return nil
}

// setDefaults fills in default values for omitted fields.
func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Color == "" {
		c.Color = "auto"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(".given", "cache.db")
	}
	if c.Daemon.Addr == "" {
		c.Daemon.Addr = "127.0.0.1:7457"
	}
}

// StoreEnabled reports whether the incremental store should be opened.
func (c *Config) StoreEnabled() bool {
	return !c.Cache.Disabled && c.Cache.Path != ""
}

// ValidateImportPattern checks an import-path pattern: either a fully
// qualified declaration ("pkg.Name") or a package wildcard ("pkg.*").
func ValidateImportPattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("import pattern is empty")
	}
	if strings.ContainsAny(pattern, " \t") {
		return fmt.Errorf("import pattern %q contains whitespace", pattern)
	}
	idx := strings.LastIndex(pattern, ".")
	if idx <= 0 || idx == len(pattern)-1 {
		return fmt.Errorf("import pattern %q must be pkg.Name or pkg.*", pattern)
	}
	if strings.Contains(pattern[:idx], "*") {
		return fmt.Errorf("import pattern %q may only end with a wildcard", pattern)
	}
	return nil
}
