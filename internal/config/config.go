package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Trace     TraceConfig     `yaml:"trace"`
	Graph     GraphConfig     `yaml:"graph"`
	Backtrack BacktrackConfig `yaml:"backtrack"`
	Output    OutputConfig    `yaml:"output"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// TraceConfig controls parsing of the capture file.
type TraceConfig struct {
	// Exclude lists object patterns whose events are dropped. Entries may be
	// literals (substring), globs, "re:" regexes or "@class" references.
	// A nil list selects the kernel-channel class; an explicit empty list
	// keeps everything.
	Exclude []string `yaml:"exclude"`
	// Classes adds or replaces named pattern classes usable as "@name".
	Classes map[string][]string `yaml:"classes"`
	// UnmatchedExit is drop, error or keep.
	UnmatchedExit string `yaml:"unmatched_exit"`
}

type GraphConfig struct {
	// OutwardOperations point process -> object; everything else points
	// object -> process. A nil list selects the built-in set.
	OutwardOperations []string `yaml:"outward_operations"`
}

type BacktrackConfig struct {
	// Workers bounds the biggest scan. 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

type OutputConfig struct {
	Dir            string `yaml:"dir"`
	Format         string `yaml:"format"`
	FullGraph      string `yaml:"full_graph"`
	BacktrackGraph string `yaml:"backtrack_graph"`
	// Origin is first-event (offsets from the first event's start) or zero.
	Origin string `yaml:"origin"`
}

type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
	// Output is a file for exported spans; empty means stderr.
	Output string `yaml:"output"`
	// MetricsFile receives a Prometheus text-format run summary when set.
	MetricsFile string `yaml:"metrics_file"`
}

const (
	OriginFirstEvent = "first-event"
	OriginZero       = "zero"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault is Default with environment overrides applied and validated.
func LoadDefault() (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromBytes loads configuration from bytes without applying environment
// overrides. This is intended for testing where env vars should not interfere.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Trace.Exclude == nil {
		cfg.Trace.Exclude = []string{"@kernel-channel"}
	}
	if cfg.Trace.UnmatchedExit == "" {
		cfg.Trace.UnmatchedExit = "drop"
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "dot"
	}
	if cfg.Output.FullGraph == "" {
		cfg.Output.FullGraph = "graph-output"
	}
	if cfg.Output.BacktrackGraph == "" {
		cfg.Output.BacktrackGraph = "backtrack-graph-output"
	}
	if cfg.Output.Origin == "" {
		cfg.Output.Origin = OriginFirstEvent
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BACKTRACK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BACKTRACK_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("BACKTRACK_OUTPUT_FORMAT"); v != "" {
		cfg.Output.Format = v
	}
}

// Validate checks a configuration after flags have been applied on top of it.
func (c *Config) Validate() error {
	return validateConfig(c)
}

func validateConfig(cfg *Config) error {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format %q", cfg.Logging.Format)
	}
	switch strings.ToLower(cfg.Trace.UnmatchedExit) {
	case "drop", "error", "keep":
	default:
		return fmt.Errorf("invalid trace.unmatched_exit %q", cfg.Trace.UnmatchedExit)
	}
	for i, p := range cfg.Trace.Exclude {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("trace.exclude[%d] is empty", i)
		}
	}
	for name := range cfg.Trace.Classes {
		if name == "" || strings.HasPrefix(name, "@") {
			return fmt.Errorf("invalid trace.classes name %q", name)
		}
	}
	for i, op := range cfg.Graph.OutwardOperations {
		if strings.TrimSpace(op) == "" {
			return fmt.Errorf("graph.outward_operations[%d] is empty", i)
		}
	}
	if cfg.Backtrack.Workers < 0 {
		return fmt.Errorf("backtrack.workers must be >= 0")
	}
	switch strings.ToLower(cfg.Output.Format) {
	case "dot", "json", "markdown", "md", "sqlite":
	default:
		return fmt.Errorf("invalid output.format %q", cfg.Output.Format)
	}
	if cfg.Output.FullGraph == cfg.Output.BacktrackGraph {
		return fmt.Errorf("output.full_graph and output.backtrack_graph must differ")
	}
	if strings.ContainsAny(cfg.Output.FullGraph+cfg.Output.BacktrackGraph, `/\`) {
		return fmt.Errorf("output graph names must not contain path separators")
	}
	switch cfg.Output.Origin {
	case OriginFirstEvent, OriginZero:
	default:
		return fmt.Errorf("invalid output.origin %q", cfg.Output.Origin)
	}
	return nil
}
