package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentsh/backtrack/internal/analysis"
	"github.com/agentsh/backtrack/internal/config"
	"github.com/agentsh/backtrack/pkg/observability"
)

// runEnv carries everything one command invocation needs.
type runEnv struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	pipeline *analysis.Pipeline
	runID    string

	shutdownTracer func(context.Context) error
	spanFile       *os.File
}

func loadConfig(opts *globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.outputDir != "" {
		cfg.Output.Dir = opts.outputDir
	}
	if opts.format != "" {
		cfg.Output.Format = opts.format
	}
	if opts.metricsFile != "" {
		cfg.Telemetry.MetricsFile = opts.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads configuration, applies mutate (command-local flags) and wires
// logging, tracing, metrics and the pipeline.
func setup(cmd *cobra.Command, opts *globalOptions, mutate func(*config.Config)) (*runEnv, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, configError(err)
	}
	if mutate != nil {
		mutate(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, configError(err)
		}
	}

	logger, err := observability.NewLogger(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, configError(err)
	}

	env := &runEnv{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		runID:   uuid.NewString(),
	}

	tracerOpts := observability.TracerOptions{Enabled: cfg.Telemetry.Enabled, RunID: env.runID}
	if cfg.Telemetry.Enabled {
		tracerOpts.Writer = cmd.ErrOrStderr()
		if cfg.Telemetry.Output != "" {
			f, err := os.Create(cfg.Telemetry.Output)
			if err != nil {
				return nil, fmt.Errorf("open span output: %w", err)
			}
			env.spanFile = f
			tracerOpts.Writer = f
		}
	}
	env.shutdownTracer, err = observability.InitTracer(tracerOpts, logger)
	if err != nil {
		env.closeSpanFile()
		return nil, err
	}

	env.pipeline, err = analysis.New(analysis.Options{
		Config:  cfg,
		Logger:  logger,
		Metrics: env.metrics,
		RunID:   env.runID,
	})
	if err != nil {
		env.close(cmd.Context())
		return nil, configError(err)
	}
	return env, nil
}

// close flushes spans and writes the metrics file. Failures are logged.
func (e *runEnv) close(ctx context.Context) {
	if e.shutdownTracer != nil {
		if err := e.shutdownTracer(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn("flush spans failed", "error", err)
		}
	}
	e.closeSpanFile()
	if path := e.cfg.Telemetry.MetricsFile; path != "" {
		if err := e.metrics.WriteFile(path); err != nil {
			e.logger.Warn("write metrics failed", "path", path, "error", err)
		} else {
			e.logger.Debug("metrics written", "path", path)
		}
	}
}

func (e *runEnv) closeSpanFile() {
	if e.spanFile != nil {
		_ = e.spanFile.Close()
		e.spanFile = nil
	}
}

// runSpan starts the span that parents every stage of one command.
func (e *runEnv) runSpan(ctx context.Context, command string) (context.Context, func(error)) {
	ctx, span := observability.StageSpan(ctx, observability.StageRun,
		observability.AttrRunID.String(e.runID))
	span.SetAttributes(observability.AttrCommand.String(command))
	return ctx, func(err error) {
		observability.RecordError(span, err)
		span.End()
	}
}
