// Package analysis runs the provenance pipeline: parse a trace, build the
// causal graph, backtrack from a point of interest and export artifacts.
// Each stage is logged, timed and wrapped in a span.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentsh/backtrack/internal/backtrack"
	"github.com/agentsh/backtrack/internal/config"
	"github.com/agentsh/backtrack/internal/export"
	"github.com/agentsh/backtrack/internal/graph"
	"github.com/agentsh/backtrack/internal/pattern"
	"github.com/agentsh/backtrack/internal/trace"
	"github.com/agentsh/backtrack/pkg/observability"
	"github.com/agentsh/backtrack/pkg/types"
)

type Options struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	RunID   string
}

// Pipeline is built once per run from configuration.
type Pipeline struct {
	cfg         *config.Config
	logger      *slog.Logger
	metrics     *observability.Metrics
	runID       string
	format      export.Format
	parser      *trace.Parser
	classifier  graph.Classifier
	backtracker *backtrack.Backtracker
}

// Loaded is a parsed trace and the graph built from it.
type Loaded struct {
	Path   string
	Events []types.CausalEvent
	Stats  trace.Stats
	Graph  *graph.Graph
	Origin types.Time
}

func New(opts Options) (*Pipeline, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger = logger.With("run_id", runID)

	reg := pattern.NewRegistry()
	for name, members := range cfg.Trace.Classes {
		reg.Set(name, members)
	}
	exclude, err := pattern.NewSet(cfg.Trace.Exclude, reg)
	if err != nil {
		return nil, fmt.Errorf("trace.exclude: %w", err)
	}
	unmatched, err := trace.ParseUnmatchedPolicy(cfg.Trace.UnmatchedExit)
	if err != nil {
		return nil, err
	}
	parser, err := trace.NewParser(trace.Options{Exclude: exclude, Unmatched: unmatched, Logger: logger})
	if err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:         cfg,
		logger:      logger,
		metrics:     opts.Metrics,
		runID:       runID,
		format:      format,
		parser:      parser,
		classifier:  graph.NewClassifier(cfg.Graph.OutwardOperations),
		backtracker: backtrack.New(backtrack.Options{Logger: logger, Workers: cfg.Backtrack.Workers}),
	}, nil
}

func (p *Pipeline) RunID() string { return p.runID }

func (p *Pipeline) Format() export.Format { return p.format }

// Load parses path and builds the full graph. On a parse error the returned
// Loaded still carries whatever the parser produced.
func (p *Pipeline) Load(ctx context.Context, path string) (*Loaded, error) {
	pctx, span := observability.StageSpan(ctx, observability.StageParse,
		observability.AttrRunID.String(p.runID),
		observability.AttrTracePath.String(path))
	start := time.Now()
	events, stats, err := p.parser.ParseFile(pctx, path)
	p.metrics.ObserveStage(observability.StageParse, time.Since(start))
	p.metrics.RecordParse(stats.Lines, stats.Events, stats.Excluded, stats.Unmatched, stats.Skipped)
	observability.RecordError(span, err)
	span.End()

	out := &Loaded{Path: path, Events: events, Stats: stats, Graph: graph.New(), Origin: types.Zero}
	if err != nil {
		return out, err
	}
	p.logger.Info("trace parsed", "path", path, "lines", stats.Lines, "events", stats.Events,
		"excluded", stats.Excluded, "unmatched", stats.Unmatched)

	_, span = observability.StageSpan(ctx, observability.StageBuild, observability.AttrRunID.String(p.runID))
	start = time.Now()
	out.Graph = graph.Build(events, p.classifier)
	p.metrics.ObserveStage(observability.StageBuild, time.Since(start))
	observability.RecordGraphSize(span, out.Graph.VertexCount(), out.Graph.EdgeCount())
	span.End()

	if d := out.Graph.DuplicateIndexes(); d > 0 {
		p.logger.Warn("duplicate event indexes, newest edge wins", "count", d)
	}
	if p.cfg.Output.Origin != config.OriginZero {
		out.Origin = export.Origin(events)
	}
	return out, nil
}

// Backtrack runs one query from the event with the given index.
func (p *Pipeline) Backtrack(ctx context.Context, g *graph.Graph, index int64) (*backtrack.Result, error) {
	_, span := observability.StageSpan(ctx, observability.StageBacktrack,
		observability.AttrRunID.String(p.runID),
		observability.AttrPOI.Int64(index))
	defer span.End()

	start := time.Now()
	res, err := p.backtracker.FromIndex(g, index)
	p.metrics.ObserveStage(observability.StageBacktrack, time.Since(start))
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	p.metrics.AddQueries(1)
	observability.RecordGraphSize(span, res.Graph.VertexCount(), res.Graph.EdgeCount())
	p.logger.Info("backtrack complete", "poi", index,
		"vertices", res.Graph.VertexCount(), "edges", res.Graph.EdgeCount())
	return res, nil
}

// Biggest scans every event index for the largest backtrack result.
func (p *Pipeline) Biggest(ctx context.Context, g *graph.Graph) (backtrack.Biggest, error) {
	ctx, span := observability.StageSpan(ctx, observability.StageBiggest, observability.AttrRunID.String(p.runID))
	defer span.End()

	start := time.Now()
	best, err := p.backtracker.Biggest(ctx, g)
	p.metrics.ObserveStage(observability.StageBiggest, time.Since(start))
	if err != nil {
		observability.RecordError(span, err)
		return best, fmt.Errorf("biggest scan: %w", err)
	}
	p.metrics.AddQueries(best.Queries)
	if best.Found {
		span.SetAttributes(observability.AttrPOI.Int64(best.Index))
		observability.RecordGraphSize(span, best.Vertices, best.Edges)
	}
	p.logger.Info("biggest scan complete", "queries", best.Queries, "found", best.Found,
		"poi", best.Index, "vertices", best.Vertices)
	return best, nil
}

// ExportFull writes the full graph artifact.
func (p *Pipeline) ExportFull(ctx context.Context, l *Loaded) (string, error) {
	return p.export(ctx, p.cfg.Output.FullGraph, l.Graph, l.Origin)
}

// ExportBacktrack writes the backtracked subgraph artifact.
func (p *Pipeline) ExportBacktrack(ctx context.Context, l *Loaded, res *backtrack.Result) (string, error) {
	return p.export(ctx, p.cfg.Output.BacktrackGraph, res.Graph, l.Origin)
}

func (p *Pipeline) export(ctx context.Context, name string, g *graph.Graph, origin types.Time) (string, error) {
	_, span := observability.StageSpan(ctx, observability.StageExport,
		observability.AttrRunID.String(p.runID),
		observability.AttrFormat.String(string(p.format)))
	defer span.End()

	start := time.Now()
	path, err := export.WriteFile(export.Artifact{Dir: p.cfg.Output.Dir, Name: name, RunID: p.runID}, p.format, g, origin)
	p.metrics.ObserveStage(observability.StageExport, time.Since(start))
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}
	p.metrics.SetGraphSize(name, g.VertexCount(), g.EdgeCount())
	span.SetAttributes(observability.AttrArtifact.String(path))
	observability.RecordGraphSize(span, g.VertexCount(), g.EdgeCount())
	p.logger.Info("graph exported", "path", path, "vertices", g.VertexCount(), "edges", g.EdgeCount())
	return path, nil
}
