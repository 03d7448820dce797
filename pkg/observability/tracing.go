// Package observability provides structured logging, OpenTelemetry stage
// spans and a Prometheus text-format run summary for backtrack.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// TracerName is the OpenTelemetry tracer name.
	TracerName = "backtrack"
)

// Stage names one step of an analysis run.
type Stage string

const (
	StageRun       Stage = "run"
	StageParse     Stage = "parse"
	StageBuild     Stage = "build"
	StageBacktrack Stage = "backtrack"
	StageBiggest   Stage = "biggest"
	StageExport    Stage = "export"
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// Attribute keys shared by stage spans.
const (
	AttrRunID     = attribute.Key("backtrack.run_id")
	AttrCommand   = attribute.Key("backtrack.command")
	AttrTracePath = attribute.Key("backtrack.trace_path")
	AttrPOI       = attribute.Key("backtrack.poi")
	AttrVertices  = attribute.Key("backtrack.vertices")
	AttrEdges     = attribute.Key("backtrack.edges")
	AttrArtifact  = attribute.Key("backtrack.artifact")
	AttrFormat    = attribute.Key("backtrack.format")
)

// StageSpan starts a span for one stage of a run.
func StageSpan(ctx context.Context, stage Stage, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, stage.String(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// RecordGraphSize records the size of a graph on a span.
func RecordGraphSize(span trace.Span, vertices, edges int) {
	span.SetAttributes(AttrVertices.Int(vertices), AttrEdges.Int(edges))
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// ExtractTraceID extracts the trace ID from a context.
func ExtractTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	sc := span.SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// TracerOptions configures InitTracer.
type TracerOptions struct {
	Enabled     bool
	Writer      io.Writer // span sink; stderr when nil
	ServiceName string
	RunID       string
}

// InitTracer installs the global tracer provider. When tracing is disabled a
// noop provider is installed. The returned function flushes and stops the
// provider.
func InitTracer(opts TracerOptions, logger *slog.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = Discard()
	}
	if !opts.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}

	service := opts.ServiceName
	if service == "" {
		service = TracerName
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", service)}
	if opts.RunID != "" {
		attrs = append(attrs, AttrRunID.String(opts.RunID))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Debug("OpenTelemetry initialized", slog.String("service", service), slog.String("run_id", opts.RunID))
	return tp.Shutdown, nil
}
