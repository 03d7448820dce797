package observability

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics accumulates counters for one run and renders them in the
// Prometheus text exposition format, suitable for a node_exporter textfile.
type Metrics struct {
	startedAt time.Time

	linesRead      atomic.Uint64
	eventsParsed   atomic.Uint64
	eventsExcluded atomic.Uint64
	unmatchedExits atomic.Uint64
	linesSkipped   atomic.Uint64
	queries        atomic.Uint64

	graphMu    sync.Mutex
	graphSizes map[string][2]int // name -> vertices, edges

	stageMu        sync.Mutex
	stageDurations map[Stage][]time.Duration
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{
		startedAt:      time.Now(),
		graphSizes:     make(map[string][2]int),
		stageDurations: make(map[Stage][]time.Duration),
	}
}

// RecordParse adds the outcome of one parse.
func (m *Metrics) RecordParse(lines, events, excluded, unmatched, skipped int) {
	if m == nil {
		return
	}
	m.linesRead.Add(uint64(lines))
	m.eventsParsed.Add(uint64(events))
	m.eventsExcluded.Add(uint64(excluded))
	m.unmatchedExits.Add(uint64(unmatched))
	m.linesSkipped.Add(uint64(skipped))
}

// AddQueries counts backtrack queries.
func (m *Metrics) AddQueries(n int) {
	if m == nil {
		return
	}
	m.queries.Add(uint64(n))
}

// SetGraphSize records the size of a named graph.
func (m *Metrics) SetGraphSize(name string, vertices, edges int) {
	if m == nil {
		return
	}
	m.graphMu.Lock()
	m.graphSizes[name] = [2]int{vertices, edges}
	m.graphMu.Unlock()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.stageMu.Lock()
	m.stageDurations[stage] = append(m.stageDurations[stage], d)
	m.stageMu.Unlock()
}

// Write renders all metrics to w.
func (m *Metrics) Write(w io.Writer) error {
	var sb strings.Builder

	writeCounter(&sb, "backtrack_trace_lines_total", "Trace lines read.", m.linesRead.Load())
	writeCounter(&sb, "backtrack_events_total", "Causal events produced by the parser.", m.eventsParsed.Load())
	writeCounter(&sb, "backtrack_events_excluded_total", "Completed calls dropped by object exclusion.", m.eventsExcluded.Load())
	writeCounter(&sb, "backtrack_unmatched_exits_total", "Exit records without a pending entry.", m.unmatchedExits.Load())
	writeCounter(&sb, "backtrack_lines_skipped_total", "Blank or non-event trace lines.", m.linesSkipped.Load())
	writeCounter(&sb, "backtrack_queries_total", "Backtrack queries executed.", m.queries.Load())

	m.writeGraphSizes(&sb)
	m.writeStageDurations(&sb)

	sb.WriteString("# HELP backtrack_run_duration_seconds Wall time since the run started.\n")
	sb.WriteString("# TYPE backtrack_run_duration_seconds gauge\n")
	fmt.Fprintf(&sb, "backtrack_run_duration_seconds %.6f\n", time.Since(m.startedAt).Seconds())

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteFile renders metrics to path, creating parent directories.
func (m *Metrics) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir metrics dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	if err := m.Write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write metrics: %w", err)
	}
	return f.Close()
}

func writeCounter(sb *strings.Builder, name, help string, v uint64) {
	fmt.Fprintf(sb, "# HELP %s %s\n", name, help)
	fmt.Fprintf(sb, "# TYPE %s counter\n", name)
	fmt.Fprintf(sb, "%s %d\n\n", name, v)
}

func (m *Metrics) writeGraphSizes(sb *strings.Builder) {
	m.graphMu.Lock()
	names := make([]string, 0, len(m.graphSizes))
	for name := range m.graphSizes {
		names = append(names, name)
	}
	sizes := make(map[string][2]int, len(m.graphSizes))
	for k, v := range m.graphSizes {
		sizes[k] = v
	}
	m.graphMu.Unlock()

	if len(names) == 0 {
		return
	}
	sort.Strings(names)

	sb.WriteString("# HELP backtrack_graph_vertices Vertices in an exported graph.\n")
	sb.WriteString("# TYPE backtrack_graph_vertices gauge\n")
	for _, name := range names {
		fmt.Fprintf(sb, "backtrack_graph_vertices{graph=\"%s\"} %d\n", escapeLabelValue(name), sizes[name][0])
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP backtrack_graph_edges Edges in an exported graph.\n")
	sb.WriteString("# TYPE backtrack_graph_edges gauge\n")
	for _, name := range names {
		fmt.Fprintf(sb, "backtrack_graph_edges{graph=\"%s\"} %d\n", escapeLabelValue(name), sizes[name][1])
	}
	sb.WriteString("\n")
}

func (m *Metrics) writeStageDurations(sb *strings.Builder) {
	m.stageMu.Lock()
	stages := make([]string, 0, len(m.stageDurations))
	sums := make(map[string]float64, len(m.stageDurations))
	counts := make(map[string]int, len(m.stageDurations))
	for stage, ds := range m.stageDurations {
		stages = append(stages, string(stage))
		var total float64
		for _, d := range ds {
			total += d.Seconds()
		}
		sums[string(stage)] = total
		counts[string(stage)] = len(ds)
	}
	m.stageMu.Unlock()

	if len(stages) == 0 {
		return
	}
	sort.Strings(stages)

	sb.WriteString("# HELP backtrack_stage_duration_seconds Time spent per analysis stage.\n")
	sb.WriteString("# TYPE backtrack_stage_duration_seconds summary\n")
	for _, stage := range stages {
		label := escapeLabelValue(stage)
		fmt.Fprintf(sb, "backtrack_stage_duration_seconds_sum{stage=\"%s\"} %.6f\n", label, sums[stage])
		fmt.Fprintf(sb, "backtrack_stage_duration_seconds_count{stage=\"%s\"} %d\n", label, counts[stage])
	}
	sb.WriteString("\n")
}

func escapeLabelValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return v
}
