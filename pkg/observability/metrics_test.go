package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Write(t *testing.T) {
	m := NewMetrics()
	m.RecordParse(10, 4, 2, 1, 3)
	m.RecordParse(5, 1, 0, 0, 0)
	m.AddQueries(7)
	m.SetGraphSize("graph-output", 6, 5)
	m.SetGraphSize("backtrack-graph-output", 4, 3)
	m.ObserveStage(StageParse, 500*time.Millisecond)
	m.ObserveStage(StageParse, 250*time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf))
	out := buf.String()

	assert.Contains(t, out, "# TYPE backtrack_trace_lines_total counter\nbacktrack_trace_lines_total 15\n")
	assert.Contains(t, out, "backtrack_events_total 5\n")
	assert.Contains(t, out, "backtrack_events_excluded_total 2\n")
	assert.Contains(t, out, "backtrack_unmatched_exits_total 1\n")
	assert.Contains(t, out, "backtrack_lines_skipped_total 3\n")
	assert.Contains(t, out, "backtrack_queries_total 7\n")
	assert.Contains(t, out, `backtrack_graph_vertices{graph="graph-output"} 6`)
	assert.Contains(t, out, `backtrack_graph_edges{graph="backtrack-graph-output"} 3`)
	assert.Contains(t, out, `backtrack_stage_duration_seconds_sum{stage="parse"} 0.750000`)
	assert.Contains(t, out, `backtrack_stage_duration_seconds_count{stage="parse"} 2`)
	assert.Contains(t, out, "backtrack_run_duration_seconds ")
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordParse(1, 1, 1, 1, 1)
	m.AddQueries(1)
	m.SetGraphSize("g", 1, 1)
	m.ObserveStage(StageExport, time.Second)
}

func TestMetrics_WriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "backtrack.prom")
	m := NewMetrics()
	m.AddQueries(1)
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "backtrack_queries_total 1")
}

func TestEscapeLabelValue(t *testing.T) {
	assert.Equal(t, `a\"b\\c\n`, escapeLabelValue("a\"b\\c\n"))
}
