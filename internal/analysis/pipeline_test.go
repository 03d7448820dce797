package analysis

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentsh/backtrack/internal/backtrack"
	"github.com/agentsh/backtrack/internal/config"
	"github.com/agentsh/backtrack/internal/trace"
	"github.com/agentsh/backtrack/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func init() {
	otel.SetTracerProvider(noop.NewTracerProvider())
}

// dropper: evil host -> curl -> payload -> sh -> out, plus a later vim write
// to payload and an excluded pipe write.
const dropperTrace = `1 1.000000000 curl > read 4(<4t>10.0.0.9:80)
2 2.000000000 curl < read 4(<4t>10.0.0.9:80) res=512
3 3.000000000 curl > write 5(<f>/tmp/payload)
4 4.000000000 curl < write 5(<f>/tmp/payload) res=512
5 5.000000000 sh > read 5(<f>/tmp/payload)
6 6.000000000 sh < read 5(<f>/tmp/payload) res=512
7 7.000000000 sh > write 6(<f>/tmp/out)
8 8.000000000 sh < write 6(<f>/tmp/out) res=3
9 20.000000000 vim > write 5(<f>/tmp/payload)
10 21.000000000 vim < write 5(<f>/tmp/payload) res=9
11 9.000000000 sh > write 7(<pipe>)
12 9.500000000 sh < write 7(<pipe>) res=1
`

func writeTrace(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newPipeline(t *testing.T, mutate func(*config.Config)) (*Pipeline, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	p, err := New(Options{Config: cfg, RunID: "run-test", Metrics: observability.NewMetrics()})
	require.NoError(t, err)
	return p, cfg
}

func TestLoad_BuildsGraph(t *testing.T) {
	p, _ := newPipeline(t, nil)
	l, err := p.Load(context.Background(), writeTrace(t, dropperTrace))
	require.NoError(t, err)

	assert.Len(t, l.Events, 5)
	assert.Equal(t, 1, l.Stats.Excluded)
	assert.Equal(t, 6, l.Graph.VertexCount())
	assert.Equal(t, 5, l.Graph.EdgeCount())
	assert.Equal(t, int64(1), l.Origin.Seconds)
}

func TestLoad_OriginZero(t *testing.T) {
	p, _ := newPipeline(t, func(c *config.Config) { c.Output.Origin = config.OriginZero })
	l, err := p.Load(context.Background(), writeTrace(t, dropperTrace))
	require.NoError(t, err)
	assert.Equal(t, int64(0), l.Origin.Seconds)
}

func TestLoad_MissingFile(t *testing.T) {
	p, _ := newPipeline(t, nil)
	l, err := p.Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, trace.ErrSourceNotFound))
	require.NotNil(t, l)
	assert.Empty(t, l.Events)
	assert.Equal(t, 0, l.Graph.EdgeCount())
}

func TestLoad_ConfiguredClassesAndOutward(t *testing.T) {
	p, _ := newPipeline(t, func(c *config.Config) {
		c.Trace.Exclude = []string{"@scratch"}
		c.Trace.Classes = map[string][]string{"scratch": {"*/tmp/out)"}}
		c.Graph.OutwardOperations = []string{}
	})
	l, err := p.Load(context.Background(), writeTrace(t, dropperTrace))
	require.NoError(t, err)

	// pipe kept, /tmp/out dropped
	assert.Len(t, l.Events, 5)
	_, ok := l.Graph.EdgeByIndex(8)
	assert.False(t, ok)
	e, ok := l.Graph.EdgeByIndex(12)
	require.True(t, ok)
	// every operation inward
	assert.Equal(t, "7(<pipe>)", e.Source)
	assert.Equal(t, "sh", e.Target)
}

func TestBacktrack_FollowsDropperChain(t *testing.T) {
	p, _ := newPipeline(t, nil)
	ctx := context.Background()
	l, err := p.Load(ctx, writeTrace(t, dropperTrace))
	require.NoError(t, err)

	res, err := p.Backtrack(ctx, l.Graph, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"sh", "6(<f>/tmp/out)", "5(<f>/tmp/payload)", "curl", "4(<4t>10.0.0.9:80)"}, res.Graph.Vertices())
	assert.Equal(t, []int64{8, 6, 4, 2}, res.Graph.Indexes())
	assert.Equal(t, map[int64]int64{6: 8, 4: 6, 2: 4}, res.DiscoveredVia)
}

func TestBacktrack_UnknownIndex(t *testing.T) {
	p, _ := newPipeline(t, nil)
	ctx := context.Background()
	l, err := p.Load(ctx, writeTrace(t, dropperTrace))
	require.NoError(t, err)

	_, err = p.Backtrack(ctx, l.Graph, 999)
	var unknown *backtrack.UnknownPointOfInterestError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, int64(999), unknown.Index)
}

func TestBiggest(t *testing.T) {
	p, _ := newPipeline(t, func(c *config.Config) { c.Backtrack.Workers = 2 })
	ctx := context.Background()
	l, err := p.Load(ctx, writeTrace(t, dropperTrace))
	require.NoError(t, err)

	best, err := p.Biggest(ctx, l.Graph)
	require.NoError(t, err)
	assert.Equal(t, backtrack.Biggest{Found: true, Index: 8, Vertices: 5, Edges: 4, Queries: 5}, best)
}

func TestExport_WritesBothArtifacts(t *testing.T) {
	p, cfg := newPipeline(t, nil)
	ctx := context.Background()
	l, err := p.Load(ctx, writeTrace(t, dropperTrace))
	require.NoError(t, err)
	res, err := p.Backtrack(ctx, l.Graph, 8)
	require.NoError(t, err)

	full, err := p.ExportFull(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "graph-output.dot"), full)

	sub, err := p.ExportBacktrack(ctx, l, res)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "backtrack-graph-output.dot"), sub)

	data, err := os.ReadFile(sub)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "digraph G {\n  1 [ label=\"sh\" ];\n"))
	assert.Contains(t, string(data), `[ label="[8, 6.00..7.00]" ]`)
}

func TestExport_SQLiteUsesRunID(t *testing.T) {
	p, cfg := newPipeline(t, func(c *config.Config) { c.Output.Format = "sqlite" })
	ctx := context.Background()
	l, err := p.Load(ctx, writeTrace(t, dropperTrace))
	require.NoError(t, err)

	path, err := p.ExportFull(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "graph-output.db"), path)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var edges int
	require.NoError(t, db.QueryRow(`SELECT edge_count FROM runs WHERE run_id = ? AND graph = ?`, "run-test", "graph-output").Scan(&edges))
	assert.Equal(t, 5, edges)
}

func TestNew_GeneratesRunID(t *testing.T) {
	p, err := New(Options{})
	require.NoError(t, err)
	assert.Len(t, p.RunID(), 36)
	assert.Equal(t, "dot", string(p.Format()))
}

func TestNew_BadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Trace.Exclude = []string{"@nope"}
	_, err := New(Options{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trace.exclude")
}
