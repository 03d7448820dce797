package export

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentsh/backtrack/internal/graph"
	"github.com/agentsh/backtrack/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(index int64, proc, op, obj string, start, end types.Time) types.CausalEvent {
	return types.CausalEvent{Index: index, Process: proc, Operation: op, Object: obj, Start: start, End: end}
}

func sampleGraph() (*graph.Graph, types.Time) {
	origin := types.Time{Seconds: 10, Nanoseconds: 0}
	events := []types.CausalEvent{
		ev(7, "curl", "write", "<f>/tmp/x", origin, types.Time{Seconds: 11, Nanoseconds: 500_000_000}),
		ev(9, "sh", "read", "<f>/tmp/x", types.Time{Seconds: 12, Nanoseconds: 0}, types.Time{Seconds: 12, Nanoseconds: 999_999_999}),
	}
	return graph.Build(events, graph.NewClassifier(nil)), Origin(events)
}

func TestLabel(t *testing.T) {
	origin := types.Time{Seconds: 100, Nanoseconds: 0}
	e := types.CausalEvent{
		Index: 42,
		Start: types.Time{Seconds: 101, Nanoseconds: 250_000_000},
		End:   types.Time{Seconds: 102, Nanoseconds: 999_000_000},
	}
	assert.Equal(t, "[42, 1.25..2.99]", Label(e, origin))
	assert.Equal(t, "[42, 0.00..0.00]", Label(types.CausalEvent{Index: 42, Start: origin, End: origin}, origin))
}

func TestOrigin(t *testing.T) {
	assert.Equal(t, types.Zero, Origin(nil))
	assert.Equal(t, types.At(5), Origin([]types.CausalEvent{{Start: types.At(5)}, {Start: types.At(1)}}))
}

func TestLabels_InsertionOrder(t *testing.T) {
	g, origin := sampleGraph()
	vertices, edges := Labels(g, origin)

	assert.Equal(t, []string{"curl", "<f>/tmp/x", "sh"}, vertices)
	require.Len(t, edges, 2)
	assert.Equal(t, EdgeLabel{Source: "curl", Target: "<f>/tmp/x", Index: 7, Label: "[7, 0.00..1.50]"}, edges[0])
	assert.Equal(t, EdgeLabel{Source: "<f>/tmp/x", Target: "sh", Index: 9, Label: "[9, 2.00..2.99]"}, edges[1])
}

func TestDOTSink(t *testing.T) {
	g, origin := sampleGraph()
	var buf bytes.Buffer
	require.NoError(t, Export(g, origin, &DOTSink{W: &buf}))

	want := "digraph G {\n" +
		"  1 [ label=\"curl\" ];\n" +
		"  2 [ label=\"<f>/tmp/x\" ];\n" +
		"  3 [ label=\"sh\" ];\n" +
		"  1 -> 2 [ label=\"[7, 0.00..1.50]\" ];\n" +
		"  2 -> 3 [ label=\"[9, 2.00..2.99]\" ];\n" +
		"}\n"
	assert.Equal(t, want, buf.String())
}

func TestDOTSink_Escaping(t *testing.T) {
	var buf bytes.Buffer
	sink := &DOTSink{W: &buf, Name: "prov"}
	require.NoError(t, sink.Accept([]string{`a"b\c`}, nil))
	assert.Equal(t, "digraph prov {\n  1 [ label=\"a\\\"b\\\\c\" ];\n}\n", buf.String())
}

func TestDOTSink_UnknownEndpoint(t *testing.T) {
	var buf bytes.Buffer
	err := (&DOTSink{W: &buf}).Accept([]string{"a"}, []EdgeLabel{{Source: "a", Target: "b", Index: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `target "b"`)
}

func TestDOTSink_EmptyGraph(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(graph.New(), types.Zero, &DOTSink{W: &buf}))
	assert.Equal(t, "digraph G {\n}\n", buf.String())
}

func TestJSONSink(t *testing.T) {
	g, origin := sampleGraph()
	var buf bytes.Buffer
	require.NoError(t, Export(g, origin, &JSONSink{W: &buf}))

	var got jsonGraph
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []string{"curl", "<f>/tmp/x", "sh"}, got.Vertices)
	require.Len(t, got.Edges, 2)
	assert.Equal(t, int64(9), got.Edges[1].Index)
}

func TestJSONSink_EmptyUsesArrays(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONSink{W: &buf}).Accept(nil, nil))
	assert.JSONEq(t, `{"vertices":[],"edges":[]}`, buf.String())
}

func TestMarkdownSink(t *testing.T) {
	g, origin := sampleGraph()
	var buf bytes.Buffer
	require.NoError(t, Export(g, origin, &MarkdownSink{W: &buf, Title: "run-1"}))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# Provenance Report: run-1\n"))
	assert.Contains(t, out, "| Vertices | 3 |")
	assert.Contains(t, out, "| Edges | 2 |")
	assert.Contains(t, out, "- `<f>/tmp/x`")
	assert.Contains(t, out, "| 7 | curl | <f>/tmp/x | [7, 0.00..1.50] |")
}

func TestMarkdownSink_EscapesPipes(t *testing.T) {
	var buf bytes.Buffer
	sink := &MarkdownSink{W: &buf}
	require.NoError(t, sink.Accept([]string{"a|b", "c"}, []EdgeLabel{{Source: "a|b", Target: "c", Index: 1, Label: "[1, 0.00..0.00]"}}))
	assert.Contains(t, buf.String(), `| 1 | a\|b | c |`)
	assert.Contains(t, buf.String(), "# Provenance Report: causal graph")
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatDOT, false},
		{"dot", FormatDOT, false},
		{" JSON ", FormatJSON, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"sqlite", FormatSQLite, false},
		{"svg", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatExt(t *testing.T) {
	assert.Equal(t, ".dot", FormatDOT.Ext())
	assert.Equal(t, ".json", FormatJSON.Ext())
	assert.Equal(t, ".md", FormatMarkdown.Ext())
	assert.Equal(t, ".db", FormatSQLite.Ext())
}

func TestWriteFile_Text(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	g, origin := sampleGraph()

	path, err := WriteFile(Artifact{Dir: dir, Name: "graph-output"}, FormatDOT, g, origin)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "graph-output.dot"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "digraph G {\n"))

	// a second write replaces the file
	path, err = WriteFile(Artifact{Dir: dir, Name: "graph-output"}, FormatDOT, graph.New(), origin)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "digraph G {\n}\n", string(data))
}

func TestWriteFile_JSONAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	g, origin := sampleGraph()

	path, err := WriteFile(Artifact{Dir: dir, Name: "g"}, FormatJSON, g, origin)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	path, err = WriteFile(Artifact{Dir: dir, Name: "g"}, FormatMarkdown, g, origin)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "g.md"), path)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Provenance Report: g")
}

func TestWriteFile_SQLite(t *testing.T) {
	dir := t.TempDir()
	g, origin := sampleGraph()

	path, err := WriteFile(Artifact{Dir: dir, Name: "graph-output", RunID: "run-a"}, FormatSQLite, g, origin)
	require.NoError(t, err)
	_, err = WriteFile(Artifact{Dir: dir, Name: "graph-output", RunID: "run-b"}, FormatSQLite, g, origin)
	require.NoError(t, err)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var runs int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&runs))
	assert.Equal(t, 2, runs)

	var vcount, ecount int
	require.NoError(t, db.QueryRow(`SELECT vertex_count, edge_count FROM runs WHERE run_id = ?`, "run-a").Scan(&vcount, &ecount))
	assert.Equal(t, 3, vcount)
	assert.Equal(t, 2, ecount)

	var label string
	var src, dst string
	require.NoError(t, db.QueryRow(
		`SELECT source, target, label FROM edges WHERE run_id = ? AND event_index = ?`, "run-b", 9).Scan(&src, &dst, &label))
	assert.Equal(t, "<f>/tmp/x", src)
	assert.Equal(t, "sh", dst)
	assert.Equal(t, "[9, 2.00..2.99]", label)
}

func TestSQLiteSink_SameRunTwiceFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.db")
	sink := &SQLiteSink{Path: path, RunID: "r", Graph: "g"}
	require.NoError(t, sink.Accept([]string{"a"}, nil))
	require.Error(t, sink.Accept([]string{"a"}, nil))
}

func TestSQLiteSink_Validation(t *testing.T) {
	assert.Error(t, (&SQLiteSink{}).Accept(nil, nil))
	assert.Error(t, (&SQLiteSink{Path: filepath.Join(t.TempDir(), "x.db")}).Accept(nil, nil))
}

type failingSink struct{}

func (failingSink) Accept([]string, []EdgeLabel) error { return errors.New("boom") }

func TestExport_PropagatesSinkError(t *testing.T) {
	g, origin := sampleGraph()
	assert.EqualError(t, Export(g, origin, failingSink{}), "boom")
}
