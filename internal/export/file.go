package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentsh/backtrack/internal/graph"
	"github.com/agentsh/backtrack/pkg/types"
)

// Format selects a Sink for file artifacts.
type Format string

const (
	FormatDOT      Format = "dot"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatSQLite   Format = "sqlite"
)

// ParseFormat validates a format name. Empty selects FormatDOT.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatDOT, nil
	case FormatDOT, FormatJSON, FormatMarkdown, FormatSQLite:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("invalid output format %q (want dot, json, markdown or sqlite)", s)
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatMarkdown:
		return ".md"
	case FormatSQLite:
		return ".db"
	default:
		return ".dot"
	}
}

// Artifact names one exported graph.
type Artifact struct {
	Dir   string
	Name  string // base name without extension
	RunID string
}

// Path returns the file the artifact is written to.
func (a Artifact) Path(f Format) string {
	return filepath.Join(a.Dir, a.Name+f.Ext())
}

// WriteFile exports g to the artifact's file, replacing text artifacts and
// appending a run to SQLite ones. It returns the path written.
func WriteFile(a Artifact, f Format, g *graph.Graph, origin types.Time) (string, error) {
	path := a.Path(f)

	if f == FormatSQLite {
		sink := &SQLiteSink{Path: path, RunID: a.RunID, Graph: a.Name}
		if err := Export(g, origin, sink); err != nil {
			return "", fmt.Errorf("export %s: %w", path, err)
		}
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir output dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(file)

	var sink Sink
	switch f {
	case FormatJSON:
		sink = &JSONSink{W: w, Indent: true}
	case FormatMarkdown:
		sink = &MarkdownSink{W: w, Title: a.Name}
	default:
		sink = &DOTSink{W: w}
	}

	if err := Export(g, origin, sink); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("export %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("flush %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
