package export

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownSink writes a provenance report with a vertex list and an edge
// table.
type MarkdownSink struct {
	W     io.Writer
	Title string
}

func (s *MarkdownSink) Accept(vertices []string, edges []EdgeLabel) error {
	var sb strings.Builder

	title := s.Title
	if title == "" {
		title = "causal graph"
	}
	sb.WriteString(fmt.Sprintf("# Provenance Report: %s\n\n", title))

	sb.WriteString("## Overview\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Vertices | %d |\n", len(vertices)))
	sb.WriteString(fmt.Sprintf("| Edges | %d |\n", len(edges)))
	sb.WriteString("\n")

	if len(vertices) > 0 {
		sb.WriteString("## Vertices\n")
		for _, v := range vertices {
			sb.WriteString(fmt.Sprintf("- `%s`\n", strings.ReplaceAll(v, "`", "'")))
		}
		sb.WriteString("\n")
	}

	if len(edges) > 0 {
		sb.WriteString("## Edges\n")
		sb.WriteString("| Index | Source | Target | Window |\n")
		sb.WriteString("|-------|--------|--------|--------|\n")
		for _, e := range edges {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
				e.Index, escapeCell(e.Source), escapeCell(e.Target), escapeCell(e.Label)))
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(s.W, sb.String())
	return err
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
