// Package export renders causal graphs for people and tools. The core only
// produces vertex names and edge labels; a Sink decides the format.
package export

import (
	"fmt"

	"github.com/agentsh/backtrack/internal/graph"
	"github.com/agentsh/backtrack/pkg/types"
)

// EdgeLabel is the rendered form of one edge.
type EdgeLabel struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Index  int64  `json:"index"`
	// Label is "[index, start..end]" with offsets in seconds since the origin.
	Label string `json:"label"`
}

// Sink receives a graph as plain labels.
type Sink interface {
	Accept(vertices []string, edges []EdgeLabel) error
}

// Label renders an event as "[index, start..end]".
func Label(ev types.CausalEvent, origin types.Time) string {
	return fmt.Sprintf("[%d, %s..%s]", ev.Index, types.FormatOffset(ev.Start, origin), types.FormatOffset(ev.End, origin))
}

// Labels flattens g in insertion order.
func Labels(g *graph.Graph, origin types.Time) ([]string, []EdgeLabel) {
	vertices := append([]string(nil), g.Vertices()...)
	edges := make([]EdgeLabel, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		edges = append(edges, EdgeLabel{
			Source: e.Source,
			Target: e.Target,
			Index:  e.Event.Index,
			Label:  Label(e.Event, origin),
		})
	}
	return vertices, edges
}

// Export hands g to sink.
func Export(g *graph.Graph, origin types.Time, sink Sink) error {
	vertices, edges := Labels(g, origin)
	return sink.Accept(vertices, edges)
}

// Origin picks the instant offsets are measured from: the start of the first
// event, or Zero when there are no events.
func Origin(events []types.CausalEvent) types.Time {
	if len(events) == 0 {
		return types.Zero
	}
	return events[0].Start
}
