// Package backtrack derives the minimal causal history of an event.
//
// Starting from a point-of-interest edge, the traversal walks edges backwards
// breadth-first. When an edge cur is taken from the queue, every edge inc that
// enters cur's source S is admitted if
//
//	inc.Start < cur.End   and   inc.Start < maxEnd(S)
//
// where maxEnd(S) is the latest end time of any edge touching S in the full
// graph, recomputed for every expansion. Both comparisons are strict. cur
// itself touches S, so maxEnd(S) is never before cur.End. Every edge is
// admitted at most once, so cycles terminate.
package backtrack

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/agentsh/backtrack/internal/graph"
	"github.com/agentsh/backtrack/pkg/types"
)

var ErrUnknownPointOfInterest = errors.New("unknown point of interest")

// UnknownPointOfInterestError is returned when an event index is not in the
// graph. It only affects the query that asked for it.
type UnknownPointOfInterestError struct {
	Index int64
}

func (e *UnknownPointOfInterestError) Error() string {
	return fmt.Sprintf("point of interest %d not found in graph", e.Index)
}

func (e *UnknownPointOfInterestError) Is(target error) bool {
	return target == ErrUnknownPointOfInterest
}

// Options configures a Backtracker.
type Options struct {
	Logger *slog.Logger
	// Workers bounds concurrent queries in Biggest. Zero or less uses GOMAXPROCS.
	Workers int
}

// Backtracker runs queries against a read-only graph. It holds no per-query
// state and is safe for concurrent use.
type Backtracker struct {
	logger  *slog.Logger
	workers int
}

func New(opts Options) *Backtracker {
	b := &Backtracker{logger: opts.Logger, workers: opts.Workers}
	if b.logger == nil {
		b.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if b.workers <= 0 {
		b.workers = runtime.GOMAXPROCS(0)
	}
	return b
}

// Result is the subgraph produced by one query.
type Result struct {
	// Graph is freshly allocated; it shares only event values with the input.
	Graph *graph.Graph
	// PointOfInterest is the event index the query started from.
	PointOfInterest int64
	// DiscoveredVia maps each admitted event index to the index of the edge
	// that was being expanded when it was admitted.
	DiscoveredVia map[int64]int64
}

// FromIndex resolves index and runs the query.
func (b *Backtracker) FromIndex(g *graph.Graph, index int64) (*Result, error) {
	poi, ok := g.EdgeByIndex(index)
	if !ok {
		return nil, &UnknownPointOfInterestError{Index: index}
	}
	return b.Run(g, poi), nil
}

// Run backtracks from poi, which must be an edge of g. g is not modified.
func (b *Backtracker) Run(g *graph.Graph, poi graph.Edge) *Result {
	res := &Result{
		Graph:           graph.New(),
		PointOfInterest: poi.Event.Index,
		DiscoveredVia:   make(map[int64]int64),
	}
	res.Graph.AddEdge(poi.Source, poi.Target, poi.Event)

	edges := g.Edges()
	inOutput := map[graph.EdgeID]bool{poi.ID: true}
	visited := make(map[graph.EdgeID]bool)
	queue := []graph.EdgeID{poi.ID}

	for head := 0; head < len(queue); head++ {
		cur := edges[queue[head]]
		s := cur.Source
		incident := g.EdgesOf(s)

		maxEnd := types.Zero
		for _, id := range incident {
			maxEnd = types.Max(edges[id].Event.End, maxEnd)
		}

		for _, id := range incident {
			if id == cur.ID || visited[id] {
				continue
			}
			inc := edges[id]
			if inc.Target != s {
				continue
			}
			if !inc.Event.Start.Less(cur.Event.End) || !inc.Event.Start.Less(maxEnd) {
				continue
			}

			if !inOutput[id] {
				res.Graph.AddEdge(inc.Source, inc.Target, inc.Event)
				res.DiscoveredVia[inc.Event.Index] = cur.Event.Index
				inOutput[id] = true
			}
			visited[id] = true
			queue = append(queue, id)
		}
	}

	b.logger.Debug("backtrack: query complete",
		"poi", poi.Event.Index,
		"vertices", res.Graph.VertexCount(),
		"edges", res.Graph.EdgeCount(),
		"expanded", len(queue))
	return res
}
