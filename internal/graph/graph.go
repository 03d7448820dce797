// Package graph holds the causal multigraph built from trace events.
//
// Vertices are opaque strings (process names and object descriptors). Edges
// live in an arena and are referred to by EdgeID; each vertex keeps the ids
// of every edge touching it, in insertion order, so traversals are
// deterministic. Parallel edges between the same pair are never merged.
package graph

import "github.com/agentsh/backtrack/pkg/types"

// EdgeID addresses an edge inside one Graph. Ids are not portable between
// graphs; use the event index for that.
type EdgeID int

// Edge is a directed, timed causal link carrying exactly one event.
type Edge struct {
	ID     EdgeID
	Source string
	Target string
	Event  types.CausalEvent
}

// Graph is a directed multigraph. The zero value is not usable; call New.
// A Graph is not safe for concurrent mutation, but concurrent readers of a
// graph that is no longer being built are fine.
type Graph struct {
	vertices []string
	vertex   map[string]struct{}
	edges    []Edge
	adj      map[string][]EdgeID
	byIndex  map[int64]EdgeID
	dupes    int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		vertex:  make(map[string]struct{}),
		adj:     make(map[string][]EdgeID),
		byIndex: make(map[int64]EdgeID),
	}
}

// AddVertex inserts v if absent and reports whether it was new.
func (g *Graph) AddVertex(v string) bool {
	if _, ok := g.vertex[v]; ok {
		return false
	}
	g.vertex[v] = struct{}{}
	g.vertices = append(g.vertices, v)
	return true
}

// AddEdge inserts both endpoints if needed and appends a new edge. The index
// map points at the newest edge for ev.Index.
func (g *Graph) AddEdge(source, target string, ev types.CausalEvent) EdgeID {
	g.AddVertex(source)
	g.AddVertex(target)

	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, Edge{ID: id, Source: source, Target: target, Event: ev})

	g.adj[source] = append(g.adj[source], id)
	if target != source {
		g.adj[target] = append(g.adj[target], id)
	}

	if _, ok := g.byIndex[ev.Index]; ok {
		g.dupes++
	}
	g.byIndex[ev.Index] = id
	return id
}

// HasVertex reports whether v is in the graph.
func (g *Graph) HasVertex(v string) bool {
	_, ok := g.vertex[v]
	return ok
}

// Vertices returns the vertices in insertion order. The slice is shared.
func (g *Graph) Vertices() []string { return g.vertices }

// Edges returns all edges in insertion order. The slice is shared.
func (g *Graph) Edges() []Edge { return g.edges }

// Edge returns the edge with the given id.
func (g *Graph) Edge(id EdgeID) (Edge, bool) {
	if id < 0 || int(id) >= len(g.edges) {
		return Edge{}, false
	}
	return g.edges[id], true
}

// EdgeByIndex resolves an event index.
func (g *Graph) EdgeByIndex(index int64) (Edge, bool) {
	id, ok := g.byIndex[index]
	if !ok {
		return Edge{}, false
	}
	return g.edges[id], true
}

// EdgesOf returns the ids of every edge with v as source or target, in
// insertion order. A self loop is listed once. The slice is shared.
func (g *Graph) EdgesOf(v string) []EdgeID { return g.adj[v] }

// Indexes returns the event index of each edge in insertion order.
func (g *Graph) Indexes() []int64 {
	out := make([]int64, len(g.edges))
	for i, e := range g.edges {
		out[i] = e.Event.Index
	}
	return out
}

func (g *Graph) VertexCount() int { return len(g.vertices) }

func (g *Graph) EdgeCount() int { return len(g.edges) }

// DuplicateIndexes counts edges whose event index was already mapped.
func (g *Graph) DuplicateIndexes() int { return g.dupes }
