package backtrack

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/agentsh/backtrack/internal/graph"
)

// Biggest reports the point of interest whose backtrack result has the most
// vertices.
type Biggest struct {
	Found    bool  `json:"found"`
	Index    int64 `json:"index"`
	Vertices int   `json:"vertices"`
	Edges    int   `json:"edges"`
	Queries  int   `json:"queries"`
}

// Biggest runs one query per event index, in parallel, and picks the
// largest result. Ties go to the earliest index in event order, so the
// answer does not depend on scheduling.
func (b *Backtracker) Biggest(ctx context.Context, g *graph.Graph) (Biggest, error) {
	indexes := g.Indexes()
	type size struct{ vertices, edges int }
	sizes := make([]size, len(indexes))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(b.workers)
	for i, index := range indexes {
		i, index := i, index
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			poi, _ := g.EdgeByIndex(index)
			res := b.Run(g, poi)
			sizes[i] = size{res.Graph.VertexCount(), res.Graph.EdgeCount()}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Biggest{}, err
	}

	best := Biggest{Queries: len(indexes)}
	for i, sz := range sizes {
		if sz.vertices > best.Vertices {
			best.Found = true
			best.Index = indexes[i]
			best.Vertices = sz.vertices
			best.Edges = sz.edges
		}
	}
	b.logger.Debug("backtrack: biggest scan complete", "queries", best.Queries, "index", best.Index, "vertices", best.Vertices)
	return best, nil
}
