package graph

import (
	"slices"

	"github.com/agentsh/backtrack/pkg/types"
)

// DefaultOutward lists the operations whose influence flows from the calling
// process to the object. execve and fcntl count as outward: the process
// reshapes its own image or descriptor state.
var DefaultOutward = []string{"sendto", "sendmsg", "write", "writev", "execve", "fcntl"}

// Classifier decides edge direction from the operation name.
type Classifier struct {
	outward map[string]struct{}
}

// NewClassifier returns a classifier for the given outward set. A nil slice
// selects DefaultOutward; an empty non-nil slice makes every operation inward.
func NewClassifier(outward []string) Classifier {
	if outward == nil {
		outward = DefaultOutward
	}
	c := Classifier{outward: make(map[string]struct{}, len(outward))}
	for _, op := range outward {
		c.outward[op] = struct{}{}
	}
	return c
}

// IsOutward reports whether op points process -> object.
func (c Classifier) IsOutward(op string) bool {
	if c.outward == nil {
		return slices.Contains(DefaultOutward, op)
	}
	_, ok := c.outward[op]
	return ok
}

// Direction returns the (source, target) pair for an event.
func (c Classifier) Direction(ev types.CausalEvent) (string, string) {
	if c.IsOutward(ev.Operation) {
		return ev.Process, ev.Object
	}
	return ev.Object, ev.Process
}

// Build creates one edge per event. Events are expected to be validated by
// the parser; an empty slice yields an empty graph.
func Build(events []types.CausalEvent, c Classifier) *Graph {
	g := New()
	for _, ev := range events {
		g.AddVertex(ev.Process)
		g.AddVertex(ev.Object)
		src, dst := c.Direction(ev)
		g.AddEdge(src, dst, ev)
	}
	return g
}
