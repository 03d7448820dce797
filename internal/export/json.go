package export

import (
	"encoding/json"
	"io"
)

// JSONSink writes {"vertices": [...], "edges": [...]}.
type JSONSink struct {
	W      io.Writer
	Indent bool
}

type jsonGraph struct {
	Vertices []string    `json:"vertices"`
	Edges    []EdgeLabel `json:"edges"`
}

func (s *JSONSink) Accept(vertices []string, edges []EdgeLabel) error {
	if vertices == nil {
		vertices = []string{}
	}
	if edges == nil {
		edges = []EdgeLabel{}
	}
	enc := json.NewEncoder(s.W)
	if s.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(jsonGraph{Vertices: vertices, Edges: edges})
}
