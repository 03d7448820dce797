package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DOTSink writes a Graphviz digraph. Vertices get numeric ids starting at 1
// in the order received; names and labels go into label attributes.
type DOTSink struct {
	W    io.Writer
	Name string // graph name, default "G"
}

func (s *DOTSink) Accept(vertices []string, edges []EdgeLabel) error {
	name := s.Name
	if name == "" {
		name = "G"
	}
	w := bufio.NewWriter(s.W)

	ids := make(map[string]int, len(vertices))
	fmt.Fprintf(w, "digraph %s {\n", name)
	for i, v := range vertices {
		ids[v] = i + 1
		fmt.Fprintf(w, "  %d [ label=%s ];\n", i+1, quoteDOT(v))
	}
	for _, e := range edges {
		src, ok := ids[e.Source]
		if !ok {
			return fmt.Errorf("dot: edge %d source %q is not a vertex", e.Index, e.Source)
		}
		dst, ok := ids[e.Target]
		if !ok {
			return fmt.Errorf("dot: edge %d target %q is not a vertex", e.Index, e.Target)
		}
		fmt.Fprintf(w, "  %d -> %d [ label=%s ];\n", src, dst, quoteDOT(e.Label))
	}
	fmt.Fprint(w, "}\n")
	return w.Flush()
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func quoteDOT(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}
