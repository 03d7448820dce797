package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBacktrackCmd(opts *globalOptions) *cobra.Command {
	var poi int64

	cmd := &cobra.Command{
		Use:   "backtrack <trace> --poi <index>",
		Short: "Backtrack from a point of interest",
		Long: `Parse a trace, export the full causal graph, then backtrack from the
event with the given index and export the resulting subgraph as
backtrack-graph-output.<ext>.

The full graph is written even when the index is not in the graph; the
command then exits with status 3.

Examples:
  backtrack backtrack capture.txt --poi 180232
  backtrack backtrack capture.txt --poi 180232 --format=markdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			env, err := setup(cmd, opts, nil)
			if err != nil {
				return err
			}
			defer env.close(cmd.Context())

			ctx, end := env.runSpan(cmd.Context(), "backtrack")
			defer func() { end(err) }()

			l, err := env.pipeline.Load(ctx, args[0])
			if err != nil {
				return exitFor(err)
			}
			fullPath, err := env.pipeline.ExportFull(ctx, l)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "graph:     %s (%d vertices, %d edges)\n", fullPath, l.Graph.VertexCount(), l.Graph.EdgeCount())

			res, err := env.pipeline.Backtrack(ctx, l.Graph, poi)
			if err != nil {
				return exitFor(err)
			}
			subPath, err := env.pipeline.ExportBacktrack(ctx, l, res)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "backtrack: %s (%d vertices, %d edges)\n", subPath, res.Graph.VertexCount(), res.Graph.EdgeCount())
			return nil
		},
	}

	cmd.Flags().Int64Var(&poi, "poi", 0, "Event index of the point of interest (required)")
	_ = cmd.MarkFlagRequired("poi")

	return cmd
}
