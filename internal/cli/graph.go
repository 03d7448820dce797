package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGraphCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <trace>",
		Short: "Build the causal graph of a trace and export it",
		Long: `Parse a trace, build the full causal graph and write it to the
output directory as graph-output.<ext>.

Examples:
  backtrack graph capture.txt
  backtrack graph capture.txt --format=json --output-dir=out`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			env, err := setup(cmd, opts, nil)
			if err != nil {
				return err
			}
			defer env.close(cmd.Context())

			ctx, end := env.runSpan(cmd.Context(), "graph")
			defer func() { end(err) }()

			l, err := env.pipeline.Load(ctx, args[0])
			if err != nil {
				return exitFor(err)
			}
			path, err := env.pipeline.ExportFull(ctx, l)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "events:   %d\n", len(l.Events))
			fmt.Fprintf(out, "vertices: %d\n", l.Graph.VertexCount())
			fmt.Fprintf(out, "edges:    %d\n", l.Graph.EdgeCount())
			fmt.Fprintf(out, "graph:    %s\n", path)
			return nil
		},
	}
	return cmd
}
