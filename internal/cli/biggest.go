package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentsh/backtrack/internal/config"
)

func newBiggestCmd(opts *globalOptions) *cobra.Command {
	var (
		workers  int
		doExport bool
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "biggest <trace>",
		Short: "Find the point of interest with the largest backtrack graph",
		Long: `Backtrack from every event in the trace and report the one whose
result has the most vertices. Ties go to the earliest event.

Examples:
  backtrack biggest capture.txt --workers 8
  backtrack biggest capture.txt --export`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if workers < 0 {
				return fmt.Errorf("invalid --workers %d: must be >= 0", workers)
			}
			env, err := setup(cmd, opts, func(cfg *config.Config) {
				if cmd.Flags().Changed("workers") {
					cfg.Backtrack.Workers = workers
				}
			})
			if err != nil {
				return err
			}
			defer env.close(cmd.Context())

			ctx, end := env.runSpan(cmd.Context(), "biggest")
			defer func() { end(err) }()

			l, err := env.pipeline.Load(ctx, args[0])
			if err != nil {
				return exitFor(err)
			}
			best, err := env.pipeline.Biggest(ctx, l.Graph)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(best); err != nil {
					return err
				}
			} else if !best.Found {
				fmt.Fprintln(out, "no events")
			} else {
				fmt.Fprintf(out, "index:    %d\n", best.Index)
				fmt.Fprintf(out, "vertices: %d\n", best.Vertices)
				fmt.Fprintf(out, "edges:    %d\n", best.Edges)
				fmt.Fprintf(out, "queries:  %d\n", best.Queries)
			}

			if !doExport || !best.Found {
				return nil
			}
			res, err := env.pipeline.Backtrack(ctx, l.Graph, best.Index)
			if err != nil {
				return exitFor(err)
			}
			path, err := env.pipeline.ExportBacktrack(ctx, l, res)
			if err != nil {
				return err
			}
			if !jsonOut {
				fmt.Fprintf(out, "graph:    %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent queries (0 = config value, which defaults to GOMAXPROCS)")
	cmd.Flags().BoolVar(&doExport, "export", false, "Export the backtrack graph of the winning event")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")

	return cmd
}
