package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentsh/backtrack/internal/trace"
	"github.com/agentsh/backtrack/pkg/types"
)

func newEventsCmd(opts *globalOptions) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "events <trace>",
		Short: "Print the causal events parsed from a trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			env, err := setup(cmd, opts, nil)
			if err != nil {
				return err
			}
			defer env.close(cmd.Context())

			ctx, end := env.runSpan(cmd.Context(), "events")
			defer func() { end(err) }()

			l, err := env.pipeline.Load(ctx, args[0])
			if err != nil {
				return exitFor(err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(eventsReport{Stats: l.Stats, Events: l.Events})
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tPROCESS\tOPERATION\tOBJECT\tSTART\tEND")
			for _, ev := range l.Events {
				start, endT := ev.Start.String(), ev.End.String()
				if ev.Unmatched {
					start = "-"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", ev.Index, ev.Process, ev.Operation, ev.Object, start, endT)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			s := l.Stats
			fmt.Fprintf(out, "\n%d lines, %d events, %d excluded, %d unmatched, %d skipped\n",
				s.Lines, s.Events, s.Excluded, s.Unmatched, s.Skipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print events and parse statistics as JSON")

	return cmd
}

type eventsReport struct {
	Stats  trace.Stats         `json:"stats"`
	Events []types.CausalEvent `json:"events"`
}
