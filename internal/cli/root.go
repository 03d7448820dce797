package cli

import (
	"github.com/spf13/cobra"
)

func NewRoot(version string) *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "backtrack",
		Short: "backtrack: provenance graphs from syscall traces",
		Long: `Build a causal graph from a sysdig-style syscall trace and trace a
point of interest back to the events that could have influenced it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("backtrack {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.outputDir, "output-dir", "", "Directory for graph artifacts (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "", "Artifact format: dot|json|markdown|sqlite (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.metricsFile, "metrics-file", "", "Write a Prometheus text-format run summary to this file")

	cmd.AddCommand(newGraphCmd(opts))
	cmd.AddCommand(newBacktrackCmd(opts))
	cmd.AddCommand(newBiggestCmd(opts))
	cmd.AddCommand(newEventsCmd(opts))

	return cmd
}

type globalOptions struct {
	configPath  string
	logLevel    string
	outputDir   string
	format      string
	metricsFile string
}
