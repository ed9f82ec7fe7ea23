package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/lbprov/cmd/lbprov/handlers"
)

// Apply returns the command that provisions the load balancer.
//
// Optional flags:
//
//	--config, -c: Path to the configuration YAML file (default: lbprov.yaml)
//	--dry-run: Run the plan against an in-memory control plane
//	--state: File recording resource handles between runs
//	--metrics-textfile: Write Prometheus metrics to this file after the run
//
// Credentials are taken from Application Default Credentials.
func Apply() *cobra.Command {
	opts := handlers.ApplyOptions{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or reuse every load balancer resource",
		Long: `Create or reuse every resource of the load balancer in dependency order.

Each step looks the resource up by name first. A resource with matching
configuration is reused, a mutable difference is updated and an incompatible
one stops the run. After a failure, re-running apply with the same state file
resumes at the failed step.

Examples:
  # Provision using lbprov.yaml in the current directory
  lbprov apply

  # Show what would happen without touching the project
  lbprov apply --dry-run

  # Record handles and metrics for later runs
  lbprov apply -c prod.yaml --state prod.state.yaml --metrics-textfile lbprov.prom`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Verbose = verbose(cmd)
			return handlers.Apply(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", handlers.DefaultConfigPath, "Path to configuration file")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Run against an in-memory control plane")
	cmd.Flags().StringVar(&opts.StatePath, "state", "", "File recording resource handles between runs")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-textfile", "", "Write Prometheus metrics to this file")

	return cmd
}
