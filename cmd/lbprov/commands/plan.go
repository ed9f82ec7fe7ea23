package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/lbprov/cmd/lbprov/handlers"
)

// Plan returns the command that prints the provisioning plan.
func Plan() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the steps apply would run",
		Long: `Validate the configuration and print the ordered steps with their
dependencies. No API calls are made.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Plan(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", handlers.DefaultConfigPath, "Path to configuration file")

	return cmd
}
