// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic and can be tested independently of the
// CLI framework. External dependencies are reached through package-level
// factory variables that tests replace.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/lbprov/internal/config"
	"github.com/imamik/lbprov/internal/platform/gce"
	"github.com/imamik/lbprov/internal/platform/memory"
	"github.com/imamik/lbprov/internal/provisioning"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "lbprov.yaml"

// ApplyOptions carries the apply command flags.
type ApplyOptions struct {
	ConfigPath  string
	DryRun      bool
	StatePath   string
	MetricsFile string
	Verbose     bool
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads config from file.
	loadConfigFile = config.LoadFile

	// loadTimeouts reads timeout tuning from the environment.
	loadTimeouts = config.LoadTimeouts

	// newProvider creates the Compute Engine provider.
	newProvider = func(ctx context.Context, cfg *config.Config, t *config.Timeouts) (provisioning.Provider, error) {
		return gce.NewClient(ctx, cfg.Project, cfg.Region, cfg.Zone, gce.WithTimeouts(t))
	}

	// newDryRunProvider creates the in-memory provider used by --dry-run.
	newDryRunProvider = func(cfg *config.Config) provisioning.Provider {
		return memory.New(cfg.Project, cfg.Region, cfg.Zone)
	}

	// newLogger creates the structured logger.
	newLogger = NewLogger

	// writeMetrics writes gathered metrics in the text exposition format.
	writeMetrics = prometheus.WriteToTextfile

	// stdout receives the run summary.
	stdout io.Writer = os.Stdout
)

// Apply provisions the load balancer described by the configuration file.
//
// The workflow:
//  1. Loads and validates the configuration and builds the plan
//  2. Creates the provider (in-memory for dry runs)
//  3. Loads resource handles from the state file, if it matches the plan
//  4. Executes the plan, stopping at the first failed step
//  5. Saves the handles produced so far, even on failure
//  6. Writes metrics and prints a summary
func Apply(ctx context.Context, opts ApplyOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	plan, err := provisioning.BuildLoadBalancerPlan(cfg)
	if err != nil {
		return err
	}

	log, flush, err := newLogger(opts.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer flush()

	timeouts := loadTimeouts()

	var provider provisioning.Provider
	if opts.DryRun {
		log.Info("dry run: using in-memory control plane", "project", cfg.Project)
		provider = newDryRunProvider(cfg)
	} else {
		provider, err = newProvider(ctx, cfg, timeouts)
		if err != nil {
			return fmt.Errorf("failed to initialize provider: %w", err)
		}
	}

	start, err := loadState(opts.StatePath, plan.Identity())
	if errors.Is(err, errStateMismatch) {
		log.Info("ignoring recorded handles, every resource will be checked against the provider", "reason", err.Error())
		fmt.Fprintln(stdout, "warning: "+err.Error())
	} else if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	seq := provisioning.NewSequencer(provider,
		provisioning.WithObserver(provisioning.NewLogObserver(log)),
		provisioning.WithMetrics(provisioning.NewMetrics(registry)),
		provisioning.WithOperationTimeout(timeouts.Operation),
		provisioning.WithPollIntervals(timeouts.PollInitialInterval, timeouts.PollMaxInterval),
	)

	report, runErr := seq.Run(ctx, plan, start)
	handles := report.Handles

	if !opts.DryRun {
		if err := saveState(opts.StatePath, plan, handles); err != nil {
			log.Error(err, "failed to save state", "path", opts.StatePath)
		}
	}
	if opts.MetricsFile != "" {
		if err := writeMetrics(opts.MetricsFile, registry); err != nil {
			log.Error(err, "failed to write metrics", "path", opts.MetricsFile)
		}
	}

	newPrinter(stdout).summary(plan, report, runErr)
	return runErr
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return cfg, nil
}
