package handlers

import (
	"github.com/imamik/lbprov/internal/provisioning"
)

// Plan validates the configuration and prints the resulting plan.
func Plan(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	plan, err := provisioning.BuildLoadBalancerPlan(cfg)
	if err != nil {
		return err
	}
	newPrinter(stdout).plan(plan)
	return nil
}
