// Package main is the entry point for the lbprov CLI.
//
// lbprov provisions an external HTTP load balancer in front of a managed
// instance group on Google Compute Engine. Every step is idempotent: resources
// that already exist with a matching configuration are reused, so apply can be
// re-run after a failure or a configuration change.
//
// Commands: apply, plan, version.
//
// For detailed usage information, run:
//
//	lbprov --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/lbprov/cmd/lbprov/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
