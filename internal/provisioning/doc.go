// Package provisioning applies a dependency-ordered plan of resources against
// a cloud control plane.
//
// # Components
//
//   - Plan: validated, ordered steps with reference edges between them.
//   - Poller: waits for a provider operation to finish, with backoff.
//   - Resolver: reuses, updates or creates a single resource.
//   - Sequencer: runs a plan step by step, feeding handles forward.
//
// The Provider interface is the only contract with the control plane;
// implementations live under internal/platform.
//
// Execution is re-entrant: passing the handles returned by a failed run back
// into Sequencer.Execute skips the steps that already completed.
package provisioning
