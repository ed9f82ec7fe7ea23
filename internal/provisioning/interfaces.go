package provisioning

import (
	"context"

	"github.com/imamik/lbprov/internal/resource"
)

// Provider is the control-plane client the provisioning core depends on.
// Implemented by internal/platform/gce.Client and internal/platform/memory.Provider.
type Provider interface {
	// Get returns the resource of kind with name, or nil, nil when it does not exist.
	Get(ctx context.Context, kind resource.Kind, name string) (*resource.Observed, error)

	// Insert starts creating the resource described by spec.
	Insert(ctx context.Context, spec resource.Spec) (resource.Ticket, error)

	// Update starts reconciling the existing resource behind handle to spec.
	Update(ctx context.Context, handle resource.Handle, spec resource.Spec) (resource.Ticket, error)

	// Refresh returns the current state of a ticket.
	Refresh(ctx context.Context, ticket resource.Ticket) (resource.Ticket, error)
}

// Handles maps each provisioned kind to its handle.
type Handles map[resource.Kind]resource.Handle

// Clone returns a copy of h. A nil map clones to an empty map.
func (h Handles) Clone() Handles {
	out := make(Handles, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Outcome describes what the resolver did for a step.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeReused  Outcome = "reused"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)
