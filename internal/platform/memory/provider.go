// Package memory implements an in-process control plane for dry runs and tests.
//
// Resources live in a map keyed by kind and name and get deterministic
// self-links. Operations can be scripted per resource to stay pending for a
// number of polls, fail, carry warnings or never finish.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/imamik/lbprov/internal/resource"
)

const apiBase = "https://www.googleapis.com/compute/v1"

// Call records one provider invocation.
type Call struct {
	Method string // "get", "insert", "update" or "refresh"
	Kind   resource.Kind
	Name   string
}

// Script controls the tickets returned for a resource.
type Script struct {
	// PendingPolls is the number of refreshes that report RUNNING.
	PendingPolls int
	// Never keeps the operation running forever.
	Never bool
	// ErrorCode and ErrorMessage make the finished operation fail.
	ErrorCode    string
	ErrorMessage string
	// Warnings are attached to the finished operation.
	Warnings []resource.Warning
	// InsertErr is returned by Insert instead of a ticket.
	InsertErr error
	// GetErr is returned by Get.
	GetErr error
}

type operation struct {
	ticket  resource.Ticket
	polls   int
	script  Script
	commit  func()
	applied bool
}

// Provider is a concurrency-safe in-memory control plane.
type Provider struct {
	project string
	region  string
	zone    string

	mu        sync.Mutex
	resources map[string]*resource.Observed
	ops       map[string]*operation
	scripts   map[string]Script
	calls     []Call
	nextOp    int
}

// New creates an empty control plane for project, region and zone.
func New(project, region, zone string) *Provider {
	return &Provider{
		project:   project,
		region:    region,
		zone:      zone,
		resources: make(map[string]*resource.Observed),
		ops:       make(map[string]*operation),
		scripts:   make(map[string]Script),
	}
}

// Script sets the behaviour of the next operations on kind/name.
func (p *Provider) Script(kind resource.Kind, name string, s Script) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[resource.Key(kind, name)] = s
}

// Seed stores a resource as if it had been created earlier. Missing fields
// are not defaulted.
func (p *Provider) Seed(spec resource.Spec) resource.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	obs := p.observe(spec)
	p.resources[spec.Key()] = obs
	return obs.Handle
}

// Calls returns a copy of the call log.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallsOf returns the calls made with method.
func (p *Provider) CallsOf(method string) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (p *Provider) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// Resource returns the stored state of kind/name.
func (p *Provider) Resource(kind resource.Kind, name string) (*resource.Observed, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	obs, ok := p.resources[resource.Key(kind, name)]
	if !ok {
		return nil, false
	}
	return &resource.Observed{Handle: obs.Handle, Fields: obs.Fields.Clone()}, true
}

// SelfLink returns the reference the provider assigns to kind/name.
func (p *Provider) SelfLink(kind resource.Kind, name string) string {
	switch kind {
	case resource.KindNetwork:
		return fmt.Sprintf("%s/projects/%s/global/networks/%s", apiBase, p.project, name)
	case resource.KindSubnet:
		return fmt.Sprintf("%s/projects/%s/regions/%s/subnetworks/%s", apiBase, p.project, p.region, name)
	case resource.KindFirewallRule:
		return fmt.Sprintf("%s/projects/%s/global/firewalls/%s", apiBase, p.project, name)
	case resource.KindHealthCheck:
		return fmt.Sprintf("%s/projects/%s/global/healthChecks/%s", apiBase, p.project, name)
	case resource.KindBackendService:
		return fmt.Sprintf("%s/projects/%s/global/backendServices/%s", apiBase, p.project, name)
	case resource.KindInstanceTemplate:
		return fmt.Sprintf("%s/projects/%s/global/instanceTemplates/%s", apiBase, p.project, name)
	case resource.KindInstanceGroup:
		return fmt.Sprintf("%s/projects/%s/zones/%s/instanceGroups/%s", apiBase, p.project, p.zone, name)
	case resource.KindURLMap:
		return fmt.Sprintf("%s/projects/%s/global/urlMaps/%s", apiBase, p.project, name)
	case resource.KindForwardingRule:
		return fmt.Sprintf("%s/projects/%s/global/forwardingRules/%s", apiBase, p.project, name)
	default:
		return fmt.Sprintf("%s/projects/%s/%s/%s", apiBase, p.project, kind, name)
	}
}

// Get implements provisioning.Provider.
func (p *Provider) Get(_ context.Context, kind resource.Kind, name string) (*resource.Observed, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: "get", Kind: kind, Name: name})

	key := resource.Key(kind, name)
	if err := p.scripts[key].GetErr; err != nil {
		return nil, err
	}
	obs, ok := p.resources[key]
	if !ok {
		return nil, nil
	}
	return &resource.Observed{Handle: obs.Handle, Fields: obs.Fields.Clone()}, nil
}

// Insert implements provisioning.Provider. The resource becomes visible when
// its operation finishes successfully.
func (p *Provider) Insert(_ context.Context, spec resource.Spec) (resource.Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: "insert", Kind: spec.Kind(), Name: spec.Name()})

	script := p.scripts[spec.Key()]
	if script.InsertErr != nil {
		return resource.Ticket{}, script.InsertErr
	}
	if _, exists := p.resources[spec.Key()]; exists {
		return resource.Ticket{}, fmt.Errorf("%s already exists", spec)
	}

	obs := p.observe(spec)
	return p.start(spec, script, func() { p.resources[spec.Key()] = obs }), nil
}

// Update implements provisioning.Provider. Only fields set in spec change.
func (p *Provider) Update(_ context.Context, handle resource.Handle, spec resource.Spec) (resource.Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: "update", Kind: spec.Kind(), Name: spec.Name()})

	obs, ok := p.resources[spec.Key()]
	if !ok || obs.Handle.Ref != handle.Ref {
		return resource.Ticket{}, fmt.Errorf("%s not found", spec)
	}
	script := p.scripts[spec.Key()]
	return p.start(spec, script, func() {
		for k, v := range spec.Fields() {
			if v != "" {
				obs.Fields[k] = v
			}
		}
	}), nil
}

// Refresh implements provisioning.Provider.
func (p *Provider) Refresh(_ context.Context, ticket resource.Ticket) (resource.Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: "refresh", Kind: ticket.Kind, Name: ticket.Name})

	op, ok := p.ops[ticket.ID]
	if !ok {
		return resource.Ticket{}, fmt.Errorf("operation %s not found", ticket.ID)
	}
	op.polls++
	p.advance(op)
	return op.ticket, nil
}

func (p *Provider) start(spec resource.Spec, script Script, commit func()) resource.Ticket {
	p.nextOp++
	op := &operation{
		ticket: resource.Ticket{
			ID:        fmt.Sprintf("operation-%d", p.nextOp),
			Kind:      spec.Kind(),
			Name:      spec.Name(),
			Status:    resource.StatusPending,
			TargetRef: p.SelfLink(spec.Kind(), spec.Name()),
		},
		script: script,
		commit: commit,
	}
	p.ops[op.ticket.ID] = op
	p.advance(op)
	return op.ticket
}

// advance moves op to its scripted state for the current poll count.
func (p *Provider) advance(op *operation) {
	if op.script.Never || op.polls < op.script.PendingPolls {
		if op.polls > 0 {
			op.ticket.Status = resource.StatusRunning
		}
		return
	}
	op.ticket.Status = resource.StatusDone
	if op.script.ErrorCode != "" || op.script.ErrorMessage != "" {
		op.ticket.ErrorCode = op.script.ErrorCode
		op.ticket.ErrorMessage = op.script.ErrorMessage
		return
	}
	op.ticket.Warnings = append([]resource.Warning(nil), op.script.Warnings...)
	if !op.applied {
		op.commit()
		op.applied = true
	}
}

func (p *Provider) observe(spec resource.Spec) *resource.Observed {
	return &resource.Observed{
		Handle: resource.Handle{
			Kind: spec.Kind(),
			Name: spec.Name(),
			Ref:  p.SelfLink(spec.Kind(), spec.Name()),
		},
		Fields: spec.Fields(),
	}
}
