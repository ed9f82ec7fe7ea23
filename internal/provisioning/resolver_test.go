package provisioning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/lbprov/internal/platform/memory"
	"github.com/imamik/lbprov/internal/resource"
)

func newTestResolver(p Provider, obs Observer) *Resolver {
	return NewResolver(p, newFastPoller(p, obs, nil), obs, time.Second)
}

func healthCheck(name, typ string) resource.Spec {
	return resource.ApplyDefaults(resource.NewSpec(resource.KindHealthCheck, name, resource.Fields{"type": typ}))
}

func TestResolver_Creates(t *testing.T) {
	t.Parallel()
	p := newTestProvider()
	obs := NewMockObserver()

	res, err := newTestResolver(p, obs).ResolveOrCreate(context.Background(), healthCheck("basic-check", "HTTP"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, p.SelfLink(resource.KindHealthCheck, "basic-check"), res.Handle.Ref)

	assert.Len(t, p.CallsOf("insert"), 1)
	assert.Len(t, obs.EventsOf(EventResourceCreating), 1)
	assert.Len(t, obs.EventsOf(EventResourceCreated), 1)
}

func TestResolver_ReusesMatchingResource(t *testing.T) {
	t.Parallel()
	p := newTestProvider()
	obs := NewMockObserver()
	seeded := p.Seed(healthCheck("basic-check", "HTTP"))

	res, err := newTestResolver(p, obs).ResolveOrCreate(context.Background(), healthCheck("basic-check", "HTTP"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReused, res.Outcome)
	assert.Equal(t, seeded, res.Handle)
	assert.Empty(t, p.CallsOf("insert"))
	assert.Empty(t, p.CallsOf("update"))
	assert.Len(t, obs.EventsOf(EventResourceExists), 1)
}

func TestResolver_ConflictOnHealthCheckType(t *testing.T) {
	t.Parallel()
	p := newTestProvider()
	obs := NewMockObserver()
	p.Seed(healthCheck("basic-check", "TCP"))

	res, err := newTestResolver(p, obs).ResolveOrCreate(context.Background(), healthCheck("basic-check", "HTTP"))
	require.Error(t, err)
	assert.True(t, res.Handle.IsZero())
	assert.Equal(t, OutcomeFailed, res.Outcome)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "basic-check", conflict.Name)
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, FieldConflict{Field: "type", Want: "HTTP", Got: "TCP"}, conflict.Conflicts[0])
	assert.True(t, IsConflict(err))
	assert.Empty(t, p.CallsOf("insert"))
	assert.Len(t, obs.EventsOf(EventResourceFailed), 1)
}

func TestResolver_ConflictOnNetwork(t *testing.T) {
	t.Parallel()
	p := newTestProvider()
	p.Seed(resource.NewSpec(resource.KindSubnet, "sub-a", resource.Fields{"network": "net-b-ref", "cidr_range": "10.1.2.0/24"}))

	_, err := newTestResolver(p, nil).ResolveOrCreate(context.Background(),
		resource.NewSpec(resource.KindSubnet, "sub-a", resource.Fields{"network": "net-a-ref", "cidr_range": "10.1.2.0/24"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `network: want "net-a-ref", got "net-b-ref"`)
}

func TestResolver_UpdatesMutableDrift(t *testing.T) {
	t.Parallel()
	p := newTestProvider()
	obs := NewMockObserver()
	seeded := p.Seed(resource.NewSpec(resource.KindFirewallRule, "allow-lb-traffic", resource.Fields{
		"network": "net-ref", "protocol": "tcp", "ports": "80", "source_ranges": "0.0.0.0/0",
	}))

	res, err := newTestResolver(p, obs).ResolveOrCreate(context.Background(),
		resource.NewSpec(resource.KindFirewallRule, "allow-lb-traffic", resource.Fields{
			"network": "net-ref", "protocol": "tcp", "ports": "80,443", "source_ranges": "0.0.0.0/0",
		}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, seeded, res.Handle)
	assert.Len(t, p.CallsOf("update"), 1)

	stored, _ := p.Resource(resource.KindFirewallRule, "allow-lb-traffic")
	assert.Equal(t, "80,443", stored.Fields["ports"])

	updating := obs.EventsOf(EventResourceUpdating)
	require.Len(t, updating, 1)
	assert.Equal(t, "[ports]", updating[0].Fields["fields"])
	assert.Len(t, obs.EventsOf(EventResourceUpdated), 1)
}

func TestResolver_ListOrderIgnored(t *testing.T) {
	t.Parallel()
	p := newTestProvider()
	p.Seed(resource.NewSpec(resource.KindFirewallRule, "fw", resource.Fields{"source_ranges": "35.191.0.0/16,130.211.0.0/22"}))

	res, err := newTestResolver(p, nil).ResolveOrCreate(context.Background(),
		resource.NewSpec(resource.KindFirewallRule, "fw", resource.Fields{"source_ranges": "130.211.0.0/22,35.191.0.0/16"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReused, res.Outcome)
}

func TestResolver_ImmutableKindConflicts(t *testing.T) {
	t.Parallel()
	p := newTestProvider()
	p.Seed(resource.NewSpec(resource.KindForwardingRule, "fr", resource.Fields{"target": "map-a", "port_range": "80"}))

	_, err := newTestResolver(p, nil).ResolveOrCreate(context.Background(),
		resource.NewSpec(resource.KindForwardingRule, "fr", resource.Fields{"target": "map-a", "port_range": "8080"}))
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Empty(t, p.CallsOf("update"))
}

func TestResolver_UnsetFieldsAreIgnored(t *testing.T) {
	t.Parallel()
	p := newTestProvider()
	p.Seed(resource.NewSpec(resource.KindNetwork, "net-a", resource.Fields{"auto_create_subnetworks": "true"}))

	res, err := newTestResolver(p, nil).ResolveOrCreate(context.Background(), resource.NewSpec(resource.KindNetwork, "net-a", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReused, res.Outcome)
}

func TestResolver_AmendNeverCreates(t *testing.T) {
	t.Parallel()
	p := newTestProvider()

	_, err := newTestResolver(p, nil).Amend(context.Background(), resource.NewSpec(resource.KindBackendService, "bs-a", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be amended")
	assert.Empty(t, p.CallsOf("insert"))
}

func TestResolver_ProviderErrors(t *testing.T) {
	t.Parallel()
	p := newTestProvider()
	p.Script(resource.KindNetwork, "get-fails", memory.Script{GetErr: errors.New("403 forbidden")})
	p.Script(resource.KindNetwork, "insert-fails", memory.Script{InsertErr: errors.New("400 bad request")})
	p.Script(resource.KindNetwork, "op-fails", memory.Script{ErrorCode: "RESOURCE_ALREADY_EXISTS", ErrorMessage: "exists"})
	r := newTestResolver(p, nil)

	_, err := r.ResolveOrCreate(context.Background(), resource.NewSpec(resource.KindNetwork, "get-fails", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get network get-fails: 403 forbidden")

	_, err = r.ResolveOrCreate(context.Background(), resource.NewSpec(resource.KindNetwork, "insert-fails", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create network insert-fails")

	_, err = r.ResolveOrCreate(context.Background(), resource.NewSpec(resource.KindNetwork, "op-fails", nil))
	require.Error(t, err)
	assert.True(t, IsOperationError(err))
	assert.Contains(t, err.Error(), "RESOURCE_ALREADY_EXISTS")

	_, err = r.ResolveOrCreate(context.Background(), resource.NewSpec(resource.Kind("router"), "r", nil))
	assert.Error(t, err)
}

func TestResolver_ReturnsOperationWarnings(t *testing.T) {
	t.Parallel()
	p := newTestProvider()
	obs := NewMockObserver()
	warning := resource.Warning{Code: "DEPRECATED_RESOURCE_USED", Message: "image family is deprecated"}
	p.Script(resource.KindHealthCheck, "basic-check", memory.Script{Warnings: []resource.Warning{warning}})

	res, err := newTestResolver(p, obs).ResolveOrCreate(context.Background(), healthCheck("basic-check", "HTTP"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, []resource.Warning{warning}, res.Warnings)
	assert.Len(t, obs.EventsOf(EventOperationWarning), 1)

	res, err = newTestResolver(p, obs).ResolveOrCreate(context.Background(), healthCheck("basic-check", "HTTP"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReused, res.Outcome)
	assert.Empty(t, res.Warnings)
}
