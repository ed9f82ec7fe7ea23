package gce

import (
	"context"
	"fmt"

	compute "google.golang.org/api/compute/v1"

	"github.com/imamik/lbprov/internal/resource"
)

// Get implements provisioning.Provider. It returns nil, nil when the resource
// does not exist.
func (c *Client) Get(ctx context.Context, kind resource.Kind, name string) (*resource.Observed, error) {
	var obs *resource.Observed
	err := c.call(ctx, func() error {
		var err error
		obs, err = c.get(ctx, kind, name)
		return err
	})
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// Insert implements provisioning.Provider.
//
// A retried insert that fails with 409 means an earlier attempt was accepted
// before its response was lost. The resource is read back and returned as a
// finished ticket.
func (c *Client) Insert(ctx context.Context, spec resource.Spec) (resource.Ticket, error) {
	var op *compute.Operation
	attempts := 0
	err := c.call(ctx, func() error {
		attempts++
		var err error
		op, err = c.insert(ctx, spec)
		return err
	})
	if err != nil && attempts > 1 && isAlreadyExists(err) {
		obs, getErr := c.Get(ctx, spec.Kind(), spec.Name())
		if getErr == nil && obs != nil {
			return resource.Ticket{
				Kind:      spec.Kind(),
				Name:      spec.Name(),
				Status:    resource.StatusDone,
				TargetRef: obs.Handle.Ref,
			}, nil
		}
	}
	if err != nil {
		return resource.Ticket{}, err
	}
	return ticket(spec.Kind(), spec.Name(), op), nil
}

// Update implements provisioning.Provider. The current resource is read, the
// fields set in spec are applied to it and the result is written back.
func (c *Client) Update(ctx context.Context, handle resource.Handle, spec resource.Spec) (resource.Ticket, error) {
	if handle.Name != spec.Name() || handle.Kind != spec.Kind() {
		return resource.Ticket{}, fmt.Errorf("handle %s %s does not match %s", handle.Kind, handle.Name, spec)
	}
	var op *compute.Operation
	err := c.call(ctx, func() error {
		var err error
		op, err = c.update(ctx, spec)
		return err
	})
	if err != nil {
		return resource.Ticket{}, err
	}
	return ticket(spec.Kind(), spec.Name(), op), nil
}

func (c *Client) get(ctx context.Context, kind resource.Kind, name string) (*resource.Observed, error) {
	switch kind {
	case resource.KindNetwork:
		n, err := c.service.Networks.Get(c.project, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return observed(kind, name, n.SelfLink, networkFields(n)), nil
	case resource.KindSubnet:
		s, err := c.service.Subnetworks.Get(c.project, c.region, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return observed(kind, name, s.SelfLink, subnetFields(s)), nil
	case resource.KindFirewallRule:
		fw, err := c.service.Firewalls.Get(c.project, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return observed(kind, name, fw.SelfLink, firewallFields(fw)), nil
	case resource.KindHealthCheck:
		hc, err := c.service.HealthChecks.Get(c.project, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return observed(kind, name, hc.SelfLink, healthCheckFields(hc)), nil
	case resource.KindBackendService:
		bs, err := c.service.BackendServices.Get(c.project, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return observed(kind, name, bs.SelfLink, backendServiceFields(bs)), nil
	case resource.KindInstanceTemplate:
		it, err := c.service.InstanceTemplates.Get(c.project, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return observed(kind, name, it.SelfLink, instanceTemplateFields(it)), nil
	case resource.KindInstanceGroup:
		igm, err := c.service.InstanceGroupManagers.Get(c.project, c.zone, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		// Backends reference the group, not its manager.
		ref := igm.InstanceGroup
		if ref == "" {
			ref = igm.SelfLink
		}
		return observed(kind, name, ref, instanceGroupFields(igm)), nil
	case resource.KindURLMap:
		um, err := c.service.UrlMaps.Get(c.project, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return observed(kind, name, um.SelfLink, urlMapFields(um)), nil
	case resource.KindForwardingRule:
		fr, err := c.service.GlobalForwardingRules.Get(c.project, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		fields := forwardingRuleFields(fr)
		if proxy, ok := proxyName(fr.Target); ok {
			p, err := c.service.TargetHttpProxies.Get(c.project, proxy).Context(ctx).Do()
			if err != nil {
				return nil, err
			}
			fields["target"] = p.UrlMap
		}
		return observed(kind, name, fr.SelfLink, fields), nil
	default:
		return nil, fmt.Errorf("unsupported resource kind %q", kind)
	}
}

func (c *Client) insert(ctx context.Context, spec resource.Spec) (*compute.Operation, error) {
	f := spec.Fields()
	switch spec.Kind() {
	case resource.KindNetwork:
		n := &compute.Network{Name: spec.Name()}
		applyNetwork(n, f)
		return c.service.Networks.Insert(c.project, n).Context(ctx).Do()
	case resource.KindSubnet:
		s := &compute.Subnetwork{Name: spec.Name(), Region: c.region}
		applySubnet(s, f)
		return c.service.Subnetworks.Insert(c.project, c.region, s).Context(ctx).Do()
	case resource.KindFirewallRule:
		fw := &compute.Firewall{Name: spec.Name()}
		applyFirewall(fw, f)
		return c.service.Firewalls.Insert(c.project, fw).Context(ctx).Do()
	case resource.KindHealthCheck:
		hc := &compute.HealthCheck{Name: spec.Name()}
		if err := applyHealthCheck(hc, f); err != nil {
			return nil, err
		}
		return c.service.HealthChecks.Insert(c.project, hc).Context(ctx).Do()
	case resource.KindBackendService:
		bs := &compute.BackendService{Name: spec.Name()}
		if err := applyBackendService(bs, f); err != nil {
			return nil, err
		}
		return c.service.BackendServices.Insert(c.project, bs).Context(ctx).Do()
	case resource.KindInstanceTemplate:
		it := &compute.InstanceTemplate{Name: spec.Name()}
		applyInstanceTemplate(it, f)
		return c.service.InstanceTemplates.Insert(c.project, it).Context(ctx).Do()
	case resource.KindInstanceGroup:
		igm := &compute.InstanceGroupManager{Name: spec.Name(), BaseInstanceName: spec.Name()}
		if err := applyInstanceGroup(igm, f); err != nil {
			return nil, err
		}
		return c.service.InstanceGroupManagers.Insert(c.project, c.zone, igm).Context(ctx).Do()
	case resource.KindURLMap:
		um := &compute.UrlMap{Name: spec.Name()}
		applyURLMap(um, f)
		return c.service.UrlMaps.Insert(c.project, um).Context(ctx).Do()
	case resource.KindForwardingRule:
		proxy, err := c.ensureProxy(ctx, spec.Name(), f["target"])
		if err != nil {
			return nil, err
		}
		fr := &compute.ForwardingRule{Name: spec.Name()}
		applyForwardingRule(fr, f)
		fr.Target = proxy
		return c.service.GlobalForwardingRules.Insert(c.project, fr).Context(ctx).Do()
	default:
		return nil, fmt.Errorf("unsupported resource kind %q", spec.Kind())
	}
}

func (c *Client) update(ctx context.Context, spec resource.Spec) (*compute.Operation, error) {
	f := spec.Fields()
	name := spec.Name()
	switch spec.Kind() {
	case resource.KindFirewallRule:
		fw, err := c.service.Firewalls.Get(c.project, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		applyFirewall(fw, f)
		return c.service.Firewalls.Patch(c.project, name, fw).Context(ctx).Do()
	case resource.KindHealthCheck:
		hc, err := c.service.HealthChecks.Get(c.project, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if err := applyHealthCheck(hc, f); err != nil {
			return nil, err
		}
		return c.service.HealthChecks.Update(c.project, name, hc).Context(ctx).Do()
	case resource.KindBackendService:
		bs, err := c.service.BackendServices.Get(c.project, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if err := applyBackendService(bs, f); err != nil {
			return nil, err
		}
		return c.service.BackendServices.Update(c.project, name, bs).Context(ctx).Do()
	case resource.KindInstanceGroup:
		igm, err := c.service.InstanceGroupManagers.Get(c.project, c.zone, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if err := applyInstanceGroup(igm, f); err != nil {
			return nil, err
		}
		return c.service.InstanceGroupManagers.Patch(c.project, c.zone, name, igm).Context(ctx).Do()
	case resource.KindURLMap:
		um, err := c.service.UrlMaps.Get(c.project, name).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		applyURLMap(um, f)
		return c.service.UrlMaps.Update(c.project, name, um).Context(ctx).Do()
	default:
		return nil, fmt.Errorf("%s cannot be updated", spec)
	}
}

// ensureProxy returns the self-link of the target HTTP proxy fronting urlMap
// for the named forwarding rule, creating it when missing.
func (c *Client) ensureProxy(ctx context.Context, rule, urlMap string) (string, error) {
	name := proxyNameFor(rule)
	p, err := c.service.TargetHttpProxies.Get(c.project, name).Context(ctx).Do()
	if err == nil {
		if p.UrlMap != urlMap {
			return "", fmt.Errorf("target HTTP proxy %s points at %s, want %s", name, p.UrlMap, urlMap)
		}
		return p.SelfLink, nil
	}
	if !IsNotFound(err) {
		return "", err
	}

	op, err := c.service.TargetHttpProxies.Insert(c.project, &compute.TargetHttpProxy{
		Name:   name,
		UrlMap: urlMap,
	}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	waitCtx := ctx
	if c.timeouts.Operation > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.timeouts.Operation)
		defer cancel()
	}
	if err := c.waitGlobal(waitCtx, op); err != nil {
		return "", fmt.Errorf("failed to create target HTTP proxy %s: %w", name, err)
	}
	if op.TargetLink != "" {
		return op.TargetLink, nil
	}
	p, err = c.service.TargetHttpProxies.Get(c.project, name).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return p.SelfLink, nil
}

func observed(kind resource.Kind, name, ref string, fields resource.Fields) *resource.Observed {
	return &resource.Observed{
		Handle: resource.Handle{Kind: kind, Name: name, Ref: ref},
		Fields: fields,
	}
}
