package provisioning

import (
	"fmt"
	"strconv"

	"github.com/imamik/lbprov/internal/config"
	"github.com/imamik/lbprov/internal/resource"
	"github.com/imamik/lbprov/internal/util/naming"
)

// BuildLoadBalancerPlan returns the plan for an external HTTP load balancer in
// front of a managed instance group:
//
//	network → subnet → firewall-rule → health-check → backend-service →
//	instance-template → instance-group → url-map → forwarding-rule
//
// followed by an amend step attaching the instance group to the backend service.
func BuildLoadBalancerPlan(cfg *config.Config) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	names := naming.New(cfg.NamePrefix)
	if cfg.DeterministicNames {
		names = naming.NewDeterministic(cfg.Project, cfg.Region, cfg.NamePrefix)
	}
	port := strconv.Itoa(cfg.Port)

	backendService := resource.NewSpec(resource.KindBackendService, names.BackendService(), resource.Fields{
		"protocol":              "HTTP",
		"load_balancing_scheme": "EXTERNAL",
		"port_name":             cfg.InstanceGroup.NamedPort,
	})

	steps := []Step{
		{Spec: resource.NewSpec(resource.KindNetwork, cfg.NetworkName, resource.Fields{
			"auto_create_subnetworks": "false",
		})},
		{Spec: resource.NewSpec(resource.KindSubnet, cfg.SubnetName, resource.Fields{
			"cidr_range": cfg.CIDRRange,
		})},
		{Spec: resource.NewSpec(resource.KindFirewallRule, names.FirewallRule(), resource.Fields{
			"direction":     "INGRESS",
			"protocol":      "tcp",
			"ports":         port,
			"source_ranges": resource.JoinList(cfg.Firewall.SourceRanges...),
			"target_tags":   resource.JoinList(cfg.Firewall.TargetTags...),
		})},
		{Spec: resource.NewSpec(resource.KindHealthCheck, names.HealthCheck(), resource.Fields{
			"type":               "HTTP",
			"port_specification": "USE_SERVING_PORT",
			"request_path":       cfg.HealthCheck.RequestPath,
		})},
		{Spec: backendService},
		{Spec: resource.NewSpec(resource.KindInstanceTemplate, names.InstanceTemplate(), resource.Fields{
			"machine_type":         cfg.MachineType,
			"source_image_family":  cfg.SourceImageFamily,
			"source_image_project": cfg.SourceImageProject,
			"tags":                 resource.JoinList(cfg.Firewall.TargetTags...),
		})},
		{Spec: resource.NewSpec(resource.KindInstanceGroup, names.InstanceGroup(), resource.Fields{
			"base_instance_name": cfg.NamePrefix,
			"target_size":        strconv.Itoa(cfg.InstanceGroup.TargetSize),
			"named_port":         cfg.InstanceGroup.NamedPort,
			"port":               port,
		})},
		{Spec: resource.NewSpec(resource.KindURLMap, names.URLMap(), nil)},
		{Spec: resource.NewSpec(resource.KindForwardingRule, names.ForwardingRule(), resource.Fields{
			"port_range":            port,
			"ip_protocol":           "TCP",
			"load_balancing_scheme": "EXTERNAL",
		})},
		{Spec: backendService, Amend: true},
	}

	return NewPlan(fmt.Sprintf("%s/%s/%s", cfg.Project, cfg.Region, cfg.NamePrefix), steps...)
}
