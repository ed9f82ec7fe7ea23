package resource

import "fmt"

// Kind identifies a provisionable resource type.
type Kind string

// Resource kinds in dependency order.
const (
	KindNetwork          Kind = "network"
	KindSubnet           Kind = "subnet"
	KindFirewallRule     Kind = "firewall-rule"
	KindHealthCheck      Kind = "health-check"
	KindBackendService   Kind = "backend-service"
	KindInstanceTemplate Kind = "instance-template"
	KindInstanceGroup    Kind = "instance-group"
	KindURLMap           Kind = "url-map"
	KindForwardingRule   Kind = "forwarding-rule"
)

// Kinds returns all kinds in the order a load balancer topology is built.
func Kinds() []Kind {
	return []Kind{
		KindNetwork,
		KindSubnet,
		KindFirewallRule,
		KindHealthCheck,
		KindBackendService,
		KindInstanceTemplate,
		KindInstanceGroup,
		KindURLMap,
		KindForwardingRule,
	}
}

// ParseKind converts a string into a known Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := registry[k]; !ok {
		return "", fmt.Errorf("unknown resource kind %q", s)
	}
	return k, nil
}

// Scope is the location scope a kind lives in.
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeRegional Scope = "regional"
	ScopeZonal    Scope = "zonal"
)
