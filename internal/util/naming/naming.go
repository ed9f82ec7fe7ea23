package naming

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// maxNameLength is the Compute Engine limit for resource names.
const maxNameLength = 63

// Namespace scopes deterministic suffixes to this tool.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/imamik/lbprov"))

// Namer builds resource names for one deployment.
type Namer struct {
	prefix string
	suffix string
}

// New returns a Namer producing {prefix}-{role} names.
func New(prefix string) Namer {
	return Namer{prefix: prefix}
}

// NewDeterministic returns a Namer whose names end in a suffix derived from
// project, region and prefix.
func NewDeterministic(project, region, prefix string) Namer {
	return Namer{prefix: prefix, suffix: Suffix(project, region, prefix)}
}

// Suffix returns an 8 character identifier derived from parts.
func Suffix(parts ...string) string {
	id := uuid.NewSHA1(Namespace, []byte(strings.Join(parts, "/")))
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

func (n Namer) name(role string) string {
	name := fmt.Sprintf("%s-%s", n.prefix, role)
	if n.suffix == "" {
		return truncate(name)
	}
	return truncate(name[:min(len(name), maxNameLength-len(n.suffix)-1)]) + "-" + n.suffix
}

func truncate(name string) string {
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return strings.TrimRight(name, "-")
}

func (n Namer) FirewallRule() string     { return n.name("allow-lb-traffic") }
func (n Namer) HealthCheck() string      { return n.name("basic-check") }
func (n Namer) BackendService() string   { return n.name("backend-service") }
func (n Namer) InstanceTemplate() string { return n.name("template") }
func (n Namer) InstanceGroup() string    { return n.name("group") }
func (n Namer) URLMap() string           { return n.name("url-map") }
func (n Namer) ForwardingRule() string   { return n.name("forwarding-rule") }

// TargetProxy names the HTTP proxy that fronts a URL map for a forwarding rule.
func TargetProxy(forwardingRule string) string {
	return truncate(forwardingRule[:min(len(forwardingRule), maxNameLength-len("-proxy"))]) + "-proxy"
}
