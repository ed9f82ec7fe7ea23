package config

import (
	"fmt"
	"net"
	"regexp"

	"github.com/imamik/lbprov/internal/resource"
)

// Default values applied by [Config.SetDefaults].
const (
	DefaultNamePrefix         = "lb"
	DefaultRegion             = "us-central1"
	DefaultZone               = "us-central1-a"
	DefaultCIDRRange          = "10.1.2.0/24"
	DefaultMachineType        = "e2-micro"
	DefaultSourceImageFamily  = "debian-11"
	DefaultSourceImageProject = "debian-cloud"
	DefaultPort               = 80
	DefaultTargetSize         = 2
	DefaultNamedPort          = "http"
	DefaultRequestPath        = "/"
)

// Config holds the load-balancer topology configuration.
type Config struct {
	Project            string `mapstructure:"project" yaml:"project"`
	Region             string `mapstructure:"region" yaml:"region"`
	Zone               string `mapstructure:"zone" yaml:"zone"`
	NetworkName        string `mapstructure:"network_name" yaml:"network_name"`
	SubnetName         string `mapstructure:"subnet_name" yaml:"subnet_name"`
	CIDRRange          string `mapstructure:"cidr_range" yaml:"cidr_range"`
	MachineType        string `mapstructure:"machine_type" yaml:"machine_type"`
	SourceImageFamily  string `mapstructure:"source_image_family" yaml:"source_image_family"`
	SourceImageProject string `mapstructure:"source_image_project" yaml:"source_image_project"`
	Port               int    `mapstructure:"port" yaml:"port"`

	// NamePrefix is prepended to every generated resource name.
	NamePrefix string `mapstructure:"name_prefix" yaml:"name_prefix"`
	// DeterministicNames appends a suffix derived from project, region and
	// prefix so several topologies can share a project.
	DeterministicNames bool `mapstructure:"deterministic_names" yaml:"deterministic_names"`

	Firewall      FirewallConfig      `mapstructure:"firewall" yaml:"firewall"`
	HealthCheck   HealthCheckConfig   `mapstructure:"health_check" yaml:"health_check"`
	InstanceGroup InstanceGroupConfig `mapstructure:"instance_group" yaml:"instance_group"`
}

// FirewallConfig controls the rule admitting load-balancer traffic.
type FirewallConfig struct {
	SourceRanges []string `mapstructure:"source_ranges" yaml:"source_ranges"`
	TargetTags   []string `mapstructure:"target_tags" yaml:"target_tags"`
}

// HealthCheckConfig controls the HTTP health check.
type HealthCheckConfig struct {
	RequestPath string `mapstructure:"request_path" yaml:"request_path"`
}

// InstanceGroupConfig controls the managed instance group.
type InstanceGroupConfig struct {
	TargetSize int    `mapstructure:"target_size" yaml:"target_size"`
	NamedPort  string `mapstructure:"named_port" yaml:"named_port"`
}

// Default returns a configuration with every default applied for project.
func Default(project string) *Config {
	cfg := &Config{Project: project}
	cfg.SetDefaults()
	cfg.InstanceGroup.TargetSize = DefaultTargetSize
	return cfg
}

// SetDefaults fills unset fields. TargetSize is left alone because zero is a
// valid size; LoadFile defaults it only when the key is absent.
func (c *Config) SetDefaults() {
	if c.NamePrefix == "" {
		c.NamePrefix = DefaultNamePrefix
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.Zone == "" {
		c.Zone = DefaultZone
	}
	if c.NetworkName == "" {
		c.NetworkName = c.NamePrefix + "-network"
	}
	if c.SubnetName == "" {
		c.SubnetName = c.NamePrefix + "-subnet"
	}
	if c.CIDRRange == "" {
		c.CIDRRange = DefaultCIDRRange
	}
	if c.MachineType == "" {
		c.MachineType = DefaultMachineType
	}
	if c.SourceImageFamily == "" {
		c.SourceImageFamily = DefaultSourceImageFamily
	}
	if c.SourceImageProject == "" {
		c.SourceImageProject = DefaultSourceImageProject
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if len(c.Firewall.SourceRanges) == 0 {
		c.Firewall.SourceRanges = []string{"0.0.0.0/0"}
	}
	if c.HealthCheck.RequestPath == "" {
		c.HealthCheck.RequestPath = DefaultRequestPath
	}
	if c.InstanceGroup.NamedPort == "" {
		c.InstanceGroup.NamedPort = DefaultNamedPort
	}
}

var (
	projectRE = regexp.MustCompile(`^[a-z][-a-z0-9]{4,28}[a-z0-9]$`)
	prefixRE  = regexp.MustCompile(`^[a-z]([-a-z0-9]{0,30}[a-z0-9])?$`)
)

// Validate checks the configuration and returns every problem found as
// resource.ValidationErrors. Resource-level rules are applied again when the
// plan is built.
func (c *Config) Validate() error {
	var errs resource.ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, resource.ValidationError{
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
			Severity: resource.SeverityError,
		})
	}

	switch {
	case c.Project == "":
		add("project", "project is required")
	case !projectRE.MatchString(c.Project):
		add("project", "invalid project id %q", c.Project)
	}
	if !prefixRE.MatchString(c.NamePrefix) {
		add("name_prefix", "invalid name_prefix %q: must be a lowercase label of at most 32 characters", c.NamePrefix)
	}
	c.validateLocation(add)
	c.validateNetwork(add)
	if c.Port < 1 || c.Port > 65535 {
		add("port", "port %d out of range [1, 65535]", c.Port)
	}
	if c.InstanceGroup.TargetSize < 0 {
		add("instance_group.target_size", "instance_group.target_size must not be negative")
	}
	return errs.Err()
}

type addFunc func(field, format string, args ...any)

func (c *Config) validateLocation(add addFunc) {
	if c.Region == "" {
		add("region", "region is required")
	}
	if c.Zone == "" {
		add("zone", "zone is required")
		return
	}
	// Zones are named <region>-<letter>.
	if c.Region != "" && (len(c.Zone) <= len(c.Region) || c.Zone[:len(c.Region)+1] != c.Region+"-") {
		add("zone", "zone %q is not in region %q", c.Zone, c.Region)
	}
}

func (c *Config) validateNetwork(add addFunc) {
	ip, _, err := net.ParseCIDR(c.CIDRRange)
	if err != nil || ip.To4() == nil {
		add("cidr_range", "invalid cidr_range %q: must be an IPv4 CIDR block", c.CIDRRange)
	}
	for _, r := range c.Firewall.SourceRanges {
		if _, _, err := net.ParseCIDR(r); err != nil {
			add("firewall.source_ranges", "invalid firewall source range %q: %v", r, err)
		}
	}
}
