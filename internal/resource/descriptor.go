package resource

import (
	"fmt"
	"strconv"
)

// FieldType is the value type a field is parsed as before validation.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeBool
	TypeList
)

// FieldDef describes one configuration field of a kind.
type FieldDef struct {
	Name     string
	Type     FieldType
	Required bool
	Default  string
	// Rule is a validator tag applied to the parsed value.
	Rule string
	// Ref names the kind whose handle fills this field when it is left empty.
	Ref Kind
	// Compare marks fields that cannot change on an existing resource.
	Compare bool
	// Mutable marks fields an update call can reconcile.
	Mutable bool
}

// Descriptor is the static definition of a resource kind.
type Descriptor struct {
	Kind      Kind
	Scope     Scope
	Updatable bool
	Fields    []FieldDef

	// check validates combinations of fields after per-field rules pass.
	check func(f Fields) []fieldProblem
}

type fieldProblem struct {
	field   string
	message string
}

// Field returns the definition of the named field.
func (d *Descriptor) Field(name string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// RefFields returns the fields filled from other resources' handles.
func (d *Descriptor) RefFields() []FieldDef {
	var refs []FieldDef
	for _, f := range d.Fields {
		if f.Ref != "" {
			refs = append(refs, f)
		}
	}
	return refs
}

// Lookup returns the descriptor registered for kind.
func Lookup(kind Kind) (*Descriptor, error) {
	d, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	return d, nil
}

// MustLookup is Lookup for kinds known at compile time.
func MustLookup(kind Kind) *Descriptor {
	d, err := Lookup(kind)
	if err != nil {
		panic(err)
	}
	return d
}

var registry = map[Kind]*Descriptor{
	KindNetwork: {
		Kind:  KindNetwork,
		Scope: ScopeGlobal,
		Fields: []FieldDef{
			{Name: "auto_create_subnetworks", Type: TypeBool, Default: "false", Compare: true},
		},
	},
	KindSubnet: {
		Kind:  KindSubnet,
		Scope: ScopeRegional,
		Fields: []FieldDef{
			{Name: "network", Required: true, Ref: KindNetwork, Compare: true},
			{Name: "cidr_range", Required: true, Rule: "cidrv4", Compare: true},
		},
	},
	KindFirewallRule: {
		Kind:      KindFirewallRule,
		Scope:     ScopeGlobal,
		Updatable: true,
		Fields: []FieldDef{
			{Name: "network", Required: true, Ref: KindNetwork, Compare: true},
			{Name: "direction", Default: "INGRESS", Rule: "oneof=INGRESS EGRESS", Compare: true},
			{Name: "protocol", Default: "tcp", Rule: "oneof=tcp udp icmp", Mutable: true},
			{Name: "ports", Type: TypeList, Rule: "dive,portrange", Mutable: true},
			{Name: "source_ranges", Type: TypeList, Default: "0.0.0.0/0", Rule: "dive,cidrv4", Mutable: true},
			{Name: "target_tags", Type: TypeList, Rule: "dive,gcename", Mutable: true},
		},
		check: func(f Fields) []fieldProblem {
			if f["protocol"] == "icmp" && f["ports"] != "" {
				return []fieldProblem{{"ports", "ports cannot be set for icmp"}}
			}
			return nil
		},
	},
	KindHealthCheck: {
		Kind:      KindHealthCheck,
		Scope:     ScopeGlobal,
		Updatable: true,
		Fields: []FieldDef{
			{Name: "type", Default: "HTTP", Rule: "oneof=HTTP HTTPS TCP", Compare: true},
			{Name: "port_specification", Default: "USE_SERVING_PORT", Rule: "oneof=USE_FIXED_PORT USE_NAMED_PORT USE_SERVING_PORT", Mutable: true},
			{Name: "port", Type: TypeInt, Rule: "min=1,max=65535", Mutable: true},
			{Name: "request_path", Rule: "startswith=/", Mutable: true},
			{Name: "check_interval_sec", Type: TypeInt, Default: "5", Rule: "min=1,max=300", Mutable: true},
			{Name: "timeout_sec", Type: TypeInt, Default: "5", Rule: "min=1,max=300", Mutable: true},
		},
		check: func(f Fields) []fieldProblem {
			var problems []fieldProblem
			if f["port_specification"] == "USE_FIXED_PORT" && f["port"] == "" {
				problems = append(problems, fieldProblem{"port", "port is required with USE_FIXED_PORT"})
			}
			if f["port_specification"] != "USE_FIXED_PORT" && f["port"] != "" {
				problems = append(problems, fieldProblem{"port", "port is only allowed with USE_FIXED_PORT"})
			}
			if f["type"] == "TCP" && f["request_path"] != "" {
				problems = append(problems, fieldProblem{"request_path", "request_path is not supported for TCP checks"})
			}
			interval, _ := strconv.Atoi(f["check_interval_sec"])
			timeout, _ := strconv.Atoi(f["timeout_sec"])
			if interval > 0 && timeout > interval {
				problems = append(problems, fieldProblem{"timeout_sec", "timeout_sec must not exceed check_interval_sec"})
			}
			return problems
		},
	},
	KindBackendService: {
		Kind:      KindBackendService,
		Scope:     ScopeGlobal,
		Updatable: true,
		Fields: []FieldDef{
			{Name: "health_checks", Type: TypeList, Required: true, Ref: KindHealthCheck, Mutable: true},
			{Name: "protocol", Default: "HTTP", Rule: "oneof=HTTP HTTPS TCP", Compare: true},
			{Name: "load_balancing_scheme", Default: "EXTERNAL", Rule: "oneof=EXTERNAL EXTERNAL_MANAGED", Compare: true},
			{Name: "port_name", Default: "http", Rule: "gcename", Mutable: true},
			{Name: "timeout_sec", Type: TypeInt, Default: "30", Rule: "min=1,max=86400", Mutable: true},
			{Name: "backends", Type: TypeList, Ref: KindInstanceGroup, Mutable: true},
		},
	},
	KindInstanceTemplate: {
		Kind:  KindInstanceTemplate,
		Scope: ScopeGlobal,
		Fields: []FieldDef{
			{Name: "machine_type", Default: "e2-micro", Rule: "gcename", Compare: true},
			{Name: "source_image_family", Default: "debian-11", Rule: "gcename"},
			{Name: "source_image_project", Default: "debian-cloud", Rule: "min=1"},
			{Name: "network", Required: true, Ref: KindNetwork, Compare: true},
			{Name: "subnetwork", Required: true, Ref: KindSubnet, Compare: true},
			{Name: "tags", Type: TypeList, Rule: "dive,gcename", Compare: true},
		},
	},
	KindInstanceGroup: {
		Kind:      KindInstanceGroup,
		Scope:     ScopeZonal,
		Updatable: true,
		Fields: []FieldDef{
			{Name: "instance_template", Required: true, Ref: KindInstanceTemplate, Mutable: true},
			{Name: "base_instance_name", Rule: "gcename"},
			{Name: "target_size", Type: TypeInt, Default: "2", Rule: "min=0,max=1000", Mutable: true},
			{Name: "named_port", Default: "http", Rule: "gcename", Mutable: true},
			{Name: "port", Type: TypeInt, Default: "80", Rule: "min=1,max=65535", Mutable: true},
		},
	},
	KindURLMap: {
		Kind:      KindURLMap,
		Scope:     ScopeGlobal,
		Updatable: true,
		Fields: []FieldDef{
			{Name: "default_service", Required: true, Ref: KindBackendService, Mutable: true},
		},
	},
	KindForwardingRule: {
		Kind:  KindForwardingRule,
		Scope: ScopeGlobal,
		Fields: []FieldDef{
			{Name: "target", Required: true, Ref: KindURLMap, Compare: true},
			{Name: "port_range", Default: "80", Rule: "portrange", Compare: true},
			{Name: "ip_protocol", Default: "TCP", Rule: "oneof=TCP UDP", Compare: true},
			{Name: "load_balancing_scheme", Default: "EXTERNAL", Rule: "oneof=EXTERNAL EXTERNAL_MANAGED", Compare: true},
		},
	},
}

// Normalize returns value in the canonical form used for comparison. List
// fields are order-insensitive.
func (d *Descriptor) Normalize(field, value string) string {
	if f, ok := d.Field(field); ok && f.Type == TypeList {
		return normalizeList(value)
	}
	return value
}
