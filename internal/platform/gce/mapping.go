package gce

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	compute "google.golang.org/api/compute/v1"

	"github.com/imamik/lbprov/internal/resource"
	"github.com/imamik/lbprov/internal/util/naming"
)

// The apply functions copy the fields set in f onto an API object. They are
// used both to build new resources and to patch fetched ones, so unset fields
// leave the object untouched.

func applyNetwork(n *compute.Network, f resource.Fields) {
	if v := f["auto_create_subnetworks"]; v != "" {
		n.AutoCreateSubnetworks = v == "true"
		n.ForceSendFields = append(n.ForceSendFields, "AutoCreateSubnetworks")
	}
}

func networkFields(n *compute.Network) resource.Fields {
	return resource.Fields{
		"auto_create_subnetworks": strconv.FormatBool(n.AutoCreateSubnetworks),
	}
}

func applySubnet(s *compute.Subnetwork, f resource.Fields) {
	setString(&s.Network, f["network"])
	setString(&s.IpCidrRange, f["cidr_range"])
}

func subnetFields(s *compute.Subnetwork) resource.Fields {
	return resource.Fields{
		"network":    s.Network,
		"cidr_range": s.IpCidrRange,
	}
}

func applyFirewall(fw *compute.Firewall, f resource.Fields) {
	setString(&fw.Network, f["network"])
	setString(&fw.Direction, f["direction"])

	if f["protocol"] != "" || f["ports"] != "" {
		allowed := &compute.FirewallAllowed{}
		if len(fw.Allowed) > 0 {
			allowed = fw.Allowed[0]
		}
		setString(&allowed.IPProtocol, f["protocol"])
		if ports := resource.SplitList(f["ports"]); len(ports) > 0 {
			allowed.Ports = ports
		}
		fw.Allowed = []*compute.FirewallAllowed{allowed}
	}
	if v := resource.SplitList(f["source_ranges"]); len(v) > 0 {
		fw.SourceRanges = v
	}
	if v := resource.SplitList(f["target_tags"]); len(v) > 0 {
		fw.TargetTags = v
	}
}

func firewallFields(fw *compute.Firewall) resource.Fields {
	fields := resource.Fields{
		"network":       fw.Network,
		"direction":     fw.Direction,
		"source_ranges": resource.JoinList(fw.SourceRanges...),
		"target_tags":   resource.JoinList(fw.TargetTags...),
	}
	if len(fw.Allowed) > 0 {
		fields["protocol"] = fw.Allowed[0].IPProtocol
		fields["ports"] = resource.JoinList(fw.Allowed[0].Ports...)
	}
	return fields
}

func applyHealthCheck(hc *compute.HealthCheck, f resource.Fields) error {
	setString(&hc.Type, f["type"])
	if err := setInt(&hc.CheckIntervalSec, "check_interval_sec", f["check_interval_sec"]); err != nil {
		return err
	}
	if err := setInt(&hc.TimeoutSec, "timeout_sec", f["timeout_sec"]); err != nil {
		return err
	}

	var port int64
	if err := setInt(&port, "port", f["port"]); err != nil {
		return err
	}
	spec := f["port_specification"]

	switch hc.Type {
	case "HTTP":
		if hc.HttpHealthCheck == nil {
			hc.HttpHealthCheck = &compute.HTTPHealthCheck{}
		}
		setString(&hc.HttpHealthCheck.PortSpecification, spec)
		setString(&hc.HttpHealthCheck.RequestPath, f["request_path"])
		if port > 0 {
			hc.HttpHealthCheck.Port = port
		}
	case "HTTPS":
		if hc.HttpsHealthCheck == nil {
			hc.HttpsHealthCheck = &compute.HTTPSHealthCheck{}
		}
		setString(&hc.HttpsHealthCheck.PortSpecification, spec)
		setString(&hc.HttpsHealthCheck.RequestPath, f["request_path"])
		if port > 0 {
			hc.HttpsHealthCheck.Port = port
		}
	case "TCP":
		if hc.TcpHealthCheck == nil {
			hc.TcpHealthCheck = &compute.TCPHealthCheck{}
		}
		setString(&hc.TcpHealthCheck.PortSpecification, spec)
		if port > 0 {
			hc.TcpHealthCheck.Port = port
		}
	default:
		return fmt.Errorf("unsupported health check type %q", hc.Type)
	}
	return nil
}

func healthCheckFields(hc *compute.HealthCheck) resource.Fields {
	fields := resource.Fields{
		"type":               hc.Type,
		"check_interval_sec": formatInt(hc.CheckIntervalSec),
		"timeout_sec":        formatInt(hc.TimeoutSec),
	}
	var spec, requestPath string
	var port int64
	switch {
	case hc.HttpHealthCheck != nil:
		spec, requestPath, port = hc.HttpHealthCheck.PortSpecification, hc.HttpHealthCheck.RequestPath, hc.HttpHealthCheck.Port
	case hc.HttpsHealthCheck != nil:
		spec, requestPath, port = hc.HttpsHealthCheck.PortSpecification, hc.HttpsHealthCheck.RequestPath, hc.HttpsHealthCheck.Port
	case hc.TcpHealthCheck != nil:
		spec, port = hc.TcpHealthCheck.PortSpecification, hc.TcpHealthCheck.Port
	}
	fields["port_specification"] = spec
	fields["request_path"] = requestPath
	fields["port"] = formatInt(port)
	return fields
}

func applyBackendService(bs *compute.BackendService, f resource.Fields) error {
	if v := resource.SplitList(f["health_checks"]); len(v) > 0 {
		bs.HealthChecks = v
	}
	setString(&bs.Protocol, f["protocol"])
	setString(&bs.LoadBalancingScheme, f["load_balancing_scheme"])
	setString(&bs.PortName, f["port_name"])
	if err := setInt(&bs.TimeoutSec, "timeout_sec", f["timeout_sec"]); err != nil {
		return err
	}

	if groups := resource.SplitList(f["backends"]); len(groups) > 0 {
		existing := make(map[string]*compute.Backend, len(bs.Backends))
		for _, b := range bs.Backends {
			existing[b.Group] = b
		}
		backends := make([]*compute.Backend, 0, len(groups))
		for _, g := range groups {
			if b, ok := existing[g]; ok {
				backends = append(backends, b)
				continue
			}
			backends = append(backends, &compute.Backend{Group: g, BalancingMode: "UTILIZATION"})
		}
		bs.Backends = backends
	}
	return nil
}

func backendServiceFields(bs *compute.BackendService) resource.Fields {
	groups := make([]string, 0, len(bs.Backends))
	for _, b := range bs.Backends {
		groups = append(groups, b.Group)
	}
	return resource.Fields{
		"health_checks":         resource.JoinList(bs.HealthChecks...),
		"protocol":              bs.Protocol,
		"load_balancing_scheme": bs.LoadBalancingScheme,
		"port_name":             bs.PortName,
		"timeout_sec":           formatInt(bs.TimeoutSec),
		"backends":              resource.JoinList(groups...),
	}
}

func applyInstanceTemplate(it *compute.InstanceTemplate, f resource.Fields) {
	props := it.Properties
	if props == nil {
		props = &compute.InstanceProperties{}
		it.Properties = props
	}
	setString(&props.MachineType, f["machine_type"])

	if family := f["source_image_family"]; family != "" {
		project := f["source_image_project"]
		props.Disks = []*compute.AttachedDisk{{
			Boot:       true,
			AutoDelete: true,
			InitializeParams: &compute.AttachedDiskInitializeParams{
				SourceImage: fmt.Sprintf("projects/%s/global/images/family/%s", project, family),
			},
		}}
	}

	if f["network"] != "" || f["subnetwork"] != "" {
		props.NetworkInterfaces = []*compute.NetworkInterface{{
			Network:    f["network"],
			Subnetwork: f["subnetwork"],
			AccessConfigs: []*compute.AccessConfig{{
				Name: "External NAT",
				Type: "ONE_TO_ONE_NAT",
			}},
		}}
	}
	if tags := resource.SplitList(f["tags"]); len(tags) > 0 {
		props.Tags = &compute.Tags{Items: tags}
	}
}

func instanceTemplateFields(it *compute.InstanceTemplate) resource.Fields {
	fields := resource.Fields{}
	props := it.Properties
	if props == nil {
		return fields
	}
	fields["machine_type"] = props.MachineType
	for _, d := range props.Disks {
		if d.Boot && d.InitializeParams != nil {
			fields["source_image_project"], fields["source_image_family"] = splitImageFamily(d.InitializeParams.SourceImage)
		}
	}
	if len(props.NetworkInterfaces) > 0 {
		fields["network"] = props.NetworkInterfaces[0].Network
		fields["subnetwork"] = props.NetworkInterfaces[0].Subnetwork
	}
	if props.Tags != nil {
		fields["tags"] = resource.JoinList(props.Tags.Items...)
	}
	return fields
}

// splitImageFamily parses ".../projects/{project}/global/images/family/{family}".
func splitImageFamily(image string) (project, family string) {
	before, family, ok := strings.Cut(image, "/global/images/family/")
	if !ok {
		return "", ""
	}
	return path.Base(before), family
}

func applyInstanceGroup(igm *compute.InstanceGroupManager, f resource.Fields) error {
	setString(&igm.InstanceTemplate, f["instance_template"])
	setString(&igm.BaseInstanceName, f["base_instance_name"])
	if v := f["target_size"]; v != "" {
		if err := setInt(&igm.TargetSize, "target_size", v); err != nil {
			return err
		}
		igm.ForceSendFields = append(igm.ForceSendFields, "TargetSize")
	}

	if f["named_port"] != "" || f["port"] != "" {
		np := &compute.NamedPort{}
		if len(igm.NamedPorts) > 0 {
			np = igm.NamedPorts[0]
		}
		setString(&np.Name, f["named_port"])
		if err := setInt(&np.Port, "port", f["port"]); err != nil {
			return err
		}
		igm.NamedPorts = []*compute.NamedPort{np}
	}
	return nil
}

func instanceGroupFields(igm *compute.InstanceGroupManager) resource.Fields {
	fields := resource.Fields{
		"instance_template":  igm.InstanceTemplate,
		"base_instance_name": igm.BaseInstanceName,
		"target_size":        strconv.FormatInt(igm.TargetSize, 10),
	}
	if len(igm.NamedPorts) > 0 {
		fields["named_port"] = igm.NamedPorts[0].Name
		fields["port"] = formatInt(igm.NamedPorts[0].Port)
	}
	return fields
}

func applyURLMap(um *compute.UrlMap, f resource.Fields) {
	setString(&um.DefaultService, f["default_service"])
}

func urlMapFields(um *compute.UrlMap) resource.Fields {
	return resource.Fields{"default_service": um.DefaultService}
}

func applyForwardingRule(fr *compute.ForwardingRule, f resource.Fields) {
	setString(&fr.PortRange, f["port_range"])
	setString(&fr.IPProtocol, f["ip_protocol"])
	setString(&fr.LoadBalancingScheme, f["load_balancing_scheme"])
}

func forwardingRuleFields(fr *compute.ForwardingRule) resource.Fields {
	return resource.Fields{
		"target":                fr.Target,
		"port_range":            normalizePortRange(fr.PortRange),
		"ip_protocol":           fr.IPProtocol,
		"load_balancing_scheme": fr.LoadBalancingScheme,
	}
}

// normalizePortRange turns the API's "80-80" into "80".
func normalizePortRange(r string) string {
	if lo, hi, ok := strings.Cut(r, "-"); ok && lo == hi {
		return lo
	}
	return r
}

func proxyNameFor(rule string) string {
	return naming.TargetProxy(rule)
}

// proxyName extracts the proxy name from a target HTTP proxy link.
func proxyName(target string) (string, bool) {
	if !strings.Contains(target, "/targetHttpProxies/") {
		return "", false
	}
	return path.Base(target), true
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int64, field, v string) error {
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", field, v)
	}
	*dst = n
	return nil
}

func formatInt(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}
