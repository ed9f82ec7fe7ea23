package gce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/option"

	"github.com/imamik/lbprov/internal/config"
	"github.com/imamik/lbprov/internal/resource"
)

const (
	testProject = "blank-test-419906"
	apiPrefix   = "/compute/v1/projects/" + testProject
	linkPrefix  = "https://www.googleapis.com/compute/v1/projects/" + testProject
)

// testServer mocks the Compute Engine REST API.
type testServer struct {
	server *httptest.Server
	mux    *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testServer{server: server, mux: mux}
}

func (ts *testServer) handle(pattern string, h http.HandlerFunc) {
	ts.mux.HandleFunc(pattern, h)
}

func (ts *testServer) client(t *testing.T) *Client {
	t.Helper()
	return ts.clientWithTimeouts(t, &config.Timeouts{
		RetryMaxAttempts:  2,
		RetryInitialDelay: time.Millisecond,
		APIRateLimit:      1000,
	})
}

func (ts *testServer) clientWithTimeouts(t *testing.T, timeouts *config.Timeouts) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), testProject, "us-central1", "us-central1-a",
		WithTimeouts(timeouts),
		WithAPIOptions(
			option.WithEndpoint(ts.server.URL+"/compute/v1/"),
			option.WithoutAuthentication(),
		),
	)
	require.NoError(t, err)
	return c
}

func jsonResponse(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func jsonError(w http.ResponseWriter, statusCode int, message string) {
	jsonResponse(w, statusCode, map[string]any{
		"error": map[string]any{"code": statusCode, "message": message},
	})
}

func decode(t *testing.T, r *http.Request, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(v))
}

func TestClient_GetNetwork(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.handle("GET "+apiPrefix+"/global/networks/net-a", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, &compute.Network{
			Name:     "net-a",
			SelfLink: linkPrefix + "/global/networks/net-a",
		})
	})
	ts.handle("GET "+apiPrefix+"/global/networks/missing", func(w http.ResponseWriter, _ *http.Request) {
		jsonError(w, http.StatusNotFound, "The resource 'missing' was not found")
	})
	c := ts.client(t)

	obs, err := c.Get(context.Background(), resource.KindNetwork, "net-a")
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.Equal(t, linkPrefix+"/global/networks/net-a", obs.Handle.Ref)
	assert.Equal(t, "false", obs.Fields["auto_create_subnetworks"])

	obs, err = c.Get(context.Background(), resource.KindNetwork, "missing")
	require.NoError(t, err)
	assert.Nil(t, obs)
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	var calls atomic.Int32
	ts.handle("GET "+apiPrefix+"/global/healthChecks/hc-a", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			jsonError(w, http.StatusServiceUnavailable, "backend unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, &compute.HealthCheck{
			Name:            "hc-a",
			Type:            "HTTP",
			SelfLink:        linkPrefix + "/global/healthChecks/hc-a",
			HttpHealthCheck: &compute.HTTPHealthCheck{PortSpecification: "USE_SERVING_PORT", RequestPath: "/"},
		})
	})

	obs, err := ts.client(t).Get(context.Background(), resource.KindHealthCheck, "hc-a")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "HTTP", obs.Fields["type"])
	assert.Equal(t, "USE_SERVING_PORT", obs.Fields["port_specification"])
	assert.Equal(t, "/", obs.Fields["request_path"])
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	var calls atomic.Int32
	ts.handle("GET "+apiPrefix+"/global/firewalls/fw", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		jsonError(w, http.StatusForbidden, "Required 'compute.firewalls.get' permission")
	})

	_, err := ts.client(t).Get(context.Background(), resource.KindFirewallRule, "fw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compute.firewalls.get")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_InsertSubnetAndRefresh(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	regionLink := linkPrefix + "/regions/us-central1"

	ts.handle("POST "+apiPrefix+"/regions/us-central1/subnetworks", func(w http.ResponseWriter, r *http.Request) {
		var body compute.Subnetwork
		decode(t, r, &body)
		assert.Equal(t, "sub-a", body.Name)
		assert.Equal(t, "10.1.2.0/24", body.IpCidrRange)
		assert.Equal(t, linkPrefix+"/global/networks/net-a", body.Network)
		jsonResponse(w, http.StatusOK, &compute.Operation{
			Name:       "operation-1",
			Status:     "RUNNING",
			Region:     regionLink,
			TargetLink: regionLink + "/subnetworks/sub-a",
		})
	})
	ts.handle("GET "+apiPrefix+"/regions/us-central1/operations/operation-1", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, &compute.Operation{
			Name:       "operation-1",
			Status:     "DONE",
			Region:     regionLink,
			TargetLink: regionLink + "/subnetworks/sub-a",
			Warnings: []*compute.OperationWarnings{
				{Code: "DEPRECATED_RESOURCE_USED", Message: "image is deprecated"},
			},
		})
	})
	c := ts.client(t)

	tk, err := c.Insert(context.Background(), resource.NewSpec(resource.KindSubnet, "sub-a", resource.Fields{
		"network":    linkPrefix + "/global/networks/net-a",
		"cidr_range": "10.1.2.0/24",
	}))
	require.NoError(t, err)
	assert.Equal(t, "operation-1", tk.ID)
	assert.Equal(t, resource.StatusRunning, tk.Status)
	assert.Equal(t, "regions/us-central1", tk.Location)

	tk, err = c.Refresh(context.Background(), tk)
	require.NoError(t, err)
	assert.True(t, tk.Done())
	assert.False(t, tk.Failed())
	assert.Equal(t, regionLink+"/subnetworks/sub-a", tk.TargetRef)
	assert.Equal(t, []resource.Warning{{Code: "DEPRECATED_RESOURCE_USED", Message: "image is deprecated"}}, tk.Warnings)
}

func TestClient_RefreshZonalFailure(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.handle("GET "+apiPrefix+"/zones/us-central1-a/operations/operation-7", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, &compute.Operation{
			Name:   "operation-7",
			Status: "DONE",
			Zone:   linkPrefix + "/zones/us-central1-a",
			Error: &compute.OperationError{Errors: []*compute.OperationErrorErrors{
				{Code: "ZONE_RESOURCE_POOL_EXHAUSTED", Message: "no capacity"},
			}},
		})
	})

	tk, err := ts.client(t).Refresh(context.Background(), resource.Ticket{
		ID:       "operation-7",
		Kind:     resource.KindInstanceGroup,
		Name:     "lb-group",
		Location: "zones/us-central1-a",
	})
	require.NoError(t, err)
	assert.True(t, tk.Failed())
	assert.Equal(t, "ZONE_RESOURCE_POOL_EXHAUSTED", tk.ErrorCode)
	assert.Equal(t, "no capacity", tk.ErrorMessage)
	assert.Equal(t, resource.KindInstanceGroup, tk.Kind)
}

func TestClient_UpdateBackendServiceKeepsExistingFields(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	hcLink := linkPrefix + "/global/healthChecks/hc-a"
	groupLink := linkPrefix + "/zones/us-central1-a/instanceGroups/lb-group"

	ts.handle("GET "+apiPrefix+"/global/backendServices/bs-a", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, &compute.BackendService{
			Name:                "bs-a",
			HealthChecks:        []string{hcLink},
			Protocol:            "HTTP",
			LoadBalancingScheme: "EXTERNAL",
			PortName:            "http",
			TimeoutSec:          30,
			Fingerprint:         "abc=",
		})
	})
	ts.handle("PUT "+apiPrefix+"/global/backendServices/bs-a", func(w http.ResponseWriter, r *http.Request) {
		var body compute.BackendService
		decode(t, r, &body)
		assert.Equal(t, "abc=", body.Fingerprint)
		assert.Equal(t, []string{hcLink}, body.HealthChecks)
		require.Len(t, body.Backends, 1)
		assert.Equal(t, groupLink, body.Backends[0].Group)
		jsonResponse(w, http.StatusOK, &compute.Operation{Name: "operation-2", Status: "DONE"})
	})

	spec := resource.NewSpec(resource.KindBackendService, "bs-a", resource.Fields{"backends": groupLink})
	tk, err := ts.client(t).Update(context.Background(),
		resource.Handle{Kind: resource.KindBackendService, Name: "bs-a", Ref: linkPrefix + "/global/backendServices/bs-a"}, spec)
	require.NoError(t, err)
	assert.True(t, tk.Done())
	assert.Equal(t, "", tk.Location)
}

func TestClient_UpdateRejectsImmutableKinds(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	spec := resource.NewSpec(resource.KindNetwork, "net-a", nil)

	_, err := ts.client(t).Update(context.Background(), resource.Handle{Kind: resource.KindNetwork, Name: "net-a"}, spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be updated")

	_, err = ts.client(t).Update(context.Background(), resource.Handle{Kind: resource.KindNetwork, Name: "other"}, spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestClient_ForwardingRuleUsesProxy(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	urlMapLink := linkPrefix + "/global/urlMaps/lb-url-map"
	proxyLink := linkPrefix + "/global/targetHttpProxies/lb-forwarding-rule-proxy"
	var proxyCreated atomic.Bool

	ts.handle("GET "+apiPrefix+"/global/targetHttpProxies/lb-forwarding-rule-proxy", func(w http.ResponseWriter, _ *http.Request) {
		if !proxyCreated.Load() {
			jsonError(w, http.StatusNotFound, "not found")
			return
		}
		jsonResponse(w, http.StatusOK, &compute.TargetHttpProxy{Name: "lb-forwarding-rule-proxy", UrlMap: urlMapLink, SelfLink: proxyLink})
	})
	ts.handle("POST "+apiPrefix+"/global/targetHttpProxies", func(w http.ResponseWriter, r *http.Request) {
		var body compute.TargetHttpProxy
		decode(t, r, &body)
		assert.Equal(t, urlMapLink, body.UrlMap)
		proxyCreated.Store(true)
		jsonResponse(w, http.StatusOK, &compute.Operation{Name: "operation-3", Status: "DONE", TargetLink: proxyLink})
	})
	ts.handle("POST "+apiPrefix+"/global/forwardingRules", func(w http.ResponseWriter, r *http.Request) {
		var body compute.ForwardingRule
		decode(t, r, &body)
		assert.Equal(t, proxyLink, body.Target)
		assert.Equal(t, "80", body.PortRange)
		jsonResponse(w, http.StatusOK, &compute.Operation{Name: "operation-4", Status: "PENDING"})
	})
	ts.handle("GET "+apiPrefix+"/global/forwardingRules/lb-forwarding-rule", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, &compute.ForwardingRule{
			Name:                "lb-forwarding-rule",
			Target:              proxyLink,
			PortRange:           "80-80",
			IPProtocol:          "TCP",
			LoadBalancingScheme: "EXTERNAL",
			SelfLink:            linkPrefix + "/global/forwardingRules/lb-forwarding-rule",
		})
	})
	c := ts.client(t)

	tk, err := c.Insert(context.Background(), resource.NewSpec(resource.KindForwardingRule, "lb-forwarding-rule", resource.Fields{
		"target":      urlMapLink,
		"port_range":  "80",
		"ip_protocol": "TCP",
	}))
	require.NoError(t, err)
	assert.Equal(t, resource.StatusPending, tk.Status)
	assert.True(t, proxyCreated.Load())

	obs, err := c.Get(context.Background(), resource.KindForwardingRule, "lb-forwarding-rule")
	require.NoError(t, err)
	assert.Equal(t, urlMapLink, obs.Fields["target"])
	assert.Equal(t, "80", obs.Fields["port_range"])
}

func TestClient_InstanceGroupHandleIsGroup(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	groupLink := linkPrefix + "/zones/us-central1-a/instanceGroups/lb-group"
	ts.handle("GET "+apiPrefix+"/zones/us-central1-a/instanceGroupManagers/lb-group", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, &compute.InstanceGroupManager{
			Name:             "lb-group",
			BaseInstanceName: "lb",
			TargetSize:       2,
			InstanceGroup:    groupLink,
			NamedPorts:       []*compute.NamedPort{{Name: "http", Port: 80}},
			SelfLink:         linkPrefix + "/zones/us-central1-a/instanceGroupManagers/lb-group",
		})
	})

	obs, err := ts.client(t).Get(context.Background(), resource.KindInstanceGroup, "lb-group")
	require.NoError(t, err)
	assert.Equal(t, groupLink, obs.Handle.Ref)
	assert.Equal(t, resource.Fields{
		"instance_template":  "",
		"base_instance_name": "lb",
		"target_size":        "2",
		"named_port":         "http",
		"port":               "80",
	}, obs.Fields)
}

func TestClient_UnsupportedKind(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	_, err := ts.client(t).Get(context.Background(), resource.Kind("router"), "r")
	assert.Error(t, err)
}

func TestClient_RetriedInsertReadsBackExistingResource(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	var inserts atomic.Int32
	ts.handle("POST "+apiPrefix+"/global/networks", func(w http.ResponseWriter, _ *http.Request) {
		if inserts.Add(1) == 1 {
			jsonError(w, http.StatusServiceUnavailable, "backend unavailable")
			return
		}
		jsonError(w, http.StatusConflict, "The resource 'net-a' already exists")
	})
	ts.handle("GET "+apiPrefix+"/global/networks/net-a", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, &compute.Network{Name: "net-a", SelfLink: linkPrefix + "/global/networks/net-a"})
	})
	c := ts.client(t)

	tk, err := c.Insert(context.Background(), resource.NewSpec(resource.KindNetwork, "net-a", nil))
	require.NoError(t, err)
	assert.Equal(t, int32(2), inserts.Load())
	assert.True(t, tk.Done())
	assert.False(t, tk.Failed())
	assert.Equal(t, linkPrefix+"/global/networks/net-a", tk.TargetRef)
}

func TestClient_InsertConflictOnFirstAttemptFails(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.handle("POST "+apiPrefix+"/global/networks", func(w http.ResponseWriter, _ *http.Request) {
		jsonError(w, http.StatusConflict, "The resource 'net-a' already exists")
	})
	c := ts.client(t)

	_, err := c.Insert(context.Background(), resource.NewSpec(resource.KindNetwork, "net-a", nil))
	require.Error(t, err)
	assert.True(t, isAlreadyExists(err))
}

func TestClient_ProxyWaitIsBoundedByOperationTimeout(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	running := &compute.Operation{Name: "operation-5", Status: "RUNNING"}
	ts.handle("GET "+apiPrefix+"/global/targetHttpProxies/lb-forwarding-rule-proxy", func(w http.ResponseWriter, _ *http.Request) {
		jsonError(w, http.StatusNotFound, "not found")
	})
	ts.handle("POST "+apiPrefix+"/global/targetHttpProxies", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, running)
	})
	ts.handle("POST "+apiPrefix+"/global/operations/operation-5/wait", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(5 * time.Millisecond)
		jsonResponse(w, http.StatusOK, running)
	})
	c := ts.clientWithTimeouts(t, &config.Timeouts{
		Operation:         50 * time.Millisecond,
		RetryMaxAttempts:  1,
		RetryInitialDelay: time.Millisecond,
		APIRateLimit:      1000,
	})

	start := time.Now()
	_, err := c.Insert(context.Background(), resource.NewSpec(resource.KindForwardingRule, "lb-forwarding-rule", resource.Fields{
		"target":     linkPrefix + "/global/urlMaps/lb-url-map",
		"port_range": "80",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create target HTTP proxy lb-forwarding-rule-proxy")
	assert.Less(t, time.Since(start), 5*time.Second)
}
