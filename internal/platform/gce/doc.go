// Package gce implements the provisioning provider for Compute Engine.
//
// Client maps resource kinds onto the compute/v1 REST API. Global, regional
// and zonal operations are returned as tickets and refreshed through the
// matching operations collection. Every API call passes a shared rate limiter
// and is retried on quota and server errors.
//
// Forwarding rules cannot point at a URL map directly, so Insert creates a
// target HTTP proxy for the URL map first and Get reports the proxy's URL map
// as the rule's target.
package gce
