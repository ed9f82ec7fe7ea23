// Package naming provides consistent naming functions for load-balancer resources.
//
// Resource names follow the pattern {prefix}-{role}, optionally followed by a
// short suffix derived from the deployment identity. The suffix is stable for
// a given project, region and prefix so that re-runs find the same resources.
package naming
