// Package config defines the configuration consumed by the load-balancer
// plan builder.
//
// [Config] is loaded from YAML with [LoadFile], defaulted and validated.
// Operation timeouts and API tuning live in [Timeouts], which is read from
// LBPROV_* environment variables.
package config
