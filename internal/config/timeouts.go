package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds operation and API tuning values.
// These values can be customized via environment variables.
type Timeouts struct {
	Operation           time.Duration // Maximum wait for a single provider operation
	PollInitialInterval time.Duration // First delay between operation polls
	PollMaxInterval     time.Duration // Upper bound for the poll backoff
	RetryMaxAttempts    int           // Retries of transient API errors
	RetryInitialDelay   time.Duration // Initial delay between API retries
	APIRateLimit        float64       // Provider API requests per second
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - LBPROV_TIMEOUT_OPERATION (default: 5m)
//   - LBPROV_POLL_INITIAL_INTERVAL (default: 1s)
//   - LBPROV_POLL_MAX_INTERVAL (default: 10s)
//   - LBPROV_RETRY_MAX_ATTEMPTS (default: 5)
//   - LBPROV_RETRY_INITIAL_DELAY (default: 1s)
//   - LBPROV_API_RATE_LIMIT (default: 10)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Operation:           parseDuration("LBPROV_TIMEOUT_OPERATION", 5*time.Minute),
		PollInitialInterval: parseDuration("LBPROV_POLL_INITIAL_INTERVAL", 1*time.Second),
		PollMaxInterval:     parseDuration("LBPROV_POLL_MAX_INTERVAL", 10*time.Second),
		RetryMaxAttempts:    parseInt("LBPROV_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay:   parseDuration("LBPROV_RETRY_INITIAL_DELAY", 1*time.Second),
		APIRateLimit:        parseFloat("LBPROV_API_RATE_LIMIT", 10),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

func parseFloat(envVar string, defaultVal float64) float64 {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}

	return f
}
