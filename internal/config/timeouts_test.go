package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var timeoutEnvVars = []string{
	"LBPROV_TIMEOUT_OPERATION",
	"LBPROV_POLL_INITIAL_INTERVAL",
	"LBPROV_POLL_MAX_INTERVAL",
	"LBPROV_RETRY_MAX_ATTEMPTS",
	"LBPROV_RETRY_INITIAL_DELAY",
	"LBPROV_API_RATE_LIMIT",
}

func clearTimeoutEnvVars(t *testing.T) {
	t.Helper()
	for _, v := range timeoutEnvVars {
		t.Setenv(v, "")
		_ = os.Unsetenv(v)
	}
}

func TestLoadTimeouts_Defaults(t *testing.T) {
	clearTimeoutEnvVars(t)

	timeouts := LoadTimeouts()

	assert.Equal(t, 5*time.Minute, timeouts.Operation)
	assert.Equal(t, 1*time.Second, timeouts.PollInitialInterval)
	assert.Equal(t, 10*time.Second, timeouts.PollMaxInterval)
	assert.Equal(t, 5, timeouts.RetryMaxAttempts)
	assert.Equal(t, 1*time.Second, timeouts.RetryInitialDelay)
	assert.InDelta(t, 10.0, timeouts.APIRateLimit, 0.001)
}

func TestLoadTimeouts_FromEnv(t *testing.T) {
	clearTimeoutEnvVars(t)
	t.Setenv("LBPROV_TIMEOUT_OPERATION", "90s")
	t.Setenv("LBPROV_POLL_INITIAL_INTERVAL", "250ms")
	t.Setenv("LBPROV_POLL_MAX_INTERVAL", "2s")
	t.Setenv("LBPROV_RETRY_MAX_ATTEMPTS", "2")
	t.Setenv("LBPROV_RETRY_INITIAL_DELAY", "100ms")
	t.Setenv("LBPROV_API_RATE_LIMIT", "2.5")

	timeouts := LoadTimeouts()

	assert.Equal(t, 90*time.Second, timeouts.Operation)
	assert.Equal(t, 250*time.Millisecond, timeouts.PollInitialInterval)
	assert.Equal(t, 2*time.Second, timeouts.PollMaxInterval)
	assert.Equal(t, 2, timeouts.RetryMaxAttempts)
	assert.Equal(t, 100*time.Millisecond, timeouts.RetryInitialDelay)
	assert.InDelta(t, 2.5, timeouts.APIRateLimit, 0.001)
}

func TestLoadTimeouts_InvalidValuesFallBack(t *testing.T) {
	clearTimeoutEnvVars(t)
	t.Setenv("LBPROV_TIMEOUT_OPERATION", "soon")
	t.Setenv("LBPROV_RETRY_MAX_ATTEMPTS", "many")
	t.Setenv("LBPROV_API_RATE_LIMIT", "-1")

	timeouts := LoadTimeouts()

	assert.Equal(t, 5*time.Minute, timeouts.Operation)
	assert.Equal(t, 5, timeouts.RetryMaxAttempts)
	assert.InDelta(t, 10.0, timeouts.APIRateLimit, 0.001)
}
