package gce

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/option"

	"github.com/imamik/lbprov/internal/config"
	"github.com/imamik/lbprov/internal/util/retry"
)

// Client implements provisioning.Provider against Compute Engine.
type Client struct {
	service  *compute.Service
	project  string
	region   string
	zone     string
	timeouts *config.Timeouts
	limiter  *rate.Limiter

	apiOptions []option.ClientOption
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeouts sets retry and rate limit tuning.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *Client) {
		c.timeouts = t
	}
}

// WithAPIOptions passes options to the compute service, e.g. credentials or
// a custom endpoint.
func WithAPIOptions(opts ...option.ClientOption) ClientOption {
	return func(c *Client) {
		c.apiOptions = append(c.apiOptions, opts...)
	}
}

// NewClient creates a Client for resources in project, region and zone.
// Credentials come from the environment unless overridden with WithAPIOptions.
func NewClient(ctx context.Context, project, region, zone string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		project:  project,
		region:   region,
		zone:     zone,
		timeouts: config.LoadTimeouts(),
	}
	for _, opt := range opts {
		opt(c)
	}

	service, err := compute.NewService(ctx, c.apiOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create compute service: %w", err)
	}
	c.service = service

	burst := int(c.timeouts.APIRateLimit)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(c.timeouts.APIRateLimit), burst)
	return c, nil
}

// Project returns the project the client provisions into.
func (c *Client) Project() string { return c.project }

// call runs fn under the rate limiter, retrying transient API errors.
func (c *Client) call(ctx context.Context, fn func() error) error {
	return retry.WithExponentialBackoff(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Fatal(err)
		}
		return fn()
	},
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay),
		retry.WithRetryIf(isTransient),
	)
}
