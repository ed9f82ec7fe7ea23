package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/imamik/lbprov/internal/resource"
)

// Poller waits for provider operations to reach a terminal state.
type Poller struct {
	provider        Provider
	observer        Observer
	metrics         *Metrics
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewPoller creates a Poller with a 1s initial and 10s maximum poll interval.
func NewPoller(provider Provider, observer Observer, metrics *Metrics) *Poller {
	if observer == nil {
		observer = NopObserver()
	}
	return &Poller{
		provider:        provider,
		observer:        observer,
		metrics:         metrics,
		initialInterval: 1 * time.Second,
		maxInterval:     10 * time.Second,
	}
}

// SetIntervals changes the backoff bounds between refreshes.
func (p *Poller) SetIntervals(initial, maxInterval time.Duration) {
	if initial > 0 {
		p.initialInterval = initial
	}
	if maxInterval >= p.initialInterval {
		p.maxInterval = maxInterval
	}
}

// Await blocks until ticket is done, the timeout elapses or ctx ends.
// A timeout of zero or less waits indefinitely. Warnings attached to a
// successful operation are emitted as events and returned; they never fail it.
func (p *Poller) Await(ctx context.Context, ticket resource.Ticket, friendlyName string, timeout time.Duration) (resource.Handle, []resource.Warning, error) {
	start := time.Now()
	kind := string(ticket.Kind)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialInterval
	b.MaxInterval = p.maxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	timedOut := func() error {
		elapsed := time.Since(start)
		p.metrics.recordWait(kind, "timeout", elapsed)
		return &TimeoutError{Kind: ticket.Kind, Name: ticket.Name, TicketID: ticket.ID, Elapsed: elapsed}
	}
	stopped := func(cause error) error {
		p.metrics.recordWait(kind, "cancelled", time.Since(start))
		return cancelled(cause)
	}

	current := ticket
	for {
		if err := ctx.Err(); err != nil {
			return resource.Handle{}, nil, stopped(err)
		}
		if current.Done() {
			return p.finish(ticket, current, friendlyName, start)
		}

		wait := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			wait.Stop()
			return resource.Handle{}, nil, stopped(ctx.Err())
		case <-deadline:
			wait.Stop()
			return resource.Handle{}, nil, timedOut()
		case <-wait.C:
		}

		refreshed, err := p.provider.Refresh(ctx, current)
		if err != nil {
			if ctx.Err() != nil {
				return resource.Handle{}, nil, stopped(ctx.Err())
			}
			p.metrics.recordWait(kind, "error", time.Since(start))
			return resource.Handle{}, nil, fmt.Errorf("failed to refresh operation %s for %s: %w", current.ID, friendlyName, err)
		}
		current = refreshed
	}
}

func (p *Poller) finish(initial, final resource.Ticket, friendlyName string, start time.Time) (resource.Handle, []resource.Warning, error) {
	kind := string(initial.Kind)
	elapsed := time.Since(start)

	if final.Failed() {
		p.metrics.recordWait(kind, "failed", elapsed)
		return resource.Handle{}, nil, &OperationError{
			Kind:     initial.Kind,
			Name:     initial.Name,
			TicketID: initial.ID,
			Code:     final.ErrorCode,
			Message:  final.ErrorMessage,
		}
	}

	for _, w := range final.Warnings {
		p.metrics.recordWarning(kind, w.Code)
		LogOperationWarning(p.observer, friendlyName, initial.ID, w.Code, w.Message)
	}
	p.metrics.recordWait(kind, "done", elapsed)

	handle := final.Handle()
	if handle.Kind == "" {
		handle.Kind = initial.Kind
	}
	if handle.Name == "" {
		handle.Name = initial.Name
	}
	if handle.Ref == "" {
		handle.Ref = initial.TargetRef
	}
	return handle, final.Warnings, nil
}
