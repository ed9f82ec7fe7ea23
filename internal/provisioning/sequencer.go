package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/lbprov/internal/resource"
)

// Sequencer runs a plan step by step against a provider.
type Sequencer struct {
	provider         Provider
	observer         Observer
	metrics          *Metrics
	operationTimeout time.Duration
	pollInitial      time.Duration
	pollMax          time.Duration
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithObserver sets the observer receiving plan, step and resource events.
func WithObserver(o Observer) Option {
	return func(s *Sequencer) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithMetrics records executions in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Sequencer) {
		s.metrics = m
	}
}

// WithOperationTimeout bounds the wait for each provider operation.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Sequencer) {
		s.operationTimeout = d
	}
}

// WithPollIntervals sets the backoff bounds used while waiting for operations.
func WithPollIntervals(initial, maxInterval time.Duration) Option {
	return func(s *Sequencer) {
		s.pollInitial = initial
		s.pollMax = maxInterval
	}
}

// NewSequencer creates a Sequencer. Operations time out after 5 minutes unless
// configured otherwise.
func NewSequencer(provider Provider, opts ...Option) *Sequencer {
	s := &Sequencer{
		provider:         provider,
		observer:         NopObserver(),
		operationTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StepWarning is an operation warning raised while running a plan step.
type StepWarning struct {
	Step int
	Kind resource.Kind
	Name string
	resource.Warning
}

// Report is the result of running a plan.
type Report struct {
	Handles  Handles
	Warnings []StepWarning
}

// Execute runs plan in order, starting from the handles in start.
//
// A step whose kind already has a handle with the step's name in start is
// skipped without any provider call, which makes re-invoking Execute with the
// handles of a failed run resume at the failed step. Amend steps always run.
// On failure Execute stops and returns the handles produced so far together
// with a *StepError.
func (s *Sequencer) Execute(ctx context.Context, plan *Plan, start Handles) (Handles, error) {
	report, err := s.Run(ctx, plan, start)
	return report.Handles, err
}

// Run is Execute that also returns the warnings of every finished operation.
// The report is never nil.
func (s *Sequencer) Run(ctx context.Context, plan *Plan, start Handles) (*Report, error) {
	report := &Report{Handles: start.Clone()}
	handles := report.Handles
	if plan == nil {
		return report, errors.New("plan is nil")
	}

	observer := s.observer.WithFields(map[string]string{"plan": plan.Name()})
	poller := NewPoller(s.provider, observer, s.metrics)
	poller.SetIntervals(s.pollInitial, s.pollMax)
	resolver := NewResolver(s.provider, poller, observer, s.operationTimeout)

	observer.Event(Event{
		Type:    EventPlanStarted,
		Message: fmt.Sprintf("executing %d steps", plan.Len()),
		Fields:  map[string]string{"identity": plan.Identity()},
	})
	for _, w := range plan.Warnings() {
		observer.Event(Event{
			Type:     EventValidationWarning,
			Resource: w.Name,
			Message:  w.Message,
			Fields:   map[string]string{"kind": string(w.Kind), "field": w.Field},
		})
	}

	planStart := time.Now()
	total := plan.Len()

	for i, step := range plan.Steps() {
		spec := step.Spec
		kind := string(spec.Kind())
		label := fmt.Sprintf("%d/%d", i+1, total)

		if err := ctx.Err(); err != nil {
			return report, s.fail(observer, label, i, spec.Kind(), spec.Name(), cancelled(err), 0)
		}

		if !step.Amend {
			if h, ok := handles[spec.Kind()]; ok && h.Name == spec.Name() && h.Ref != "" {
				LogStepSkipped(observer, label, kind, spec.Name())
				s.metrics.recordStep(kind, OutcomeSkipped, 0)
				observer.Progress(plan.Name(), i+1, total)
				continue
			}
		}

		stepStart := time.Now()
		LogStepStart(observer, label, kind, spec.Name())

		bound, err := plan.bind(i, handles)
		if err != nil {
			return report, s.fail(observer, label, i, spec.Kind(), spec.Name(), err, time.Since(stepStart))
		}

		resolve := resolver.ResolveOrCreate
		if step.Amend {
			resolve = resolver.Amend
		}
		res, err := resolve(ctx, bound)
		if err != nil {
			if ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
				err = fmt.Errorf("%w: %w", ErrCancelled, err)
			}
			return report, s.fail(observer, label, i, spec.Kind(), spec.Name(), err, time.Since(stepStart))
		}

		handles[spec.Kind()] = res.Handle
		for _, w := range res.Warnings {
			report.Warnings = append(report.Warnings, StepWarning{Step: i, Kind: spec.Kind(), Name: spec.Name(), Warning: w})
		}
		duration := time.Since(stepStart)
		s.metrics.recordStep(kind, res.Outcome, duration)
		LogStepComplete(observer, label, kind, spec.Name(), res.Outcome, duration)
		observer.Progress(plan.Name(), i+1, total)
	}

	observer.Event(Event{
		Type:    EventPlanCompleted,
		Message: fmt.Sprintf("completed in %v", time.Since(planStart).Round(time.Millisecond)),
	})
	return report, nil
}

func (s *Sequencer) fail(observer Observer, label string, i int, kind resource.Kind, name string, err error, duration time.Duration) error {
	s.metrics.recordStep(string(kind), OutcomeFailed, duration)
	LogStepFailed(observer, label, string(kind), name, err)
	stepErr := &StepError{Step: i, Kind: kind, Name: name, Err: err}
	observer.Event(Event{
		Type:    EventPlanFailed,
		Message: stepErr.Error(),
	})
	return stepErr
}
