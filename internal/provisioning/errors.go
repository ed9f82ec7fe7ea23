package provisioning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imamik/lbprov/internal/resource"
)

// ErrCancelled is returned when the caller's context ends a wait or a plan.
var ErrCancelled = errors.New("provisioning cancelled")

// OperationError is a terminal failure reported by the control plane.
type OperationError struct {
	Kind     resource.Kind
	Name     string
	TicketID string
	Code     string
	Message  string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s: operation %s failed: [%s] %s", e.Kind, e.Name, e.TicketID, e.Code, e.Message)
}

// TimeoutError is returned when an operation does not finish within its timeout.
type TimeoutError struct {
	Kind     resource.Kind
	Name     string
	TicketID string
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: operation %s did not finish after %v",
		e.Kind, e.Name, e.TicketID, e.Elapsed.Round(time.Millisecond))
}

// FieldConflict is one field that differs between desired and observed state.
type FieldConflict struct {
	Field string
	Want  string
	Got   string
}

// ConflictError is returned when a resource with the desired name exists with
// configuration that cannot be reconciled.
type ConflictError struct {
	Kind      resource.Kind
	Name      string
	Conflicts []FieldConflict
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s: want %q, got %q", c.Field, c.Want, c.Got))
	}
	return fmt.Sprintf("%s %s exists with incompatible configuration (%s)",
		e.Kind, e.Name, strings.Join(parts, "; "))
}

// StepError reports the plan step that halted execution.
type StepError struct {
	Step int
	Kind resource.Kind
	Name string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s %s) failed: %v", e.Step+1, e.Kind, e.Name, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is or wraps a *ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsTimeout reports whether err is or wraps a *TimeoutError.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}

// IsOperationError reports whether err is or wraps an *OperationError.
func IsOperationError(err error) bool {
	var o *OperationError
	return errors.As(err, &o)
}

// cancelled wraps the context error so callers can match either ErrCancelled
// or the context sentinel.
func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
