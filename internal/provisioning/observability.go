package provisioning

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"
)

// Observer defines the interface for structured observability during provisioning.
type Observer interface {
	// Printf logs a free-form message.
	Printf(format string, v ...interface{})

	// Event emits a structured event
	Event(event Event)

	// Progress reports progress through a plan
	Progress(plan string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType         // Type of event
	Step      string            // Step label (e.g., "3/9 firewall-rule")
	Message   string            // Human-readable message
	Resource  string            // Resource name if applicable
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of provisioning event.
type EventType string

const (
	EventPlanStarted   EventType = "plan.started"
	EventPlanCompleted EventType = "plan.completed"
	EventPlanFailed    EventType = "plan.failed"

	EventStepStarted   EventType = "step.started"
	EventStepCompleted EventType = "step.completed"
	EventStepFailed    EventType = "step.failed"
	EventStepSkipped   EventType = "step.skipped"

	EventResourceCreating EventType = "resource.creating"
	EventResourceCreated  EventType = "resource.created"
	EventResourceExists   EventType = "resource.exists"
	EventResourceUpdating EventType = "resource.updating"
	EventResourceUpdated  EventType = "resource.updated"
	EventResourceFailed   EventType = "resource.failed"

	// EventOperationWarning carries a non-fatal warning from a finished operation.
	EventOperationWarning EventType = "operation.warning"
	// EventValidationWarning indicates a validation warning.
	EventValidationWarning EventType = "validation.warning"

	// EventProgress indicates progress through a plan.
	EventProgress EventType = "progress"
)

// LogObserver implements Observer on top of a logr.Logger.
type LogObserver struct {
	log           logr.Logger
	contextFields map[string]string
}

// NewLogObserver creates an observer writing to log.
func NewLogObserver(log logr.Logger) *LogObserver {
	return &LogObserver{
		log:           log,
		contextFields: make(map[string]string),
	}
}

// Printf implements Observer.
func (o *LogObserver) Printf(format string, v ...interface{}) {
	o.log.Info(fmt.Sprintf(format, v...))
}

// Event implements Observer. Failure events are logged at error level.
func (o *LogObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	kv := []interface{}{"event", string(event.Type)}
	if event.Step != "" {
		kv = append(kv, "step", event.Step)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	for _, k := range mergedKeys(o.contextFields, event.Fields) {
		v, ok := event.Fields[k]
		if !ok {
			v = o.contextFields[k]
		}
		kv = append(kv, k, v)
	}

	switch event.Type {
	case EventPlanFailed, EventStepFailed, EventResourceFailed:
		o.log.Error(nil, event.Message, kv...)
	case EventProgress:
		o.log.V(1).Info(event.Message, kv...)
	default:
		o.log.Info(event.Message, kv...)
	}
}

// Progress implements Observer.
func (o *LogObserver) Progress(plan string, current, total int) {
	o.Event(Event{
		Type:    EventProgress,
		Step:    plan,
		Message: "progress",
		Fields: map[string]string{
			"current": fmt.Sprint(current),
			"total":   fmt.Sprint(total),
		},
	})
}

// WithFields implements Observer.
func (o *LogObserver) WithFields(fields map[string]string) Observer {
	newFields := make(map[string]string, len(o.contextFields)+len(fields))
	for k, v := range o.contextFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &LogObserver{
		log:           o.log,
		contextFields: newFields,
	}
}

func mergedKeys(a, b map[string]string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for _, m := range []map[string]string{a, b} {
		for k := range m {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// nopObserver discards everything.
type nopObserver struct{}

// NopObserver returns an Observer that discards all output.
func NopObserver() Observer { return nopObserver{} }

func (nopObserver) Printf(string, ...interface{})           {}
func (nopObserver) Event(Event)                             {}
func (nopObserver) Progress(string, int, int)               {}
func (n nopObserver) WithFields(map[string]string) Observer { return n }

// Helper functions for common events

// LogStepStart logs a step start event.
func LogStepStart(observer Observer, step, kind, name string) {
	observer.Event(Event{
		Type:     EventStepStarted,
		Step:     step,
		Resource: name,
		Message:  "starting",
		Fields:   map[string]string{"kind": kind},
	})
}

// LogStepComplete logs a step completion event.
func LogStepComplete(observer Observer, step, kind, name string, outcome Outcome, duration time.Duration) {
	observer.Event(Event{
		Type:     EventStepCompleted,
		Step:     step,
		Resource: name,
		Message:  fmt.Sprintf("%s in %v", outcome, duration.Round(time.Millisecond)),
		Fields:   map[string]string{"kind": kind, "outcome": string(outcome)},
	})
}

// LogStepSkipped logs a step satisfied by a handle from a previous run.
func LogStepSkipped(observer Observer, step, kind, name string) {
	observer.Event(Event{
		Type:     EventStepSkipped,
		Step:     step,
		Resource: name,
		Message:  "handle already known, skipping",
		Fields:   map[string]string{"kind": kind},
	})
}

// LogStepFailed logs a step failure event.
func LogStepFailed(observer Observer, step, kind, name string, err error) {
	observer.Event(Event{
		Type:     EventStepFailed,
		Step:     step,
		Resource: name,
		Message:  fmt.Sprintf("failed: %v", err),
		Fields:   map[string]string{"kind": kind},
	})
}

// LogResourceCreating logs a resource creation start event.
func LogResourceCreating(observer Observer, kind, name string) {
	observer.Event(Event{
		Type:     EventResourceCreating,
		Resource: name,
		Message:  fmt.Sprintf("creating %s", kind),
		Fields:   map[string]string{"kind": kind},
	})
}

// LogResourceCreated logs a successful resource creation event.
func LogResourceCreated(observer Observer, kind, name, ref string) {
	observer.Event(Event{
		Type:     EventResourceCreated,
		Resource: name,
		Message:  fmt.Sprintf("%s created", kind),
		Fields:   map[string]string{"kind": kind, "ref": ref},
	})
}

// LogResourceExists logs when a resource already exists.
func LogResourceExists(observer Observer, kind, name, ref string) {
	observer.Event(Event{
		Type:     EventResourceExists,
		Resource: name,
		Message:  fmt.Sprintf("%s already exists", kind),
		Fields:   map[string]string{"kind": kind, "ref": ref},
	})
}

// LogResourceUpdating logs the start of an in-place update.
func LogResourceUpdating(observer Observer, kind, name string, fields []string) {
	observer.Event(Event{
		Type:     EventResourceUpdating,
		Resource: name,
		Message:  fmt.Sprintf("updating %s", kind),
		Fields:   map[string]string{"kind": kind, "fields": fmt.Sprint(fields)},
	})
}

// LogResourceUpdated logs a successful update.
func LogResourceUpdated(observer Observer, kind, name, ref string) {
	observer.Event(Event{
		Type:     EventResourceUpdated,
		Resource: name,
		Message:  fmt.Sprintf("%s updated", kind),
		Fields:   map[string]string{"kind": kind, "ref": ref},
	})
}

// LogResourceFailed logs a failed create, update or lookup.
func LogResourceFailed(observer Observer, kind, name string, err error) {
	observer.Event(Event{
		Type:     EventResourceFailed,
		Resource: name,
		Message:  fmt.Sprintf("%s failed: %v", kind, err),
		Fields:   map[string]string{"kind": kind},
	})
}

// LogOperationWarning logs a warning attached to a finished operation.
func LogOperationWarning(observer Observer, friendlyName, ticketID, code, message string) {
	observer.Event(Event{
		Type:     EventOperationWarning,
		Resource: friendlyName,
		Message:  message,
		Fields:   map[string]string{"code": code, "operation": ticketID},
	})
}
