package provisioning

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/r3labs/diff/v3"

	"github.com/imamik/lbprov/internal/resource"
)

// Resolution is the result of resolving one resource.
type Resolution struct {
	Handle  resource.Handle
	Outcome Outcome
	// Warnings are the non-fatal warnings attached to the create or update
	// operation. A reused resource has none.
	Warnings []resource.Warning
}

// Resolver reuses, updates or creates a single resource.
type Resolver struct {
	provider Provider
	poller   *Poller
	observer Observer
	timeout  time.Duration
}

// NewResolver creates a Resolver that waits at most timeout for each operation.
func NewResolver(provider Provider, poller *Poller, observer Observer, timeout time.Duration) *Resolver {
	if observer == nil {
		observer = NopObserver()
	}
	return &Resolver{
		provider: provider,
		poller:   poller,
		observer: observer,
		timeout:  timeout,
	}
}

// ResolveOrCreate returns the handle of the resource described by spec.
//
// An existing resource with matching configuration is reused without any
// write. A difference in a field that cannot change yields a *ConflictError;
// a difference in a mutable field of an updatable kind is reconciled with an
// update. A missing resource is created and awaited. Fields left unset in
// spec are not compared. Operation warnings are returned in the Resolution
// and also sent to the observer.
func (r *Resolver) ResolveOrCreate(ctx context.Context, spec resource.Spec) (Resolution, error) {
	return r.resolve(ctx, spec, true)
}

// Amend reconciles an existing resource with spec. It never creates.
func (r *Resolver) Amend(ctx context.Context, spec resource.Spec) (Resolution, error) {
	return r.resolve(ctx, spec, false)
}

func (r *Resolver) resolve(ctx context.Context, spec resource.Spec, create bool) (Resolution, error) {
	kind := string(spec.Kind())

	desc, err := resource.Lookup(spec.Kind())
	if err != nil {
		return Resolution{Outcome: OutcomeFailed}, err
	}

	observed, err := r.provider.Get(ctx, spec.Kind(), spec.Name())
	if err != nil {
		LogResourceFailed(r.observer, kind, spec.Name(), err)
		return Resolution{Outcome: OutcomeFailed}, fmt.Errorf("failed to get %s %s: %w", kind, spec.Name(), err)
	}

	if observed == nil {
		if !create {
			return Resolution{Outcome: OutcomeFailed}, fmt.Errorf("%s %s does not exist and cannot be amended", kind, spec.Name())
		}
		return r.create(ctx, spec)
	}

	conflicts, drift, err := compare(desc, spec, observed)
	if err != nil {
		return Resolution{Outcome: OutcomeFailed}, err
	}
	if len(drift) > 0 && !desc.Updatable {
		conflicts = append(conflicts, drift...)
		drift = nil
	}
	if len(conflicts) > 0 {
		conflictErr := &ConflictError{Kind: spec.Kind(), Name: spec.Name(), Conflicts: conflicts}
		LogResourceFailed(r.observer, kind, spec.Name(), conflictErr)
		return Resolution{Outcome: OutcomeFailed}, conflictErr
	}

	if len(drift) == 0 {
		LogResourceExists(r.observer, kind, spec.Name(), observed.Handle.Ref)
		return Resolution{Handle: observed.Handle, Outcome: OutcomeReused}, nil
	}

	return r.update(ctx, spec, observed, drift)
}

func (r *Resolver) create(ctx context.Context, spec resource.Spec) (Resolution, error) {
	kind := string(spec.Kind())
	LogResourceCreating(r.observer, kind, spec.Name())

	ticket, err := r.provider.Insert(ctx, spec)
	if err != nil {
		LogResourceFailed(r.observer, kind, spec.Name(), err)
		return Resolution{Outcome: OutcomeFailed}, fmt.Errorf("failed to create %s %s: %w", kind, spec.Name(), err)
	}

	handle, warnings, err := r.poller.Await(ctx, ticket, spec.String(), r.timeout)
	if err != nil {
		LogResourceFailed(r.observer, kind, spec.Name(), err)
		return Resolution{Outcome: OutcomeFailed}, fmt.Errorf("failed to wait for %s creation: %w", spec, err)
	}

	// The operation target is not always the canonical reference; read back.
	if observed, getErr := r.provider.Get(ctx, spec.Kind(), spec.Name()); getErr == nil && observed != nil && observed.Handle.Ref != "" {
		handle = observed.Handle
	}
	if handle.Ref == "" {
		err := fmt.Errorf("%s created but no reference is available", spec)
		LogResourceFailed(r.observer, kind, spec.Name(), err)
		return Resolution{Outcome: OutcomeFailed}, err
	}

	LogResourceCreated(r.observer, kind, spec.Name(), handle.Ref)
	return Resolution{Handle: handle, Outcome: OutcomeCreated, Warnings: warnings}, nil
}

func (r *Resolver) update(ctx context.Context, spec resource.Spec, observed *resource.Observed, drift []FieldConflict) (Resolution, error) {
	kind := string(spec.Kind())
	fields := make([]string, 0, len(drift))
	for _, d := range drift {
		fields = append(fields, d.Field)
	}
	LogResourceUpdating(r.observer, kind, spec.Name(), fields)

	ticket, err := r.provider.Update(ctx, observed.Handle, spec)
	if err != nil {
		LogResourceFailed(r.observer, kind, spec.Name(), err)
		return Resolution{Outcome: OutcomeFailed}, fmt.Errorf("failed to update %s %s: %w", kind, spec.Name(), err)
	}

	_, warnings, err := r.poller.Await(ctx, ticket, spec.String(), r.timeout)
	if err != nil {
		LogResourceFailed(r.observer, kind, spec.Name(), err)
		return Resolution{Outcome: OutcomeFailed}, fmt.Errorf("failed to wait for %s update: %w", spec, err)
	}

	LogResourceUpdated(r.observer, kind, spec.Name(), observed.Handle.Ref)
	return Resolution{Handle: observed.Handle, Outcome: OutcomeUpdated, Warnings: warnings}, nil
}

// compare splits the differences between desired and observed fields into
// conflicts (fields that cannot change) and drift (fields an update can fix).
// Only fields set in spec are compared; list fields ignore order.
func compare(desc *resource.Descriptor, spec resource.Spec, observed *resource.Observed) (conflicts, drift []FieldConflict, err error) {
	want := map[string]string{}
	got := map[string]string{}
	for name, value := range spec.Fields() {
		if value == "" {
			continue
		}
		want[name] = desc.Normalize(name, value)
		got[name] = desc.Normalize(name, observed.Fields[name])
	}

	changelog, err := diff.Diff(got, want)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compare %s: %w", spec, err)
	}

	for _, change := range changelog {
		if len(change.Path) == 0 {
			continue
		}
		field := change.Path[0]
		def, ok := desc.Field(field)
		if !ok || (!def.Compare && !def.Mutable) {
			continue
		}
		fc := FieldConflict{Field: field, Want: want[field], Got: got[field]}
		if def.Mutable {
			drift = append(drift, fc)
		} else {
			conflicts = append(conflicts, fc)
		}
	}

	sortConflicts(conflicts)
	sortConflicts(drift)
	return conflicts, drift, nil
}

func sortConflicts(c []FieldConflict) {
	sort.Slice(c, func(i, j int) bool { return c[i].Field < c[j].Field })
}
