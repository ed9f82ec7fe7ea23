// Package resource describes the nine provisionable Compute Engine resource
// kinds and the values passed between provisioning steps.
//
// A [Spec] is the immutable desired state of one resource. A [Handle] is the
// provider-assigned identity of a created or discovered resource, and a
// [Ticket] is a pending long-running operation returned by a create or update
// call.
//
// The descriptor registry ([Lookup]) lists, per kind, the recognized fields
// with their types, defaults, validation rules, references to other kinds and
// whether a difference on an existing resource is a conflict or can be
// reconciled by an update. [Validate] checks a Spec against its descriptor
// before any provider call is made.
package resource
