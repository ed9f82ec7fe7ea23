package gce

import (
	"context"
	"fmt"
	"path"
	"strings"

	compute "google.golang.org/api/compute/v1"

	"github.com/imamik/lbprov/internal/resource"
)

const (
	zonePrefix   = "zones/"
	regionPrefix = "regions/"
)

// ticket converts an operation into a resource ticket.
func ticket(kind resource.Kind, name string, op *compute.Operation) resource.Ticket {
	t := resource.Ticket{
		ID:        op.Name,
		Kind:      kind,
		Name:      name,
		Status:    resource.Status(op.Status),
		TargetRef: op.TargetLink,
	}
	switch {
	case op.Zone != "":
		t.Location = zonePrefix + path.Base(op.Zone)
	case op.Region != "":
		t.Location = regionPrefix + path.Base(op.Region)
	}
	if t.Status == "" {
		t.Status = resource.StatusPending
	}

	if op.Error != nil && len(op.Error.Errors) > 0 {
		codes := make([]string, 0, len(op.Error.Errors))
		msgs := make([]string, 0, len(op.Error.Errors))
		for _, e := range op.Error.Errors {
			codes = append(codes, e.Code)
			msgs = append(msgs, e.Message)
		}
		t.ErrorCode = strings.Join(codes, ",")
		t.ErrorMessage = strings.Join(msgs, "; ")
	} else if t.Done() && op.HttpErrorStatusCode >= 400 {
		t.ErrorCode = fmt.Sprintf("HTTP_%d", op.HttpErrorStatusCode)
		t.ErrorMessage = op.HttpErrorMessage
	}

	for _, w := range op.Warnings {
		t.Warnings = append(t.Warnings, resource.Warning{Code: w.Code, Message: w.Message})
	}
	return t
}

// Refresh implements provisioning.Provider.
func (c *Client) Refresh(ctx context.Context, t resource.Ticket) (resource.Ticket, error) {
	var op *compute.Operation
	err := c.call(ctx, func() error {
		var err error
		switch {
		case strings.HasPrefix(t.Location, zonePrefix):
			op, err = c.service.ZoneOperations.Get(c.project, strings.TrimPrefix(t.Location, zonePrefix), t.ID).Context(ctx).Do()
		case strings.HasPrefix(t.Location, regionPrefix):
			op, err = c.service.RegionOperations.Get(c.project, strings.TrimPrefix(t.Location, regionPrefix), t.ID).Context(ctx).Do()
		default:
			op, err = c.service.GlobalOperations.Get(c.project, t.ID).Context(ctx).Do()
		}
		return err
	})
	if err != nil {
		return resource.Ticket{}, err
	}
	return ticket(t.Kind, t.Name, op), nil
}

// waitGlobal blocks until a global operation the caller depends on finishes.
// It is used for helper resources that are not plan steps.
func (c *Client) waitGlobal(ctx context.Context, op *compute.Operation) error {
	for op.Status != string(resource.StatusDone) {
		err := c.call(ctx, func() error {
			var err error
			op, err = c.service.GlobalOperations.Wait(c.project, op.Name).Context(ctx).Do()
			return err
		})
		if err != nil {
			return err
		}
	}
	if op.Error != nil && len(op.Error.Errors) > 0 {
		e := op.Error.Errors[0]
		return fmt.Errorf("operation %s failed: [%s] %s", op.Name, e.Code, e.Message)
	}
	return nil
}
