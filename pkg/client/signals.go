package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/betrace-hq/betrace-sub002/internal/api"
	"github.com/betrace-hq/betrace-sub002/internal/core"
)

type ListSignalsOpts struct {
	Severity string
	Status   string
	RuleID   string
	Since    time.Time
	Until    time.Time

	Limit  int
	Offset int
}

// ListSignals retrieves the tenant's signals matching the given filters.
func (c *Client) ListSignals(ctx context.Context, opts ListSignalsOpts) (*api.ListSignalsResponse, error) {
	ub := c.url().setPath(api.ListSignalsRoute)
	if opts.Severity != "" {
		ub = ub.addQueryParam("severity", opts.Severity)
	}
	if opts.Status != "" {
		ub = ub.addQueryParam("status", opts.Status)
	}
	if opts.RuleID != "" {
		ub = ub.addQueryParam("rule_id", opts.RuleID)
	}
	if !opts.Since.IsZero() {
		ub = ub.addQueryParam("since", opts.Since.Format(time.RFC3339))
	}
	if !opts.Until.IsZero() {
		ub = ub.addQueryParam("until", opts.Until.Format(time.RFC3339))
	}
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	if opts.Offset > 0 {
		ub = ub.addQueryParam("offset", opts.Offset)
	}

	var res api.ListSignalsResponse
	_, err := c.get(ctx, ub.build(), &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetSignal retrieves a single signal by id.
func (c *Client) GetSignal(ctx context.Context, id uuid.UUID) (*core.Signal, error) {
	var res core.Signal
	_, err := c.get(ctx, c.url().
		setPath(api.GetSignalRoute).
		setPathParam("id", id.String()).
		build(), &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SetSignalStatus transitions a signal's triage status and returns the
// updated signal.
func (c *Client) SetSignalStatus(ctx context.Context, id uuid.UUID, status core.SignalStatus) (*core.Signal, error) {
	var res core.Signal
	_, err := c.post(ctx, c.url().
		setPath(api.SignalStatusRoute).
		setPathParam("id", id.String()).
		build(), api.SignalStatusPayload{Status: status}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
