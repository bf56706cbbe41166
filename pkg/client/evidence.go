package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/betrace-hq/betrace-sub002/internal/api"
	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/evidence"
)

// GenerateEvidence creates a signed evidence record for a signal.
func (c *Client) GenerateEvidence(ctx context.Context, signalID uuid.UUID, framework, controlID string) (*core.SignedEvidence, string, error) {
	var res core.SignedEvidence
	correlation, err := c.post(ctx, c.url().
		setPath(api.GenerateEvidenceRoute).
		build(), api.GenerateEvidencePayload{
		SignalID:  signalID,
		Framework: framework,
		ControlID: controlID,
	}, &res)
	if err != nil {
		return nil, correlation, err
	}
	return &res, correlation, nil
}

type ListEvidenceOpts struct {
	Framework string
	ControlID string
	Limit     int
}

// ListEvidence retrieves the tenant's evidence records with their
// verification annotations.
func (c *Client) ListEvidence(ctx context.Context, opts ListEvidenceOpts) ([]evidence.AnnotatedEvidence, error) {
	ub := c.url().setPath(api.ListEvidenceRoute)
	if opts.Framework != "" {
		ub = ub.addQueryParam("framework", opts.Framework)
	}
	if opts.ControlID != "" {
		ub = ub.addQueryParam("control_id", opts.ControlID)
	}
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}

	var res []evidence.AnnotatedEvidence
	_, err := c.get(ctx, ub.build(), &res)
	return res, err
}

// VerifyEvidence checks a signed evidence record server-side.
func (c *Client) VerifyEvidence(ctx context.Context, signed core.SignedEvidence) (*core.VerificationResult, error) {
	var res core.VerificationResult
	_, err := c.post(ctx, c.url().
		setPath(api.VerifyEvidenceRoute).
		build(), signed, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
