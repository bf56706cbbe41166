package client

import (
	"context"

	"github.com/betrace-hq/betrace-sub002/internal/api"
	"github.com/betrace-hq/betrace-sub002/internal/core"
)

type QueryLedgerOpts struct {
	Partition string
	AccountID string
	Type      int
	Limit     int
	After     int64
}

// QueryLedger retrieves a page of audit transfers. Requires an admin session.
func (c *Client) QueryLedger(ctx context.Context, opts QueryLedgerOpts) (*core.TransferPage, error) {
	ub := c.url().
		setPath(api.LedgerRoute).
		addQueryParam("partition", opts.Partition)
	if opts.AccountID != "" {
		ub = ub.addQueryParam("account_id", opts.AccountID)
	}
	if opts.Type > 0 {
		ub = ub.addQueryParam("type", opts.Type)
	}
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	if opts.After > 0 {
		ub = ub.addQueryParam("after", opts.After)
	}

	var res core.TransferPage
	_, err := c.get(ctx, ub.build(), &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// FlushLedger replays buffered audit transfers. Requires an admin session.
func (c *Client) FlushLedger(ctx context.Context) (*api.FlushResponse, error) {
	var res api.FlushResponse
	_, err := c.post(ctx, c.url().
		setPath(api.FlushLedgerRoute).
		build(), nil, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RotateKey rotates a tenant's signing key. Requires an admin session.
func (c *Client) RotateKey(ctx context.Context, tenantID string) error {
	var res api.RotateKeyResponse
	_, err := c.post(ctx, c.url().
		setPath(api.RotateKeyRoute).
		build(), api.RotateKeyPayload{TenantID: tenantID}, &res)
	return err
}
