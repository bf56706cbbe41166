package client

import (
	"context"

	"github.com/betrace-hq/betrace-sub002/internal/api"
	"github.com/betrace-hq/betrace-sub002/internal/core"
)

// IngestSpans submits a batch of spans for the client's tenant.
func (c *Client) IngestSpans(ctx context.Context, spans []core.Span) (*api.IngestResponse, string, error) {
	var res api.IngestResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.IngestSpansRoute).
		build(), api.IngestPayload{Spans: spans}, &res)
	if err != nil {
		return nil, correlation, err
	}
	return &res, correlation, nil
}
