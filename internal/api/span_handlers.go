package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/betrace-hq/betrace-sub002/internal/api/middleware"
	"github.com/betrace-hq/betrace-sub002/internal/api/presenter"
	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/metrics"
)

type IngestPayload struct {
	Spans []core.Span `json:"spans"`
}

type IngestResponse struct {
	Ingested int `json:"ingested"`
	Rejected int `json:"rejected"`

	// Submitted counts traces that completed during this request and
	// were handed to the evaluation pipeline.
	Submitted int `json:"submitted"`
}

// handleIngestSpans accepts a batch of spans, feeds them to the trace
// aggregator and submits any trace that became complete.
func (s *Server) handleIngestSpans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	tenant := middleware.TenantCtx(ctx)
	if tenant == "" {
		presenter.Error(w, r, "missing "+middleware.TenantHeader+" header", http.StatusBadRequest)
		return
	}

	var payload IngestPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode ingest payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if len(payload.Spans) == 0 {
		presenter.Error(w, r, "empty span batch", http.StatusBadRequest)
		return
	}

	var resp IngestResponse
	touched := make(map[string]struct{})
	for _, span := range payload.Spans {
		if err := s.aggregator.AddSpan(tenant, span); err != nil {
			var malformed core.MalformedSpanError
			if errors.As(err, &malformed) {
				logger.Warn().Str("trace_id", span.TraceID).Str("reason", malformed.Reason).
					Msg("rejected malformed span")
				metrics.SpansRejected.Inc()
				resp.Rejected++
				continue
			}
			presenter.Err(w, r, err, "ingesting spans")
			return
		}
		metrics.SpansIngested.Inc()
		resp.Ingested++
		touched[span.TraceID] = struct{}{}
	}

	// traces whose root closed during this batch are ready now
	for traceID := range touched {
		if !s.aggregator.IsComplete(traceID) {
			continue
		}
		trace, err := s.aggregator.Drain(traceID)
		if err != nil {
			continue
		}
		if s.pipeline.Submit(trace) {
			resp.Submitted++
		}
	}

	presenter.JSON(w, r, resp, http.StatusAccepted)
}
