package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/betrace-hq/betrace-sub002/internal/api/middleware"
	"github.com/betrace-hq/betrace-sub002/internal/api/presenter"
	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/signals"
)

type ListSignalsResponse struct {
	Signals    []core.Signal `json:"signals"`
	NextOffset int           `json:"next_offset"`
}

// handleListSignals returns the tenant's signals, filtered by the
// query parameters.
func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	tenant := middleware.TenantCtx(ctx)
	if tenant == "" {
		presenter.Error(w, r, "missing "+middleware.TenantHeader+" header", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	var filter signals.Filter

	if v := q.Get("severity"); v != "" {
		sev, err := core.ParseSeverity(v)
		if err != nil {
			presenter.Error(w, r, "invalid severity parameter", http.StatusBadRequest)
			return
		}
		filter.Severity = sev
	}
	if v := q.Get("status"); v != "" {
		status := core.SignalStatus(v)
		if !status.IsValid() {
			presenter.Error(w, r, "invalid status parameter", http.StatusBadRequest)
			return
		}
		filter.Status = status
	}
	filter.RuleID = q.Get("rule_id")

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			presenter.Error(w, r, "invalid since parameter", http.StatusBadRequest)
			return
		}
		filter.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			presenter.Error(w, r, "invalid until parameter", http.StatusBadRequest)
			return
		}
		filter.Until = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			logger.Warn().Err(err).Str("limit", v).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			presenter.Error(w, r, "invalid offset parameter", http.StatusBadRequest)
			return
		}
		filter.Offset = n
	}

	list, next := s.signals.Query(tenant, filter)
	presenter.JSON(w, r, ListSignalsResponse{
		Signals:    list,
		NextOffset: next,
	}, http.StatusOK)
}

// handleGetSignal returns a single signal by id.
func (s *Server) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant := middleware.TenantCtx(ctx)
	if tenant == "" {
		presenter.Error(w, r, "missing "+middleware.TenantHeader+" header", http.StatusBadRequest)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		presenter.Error(w, r, "invalid signal id", http.StatusBadRequest)
		return
	}

	signal, err := s.signals.Get(tenant, id)
	if err != nil {
		presenter.Err(w, r, err, "fetching signal")
		return
	}
	presenter.JSON(w, r, signal, http.StatusOK)
}

type SignalStatusPayload struct {
	Status core.SignalStatus `json:"status"`
}

// handleSignalStatus transitions a signal's triage status.
func (s *Server) handleSignalStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	tenant := middleware.TenantCtx(ctx)
	if tenant == "" {
		presenter.Error(w, r, "missing "+middleware.TenantHeader+" header", http.StatusBadRequest)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		presenter.Error(w, r, "invalid signal id", http.StatusBadRequest)
		return
	}

	var payload SignalStatusPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode status payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if !payload.Status.IsValid() {
		presenter.Error(w, r, "invalid target status", http.StatusBadRequest)
		return
	}

	if err := s.signals.Transition(ctx, tenant, id, payload.Status); err != nil {
		presenter.Err(w, r, err, "transitioning signal")
		return
	}

	signal, err := s.signals.Get(tenant, id)
	if err != nil {
		presenter.Err(w, r, err, "fetching signal")
		return
	}
	presenter.JSON(w, r, signal, http.StatusOK)
}
