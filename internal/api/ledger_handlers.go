package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/betrace-hq/betrace-sub002/internal/api/presenter"
	"github.com/betrace-hq/betrace-sub002/internal/core"
)

// handleAdminLedger queries the audit ledger for one partition.
func (s *Server) handleAdminLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	q := r.URL.Query()
	partition := q.Get("partition")
	if partition == "" {
		presenter.Error(w, r, "missing partition parameter", http.StatusBadRequest)
		return
	}

	var filter core.TransferFilter
	if v := q.Get("account_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			presenter.Error(w, r, "invalid account_id parameter", http.StatusBadRequest)
			return
		}
		filter.AccountID = id
	}
	if v := q.Get("type"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			presenter.Error(w, r, "invalid type parameter", http.StatusBadRequest)
			return
		}
		filter.Type = core.TransferType(n)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			presenter.Error(w, r, "invalid after parameter", http.StatusBadRequest)
			return
		}
		filter.After = n
	}

	page, err := s.ledger.QueryTransfers(ctx, partition, filter)
	if err != nil {
		logger.Error().Err(err).Str("partition", partition).Msg("ledger query failed")
		presenter.Err(w, r, err, "querying ledger")
		return
	}
	presenter.JSON(w, r, page, http.StatusOK)
}

type FlushResponse struct {
	Replayed int `json:"replayed"`
	Pending  int `json:"pending"`
}

// handleAdminFlush replays buffered audit transfers into the ledger.
func (s *Server) handleAdminFlush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	replayed, err := s.recorder.Flush(ctx)
	if err != nil {
		logger.Warn().Err(err).Int("replayed", replayed).Msg("ledger flush stopped early")
	}
	presenter.JSON(w, r, FlushResponse{
		Replayed: replayed,
		Pending:  s.recorder.Pending(),
	}, http.StatusOK)
}

type RotateKeyPayload struct {
	TenantID string `json:"tenant_id"`
}

type RotateKeyResponse struct {
	Status string `json:"status"`
}

// handleAdminRotateKey rotates a tenant's signing key. The retired
// public half stays available for verifying older evidence.
func (s *Server) handleAdminRotateKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload RotateKeyPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.TenantID == "" {
		presenter.Error(w, r, "tenant_id is required", http.StatusBadRequest)
		return
	}

	newKeyID, err := s.keys.RotateKey(ctx, payload.TenantID)
	if err != nil {
		logger.Error().Err(err).Str("tenant", payload.TenantID).Msg("key rotation failed")
		presenter.Err(w, r, err, "rotating key")
		return
	}
	s.recordAudit(ctx, payload.TenantID, core.TransferKeyRotation, core.TransferMetadata{
		KeyID:  newKeyID,
		Detail: "signing key rotated",
	})

	logger.Info().Str("tenant", payload.TenantID).Msg("signing key rotated")
	presenter.JSON(w, r, RotateKeyResponse{Status: "rotated"}, http.StatusOK)
}
