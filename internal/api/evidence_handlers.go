package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/betrace-hq/betrace-sub002/internal/api/middleware"
	"github.com/betrace-hq/betrace-sub002/internal/api/presenter"
	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/evidence"
)

type GenerateEvidencePayload struct {
	SignalID  uuid.UUID `json:"signal_id"`
	Framework string    `json:"framework"`
	ControlID string    `json:"control_id"`
}

// handleGenerateEvidence signs and persists an evidence record for an
// existing signal under the requested control mapping.
func (s *Server) handleGenerateEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	tenant := middleware.TenantCtx(ctx)
	if tenant == "" {
		presenter.Error(w, r, "missing "+middleware.TenantHeader+" header", http.StatusBadRequest)
		return
	}

	var payload GenerateEvidencePayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode evidence payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Framework == "" || payload.ControlID == "" {
		presenter.Error(w, r, "framework and control_id are required", http.StatusBadRequest)
		return
	}

	signal, err := s.signals.Get(tenant, payload.SignalID)
	if err != nil {
		presenter.Err(w, r, err, "fetching signal")
		return
	}

	signed, err := s.evidence.Generate(ctx, signal, evidence.ControlMapping{
		Framework: payload.Framework,
		ControlID: payload.ControlID,
	})
	if err != nil {
		logger.Error().Err(err).Str("signal_id", payload.SignalID.String()).
			Msg("evidence generation failed")
		presenter.Err(w, r, err, "generating evidence")
		return
	}

	logger.Info().
		Str("evidence_id", signed.Evidence.ID.String()).
		Str("framework", payload.Framework).
		Str("control_id", payload.ControlID).
		Msg("evidence generated")

	presenter.JSON(w, r, signed, http.StatusCreated)
}

// handleListEvidence returns the tenant's evidence records, each
// annotated with its current verification state.
func (s *Server) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant := middleware.TenantCtx(ctx)
	if tenant == "" {
		presenter.Error(w, r, "missing "+middleware.TenantHeader+" header", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	filter := evidence.QueryFilter{
		Framework: q.Get("framework"),
		ControlID: q.Get("control_id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}

	records := s.evidence.Query(ctx, tenant, filter)
	presenter.JSON(w, r, records, http.StatusOK)
}

// handleVerifyEvidence checks a signed evidence record against the
// tenant's key material.
func (s *Server) handleVerifyEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload core.SignedEvidence
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode evidence record")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	result := s.evidence.Verify(ctx, payload)

	outcome := "unknown"
	if result.Valid != nil {
		outcome = "invalid"
		if *result.Valid {
			outcome = "valid"
		}
	}
	s.recordAudit(ctx, payload.Evidence.TenantID, core.TransferVerification, core.TransferMetadata{
		EvidenceID: payload.Evidence.ID.String(),
		KeyID:      payload.KeyID,
		Detail:     "evidence verification: " + outcome,
	})

	presenter.JSON(w, r, result, http.StatusOK)
}
