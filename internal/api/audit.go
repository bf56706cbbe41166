package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/betrace-hq/betrace-sub002/internal/api/middleware"
	"github.com/betrace-hq/betrace-sub002/internal/core"
)

// recordAudit writes one audit transfer for the tenant through the
// degrade-and-buffer recorder. Audit writes never fail the caller's
// request: ledger unavailability buffers, unknown tenants are logged
// and skipped.
func (s *Server) recordAudit(ctx context.Context, tenantID string, typ core.TransferType, meta core.TransferMetadata) {
	if tenantID == "" {
		return
	}

	resolve := s.actor.AuditAccounts
	switch typ {
	case core.TransferKeyCreation, core.TransferKeyRotation:
		resolve = s.actor.KeyAccounts
	}
	debit, credit, err := resolve(tenantID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("tenant", tenantID).Msg("skipping audit record, tenant not bootstrapped")
		return
	}

	meta.TenantID = tenantID
	err = s.recorder.Record(ctx, core.Transfer{
		ID:            uuid.New(),
		DebitAccount:  debit,
		CreditAccount: credit,
		Amount:        1,
		Type:          typ,
		Partition:     tenantID,
		Metadata:      meta,
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Uint16("type", uint16(typ)).Msg("audit record rejected")
	}
}

// auditAuthDecision records admin access decisions against the
// requesting tenant's partition.
func (s *Server) auditAuthDecision(r *http.Request, allowed bool, detail string) {
	outcome := "denied"
	if allowed {
		outcome = "granted"
	}
	s.recordAudit(r.Context(), middleware.TenantCtx(r.Context()), core.TransferAuthEvent, core.TransferMetadata{
		Detail: "admin access " + outcome + ": " + detail,
	})
}
