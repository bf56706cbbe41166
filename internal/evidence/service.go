// Package evidence builds and verifies signed compliance evidence
// records linked to signals.
package evidence

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/keycache"
)

const algorithmEd25519 = "ed25519"

// ControlMapping names the compliance control a signal exercises.
type ControlMapping struct {
	Framework string `json:"framework"`
	ControlID string `json:"control_id"`
}

// Service generates and verifies evidence. Generated records write
// through to the ledger; a ledger failure is surfaced as retryable,
// never swallowed, because evidence is the product's core value.
type Service struct {
	keys   *keycache.Cache
	ledger core.Ledger
	actor  core.AccountResolver

	mu      sync.RWMutex
	records map[string][]core.SignedEvidence // by tenant, creation order
}

func NewService(keys *keycache.Cache, ledger core.Ledger, actor core.AccountResolver) *Service {
	return &Service{
		keys:    keys,
		ledger:  ledger,
		actor:   actor,
		records: make(map[string][]core.SignedEvidence),
	}
}

// Generate builds, signs and persists an evidence record for the
// signal under the given control mapping.
func (s *Service) Generate(ctx context.Context, signal core.Signal, mapping ControlMapping) (core.SignedEvidence, error) {
	if signal.TenantID == "" {
		return core.SignedEvidence{}, core.ErrMissingTenantID
	}
	if signal.TraceID == "" {
		return core.SignedEvidence{}, core.ErrMissingTraceContext
	}
	if mapping.Framework == "" || mapping.ControlID == "" {
		return core.SignedEvidence{}, fmt.Errorf("control mapping requires framework and control id")
	}

	handle, err := s.keys.GetSigningKey(ctx, signal.TenantID)
	if err != nil {
		return core.SignedEvidence{}, fmt.Errorf("%w: %w", core.ErrSigningKeyUnavailable, err)
	}

	ev := core.Evidence{
		ID:        uuid.New(),
		Framework: mapping.Framework,
		ControlID: mapping.ControlID,
		TenantID:  signal.TenantID,
		SignalID:  signal.ID,
		TraceID:   signal.TraceID,
		CreatedAt: time.Now(),
		Details: map[string]string{
			"rule_id":  signal.RuleID,
			"severity": signal.Severity.String(),
		},
	}

	signature := ed25519.Sign(handle.Private, CanonicalBytes(ev))
	signed := core.SignedEvidence{
		Evidence:  ev,
		KeyID:     handle.KeyID,
		Algorithm: algorithmEd25519,
		Signature: signature,
	}

	debit, credit, err := s.actor.EvidenceAccounts(signal.TenantID)
	if err != nil {
		return core.SignedEvidence{}, core.RetryableError{Err: err}
	}
	transfer := core.Transfer{
		ID:            uuid.New(),
		DebitAccount:  debit,
		CreditAccount: credit,
		Amount:        1,
		Type:          core.TransferEvidence,
		Partition:     signal.TenantID,
		Metadata: core.TransferMetadata{
			TenantID:   signal.TenantID,
			TraceID:    signal.TraceID,
			SignalID:   signal.ID.String(),
			EvidenceID: ev.ID.String(),
			KeyID:      handle.KeyID,
			Detail:     mapping.Framework + "/" + mapping.ControlID,
		},
	}
	if _, err := s.ledger.CreateTransfer(ctx, transfer); err != nil {
		return core.SignedEvidence{}, core.RetryableError{Err: fmt.Errorf("persisting evidence: %w", err)}
	}

	s.mu.Lock()
	s.records[signal.TenantID] = append(s.records[signal.TenantID], signed)
	s.mu.Unlock()

	log.Info().
		Str("tenant", signal.TenantID).
		Str("evidence", ev.ID.String()).
		Str("control", mapping.Framework+"/"+mapping.ControlID).
		Msg("compliance evidence generated")
	return signed, nil
}

// Verify recomputes the canonical serialization and checks the
// signature against the tenant's key. Records predating signing
// support verify as unknown, not failed.
func (s *Service) Verify(ctx context.Context, signed core.SignedEvidence) core.VerificationResult {
	if !signed.Signed() {
		return core.VerificationUnknown()
	}
	if signed.Algorithm != algorithmEd25519 {
		return core.VerificationInvalid(fmt.Sprintf("unsupported algorithm %q", signed.Algorithm))
	}

	public, err := s.keys.PublicKey(ctx, signed.Evidence.TenantID, signed.KeyID)
	if err != nil {
		return core.VerificationInvalid(fmt.Sprintf("resolving key %s: %v", signed.KeyID, err))
	}

	if !ed25519.Verify(public, CanonicalBytes(signed.Evidence), signed.Signature) {
		return core.VerificationInvalid("signature mismatch")
	}
	return core.VerificationValid()
}

// QueryFilter selects evidence records for one tenant.
type QueryFilter struct {
	Framework string
	ControlID string
	Limit     int
}

// AnnotatedEvidence is an evidence record plus its verification state
// as returned by the query API.
type AnnotatedEvidence struct {
	core.SignedEvidence
	SignatureValid *bool `json:"signature_valid"`
}

// Query returns the tenant's evidence records, each annotated with
// its current verification result.
func (s *Service) Query(ctx context.Context, tenantID string, filter QueryFilter) []AnnotatedEvidence {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	records := make([]core.SignedEvidence, len(s.records[tenantID]))
	copy(records, s.records[tenantID])
	s.mu.RUnlock()

	out := make([]AnnotatedEvidence, 0, len(records))
	for _, rec := range records {
		if filter.Framework != "" && rec.Evidence.Framework != filter.Framework {
			continue
		}
		if filter.ControlID != "" && rec.Evidence.ControlID != filter.ControlID {
			continue
		}
		result := s.Verify(ctx, rec)
		out = append(out, AnnotatedEvidence{
			SignedEvidence: rec,
			SignatureValid: result.Valid,
		})
		if len(out) == limit {
			break
		}
	}
	return out
}
