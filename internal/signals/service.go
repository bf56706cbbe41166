// Package signals persists rule matches as signals and serves the
// signal query and triage API.
package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/metrics"
)

// Service records signals through the ledger and owns their status
// lifecycle. Unlike audit-event recording, signal persistence never
// degrades: a ledger failure surfaces as a retryable error because
// signals drive incident response.
type Service struct {
	ledger   core.Ledger
	accounts core.AccountResolver
	store    *Store

	// now is swappable for tests.
	now func() time.Time
}

func NewService(ledger core.Ledger, accounts core.AccountResolver) *Service {
	return &Service{
		ledger:   ledger,
		accounts: accounts,
		store:    NewStore(),
		now:      time.Now,
	}
}

// Record persists a new signal. The ledger transfer and the query
// index are written together; a ledger failure aborts the record and
// is returned as retryable.
func (s *Service) Record(ctx context.Context, signal core.Signal) (uuid.UUID, error) {
	if signal.TenantID == "" {
		return uuid.Nil, core.ErrMissingTenantID
	}
	if signal.ID == uuid.Nil {
		signal.ID = uuid.New()
	}
	if signal.Status == "" {
		signal.Status = core.SignalOpen
	}
	now := s.now()
	if signal.CreatedAt.IsZero() {
		signal.CreatedAt = now
	}
	signal.UpdatedAt = signal.CreatedAt

	debit, credit, err := s.accounts.SignalAccounts(signal.TenantID)
	if err != nil {
		return uuid.Nil, core.RetryableError{Err: err}
	}

	transfer := core.Transfer{
		ID:            uuid.New(),
		DebitAccount:  debit,
		CreditAccount: credit,
		Amount:        1,
		Type:          core.TransferSignal,
		Partition:     signal.TenantID,
		Metadata: core.TransferMetadata{
			TenantID: signal.TenantID,
			TraceID:  signal.TraceID,
			RuleID:   signal.RuleID,
			SignalID: signal.ID.String(),
			Detail:   signal.RuleName,
		},
	}
	if _, err := s.ledger.CreateTransfer(ctx, transfer); err != nil {
		return uuid.Nil, core.RetryableError{Err: fmt.Errorf("persisting signal: %w", err)}
	}

	s.store.Insert(signal)
	metrics.SignalsEmitted.Inc()

	log.Info().
		Str("tenant", signal.TenantID).
		Str("rule", signal.RuleID).
		Str("trace", signal.TraceID).
		Str("severity", signal.Severity.String()).
		Msg("signal recorded")
	return signal.ID, nil
}

// Transition moves a signal to the next triage status. Invalid
// transitions are rejected; resolved signals are soft-closed and
// never leave that state.
func (s *Service) Transition(ctx context.Context, tenantID string, id uuid.UUID, next core.SignalStatus) error {
	if !next.IsValid() {
		return fmt.Errorf("%w: unknown status %q", core.ErrInvalidStatusTransition, next)
	}

	sig, ok := s.store.Get(id)
	if !ok || sig.TenantID != tenantID {
		return core.ErrSignalNotFound
	}
	if !sig.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", core.ErrInvalidStatusTransition, sig.Status, next)
	}

	debit, credit, err := s.accounts.SignalAccounts(tenantID)
	if err != nil {
		return core.RetryableError{Err: err}
	}
	transfer := core.Transfer{
		ID:            uuid.New(),
		DebitAccount:  debit,
		CreditAccount: credit,
		Amount:        1,
		Type:          core.TransferSignalStatus,
		Partition:     tenantID,
		Metadata: core.TransferMetadata{
			TenantID: tenantID,
			SignalID: id.String(),
			Detail:   string(sig.Status) + "->" + string(next),
		},
	}
	if _, err := s.ledger.CreateTransfer(ctx, transfer); err != nil {
		return core.RetryableError{Err: fmt.Errorf("persisting status transition: %w", err)}
	}

	s.store.SetStatus(id, next, s.now())
	return nil
}

// Get returns one signal scoped to its tenant.
func (s *Service) Get(tenantID string, id uuid.UUID) (core.Signal, error) {
	sig, ok := s.store.Get(id)
	if !ok || sig.TenantID != tenantID {
		return core.Signal{}, core.ErrSignalNotFound
	}
	return sig, nil
}

// Query lists a tenant's signals with filtering and offset pagination.
func (s *Service) Query(tenantID string, filter Filter) ([]core.Signal, int) {
	return s.store.List(tenantID, filter)
}

// Emitter builds the capability value for one trace evaluation.
// It is the only bridge from sandboxed rule evaluation to the rest of
// the system, and it can do exactly one thing: record a signal.
// The value is scoped to one tenant and one trace; it grants no way
// to reach another tenant's state.
func (s *Service) Emitter(trace core.Trace) core.Capabilities {
	return &emitter{svc: s, trace: trace, severity: core.SeverityMedium}
}

type emitter struct {
	svc   *Service
	trace core.Trace

	// severity is the fallback when the emission context carries none.
	severity core.Severity
}

func (e *emitter) EmitSignal(ruleID, ruleName string, sigCtx map[string]any, matched []core.Span) error {
	ids := make([]string, 0, len(matched))
	for _, sp := range matched {
		ids = append(ids, sp.SpanID)
	}

	severity := e.severity
	if raw, ok := sigCtx["severity"].(string); ok {
		if parsed, err := core.ParseSeverity(raw); err == nil {
			severity = parsed
		}
	}

	_, err := e.svc.Record(context.Background(), core.Signal{
		TenantID:       e.trace.TenantID,
		RuleID:         ruleID,
		RuleName:       ruleName,
		TraceID:        e.trace.TraceID,
		Severity:       severity,
		Status:         core.SignalOpen,
		MatchedSpanIDs: ids,
		Context:        sigCtx,
	})
	return err
}
