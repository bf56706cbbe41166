package core

import "github.com/google/uuid"

// AccountResolver resolves the well-known accounts of a tenant
// partition. Every transfer debits an actor account and credits a
// context account; the resolver owns that pairing per event class.
type AccountResolver interface {
	// SignalAccounts returns the (debit, credit) pair for signal transfers.
	SignalAccounts(tenantID string) (uuid.UUID, uuid.UUID, error)

	// EvidenceAccounts returns the pair for evidence transfers.
	EvidenceAccounts(tenantID string) (uuid.UUID, uuid.UUID, error)

	// AuditAccounts returns the pair for audit-event transfers.
	AuditAccounts(tenantID string) (uuid.UUID, uuid.UUID, error)

	// KeyAccounts returns the pair for key lifecycle transfers.
	KeyAccounts(tenantID string) (uuid.UUID, uuid.UUID, error)
}
