package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountType discriminates what a ledger account represents.
type AccountType uint16

const (
	// AccountTenant is the per-tenant context account credited by most transfers.
	AccountTenant AccountType = iota + 1
	// AccountSystem is the system actor account (ingest, pipeline, operators).
	AccountSystem
	// AccountActor represents an individual user or service principal.
	AccountActor
	// AccountKeyMetadata tracks key material lifecycle events.
	AccountKeyMetadata
	// AccountVerification tracks evidence verification events.
	AccountVerification
)

// Account is a ledger-resident entity. Once created it is never
// deleted or mutated; only new transfers may reference it.
type Account struct {
	ID   uuid.UUID   `json:"id"`
	Type AccountType `json:"type"`

	// Partition is the tenant-scoped ledger partition holding this account.
	Partition string `json:"partition"`

	Metadata AccountMetadata `json:"metadata"`
}

// AccountMetadata carries the queryable account fields as an explicit
// struct rather than a packed integer block.
type AccountMetadata struct {
	TenantID  string    `json:"tenant_id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TransferType discriminates what event a transfer records.
type TransferType uint16

const (
	TransferAuthEvent TransferType = iota + 1
	TransferRedaction
	TransferKeyCreation
	TransferKeyRotation
	TransferVerification
	TransferSignal
	TransferSignalStatus
	TransferEvidence
)

// Transfer is one immutable audit/event record. The amount is a small
// counter, never a monetary value. CommittedAt is assigned by the
// ledger at commit time and is the sole ordering key for queries.
type Transfer struct {
	ID uuid.UUID `json:"id"`

	// DebitAccount is the actor side, CreditAccount the context side.
	DebitAccount  uuid.UUID `json:"debit_account"`
	CreditAccount uuid.UUID `json:"credit_account"`

	Amount uint64       `json:"amount"`
	Type   TransferType `json:"type"`

	Partition string `json:"partition"`

	Metadata TransferMetadata `json:"metadata"`

	// CommittedAt is a nanosecond timestamp, strictly increasing and
	// unique within a partition. Zero until committed.
	CommittedAt int64 `json:"committed_at"`
}

// TransferMetadata is the unpacked metadata block of a transfer.
type TransferMetadata struct {
	TenantID   string `json:"tenant_id,omitempty"`
	TraceID    string `json:"trace_id,omitempty"`
	RuleID     string `json:"rule_id,omitempty"`
	SignalID   string `json:"signal_id,omitempty"`
	EvidenceID string `json:"evidence_id,omitempty"`
	KeyID      string `json:"key_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// TransferFilter selects transfers within one partition.
// The zero value matches everything.
type TransferFilter struct {
	// AccountID matches transfers debiting or crediting the account.
	AccountID uuid.UUID

	// Type matches a single transfer type; zero matches all.
	Type TransferType

	// Since/Until bound CommittedAt (inclusive / exclusive).
	// Zero values are unbounded.
	Since int64
	Until int64

	// Limit caps the page size. Zero means the ledger default.
	Limit int

	// After is a continuation token: the CommittedAt of the last
	// transfer of the previous page. Results start strictly after it.
	After int64
}

// TransferPage is one page of an ascending-by-commit-time query.
type TransferPage struct {
	Transfers []Transfer `json:"transfers"`

	// NextToken continues the query where this page ended.
	// Zero when the page is the last one.
	NextToken int64 `json:"next_token,omitempty"`
}

// Ledger is the durable, append-only store of accounts and transfers.
// Implementations enforce single-writer-per-partition semantics
// internally; callers need no external locking.
type Ledger interface {
	// CreatePartition registers a tenant partition. Idempotent.
	CreatePartition(ctx context.Context, partition string) error

	// CreateAccount registers a new account. Fails with
	// ErrDuplicateAccount or ErrInvalidPartition.
	CreateAccount(ctx context.Context, account Account) error

	// CreateTransfer commits a single transfer and returns it with
	// its assigned commit timestamp. Fails with ErrAccountNotFound,
	// ErrDuplicateTransferID or ErrInvalidPartition. A failed call
	// commits nothing.
	CreateTransfer(ctx context.Context, transfer Transfer) (Transfer, error)

	// CreateLinkedTransfers commits all transfers atomically or none.
	// Any sibling failure surfaces as ErrLinkedOperationFailed
	// wrapping the first cause.
	CreateLinkedTransfers(ctx context.Context, transfers []Transfer) ([]Transfer, error)

	// QueryTransfers returns transfers of one partition ordered by
	// commit timestamp ascending. The read is a consistent snapshot;
	// a partition-scoped query never observes another partition.
	QueryTransfers(ctx context.Context, partition string, filter TransferFilter) (TransferPage, error)
}
