package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

var _ core.AccountResolver = (*Accounts)(nil)

// Accounts bootstraps and resolves the well-known accounts of each
// tenant partition: the tenant context account, the system actor
// account, and the key-metadata account.
type Accounts struct {
	ledger core.Ledger

	mu      sync.RWMutex
	tenants map[string]tenantAccounts
}

type tenantAccounts struct {
	tenant      uuid.UUID
	system      uuid.UUID
	keyMetadata uuid.UUID
}

func NewAccounts(l core.Ledger) *Accounts {
	return &Accounts{
		ledger:  l,
		tenants: make(map[string]tenantAccounts),
	}
}

// Bootstrap creates the tenant's partition and well-known accounts.
// Called once per configured tenant at startup.
func (a *Accounts) Bootstrap(ctx context.Context, tenantID string) error {
	if err := a.ledger.CreatePartition(ctx, tenantID); err != nil {
		return fmt.Errorf("creating partition for %q: %w", tenantID, err)
	}

	accounts := tenantAccounts{
		tenant:      uuid.New(),
		system:      uuid.New(),
		keyMetadata: uuid.New(),
	}

	create := func(id uuid.UUID, typ core.AccountType, label string) error {
		return a.ledger.CreateAccount(ctx, core.Account{
			ID:        id,
			Type:      typ,
			Partition: tenantID,
			Metadata: core.AccountMetadata{
				TenantID: tenantID,
				Label:    label,
			},
		})
	}

	if err := create(accounts.tenant, core.AccountTenant, "tenant"); err != nil {
		return err
	}
	if err := create(accounts.system, core.AccountSystem, "system"); err != nil {
		return err
	}
	if err := create(accounts.keyMetadata, core.AccountKeyMetadata, "key-metadata"); err != nil {
		return err
	}

	a.mu.Lock()
	a.tenants[tenantID] = accounts
	a.mu.Unlock()
	return nil
}

func (a *Accounts) lookup(tenantID string) (tenantAccounts, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	t, ok := a.tenants[tenantID]
	if !ok {
		return tenantAccounts{}, fmt.Errorf("%w: tenant %q not bootstrapped", core.ErrInvalidPartition, tenantID)
	}
	return t, nil
}

func (a *Accounts) SignalAccounts(tenantID string) (uuid.UUID, uuid.UUID, error) {
	t, err := a.lookup(tenantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return t.system, t.tenant, nil
}

func (a *Accounts) EvidenceAccounts(tenantID string) (uuid.UUID, uuid.UUID, error) {
	t, err := a.lookup(tenantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return t.system, t.tenant, nil
}

func (a *Accounts) AuditAccounts(tenantID string) (uuid.UUID, uuid.UUID, error) {
	t, err := a.lookup(tenantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return t.system, t.tenant, nil
}

func (a *Accounts) KeyAccounts(tenantID string) (uuid.UUID, uuid.UUID, error) {
	t, err := a.lookup(tenantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return t.system, t.keyMetadata, nil
}
