package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

const DefaultQueryLimit = 100

var _ core.Ledger = (*MemoryLedger)(nil)

// MemoryLedger is the in-process append-only ledger. Each tenant
// partition has its own mutex, so a writer in partition P never
// blocks or observes partition Q.
type MemoryLedger struct {
	mu         sync.RWMutex
	partitions map[string]*partition

	// now is swappable for tests.
	now func() time.Time
}

type partition struct {
	mu sync.Mutex

	accounts map[uuid.UUID]core.Account

	// transfers is append-only in commit order.
	transfers  []core.Transfer
	transferID map[uuid.UUID]struct{}

	// lastCommit guarantees strictly increasing timestamps even when
	// the wall clock stalls or steps backwards.
	lastCommit int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		partitions: make(map[string]*partition),
		now:        time.Now,
	}
}

func (l *MemoryLedger) CreatePartition(_ context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty partition name", core.ErrInvalidPartition)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.partitions[name]; ok {
		return nil // idempotent
	}
	l.partitions[name] = &partition{
		accounts:   make(map[uuid.UUID]core.Account),
		transferID: make(map[uuid.UUID]struct{}),
	}
	return nil
}

func (l *MemoryLedger) getPartition(name string) (*partition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.partitions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidPartition, name)
	}
	return p, nil
}

func (l *MemoryLedger) CreateAccount(_ context.Context, account core.Account) error {
	p, err := l.getPartition(account.Partition)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.accounts[account.ID]; ok {
		return fmt.Errorf("%w: %s", core.ErrDuplicateAccount, account.ID)
	}
	if account.Metadata.CreatedAt.IsZero() {
		account.Metadata.CreatedAt = l.now()
	}
	p.accounts[account.ID] = account
	return nil
}

func (l *MemoryLedger) CreateTransfer(_ context.Context, transfer core.Transfer) (core.Transfer, error) {
	p, err := l.getPartition(transfer.Partition)
	if err != nil {
		return core.Transfer{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.validate(transfer); err != nil {
		return core.Transfer{}, err
	}
	return p.commit(transfer, l.now()), nil
}

func (l *MemoryLedger) CreateLinkedTransfers(_ context.Context, transfers []core.Transfer) ([]core.Transfer, error) {
	if len(transfers) == 0 {
		return nil, nil
	}

	// A linked batch is atomic, so all transfers must share a partition.
	for _, t := range transfers[1:] {
		if t.Partition != transfers[0].Partition {
			return nil, fmt.Errorf("%w: transfers span partitions %q and %q",
				core.ErrLinkedOperationFailed, transfers[0].Partition, t.Partition)
		}
	}

	p, err := l.getPartition(transfers[0].Partition)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrLinkedOperationFailed, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Validate every sibling before committing anything.
	seen := make(map[uuid.UUID]struct{}, len(transfers))
	for _, t := range transfers {
		if err := p.validate(t); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrLinkedOperationFailed, err)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("%w: %w within batch",
				core.ErrLinkedOperationFailed, core.ErrDuplicateTransferID)
		}
		seen[t.ID] = struct{}{}
	}

	committed := make([]core.Transfer, 0, len(transfers))
	now := l.now()
	for _, t := range transfers {
		committed = append(committed, p.commit(t, now))
	}
	return committed, nil
}

// validate checks a transfer against partition state.
// Caller holds p.mu.
func (p *partition) validate(t core.Transfer) error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("transfer id must not be nil")
	}
	if _, dup := p.transferID[t.ID]; dup {
		return fmt.Errorf("%w: %s", core.ErrDuplicateTransferID, t.ID)
	}
	if _, ok := p.accounts[t.DebitAccount]; !ok {
		return fmt.Errorf("%w: debit %s", core.ErrAccountNotFound, t.DebitAccount)
	}
	if _, ok := p.accounts[t.CreditAccount]; !ok {
		return fmt.Errorf("%w: credit %s", core.ErrAccountNotFound, t.CreditAccount)
	}
	return nil
}

// commit appends the transfer with a strictly increasing timestamp.
// Caller holds p.mu.
func (p *partition) commit(t core.Transfer, now time.Time) core.Transfer {
	ts := now.UnixNano()
	if ts <= p.lastCommit {
		ts = p.lastCommit + 1
	}
	p.lastCommit = ts
	t.CommittedAt = ts

	p.transfers = append(p.transfers, t)
	p.transferID[t.ID] = struct{}{}
	return t
}

func (l *MemoryLedger) QueryTransfers(_ context.Context, part string, filter core.TransferFilter) (core.TransferPage, error) {
	p, err := l.getPartition(part)
	if err != nil {
		return core.TransferPage{}, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var page core.TransferPage
	for _, t := range p.transfers {
		if !matches(t, filter) {
			continue
		}
		if len(page.Transfers) == limit {
			// More rows exist past the page boundary.
			page.NextToken = page.Transfers[limit-1].CommittedAt
			return page, nil
		}
		page.Transfers = append(page.Transfers, t)
	}
	return page, nil
}

func matches(t core.Transfer, f core.TransferFilter) bool {
	if f.After != 0 && t.CommittedAt <= f.After {
		return false
	}
	if f.Since != 0 && t.CommittedAt < f.Since {
		return false
	}
	if f.Until != 0 && t.CommittedAt >= f.Until {
		return false
	}
	if f.Type != 0 && t.Type != f.Type {
		return false
	}
	if f.AccountID != uuid.Nil && t.DebitAccount != f.AccountID && t.CreditAccount != f.AccountID {
		return false
	}
	return true
}
