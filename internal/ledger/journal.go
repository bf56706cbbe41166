package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

var _ core.Ledger = (*JournaledLedger)(nil)

// JournaledLedger delegates to an inner ledger and appends every
// committed record to a JSONL file. The journal is write-only; it
// exists so an operator can reconstruct the ledger after a restart.
type JournaledLedger struct {
	inner core.Ledger

	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

type journalRecord struct {
	Kind      string         `json:"kind"` // "partition", "account" or "transfer"
	Partition string         `json:"partition,omitempty"`
	Account   *core.Account  `json:"account,omitempty"`
	Transfer  *core.Transfer `json:"transfer,omitempty"`
}

func NewJournaledLedger(inner core.Ledger, filePath string) (*JournaledLedger, error) {
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening ledger journal: %w", err)
	}
	return &JournaledLedger{
		inner:   inner,
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

func (j *JournaledLedger) append(rec journalRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.encoder.Encode(rec); err != nil {
		return fmt.Errorf("writing ledger journal entry: %w", err)
	}
	return nil
}

func (j *JournaledLedger) CreatePartition(ctx context.Context, partition string) error {
	if err := j.inner.CreatePartition(ctx, partition); err != nil {
		return err
	}
	return j.append(journalRecord{Kind: "partition", Partition: partition})
}

func (j *JournaledLedger) CreateAccount(ctx context.Context, account core.Account) error {
	if err := j.inner.CreateAccount(ctx, account); err != nil {
		return err
	}
	return j.append(journalRecord{Kind: "account", Account: &account})
}

func (j *JournaledLedger) CreateTransfer(ctx context.Context, transfer core.Transfer) (core.Transfer, error) {
	committed, err := j.inner.CreateTransfer(ctx, transfer)
	if err != nil {
		return core.Transfer{}, err
	}
	return committed, j.append(journalRecord{Kind: "transfer", Transfer: &committed})
}

func (j *JournaledLedger) CreateLinkedTransfers(ctx context.Context, transfers []core.Transfer) ([]core.Transfer, error) {
	committed, err := j.inner.CreateLinkedTransfers(ctx, transfers)
	if err != nil {
		return nil, err
	}
	for i := range committed {
		if err := j.append(journalRecord{Kind: "transfer", Transfer: &committed[i]}); err != nil {
			return committed, err
		}
	}
	return committed, nil
}

func (j *JournaledLedger) QueryTransfers(ctx context.Context, partition string, filter core.TransferFilter) (core.TransferPage, error) {
	return j.inner.QueryTransfers(ctx, partition, filter)
}

func (j *JournaledLedger) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
