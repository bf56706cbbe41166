package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

func setupPartition(t *testing.T, l *MemoryLedger, name string) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	if err := l.CreatePartition(ctx, name); err != nil {
		t.Fatalf("CreatePartition() error = %v", err)
	}
	debit, credit := uuid.New(), uuid.New()
	for _, acc := range []core.Account{
		{ID: debit, Type: core.AccountSystem, Partition: name},
		{ID: credit, Type: core.AccountTenant, Partition: name},
	} {
		if err := l.CreateAccount(ctx, acc); err != nil {
			t.Fatalf("CreateAccount() error = %v", err)
		}
	}
	return debit, credit
}

func TestMemoryLedger_DuplicateTransferID(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	debit, credit := setupPartition(t, l, "tenant-a")

	transfer := core.Transfer{
		ID:            uuid.New(),
		DebitAccount:  debit,
		CreditAccount: credit,
		Amount:        1,
		Type:          core.TransferSignal,
		Partition:     "tenant-a",
	}

	first, err := l.CreateTransfer(ctx, transfer)
	if err != nil {
		t.Fatalf("first CreateTransfer() error = %v", err)
	}
	if first.CommittedAt == 0 {
		t.Fatal("first transfer has no commit timestamp")
	}

	if _, err := l.CreateTransfer(ctx, transfer); !errors.Is(err, core.ErrDuplicateTransferID) {
		t.Fatalf("second CreateTransfer() error = %v, want ErrDuplicateTransferID", err)
	}

	// the failed attempt must not have committed anything
	page, err := l.QueryTransfers(ctx, "tenant-a", core.TransferFilter{})
	if err != nil {
		t.Fatalf("QueryTransfers() error = %v", err)
	}
	if len(page.Transfers) != 1 {
		t.Fatalf("got %d transfers, want 1", len(page.Transfers))
	}
	if page.Transfers[0].CommittedAt != first.CommittedAt {
		t.Errorf("committed transfer changed: got %d, want %d",
			page.Transfers[0].CommittedAt, first.CommittedAt)
	}
}

func TestMemoryLedger_StrictlyIncreasingCommits(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	debit, credit := setupPartition(t, l, "tenant-a")

	// freeze the clock so every commit collides on the same nanosecond
	frozen := time.Unix(1700000000, 0)
	l.now = func() time.Time { return frozen }

	var last int64
	for i := 0; i < 10; i++ {
		committed, err := l.CreateTransfer(ctx, core.Transfer{
			ID:            uuid.New(),
			DebitAccount:  debit,
			CreditAccount: credit,
			Amount:        1,
			Type:          core.TransferAuthEvent,
			Partition:     "tenant-a",
		})
		if err != nil {
			t.Fatalf("CreateTransfer() error = %v", err)
		}
		if committed.CommittedAt <= last {
			t.Fatalf("commit %d: timestamp %d not after %d", i, committed.CommittedAt, last)
		}
		last = committed.CommittedAt
	}
}

func TestMemoryLedger_PartitionIsolation(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	debitA, creditA := setupPartition(t, l, "tenant-a")
	setupPartition(t, l, "tenant-b")

	if _, err := l.CreateTransfer(ctx, core.Transfer{
		ID:            uuid.New(),
		DebitAccount:  debitA,
		CreditAccount: creditA,
		Amount:        1,
		Type:          core.TransferSignal,
		Partition:     "tenant-a",
	}); err != nil {
		t.Fatalf("CreateTransfer() error = %v", err)
	}

	// accounts of partition A are invisible to partition B
	if _, err := l.CreateTransfer(ctx, core.Transfer{
		ID:            uuid.New(),
		DebitAccount:  debitA,
		CreditAccount: creditA,
		Amount:        1,
		Type:          core.TransferSignal,
		Partition:     "tenant-b",
	}); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("cross-partition CreateTransfer() error = %v, want ErrAccountNotFound", err)
	}

	pageB, err := l.QueryTransfers(ctx, "tenant-b", core.TransferFilter{})
	if err != nil {
		t.Fatalf("QueryTransfers() error = %v", err)
	}
	if len(pageB.Transfers) != 0 {
		t.Errorf("partition b observed %d transfers, want 0", len(pageB.Transfers))
	}
}

func TestMemoryLedger_UnknownPartition(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	_, err := l.CreateTransfer(ctx, core.Transfer{
		ID:        uuid.New(),
		Partition: "nope",
	})
	if !errors.Is(err, core.ErrInvalidPartition) {
		t.Fatalf("CreateTransfer() error = %v, want ErrInvalidPartition", err)
	}
}

func TestMemoryLedger_LinkedTransfers(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	debit, credit := setupPartition(t, l, "tenant-a")

	valid := func() core.Transfer {
		return core.Transfer{
			ID:            uuid.New(),
			DebitAccount:  debit,
			CreditAccount: credit,
			Amount:        1,
			Type:          core.TransferEvidence,
			Partition:     "tenant-a",
		}
	}

	t.Run("all or nothing on failure", func(t *testing.T) {
		bad := valid()
		bad.DebitAccount = uuid.New() // unknown account

		_, err := l.CreateLinkedTransfers(ctx, []core.Transfer{valid(), bad, valid()})
		if !errors.Is(err, core.ErrLinkedOperationFailed) {
			t.Fatalf("CreateLinkedTransfers() error = %v, want ErrLinkedOperationFailed", err)
		}
		if !errors.Is(err, core.ErrAccountNotFound) {
			t.Fatalf("CreateLinkedTransfers() error = %v, want wrapped ErrAccountNotFound", err)
		}

		page, _ := l.QueryTransfers(ctx, "tenant-a", core.TransferFilter{})
		if len(page.Transfers) != 0 {
			t.Errorf("failed batch committed %d transfers, want 0", len(page.Transfers))
		}
	})

	t.Run("commits all siblings", func(t *testing.T) {
		committed, err := l.CreateLinkedTransfers(ctx, []core.Transfer{valid(), valid(), valid()})
		if err != nil {
			t.Fatalf("CreateLinkedTransfers() error = %v", err)
		}
		if len(committed) != 3 {
			t.Fatalf("got %d committed transfers, want 3", len(committed))
		}
		for i := 1; i < len(committed); i++ {
			if committed[i].CommittedAt <= committed[i-1].CommittedAt {
				t.Errorf("sibling %d timestamp %d not after %d",
					i, committed[i].CommittedAt, committed[i-1].CommittedAt)
			}
		}
	})

	t.Run("rejects duplicate id within batch", func(t *testing.T) {
		dup := valid()
		_, err := l.CreateLinkedTransfers(ctx, []core.Transfer{dup, dup})
		if !errors.Is(err, core.ErrDuplicateTransferID) {
			t.Fatalf("CreateLinkedTransfers() error = %v, want ErrDuplicateTransferID", err)
		}
	})
}

func TestMemoryLedger_Pagination(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	debit, credit := setupPartition(t, l, "tenant-a")

	for i := 0; i < 7; i++ {
		if _, err := l.CreateTransfer(ctx, core.Transfer{
			ID:            uuid.New(),
			DebitAccount:  debit,
			CreditAccount: credit,
			Amount:        1,
			Type:          core.TransferSignal,
			Partition:     "tenant-a",
		}); err != nil {
			t.Fatalf("CreateTransfer() error = %v", err)
		}
	}

	var (
		seen  []core.Transfer
		after int64
		pages int
	)
	for {
		page, err := l.QueryTransfers(ctx, "tenant-a", core.TransferFilter{Limit: 3, After: after})
		if err != nil {
			t.Fatalf("QueryTransfers() error = %v", err)
		}
		seen = append(seen, page.Transfers...)
		pages++
		if page.NextToken == 0 {
			break
		}
		after = page.NextToken
	}

	if pages != 3 {
		t.Errorf("got %d pages, want 3", pages)
	}
	if len(seen) != 7 {
		t.Fatalf("got %d transfers across pages, want 7", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i].CommittedAt <= seen[i-1].CommittedAt {
			t.Errorf("transfer %d out of order", i)
		}
	}
}

func TestMemoryLedger_QueryFilters(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	debit, credit := setupPartition(t, l, "tenant-a")
	other := uuid.New()
	if err := l.CreateAccount(ctx, core.Account{ID: other, Type: core.AccountActor, Partition: "tenant-a"}); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	mk := func(typ core.TransferType, debitAcc uuid.UUID) {
		t.Helper()
		if _, err := l.CreateTransfer(ctx, core.Transfer{
			ID:            uuid.New(),
			DebitAccount:  debitAcc,
			CreditAccount: credit,
			Amount:        1,
			Type:          typ,
			Partition:     "tenant-a",
		}); err != nil {
			t.Fatalf("CreateTransfer() error = %v", err)
		}
	}
	mk(core.TransferSignal, debit)
	mk(core.TransferEvidence, debit)
	mk(core.TransferSignal, other)

	page, err := l.QueryTransfers(ctx, "tenant-a", core.TransferFilter{Type: core.TransferSignal})
	if err != nil {
		t.Fatalf("QueryTransfers() error = %v", err)
	}
	if len(page.Transfers) != 2 {
		t.Errorf("type filter: got %d transfers, want 2", len(page.Transfers))
	}

	page, err = l.QueryTransfers(ctx, "tenant-a", core.TransferFilter{AccountID: other})
	if err != nil {
		t.Fatalf("QueryTransfers() error = %v", err)
	}
	if len(page.Transfers) != 1 {
		t.Errorf("account filter: got %d transfers, want 1", len(page.Transfers))
	}
}
