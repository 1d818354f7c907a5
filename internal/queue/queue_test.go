package queue_test

import (
	"context"
	"errors"
	"testing"

	"synnergy-registrar/internal/queue"
	"synnergy-registrar/internal/regerrors"
)

type stubConfirmer struct {
	confirmations map[string]int
}

func (s stubConfirmer) Confirmations(_ context.Context, txHash string) (int, error) {
	return s.confirmations[txHash], nil
}

func openTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	q, err := queue.Open(t.TempDir(), 6, 4320)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestAppendAndContains(t *testing.T) {
	q := openTestQueue(t)
	e := queue.Entry{Category: queue.CategoryPreorder, FQU: "alice.id", TxHash: "0xabc"}
	if err := q.Append(e); err != nil {
		t.Fatalf("append: %v", err)
	}
	ok, err := q.Contains(queue.CategoryPreorder, "alice.id")
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !ok {
		t.Fatalf("expected entry to be present")
	}
}

func TestAppendDuplicateFails(t *testing.T) {
	q := openTestQueue(t)
	e := queue.Entry{Category: queue.CategoryPreorder, FQU: "alice.id"}
	if err := q.Append(e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := q.Append(e); !errors.Is(err, regerrors.ErrAlreadyQueued) {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}
}

func TestFindAcceptedFiltersByConfirmations(t *testing.T) {
	q := openTestQueue(t)
	for _, e := range []queue.Entry{
		{Category: queue.CategoryPreorder, FQU: "ready.id", TxHash: "0x1"},
		{Category: queue.CategoryPreorder, FQU: "pending.id", TxHash: "0x2"},
	} {
		if err := q.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	chain := stubConfirmer{confirmations: map[string]int{"0x1": 10, "0x2": 1}}
	accepted, err := q.FindAccepted(context.Background(), queue.CategoryPreorder, chain)
	if err != nil {
		t.Fatalf("find accepted: %v", err)
	}
	if len(accepted) != 1 || accepted[0].FQU != "ready.id" {
		t.Fatalf("expected only ready.id accepted, got %+v", accepted)
	}
}

func TestRemoveAllIsIdempotent(t *testing.T) {
	q := openTestQueue(t)
	e := queue.Entry{Category: queue.CategoryRenew, FQU: "bob.id"}
	if err := q.Append(e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := q.RemoveAll([]queue.Entry{e}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := q.RemoveAll([]queue.Entry{e}); err != nil {
		t.Fatalf("remove again should be a no-op: %v", err)
	}
	ok, err := q.Contains(queue.CategoryRenew, "bob.id")
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if ok {
		t.Fatalf("expected entry to be gone")
	}
}

func TestAddErrorMessageAnnotatesExistingRow(t *testing.T) {
	q := openTestQueue(t)
	e := queue.Entry{Category: queue.CategoryUpdate, FQU: "carol.id"}
	if err := q.Append(e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := q.AddErrorMessage(queue.CategoryUpdate, "carol.id", "boom"); err != nil {
		t.Fatalf("add error message: %v", err)
	}
	rows, err := q.Find(queue.CategoryUpdate, "carol.id", 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 || rows[0].LastError != "boom" {
		t.Fatalf("expected annotated row, got %+v", rows)
	}
}

func TestCleanupPreorderExpired(t *testing.T) {
	q := openTestQueue(t)
	old := queue.Entry{Category: queue.CategoryPreorder, FQU: "old.id", BlockHeightBroadcast: 100}
	fresh := queue.Entry{Category: queue.CategoryPreorder, FQU: "fresh.id", BlockHeightBroadcast: 9000}
	for _, e := range []queue.Entry{old, fresh} {
		if err := q.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := q.CleanupPreorderExpired(10000); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	rows, err := q.All(queue.CategoryPreorder)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(rows) != 1 || rows[0].FQU != "fresh.id" {
		t.Fatalf("expected only fresh.id to survive, got %+v", rows)
	}
}
