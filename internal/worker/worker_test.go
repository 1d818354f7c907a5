package worker_test

import (
	"context"
	"testing"
	"time"

	"synnergy-registrar/internal/chainadapter"
	"synnergy-registrar/internal/issuer"
	"synnergy-registrar/internal/keys"
	"synnergy-registrar/internal/queue"
	"synnergy-registrar/internal/replicator"
	"synnergy-registrar/internal/storage"
	"synnergy-registrar/internal/walletcache"
	"synnergy-registrar/internal/worker"
)

const testPrivHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func setup(t *testing.T) (*queue.Queue, *chainadapter.MockClient, *issuer.Issuer, *walletcache.Cache, *worker.Worker) {
	t.Helper()
	q, err := queue.Open(t.TempDir(), 1, 4320)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })

	chain := chainadapter.NewMockClient()
	wallet := walletcache.New()
	key := keys.KeyInfo{Singlesig: &keys.SinglesigKey{PrivateKeyHex: testPrivHex}}
	if err := wallet.SetWallet("payAddr", key, "ownerAddr", key, "dataAddr", key); err != nil {
		t.Fatalf("set wallet: %v", err)
	}

	iss := issuer.New(q, chain, wallet, 1)
	router := storage.NewRouter()
	repl, err := replicator.New(fakeAtlasForWorker{}, chain, router, nil)
	if err != nil {
		t.Fatalf("new replicator: %v", err)
	}
	w := worker.New(q, chain, iss, repl, wallet, 10*time.Millisecond)
	return q, chain, iss, wallet, w
}

type fakeAtlasForWorker struct{}

func (fakeAtlasForWorker) GetPeers(host string) ([]string, error) { return []string{host}, nil }
func (fakeAtlasForWorker) PushZonefile(_ context.Context, _ string, _ []byte) (int, error) {
	return 0, nil
}

func TestWorkerPromotesAcceptedPreorderToRegister(t *testing.T) {
	q, chain, iss, _, w := setup(t)

	tx, err := iss.Preorder(context.Background(), "alice.id", 1000, nil, nil, "", 0)
	if err != nil {
		t.Fatalf("preorder: %v", err)
	}
	chain.Confirms[tx] = 10 // above the queue's configured min of 1

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	<-done

	stillPreordered, err := q.Contains(queue.CategoryPreorder, "alice.id")
	if err != nil {
		t.Fatalf("contains preorder: %v", err)
	}
	if stillPreordered {
		t.Fatalf("expected preorder entry to be cleared once registered")
	}
}

// TestWorkerRunsFullLifecycle drives a single name all the way from preorder
// through register, update and a carried-forward transfer, confirming each
// broadcast as it's produced so the worker's state machine walks every step
// in one test (spec.md §4.7, §8 scenario 1).
func TestWorkerRunsFullLifecycle(t *testing.T) {
	q, chain, iss, _, w := setup(t)
	zonefile := []byte("$ORIGIN alice.id.\n$TTL 3600\n@ IN SOA ns1.example.com. admin.example.com. 1 7200 3600 1209600 3600\n@ IN NS ns1.example.com.\n")

	preorderTx, err := iss.Preorder(context.Background(), "alice.id", 1000, zonefile, nil, "newOwner", 0)
	if err != nil {
		t.Fatalf("preorder: %v", err)
	}
	chain.Confirms[preorderTx] = 10

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := runCycles(t, w); err != nil {
			t.Fatalf("cycle: %v", err)
		}
		// Confirm whatever broadcast the last cycle produced so the next
		// cycle can promote it.
		for _, tx := range chain.Broadcasts {
			if chain.Confirms[tx] < 10 {
				chain.Confirms[tx] = 10
			}
		}

		rec, err := chain.GetNameRecord(context.Background(), "alice.id")
		if err == nil && rec.Address == "newOwner" {
			stillUpdated, err := q.Contains(queue.CategoryUpdate, "alice.id")
			if err != nil {
				t.Fatalf("contains update: %v", err)
			}
			if !stillUpdated {
				return
			}
		}
	}
	t.Fatalf("name never reached newOwner via the full pipeline; broadcasts=%v", chain.Broadcasts)
}

// runCycles drives the worker through Run's timer loop for 50ms (a few
// 10ms poll cycles) and then returns, so the test can inspect and mutate
// chain state between calls.
func runCycles(t *testing.T, w *worker.Worker) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w.Run(ctx)
	return nil
}

func TestWorkerSkipsCycleWhenWalletLocked(t *testing.T) {
	q, err := queue.Open(t.TempDir(), 1, 4320)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	defer q.Close()
	chain := chainadapter.NewMockClient()
	wallet := walletcache.New()
	iss := issuer.New(q, chain, wallet, 1)
	router := storage.NewRouter()
	repl, _ := replicator.New(fakeAtlasForWorker{}, chain, router, nil)
	w := worker.New(q, chain, iss, repl, wallet, 10*time.Millisecond)

	// A confirmed preorder row that an unlocked worker would promote.
	if err := q.Append(queue.Entry{Category: queue.CategoryPreorder, FQU: "alice.id", TxHash: "0xabc"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	chain.Confirms["0xabc"] = 10

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w.Run(ctx) // must return promptly on ctx cancellation, not hang

	stillPreordered, err := q.Contains(queue.CategoryPreorder, "alice.id")
	if err != nil {
		t.Fatalf("contains preorder: %v", err)
	}
	if !stillPreordered {
		t.Fatalf("expected preorder row to be left alone while the wallet is locked")
	}
	if len(chain.Broadcasts) != 0 {
		t.Fatalf("expected no broadcasts while the wallet is locked, got %v", chain.Broadcasts)
	}
}
