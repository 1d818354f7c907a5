package issuer_test

import (
	"context"
	"errors"
	"testing"

	"synnergy-registrar/internal/chainadapter"
	"synnergy-registrar/internal/issuer"
	"synnergy-registrar/internal/keys"
	"synnergy-registrar/internal/queue"
	"synnergy-registrar/internal/regerrors"
	"synnergy-registrar/internal/replicator"
	"synnergy-registrar/internal/walletcache"
)

const testPrivHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func unlockedWallet(t *testing.T) *walletcache.Cache {
	t.Helper()
	w := walletcache.New()
	key := keys.KeyInfo{Singlesig: &keys.SinglesigKey{PrivateKeyHex: testPrivHex}}
	if err := w.SetWallet("payAddr", key, "ownerAddr", key, "dataAddr", key); err != nil {
		t.Fatalf("set wallet: %v", err)
	}
	return w
}

func newTestIssuer(t *testing.T) (*issuer.Issuer, *queue.Queue, *chainadapter.MockClient, *walletcache.Cache) {
	t.Helper()
	q, err := queue.Open(t.TempDir(), 6, 4320)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	chain := chainadapter.NewMockClient()
	wallet := unlockedWallet(t)
	return issuer.New(q, chain, wallet, 6), q, chain, wallet
}

func TestPreorderRequiresUnlockedWallet(t *testing.T) {
	q, err := queue.Open(t.TempDir(), 6, 4320)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	defer q.Close()
	iss := issuer.New(q, chainadapter.NewMockClient(), walletcache.New(), 6)

	if _, err := iss.Preorder(context.Background(), "alice.id", 1000, nil, nil, "", 0); !errors.Is(err, regerrors.ErrWalletLocked) {
		t.Fatalf("expected ErrWalletLocked, got %v", err)
	}
}

func TestPreorderQueuesEntry(t *testing.T) {
	iss, q, _, _ := newTestIssuer(t)

	tx, err := iss.Preorder(context.Background(), "alice.id", 1000, []byte("zonefile-bytes"), []byte("token-bytes"), "newOwner", 0)
	if err != nil {
		t.Fatalf("preorder: %v", err)
	}
	if tx == "" {
		t.Fatalf("expected non-empty tx hash")
	}
	rows, err := q.Find(queue.CategoryPreorder, "alice.id", 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected preorder entry to be queued")
	}
	if string(rows[0].Payload) != "zonefile-bytes" || string(rows[0].TokenFile) != "token-bytes" || rows[0].TransferAddress != "newOwner" {
		t.Fatalf("expected preorder row to carry forward zonefile/token/transfer fields, got %+v", rows[0])
	}
}

func TestPreorderRejectsDuplicateQueueEntry(t *testing.T) {
	iss, _, _, _ := newTestIssuer(t)
	if _, err := iss.Preorder(context.Background(), "alice.id", 1000, nil, nil, "", 0); err != nil {
		t.Fatalf("first preorder: %v", err)
	}
	if _, err := iss.Preorder(context.Background(), "alice.id", 1000, nil, nil, "", 0); !errors.Is(err, regerrors.ErrAlreadyQueued) {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}
}

func TestPreorderRejectsAlreadyRegisteredName(t *testing.T) {
	iss, _, chain, _ := newTestIssuer(t)
	chain.Registered["alice.id"] = chainadapter.NameRecord{Address: "someone"}

	if _, err := iss.Preorder(context.Background(), "alice.id", 1000, nil, nil, "", 0); !errors.Is(err, regerrors.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestRegisterRejectsWithoutAcceptedPreorder(t *testing.T) {
	iss, _, _, _ := newTestIssuer(t)
	if _, err := iss.Register(context.Background(), "alice.id", false, nil, nil, ""); !errors.Is(err, regerrors.ErrNotPreordered) {
		t.Fatalf("expected ErrNotPreordered, got %v", err)
	}
}

func TestRegisterSucceedsWhenPreorderAccepted(t *testing.T) {
	iss, q, _, _ := newTestIssuer(t)
	tx, err := iss.Register(context.Background(), "alice.id", true, []byte("zonefile-bytes"), []byte("token-bytes"), "newOwner")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if tx == "" {
		t.Fatalf("expected tx hash")
	}
	rows, err := q.Find(queue.CategoryRegister, "alice.id", 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected register entry to be queued")
	}
	if string(rows[0].Payload) != "zonefile-bytes" || string(rows[0].TokenFile) != "token-bytes" || rows[0].TransferAddress != "newOwner" {
		t.Fatalf("expected register row to carry forward zonefile/token/transfer fields, got %+v", rows[0])
	}
}

func TestRegisterRejectsAlreadyRegisteredName(t *testing.T) {
	iss, _, chain, _ := newTestIssuer(t)
	chain.Registered["alice.id"] = chainadapter.NameRecord{Address: "someone"}

	if _, err := iss.Register(context.Background(), "alice.id", true, nil, nil, ""); !errors.Is(err, regerrors.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestUpdateQueuesPayloadAndHash(t *testing.T) {
	iss, q, _, _ := newTestIssuer(t)
	zonefile := []byte("zonefile-bytes")
	hash := "deadbeef"
	if _, warning, err := iss.Update(context.Background(), "alice.id", zonefile, nil, hash, ""); err != nil {
		t.Fatalf("update: %v", err)
	} else if warning != "" {
		t.Fatalf("expected no warning, got %q", warning)
	}
	rows, err := q.Find(queue.CategoryUpdate, "alice.id", 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 || string(rows[0].Payload) != string(zonefile) || rows[0].ZonefileHash != hash {
		t.Fatalf("unexpected queued update entry: %+v", rows)
	}
}

func TestUpdateDerivesHashFromZonefileWhenHashOmitted(t *testing.T) {
	iss, q, _, _ := newTestIssuer(t)
	zonefile := []byte("zonefile-bytes")
	if _, _, err := iss.Update(context.Background(), "alice.id", zonefile, nil, "", ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	rows, err := q.Find(queue.CategoryUpdate, "alice.id", 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 || rows[0].ZonefileHash != replicator.ZonefileHash(zonefile) {
		t.Fatalf("expected derived zonefile hash, got %+v", rows)
	}
}

func TestUpdateSkipsBroadcastWhenHashAlreadyCurrent(t *testing.T) {
	iss, q, chain, _ := newTestIssuer(t)
	zonefile := []byte("zonefile-bytes")
	hash := replicator.ZonefileHash(zonefile)
	chain.CurrentHash["alice.id"] = hash

	tx, warning, err := iss.Update(context.Background(), "alice.id", zonefile, nil, "", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if tx != "" {
		t.Fatalf("expected no tx hash when unchanged, got %q", tx)
	}
	if warning != "unchanged" {
		t.Fatalf("expected unchanged warning, got %q", warning)
	}
	ok, err := q.Contains(queue.CategoryUpdate, "alice.id")
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if ok {
		t.Fatalf("expected no update row to be queued when unchanged")
	}
}

func TestUpdateCarriesTransferAddressForward(t *testing.T) {
	iss, q, _, _ := newTestIssuer(t)
	if _, _, err := iss.Update(context.Background(), "alice.id", []byte("zonefile-bytes"), []byte("token-bytes"), "", "newOwner"); err != nil {
		t.Fatalf("update: %v", err)
	}
	rows, err := q.Find(queue.CategoryUpdate, "alice.id", 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 || rows[0].TransferAddress != "newOwner" || string(rows[0].TokenFile) != "token-bytes" {
		t.Fatalf("unexpected queued update entry: %+v", rows)
	}
}

func TestTransferRecordsTransferAddress(t *testing.T) {
	iss, q, _, _ := newTestIssuer(t)
	if _, err := iss.Transfer(context.Background(), "alice.id", "newOwner", true); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	rows, err := q.Find(queue.CategoryTransfer, "alice.id", 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 || rows[0].TransferAddress != "newOwner" {
		t.Fatalf("unexpected transfer entry: %+v", rows)
	}
	if !rows[0].HasTransferAddress() {
		t.Fatalf("expected HasTransferAddress true")
	}
}

func TestRevokeRejectsDuplicate(t *testing.T) {
	iss, _, _, _ := newTestIssuer(t)
	if _, err := iss.Revoke(context.Background(), "alice.id"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := iss.Revoke(context.Background(), "alice.id"); !errors.Is(err, regerrors.ErrAlreadyQueued) {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}
}
