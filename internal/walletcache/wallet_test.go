package walletcache_test

import (
	"errors"
	"testing"

	"synnergy-registrar/internal/keys"
	"synnergy-registrar/internal/walletcache"
)

const testPrivHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func validKey() keys.KeyInfo {
	return keys.KeyInfo{Singlesig: &keys.SinglesigKey{PrivateKeyHex: testPrivHex}}
}

func TestGetWalletBeforeSetReturnsUnlocked(t *testing.T) {
	c := walletcache.New()
	if _, err := c.GetWallet(); !errors.Is(err, walletcache.ErrUnlocked) {
		t.Fatalf("expected ErrUnlocked, got %v", err)
	}
}

func TestSetWalletThenGetWallet(t *testing.T) {
	c := walletcache.New()
	if err := c.SetWallet("payAddr", validKey(), "ownerAddr", validKey(), "dataAddr", validKey()); err != nil {
		t.Fatalf("set wallet: %v", err)
	}
	w, err := c.GetWallet()
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if w.PaymentAddress != "payAddr" || w.OwnerAddress != "ownerAddr" {
		t.Fatalf("unexpected wallet snapshot: %+v", w)
	}
	if w.DataPubkey == "" {
		t.Fatalf("expected derived data pubkey")
	}
	if c.OwnerAddress() != "ownerAddr" {
		t.Fatalf("unexpected OwnerAddress(): %s", c.OwnerAddress())
	}
}

func TestSetWalletRejectsMissingAddress(t *testing.T) {
	c := walletcache.New()
	if err := c.SetWallet("", validKey(), "ownerAddr", validKey(), "dataAddr", validKey()); !errors.Is(err, walletcache.ErrMissingKeys) {
		t.Fatalf("expected ErrMissingKeys, got %v", err)
	}
}

func TestSetWalletRejectsMultisigDataKey(t *testing.T) {
	c := walletcache.New()
	multisig := keys.KeyInfo{Multisig: &keys.MultisigKey{M: 1, PublicKeys: []string{"a"}}}
	if err := c.SetWallet("payAddr", validKey(), "ownerAddr", validKey(), "dataAddr", multisig); err == nil {
		t.Fatalf("expected error for multisig data key")
	}
}

func TestClearLocksWallet(t *testing.T) {
	c := walletcache.New()
	if err := c.SetWallet("payAddr", validKey(), "ownerAddr", validKey(), "dataAddr", validKey()); err != nil {
		t.Fatalf("set wallet: %v", err)
	}
	c.Clear()
	if _, err := c.GetWallet(); !errors.Is(err, walletcache.ErrUnlocked) {
		t.Fatalf("expected ErrUnlocked after Clear, got %v", err)
	}
	if c.OwnerAddress() != "" {
		t.Fatalf("expected empty owner address after Clear")
	}
}
