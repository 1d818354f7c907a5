// Package walletcache implements the process-local, never-persisted wallet
// cache described in spec.md §4.2. It is a direct port of registrar.py's
// set_wallet/get_wallet pair, replacing the ad hoc dict with an explicit
// struct guarded by a single mutex, per spec.md §9's note that cyclic
// globals collapse to an owned, borrowed-reference struct.
package walletcache

import (
	"errors"
	"fmt"
	"sync"

	"synnergy-registrar/internal/keys"
)

// ErrMissingKeys is returned by SetWallet when any of the three key pairs is
// incomplete (spec.md §4.2).
var ErrMissingKeys = errors.New("walletcache: missing wallet information")

// ErrUnlocked is returned by accessors when the wallet has not been set.
var ErrUnlocked = errors.New("walletcache: wallet is not unlocked")

// Wallet is a fully-populated snapshot returned by GetWallet.
type Wallet struct {
	PaymentAddress string
	OwnerAddress   string
	DataPubkey     string

	PaymentPrivkey keys.KeyInfo
	OwnerPrivkey   keys.KeyInfo
	DataPrivkey    keys.KeyInfo
}

// Cache holds the unlocked wallet in memory only. The zero value is locked.
type Cache struct {
	mu sync.RWMutex

	paymentAddress string
	ownerAddress   string
	dataPubkey     string

	paymentPrivkey *keys.KeyInfo
	ownerPrivkey   *keys.KeyInfo
	dataPrivkey    *keys.KeyInfo
}

// New returns a locked wallet cache.
func New() *Cache { return &Cache{} }

// SetWallet validates and installs the payment, owner and data key pairs.
// Payment and owner keys may be singlesig or multisig; the data key must be
// singlesig (spec.md §4.2). The data pubkey is derived from the data
// privkey and normalised to uncompressed hex.
func (c *Cache) SetWallet(paymentAddr string, paymentKey keys.KeyInfo, ownerAddr string, ownerKey keys.KeyInfo, dataAddr string, dataKey keys.KeyInfo) error {
	if paymentAddr == "" || ownerAddr == "" || dataAddr == "" {
		return ErrMissingKeys
	}
	if !paymentKey.Valid() {
		return fmt.Errorf("%w: invalid payment key info", keys.ErrInvalidKeyFormat)
	}
	if !ownerKey.Valid() {
		return fmt.Errorf("%w: invalid owner key info", keys.ErrInvalidKeyFormat)
	}
	if !dataKey.IsSinglesig() || !dataKey.Valid() {
		return fmt.Errorf("%w: invalid data key info", keys.ErrInvalidKeyFormat)
	}

	pubkey, err := keys.PubkeyHexUncompressed(dataKey.Singlesig.PrivateKeyHex)
	if err != nil {
		return fmt.Errorf("%w: %v", keys.ErrInvalidKeyFormat, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.paymentAddress = paymentAddr
	c.ownerAddress = ownerAddr
	c.dataPubkey = pubkey
	c.paymentPrivkey = &paymentKey
	c.ownerPrivkey = &ownerKey
	c.dataPrivkey = &dataKey
	return nil
}

// GetWallet returns a snapshot of the unlocked wallet, or ErrUnlocked if any
// field has never been set.
func (c *Cache) GetWallet() (Wallet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.paymentPrivkey == nil || c.ownerPrivkey == nil || c.dataPrivkey == nil {
		return Wallet{}, ErrUnlocked
	}
	return Wallet{
		PaymentAddress: c.paymentAddress,
		OwnerAddress:   c.ownerAddress,
		DataPubkey:     c.dataPubkey,
		PaymentPrivkey: *c.paymentPrivkey,
		OwnerPrivkey:   *c.ownerPrivkey,
		DataPrivkey:    *c.dataPrivkey,
	}, nil
}

// OwnerAddress returns the cached owner address, or "" if unset. The pipeline
// worker's wallet gate (spec.md §4.7 step 0) polls this directly.
func (c *Cache) OwnerAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ownerAddress
}

// GetPaymentPrivkey returns the cached payment key, or nil if locked.
func (c *Cache) GetPaymentPrivkey() *keys.KeyInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paymentPrivkey
}

// GetOwnerPrivkey returns the cached owner key, or nil if locked.
func (c *Cache) GetOwnerPrivkey() *keys.KeyInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ownerPrivkey
}

// GetDataPrivkey returns the cached data key, or nil if locked.
func (c *Cache) GetDataPrivkey() *keys.KeyInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dataPrivkey
}

// Clear wipes all cached key material. Called on engine shutdown (spec.md
// §3: "cleared on engine shutdown").
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paymentAddress = ""
	c.ownerAddress = ""
	c.dataPubkey = ""
	c.paymentPrivkey = nil
	c.ownerPrivkey = nil
	c.dataPrivkey = nil
}
