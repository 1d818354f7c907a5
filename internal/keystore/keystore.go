// Package keystore implements the encrypted local wallet file the CLI uses
// to avoid re-typing key material on every invocation. It follows
// cmd/cli/wallet.go's PBKDF2-derived-key + AES-256-GCM scheme exactly,
// swapping the single HD seed for the registrar's three KeyInfo descriptors
// (payment, owner, data) plus their public addresses.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"synnergy-registrar/internal/keys"
)

const pbkdf2Iterations = 150_000

// WalletKeys is the plaintext payload persisted inside the encrypted file.
type WalletKeys struct {
	PaymentAddress string        `json:"payment_address"`
	PaymentKey     keys.KeyInfo  `json:"payment_key"`
	OwnerAddress   string        `json:"owner_address"`
	OwnerKey       keys.KeyInfo  `json:"owner_key"`
	DataAddress    string        `json:"data_address"`
	DataKey        keys.KeyInfo  `json:"data_key"`
}

// file is the on-disk, encrypted-at-rest representation.
type file struct {
	Salt   string `json:"salt"`
	Nonce  string `json:"nonce"`
	Cipher string `json:"cipher"`
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 32, sha256.New)
}

// Save encrypts wk with password and writes it to path (0600).
func Save(path string, wk WalletKeys, password string) error {
	plaintext, err := json.Marshal(wk)
	if err != nil {
		return fmt.Errorf("keystore: marshal: %w", err)
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("keystore: salt: %w", err)
	}
	key := deriveKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("keystore: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("keystore: gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("keystore: nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	f := file{
		Salt:   hex.EncodeToString(salt),
		Nonce:  hex.EncodeToString(nonce),
		Cipher: hex.EncodeToString(ciphertext),
	}
	out, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("keystore: marshal file: %w", err)
	}
	return os.WriteFile(path, out, 0o600)
}

// Load reads and decrypts the keystore at path with password.
func Load(path, password string) (WalletKeys, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return WalletKeys{}, fmt.Errorf("keystore: read: %w", err)
	}
	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return WalletKeys{}, fmt.Errorf("keystore: unmarshal file: %w", err)
	}

	salt, err := hex.DecodeString(f.Salt)
	if err != nil {
		return WalletKeys{}, fmt.Errorf("keystore: decode salt: %w", err)
	}
	nonce, err := hex.DecodeString(f.Nonce)
	if err != nil {
		return WalletKeys{}, fmt.Errorf("keystore: decode nonce: %w", err)
	}
	ciphertext, err := hex.DecodeString(f.Cipher)
	if err != nil {
		return WalletKeys{}, fmt.Errorf("keystore: decode cipher: %w", err)
	}

	key := deriveKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return WalletKeys{}, fmt.Errorf("keystore: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return WalletKeys{}, fmt.Errorf("keystore: gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return WalletKeys{}, fmt.Errorf("keystore: decrypt (wrong password?): %w", err)
	}

	var wk WalletKeys
	if err := json.Unmarshal(plaintext, &wk); err != nil {
		return WalletKeys{}, fmt.Errorf("keystore: unmarshal keys: %w", err)
	}
	return wk, nil
}
