// Package keys implements the key-format handling spec.md §9 calls out as
// "dynamic key-format detection": a tagged variant KeyInfo = Singlesig(hex) |
// Multisig{m, pubs, privs}, validated once at SetWallet. Address derivation
// (SHA-256 -> RIPEMD-160 -> base58check) follows core/wallet.go's
// pubKeyToAddress scheme, swapped from ed25519 to secp256k1 so payment/owner
// keys sign the same curve the chain adapter's transactions use.
package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	sha256 "github.com/minio/sha256-simd"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

// ErrInvalidKeyFormat is returned when a KeyInfo is neither a valid singlesig
// nor a valid multisig descriptor.
var ErrInvalidKeyFormat = errors.New("keys: invalid key format")

// SinglesigKey is a single hex-encoded secp256k1 private key.
type SinglesigKey struct {
	PrivateKeyHex string `json:"privkey"`
}

// MultisigKey describes an m-of-n multisig descriptor: m required
// signatures out of the given ordered public/private key lists.
type MultisigKey struct {
	M          int      `json:"m"`
	PublicKeys []string `json:"pubkeys"`
	PrivateKeys []string `json:"privkeys"`
}

// KeyInfo is the tagged variant accepted for payment and owner keys.
// Exactly one of Singlesig or Multisig must be set.
type KeyInfo struct {
	Singlesig *SinglesigKey `json:"singlesig,omitempty"`
	Multisig  *MultisigKey  `json:"multisig,omitempty"`
}

// IsSinglesig reports whether ki describes a plain single-signature key.
func (ki KeyInfo) IsSinglesig() bool { return ki.Singlesig != nil && ki.Multisig == nil }

// IsMultisig reports whether ki describes an m-of-n multisig descriptor.
func (ki KeyInfo) IsMultisig() bool { return ki.Multisig != nil && ki.Singlesig == nil }

// Valid validates the shape of ki: exactly one of the two variants set, and
// for multisig, consistent key-list lengths and an m in range.
func (ki KeyInfo) Valid() bool {
	switch {
	case ki.IsSinglesig():
		_, err := hex.DecodeString(ki.Singlesig.PrivateKeyHex)
		return err == nil && ki.Singlesig.PrivateKeyHex != ""
	case ki.IsMultisig():
		m := ki.Multisig
		if m.M <= 0 || m.M > len(m.PublicKeys) {
			return false
		}
		if len(m.PrivateKeys) != 0 && len(m.PrivateKeys) != len(m.PublicKeys) {
			return false
		}
		return len(m.PublicKeys) > 0
	default:
		return false
	}
}

// PubkeyHexUncompressed derives the uncompressed secp256k1 public key, in
// hex, for a singlesig KeyInfo. SetWallet uses this for the data key: spec.md
// §4.2 requires the cached data pubkey always be in uncompressed hex form,
// regardless of what form the source private key implies.
func PubkeyHexUncompressed(privHex string) (string, error) {
	priv, err := crypto.HexToECDSA(trim0x(privHex))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	return hex.EncodeToString(crypto.FromECDSAPub(&priv.PublicKey)), nil
}

// SigningPrivkey resolves the ECDSA private key used to sign with a
// singlesig KeyInfo (owner/payment/data keys are all singlesig-signable;
// multisig signing is delegated to the chain adapter, which knows how to
// assemble the m-of-n witness).
func SigningPrivkey(ki KeyInfo) (*ecdsa.PrivateKey, error) {
	if !ki.IsSinglesig() {
		return nil, fmt.Errorf("keys: signing key is not singlesig")
	}
	priv, err := crypto.HexToECDSA(trim0x(ki.Singlesig.PrivateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	return priv, nil
}

// Sign signs digest (expected to be a 32-byte hash) with the given singlesig
// private key.
func Sign(ki KeyInfo, digest []byte) ([]byte, error) {
	priv, err := SigningPrivkey(ki)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(digest, priv)
}

// AddressFromPubkeyHex derives a base58check P2PKH-style address from an
// uncompressed or compressed hex-encoded secp256k1 public key, following
// core/wallet.go's SHA-256 -> RIPEMD-160 scheme.
func AddressFromPubkeyHex(pubHex string) (string, error) {
	pub, err := hex.DecodeString(trim0x(pubHex))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	sum := sha256.Sum256(pub)
	r := ripemd160.New()
	r.Write(sum[:])
	hash160 := r.Sum(nil)

	versioned := append([]byte{0x00}, hash160...)
	checksum := sha256.Sum256(versioned)
	checksum2 := sha256.Sum256(checksum[:])
	payload := append(versioned, checksum2[:4]...)
	return base58.Encode(payload), nil
}

func trim0x(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
