package chain

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
)

// PublicKeySize and SignatureSize follow Ed25519's fixed widths.
const (
	PublicKeySize = ed25519.PublicKeySize
	SignatureSize = ed25519.SignatureSize
	seedSize      = ed25519.SeedSize
)

// PublicKey is a 32-byte Ed25519 verifying key. Equality is bytewise.
type PublicKey [PublicKeySize]byte

// Signature is a 64-byte Ed25519 signature over a 32-byte hash digest.
type Signature [SignatureSize]byte

// String renders the public key as lowercase hex, the form used for
// addresses in this ledger (there is no Base58/RIPEMD160 derivation — see
// DESIGN.md).
func (p PublicKey) String() string {
	return hex.EncodeToString(p[:])
}

// PublicKeyFromHex decodes a hex-encoded public key.
func PublicKeyFromHex(s string) (PublicKey, error) {
	var p PublicKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return p, errors.Wrap(ErrInvalidHex, err.Error())
	}
	if len(b) != PublicKeySize {
		return p, errors.Wrapf(ErrInvalidHex, "want %d bytes, got %d", PublicKeySize, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// MarshalJSON implements the self-describing textual form: lowercase hex.
func (p PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements the self-describing textual form: lowercase hex.
func (p *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := PublicKeyFromHex(s)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

// MarshalBinary implements the dense binary form: 32 raw bytes.
func (p PublicKey) MarshalBinary() ([]byte, error) {
	out := make([]byte, PublicKeySize)
	copy(out, p[:])
	return out, nil
}

// UnmarshalBinary implements the dense binary form: 32 raw bytes.
func (p *PublicKey) UnmarshalBinary(data []byte) error {
	if len(data) != PublicKeySize {
		return errors.Wrapf(ErrInvalidLength, "public key: want %d bytes, got %d", PublicKeySize, len(data))
	}
	copy(p[:], data)
	return nil
}

// Verify checks sig as a signature over msg by this public key. Any
// underlying crypto failure (malformed key, malformed signature, mismatch)
// is treated uniformly as a negative verdict — this never surfaces an error.
func (p PublicKey) Verify(msg []byte, sig Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(p[:]), msg, sig[:])
}

// KeyPair is a 32-byte Ed25519 seed together with its derived signing key.
// Only the seed is ever persisted; the verifying key and signatures are
// derived from it on demand.
type KeyPair struct {
	seed    [seedSize]byte
	private ed25519.PrivateKey
}

// NewKeyPair draws 32 secret bytes from a cryptographically secure source
// and derives the corresponding Ed25519 key pair.
func NewKeyPair() (KeyPair, error) {
	var seed [seedSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return KeyPair{}, errors.Wrap(err, "generate key pair")
	}
	return KeyPair{seed: seed, private: ed25519.NewKeyFromSeed(seed[:])}, nil
}

// KeyPairFromSeed reconstructs a KeyPair from its 32-byte secret form.
// Loading rejects any other length.
func KeyPairFromSeed(seed []byte) (KeyPair, error) {
	if len(seed) != seedSize {
		return KeyPair{}, errors.Wrapf(ErrInvalidLength, "key pair: want %d bytes, got %d", seedSize, len(seed))
	}
	var kp KeyPair
	copy(kp.seed[:], seed)
	kp.private = ed25519.NewKeyFromSeed(kp.seed[:])
	return kp, nil
}

// PublicKey derives the Ed25519 verifying key for this pair.
func (k KeyPair) PublicKey() PublicKey {
	var p PublicKey
	copy(p[:], k.private.Public().(ed25519.PublicKey))
	return p
}

// Sign produces an Ed25519 signature over msg (always a 32-byte hash digest
// in this ledger).
func (k KeyPair) Sign(msg []byte) Signature {
	var s Signature
	copy(s[:], ed25519.Sign(k.private, msg))
	return s
}

// MarshalBinary implements the binary form: exactly the 32 secret seed
// bytes.
func (k KeyPair) MarshalBinary() ([]byte, error) {
	out := make([]byte, seedSize)
	copy(out, k.seed[:])
	return out, nil
}

// UnmarshalBinary implements the binary form: exactly 32 secret bytes.
// Loading rejects any other length.
func (k *KeyPair) UnmarshalBinary(data []byte) error {
	decoded, err := KeyPairFromSeed(data)
	if err != nil {
		return err
	}
	*k = decoded
	return nil
}
