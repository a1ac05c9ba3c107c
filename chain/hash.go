package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
)

// HashSize is the length in bytes of a Hash digest.
const HashSize = 32

// Hash is a 32-byte SHA-256 content digest. The zero value denotes "no
// predecessor" (see Hash.IsZero), the convention a genesis block's
// PrevHash uses.
//
// Mirrors blockchain/block.go's DeriveHash idiom (hash-then-store) but as a
// standalone value type so Transaction, Block, and the persistence layer can
// all share one hex/binary marshaling implementation instead of each
// re-deriving it.
type Hash [HashSize]byte

// NewHash hashes data with SHA-256 and returns the resulting Hash.
func NewHash(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// Digest returns the raw 32 bytes of the hash.
func (h Hash) Digest() [HashSize]byte {
	return h
}

// IsZero reports whether this is the all-zero hash, used to mark "no
// predecessor" for the genesis block.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashFromHex decodes a lowercase (or mixed-case) hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, errors.Wrap(ErrInvalidHex, err.Error())
	}
	if len(b) != HashSize {
		return h, errors.Wrapf(ErrInvalidHex, "want %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// MarshalJSON implements the self-describing textual form: lowercase hex.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON implements the self-describing textual form: lowercase hex.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := HashFromHex(s)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// MarshalBinary implements the dense binary form: 32 raw bytes.
func (h Hash) MarshalBinary() ([]byte, error) {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out, nil
}

// UnmarshalBinary implements the dense binary form: 32 raw bytes.
func (h *Hash) UnmarshalBinary(data []byte) error {
	if len(data) != HashSize {
		return errors.Wrapf(ErrInvalidLength, "hash: want %d bytes, got %d", HashSize, len(data))
	}
	copy(h[:], data)
	return nil
}
