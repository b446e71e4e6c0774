package chaintypes

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/shannonlabs/ckbcore/pkg/ckbhash"
)

// hashBytes is the single place every other type in this package turns
// serialized bytes into a Hash, so the digest function can't drift
// between them.
func hashBytes(data []byte) Hash {
	return Hash(ckbhash.Sum(data))
}

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash is a 256-bit digest identifying a header, transaction, or epoch.
type Hash [HashSize]byte

// ZeroHash is the all-zero digest used as a sentinel (empty Merkle root,
// genesis parent hash, cellbase out-point).
var ZeroHash = Hash{}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String returns the hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a defensive copy of h as a slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// MarshalJSON encodes h as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into h.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(decoded) != HashSize {
		return fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// HexToHash parses a 64-character hex string into a Hash.
func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}
