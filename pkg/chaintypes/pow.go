package chaintypes

import (
	"errors"
	"math/big"
)

// ErrInvalidNonce is returned by the verifier when a header's proof hash
// does not meet its declared target. Spec 4.5: "Fails with
// PowError::InvalidNonce."
var ErrInvalidNonce = errors.New("pow: proof does not meet target")

// ProofHash hashes the header's pre-nonce bytes together with the
// candidate nonce, the quantity the PoW engine compares against the
// decoded target. Mirrors the teacher's single-hash sealing function,
// generalized from a fixed difficulty to an arbitrary compact target.
func ProofHash(h *Header) Hash {
	return hashBytes(h.SigningBytes())
}

// VerifyPoW reports whether h's proof hash, read as a big-endian 256-bit
// integer, is less than or equal to the target decoded from
// h.CompactTarget.
func VerifyPoW(h *Header) (bool, error) {
	target, err := CompactToTarget(h.CompactTarget)
	if err != nil {
		return false, err
	}
	proof := ProofHash(h)
	proofInt := new(big.Int).SetBytes(proof[:])
	return proofInt.Cmp(target) <= 0, nil
}
