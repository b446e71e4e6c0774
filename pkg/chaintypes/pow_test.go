package chaintypes

import (
	"math/big"
	"testing"
)

func TestVerifyPoW_AgreesWithDirectComparison(t *testing.T) {
	h := &Header{
		Version:       1,
		CompactTarget: 0x207fffff,
		Timestamp:     1,
		Number:        1,
	}
	ok, err := VerifyPoW(h)
	if err != nil {
		t.Fatalf("VerifyPoW: %v", err)
	}

	target, err := CompactToTarget(h.CompactTarget)
	if err != nil {
		t.Fatalf("CompactToTarget: %v", err)
	}
	proof := ProofHash(h)
	proofInt := new(big.Int).SetBytes(proof[:])
	want := proofInt.Cmp(target) <= 0
	if ok != want {
		t.Fatalf("VerifyPoW = %v, want %v (proof=%s target=%s)", ok, want, proofInt, target)
	}
}

func TestVerifyPoW_InvalidCompactTarget(t *testing.T) {
	h := &Header{CompactTarget: 0x01800000} // sign bit set
	if _, err := VerifyPoW(h); err != ErrInvalidTarget {
		t.Fatalf("VerifyPoW(invalid target) = %v, want ErrInvalidTarget", err)
	}
}

func TestProofHash_Deterministic(t *testing.T) {
	h := &Header{Version: 1, Number: 7, CompactTarget: 0x1d00ffff}
	if ProofHash(h) != ProofHash(h) {
		t.Fatal("ProofHash not deterministic for the same header")
	}
}

func TestProofHash_NonceChangesHash(t *testing.T) {
	h1 := &Header{Version: 1, Number: 7}
	h2 := &Header{Version: 1, Number: 7, Nonce: [NonceSize]byte{1}}
	if ProofHash(h1) == ProofHash(h2) {
		t.Fatal("ProofHash did not vary with nonce")
	}
}
