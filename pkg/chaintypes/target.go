package chaintypes

import (
	"errors"
	"math/big"
)

// ErrInvalidTarget is returned when a compact target fails to decode:
// sign bit set, or a zero mantissa paired with a nonzero exponent.
var ErrInvalidTarget = errors.New("invalid compact target")

// maxTarget256 is 2^256 - 1, the ceiling every decoded target is clamped
// against and the numerator of the difficulty formula.
var maxTarget256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// signBit marks a compact target as negative; CKB-style targets never are.
const signBit = 0x00800000

// CompactToTarget decodes a 32-bit Bitcoin-style floating point encoding
// of a 256-bit PoW target: one exponent byte (the serialized length of the
// mantissa in bytes) plus a 3-byte mantissa. Spec 4.1: "decode fails
// (InvalidTarget) if sign bit set or mantissa zero with nonzero exponent".
func CompactToTarget(compact uint32) (*big.Int, error) {
	exponent := compact >> 24
	mantissa := compact & 0x007fffff

	if compact&signBit != 0 {
		return nil, ErrInvalidTarget
	}
	if mantissa == 0 && exponent != 0 {
		return nil, ErrInvalidTarget
	}

	m := new(big.Int).SetUint64(uint64(mantissa))
	var target *big.Int
	if exponent <= 3 {
		shift := uint((3 - exponent) * 8)
		target = new(big.Int).Rsh(m, shift)
	} else {
		shift := uint((exponent - 3) * 8)
		target = new(big.Int).Lsh(m, shift)
	}

	if target.Cmp(maxTarget256) > 0 {
		return nil, ErrInvalidTarget
	}
	return target, nil
}

// TargetToCompact encodes a 256-bit target back into the compact form.
// Used by the Epoch Engine when it derives a new target and must persist
// it into EpochExt.CompactTarget.
func TargetToCompact(target *big.Int) uint32 {
	if target.Sign() <= 0 {
		return 0
	}
	bytesBE := target.Bytes()
	size := uint32(len(bytesBE))

	var mantissa uint32
	switch {
	case size <= 3:
		for _, b := range bytesBE {
			mantissa = mantissa<<8 | uint32(b)
		}
		mantissa <<= 8 * (3 - size)
	default:
		mantissa = uint32(bytesBE[0])<<16 | uint32(bytesBE[1])<<8 | uint32(bytesBE[2])
	}

	// If the high bit of the mantissa would look like a sign bit, shift
	// one byte right and bump the exponent — mirrors Bitcoin's nBits.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		size++
	}

	return size<<24 | mantissa
}

// DifficultyFromCompact computes difficulty = MAX_U256 / (target + 1) for
// the target encoded by compact, per spec 4.1.
func DifficultyFromCompact(compact uint32) (*big.Int, error) {
	target, err := CompactToTarget(compact)
	if err != nil {
		return nil, err
	}
	denom := new(big.Int).Add(target, big.NewInt(1))
	return new(big.Int).Div(maxTarget256, denom), nil
}
