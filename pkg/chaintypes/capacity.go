package chaintypes

import (
	"errors"
	"math"
)

// ErrCapacityOverflow is returned by the checked capacity helpers when an
// addition or subtraction would wrap a uint64 shannon amount.
var ErrCapacityOverflow = errors.New("capacity overflow")

// AddCapacity adds b to a, failing with ErrCapacityOverflow on wraparound.
func AddCapacity(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrCapacityOverflow
	}
	return a + b, nil
}

// SubCapacity subtracts b from a, failing with ErrCapacityOverflow if b > a
// (shannons are unsigned; there is no such thing as negative capacity).
func SubCapacity(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrCapacityOverflow
	}
	return a - b, nil
}

// SumCapacity sums a slice of shannon amounts, failing with
// ErrCapacityOverflow on the first overflow encountered.
func SumCapacity(vals []uint64) (uint64, error) {
	var total uint64
	var err error
	for _, v := range vals {
		total, err = AddCapacity(total, v)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// bytesPerShannonCapacity is the number of shannons one byte of
// on-chain occupied space costs: 1 CKByte (10^8 shannons) per byte,
// the dust-floor unit the Non-Contextual Verifier checks outputs
// against.
const bytesPerShannonCapacity = 100_000_000

// OccupiedCapacity returns the minimum capacity out, paired with its
// output data, must carry: eight bytes for the capacity field itself,
// the serialized lock script, the serialized type script (if any), and
// len(data) bytes, each costed at one CKByte per byte.
func (out *CellOutput) OccupiedCapacity(data []byte) uint64 {
	size := uint64(8) // capacity field
	size += uint64(len(out.Lock.signingBytes(nil)))
	if out.Type != nil {
		size += uint64(len(out.Type.signingBytes(nil)))
	}
	size += uint64(len(data))
	return size * bytesPerShannonCapacity
}
