package chaintypes

import "fmt"

// OutPoint identifies a single output of a transaction: the cell at
// index Index within transaction TxHash.
type OutPoint struct {
	TxHash Hash   `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

// CellbaseOutPoint is the sentinel out-point a cellbase's single input must
// reference: the zero hash with an index equal to the block number that
// produced it, encoded in Index's low 32 bits. Spec: "cellbase input is
// the sentinel for header.number".
func CellbaseOutPoint(number uint64) OutPoint {
	return OutPoint{TxHash: ZeroHash, Index: uint32(number)}
}

// IsCellbaseSentinel reports whether op is the cellbase sentinel for the
// given block number.
func (op OutPoint) IsCellbaseSentinel(number uint64) bool {
	return op.TxHash.IsZero() && op.Index == uint32(number)
}

// IsZero reports whether op is the zero out-point (any cellbase sentinel
// shares this TxHash; callers that only care about "is this an input with
// no real predecessor" use this instead of IsCellbaseSentinel).
func (op OutPoint) IsZero() bool {
	return op.TxHash.IsZero()
}

func (op OutPoint) String() string {
	return fmt.Sprintf("%s:%d", op.TxHash, op.Index)
}
