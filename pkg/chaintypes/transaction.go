package chaintypes

import "encoding/binary"

// Since encodes a relative or absolute maturity lock on a CellInput: the
// high bits select the flavour (block number, epoch, or timestamp; plus
// an absolute/relative flag), the low bits hold the value. The chain
// core treats it as an opaque uint64 and only the Contextual Verifier's
// maturity checks interpret it.
type Since uint64

// CellInput references a previously created, still-live cell and
// optionally locks it until Since is satisfied.
type CellInput struct {
	OutPoint OutPoint `json:"previous_output"`
	Since    Since    `json:"since"`
}

// CellOutput is a single output cell: a capacity in shannons, a lock
// script every spend must satisfy, and an optional type script.
type CellOutput struct {
	Capacity uint64  `json:"capacity"`
	Lock     Script  `json:"lock"`
	Type     *Script `json:"type"`
}

// CellDep references a cell a transaction depends on for script code or
// state without consuming it (DepGroup dependencies are resolved by the
// Script VM, not the chain core).
type CellDep struct {
	OutPoint OutPoint `json:"out_point"`
	DepType  uint8    `json:"dep_type"`
}

// Transaction is CKB's unit of state transition: it consumes the cells
// named by Inputs and produces Outputs, with OutputsData holding each
// output's opaque payload (one entry per output, same length — a
// mismatch is TransactionError::OutputsDataLengthMismatch).
type Transaction struct {
	Version     uint32       `json:"version"`
	CellDeps    []CellDep    `json:"cell_deps"`
	HeaderDeps  []Hash       `json:"header_deps"`
	Inputs      []CellInput  `json:"inputs"`
	Outputs     []CellOutput `json:"outputs"`
	OutputsData [][]byte     `json:"outputs_data"`
	Witnesses   [][]byte     `json:"witnesses"`
}

// IsCellbase reports whether tx has the single-input, sentinel-out-point
// shape a cellbase transaction must have for the given block number.
func (tx *Transaction) IsCellbase(number uint64) bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].OutPoint.IsCellbaseSentinel(number)
}

// signingBytes serializes every field that participates in a
// transaction's hash: everything except the witnesses, which are
// covered separately by WitnessHash so that a transaction's identity
// (Hash) survives re-signing while its full commitment (WitnessHash)
// does not.
func (tx *Transaction) signingBytes() []byte {
	buf := make([]byte, 0, 256)
	var u32 [4]byte
	var u64 [8]byte

	binary.LittleEndian.PutUint32(u32[:], tx.Version)
	buf = append(buf, u32[:]...)

	binary.LittleEndian.PutUint32(u32[:], uint32(len(tx.CellDeps)))
	buf = append(buf, u32[:]...)
	for _, d := range tx.CellDeps {
		buf = append(buf, d.OutPoint.TxHash[:]...)
		binary.LittleEndian.PutUint32(u32[:], d.OutPoint.Index)
		buf = append(buf, u32[:]...)
		buf = append(buf, d.DepType)
	}

	binary.LittleEndian.PutUint32(u32[:], uint32(len(tx.HeaderDeps)))
	buf = append(buf, u32[:]...)
	for _, h := range tx.HeaderDeps {
		buf = append(buf, h[:]...)
	}

	binary.LittleEndian.PutUint32(u32[:], uint32(len(tx.Inputs)))
	buf = append(buf, u32[:]...)
	for _, in := range tx.Inputs {
		buf = append(buf, in.OutPoint.TxHash[:]...)
		binary.LittleEndian.PutUint32(u32[:], in.OutPoint.Index)
		buf = append(buf, u32[:]...)
		binary.LittleEndian.PutUint64(u64[:], uint64(in.Since))
		buf = append(buf, u64[:]...)
	}

	binary.LittleEndian.PutUint32(u32[:], uint32(len(tx.Outputs)))
	buf = append(buf, u32[:]...)
	for _, out := range tx.Outputs {
		binary.LittleEndian.PutUint64(u64[:], out.Capacity)
		buf = append(buf, u64[:]...)
		buf = out.Lock.signingBytes(buf)
		buf = out.Type.signingBytes(buf)
	}

	binary.LittleEndian.PutUint32(u32[:], uint32(len(tx.OutputsData)))
	buf = append(buf, u32[:]...)
	for _, d := range tx.OutputsData {
		binary.LittleEndian.PutUint32(u32[:], uint32(len(d)))
		buf = append(buf, u32[:]...)
		buf = append(buf, d...)
	}

	return buf
}

// Hash returns tx's identity hash: a digest over every field except the
// witnesses. Two transactions that differ only in witness data (a
// replaced signature, say) share a Hash but not a WitnessHash.
func (tx *Transaction) Hash() Hash {
	return hashBytes(tx.signingBytes())
}

// WitnessHash returns the digest committing tx's witnesses, combined
// with its identity hash. This is the leaf TransactionsRoot's witness
// side is built from.
func (tx *Transaction) WitnessHash() Hash {
	buf := tx.signingBytes()
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(tx.Witnesses)))
	buf = append(buf, u32[:]...)
	for _, w := range tx.Witnesses {
		binary.LittleEndian.PutUint32(u32[:], uint32(len(w)))
		buf = append(buf, u32[:]...)
		buf = append(buf, w...)
	}
	return hashBytes(buf)
}

// ProposalShortID truncates tx's identity hash to the short form carried
// in a block's proposals field.
func (tx *Transaction) ProposalShortID() ProposalShortID {
	return NewProposalShortID(tx.Hash())
}

// SerializedSize returns tx's on-wire byte size, including witnesses,
// the quantity the Non-Contextual Verifier's block size check sums over
// every transaction.
func (tx *Transaction) SerializedSize() int {
	size := len(tx.signingBytes())
	for _, w := range tx.Witnesses {
		size += 4 + len(w)
	}
	return size
}
