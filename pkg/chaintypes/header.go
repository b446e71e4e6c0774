package chaintypes

import "encoding/binary"

// EpochToken packs the (number, index, length) triple a header commits
// to into a single u64, matching the field's on-wire shape: number in
// the low 24 bits, index in the next 16 (bits 24-39), length in the 16
// above those (bits 40-55).
type EpochToken uint64

// NewEpochToken builds a token from its components.
func NewEpochToken(number uint64, index, length uint16) EpochToken {
	return EpochToken(number&0xffffff | uint64(index)<<24 | uint64(length)<<40)
}

// Number returns the epoch number encoded in t.
func (t EpochToken) Number() uint64 { return uint64(t) & 0xffffff }

// Index returns the block's position within its epoch.
func (t EpochToken) Index() uint16 { return uint16(uint64(t) >> 24) }

// Length returns the epoch's total length in blocks.
func (t EpochToken) Length() uint16 { return uint16(uint64(t) >> 40) }

// DAOFieldSize is the width of the opaque DAO accumulator in bytes.
const DAOFieldSize = 32

// NonceSize is the width of the PoW nonce field in bytes (u128).
const NonceSize = 16

// Header is the immutable, hash-identified envelope of a block. Every
// field participates in Hash except the nonce is covered separately so
// the PoW engine can vary it without re-deriving the rest of the header
// (see SigningBytesWithoutNonce).
type Header struct {
	Version          uint32     `json:"version"`
	CompactTarget    uint32     `json:"compact_target"`
	Timestamp        uint64     `json:"timestamp"`
	Number           uint64     `json:"number"`
	Epoch            EpochToken `json:"epoch"`
	ParentHash       Hash       `json:"parent_hash"`
	TransactionsRoot Hash       `json:"transactions_root"`
	ProposalsHash    Hash       `json:"proposals_hash"`
	ExtraHash        Hash       `json:"extra_hash"`
	DAO              [DAOFieldSize]byte `json:"dao"`
	Nonce            [NonceSize]byte    `json:"nonce"`
}

// SigningBytesWithoutNonce serializes every field but the nonce, in
// declaration order, little-endian. This is what the PoW engine hashes
// together with a candidate nonce.
func (h *Header) SigningBytesWithoutNonce() []byte {
	buf := make([]byte, 0, 4+4+8+8+8+32*4+32)
	var u32 [4]byte
	var u64 [8]byte

	binary.LittleEndian.PutUint32(u32[:], h.Version)
	buf = append(buf, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], h.CompactTarget)
	buf = append(buf, u32[:]...)
	binary.LittleEndian.PutUint64(u64[:], h.Timestamp)
	buf = append(buf, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], h.Number)
	buf = append(buf, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], uint64(h.Epoch))
	buf = append(buf, u64[:]...)
	buf = append(buf, h.ParentHash[:]...)
	buf = append(buf, h.TransactionsRoot[:]...)
	buf = append(buf, h.ProposalsHash[:]...)
	buf = append(buf, h.ExtraHash[:]...)
	buf = append(buf, h.DAO[:]...)
	return buf
}

// SigningBytes serializes the full header including the nonce — the
// bytes Hash is computed over.
func (h *Header) SigningBytes() []byte {
	return append(h.SigningBytesWithoutNonce(), h.Nonce[:]...)
}

// Hash returns h's identity hash, computed over every field.
func (h *Header) Hash() Hash {
	return hashBytes(h.SigningBytes())
}
