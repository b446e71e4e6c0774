package chaintypes

import "encoding/binary"

// HashType selects how a Script's CodeHash is interpreted by the Script
// VM: as the hash of a cell's data, or of its type script (both are
// "opaque to consensus" per the Contextual Verifier's script hook —
// the VM resolves and runs them, the chain core only hashes and stores).
type HashType uint8

const (
	HashTypeData HashType = iota
	HashTypeType
	HashTypeData1
)

// Script is a lock or type script attached to a cell: a code reference
// plus arguments, opaque to the chain core beyond hashing and byte
// layout. Execution is delegated to the external Script VM (spec 4.6).
type Script struct {
	CodeHash Hash     `json:"code_hash"`
	HashType HashType `json:"hash_type"`
	Args     []byte   `json:"args"`
}

// signingBytes appends s's fixed-layout encoding to buf: code hash,
// hash type byte, then length-prefixed args.
func (s *Script) signingBytes(buf []byte) []byte {
	if s == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	buf = append(buf, s.CodeHash[:]...)
	buf = append(buf, byte(s.HashType))
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s.Args)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, s.Args...)
	return buf
}

// Hash returns the BLAKE3 digest of s's signing bytes, nil-safe (an
// absent type script hashes to the zero hash, matched by IsZero()).
func (s *Script) Hash() Hash {
	if s == nil {
		return ZeroHash
	}
	return hashBytes(s.signingBytes(nil))
}
