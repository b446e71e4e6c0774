// Package ckbhash provides the hash primitives shared by the chain core:
// a single fixed hash function plus the concatenation helper the Merkle
// tree and header-binding hashes are built from.
package ckbhash

import "github.com/zeebo/blake3"

// Size is the length in bytes of a digest produced by Sum.
const Size = 32

// Sum computes the BLAKE3-256 hash of data.
func Sum(data []byte) [Size]byte {
	return blake3.Sum256(data)
}

// Concat hashes the concatenation of two digests. Used by the Merkle tree
// and by header fields that bind together two other hashes (extra_hash
// binds uncles_hash and extension, for instance).
func Concat(a, b [Size]byte) [Size]byte {
	var buf [2 * Size]byte
	copy(buf[:Size], a[:])
	copy(buf[Size:], b[:])
	return Sum(buf[:])
}
