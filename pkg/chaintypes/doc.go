// Package chaintypes defines the immutable on-chain data model: headers,
// blocks, transactions, uncles, epochs and per-block extension metadata,
// plus the checked capacity arithmetic and compact-difficulty encoding
// consensus depends on.
//
// Byte layouts. Every hashed/signed structure serializes through a fixed,
// little-endian, length-prefixed-where-variable schema defined alongside
// its type (Header.SigningBytes, Transaction.SigningBytes, ...). These
// layouts are consensus-critical: two nodes computing a different hash
// for the same logical header fork. They are chosen once here and held
// fixed rather than derived from any external source.
package chaintypes
