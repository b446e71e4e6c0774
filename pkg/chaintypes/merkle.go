package chaintypes

import "github.com/shannonlabs/ckbcore/pkg/ckbhash"

// MerkleRoot computes a Complete Binary Merkle Tree root over leaves,
// pairwise-hashing levels bottom-up. An odd node at a level is promoted
// unchanged to the next level rather than duplicated, so leaf order
// is preserved without a duplicate-last-leaf quirk. Returns the zero
// hash for an empty leaf set.
func MerkleRoot(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return ZeroHash
	}
	level := make([]Hash, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, Hash(ckbhash.Concat([ckbhash.Size]byte(level[i]), [ckbhash.Size]byte(level[i+1]))))
			} else {
				next = append(next, level[i])
			}
		}
		level = next
	}
	return level[0]
}

// TransactionsRoot combines the transaction-id root and the witness-hash
// root: CKB binds both into a single header field so that a node can
// prove transaction identity without pulling in witness data, while the
// witness root still lets full verification catch any tampering with
// signatures or script arguments that the tx hash itself excludes.
func TransactionsRoot(txHashes, witnessHashes []Hash) Hash {
	idRoot := MerkleRoot(txHashes)
	witnessRoot := MerkleRoot(witnessHashes)
	return Hash(ckbhash.Concat([ckbhash.Size]byte(idRoot), [ckbhash.Size]byte(witnessRoot)))
}

// ProposalsHash hashes the ordered list of short proposal IDs carried by
// a block, by concatenating them and taking a single digest (proposal
// IDs are short and fixed-size, so a flat hash is used rather than a
// full Merkle tree).
func ProposalsHash(ids []ProposalShortID) Hash {
	if len(ids) == 0 {
		return ZeroHash
	}
	buf := make([]byte, 0, len(ids)*ProposalShortIDSize)
	for _, id := range ids {
		buf = append(buf, id[:]...)
	}
	return Hash(ckbhash.Sum(buf))
}

// ExtraHash binds together the uncles and the extension field into the
// single hash a header actually commits to, so adding an (optional)
// extension never changes the header's field count.
func ExtraHash(unclesHash Hash, extension []byte) Hash {
	extHash := Hash(ckbhash.Sum(extension))
	return Hash(ckbhash.Concat([ckbhash.Size]byte(unclesHash), [ckbhash.Size]byte(extHash)))
}

// UnclesHash hashes the ordered list of uncle header hashes into the
// single digest the parent block's extra_hash commits to.
func UnclesHash(uncleHashes []Hash) Hash {
	if len(uncleHashes) == 0 {
		return ZeroHash
	}
	buf := make([]byte, 0, len(uncleHashes)*HashSize)
	for _, h := range uncleHashes {
		buf = append(buf, h[:]...)
	}
	return Hash(ckbhash.Sum(buf))
}
