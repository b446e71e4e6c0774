package chaintypes

import "fmt"

// Block is a header plus its body: the ordered transactions (the first
// of which is always the cellbase), the uncles it embeds, and the
// proposal short-ids it carries forward.
type Block struct {
	Header       Header            `json:"header"`
	Transactions []Transaction     `json:"transactions"`
	Uncles       []UncleBlock      `json:"uncles"`
	Proposals    []ProposalShortID `json:"proposals"`
}

// Hash returns the block's identity, which is its header hash.
func (b *Block) Hash() Hash {
	return b.Header.Hash()
}

// Cellbase returns the block's first transaction, which by construction
// is always its cellbase. Panics if called on a block with no
// transactions, which is itself a shape violation the Non-Contextual
// Verifier must reject before any caller reaches this far.
func (b *Block) Cellbase() *Transaction {
	if len(b.Transactions) == 0 {
		panic(fmt.Sprintf("block %s has no transactions", b.Hash()))
	}
	return &b.Transactions[0]
}

// TxHashes returns the identity hash of every transaction in the block,
// in order — the leaves of the tx-id side of TransactionsRoot.
func (b *Block) TxHashes() []Hash {
	hashes := make([]Hash, len(b.Transactions))
	for i := range b.Transactions {
		hashes[i] = b.Transactions[i].Hash()
	}
	return hashes
}

// TxWitnessHashes returns the witness hash of every transaction in the
// block, in order — the leaves of the witness side of TransactionsRoot.
func (b *Block) TxWitnessHashes() []Hash {
	hashes := make([]Hash, len(b.Transactions))
	for i := range b.Transactions {
		hashes[i] = b.Transactions[i].WitnessHash()
	}
	return hashes
}

// UncleHashes returns the header hash of every embedded uncle, in
// order — the input to UnclesHash.
func (b *Block) UncleHashes() []Hash {
	hashes := make([]Hash, len(b.Uncles))
	for i := range b.Uncles {
		hashes[i] = b.Uncles[i].Hash()
	}
	return hashes
}

// SerializedSize returns the block's on-wire byte size: its header,
// every transaction, and every uncle header, the quantity the
// Non-Contextual Verifier's size check bounds by max_block_bytes.
func (b *Block) SerializedSize() int {
	size := len(b.Header.SigningBytes())
	for i := range b.Transactions {
		size += b.Transactions[i].SerializedSize()
	}
	for _, u := range b.Uncles {
		size += len(u.Header.SigningBytes())
	}
	return size
}
