package chaintypes

import "encoding/hex"

// ProposalShortIDSize is the length in bytes of a truncated transaction
// hash used to propose a transaction one block ahead of including it.
const ProposalShortIDSize = 10

// ProposalShortID is the first 10 bytes of a transaction hash, committed
// in a block's proposals field so the transaction can later be included
// within the proposal window without re-broadcasting its full body.
type ProposalShortID [ProposalShortIDSize]byte

// NewProposalShortID truncates a transaction hash down to its short ID.
func NewProposalShortID(h Hash) ProposalShortID {
	var id ProposalShortID
	copy(id[:], h[:ProposalShortIDSize])
	return id
}

func (id ProposalShortID) String() string {
	return hex.EncodeToString(id[:])
}
