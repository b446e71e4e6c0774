package chaintypes

// UncleBlock is a valid-but-not-best-chain block embedded in a later
// block to credit its miner: a header plus the proposals it carried.
// It has no transaction bodies of its own beyond what the header's
// transactions_root already commits to.
type UncleBlock struct {
	Header    Header            `json:"header"`
	Proposals []ProposalShortID `json:"proposals"`
}

// Hash returns the uncle's header hash, its identity everywhere it is
// referenced (extra_hash, ancestor-embedding checks, uncle legality).
func (u *UncleBlock) Hash() Hash {
	return u.Header.Hash()
}
