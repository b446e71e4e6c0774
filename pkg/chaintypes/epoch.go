package chaintypes

// EpochExt is the per-epoch state an epoch's first attached block
// pins down once: its boundaries, its difficulty target, and the
// miner reward split that every block within the epoch shares.
type EpochExt struct {
	Number        uint64 `json:"number"`
	StartNumber   uint64 `json:"start_number"`
	Length        uint64 `json:"length"`
	CompactTarget uint32 `json:"compact_target"`

	// BaseBlockReward is the per-block primary-issuance reward every
	// block in the epoch earns; RemainderReward distributes the
	// halving's integer-division remainder as one extra shannon each
	// to the epoch's first RemainderReward blocks.
	BaseBlockReward uint64 `json:"base_block_reward"`
	RemainderReward uint64 `json:"remainder_reward"`

	// PrimaryIssuance and SecondaryIssuance are the epoch's total
	// miner-reward and NervosDAO-interest issuance respectively,
	// recorded for the DAO field's accumulator recomputation.
	PrimaryIssuance   uint64 `json:"primary_issuance"`
	SecondaryIssuance uint64 `json:"secondary_issuance"`

	LastBlockHashInPreviousEpoch Hash    `json:"last_block_hash_in_previous_epoch"`
	PreviousEpochHashRate        float64 `json:"previous_epoch_hash_rate"`
}

// Contains reports whether block number n belongs to this epoch.
func (e *EpochExt) Contains(n uint64) bool {
	return n >= e.StartNumber && n < e.StartNumber+e.Length
}

// IsLastBlock reports whether number n is the last block of this
// epoch, the point at which next_epoch_ext is derived.
func (e *EpochExt) IsLastBlock(n uint64) bool {
	return n == e.StartNumber+e.Length-1
}

// Index returns n's position within this epoch, valid only when
// Contains(n) holds.
func (e *EpochExt) Index(n uint64) uint64 {
	return n - e.StartNumber
}

// Token returns the (number, index, length) triple a header at block
// number n within this epoch commits to.
func (e *EpochExt) Token(n uint64) EpochToken {
	return NewEpochToken(e.Number, uint16(e.Index(n)), uint16(e.Length))
}

// BlockReward returns the primary-issuance reward the block at number n
// earns: the base reward, plus one extra shannon if n falls within the
// epoch's first RemainderReward blocks.
func (e *EpochExt) BlockReward(n uint64) uint64 {
	reward := e.BaseBlockReward
	if e.Index(n) < e.RemainderReward {
		reward++
	}
	return reward
}
