package config

import (
	"fmt"

	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
)

// =============================================================================
// Consensus Params (immutable, defined at chain launch)
// These MUST match across all nodes or consensus breaks.
// =============================================================================

// ProposalWindow bounds how far ahead of, and how close before, a
// transaction's proposal a block may commit it: spec 3 names this
// `(closest, farthest)`.
type ProposalWindow struct {
	Closest  uint64 `json:"closest"`
	Farthest uint64 `json:"farthest"`
}

// HardForkSwitch maps a named feature to the first epoch number at
// which it activates. Read-only after node start (spec.md 9's
// "Hard-fork switch" design note).
type HardForkSwitch map[string]uint64

// Epoch number a feature activates at, or false if the feature name is
// absent from the table (never scheduled).
func (s HardForkSwitch) ActivationEpoch(feature string) (uint64, bool) {
	e, ok := s[feature]
	return e, ok
}

// IsActive reports whether feature has activated by the given epoch
// number.
func (s HardForkSwitch) IsActive(feature string, epoch uint64) bool {
	e, ok := s[feature]
	return ok && epoch >= e
}

// Consensus holds every protocol rule that must be identical across all
// nodes following the same chain: genesis state, epoch timing, issuance,
// and the structural limits the verifiers enforce.
type Consensus struct {
	// Chain identity
	ID string `json:"id"`

	// Genesis block and its epoch, from which all subsequent state
	// derives.
	GenesisHeader chaintypes.Header   `json:"genesis_header"`
	GenesisEpoch  chaintypes.EpochExt `json:"genesis_epoch"`

	// Epoch Engine
	EpochDurationTarget uint64  `json:"epoch_duration_target"` // seconds
	GenesisEpochLength  uint64  `json:"genesis_epoch_length"`  // blocks
	MaxEpochLength      uint64  `json:"max_epoch_length"`
	MinEpochLength      uint64  `json:"min_epoch_length"`
	OrphanRateTarget    float64 `json:"orphan_rate_target"`

	// Issuance
	InitialPrimaryEpochReward uint64 `json:"initial_primary_epoch_reward"`
	HalvingIntervalEpochs     uint64 `json:"halving_interval_epochs"`
	ProposerRewardRatio       uint64 `json:"proposer_reward_ratio"` // numerator over 10

	// Block/transaction shape limits
	ProposalWindow ProposalWindow `json:"proposal_window"`
	MaxUncles      uint64         `json:"max_uncles"`
	MaxUnclesAge   uint64         `json:"max_uncles_age"`
	CellbaseMaturity     uint64   `json:"cellbase_maturity"` // epoch-with-fraction, blocks
	MaxBlockBytes        uint64   `json:"max_block_bytes"`
	MaxBlockCycles       uint64   `json:"max_block_cycles"`
	MedianTimeBlockCount uint64   `json:"median_time_block_count"`
	AllowedFutureBlockTime uint64 `json:"allowed_future_block_time_ms"`

	// FinalizationDelayLength defers a cellbase's fee payout: the
	// cellbase at height N pays out the fees earned by block
	// N-FinalizationDelayLength, once every transaction that block
	// itself proposed has had the full proposal window to resolve
	// (committed or expired). Must exceed ProposalWindow.Farthest, or
	// a still-pending proposal from the target block could commit
	// after its reward has already been paid out.
	FinalizationDelayLength uint64 `json:"finalization_delay_length"`

	HardForkSwitch HardForkSwitch `json:"hard_fork_switch"`
}

// HeaderVersionFeature names the HardForkSwitch entry gating the
// header version bump from 0 to 1; see VersionAt.
const HeaderVersionFeature = "header_version_v1"

// VersionAt returns the header version a block in the given epoch must
// declare: 0 until HeaderVersionFeature activates in the hard-fork
// switch table, 1 from that epoch on.
func (c *Consensus) VersionAt(epoch uint64) uint32 {
	if c.HardForkSwitch.IsActive(HeaderVersionFeature, epoch) {
		return 1
	}
	return 0
}

// CommitterRewardRatio is the complement of ProposerRewardRatio out of
// ten, matching spec 4.6's proposer/committer reward split.
func (c *Consensus) CommitterRewardRatio() uint64 {
	return 10 - c.ProposerRewardRatio
}

// Validate checks structural invariants a Consensus value must satisfy
// for the Epoch Engine and verifiers to behave.
func (c *Consensus) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("consensus id is required")
	}
	if c.EpochDurationTarget == 0 {
		return fmt.Errorf("epoch_duration_target must be positive")
	}
	if c.GenesisEpochLength == 0 {
		return fmt.Errorf("genesis_epoch_length must be positive")
	}
	if c.MinEpochLength == 0 || c.MinEpochLength > c.MaxEpochLength {
		return fmt.Errorf("min_epoch_length must be positive and <= max_epoch_length")
	}
	if c.ProposalWindow.Closest > c.ProposalWindow.Farthest {
		return fmt.Errorf("proposal_window.closest must be <= farthest")
	}
	if c.ProposerRewardRatio > 10 {
		return fmt.Errorf("proposer_reward_ratio must be a numerator over 10")
	}
	if c.MaxBlockBytes == 0 {
		return fmt.Errorf("max_block_bytes must be positive")
	}
	if c.FinalizationDelayLength <= c.ProposalWindow.Farthest {
		return fmt.Errorf("finalization_delay_length must exceed proposal_window.farthest")
	}
	return nil
}

// DefaultConsensus returns the parameter set ckbcored ships with: the
// values recorded in DESIGN.md's Open Question decision on DAA
// constants (no upstream source bytes are retrievable in this exercise,
// so a self-consistent set is fixed and held as a plain input rather
// than re-derived per run).
func DefaultConsensus() *Consensus {
	genesisEpoch := chaintypes.EpochExt{
		Number:          0,
		StartNumber:     0,
		Length:          1000,
		CompactTarget:   0x20010000, // target 2^248 (difficulty about 256): generous starting target
		BaseBlockReward: 1_250_000 * 100_000_000 / 1000,
		RemainderReward: 0,
	}

	genesisHeader := chaintypes.Header{
		Version:       0,
		CompactTarget: genesisEpoch.CompactTarget,
		Timestamp:     0,
		Number:        0,
		Epoch:         genesisEpoch.Token(0),
		ParentHash:    chaintypes.ZeroHash,
	}

	return &Consensus{
		ID:            "ckbcore-dev",
		GenesisHeader: genesisHeader,
		GenesisEpoch:  genesisEpoch,

		EpochDurationTarget: 4 * 60 * 60, // 4 hours
		GenesisEpochLength:  1000,
		MaxEpochLength:      4000,
		MinEpochLength:      275,
		OrphanRateTarget:    0.025,

		InitialPrimaryEpochReward: 1_250_000 * 100_000_000, // shannons
		HalvingIntervalEpochs:     4 * 365 * 6, // roughly four years of four-hour epochs
		ProposerRewardRatio:       4,       // 40% to the proposer, 60% to the committer

		ProposalWindow: ProposalWindow{Closest: 2, Farthest: 10},
		MaxUncles:      2,
		MaxUnclesAge:   6,
		CellbaseMaturity:       4 * 6, // four epoch-fractions' worth of blocks at genesis length
		MaxBlockBytes:          597_000,
		MaxBlockCycles:         3_500_000_000,
		MedianTimeBlockCount:   37,
		AllowedFutureBlockTime: 15_000,

		// One past the proposal window's farthest slot: by the time a
		// block's own reward is finalized, every proposal it made has
		// either committed or fallen out of the window for good.
		FinalizationDelayLength: 11,

		HardForkSwitch: HardForkSwitch{
			"extension_field": 1,
		},
	}
}

// ConsensusFor returns the consensus parameters for the given network.
// Testnet relaxes timing so local chains advance quickly.
func ConsensusFor(network NetworkType) *Consensus {
	c := DefaultConsensus()
	if network == Testnet {
		c.ID = "ckbcore-testnet"
		c.EpochDurationTarget = 4 * 60
		c.GenesisEpochLength = 100
		c.MaxEpochLength = 400
		c.MinEpochLength = 25
		c.CellbaseMaturity = 6
	}
	return c
}
