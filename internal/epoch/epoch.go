// Package epoch implements the Epoch Engine: deriving the next EpochExt
// from a parent header and the ancestors leading up to it. Retargeting
// uses the same clamp-then-multiply-divide damping the teacher's PoW
// engine uses for its difficulty adjustment, extended from a linear
// difficulty value to the compact-target / epoch-length joint
// retarget CKB's consensus performs.
package epoch

import (
	"math/big"

	"github.com/shannonlabs/ckbcore/config"
	"github.com/shannonlabs/ckbcore/internal/log"
	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
)

// HeaderByNumber looks up an ancestor header by block number. Returns
// an error if the number is unknown, which next_epoch_ext treats as a
// fatal precondition failure (the caller must not invoke this function
// for numbers the store cannot resolve).
type HeaderByNumber func(number uint64) (*chaintypes.Header, error)

// TotalUnclesByNumber returns the cumulative uncle count as of the block
// at number, used to estimate the previous epoch's orphan rate.
type TotalUnclesByNumber func(number uint64) (uint64, error)

// primaryEpochReward returns the per-epoch primary issuance after
// halving every HalvingIntervalEpochs epochs from
// InitialPrimaryEpochReward. Spec 4.4: "halves every halving_interval
// epochs from initial_primary_epoch_reward."
func primaryEpochReward(c *config.Consensus, epochNumber uint64) uint64 {
	halvings := epochNumber / c.HalvingIntervalEpochs
	if halvings >= 64 {
		return 0
	}
	return c.InitialPrimaryEpochReward >> halvings
}

// clampEpochLength bounds a candidate epoch length to the configured
// [min, max] range, mirroring the teacher's CalcNextDifficulty clamp
// idiom applied here to epoch length instead of time span.
func clampEpochLength(c *config.Consensus, length uint64) uint64 {
	if length < c.MinEpochLength {
		return c.MinEpochLength
	}
	if length > c.MaxEpochLength {
		return c.MaxEpochLength
	}
	return length
}

// retargetCompact computes a new compact target so that, at the new
// epoch length, predicted block time equals
// epoch_duration_target/L_next. Damping is identical in shape to the
// teacher's CalcNextDifficulty: clamp the observed time span to
// [expected/4, expected*4], then scale the previous target by
// actual/expected using big.Int to avoid overflow.
func retargetCompact(c *config.Consensus, prevCompact uint32, actualSpanSeconds int64, prevLength, nextLength uint64) (uint32, error) {
	prevTarget, err := chaintypes.CompactToTarget(prevCompact)
	if err != nil {
		return 0, err
	}

	expectedSpan := int64(c.EpochDurationTarget)
	if actualSpanSeconds <= 0 {
		actualSpanSeconds = 1
	}

	minSpan := expectedSpan / 4
	maxSpan := expectedSpan * 4
	if minSpan == 0 {
		minSpan = 1
	}
	if actualSpanSeconds < minSpan {
		actualSpanSeconds = minSpan
	}
	if actualSpanSeconds > maxSpan {
		actualSpanSeconds = maxSpan
	}

	// newTarget = prevTarget * actual * nextLength / (expected * prevLength)
	// prevLength/nextLength rescale the target for a change in epoch
	// length, since the per-block expected time is duration/length.
	numerator := new(big.Int).Mul(prevTarget, big.NewInt(actualSpanSeconds))
	numerator.Mul(numerator, new(big.Int).SetUint64(nextLength))
	denominator := new(big.Int).Mul(big.NewInt(expectedSpan), new(big.Int).SetUint64(prevLength))
	if denominator.Sign() == 0 {
		denominator = big.NewInt(1)
	}
	newTarget := new(big.Int).Div(numerator, denominator)
	if newTarget.Sign() <= 0 {
		newTarget = big.NewInt(1)
	}

	return chaintypes.TargetToCompact(newTarget), nil
}

// NextEpochExt implements the Epoch Engine contract: given the parent
// header and its epoch, compute the next EpochExt, or nil if parent is
// not the last block of its epoch (spec.md 4.4). Pure and deterministic:
// no clocks, no randomness, same inputs always produce the same output.
func NextEpochExt(
	c *config.Consensus,
	parentHeader *chaintypes.Header,
	parentEpoch *chaintypes.EpochExt,
	getHeader HeaderByNumber,
	getTotalUncles TotalUnclesByNumber,
) (*chaintypes.EpochExt, error) {
	if !parentEpoch.IsLastBlock(parentHeader.Number) {
		return nil, nil
	}

	epochStartHeader, err := getHeader(parentEpoch.StartNumber)
	if err != nil {
		return nil, err
	}

	actualSpan := int64(parentHeader.Timestamp) - int64(epochStartHeader.Timestamp)
	actualSpan /= 1000 // header timestamps are milliseconds; the span is in seconds.

	startUncles, err := getTotalUncles(parentEpoch.StartNumber)
	if err != nil {
		return nil, err
	}
	endUncles, err := getTotalUncles(parentHeader.Number)
	if err != nil {
		return nil, err
	}
	epochBlocks := parentEpoch.Length
	orphanEstimate := float64(endUncles-startUncles) / float64(epochBlocks)

	// A span under one second counts as one second, as in retargetCompact.
	lengthSpan := actualSpan
	if lengthSpan <= 0 {
		lengthSpan = 1
	}
	expectedBlockTime := float64(lengthSpan) / float64(epochBlocks)
	nextLengthFloat := float64(c.EpochDurationTarget) / expectedBlockTime
	nextLength := clampEpochLength(c, uint64(nextLengthFloat))

	nextCompact, err := retargetCompact(c, parentEpoch.CompactTarget, actualSpan, epochBlocks, nextLength)
	if err != nil {
		return nil, err
	}

	nextNumber := parentEpoch.Number + 1
	reward := primaryEpochReward(c, nextNumber)
	base := reward / nextLength
	remainder := reward % nextLength

	hashRate := estimateHashRate(parentEpoch.CompactTarget, actualSpan, epochBlocks)

	log.Epoch.Debug().
		Uint64("epoch", nextNumber).
		Uint64("length", nextLength).
		Float64("orphan_rate_estimate", orphanEstimate).
		Msg("derived next epoch")

	return &chaintypes.EpochExt{
		Number:                       nextNumber,
		StartNumber:                  parentHeader.Number + 1,
		Length:                       nextLength,
		CompactTarget:                nextCompact,
		BaseBlockReward:              base,
		RemainderReward:              remainder,
		PrimaryIssuance:              reward,
		LastBlockHashInPreviousEpoch: parentHeader.Hash(),
		PreviousEpochHashRate:        hashRate,
	}, nil
}

// estimateHashRate derives an approximate network hash rate from the
// epoch's difficulty and observed span, recorded on EpochExt for
// informational/diagnostic use (not consensus-critical itself, but an
// input the next retarget's damping could incorporate).
func estimateHashRate(compact uint32, spanSeconds int64, blocks uint64) float64 {
	if spanSeconds <= 0 {
		return 0
	}
	diff, err := chaintypes.DifficultyFromCompact(compact)
	if err != nil {
		return 0
	}
	diffF := new(big.Float).SetInt(diff)
	total := new(big.Float).Mul(diffF, big.NewFloat(float64(blocks)))
	rate := new(big.Float).Quo(total, big.NewFloat(float64(spanSeconds)))
	f, _ := rate.Float64()
	return f
}
