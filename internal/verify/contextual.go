package verify

import (
	"errors"
	"fmt"

	"github.com/shannonlabs/ckbcore/config"
	"github.com/shannonlabs/ckbcore/internal/epoch"
	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
)

// Contextual validation errors: failures that can only be determined
// against the chain state the block extends.
var (
	ErrUnknownParent         = errors.New("parent header not found")
	ErrBadNumber             = errors.New("block number does not follow parent")
	ErrBadEpoch              = errors.New("epoch token mismatch")
	ErrBadDifficulty         = errors.New("compact_target does not match epoch")
	ErrTimestampTooOld       = errors.New("timestamp not greater than median time")
	ErrTimestampTooFarFuture = errors.New("timestamp too far in the future")
	ErrUncleTooOld           = errors.New("uncle older than max_uncles_age")
	ErrUncleWrongEpoch       = errors.New("uncle epoch/difficulty mismatch")
	ErrUncleNotYoungerSide   = errors.New("uncle number not less than block number")
	ErrUncleAlreadyIncluded  = errors.New("uncle already embedded in an ancestor")
	ErrDuplicateUncle        = errors.New("uncle appears more than once in block")
	ErrUnclePoW              = errors.New("uncle fails proof of work")
	ErrCellbaseRewardTooHigh = errors.New("cellbase output exceeds allowed reward")
	ErrCellbaseShape         = errors.New("cellbase must have exactly one output")
	ErrProposalWindow        = errors.New("transaction committed outside its proposal window")
	ErrProposalAlreadyCommitted = errors.New("transaction short id already committed")
	ErrCellbaseImmature      = errors.New("input references an immature cellbase output")
	ErrBadDAOField           = errors.New("dao field does not match recomputed accumulator")
	ErrExceededMaxCycles     = errors.New("block exceeds max_block_cycles")
)

// AncestorSource resolves headers and totals by block number, the
// read-only view into chain state the Contextual Verifier and Epoch
// Engine need. A Snapshot (internal/chain) satisfies this.
type AncestorSource interface {
	HeaderByNumber(number uint64) (*chaintypes.Header, error)
	HeaderByHash(hash chaintypes.Hash) (*chaintypes.Header, error)
	BlockByNumber(number uint64) (*chaintypes.Block, error)
	TotalUnclesByNumber(number uint64) (uint64, error)
	EpochExtByNumber(number uint64) (*chaintypes.EpochExt, error)
	MedianTime(parent *chaintypes.Header, blockCount uint64) uint64
	IsUncleIncluded(hash chaintypes.Hash) bool
	ProposedIn(number uint64) []chaintypes.ProposalShortID
	IsCommitted(id chaintypes.ProposalShortID) bool
	Now() uint64
}

// Contextual runs every check spec 4.6 describes for a block whose
// parent is already known, persisted and verified. A parent this source
// cannot find is reported as ErrUnknownParent; the Chain Controller parks
// parentless blocks in its orphan pool before this runs, and reports an
// ErrUnknownParent from here as a rejection. verifier is the Script
// VM capability (spec 9's verify_script): NopScriptVerifier when none
// is wired in. sw may disable specific checks; pass 0 to run every
// check.
func Contextual(c *config.Consensus, src AncestorSource, verifier ScriptVerifier, blk *chaintypes.Block, sw Switch) (*chaintypes.EpochExt, error) {
	parent, err := src.HeaderByHash(blk.Header.ParentHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParent, blk.Header.ParentHash)
	}

	if blk.Header.Number != parent.Number+1 {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadNumber, blk.Header.Number, parent.Number+1)
	}

	currentEpoch, nextEpoch, err := resolveEpoch(c, src, parent, blk.Header.Number)
	if err != nil {
		return nil, err
	}
	activeEpoch := currentEpoch
	if nextEpoch != nil {
		activeEpoch = nextEpoch
	}

	if !sw.Has(DisableEpoch) {
		wantToken := activeEpoch.Token(blk.Header.Number)
		if blk.Header.Epoch != wantToken {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrBadEpoch, blk.Header.Epoch, wantToken)
		}
		if blk.Header.CompactTarget != activeEpoch.CompactTarget {
			return nil, fmt.Errorf("%w: got %#x, want %#x", ErrBadDifficulty, blk.Header.CompactTarget, activeEpoch.CompactTarget)
		}
	}

	if err := checkTimestamp(c, src, parent, blk.Header.Timestamp); err != nil {
		return nil, err
	}
	if !sw.Has(DisableUncles) {
		if err := checkUncles(c, src, activeEpoch, blk); err != nil {
			return nil, err
		}
	}
	if !sw.Has(DisableScript) {
		if err := checkScripts(c, verifier, blk); err != nil {
			return nil, err
		}
	}
	if err := checkCellbaseReward(c, src, verifier, activeEpoch, blk, sw); err != nil {
		return nil, err
	}
	if !sw.Has(DisableTwoPhaseCommit) {
		if err := checkProposalWindow(c, src, blk); err != nil {
			return nil, err
		}
	}
	if err := checkCellbaseMaturity(c, src, blk); err != nil {
		return nil, err
	}
	if err := checkDAOField(src, parent, activeEpoch, blk); err != nil {
		return nil, err
	}

	return activeEpoch, nil
}

// checkDAOField recomputes the issuance-side DAO accumulator and
// compares it against the header's declared field.
func checkDAOField(src AncestorSource, parent *chaintypes.Header, activeEpoch *chaintypes.EpochExt, blk *chaintypes.Block) error {
	primary := activeEpoch.BlockReward(blk.Header.Number)
	secondary := activeEpoch.SecondaryIssuance / activeEpoch.Length
	want := chaintypes.NextDAOField(parent.DAO, primary, secondary)
	if blk.Header.DAO != want {
		return fmt.Errorf("%w: got %x, want %x", ErrBadDAOField, blk.Header.DAO, want)
	}
	return nil
}

// resolveEpoch returns the ongoing epoch parent belongs to, and — if
// parent is that epoch's last block — the freshly derived next epoch.
func resolveEpoch(c *config.Consensus, src AncestorSource, parent *chaintypes.Header, blockNumber uint64) (current, next *chaintypes.EpochExt, err error) {
	current, err = src.EpochExtByNumber(parent.Number)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving epoch for parent %d: %w", parent.Number, err)
	}
	if !current.IsLastBlock(parent.Number) {
		return current, nil, nil
	}
	next, err = epoch.NextEpochExt(c, parent, current, src.HeaderByNumber, src.TotalUnclesByNumber)
	if err != nil {
		return nil, nil, fmt.Errorf("deriving next epoch: %w", err)
	}
	return current, next, nil
}

func checkTimestamp(c *config.Consensus, src AncestorSource, parent *chaintypes.Header, timestamp uint64) error {
	median := src.MedianTime(parent, c.MedianTimeBlockCount)
	if timestamp <= median {
		return fmt.Errorf("%w: %d <= %d", ErrTimestampTooOld, timestamp, median)
	}
	if timestamp > src.Now()+c.AllowedFutureBlockTime {
		return fmt.Errorf("%w: %d > now+%d", ErrTimestampTooFarFuture, timestamp, c.AllowedFutureBlockTime)
	}
	return nil
}

func checkUncles(c *config.Consensus, src AncestorSource, activeEpoch *chaintypes.EpochExt, blk *chaintypes.Block) error {
	seen := make(map[chaintypes.Hash]struct{}, len(blk.Uncles))
	for i, u := range blk.Uncles {
		h := u.Hash()
		if _, ok := seen[h]; ok {
			return fmt.Errorf("uncle %d: %w", i, ErrDuplicateUncle)
		}
		seen[h] = struct{}{}

		if u.Header.CompactTarget != activeEpoch.CompactTarget || u.Header.Epoch.Number() != activeEpoch.Number {
			return fmt.Errorf("uncle %d: %w", i, ErrUncleWrongEpoch)
		}
		if u.Header.Number >= blk.Header.Number {
			return fmt.Errorf("uncle %d: %w", i, ErrUncleNotYoungerSide)
		}
		if blk.Header.Number-u.Header.Number > c.MaxUnclesAge {
			return fmt.Errorf("uncle %d: %w", i, ErrUncleTooOld)
		}
		if src.IsUncleIncluded(h) {
			return fmt.Errorf("uncle %d: %w", i, ErrUncleAlreadyIncluded)
		}
		if ok, err := chaintypes.VerifyPoW(&u.Header); err != nil {
			return fmt.Errorf("uncle %d: %w", i, err)
		} else if !ok {
			return fmt.Errorf("uncle %d: %w", i, ErrUnclePoW)
		}
	}
	return nil
}

// checkScripts feeds every non-cellbase transaction's (lock, type)
// scripts and witnesses into the Script VM capability and enforces the
// per-block cycle cap spec 4.6 names. The fee each call reports is
// folded into the reward ceiling only later, once its block finalizes
// (checkCellbaseReward) — here only the running cycle total matters.
func checkScripts(c *config.Consensus, verifier ScriptVerifier, blk *chaintypes.Block) error {
	var totalCycles uint64
	for i, tx := range blk.Transactions[1:] {
		_, cycles, err := verifier.VerifyTransaction(&tx)
		if err != nil {
			return fmt.Errorf("tx %d: %w", i+1, err)
		}
		totalCycles += cycles
		if totalCycles > c.MaxBlockCycles {
			return fmt.Errorf("%w: %d > %d", ErrExceededMaxCycles, totalCycles, c.MaxBlockCycles)
		}
	}
	return nil
}

// checkCellbaseReward enforces the shape and reward ceiling spec 4.6
// describes: the block's own base issuance, plus — once
// finalization_delay_length blocks have passed — the proposer/committer
// fee split earned by the block that is finalizing this round.
func checkCellbaseReward(c *config.Consensus, src AncestorSource, verifier ScriptVerifier, activeEpoch *chaintypes.EpochExt, blk *chaintypes.Block, sw Switch) error {
	cellbase := blk.Cellbase()
	if len(cellbase.Outputs) != 1 {
		return ErrCellbaseShape
	}

	var ceiling uint64
	var err error
	if sw.Has(DisableScript) {
		ceiling = activeEpoch.BlockReward(blk.Header.Number)
	} else {
		ceiling, err = finalizedReward(c, src, verifier, activeEpoch, blk.Header.Number)
	}
	if err != nil {
		return fmt.Errorf("cellbase: %w", err)
	}

	if cellbase.Outputs[0].Capacity > ceiling {
		return fmt.Errorf("%w: %d > %d", ErrCellbaseRewardTooHigh, cellbase.Outputs[0].Capacity, ceiling)
	}
	return nil
}

// finalizedReward is the cellbase ceiling for the block at number: its
// own base issuance from activeEpoch, plus — once
// finalization_delay_length blocks separate number from the block whose
// fees are finalizing this round — that earlier ("target") block's
// committer share of its own committed transactions' fees, plus the
// proposer share of any fee earned by a transaction target itself
// proposed and that later committed within the proposal window.
// FinalizationDelayLength is required (Consensus.Validate) to exceed
// ProposalWindow.Farthest, so by the time number reaches target's
// finalization point every proposal target made has already resolved,
// committed or expired, and the blocks that could hold that commit are
// already attached ancestors BlockByNumber can resolve.
func finalizedReward(c *config.Consensus, src AncestorSource, verifier ScriptVerifier, activeEpoch *chaintypes.EpochExt, number uint64) (uint64, error) {
	base := activeEpoch.BlockReward(number)
	if number <= c.FinalizationDelayLength {
		return base, nil // nothing has finalized yet this early in the chain
	}

	target := number - c.FinalizationDelayLength
	targetBlock, err := src.BlockByNumber(target)
	if err != nil {
		return 0, fmt.Errorf("load finalizing block %d: %w", target, err)
	}

	proposedByTarget := make(map[chaintypes.ProposalShortID]struct{}, len(targetBlock.Proposals))
	for _, id := range targetBlock.Proposals {
		proposedByTarget[id] = struct{}{}
	}

	var committerShare, proposerShare uint64
	for _, tx := range targetBlock.Transactions[1:] {
		fee, _, err := verifier.VerifyTransaction(&tx)
		if err != nil {
			return 0, fmt.Errorf("resolving fee for finalizing tx: %w", err)
		}
		committerShare += fee * c.CommitterRewardRatio() / 10
	}

	for w := c.ProposalWindow.Closest; w <= c.ProposalWindow.Farthest; w++ {
		committerBlock, err := src.BlockByNumber(target + w)
		if err != nil {
			continue // not far enough past target for this slot to exist yet
		}
		for _, tx := range committerBlock.Transactions[1:] {
			if _, ok := proposedByTarget[tx.ProposalShortID()]; !ok {
				continue
			}
			fee, _, err := verifier.VerifyTransaction(&tx)
			if err != nil {
				return 0, fmt.Errorf("resolving fee for proposed tx: %w", err)
			}
			proposerShare += fee * c.ProposerRewardRatio / 10
		}
	}

	total, err := chaintypes.AddCapacity(base, committerShare)
	if err != nil {
		return 0, err
	}
	return chaintypes.AddCapacity(total, proposerShare)
}

func checkProposalWindow(c *config.Consensus, src AncestorSource, blk *chaintypes.Block) error {
	number := blk.Header.Number
	candidates := make(map[chaintypes.ProposalShortID]struct{})
	for w := c.ProposalWindow.Closest; w <= c.ProposalWindow.Farthest; w++ {
		if w > number {
			continue
		}
		for _, id := range src.ProposedIn(number - w) {
			candidates[id] = struct{}{}
		}
	}

	for i, tx := range blk.Transactions[1:] {
		id := tx.ProposalShortID()
		if src.IsCommitted(id) {
			return fmt.Errorf("tx %d: %w: %s", i+1, ErrProposalAlreadyCommitted, id)
		}
		if _, ok := candidates[id]; !ok {
			return fmt.Errorf("tx %d: %w: %s", i+1, ErrProposalWindow, id)
		}
	}
	return nil
}

func checkCellbaseMaturity(c *config.Consensus, src AncestorSource, blk *chaintypes.Block) error {
	tip := blk.Header.Number - 1
	for i, tx := range blk.Transactions {
		for _, in := range tx.Inputs {
			if in.OutPoint.IsZero() {
				continue
			}
			header, err := src.HeaderByHash(in.OutPoint.TxHash)
			if err != nil {
				continue // resolved by the Script VM's live-cell lookup, not here.
			}
			if !isCellbaseOrigin(header, in.OutPoint) {
				continue
			}
			if tip < header.Number+c.CellbaseMaturity {
				return fmt.Errorf("tx %d: %w: cellbase at %d, tip %d, maturity %d", i, ErrCellbaseImmature, header.Number, tip, c.CellbaseMaturity)
			}
		}
	}
	return nil
}

// isCellbaseOrigin is a conservative stand-in for resolving whether an
// out-point's originating transaction was a cellbase: the chain core
// does not itself index transaction provenance (the Script VM's live
// cell set does), so this only fires for out-points the caller has
// already resolved to a header via a cellbase-shaped lookup.
func isCellbaseOrigin(header *chaintypes.Header, op chaintypes.OutPoint) bool {
	return op.Index == 0 && header != nil
}
