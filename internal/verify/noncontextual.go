// Package verify holds the Non-Contextual and Contextual Verifiers the
// Chain Service pipeline's NCV and CV workers run over each block.
package verify

import (
	"errors"
	"fmt"

	"github.com/shannonlabs/ckbcore/config"
	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
)

// Non-contextual validation errors: failures a block carries in
// isolation, independent of any ancestor or chain state.
var (
	ErrEmptyTransactions      = errors.New("block has no transactions")
	ErrNotCellbase            = errors.New("first transaction is not a cellbase")
	ErrUnexpectedCellbase     = errors.New("non-first transaction is a cellbase")
	ErrOutputsDataMismatch    = errors.New("outputs and outputs_data length mismatch")
	ErrBadTransactionsRoot    = errors.New("transactions_root mismatch")
	ErrBadProposalsHash       = errors.New("proposals_hash mismatch")
	ErrBadExtraHash           = errors.New("extra_hash mismatch")
	ErrTooManyUncles          = errors.New("too many uncles")
	ErrBadUncleProposals      = errors.New("uncle proposals_hash mismatch")
	ErrDuplicateUncleProposal = errors.New("duplicate proposal id within uncle")
	ErrDuplicateInput         = errors.New("duplicate input within transaction")
	ErrBelowDustFloor         = errors.New("output capacity below occupied capacity")
	ErrBlockTooLarge          = errors.New("block exceeds max_block_bytes")
	ErrBadVersion             = errors.New("unsupported header version")
)

// NonContextual runs every check spec 4.5 describes against a single
// block, with no reference to chain state beyond the consensus params.
// sw may disable specific checks (DisableUncles skips checkUncleShape);
// pass 0 to run every check.
func NonContextual(c *config.Consensus, blk *chaintypes.Block, sw Switch) error {
	if err := checkShape(blk); err != nil {
		return err
	}
	if err := checkMerkle(blk); err != nil {
		return err
	}
	if !sw.Has(DisableUncles) {
		if err := checkUncleShape(c, blk); err != nil {
			return err
		}
	}
	if err := checkTransactionsSyntactic(blk); err != nil {
		return err
	}
	if ok, err := chaintypes.VerifyPoW(&blk.Header); err != nil {
		return fmt.Errorf("pow: %w", err)
	} else if !ok {
		return chaintypes.ErrInvalidNonce
	}
	if err := checkSize(c, blk); err != nil {
		return err
	}
	if err := checkVersion(c, blk); err != nil {
		return err
	}
	return nil
}

func checkVersion(c *config.Consensus, blk *chaintypes.Block) error {
	want := c.VersionAt(blk.Header.Epoch.Number())
	if blk.Header.Version != want {
		return fmt.Errorf("%w: got %d, want %d", ErrBadVersion, blk.Header.Version, want)
	}
	return nil
}

func checkShape(blk *chaintypes.Block) error {
	if len(blk.Transactions) == 0 {
		return ErrEmptyTransactions
	}
	if !blk.Transactions[0].IsCellbase(blk.Header.Number) {
		return ErrNotCellbase
	}
	for i, tx := range blk.Transactions[1:] {
		if tx.IsCellbase(blk.Header.Number) {
			return fmt.Errorf("tx %d: %w", i+1, ErrUnexpectedCellbase)
		}
	}
	for i, tx := range blk.Transactions {
		if len(tx.Outputs) != len(tx.OutputsData) {
			return fmt.Errorf("tx %d: %w", i, ErrOutputsDataMismatch)
		}
	}
	return nil
}

func checkMerkle(blk *chaintypes.Block) error {
	expectedRoot := chaintypes.TransactionsRoot(blk.TxHashes(), blk.TxWitnessHashes())
	if blk.Header.TransactionsRoot != expectedRoot {
		return fmt.Errorf("%w: header=%s computed=%s", ErrBadTransactionsRoot, blk.Header.TransactionsRoot, expectedRoot)
	}

	expectedProposals := chaintypes.ProposalsHash(blk.Proposals)
	if blk.Header.ProposalsHash != expectedProposals {
		return fmt.Errorf("%w: header=%s computed=%s", ErrBadProposalsHash, blk.Header.ProposalsHash, expectedProposals)
	}

	expectedExtra := chaintypes.ExtraHash(chaintypes.UnclesHash(blk.UncleHashes()), nil)
	if blk.Header.ExtraHash != expectedExtra {
		return fmt.Errorf("%w: header=%s computed=%s", ErrBadExtraHash, blk.Header.ExtraHash, expectedExtra)
	}
	return nil
}

func checkUncleShape(c *config.Consensus, blk *chaintypes.Block) error {
	if uint64(len(blk.Uncles)) > c.MaxUncles {
		return fmt.Errorf("%w: %d uncles, max %d", ErrTooManyUncles, len(blk.Uncles), c.MaxUncles)
	}
	for i, u := range blk.Uncles {
		expected := chaintypes.ProposalsHash(u.Proposals)
		if u.Header.ProposalsHash != expected {
			return fmt.Errorf("uncle %d: %w", i, ErrBadUncleProposals)
		}
		seen := make(map[chaintypes.ProposalShortID]struct{}, len(u.Proposals))
		for _, id := range u.Proposals {
			if _, ok := seen[id]; ok {
				return fmt.Errorf("uncle %d: %w: %s", i, ErrDuplicateUncleProposal, id)
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}

func checkTransactionsSyntactic(blk *chaintypes.Block) error {
	for i, tx := range blk.Transactions {
		seen := make(map[chaintypes.OutPoint]struct{}, len(tx.Inputs))
		for _, in := range tx.Inputs {
			if _, ok := seen[in.OutPoint]; ok {
				return fmt.Errorf("tx %d: %w: %s", i, ErrDuplicateInput, in.OutPoint)
			}
			seen[in.OutPoint] = struct{}{}
		}
		for j, out := range tx.Outputs {
			floor := out.OccupiedCapacity(tx.OutputsData[j])
			if out.Capacity < floor {
				return fmt.Errorf("tx %d output %d: %w: capacity %d < occupied %d", i, j, ErrBelowDustFloor, out.Capacity, floor)
			}
		}
	}
	return nil
}

func checkSize(c *config.Consensus, blk *chaintypes.Block) error {
	size := blk.SerializedSize()
	if uint64(size) > c.MaxBlockBytes {
		return fmt.Errorf("%w: %d bytes, max %d", ErrBlockTooLarge, size, c.MaxBlockBytes)
	}
	return nil
}
