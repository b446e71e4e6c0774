package chain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shannonlabs/ckbcore/internal/chainstore"
	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
)

// ErrReorgTooDeep bounds how far back a reorg may walk before giving
// up, mirroring the teacher's MaxReorgDepth guard against a
// pathological or adversarial deep fork.
var ErrReorgTooDeep = errors.New("chain: reorg exceeds max depth")

const maxReorgDepth = 4096

// AttachResult reports whether a newly verified block became the new
// best tip, and the snapshot to publish if so.
type AttachResult struct {
	Snapshot  *Snapshot
	IsNewBest bool
}

// AttachOrReorg implements spec.md 4.9's Best-Chain Selector: compute
// blk's total difficulty, compare against the current tip, and either
// extend the tip directly, trigger a reorganisation onto blk's branch,
// or leave the tip untouched while still persisting blk's own ext.
// blk and its BlockExt must already be stored (InsertBlock/
// InsertBlockExt) by the caller; this only handles the attach/detach
// bookkeeping and tip selection.
func AttachOrReorg(store *chainstore.Store, metrics *Metrics, snapshot *Snapshot, blk *chaintypes.Block, ext *chaintypes.BlockExt) (*AttachResult, error) {
	tipExt, err := store.GetBlockExt(snapshot.TipHash)
	if err != nil {
		return nil, fmt.Errorf("load tip ext: %w", err)
	}

	if ext.TotalDifficulty.Cmp(tipExt.TotalDifficulty) <= 0 {
		// Candidate loses or ties: persisted already, tip unchanged.
		return &AttachResult{Snapshot: snapshot, IsNewBest: false}, nil
	}

	if blk.Header.ParentHash == snapshot.TipHash {
		if err := store.AttachBlock(blk); err != nil {
			return nil, fmt.Errorf("attach block: %w", err)
		}
		next := snapshot.withAttached(blk, ext.TotalDifficulty)
		metrics.BestTipNumber.Set(float64(next.TipNumber))
		return &AttachResult{Snapshot: next, IsNewBest: true}, nil
	}

	next, err := reorganize(store, metrics, snapshot, blk)
	if err != nil {
		return nil, err
	}
	return &AttachResult{Snapshot: next, IsNewBest: true}, nil
}

// reorganize walks both the incumbent chain and blk's branch back to
// their common ancestor, detaches the incumbent side down to the fork,
// then attaches the challenger side up to blk, in order. Spec.md 4.9:
// "find the fork point... detach each block... attach each new
// block... commit; then publish a new Snapshot."
// reorganize commits every detach, every attach, and the checkpoint's own
// clearing as a single store transaction (spec.md 4.9 step 3): a crash
// partway through leaves either the pre-reorg state or the post-reorg
// state on disk, never something in between.
func reorganize(store *chainstore.Store, metrics *Metrics, snapshot *Snapshot, blk *chaintypes.Block) (*Snapshot, error) {
	attachChain, err := collectToFork(store, blk)
	if err != nil {
		return nil, err
	}
	forkNumber := attachChain[0].Header.Number - 1

	txn, err := store.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin reorg transaction: %w", err)
	}
	defer txn.Rollback()

	if err := store.PutReorgCheckpointTxn(txn, forkNumber); err != nil {
		return nil, fmt.Errorf("write reorg checkpoint: %w", err)
	}

	next, detachCount, err := detachToNumberTxn(store, txn, snapshot, forkNumber)
	if err != nil {
		return nil, err
	}

	for _, ablk := range attachChain {
		ext, err := store.GetBlockExt(ablk.Hash())
		if err != nil {
			return nil, fmt.Errorf("load ext for attaching block %s: %w", ablk.Hash(), err)
		}
		if err := store.AttachBlockTxn(txn, ablk); err != nil {
			return nil, fmt.Errorf("attach block %s: %w", ablk.Hash(), err)
		}
		next = next.withAttached(ablk, ext.TotalDifficulty)
	}

	if err := store.DeleteReorgCheckpointTxn(txn); err != nil {
		return nil, fmt.Errorf("delete reorg checkpoint: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("commit reorg: %w", err)
	}

	metrics.ReorgsTotal.Inc()
	metrics.ReorgDepth.Observe(float64(detachCount))
	metrics.BestTipNumber.Set(float64(next.TipNumber))
	return next, nil
}

// collectToFork walks blk's ancestry back by parent hash until it
// reaches a block that is already on the canonical chain (number→hash
// index agrees), returning the branch in ascending (fork+1 ... blk)
// order. blk itself must already be persisted by InsertBlock.
func collectToFork(store *chainstore.Store, blk *chaintypes.Block) ([]*chaintypes.Block, error) {
	var branch []*chaintypes.Block
	cur := blk

	for {
		branch = append(branch, cur)
		if len(branch) > maxReorgDepth {
			return nil, ErrReorgTooDeep
		}

		if cur.Header.Number == 0 {
			break
		}
		canonicalHash, err := store.GetBlockHash(cur.Header.Number - 1)
		if err == nil && canonicalHash == cur.Header.ParentHash {
			break
		}

		parent, err := store.GetBlock(cur.Header.ParentHash)
		if err != nil {
			return nil, fmt.Errorf("load ancestor %s: %w", cur.Header.ParentHash, err)
		}
		cur = parent
	}

	for i, j := 0, len(branch)-1; i < j; i, j = i+1, j-1 {
		branch[i], branch[j] = branch[j], branch[i]
	}
	return branch, nil
}

// detachToNumber walks snapshot's tip back via store.DetachBlock until it
// reaches targetNumber, returning the resulting Snapshot and the number of
// blocks detached, each detach committing on its own. Used by the
// pipeline's Truncate command (detaching down to an arbitrary ancestor)
// and by RecoverFromCheckpoint; reorganize uses the transactional twin
// detachToNumberTxn instead.
func detachToNumber(store *chainstore.Store, snapshot *Snapshot, targetNumber uint64) (*Snapshot, int, error) {
	next := snapshot
	detachCount := 0
	for next.TipNumber > targetNumber {
		tipBlock, err := store.GetBlock(next.TipHash)
		if err != nil {
			return nil, 0, fmt.Errorf("load detaching block %s: %w", next.TipHash, err)
		}
		parentHeader, err := store.GetBlockHeader(tipBlock.Header.ParentHash)
		if err != nil {
			return nil, 0, fmt.Errorf("load parent header of %s: %w", next.TipHash, err)
		}
		parentExt, err := store.GetBlockExt(tipBlock.Header.ParentHash)
		if err != nil {
			return nil, 0, fmt.Errorf("load parent ext of %s: %w", next.TipHash, err)
		}
		if err := store.DetachBlock(tipBlock); err != nil {
			return nil, 0, fmt.Errorf("detach block %s: %w", next.TipHash, err)
		}
		next = next.withDetached(tipBlock, parentHeader, parentExt)
		detachCount++
		if detachCount > maxReorgDepth {
			return nil, 0, ErrReorgTooDeep
		}
	}
	return next, detachCount, nil
}

// detachToNumberTxn is detachToNumber's transactional twin: every
// DetachBlock write lands in txn instead of committing on its own, so
// reorganize can fold the whole detach run into its single reorg
// transaction.
func detachToNumberTxn(store *chainstore.Store, txn chainstore.Txn, snapshot *Snapshot, targetNumber uint64) (*Snapshot, int, error) {
	next := snapshot
	detachCount := 0
	for next.TipNumber > targetNumber {
		tipBlock, err := store.GetBlock(next.TipHash)
		if err != nil {
			return nil, 0, fmt.Errorf("load detaching block %s: %w", next.TipHash, err)
		}
		parentHeader, err := store.GetBlockHeader(tipBlock.Header.ParentHash)
		if err != nil {
			return nil, 0, fmt.Errorf("load parent header of %s: %w", next.TipHash, err)
		}
		parentExt, err := store.GetBlockExt(tipBlock.Header.ParentHash)
		if err != nil {
			return nil, 0, fmt.Errorf("load parent ext of %s: %w", next.TipHash, err)
		}
		if err := store.DetachBlockTxn(txn, tipBlock); err != nil {
			return nil, 0, fmt.Errorf("detach block %s: %w", next.TipHash, err)
		}
		next = next.withDetached(tipBlock, parentHeader, parentExt)
		detachCount++
		if detachCount > maxReorgDepth {
			return nil, 0, ErrReorgTooDeep
		}
	}
	return next, detachCount, nil
}

// nowMillis is the pipeline's single wall-clock read for BlockExt's
// ReceivedAt stamp.
func nowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}
