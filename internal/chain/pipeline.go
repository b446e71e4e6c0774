package chain

import (
	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
)

// processRequest is what crosses the process_block channel: a block to
// validate, a one-shot acceptance responder, and the submitter's overall
// completion callback (fired once, whenever verification ultimately
// settles — possibly much later, after an orphan parent arrives).
type processRequest struct {
	block *chaintypes.Block
	ack   chan error
	done  func(isNewBest bool, err error)
	sw    VerifySwitch
}

// preloadItem is what crosses the preload channel: only the hash plus the
// completion callback, so a large block isn't held in memory across the
// hand-off — the Preload worker re-reads it from storage.
type preloadItem struct {
	hash chaintypes.Hash
	done func(isNewBest bool, err error)
	sw   VerifySwitch
}

// unverifiedItem is what crosses the unverified_block channel: the full
// block, re-read from storage by the Preload worker, paired with its
// completion callback.
type unverifiedItem struct {
	block *chaintypes.Block
	done  func(isNewBest bool, err error)
	sw    VerifySwitch
}

// truncateRequest asks the Verifier worker (the sole owner of snapshot
// mutation) to roll the tip back to targetHash, atomically with respect
// to any in-flight attach/reorg.
type truncateRequest struct {
	targetHash chaintypes.Hash
	result     chan error
}

func invoke(done func(isNewBest bool, err error), isNewBest bool, err error) {
	if done != nil {
		done(isNewBest, err)
	}
}
