package chain

import (
	"fmt"

	"github.com/shannonlabs/ckbcore/internal/chainstore"
)

// RecoverFromCheckpoint detects a reorg checkpoint left behind by a crash
// mid-reorg and repairs the store by detaching back down to the
// checkpoint's recorded fork point — the same walk reorganize itself
// would have done, since any attach beyond the fork is by construction
// either fully committed or entirely absent (reorganize commits its
// detach/attach/checkpoint-clear as one transaction), so detaching back
// to the fork always lands on a clean, consistent tip. Call once at
// startup, before the pipeline starts accepting new blocks (spec.md 9's
// crash-recovery note).
func RecoverFromCheckpoint(store *chainstore.Store, metrics *Metrics, snapshot *Snapshot) (*Snapshot, int, error) {
	forkNumber, ok := store.GetReorgCheckpoint()
	if !ok {
		return snapshot, 0, nil
	}

	next, detachCount, err := detachToNumber(store, snapshot, forkNumber)
	if err != nil {
		return nil, 0, fmt.Errorf("recovering from reorg checkpoint at fork %d: %w", forkNumber, err)
	}
	if err := store.DeleteReorgCheckpoint(); err != nil {
		return nil, 0, fmt.Errorf("clearing reorg checkpoint: %w", err)
	}
	if metrics != nil {
		metrics.BestTipNumber.Set(float64(next.TipNumber))
	}
	return next, detachCount, nil
}
