package chain

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/shannonlabs/ckbcore/config"
	"github.com/shannonlabs/ckbcore/internal/chainstore"
	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
)

// Snapshot is an immutable, point-in-time view of chain state: the
// current tip, its total difficulty, and the sliding indices the
// Contextual Verifier consults (proposal window, committed set, uncle
// inclusion). A fresh Snapshot replaces the published one atomically
// after every successful attach or reorg (spec.md 4.9's publish step),
// so readers never observe a half-applied chain change.
type Snapshot struct {
	store     *chainstore.Store
	consensus *config.Consensus

	TipHash         chaintypes.Hash
	TipNumber       uint64
	TotalDifficulty chaintypes.Difficulty

	// proposedByNumber maps a block number to the proposal short-ids it
	// proposed, retained for ProposalWindow.Farthest blocks past tip —
	// enough for the Contextual Verifier's window check.
	proposedByNumber map[uint64][]chaintypes.ProposalShortID
	// committed holds every short-id committed by a block attached to
	// the current chain, so a double-commit is rejected. It is not
	// pruned: an entry leaves only when its block is detached.
	committed map[chaintypes.ProposalShortID]struct{}
	// includedUncles holds the hash of every uncle embedded by a block
	// attached to the current chain, so the same uncle can't be claimed
	// twice. It is not pruned: an entry leaves only when its embedding
	// block is detached.
	includedUncles map[chaintypes.Hash]struct{}
}

// NewGenesisSnapshot builds the initial Snapshot from whatever tip the
// store currently holds (genesis, on a fresh node).
func NewGenesisSnapshot(store *chainstore.Store, consensus *config.Consensus) (*Snapshot, error) {
	tip, err := store.GetTipHeader()
	if err != nil {
		return nil, fmt.Errorf("load tip: %w", err)
	}
	ext, err := store.GetBlockExt(tip.Hash())
	if err != nil {
		return nil, fmt.Errorf("load tip ext: %w", err)
	}
	return &Snapshot{
		store:            store,
		consensus:        consensus,
		TipHash:          tip.Hash(),
		TipNumber:        tip.Number,
		TotalDifficulty:  ext.TotalDifficulty,
		proposedByNumber: make(map[uint64][]chaintypes.ProposalShortID),
		committed:        make(map[chaintypes.ProposalShortID]struct{}),
		includedUncles:   make(map[chaintypes.Hash]struct{}),
	}, nil
}

// withAttached returns a new Snapshot reflecting blk being attached on
// top of s, carrying forward the sliding windows with blk's own
// contributions folded in. Proposal entries older than the retention
// horizon are dropped; committed short-ids and included uncles are kept.
func (s *Snapshot) withAttached(blk *chaintypes.Block, totalDifficulty chaintypes.Difficulty) *Snapshot {
	next := s.clone()
	next.TipHash = blk.Hash()
	next.TipNumber = blk.Header.Number
	next.TotalDifficulty = totalDifficulty

	next.proposedByNumber[blk.Header.Number] = append([]chaintypes.ProposalShortID(nil), blk.Proposals...)
	for _, tx := range blk.Transactions[1:] {
		next.committed[tx.ProposalShortID()] = struct{}{}
	}
	for _, u := range blk.Uncles {
		next.includedUncles[u.Hash()] = struct{}{}
	}

	next.pruneProposalWindow()
	next.pruneUncleWindow()
	return next
}

// withDetached returns a new Snapshot reflecting blk being detached
// (the tip rolling back to its parent), reversing the contributions
// withAttached folded in.
func (s *Snapshot) withDetached(blk *chaintypes.Block, parent *chaintypes.Header, parentExt *chaintypes.BlockExt) *Snapshot {
	next := s.clone()
	next.TipHash = parent.Hash()
	next.TipNumber = parent.Number
	next.TotalDifficulty = parentExt.TotalDifficulty

	delete(next.proposedByNumber, blk.Header.Number)
	for _, tx := range blk.Transactions[1:] {
		delete(next.committed, tx.ProposalShortID())
	}
	for _, u := range blk.Uncles {
		delete(next.includedUncles, u.Hash())
	}
	return next
}

func (s *Snapshot) clone() *Snapshot {
	proposed := make(map[uint64][]chaintypes.ProposalShortID, len(s.proposedByNumber))
	for k, v := range s.proposedByNumber {
		proposed[k] = v
	}
	committed := make(map[chaintypes.ProposalShortID]struct{}, len(s.committed))
	for k := range s.committed {
		committed[k] = struct{}{}
	}
	uncles := make(map[chaintypes.Hash]struct{}, len(s.includedUncles))
	for k := range s.includedUncles {
		uncles[k] = struct{}{}
	}
	return &Snapshot{
		store:            s.store,
		consensus:        s.consensus,
		TipHash:          s.TipHash,
		TipNumber:        s.TipNumber,
		TotalDifficulty:  s.TotalDifficulty,
		proposedByNumber: proposed,
		committed:        committed,
		includedUncles:   uncles,
	}
}

func (s *Snapshot) pruneProposalWindow() {
	horizon := s.consensus.ProposalWindow.Farthest + 1
	if s.TipNumber < horizon {
		return
	}
	cutoff := s.TipNumber - horizon
	for n := range s.proposedByNumber {
		if n < cutoff {
			delete(s.proposedByNumber, n)
		}
	}
}

func (s *Snapshot) pruneUncleWindow() {
	// includedUncles is not number-indexed (uncle hashes carry no cheap
	// reverse lookup to their embedding height), so nothing is pruned
	// here: withAttached adds the uncles of every attached block and only
	// withDetached removes them, so the map grows with chain history.
}

// HeaderByNumber implements verify.AncestorSource.
func (s *Snapshot) HeaderByNumber(number uint64) (*chaintypes.Header, error) {
	hash, err := s.store.GetBlockHash(number)
	if err != nil {
		return nil, err
	}
	return s.store.GetBlockHeader(hash)
}

// HeaderByHash implements verify.AncestorSource.
func (s *Snapshot) HeaderByHash(hash chaintypes.Hash) (*chaintypes.Header, error) {
	return s.store.GetBlockHeader(hash)
}

// BlockByNumber implements verify.AncestorSource: the full canonical
// block at number, body included — used by the cellbase reward check
// to re-derive the fees a now-finalizing block earned.
func (s *Snapshot) BlockByNumber(number uint64) (*chaintypes.Block, error) {
	hash, err := s.store.GetBlockHash(number)
	if err != nil {
		return nil, err
	}
	return s.store.GetBlock(hash)
}

// TotalUnclesByNumber implements verify.AncestorSource.
func (s *Snapshot) TotalUnclesByNumber(number uint64) (uint64, error) {
	hash, err := s.store.GetBlockHash(number)
	if err != nil {
		return 0, err
	}
	ext, err := s.store.GetBlockExt(hash)
	if err != nil {
		return 0, err
	}
	return ext.TotalUnclesCount, nil
}

// EpochExtByNumber implements verify.AncestorSource.
func (s *Snapshot) EpochExtByNumber(number uint64) (*chaintypes.EpochExt, error) {
	hash, err := s.store.GetBlockHash(number)
	if err != nil {
		return nil, err
	}
	epochNumber, err := s.store.GetBlockEpochIndex(hash)
	if err != nil {
		return nil, err
	}
	return s.store.GetEpochExt(epochNumber)
}

// MedianTime implements verify.AncestorSource: the median of the
// timestamps of the blockCount blocks ending at parent, inclusive.
func (s *Snapshot) MedianTime(parent *chaintypes.Header, blockCount uint64) uint64 {
	timestamps := make([]uint64, 0, blockCount)
	h := parent
	for i := uint64(0); i < blockCount; i++ {
		timestamps = append(timestamps, h.Timestamp)
		if h.Number == 0 {
			break
		}
		prev, err := s.HeaderByHash(h.ParentHash)
		if err != nil {
			break
		}
		h = prev
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	return timestamps[len(timestamps)/2]
}

// IsUncleIncluded implements verify.AncestorSource.
func (s *Snapshot) IsUncleIncluded(hash chaintypes.Hash) bool {
	_, ok := s.includedUncles[hash]
	return ok
}

// ProposedIn implements verify.AncestorSource.
func (s *Snapshot) ProposedIn(number uint64) []chaintypes.ProposalShortID {
	return s.proposedByNumber[number]
}

// IsCommitted implements verify.AncestorSource.
func (s *Snapshot) IsCommitted(id chaintypes.ProposalShortID) bool {
	_, ok := s.committed[id]
	return ok
}

// Now implements verify.AncestorSource: wall-clock milliseconds, the
// one place this package's otherwise-pure verification path touches
// real time (the future-timestamp bound has no other meaning).
func (s *Snapshot) Now() uint64 {
	return uint64(time.Now().UnixMilli())
}

// SnapshotCell holds the published Snapshot behind an atomic pointer,
// so pipeline workers can read the current view without a lock and the
// Chain Controller can swap it in one atomic store after each commit.
type SnapshotCell struct {
	ptr atomic.Pointer[Snapshot]
}

// NewSnapshotCell wraps an initial Snapshot.
func NewSnapshotCell(initial *Snapshot) *SnapshotCell {
	c := &SnapshotCell{}
	c.ptr.Store(initial)
	return c
}

// Load returns the currently published Snapshot.
func (c *SnapshotCell) Load() *Snapshot {
	return c.ptr.Load()
}

// Publish atomically replaces the published Snapshot.
func (c *SnapshotCell) Publish(next *Snapshot) {
	c.ptr.Store(next)
}
