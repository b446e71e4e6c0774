package chain

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
)

// orphanEntry pairs a parked block with its insertion time and the
// original submitter's completion callback (if any), so
// RemoveBlocksByParent can restore insertion order despite the
// underlying cache's own internal ordering, and the Orphan Broker can
// still report the eventual outcome once the missing parent arrives.
type orphanEntry struct {
	block      *chaintypes.Block
	insertedAt time.Time
	done       func(isNewBest bool, err error)
	sw         VerifySwitch
}

// ResolvedOrphan pairs a block released from the pool with the
// completion callback its original submitter registered and the
// verification switch it was originally submitted with.
type ResolvedOrphan struct {
	Block *chaintypes.Block
	Done  func(isNewBest bool, err error)
	Sw    VerifySwitch
}

// OrphanPool is the bounded `parent_hash -> {block}` plus `hash ->
// block` pair spec.md 4.7 describes: blocks whose parent isn't yet
// known, held until the parent arrives or the entry expires. Backed by
// an LRU cache used in FIFO mode (entries are only ever Peek'd, never
// Get'd, so recency never changes and the oldest entry is always the
// one evicted once the pool is full).
type OrphanPool struct {
	mu       sync.Mutex
	byHash   *lru.Cache[chaintypes.Hash, *orphanEntry]
	byParent map[chaintypes.Hash]map[chaintypes.Hash]struct{}
}

// NewOrphanPool builds a pool capped at capacity entries — spec.md 4.7's
// ORPHAN_BLOCK_SIZE, sized to the download window.
func NewOrphanPool(capacity int) (*OrphanPool, error) {
	p := &OrphanPool{byParent: make(map[chaintypes.Hash]map[chaintypes.Hash]struct{})}
	cache, err := lru.NewWithEvict[chaintypes.Hash, *orphanEntry](capacity, p.onEvict)
	if err != nil {
		return nil, err
	}
	p.byHash = cache
	return p, nil
}

// onEvict drops the evicted hash from the parent index. Invoked
// synchronously from within Add/Remove, so it must NOT take p.mu
// itself — every caller already holds it.
func (p *OrphanPool) onEvict(hash chaintypes.Hash, entry *orphanEntry) {
	parent := entry.block.Header.ParentHash
	if set, ok := p.byParent[parent]; ok {
		delete(set, hash)
		if len(set) == 0 {
			delete(p.byParent, parent)
		}
	}
}

// Insert parks blk under its parent hash, along with the completion
// callback (possibly nil) and verification switch its submitter
// registered. A block already present is left untouched (first-seen
// wins).
func (p *OrphanPool) Insert(blk *chaintypes.Block, done func(isNewBest bool, err error), sw VerifySwitch) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := blk.Hash()
	if _, ok := p.byHash.Peek(hash); ok {
		return
	}
	p.byHash.Add(hash, &orphanEntry{block: blk, insertedAt: time.Now(), done: done, sw: sw})

	parent := blk.Header.ParentHash
	set, ok := p.byParent[parent]
	if !ok {
		set = make(map[chaintypes.Hash]struct{})
		p.byParent[parent] = set
	}
	set[hash] = struct{}{}
}

// Get returns the parked block for hash, if any, without affecting its
// eviction order.
func (p *OrphanPool) Get(hash chaintypes.Hash) (*chaintypes.Block, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.byHash.Peek(hash)
	if !ok {
		return nil, false
	}
	return entry.block, true
}

// RemoveBlocksByParent removes and returns every block parked under
// parent, oldest-inserted first along with each one's original
// completion callback — the Orphan Broker's hand-off order when a
// previously-missing parent finally arrives.
func (p *OrphanPool) RemoveBlocksByParent(parent chaintypes.Hash) []ResolvedOrphan {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.byParent[parent]
	if !ok || len(set) == 0 {
		return nil
	}

	entries := make([]*orphanEntry, 0, len(set))
	hashes := make([]chaintypes.Hash, 0, len(set))
	for h := range set {
		if entry, ok := p.byHash.Peek(h); ok {
			entries = append(entries, entry)
			hashes = append(hashes, h)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].insertedAt.Before(entries[j].insertedAt) })

	for _, h := range hashes {
		p.byHash.Remove(h)
	}
	delete(p.byParent, parent)

	resolved := make([]ResolvedOrphan, len(entries))
	for i, e := range entries {
		resolved[i] = ResolvedOrphan{Block: e.block, Done: e.done, Sw: e.sw}
	}
	return resolved
}

// Len returns the number of parked blocks.
func (p *OrphanPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byHash.Len()
}

// CleanExpired evicts every block whose header timestamp is older than
// now minus expiration, returning each evicted block's original
// completion callback alongside it so the caller can resolve the
// submitter with Ok(false) rather than leaving it hanging forever.
func (p *OrphanPool) CleanExpired(now time.Time, expiration time.Duration) []ResolvedOrphan {
	p.mu.Lock()
	defer p.mu.Unlock()

	var stale []chaintypes.Hash
	var resolved []ResolvedOrphan
	for _, h := range p.byHash.Keys() {
		entry, ok := p.byHash.Peek(h)
		if !ok {
			continue
		}
		age := now.Sub(time.UnixMilli(int64(entry.block.Header.Timestamp)))
		if age > expiration {
			stale = append(stale, h)
			resolved = append(resolved, ResolvedOrphan{Block: entry.block, Done: entry.done, Sw: entry.sw})
		}
	}
	for _, h := range stale {
		p.byHash.Remove(h)
	}
	return resolved
}
