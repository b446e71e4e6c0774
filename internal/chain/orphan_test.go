package chain

import (
	"errors"
	"testing"
	"time"

	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
)

func orphanBlock(parent chaintypes.Hash, number uint64, nonce byte) *chaintypes.Block {
	return &chaintypes.Block{
		Header: chaintypes.Header{
			ParentHash: parent,
			Number:     number,
			Nonce:      [chaintypes.NonceSize]byte{nonce},
			Timestamp:  uint64(time.Now().UnixMilli()),
		},
	}
}

func TestOrphanPool_InsertAndGet(t *testing.T) {
	pool, err := NewOrphanPool(4)
	if err != nil {
		t.Fatalf("NewOrphanPool: %v", err)
	}
	blk := orphanBlock(chaintypes.Hash{1}, 5, 1)

	pool.Insert(blk, nil, 0)

	got, ok := pool.Get(blk.Hash())
	if !ok {
		t.Fatal("Get did not find the inserted block")
	}
	if got.Hash() != blk.Hash() {
		t.Fatal("Get returned a different block than was inserted")
	}
	if pool.Len() != 1 {
		t.Fatalf("Len = %d, want 1", pool.Len())
	}
}

func TestOrphanPool_InsertFirstSeenWins(t *testing.T) {
	pool, err := NewOrphanPool(4)
	if err != nil {
		t.Fatalf("NewOrphanPool: %v", err)
	}
	blk := orphanBlock(chaintypes.Hash{1}, 5, 1)

	firstCalled, secondCalled := false, false
	pool.Insert(blk, func(bool, error) { firstCalled = true }, 0)
	pool.Insert(blk, func(bool, error) { secondCalled = true }, 0)

	resolved := pool.RemoveBlocksByParent(chaintypes.Hash{1})
	if len(resolved) != 1 {
		t.Fatalf("RemoveBlocksByParent returned %d entries, want 1 (duplicate insert should be a no-op)", len(resolved))
	}
	resolved[0].Done(true, nil)
	if !firstCalled || secondCalled {
		t.Fatal("second Insert's callback replaced the first's; first-seen should win")
	}
}

func TestOrphanPool_RemoveBlocksByParentOrdersByInsertion(t *testing.T) {
	pool, err := NewOrphanPool(8)
	if err != nil {
		t.Fatalf("NewOrphanPool: %v", err)
	}
	parent := chaintypes.Hash{9}
	a := orphanBlock(parent, 5, 1)
	b := orphanBlock(parent, 5, 2)
	c := orphanBlock(parent, 5, 3)

	pool.Insert(a, nil, 0)
	time.Sleep(time.Millisecond)
	pool.Insert(b, nil, 0)
	time.Sleep(time.Millisecond)
	pool.Insert(c, nil, 0)

	resolved := pool.RemoveBlocksByParent(parent)
	if len(resolved) != 3 {
		t.Fatalf("RemoveBlocksByParent returned %d entries, want 3", len(resolved))
	}
	if resolved[0].Block.Hash() != a.Hash() || resolved[1].Block.Hash() != b.Hash() || resolved[2].Block.Hash() != c.Hash() {
		t.Fatal("RemoveBlocksByParent did not preserve insertion order")
	}

	if pool.Len() != 0 {
		t.Fatalf("Len after removal = %d, want 0", pool.Len())
	}
	if _, ok := pool.Get(a.Hash()); ok {
		t.Fatal("removed block still reachable via Get")
	}
}

func TestOrphanPool_RemoveBlocksByParentUnknownParent(t *testing.T) {
	pool, err := NewOrphanPool(4)
	if err != nil {
		t.Fatalf("NewOrphanPool: %v", err)
	}
	if resolved := pool.RemoveBlocksByParent(chaintypes.Hash{0xff}); resolved != nil {
		t.Fatalf("RemoveBlocksByParent(unknown) = %v, want nil", resolved)
	}
}

func TestOrphanPool_EvictionDropsParentIndex(t *testing.T) {
	pool, err := NewOrphanPool(2)
	if err != nil {
		t.Fatalf("NewOrphanPool: %v", err)
	}
	a := orphanBlock(chaintypes.Hash{1}, 5, 1)
	b := orphanBlock(chaintypes.Hash{2}, 5, 2)
	c := orphanBlock(chaintypes.Hash{3}, 5, 3)

	pool.Insert(a, nil, 0)
	pool.Insert(b, nil, 0)
	pool.Insert(c, nil, 0) // capacity 2: evicts a, the oldest entry

	if _, ok := pool.Get(a.Hash()); ok {
		t.Fatal("evicted block a is still reachable via Get")
	}
	if pool.Len() != 2 {
		t.Fatalf("Len = %d, want 2 after eviction", pool.Len())
	}
	// a's parent index entry must have been cleaned up by onEvict, not
	// just its byHash entry.
	if resolved := pool.RemoveBlocksByParent(chaintypes.Hash{1}); resolved != nil {
		t.Fatalf("RemoveBlocksByParent(evicted parent) = %v, want nil", resolved)
	}
}

func TestOrphanPool_CleanExpired(t *testing.T) {
	pool, err := NewOrphanPool(4)
	if err != nil {
		t.Fatalf("NewOrphanPool: %v", err)
	}
	stale := &chaintypes.Block{Header: chaintypes.Header{
		ParentHash: chaintypes.Hash{1},
		Number:     5,
		Nonce:      [chaintypes.NonceSize]byte{1},
		Timestamp:  0, // epoch start: always older than any expiration window
	}}
	fresh := orphanBlock(chaintypes.Hash{2}, 5, 2)

	pool.Insert(stale, nil, 0)
	pool.Insert(fresh, nil, 0)

	removed := pool.CleanExpired(time.Now(), time.Minute)
	if len(removed) != 1 || removed[0].Block.Hash() != stale.Hash() {
		t.Fatalf("CleanExpired removed %v, want [%s]", removed, stale.Hash())
	}
	if _, ok := pool.Get(stale.Hash()); ok {
		t.Fatal("stale block survived CleanExpired")
	}
	if _, ok := pool.Get(fresh.Hash()); !ok {
		t.Fatal("fresh block was wrongly removed by CleanExpired")
	}
}

func TestOrphanPool_CleanExpired_InvokesDone(t *testing.T) {
	pool, err := NewOrphanPool(4)
	if err != nil {
		t.Fatalf("NewOrphanPool: %v", err)
	}
	stale := &chaintypes.Block{Header: chaintypes.Header{
		ParentHash: chaintypes.Hash{1},
		Number:     5,
		Nonce:      [chaintypes.NonceSize]byte{1},
		Timestamp:  0,
	}}

	var gotOk bool
	var gotErr error
	called := false
	pool.Insert(stale, func(isNewBest bool, err error) {
		called = true
		gotOk = isNewBest
		gotErr = err
	}, 0)

	removed := pool.CleanExpired(time.Now(), time.Minute)
	if len(removed) != 1 {
		t.Fatalf("CleanExpired removed %d entries, want 1", len(removed))
	}
	removed[0].Done(false, ErrOrphanExpired)
	if !called {
		t.Fatal("done callback from CleanExpired was never invoked")
	}
	if gotOk {
		t.Fatal("done callback invoked with isNewBest=true, want false")
	}
	if !errors.Is(gotErr, ErrOrphanExpired) {
		t.Fatalf("done callback err = %v, want ErrOrphanExpired", gotErr)
	}
}
