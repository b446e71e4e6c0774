package chainstore

import (
	"strings"
	"sync"
)

// MemoryDB implements DB over an in-memory map, guarded by a mutex since
// (unlike the teacher's original) it must tolerate the Chain Service
// pipeline's concurrent preload/verify workers. Used by tests and by
// ephemeral/benchmark nodes.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates a new in-memory database.
func NewMemory() *MemoryDB {
	return &MemoryDB{data: make(map[string][]byte)}
}

func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryDB) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

func (m *MemoryDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemoryDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *MemoryDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	m.mu.RLock()
	type kv struct{ k, v []byte }
	p := string(prefix)
	var snapshot []kv
	for k, v := range m.data {
		if strings.HasPrefix(k, p) {
			snapshot = append(snapshot, kv{[]byte(k), v})
		}
	}
	m.mu.RUnlock()

	for _, pair := range snapshot {
		if err := fn(pair.k, pair.v); err != nil {
			return err
		}
	}
	return nil
}

// Begin returns a buffered batch: writes accumulate in memory and are
// applied to the backing map as a single critical section on Commit, so
// a reader never observes a partially-applied transaction.
func (m *MemoryDB) Begin() (Txn, error) {
	return &memoryTxn{db: m, writes: make(map[string][]byte), deletes: make(map[string]struct{})}, nil
}

func (m *MemoryDB) Close() error { return nil }

type memoryTxn struct {
	db      *MemoryDB
	writes  map[string][]byte
	deletes map[string]struct{}
	done    bool
}

// Get reads through pending writes/deletes first, falling back to the
// committed map, so a transaction sees its own uncommitted writes.
func (t *memoryTxn) Get(key []byte) ([]byte, error) {
	k := string(key)
	if _, deleted := t.deletes[k]; deleted {
		return nil, ErrKeyNotFound
	}
	if v, ok := t.writes[k]; ok {
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	}
	return t.db.Get(key)
}

func (t *memoryTxn) Put(key, value []byte) error {
	k := string(key)
	delete(t.deletes, k)
	v := make([]byte, len(value))
	copy(v, value)
	t.writes[k] = v
	return nil
}

func (t *memoryTxn) Delete(key []byte) error {
	k := string(key)
	delete(t.writes, k)
	t.deletes[k] = struct{}{}
	return nil
}

func (t *memoryTxn) Commit() error {
	if t.done {
		return nil
	}
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	for k := range t.deletes {
		delete(t.db.data, k)
	}
	for k, v := range t.writes {
		t.db.data[k] = v
	}
	t.done = true
	return nil
}

func (t *memoryTxn) Rollback() error {
	t.done = true
	t.writes = nil
	t.deletes = nil
	return nil
}
