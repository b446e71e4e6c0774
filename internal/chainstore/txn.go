package chainstore

// Txn is a scoped, atomic write-batch: every Put/Delete made through it
// is invisible to other readers until Commit succeeds, at which point
// they all become visible together. Calling Rollback, or abandoning a
// Txn without ever calling Commit, discards every write it staged.
//
// This is the contract spec.md 4.2 names as `begin_transaction() → Txn`;
// it also supersedes the teacher's `internal/storage/prefix.go`, which
// referenced a `Batcher`/`Batch` pair that was never defined anywhere in
// that package.
type Txn interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Commit makes every staged write visible atomically. The Txn must
	// not be used afterward.
	Commit() error
	// Rollback discards every staged write. Safe to call after Commit
	// (a no-op) or multiple times.
	Rollback() error
}
