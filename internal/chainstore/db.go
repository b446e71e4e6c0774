// Package chainstore implements the Store Contract: an abstract ordered
// key-value store with atomic write-batches, columns, and the typed
// helpers the Chain Service pipeline uses to persist blocks, block-ext
// metadata, epoch-ext, the number→hash index, and the tip pointer.
package chainstore

import "errors"

// ErrKeyNotFound is returned by Get when the key does not exist in the
// given column. Typed helpers translate this into the more specific
// sentinel their caller expects (e.g. ErrBlockNotFound).
var ErrKeyNotFound = errors.New("chainstore: key not found")

// ErrIO wraps any underlying backend failure (disk I/O, corruption) a
// caller cannot recover from by retrying with different input. Spec:
// "Fails with StorageError on I/O."
var ErrIO = errors.New("chainstore: storage I/O error")

// Direction names an iteration order. No DB method takes it: ForEach
// always iterates Forward.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// DB is the low-level ordered key-value capability every backend
// (Badger, in-memory) implements. Column scoping is expressed by
// prefixing keys with the column's byte (see columns.go) rather than by
// a native column-family mechanism, matching the teacher's single
// flat-keyspace backend.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in Forward
	// order. Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	// Begin opens a new transaction. All writes made through the
	// returned Txn become visible atomically on Commit; they are
	// discarded if Rollback is called or the Txn is abandoned.
	Begin() (Txn, error)
	Close() error
}
