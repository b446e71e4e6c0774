package chainstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/shannonlabs/ckbcore/internal/log"
)

// BadgerDB implements DB on top of Badger, the persistent backend the
// node runs with in production.
type BadgerDB struct {
	db  *badger.DB
	log zerolog.Logger
}

// NewBadger opens (creating if absent) a Badger database at path.
func NewBadger(path string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logger is replaced by ours.

	db, err := badger.Open(opts)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("database at %s is locked by another process (is another ckbcored instance running?): %w", path, err)
		}
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}
	return &BadgerDB{db: db, log: log.WithComponent("chainstore")}, nil
}

func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: badger get: %v", ErrIO, err)
	}
	return val, nil
}

func (b *BadgerDB) Put(key, value []byte) error {
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}); err != nil {
		return fmt.Errorf("%w: badger put: %v", ErrIO, err)
	}
	return nil
}

func (b *BadgerDB) Delete(key []byte) error {
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}); err != nil {
		return fmt.Errorf("%w: badger delete: %v", ErrIO, err)
	}
	return nil
}

func (b *BadgerDB) Has(key []byte) (bool, error) {
	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: badger has: %v", ErrIO, err)
	}
	return exists, nil
}

func (b *BadgerDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Begin opens a Badger read-write transaction, one write-batch wide.
func (b *BadgerDB) Begin() (Txn, error) {
	return &badgerTxn{txn: b.db.NewTransaction(true)}, nil
}

func (b *BadgerDB) Close() error {
	b.log.Debug().Msg("closing badger store")
	return b.db.Close()
}

// badgerTxn wraps *badger.Txn to satisfy Txn. Badger already gives us
// atomic, isolated transactions natively, so Commit/Rollback forward
// directly to it instead of re-implementing batching.
type badgerTxn struct {
	txn *badger.Txn
}

func (t *badgerTxn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return item.ValueCopy(nil)
}

func (t *badgerTxn) Put(key, value []byte) error {
	if err := t.txn.Set(key, value); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (t *badgerTxn) Delete(key []byte) error {
	if err := t.txn.Delete(key); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (t *badgerTxn) Commit() error {
	if err := t.txn.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrIO, err)
	}
	return nil
}

func (t *badgerTxn) Rollback() error {
	t.txn.Discard()
	return nil
}
