package chainstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
)

// ErrBlockNotFound is returned by the typed block helpers when a hash
// has no stored header/body.
var ErrBlockNotFound = errors.New("chainstore: block not found")

// ErrEpochNotFound is returned when an epoch number has no stored
// EpochExt.
var ErrEpochNotFound = errors.New("chainstore: epoch not found")

// Store wraps a DB with the typed helpers spec.md 4.2 names:
// insert_block, insert_block_ext, attach_block, detach_block, and the
// read-side accessors. It owns the column layout so callers never
// construct keys themselves.
type Store struct {
	db DB
}

// New wraps db in a Store.
func New(db DB) *Store {
	return &Store{db: db}
}

// InsertBlock persists a block's header, body, uncles and proposals,
// keyed by hash, without touching the number→hash index or the tip
// pointer. This is how a block enters the store as "unverified" (spec
// 3's lifecycle: inserted unverified, then attached or left detached).
func (s *Store) InsertBlock(blk *chaintypes.Block) error {
	hash := blk.Hash()

	headerBytes, err := json.Marshal(&blk.Header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	bodyBytes, err := json.Marshal(blk.Transactions)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	uncleBytes, err := json.Marshal(blk.Uncles)
	if err != nil {
		return fmt.Errorf("marshal uncles: %w", err)
	}
	proposalBytes, err := json.Marshal(blk.Proposals)
	if err != nil {
		return fmt.Errorf("marshal proposals: %w", err)
	}

	txn, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer txn.Rollback()

	if err := txn.Put(colKey(colBlockHeader, hash[:]), headerBytes); err != nil {
		return err
	}
	if err := txn.Put(colKey(colBlockBody, hash[:]), bodyBytes); err != nil {
		return err
	}
	if err := txn.Put(colKey(colBlockUncle, hash[:]), uncleBytes); err != nil {
		return err
	}
	if err := txn.Put(colKey(colBlockProposal, hash[:]), proposalBytes); err != nil {
		return err
	}
	return txn.Commit()
}

// InsertBlockExt persists the mutable metadata associated with a block.
func (s *Store) InsertBlockExt(hash chaintypes.Hash, ext *chaintypes.BlockExt) error {
	data, err := json.Marshal(ext)
	if err != nil {
		return fmt.Errorf("marshal block ext: %w", err)
	}
	return s.db.Put(colKey(colBlockExt, hash[:]), data)
}

// Begin opens a new Txn against the underlying DB, letting a caller batch
// several Store writes — a whole reorg's worth of detaches and attaches,
// say — into one atomic commit instead of one commit per block.
func (s *Store) Begin() (Txn, error) {
	return s.db.Begin()
}

// AttachBlock links a block into the canonical chain: writes the
// number→hash index entry and advances the tip pointer. Does not touch
// the block's own bytes, which InsertBlock already wrote.
func (s *Store) AttachBlock(blk *chaintypes.Block) error {
	txn, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer txn.Rollback()

	if err := s.AttachBlockTxn(txn, blk); err != nil {
		return err
	}
	return txn.Commit()
}

// AttachBlockTxn performs the same writes as AttachBlock but against an
// already-open Txn, so a caller stringing together several attach/detach
// steps (a reorg) can commit them all at once.
func (s *Store) AttachBlockTxn(txn Txn, blk *chaintypes.Block) error {
	hash := blk.Hash()
	if err := txn.Put(colKey(colIndex, numberKey(blk.Header.Number)), hash[:]); err != nil {
		return err
	}
	return txn.Put(colKey(colMeta, metaKeyTip), hash[:])
}

// DetachBlock removes a block's links into the canonical chain — its
// number→hash index entry is dropped and, if it is still the tip, the
// tip pointer moves back to its parent — but preserves the block bytes
// themselves, so the
// detached block can still be read and, if a reorg prefers it again,
// re-attached without re-fetching it.
func (s *Store) DetachBlock(blk *chaintypes.Block) error {
	txn, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer txn.Rollback()

	if err := s.DetachBlockTxn(txn, blk); err != nil {
		return err
	}
	return txn.Commit()
}

// DetachBlockTxn performs the same writes as DetachBlock but against an
// already-open Txn.
func (s *Store) DetachBlockTxn(txn Txn, blk *chaintypes.Block) error {
	hash := blk.Hash()
	indexKey := colKey(colIndex, numberKey(blk.Header.Number))
	if indexed, err := txn.Get(indexKey); err == nil && bytesToHash(indexed) == hash {
		if err := txn.Delete(indexKey); err != nil {
			return err
		}
	}

	tip, err := txn.Get(colKey(colMeta, metaKeyTip))
	if err == nil && chaintypes.Hash(hash) == bytesToHash(tip) {
		if err := txn.Put(colKey(colMeta, metaKeyTip), blk.Header.ParentHash[:]); err != nil {
			return err
		}
	}
	return nil
}

// GetBlock reconstructs a full block (header, body, uncles, proposals)
// from its hash.
func (s *Store) GetBlock(hash chaintypes.Hash) (*chaintypes.Block, error) {
	header, err := s.GetBlockHeader(hash)
	if err != nil {
		return nil, err
	}

	bodyBytes, err := s.db.Get(colKey(colBlockBody, hash[:]))
	if err != nil {
		return nil, translateNotFound(err, ErrBlockNotFound)
	}
	var txs []chaintypes.Transaction
	if err := json.Unmarshal(bodyBytes, &txs); err != nil {
		return nil, fmt.Errorf("unmarshal body: %w", err)
	}

	uncleBytes, err := s.db.Get(colKey(colBlockUncle, hash[:]))
	if err != nil {
		return nil, translateNotFound(err, ErrBlockNotFound)
	}
	var uncles []chaintypes.UncleBlock
	if err := json.Unmarshal(uncleBytes, &uncles); err != nil {
		return nil, fmt.Errorf("unmarshal uncles: %w", err)
	}

	proposalBytes, err := s.db.Get(colKey(colBlockProposal, hash[:]))
	if err != nil {
		return nil, translateNotFound(err, ErrBlockNotFound)
	}
	var proposals []chaintypes.ProposalShortID
	if err := json.Unmarshal(proposalBytes, &proposals); err != nil {
		return nil, fmt.Errorf("unmarshal proposals: %w", err)
	}

	return &chaintypes.Block{
		Header:       *header,
		Transactions: txs,
		Uncles:       uncles,
		Proposals:    proposals,
	}, nil
}

// GetBlockHeader fetches just the header for hash.
func (s *Store) GetBlockHeader(hash chaintypes.Hash) (*chaintypes.Header, error) {
	data, err := s.db.Get(colKey(colBlockHeader, hash[:]))
	if err != nil {
		return nil, translateNotFound(err, ErrBlockNotFound)
	}
	var h chaintypes.Header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("unmarshal header: %w", err)
	}
	return &h, nil
}

// GetBlockExt fetches the mutable metadata for hash.
func (s *Store) GetBlockExt(hash chaintypes.Hash) (*chaintypes.BlockExt, error) {
	data, err := s.db.Get(colKey(colBlockExt, hash[:]))
	if err != nil {
		return nil, translateNotFound(err, ErrBlockNotFound)
	}
	var ext chaintypes.BlockExt
	if err := json.Unmarshal(data, &ext); err != nil {
		return nil, fmt.Errorf("unmarshal block ext: %w", err)
	}
	return &ext, nil
}

// GetBlockHash returns the canonical-chain hash at block number n.
func (s *Store) GetBlockHash(n uint64) (chaintypes.Hash, error) {
	data, err := s.db.Get(colKey(colIndex, numberKey(n)))
	if err != nil {
		return chaintypes.Hash{}, translateNotFound(err, ErrBlockNotFound)
	}
	return bytesToHash(data), nil
}

// GetTipHeader returns the header of the current canonical tip.
func (s *Store) GetTipHeader() (*chaintypes.Header, error) {
	data, err := s.db.Get(colKey(colMeta, metaKeyTip))
	if err != nil {
		return nil, translateNotFound(err, ErrBlockNotFound)
	}
	return s.GetBlockHeader(bytesToHash(data))
}

// InsertEpochExt persists an epoch's state, keyed by epoch number.
func (s *Store) InsertEpochExt(ext *chaintypes.EpochExt) error {
	data, err := json.Marshal(ext)
	if err != nil {
		return fmt.Errorf("marshal epoch ext: %w", err)
	}
	return s.db.Put(colKey(colEpoch, numberKey(ext.Number)), data)
}

// GetEpochExt fetches the stored EpochExt for the given epoch number.
func (s *Store) GetEpochExt(epochNumber uint64) (*chaintypes.EpochExt, error) {
	data, err := s.db.Get(colKey(colEpoch, numberKey(epochNumber)))
	if err != nil {
		return nil, translateNotFound(err, ErrEpochNotFound)
	}
	var ext chaintypes.EpochExt
	if err := json.Unmarshal(data, &ext); err != nil {
		return nil, fmt.Errorf("unmarshal epoch ext: %w", err)
	}
	return &ext, nil
}

// PutBlockEpochIndex records which epoch number a block belongs to.
func (s *Store) PutBlockEpochIndex(hash chaintypes.Hash, epochNumber uint64) error {
	return s.db.Put(colKey(colBlockEpochIndex, hash[:]), numberKey(epochNumber))
}

// GetBlockEpochIndex returns the epoch number the given block belongs
// to.
func (s *Store) GetBlockEpochIndex(hash chaintypes.Hash) (uint64, error) {
	data, err := s.db.Get(colKey(colBlockEpochIndex, hash[:]))
	if err != nil {
		return 0, translateNotFound(err, ErrBlockNotFound)
	}
	return binary.BigEndian.Uint64(data), nil
}

// GetCurrentEpochExt resolves the tip header's epoch number and loads
// its EpochExt.
func (s *Store) GetCurrentEpochExt() (*chaintypes.EpochExt, error) {
	tip, err := s.GetTipHeader()
	if err != nil {
		return nil, err
	}
	return s.GetEpochExt(tip.Epoch.Number())
}

// PutReorgCheckpoint records that a reorg down to forkNumber is in
// progress, so a crash mid-reorg can be detected and recovered on
// restart (spec.md 9's crash-recovery note).
func (s *Store) PutReorgCheckpoint(forkNumber uint64) error {
	return s.db.Put(colKey(colMeta, metaKeyReorgCheckpoint), numberKey(forkNumber))
}

// PutReorgCheckpointTxn performs the same write as PutReorgCheckpoint but
// against an already-open Txn.
func (s *Store) PutReorgCheckpointTxn(txn Txn, forkNumber uint64) error {
	return txn.Put(colKey(colMeta, metaKeyReorgCheckpoint), numberKey(forkNumber))
}

// GetReorgCheckpoint returns the fork number and true if a checkpoint
// from an interrupted reorg is present.
func (s *Store) GetReorgCheckpoint() (uint64, bool) {
	data, err := s.db.Get(colKey(colMeta, metaKeyReorgCheckpoint))
	if err != nil || len(data) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(data), true
}

// DeleteReorgCheckpoint clears the in-progress marker once a reorg
// completes (or is fully rolled back).
func (s *Store) DeleteReorgCheckpoint() error {
	return s.db.Delete(colKey(colMeta, metaKeyReorgCheckpoint))
}

// DeleteReorgCheckpointTxn performs the same write as DeleteReorgCheckpoint
// but against an already-open Txn.
func (s *Store) DeleteReorgCheckpointTxn(txn Txn) error {
	return txn.Delete(colKey(colMeta, metaKeyReorgCheckpoint))
}

func bytesToHash(b []byte) chaintypes.Hash {
	var h chaintypes.Hash
	copy(h[:], b)
	return h
}

func translateNotFound(err, wrapped error) error {
	if errors.Is(err, ErrKeyNotFound) {
		return wrapped
	}
	return err
}
