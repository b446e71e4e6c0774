package chainstore

import "encoding/binary"

// column is a one-byte prefix scoping keys within the flat keyspace the
// DB interface exposes, generalized from the teacher's number/hash key
// idiom in internal/chain/store.go to the full column set spec.md 4.2
// names.
type column byte

const (
	colIndex            column = iota // number -> hash index
	colBlockHeader                    // hash -> header bytes
	colBlockBody                      // hash -> transactions bytes
	colBlockExt                       // hash -> BlockExt bytes
	colBlockUncle                     // hash -> uncles bytes
	colBlockProposal                  // hash -> proposal short-ids bytes
	colBlockEpochIndex                // hash -> owning epoch number
	colEpoch                          // epoch number -> EpochExt bytes
	colMeta                           // fixed keys: tip, reorg checkpoint
)

func colKey(col column, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(col)
	copy(out[1:], key)
	return out
}

func numberKey(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

var (
	metaKeyTip            = []byte("tip")
	metaKeyReorgCheckpoint = []byte("reorg_checkpoint")
)
