package chaintypes

import "encoding/binary"

// NextDAOField recomputes the 32-byte DAO accumulator a block's header
// must carry: a digest chaining the parent's accumulator together with
// the epoch's primary and secondary issuance for this block. Per-cell
// deposit/withdraw bookkeeping is the NervosDAO script's concern (spec
// 4.6's script hook, external to the chain core); this function covers
// the issuance side the chain core itself is authoritative for.
func NextDAOField(parentDAO [DAOFieldSize]byte, blockPrimaryReward, blockSecondaryReward uint64) [DAOFieldSize]byte {
	buf := make([]byte, 0, DAOFieldSize+16)
	buf = append(buf, parentDAO[:]...)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], blockPrimaryReward)
	buf = append(buf, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], blockSecondaryReward)
	buf = append(buf, u64[:]...)
	return [DAOFieldSize]byte(hashBytes(buf))
}
