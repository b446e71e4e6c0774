package chain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shannonlabs/ckbcore/config"
	"github.com/shannonlabs/ckbcore/internal/chainstore"
	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
)

// Bootstrap ensures store holds a genesis block matching consensus,
// writing one if the store is empty. It is idempotent: a store that
// already has a tip is left untouched. Called once, before the
// Controller starts, so NewGenesisSnapshot always has something to load.
func Bootstrap(store *chainstore.Store, consensus *config.Consensus) error {
	if _, err := store.GetTipHeader(); err == nil {
		return nil
	} else if !errors.Is(err, chainstore.ErrBlockNotFound) {
		return fmt.Errorf("checking for existing tip: %w", err)
	}

	cellbase := genesisCellbase()
	blk := &chaintypes.Block{
		Header:       consensus.GenesisHeader,
		Transactions: []chaintypes.Transaction{cellbase},
	}
	blk.Header.TransactionsRoot = chaintypes.TransactionsRoot(blk.TxHashes(), []chaintypes.Hash{cellbase.WitnessHash()})
	blk.Header.ProposalsHash = chaintypes.ProposalsHash(nil)
	blk.Header.ExtraHash = chaintypes.ExtraHash(chaintypes.UnclesHash(nil), nil)

	if err := store.InsertBlock(blk); err != nil {
		return fmt.Errorf("insert genesis block: %w", err)
	}
	ext := &chaintypes.BlockExt{
		TotalDifficulty:  chaintypes.NewDifficulty(mustDifficulty(consensus.GenesisHeader.CompactTarget)),
		TotalUnclesCount: 0,
		Verified:         chaintypes.VerificationValid,
	}
	if err := store.InsertBlockExt(blk.Hash(), ext); err != nil {
		return fmt.Errorf("insert genesis ext: %w", err)
	}
	if err := store.AttachBlock(blk); err != nil {
		return fmt.Errorf("attach genesis block: %w", err)
	}
	genesisEpoch := consensus.GenesisEpoch
	genesisEpoch.LastBlockHashInPreviousEpoch = blk.Hash()
	if err := store.InsertEpochExt(&genesisEpoch); err != nil {
		return fmt.Errorf("insert genesis epoch: %w", err)
	}
	if err := store.PutBlockEpochIndex(blk.Hash(), genesisEpoch.Number); err != nil {
		return fmt.Errorf("index genesis epoch: %w", err)
	}
	return nil
}

// genesisCellbase is the single dedicated transaction genesis carries: a
// cellbase with no real issuance, referencing the sentinel out-point for
// block 0 and a single zero-capacity output.
func genesisCellbase() chaintypes.Transaction {
	return chaintypes.Transaction{
		Version: 0,
		Inputs: []chaintypes.CellInput{
			{OutPoint: chaintypes.CellbaseOutPoint(0)},
		},
		Outputs:     []chaintypes.CellOutput{{Capacity: 0}},
		OutputsData: [][]byte{{}},
	}
}

func mustDifficulty(compact uint32) *big.Int {
	d, err := chaintypes.DifficultyFromCompact(compact)
	if err != nil {
		panic(fmt.Sprintf("genesis compact_target %#x does not decode: %v", compact, err))
	}
	return d
}
