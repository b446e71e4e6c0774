package chain

import (
	"testing"

	"github.com/shannonlabs/ckbcore/config"
	"github.com/shannonlabs/ckbcore/internal/chainstore"
	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
)

func TestNewGenesisSnapshot_LoadsStoreTip(t *testing.T) {
	store := chainstore.New(chainstore.NewMemory())
	consensus := config.ConsensusFor(config.Mainnet)
	if err := Bootstrap(store, consensus); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	snap, err := NewGenesisSnapshot(store, consensus)
	if err != nil {
		t.Fatalf("NewGenesisSnapshot: %v", err)
	}
	if snap.TipNumber != 0 {
		t.Fatalf("TipNumber = %d, want 0", snap.TipNumber)
	}
	genesis, _ := store.GetTipHeader()
	if snap.TipHash != genesis.Hash() {
		t.Fatal("snapshot tip hash does not match the store's genesis")
	}
}

func TestSnapshot_WithAttachedThenWithDetachedRoundTrips(t *testing.T) {
	store := chainstore.New(chainstore.NewMemory())
	consensus := config.ConsensusFor(config.Mainnet)
	if err := Bootstrap(store, consensus); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	snap, err := NewGenesisSnapshot(store, consensus)
	if err != nil {
		t.Fatalf("NewGenesisSnapshot: %v", err)
	}
	genesis, _ := store.GetTipHeader()
	genesisExt, _ := store.GetBlockExt(genesis.Hash())

	proposalID := chaintypes.ProposalShortID{1, 2, 3}
	blk := childBlock(genesis, 1)
	blk.Proposals = []chaintypes.ProposalShortID{proposalID}
	blk.Header.ProposalsHash = chaintypes.ProposalsHash(blk.Proposals)

	perBlock, err := chaintypes.DifficultyFromCompact(reorgTestCompactTarget)
	if err != nil {
		t.Fatalf("DifficultyFromCompact: %v", err)
	}
	totalDiff := genesisExt.TotalDifficulty.Add(chaintypes.NewDifficulty(perBlock))

	attached := snap.withAttached(blk, totalDiff)
	if attached.TipHash != blk.Hash() || attached.TipNumber != 1 {
		t.Fatalf("withAttached tip = (%s, %d), want (%s, 1)", attached.TipHash, attached.TipNumber, blk.Hash())
	}
	if got := attached.ProposedIn(1); len(got) != 1 || got[0] != proposalID {
		t.Fatalf("ProposedIn(1) = %v, want [%v]", got, proposalID)
	}

	detached := attached.withDetached(blk, genesis, genesisExt)
	if detached.TipHash != genesis.Hash() || detached.TipNumber != 0 {
		t.Fatalf("withDetached tip = (%s, %d), want genesis (%s, 0)", detached.TipHash, detached.TipNumber, genesis.Hash())
	}
	if got := detached.ProposedIn(1); len(got) != 0 {
		t.Fatalf("ProposedIn(1) after detach = %v, want empty", got)
	}
	if detached.TotalDifficulty.Cmp(genesisExt.TotalDifficulty) != 0 {
		t.Fatal("withDetached did not restore the parent's total difficulty")
	}
}

func TestSnapshot_WithAttachedFoldsInCommittedAndUncleState(t *testing.T) {
	store := chainstore.New(chainstore.NewMemory())
	consensus := config.ConsensusFor(config.Mainnet)
	if err := Bootstrap(store, consensus); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	snap, err := NewGenesisSnapshot(store, consensus)
	if err != nil {
		t.Fatalf("NewGenesisSnapshot: %v", err)
	}
	genesis, _ := store.GetTipHeader()
	genesisExt, _ := store.GetBlockExt(genesis.Hash())

	committedTx := chaintypes.Transaction{
		Inputs:      []chaintypes.CellInput{{OutPoint: chaintypes.OutPoint{TxHash: chaintypes.Hash{7}}}},
		Outputs:     []chaintypes.CellOutput{{Capacity: 0}},
		OutputsData: [][]byte{{}},
	}
	uncle := chaintypes.UncleBlock{Header: chaintypes.Header{Number: 0, Nonce: [chaintypes.NonceSize]byte{9}}}

	blk := childBlock(genesis, 1)
	blk.Transactions = append(blk.Transactions, committedTx)
	blk.Uncles = []chaintypes.UncleBlock{uncle}
	blk.Header.TransactionsRoot = chaintypes.TransactionsRoot(blk.TxHashes(), blk.TxWitnessHashes())
	blk.Header.ExtraHash = chaintypes.ExtraHash(chaintypes.UnclesHash(blk.UncleHashes()), nil)

	perBlock, _ := chaintypes.DifficultyFromCompact(reorgTestCompactTarget)
	totalDiff := genesisExt.TotalDifficulty.Add(chaintypes.NewDifficulty(perBlock))
	attached := snap.withAttached(blk, totalDiff)

	if !attached.IsCommitted(committedTx.ProposalShortID()) {
		t.Fatal("withAttached did not record the non-cellbase tx as committed")
	}
	if !attached.IsUncleIncluded(uncle.Hash()) {
		t.Fatal("withAttached did not record the embedded uncle as included")
	}
}

func TestSnapshot_AncestorSourceMethods(t *testing.T) {
	store := chainstore.New(chainstore.NewMemory())
	consensus := config.ConsensusFor(config.Mainnet)
	if err := Bootstrap(store, consensus); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	snap, err := NewGenesisSnapshot(store, consensus)
	if err != nil {
		t.Fatalf("NewGenesisSnapshot: %v", err)
	}
	genesis, _ := store.GetTipHeader()

	byNumber, err := snap.HeaderByNumber(0)
	if err != nil || byNumber.Hash() != genesis.Hash() {
		t.Fatalf("HeaderByNumber(0) = (%v, %v), want genesis", byNumber, err)
	}
	byHash, err := snap.HeaderByHash(genesis.Hash())
	if err != nil || byHash.Hash() != genesis.Hash() {
		t.Fatalf("HeaderByHash(genesis) = (%v, %v), want genesis", byHash, err)
	}
	uncles, err := snap.TotalUnclesByNumber(0)
	if err != nil || uncles != 0 {
		t.Fatalf("TotalUnclesByNumber(0) = (%d, %v), want (0, nil)", uncles, err)
	}
	epochExt, err := snap.EpochExtByNumber(0)
	if err != nil || epochExt.Number != 0 {
		t.Fatalf("EpochExtByNumber(0) = (%v, %v), want epoch 0", epochExt, err)
	}
	if median := snap.MedianTime(genesis, 37); median != genesis.Timestamp {
		t.Fatalf("MedianTime with only genesis available = %d, want %d", median, genesis.Timestamp)
	}
	if snap.Now() == 0 {
		t.Fatal("Now() returned zero; expected a real wall-clock reading")
	}
}
