package verify

import (
	"errors"
	"testing"

	"github.com/shannonlabs/ckbcore/config"
	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
)

// fakeSource is a minimal, in-memory AncestorSource for exercising
// Contextual without a real Snapshot/store.
type fakeSource struct {
	headersByNumber map[uint64]*chaintypes.Header
	headersByHash   map[chaintypes.Hash]*chaintypes.Header
	blocksByNumber  map[uint64]*chaintypes.Block
	totalUncles     map[uint64]uint64
	epochs          map[uint64]*chaintypes.EpochExt
	medianTime      uint64
	included        map[chaintypes.Hash]bool
	proposedIn      map[uint64][]chaintypes.ProposalShortID
	committed       map[chaintypes.ProposalShortID]bool
	now             uint64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		headersByNumber: map[uint64]*chaintypes.Header{},
		headersByHash:   map[chaintypes.Hash]*chaintypes.Header{},
		blocksByNumber:  map[uint64]*chaintypes.Block{},
		totalUncles:     map[uint64]uint64{},
		epochs:          map[uint64]*chaintypes.EpochExt{},
		included:        map[chaintypes.Hash]bool{},
		proposedIn:      map[uint64][]chaintypes.ProposalShortID{},
		committed:       map[chaintypes.ProposalShortID]bool{},
	}
}

func (f *fakeSource) addHeader(h *chaintypes.Header) {
	f.headersByNumber[h.Number] = h
	f.headersByHash[h.Hash()] = h
}

func (f *fakeSource) HeaderByNumber(number uint64) (*chaintypes.Header, error) {
	h, ok := f.headersByNumber[number]
	if !ok {
		return nil, errUnknownHeader
	}
	return h, nil
}

func (f *fakeSource) HeaderByHash(hash chaintypes.Hash) (*chaintypes.Header, error) {
	h, ok := f.headersByHash[hash]
	if !ok {
		return nil, errUnknownHeader
	}
	return h, nil
}

func (f *fakeSource) BlockByNumber(number uint64) (*chaintypes.Block, error) {
	blk, ok := f.blocksByNumber[number]
	if !ok {
		return nil, errUnknownHeader
	}
	return blk, nil
}

func (f *fakeSource) TotalUnclesByNumber(number uint64) (uint64, error) {
	return f.totalUncles[number], nil
}

func (f *fakeSource) EpochExtByNumber(number uint64) (*chaintypes.EpochExt, error) {
	for _, e := range f.epochs {
		if e.Contains(number) {
			return e, nil
		}
	}
	return nil, errUnknownHeader
}

func (f *fakeSource) MedianTime(parent *chaintypes.Header, blockCount uint64) uint64 {
	return f.medianTime
}

func (f *fakeSource) IsUncleIncluded(hash chaintypes.Hash) bool { return f.included[hash] }

func (f *fakeSource) ProposedIn(number uint64) []chaintypes.ProposalShortID {
	return f.proposedIn[number]
}

func (f *fakeSource) IsCommitted(id chaintypes.ProposalShortID) bool { return f.committed[id] }

func (f *fakeSource) Now() uint64 { return f.now }

var errUnknownHeader = errors.New("fakeSource: header not found")

// contextualFixture builds a parent header/epoch and a structurally
// valid child block extending it, ready for Contextual to accept as-is
// or for a test to mutate one aspect of.
func contextualFixture(t *testing.T) (*config.Consensus, *fakeSource, *chaintypes.Header, *chaintypes.Block) {
	t.Helper()
	c := testConsensus()
	src := newFakeSource()

	currentEpoch := &chaintypes.EpochExt{
		Number:          0,
		StartNumber:     0,
		Length:          100,
		CompactTarget:   0x207fffff,
		BaseBlockReward: 1000,
	}
	src.epochs[0] = currentEpoch

	parent := &chaintypes.Header{
		Version:       0,
		CompactTarget: currentEpoch.CompactTarget,
		Timestamp:     1_000_000,
		Number:        5,
		Epoch:         currentEpoch.Token(5),
	}
	src.addHeader(parent)
	src.medianTime = parent.Timestamp - 1
	src.now = parent.Timestamp + 100_000

	cb := cellbaseTx(parent.Number + 1)
	blk := &chaintypes.Block{
		Header: chaintypes.Header{
			Version:       0,
			CompactTarget: currentEpoch.CompactTarget,
			Timestamp:     parent.Timestamp + 1,
			Number:        parent.Number + 1,
			Epoch:         currentEpoch.Token(parent.Number + 1),
			ParentHash:    parent.Hash(),
		},
		Transactions: []chaintypes.Transaction{cb},
	}
	blk.Header.DAO = chaintypes.NextDAOField(parent.DAO, currentEpoch.BlockReward(blk.Header.Number), 0)

	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); err != nil {
		t.Fatalf("fixture block failed Contextual: %v", err)
	}
	return c, src, parent, blk
}

func TestContextual_ValidBlockPasses(t *testing.T) {
	contextualFixture(t) // fixture construction already asserts success
}

func TestContextual_UnknownParent(t *testing.T) {
	c, src, _, blk := contextualFixture(t)
	blk.Header.ParentHash = chaintypes.Hash{0xff}
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrUnknownParent) {
		t.Fatalf("Contextual(unknown parent) = %v, want ErrUnknownParent", err)
	}
}

func TestContextual_BadNumber(t *testing.T) {
	c, src, _, blk := contextualFixture(t)
	blk.Header.Number += 1
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrBadNumber) {
		t.Fatalf("Contextual(bad number) = %v, want ErrBadNumber", err)
	}
}

func TestContextual_BadDifficulty(t *testing.T) {
	c, src, _, blk := contextualFixture(t)
	blk.Header.CompactTarget = 0x1d00ffff
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrBadDifficulty) {
		t.Fatalf("Contextual(bad difficulty) = %v, want ErrBadDifficulty", err)
	}
}

func TestContextual_TimestampTooOld(t *testing.T) {
	c, src, parent, blk := contextualFixture(t)
	blk.Header.Timestamp = parent.Timestamp - 1
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrTimestampTooOld) {
		t.Fatalf("Contextual(old timestamp) = %v, want ErrTimestampTooOld", err)
	}
}

func TestContextual_TimestampTooFarFuture(t *testing.T) {
	c, src, _, blk := contextualFixture(t)
	blk.Header.Timestamp = src.now + c.AllowedFutureBlockTime + 1
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrTimestampTooFarFuture) {
		t.Fatalf("Contextual(future timestamp) = %v, want ErrTimestampTooFarFuture", err)
	}
}

func TestContextual_CellbaseRewardTooHigh(t *testing.T) {
	c, src, _, blk := contextualFixture(t)
	currentEpoch := src.epochs[0]
	blk.Transactions[0].Outputs[0].Capacity = currentEpoch.BlockReward(blk.Header.Number) + 1
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrCellbaseRewardTooHigh) {
		t.Fatalf("Contextual(reward too high) = %v, want ErrCellbaseRewardTooHigh", err)
	}
}

func TestContextual_CellbaseShape(t *testing.T) {
	c, src, _, blk := contextualFixture(t)
	blk.Transactions[0].Outputs = append(blk.Transactions[0].Outputs, chaintypes.CellOutput{Capacity: 0})
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrCellbaseShape) {
		t.Fatalf("Contextual(cellbase shape) = %v, want ErrCellbaseShape", err)
	}
}

func TestContextual_BadDAOField(t *testing.T) {
	c, src, _, blk := contextualFixture(t)
	blk.Header.DAO = [chaintypes.DAOFieldSize]byte{0xff}
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrBadDAOField) {
		t.Fatalf("Contextual(bad dao field) = %v, want ErrBadDAOField", err)
	}
}

func TestContextual_UncleDuplicate(t *testing.T) {
	c, src, parent, blk := contextualFixture(t)
	uncle := validUncle(parent, blk, src)
	blk.Uncles = []chaintypes.UncleBlock{uncle, uncle}
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrDuplicateUncle) {
		t.Fatalf("Contextual(duplicate uncle) = %v, want ErrDuplicateUncle", err)
	}
}

func TestContextual_UncleWrongEpoch(t *testing.T) {
	c, src, parent, blk := contextualFixture(t)
	uncle := validUncle(parent, blk, src)
	uncle.Header.CompactTarget = 0x1d00ffff
	blk.Uncles = []chaintypes.UncleBlock{uncle}
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrUncleWrongEpoch) {
		t.Fatalf("Contextual(uncle wrong epoch) = %v, want ErrUncleWrongEpoch", err)
	}
}

func TestContextual_UncleNotYoungerSide(t *testing.T) {
	c, src, parent, blk := contextualFixture(t)
	uncle := validUncle(parent, blk, src)
	uncle.Header.Number = blk.Header.Number
	blk.Uncles = []chaintypes.UncleBlock{uncle}
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrUncleNotYoungerSide) {
		t.Fatalf("Contextual(uncle not younger) = %v, want ErrUncleNotYoungerSide", err)
	}
}

func TestContextual_UncleAlreadyIncluded(t *testing.T) {
	c, src, parent, blk := contextualFixture(t)
	uncle := validUncle(parent, blk, src)
	src.included[uncle.Hash()] = true
	blk.Uncles = []chaintypes.UncleBlock{uncle}
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrUncleAlreadyIncluded) {
		t.Fatalf("Contextual(uncle already included) = %v, want ErrUncleAlreadyIncluded", err)
	}
}

// validUncle builds an uncle header that passes every per-uncle check
// except whichever one a test goes on to break.
func validUncle(parent *chaintypes.Header, blk *chaintypes.Block, src *fakeSource) chaintypes.UncleBlock {
	currentEpoch := src.epochs[0]
	h := chaintypes.Header{
		Version:       0,
		CompactTarget: currentEpoch.CompactTarget,
		Number:        parent.Number,
		Epoch:         currentEpoch.Token(parent.Number),
	}
	return chaintypes.UncleBlock{Header: h}
}

func TestContextual_ProposalWindowRejectsUncommittedProposal(t *testing.T) {
	c, src, _, blk := contextualFixture(t)
	tx := chaintypes.Transaction{
		Inputs:      []chaintypes.CellInput{{OutPoint: chaintypes.OutPoint{TxHash: chaintypes.Hash{1}}}},
		Outputs:     []chaintypes.CellOutput{{Capacity: 0}},
		OutputsData: [][]byte{{}},
	}
	blk.Transactions = append(blk.Transactions, tx)
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrProposalWindow) {
		t.Fatalf("Contextual(uncommitted proposal) = %v, want ErrProposalWindow", err)
	}
}

func TestContextual_ProposalAlreadyCommitted(t *testing.T) {
	c, src, _, blk := contextualFixture(t)
	tx := chaintypes.Transaction{
		Inputs:      []chaintypes.CellInput{{OutPoint: chaintypes.OutPoint{TxHash: chaintypes.Hash{1}}}},
		Outputs:     []chaintypes.CellOutput{{Capacity: 0}},
		OutputsData: [][]byte{{}},
	}
	id := tx.ProposalShortID()
	src.committed[id] = true
	w := c.ProposalWindow.Closest
	src.proposedIn[blk.Header.Number-w] = []chaintypes.ProposalShortID{id}
	blk.Transactions = append(blk.Transactions, tx)
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); !errors.Is(err, ErrProposalAlreadyCommitted) {
		t.Fatalf("Contextual(already committed proposal) = %v, want ErrProposalAlreadyCommitted", err)
	}
}

func TestContextual_ProposalWindowAccepts(t *testing.T) {
	c, src, _, blk := contextualFixture(t)
	tx := chaintypes.Transaction{
		Inputs:      []chaintypes.CellInput{{OutPoint: chaintypes.OutPoint{TxHash: chaintypes.Hash{1}}}},
		Outputs:     []chaintypes.CellOutput{{Capacity: 0}},
		OutputsData: [][]byte{{}},
	}
	id := tx.ProposalShortID()
	w := c.ProposalWindow.Closest
	src.proposedIn[blk.Header.Number-w] = []chaintypes.ProposalShortID{id}
	blk.Transactions = append(blk.Transactions, tx)
	if _, err := Contextual(c, src, NopScriptVerifier{}, blk, 0); err != nil {
		t.Fatalf("Contextual(proposal within window) = %v, want nil", err)
	}
}

// fakeScriptVerifier reports a fixed fee per transaction hash, standing
// in for a real Script VM's input/output capacity difference.
type fakeScriptVerifier struct {
	fees map[chaintypes.Hash]uint64
}

func (f *fakeScriptVerifier) VerifyTransaction(tx *chaintypes.Transaction) (uint64, uint64, error) {
	return f.fees[tx.Hash()], 0, nil
}

func TestContextual_CellbaseRewardIncludesFinalizedFees(t *testing.T) {
	c := testConsensus()
	c.FinalizationDelayLength = 3
	c.ProposalWindow = config.ProposalWindow{Closest: 1, Farthest: 2}
	src := newFakeSource()

	currentEpoch := &chaintypes.EpochExt{Number: 0, StartNumber: 0, Length: 100, CompactTarget: 0x207fffff, BaseBlockReward: 1000}
	src.epochs[0] = currentEpoch

	parent := &chaintypes.Header{CompactTarget: currentEpoch.CompactTarget, Timestamp: 1_000_000, Number: 20, Epoch: currentEpoch.Token(20)}
	src.addHeader(parent)
	src.medianTime = parent.Timestamp - 1
	src.now = parent.Timestamp + 100_000

	// The committer-side fee: a transaction target (18) itself commits.
	txA := chaintypes.Transaction{
		Inputs:      []chaintypes.CellInput{{OutPoint: chaintypes.OutPoint{TxHash: chaintypes.Hash{0xa}}}},
		Outputs:     []chaintypes.CellOutput{{Capacity: 0}},
		OutputsData: [][]byte{{}},
	}
	// The proposer-side fee: a transaction target (18) proposed, which
	// commits two slots later at block 20.
	txB := chaintypes.Transaction{
		Inputs:      []chaintypes.CellInput{{OutPoint: chaintypes.OutPoint{TxHash: chaintypes.Hash{0xb}}}},
		Outputs:     []chaintypes.CellOutput{{Capacity: 0}},
		OutputsData: [][]byte{{}},
	}

	targetBlock := &chaintypes.Block{
		Header:       chaintypes.Header{Number: 18},
		Transactions: []chaintypes.Transaction{cellbaseTx(18), txA},
		Proposals:    []chaintypes.ProposalShortID{txB.ProposalShortID()},
	}
	src.blocksByNumber[18] = targetBlock
	src.blocksByNumber[20] = &chaintypes.Block{
		Header:       chaintypes.Header{Number: 20},
		Transactions: []chaintypes.Transaction{cellbaseTx(20), txB},
	}

	verifier := &fakeScriptVerifier{fees: map[chaintypes.Hash]uint64{
		txA.Hash(): 100,
		txB.Hash(): 50,
	}}

	// committerShare = 100 * 6/10 = 60; proposerShare = 50 * 4/10 = 20.
	const wantCeiling = 1000 + 60 + 20

	cb := cellbaseTx(21)
	blk := &chaintypes.Block{
		Header: chaintypes.Header{
			CompactTarget: currentEpoch.CompactTarget,
			Timestamp:     parent.Timestamp + 1,
			Number:        21,
			Epoch:         currentEpoch.Token(21),
			ParentHash:    parent.Hash(),
		},
		Transactions: []chaintypes.Transaction{cb},
	}
	blk.Header.DAO = chaintypes.NextDAOField(parent.DAO, currentEpoch.BlockReward(blk.Header.Number), 0)
	blk.Transactions[0].Outputs[0].Capacity = wantCeiling

	if _, err := Contextual(c, src, verifier, blk, 0); err != nil {
		t.Fatalf("Contextual(cellbase at finalized ceiling) = %v, want nil", err)
	}

	blk.Transactions[0].Outputs[0].Capacity = wantCeiling + 1
	if _, err := Contextual(c, src, verifier, blk, 0); !errors.Is(err, ErrCellbaseRewardTooHigh) {
		t.Fatalf("Contextual(cellbase over finalized ceiling) = %v, want ErrCellbaseRewardTooHigh", err)
	}
}
