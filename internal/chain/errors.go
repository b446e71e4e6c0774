package chain

import (
	"errors"
	"strconv"
)

// BlockErrorKind classifies why a block was rejected, mirroring the
// taxonomy spec.md 7 names so callers (RPC/P2P periphery, metrics) can
// attribute failures without string-matching error messages.
type BlockErrorKind string

const (
	BlockErrorShape             BlockErrorKind = "Shape"
	BlockErrorMerkle            BlockErrorKind = "Merkle"
	BlockErrorPowError          BlockErrorKind = "PowError"
	BlockErrorTooManyUncles     BlockErrorKind = "TooManyUncles"
	BlockErrorInvalidUncle      BlockErrorKind = "InvalidUncle"
	BlockErrorDuplicateProposal BlockErrorKind = "DuplicateProposal"
	BlockErrorInvalidDAO        BlockErrorKind = "InvalidDAO"
	BlockErrorInvalidReward     BlockErrorKind = "InvalidReward"
	BlockErrorInvalidEpoch      BlockErrorKind = "InvalidEpoch"
	BlockErrorInvalidNumber     BlockErrorKind = "InvalidNumber"
	BlockErrorBlockTimeTooOld   BlockErrorKind = "BlockTimeTooOld"
	BlockErrorBlockTimeTooNew   BlockErrorKind = "BlockTimeTooNew"
	BlockErrorBlockVersion      BlockErrorKind = "BlockVersion"
	BlockErrorOversizedBlock    BlockErrorKind = "OversizedBlock"
	BlockErrorExceededMaxCycles BlockErrorKind = "ExceededMaxCycles"
	BlockErrorCommit            BlockErrorKind = "Commit"
	BlockErrorCellbase          BlockErrorKind = "Cellbase"
	BlockErrorUnknown           BlockErrorKind = "Unknown"
)

// BlockError wraps a verifier or pipeline failure with the kind of
// rejection it represents, the form the Chain Service reports back
// through a completion callback.
type BlockError struct {
	Kind BlockErrorKind
	Err  error
}

func (e *BlockError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *BlockError) Unwrap() error { return e.Err }

// NewBlockError wraps err with kind.
func NewBlockError(kind BlockErrorKind, err error) *BlockError {
	return &BlockError{Kind: kind, Err: err}
}

// TransactionErrorKind classifies a transaction-level rejection
// discovered during the script/cellbase hooks of contextual
// verification.
type TransactionErrorKind string

const (
	TransactionErrorScriptFailure              TransactionErrorKind = "ScriptFailure"
	TransactionErrorInputsEmpty                TransactionErrorKind = "InputsEmpty"
	TransactionErrorOutputsDataLengthMismatch  TransactionErrorKind = "OutputsDataLengthMismatch"
	TransactionErrorDuplicateInput             TransactionErrorKind = "DuplicateInput"
	TransactionErrorImmatureCellbase           TransactionErrorKind = "ImmatureCellbase"
)

// TransactionError carries the failing transaction's index within its
// block alongside the rejection kind, per spec.md 4.6's "carrying the
// failing tx index".
type TransactionError struct {
	Kind    TransactionErrorKind
	TxIndex int
	Err     error
}

func (e *TransactionError) Error() string {
	return string(e.Kind) + " at tx " + strconv.Itoa(e.TxIndex) + ": " + e.Err.Error()
}

func (e *TransactionError) Unwrap() error { return e.Err }

// ErrOrphan signals that a block's parent is not yet known and it has
// been parked in the Orphan Pool rather than rejected (spec.md 4.6's
// "block routed to orphan pool instead of being rejected").
var ErrOrphan = errors.New("chain: parent unknown, block parked as orphan")

// ErrAlreadyProcessed signals that a block hash is already stored,
// whether verified, invalid, or orphaned.
var ErrAlreadyProcessed = errors.New("chain: block already processed")

// ErrOrphanPoolFull names a full Orphan Pool. OrphanPool.Insert never
// returns it: at capacity the pool evicts its oldest-inserted entry to
// make room for the new one.
var ErrOrphanPoolFull = errors.New("chain: orphan pool is full")

// ErrShuttingDown is returned to any request submitted after the Chain
// Controller's stop signal has been broadcast.
var ErrShuttingDown = errors.New("chain: controller is shutting down")
