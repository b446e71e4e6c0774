// Package chain implements the Chain Service: the single authority over
// chain state, reached only through a bounded set of typed channels so
// every mutation of the canonical chain funnels through one goroutine per
// stage (spec 4.8). Snapshot (snapshot.go), the Orphan Pool (orphan.go),
// the Best-Chain Selector (reorg.go), and the three-worker pipeline
// (pipeline.go, this file) together make up the service.
package chain

import (
	"errors"
	"sync"
	"time"

	"github.com/shannonlabs/ckbcore/config"
	"github.com/shannonlabs/ckbcore/internal/chainstore"
	"github.com/shannonlabs/ckbcore/internal/log"
	"github.com/shannonlabs/ckbcore/internal/verify"
	"github.com/shannonlabs/ckbcore/pkg/chaintypes"
	"github.com/rs/zerolog"
)

// downloadWindow sizes the preload channel: spec 4.8 calls for "download
// window x 10", and the download window itself lives with the (out of
// scope) sync periphery, so this is the chain core's own standing
// estimate of how many blocks a fast peer can have in flight at once.
const downloadWindow = 128

// Controller owns the three pipeline workers and the channels between
// them. Exactly one Controller should run per node: every chain mutation
// — attach, detach, reorg, truncate — happens on the Verifier worker's
// goroutine, so no further locking is needed around Snapshot publication.
type Controller struct {
	store     *chainstore.Store
	consensus *config.Consensus
	metrics   *Metrics
	orphans   *OrphanPool
	snapshot  *SnapshotCell
	logger    zerolog.Logger
	verifier  verify.ScriptVerifier

	processBlock    chan processRequest
	preload         chan preloadItem
	unverifiedBlock chan unverifiedItem
	truncate        chan truncateRequest

	stop chan struct{}

	wgNCV      sync.WaitGroup
	wgPreload  sync.WaitGroup
	wgVerifier sync.WaitGroup
}

// orphanExpiration bounds how long a parked orphan waits for its parent
// before CleanExpired gives up on it — no exact value comes from spec,
// so this picks a multiple of the allowed future-block-time skew: long
// enough that a slow-arriving parent still has a real shot, short enough
// that a never-arriving one doesn't sit in the pool indefinitely.
const orphanExpiration = 2 * time.Hour

// orphanSweepInterval paces the NCV worker's periodic CleanExpired call.
const orphanSweepInterval = 5 * time.Minute

// ErrOrphanExpired is the error every orphan still parked when
// CleanExpired evicts it is resolved with, satisfying spec 7's "the
// callback sees Ok(false) only after the orphan either lands or
// expires".
var ErrOrphanExpired = errors.New("chain: orphan expired waiting for its parent")

// NewController wires a Controller against an already-open store and an
// initial Snapshot (built from the store's current tip via
// NewGenesisSnapshot). The orphan pool is sized to downloadWindow.
// verifier is the Script VM capability (verify.NopScriptVerifier when
// none is wired in).
func NewController(store *chainstore.Store, consensus *config.Consensus, metrics *Metrics, initial *Snapshot, verifier verify.ScriptVerifier) (*Controller, error) {
	orphans, err := NewOrphanPool(downloadWindow)
	if err != nil {
		return nil, err
	}
	return &Controller{
		store:           store,
		consensus:       consensus,
		metrics:         metrics,
		orphans:         orphans,
		snapshot:        NewSnapshotCell(initial),
		logger:          log.Pipeline,
		verifier:        verifier,
		processBlock:    make(chan processRequest),
		preload:         make(chan preloadItem, downloadWindow*10),
		unverifiedBlock: make(chan unverifiedItem, 128),
		truncate:        make(chan truncateRequest, 1),
		stop:            make(chan struct{}),
	}, nil
}

// Snapshot returns the currently published chain view.
func (c *Controller) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Start launches the three pipeline workers.
func (c *Controller) Start() {
	c.wgNCV.Add(1)
	go func() {
		defer c.wgNCV.Done()
		c.runNCVWorker()
	}()

	c.wgPreload.Add(1)
	go func() {
		defer c.wgPreload.Done()
		c.runPreloadWorker()
	}()

	c.wgVerifier.Add(1)
	go func() {
		defer c.wgVerifier.Done()
		c.runVerifierWorker()
	}()
}

// Stop broadcasts the shutdown signal and joins the three workers in
// reverse dependency order: the Preload worker (which only the NCV
// worker feeds) first, then the Verifier worker (which only Preload
// feeds), then the NCV worker itself — spec 4.8's "owning supervisor
// joins them in reverse dependency order".
func (c *Controller) Stop() {
	close(c.stop)
	c.wgPreload.Wait()
	c.wgVerifier.Wait()
	c.wgNCV.Wait()
}

// ProcessBlockAsync submits blk for validation. It blocks only until the
// NCV worker accepts or rejects it for processing (the process_block
// channel is a capacity-0 rendezvous); done, if non-nil, is invoked
// exactly once later when verification ultimately settles — possibly
// after blk spends time parked in the Orphan Pool. sw optionally disables
// specific verification checks (omit it, or pass 0, to run every check).
func (c *Controller) ProcessBlockAsync(blk *chaintypes.Block, done func(isNewBest bool, err error), sw ...VerifySwitch) error {
	req := processRequest{block: blk, ack: make(chan error, 1), done: done, sw: switchArg(sw)}
	select {
	case c.processBlock <- req:
	case <-c.stop:
		return ErrShuttingDown
	}
	select {
	case err := <-req.ack:
		return err
	case <-c.stop:
		return ErrShuttingDown
	}
}

// ProcessBlockBlocking submits blk and waits for verification to fully
// settle — including any time spent parked in the Orphan Pool — rather
// than returning as soon as the NCV worker has merely accepted it. It is
// the synchronous counterpart to ProcessBlockAsync, named for parity with
// spec 6's external-interfaces table (tooling and tests that need the
// final outcome in hand, not just acceptance).
func (c *Controller) ProcessBlockBlocking(blk *chaintypes.Block, sw ...VerifySwitch) (bool, error) {
	type outcome struct {
		isNewBest bool
		err       error
	}
	result := make(chan outcome, 1)
	done := func(isNewBest bool, err error) {
		result <- outcome{isNewBest: isNewBest, err: err}
	}
	if err := c.ProcessBlockAsync(blk, done, sw...); err != nil {
		return false, err
	}
	select {
	case o := <-result:
		return o.isNewBest, o.err
	case <-c.stop:
		return false, ErrShuttingDown
	}
}

// GetOrphanBlock returns the block parked under hash in the Orphan Pool,
// if any, without affecting its eviction order.
func (c *Controller) GetOrphanBlock(hash chaintypes.Hash) (*chaintypes.Block, bool) {
	return c.orphans.Get(hash)
}

// OrphanLen reports how many blocks are currently parked in the Orphan
// Pool awaiting their parent.
func (c *Controller) OrphanLen() int {
	return c.orphans.Len()
}

func switchArg(sw []VerifySwitch) VerifySwitch {
	if len(sw) == 0 {
		return 0
	}
	return sw[0]
}

// Truncate rolls the tip back to targetHash, atomically with respect to
// any attach or reorg in flight — spec 4.8's rare test/ops command. It
// fails if targetHash is not a block on the canonical chain.
func (c *Controller) Truncate(targetHash chaintypes.Hash) error {
	req := truncateRequest{targetHash: targetHash, result: make(chan error, 1)}
	select {
	case c.truncate <- req:
	case <-c.stop:
		return ErrShuttingDown
	}
	select {
	case err := <-req.result:
		return err
	case <-c.stop:
		return ErrShuttingDown
	}
}

// runNCVWorker implements the Non-Contextual Verifier stage: syntactic
// checks that need no chain state. A block whose parent isn't yet stored
// is parked in the Orphan Pool rather than rejected; everything else
// either fails outright (callback fired immediately, since no later
// stage will run) or is forwarded to the Preload worker.
func (c *Controller) runNCVWorker() {
	ticker := time.NewTicker(orphanSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case req := <-c.processBlock:
			c.handleProcessRequest(req)
		case <-ticker.C:
			c.sweepExpiredOrphans()
		}
	}
}

func (c *Controller) handleProcessRequest(req processRequest) {
	blk := req.block
	hash := blk.Hash()

	if _, err := c.store.GetBlockHeader(hash); err == nil {
		req.ack <- ErrAlreadyProcessed
		invoke(req.done, false, ErrAlreadyProcessed)
		return
	}

	if !req.sw.Has(verify.DisableNonContextual) {
		if err := verify.NonContextual(c.consensus, blk, req.sw); err != nil {
			wrapped := NewBlockError(BlockErrorShape, err)
			req.ack <- wrapped
			invoke(req.done, false, wrapped)
			c.metrics.BlocksProcessed.WithLabelValues("rejected").Inc()
			return
		}
	}

	if err := c.store.InsertBlock(blk); err != nil {
		wrapped := NewBlockError(BlockErrorCommit, err)
		req.ack <- wrapped
		invoke(req.done, false, wrapped)
		return
	}

	if _, err := c.store.GetBlockHeader(blk.Header.ParentHash); err != nil {
		c.orphans.Insert(blk, req.done, req.sw)
		c.metrics.OrphanPoolSize.Set(float64(c.orphans.Len()))
		req.ack <- nil
		return
	}

	req.ack <- nil
	c.forwardToPreload(hash, req.done, req.sw)
}

// sweepExpiredOrphans evicts every orphan parked past orphanExpiration
// and resolves each one's submitter with isNewBest=false and
// ErrOrphanExpired (wrapped in a BlockError), so the callback fires only
// once the orphan either lands or expires.
func (c *Controller) sweepExpiredOrphans() {
	expired := c.orphans.CleanExpired(time.Now(), orphanExpiration)
	if len(expired) == 0 {
		return
	}
	c.metrics.OrphanPoolSize.Set(float64(c.orphans.Len()))
	for _, resolved := range expired {
		c.logger.Debug().Stringer("hash", resolved.Block.Hash()).Msg("orphan expired")
		invoke(resolved.Done, false, NewBlockError(BlockErrorUnknown, ErrOrphanExpired))
	}
}

// forwardToPreload enqueues hash on the preload channel, respecting
// shutdown; if the controller is stopping, the submitter is told its
// block will not be verified.
func (c *Controller) forwardToPreload(hash chaintypes.Hash, done func(isNewBest bool, err error), sw VerifySwitch) {
	select {
	case c.preload <- preloadItem{hash: hash, done: done, sw: sw}:
		c.metrics.PreloadQueueDepth.Set(float64(len(c.preload)))
	case <-c.stop:
		invoke(done, false, ErrShuttingDown)
	}
}

// runPreloadWorker re-reads each queued hash's full block from storage
// (so large blocks aren't held across the process_block/preload hand-off)
// and forwards it to the Verifier worker. On stop it first drains
// whatever is already buffered, then exits.
func (c *Controller) runPreloadWorker() {
	for {
		select {
		case <-c.stop:
			c.drainPreload()
			return
		case item := <-c.preload:
			c.handlePreloadItem(item)
		}
	}
}

func (c *Controller) drainPreload() {
	for {
		select {
		case item := <-c.preload:
			c.handlePreloadItem(item)
		default:
			return
		}
	}
}

func (c *Controller) handlePreloadItem(item preloadItem) {
	c.metrics.PreloadQueueDepth.Set(float64(len(c.preload)))
	blk, err := c.store.GetBlock(item.hash)
	if err != nil {
		invoke(item.done, false, NewBlockError(BlockErrorUnknown, err))
		return
	}
	select {
	case c.unverifiedBlock <- unverifiedItem{block: blk, done: item.done, sw: item.sw}:
		c.metrics.VerifyQueueDepth.Set(float64(len(c.unverifiedBlock)))
	case <-c.stop:
		invoke(item.done, false, ErrShuttingDown)
	}
}

// runVerifierWorker implements the Contextual Verifier plus the
// Best-Chain Selector's attach/reorg step and Snapshot publication — the
// only goroutine that ever mutates the published Snapshot, so no
// additional locking is required around it. It also services the rare
// Truncate command, since truncation is just another Snapshot mutation.
// On stop it drains whatever is already buffered, then exits.
func (c *Controller) runVerifierWorker() {
	for {
		select {
		case <-c.stop:
			c.drainVerifier()
			return
		case item := <-c.unverifiedBlock:
			c.handleUnverifiedItem(item)
		case req := <-c.truncate:
			c.handleTruncate(req)
		}
	}
}

func (c *Controller) drainVerifier() {
	for {
		select {
		case item := <-c.unverifiedBlock:
			c.handleUnverifiedItem(item)
		default:
			return
		}
	}
}

func (c *Controller) handleUnverifiedItem(item unverifiedItem) {
	c.metrics.VerifyQueueDepth.Set(float64(len(c.unverifiedBlock)))
	blk := item.block
	snap := c.snapshot.Load()

	ext, err := c.attemptAttach(snap, blk, item.sw)
	if err != nil {
		c.logger.Debug().Err(err).Stringer("hash", blk.Hash()).Uint64("number", blk.Header.Number).Msg("block rejected")
		invoke(item.done, false, err)
		c.metrics.BlocksProcessed.WithLabelValues("rejected").Inc()
		return
	}

	c.logger.Debug().Stringer("hash", blk.Hash()).Uint64("number", blk.Header.Number).Bool("is_new_best", ext.isNewBest).Msg("block verified")
	c.metrics.BlocksProcessed.WithLabelValues(verifyOutcome(ext.isNewBest)).Inc()
	invoke(item.done, ext.isNewBest, nil)

	if ext.isNewBest {
		for _, resolved := range c.orphans.RemoveBlocksByParent(blk.Hash()) {
			c.metrics.OrphanPoolSize.Set(float64(c.orphans.Len()))
			c.forwardToPreload(resolved.Block.Hash(), resolved.Done, resolved.Sw)
		}
	}
}

// attachOutcome reports whether attemptAttach's block became the new
// best tip.
type attachOutcome struct {
	isNewBest bool
}

func (c *Controller) attemptAttach(snap *Snapshot, blk *chaintypes.Block, sw VerifySwitch) (*attachOutcome, error) {
	start := time.Now()
	activeEpoch, err := verify.Contextual(c.consensus, snap, c.verifier, blk, sw)
	c.metrics.VerifyDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, NewBlockError(classifyContextualError(err), err)
	}

	parentExt, err := c.store.GetBlockExt(blk.Header.ParentHash)
	if err != nil {
		return nil, NewBlockError(BlockErrorUnknown, err)
	}
	diff, err := chaintypes.DifficultyFromCompact(blk.Header.CompactTarget)
	if err != nil {
		return nil, NewBlockError(BlockErrorInvalidDAO, err)
	}
	totalDifficulty := parentExt.TotalDifficulty.Add(chaintypes.NewDifficulty(diff))

	ext := &chaintypes.BlockExt{
		ReceivedAt:       nowMillis(),
		TotalDifficulty:  totalDifficulty,
		TotalUnclesCount: parentExt.TotalUnclesCount + uint64(len(blk.Uncles)),
		Verified:         chaintypes.VerificationValid,
	}
	if err := c.store.InsertBlockExt(blk.Hash(), ext); err != nil {
		return nil, NewBlockError(BlockErrorCommit, err)
	}
	if err := c.store.PutBlockEpochIndex(blk.Hash(), activeEpoch.Number); err != nil {
		return nil, NewBlockError(BlockErrorCommit, err)
	}

	result, err := AttachOrReorg(c.store, c.metrics, snap, blk, ext)
	if err != nil {
		return nil, NewBlockError(BlockErrorCommit, err)
	}
	if result.IsNewBest {
		c.snapshot.Publish(result.Snapshot)
	}
	return &attachOutcome{isNewBest: result.IsNewBest}, nil
}

func (c *Controller) handleTruncate(req truncateRequest) {
	snap := c.snapshot.Load()
	target, err := c.store.GetBlockHeader(req.targetHash)
	if err != nil {
		req.result <- err
		return
	}
	if canonical, err := c.store.GetBlockHash(target.Number); err != nil || canonical != req.targetHash {
		req.result <- errors.New("chain: truncate target is not on the canonical chain")
		return
	}
	next, _, err := detachToNumber(c.store, snap, target.Number)
	if err != nil {
		req.result <- err
		return
	}
	c.snapshot.Publish(next)
	c.metrics.BestTipNumber.Set(float64(next.TipNumber))
	req.result <- nil
}

func verifyOutcome(isNewBest bool) string {
	if isNewBest {
		return "accepted_best"
	}
	return "accepted_side"
}

// classifyContextualError maps a verify.Contextual error to the
// BlockErrorKind taxonomy spec 7 names, for callers that branch on kind
// rather than string-matching.
func classifyContextualError(err error) BlockErrorKind {
	switch {
	case errors.Is(err, verify.ErrBadNumber):
		return BlockErrorInvalidNumber
	case errors.Is(err, verify.ErrBadEpoch), errors.Is(err, verify.ErrBadDifficulty):
		return BlockErrorInvalidEpoch
	case errors.Is(err, verify.ErrTimestampTooOld):
		return BlockErrorBlockTimeTooOld
	case errors.Is(err, verify.ErrTimestampTooFarFuture):
		return BlockErrorBlockTimeTooNew
	case errors.Is(err, verify.ErrUncleTooOld), errors.Is(err, verify.ErrUncleWrongEpoch),
		errors.Is(err, verify.ErrUncleNotYoungerSide), errors.Is(err, verify.ErrUncleAlreadyIncluded),
		errors.Is(err, verify.ErrDuplicateUncle), errors.Is(err, verify.ErrUnclePoW):
		return BlockErrorInvalidUncle
	case errors.Is(err, verify.ErrCellbaseRewardTooHigh), errors.Is(err, verify.ErrCellbaseShape),
		errors.Is(err, verify.ErrCellbaseImmature):
		return BlockErrorCellbase
	case errors.Is(err, verify.ErrProposalWindow), errors.Is(err, verify.ErrProposalAlreadyCommitted):
		return BlockErrorDuplicateProposal
	case errors.Is(err, verify.ErrBadDAOField):
		return BlockErrorInvalidDAO
	case errors.Is(err, verify.ErrExceededMaxCycles):
		return BlockErrorExceededMaxCycles
	default:
		return BlockErrorUnknown
	}
}
