package batcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/archon-rollup/archon-batcher/op-batcher/metrics"
	"github.com/archon-rollup/archon-batcher/op-batcher/txmgr"
	"github.com/archon-rollup/archon-batcher/op-service/eth"
)

// ErrChannelClosed is returned by an actor when a downstream or upstream
// channel it depends on closed out from under it, a fatal actor-lifecycle
// condition distinct from the transient errors every actor otherwise
// swallows.
var ErrChannelClosed = errors.New("batcher: actor channel closed")

// L1Client is the subset of an L1 RPC client the L1 Driver needs.
type L1Client interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// L2Client is the subset of an L2 RPC client the Channel Manager's ingestion
// loop needs.
type L2Client interface {
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
}

// RollupClient is the subset of the rollup node's JSON-RPC surface the
// ingestion loop needs.
type RollupClient interface {
	SyncStatus(ctx context.Context) (*eth.SyncStatus, error)
}

// TxSender is the subset of the transaction manager's surface the
// Transaction Manager actor needs.
type TxSender interface {
	SendTransaction(ctx context.Context, id string, data []byte) (*types.Receipt, error)
}

// runL1Driver polls for the latest L1 header on every tick and emits the
// observed BlockID downstream. All transient fetch errors are logged and
// swallowed: the driver never terminates on them, never mutates shared
// state, and exits only when ctx is canceled; a pending downstream send is
// abandoned at that point too.
func runL1Driver(ctx context.Context, logger log.Logger, client L1Client, pollInterval, networkTimeout time.Duration, out chan<- eth.BlockID) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	poll := func() {
		tctx, cancel := context.WithTimeout(ctx, networkTimeout)
		defer cancel()
		header, err := client.HeaderByNumber(tctx, nil)
		if err != nil {
			logger.Warn("l1 driver: failed to fetch latest header, will retry", "err", err)
			return
		}
		id, ok := eth.HeaderBlockID(header)
		if !ok {
			logger.Warn("l1 driver: header response missing both hash and number, treating as transient")
			return
		}
		select {
		case out <- id:
		case <-ctx.Done():
		}
	}

	// First iteration fires immediately rather than waiting a full
	// pollInterval.
	poll()
	for {
		select {
		case <-ticker.C:
			poll()
		case <-ctx.Done():
			return
		}
	}
}

// runIngestionLoop is the Channel Manager's L2 ingestion loop. It is
// independent of the forward path: it only ever writes into Block State
// (via AddL2Block) and never reads from or blocks the driver's BlockID
// stream.
func runIngestionLoop(ctx context.Context, logger log.Logger, metr metrics.Metricer, rollup RollupClient, l2 L2Client, state *channelManager, pollInterval, networkTimeout time.Duration) {
	var lastStoredBlockNumber uint64
	var haveLastStored bool

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	tick := func() {
		tctx, cancel := context.WithTimeout(ctx, networkTimeout)
		defer cancel()

		status, err := rollup.SyncStatus(tctx)
		if err != nil {
			logger.Warn("ingestion loop: failed to fetch sync status, will retry", "err", err)
			return
		}
		if !status.Valid() {
			logger.Warn("ingestion loop: empty sync status, will retry")
			return
		}

		if !haveLastStored {
			lastStoredBlockNumber = status.SafeL2
			haveLastStored = true
			logger.Info("ingestion loop: starting from safe head", "safe", status.SafeL2)
		} else if lastStoredBlockNumber < status.SafeL2 {
			logger.Warn("ingestion loop: last stored block lagged behind safe head, resuming from safe head",
				"last", lastStoredBlockNumber, "safe", status.SafeL2)
			lastStoredBlockNumber = status.SafeL2
		}

		if status.SafeL2 >= status.UnsafeL2 {
			return
		}

		added := 0
		for n := lastStoredBlockNumber + 1; n <= status.UnsafeL2; n++ {
			block, err := fetchL2Block(ctx, l2, networkTimeout, n)
			if err != nil {
				logger.Warn("ingestion loop: failed to fetch L2 block, skipping", "number", n, "err", err)
				continue
			}
			if err := state.AddL2Block(block); err != nil {
				if errors.Is(err, ErrL2Reorg) {
					logger.Warn("ingestion loop: L2 reorg detected, clearing state", "number", n)
					metr.RecordL2Reorg()
					state.Clear()
					lastStoredBlockNumber = 0
					haveLastStored = false
					return
				}
				logger.Warn("ingestion loop: failed to append L2 block, skipping", "number", n, "err", err)
				continue
			}
			lastStoredBlockNumber = n
			added++
		}
		if added > 0 {
			metr.RecordL2BlocksAdded(added, state.state.Len())
			logger.Info("ingestion loop: added L2 blocks", "count", added, "last_stored", lastStoredBlockNumber)
		}
	}

	tick()
	for {
		select {
		case <-ticker.C:
			tick()
		case <-ctx.Done():
			return
		}
	}
}

func fetchL2Block(ctx context.Context, l2 L2Client, networkTimeout time.Duration, number uint64) (eth.L2Block, error) {
	tctx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()
	block, err := l2.BlockByNumber(tctx, new(big.Int).SetUint64(number))
	if err != nil {
		return eth.L2Block{}, err
	}
	return eth.L2BlockFromRPC(block), nil
}

// forwardPath is the Channel Manager's forward-path frame producer, spec
// §4.2.3. For each BlockID received from the L1 Driver, it asks the channel
// manager for the next frame of data and emits it downstream with its
// TransactionID. An exhausted channel manager (no data to frame right now)
// is not an error worth logging every tick; it simply produces nothing this
// round.
func forwardPath(ctx context.Context, logger log.Logger, metr metrics.Metricer, state *channelManager, in <-chan eth.BlockID, out chan<- txFrame) {
	for {
		select {
		case id, ok := <-in:
			if !ok {
				logger.Error("forward path: upstream L1 Driver channel closed")
				return
			}
			metr.RecordLatestL1Block(id)
			for {
				frame, txID, err := state.TxData(id)
				if errors.Is(err, ErrExhausted) {
					break
				}
				if err != nil {
					logger.Error("forward path: failed to produce tx data", "err", err)
					break
				}
				select {
				case out <- txFrame{id: txID, frame: frame}:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// txFrame pairs a frame's bytes with its TransactionID on the wire between
// the Channel Manager's forward path and the Transaction Manager.
type txFrame struct {
	id    TransactionID
	frame FrameBytes
}

// receiptResult is what the Transaction Manager emits downstream to the
// Orchestrator, spec §4.3/§4.4.
type receiptResult struct {
	id      TransactionID
	receipt *types.Receipt
	err     error
}

// runTransactionManager is the Transaction Manager actor, spec §4.3: a
// per-message loop that crafts, submits, and confirms each frame it
// receives, then emits the outcome downstream. A single frame's failure is
// not fatal to the actor; only the upstream channel closing is.
func runTransactionManager(ctx context.Context, logger log.Logger, sender TxSender, in <-chan txFrame, out chan<- receiptResult) {
	for {
		select {
		case tf, ok := <-in:
			if !ok {
				logger.Error("transaction manager: upstream channel closed")
				return
			}
			receipt, err := sender.SendTransaction(ctx, tf.id.String(), tf.frame)
			select {
			case out <- receiptResult{id: tf.id, receipt: receipt, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Orchestrator builds, wires, and supervises the L1 Driver, Channel Manager,
// and Transaction Manager actors, per spec §4.4. It owns the process
// lifecycle: a single cancellation signal reaches every actor, and it is the
// only component that mutates ConfirmedTx/PendingTx via the channel
// manager's TxConfirmed/TxFailed, by looping over the terminal receipt
// stream (spec §4.4's "future extension" is implemented here, not deferred).
type Orchestrator struct {
	log  log.Logger
	metr metrics.Metricer
	cfg  Config

	l1    L1Client
	l2    L2Client
	roll  RollupClient
	txmgr *txmgr.TxManager

	state *channelManager

	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator constructs an Orchestrator. None of the actors are
// started until Start is called.
func NewOrchestrator(logger log.Logger, metr metrics.Metricer, cfg Config, l1 L1Client, l2 L2Client, roll RollupClient, tm *txmgr.TxManager) *Orchestrator {
	return &Orchestrator{
		log:   logger,
		metr:  metr,
		cfg:   cfg,
		l1:    l1,
		l2:    l2,
		roll:  roll,
		txmgr: tm,
		state: NewChannelManager(logger, metr, cfg.ChannelConfig),
	}
}

// Start spawns the three actors and the receipt-handling loop. It returns
// immediately; call Stop to shut down.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.cancel != nil {
		return errors.New("orchestrator: already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})

	o.state.Clear()

	blockIDs := make(chan eth.BlockID)
	frames := make(chan txFrame)
	receipts := make(chan receiptResult)

	go runL1Driver(runCtx, o.log, o.l1, o.cfg.PollInterval, o.cfg.NetworkTimeout, blockIDs)
	go runIngestionLoop(runCtx, o.log, o.metr, o.roll, o.l2, o.state, o.cfg.PollInterval, o.cfg.NetworkTimeout)
	go forwardPath(runCtx, o.log, o.metr, o.state, blockIDs, frames)
	go runTransactionManager(runCtx, o.log, o.txmgr, frames, receipts)

	go func() {
		defer close(o.done)
		o.receiptLoop(runCtx, receipts)
	}()

	o.log.Info("orchestrator started")
	return nil
}

// receiptLoop iterates the terminal receipt stream, logging each receipt and
// feeding its outcome back into the channel manager's pending/confirmed
// bookkeeping, per spec §4.4 step 5.
func (o *Orchestrator) receiptLoop(ctx context.Context, receipts <-chan receiptResult) {
	for {
		select {
		case r, ok := <-receipts:
			if !ok {
				return
			}
			if r.err != nil {
				o.log.Warn("batch transaction failed", "id", r.id, "err", r.err)
				o.metr.RecordBatchTxFailed()
				o.state.TxFailed(r.id)
				continue
			}
			inclusion := eth.ReceiptBlockID(r.receipt)
			o.log.Info("batch transaction confirmed", "id", r.id, "tx", r.receipt.TxHash, "block", inclusion)
			o.state.TxConfirmed(r.id, inclusion)
		case <-ctx.Done():
			return
		}
	}
}

// Clear resets Block State and the pending/confirmed tx maps on explicit
// administrative request, per spec §4.2.4 (the other trigger, a detected
// reorg, is handled internally by the ingestion loop). Safe to call while
// the orchestrator is running.
func (o *Orchestrator) Clear() {
	o.state.Clear()
}

// Stop cancels every actor and waits for the receipt loop to drain, per
// spec §4.4's "cancellation signal flows to all actors" contract.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if o.cancel == nil {
		return nil
	}
	o.cancel()
	select {
	case <-o.done:
		o.log.Info("orchestrator stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("orchestrator: stop deadline exceeded: %w", ctx.Err())
	}
}
