package batcher

import (
	"fmt"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/archon-rollup/archon-batcher/internal/queue"
	"github.com/archon-rollup/archon-batcher/op-batcher/metrics"
	"github.com/archon-rollup/archon-batcher/op-service/eth"
)

// ErrExhausted is returned by TxData when there is nothing to frame right
// now — the caller should wait for the next tick (spec §4.2.3).
var ErrExhausted = io.EOF

// channelManager maintains Block State, detects reorgs, and materializes
// frames of L1-bound transaction data. It is the Go counterpart of
// original_source/src/channels.rs's ChannelManager, generalized to the
// single-pending-channel policy spec.md leaves as an implementation
// decision (see DESIGN.md, "op-batcher/batcher/channel_manager.go").
//
// Public methods are safe for concurrent access; all state is guarded by mu.
type channelManager struct {
	mu   sync.Mutex
	log  log.Logger
	metr metrics.Metricer
	cfg  ChannelConfig

	state *BlockState

	nextChannelNum uint64

	// channels queued to have their frames sent, oldest first.
	channelQueue queue.Queue[*channel]
	// channel currently accepting new frame reads; always channelQueue's last
	// entry once created, nil if no channel has unread-data yet.
	currentChannel *channel

	// pending maps an in-flight TransactionID to the channel that produced
	// it, so TxConfirmed/TxFailed can route back.
	pending map[TransactionID]*channel

	// confirmed tracks the L1 inclusion block of every confirmed frame.
	confirmed map[TransactionID]eth.BlockID
}

func NewChannelManager(logger log.Logger, metr metrics.Metricer, cfg ChannelConfig) *channelManager {
	return &channelManager{
		log:       logger,
		metr:      metr,
		cfg:       cfg,
		state:     NewBlockState(),
		pending:   make(map[TransactionID]*channel),
		confirmed: make(map[TransactionID]eth.BlockID),
	}
}

// AddL2Block appends block to the Block State, per spec §4.2.2. Returns
// ErrL2Reorg or ErrMissingBlockHash unchanged so the ingestion loop can act
// on them.
func (s *channelManager) AddL2Block(block eth.L2Block) error {
	return s.state.Append(block)
}

// Clear resets Block State, the pending channel queue, and the
// pending/confirmed tx maps, per spec §4.2.4.
func (s *channelManager) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Info("clearing channel manager state")
	s.state.Clear()
	s.channelQueue.Clear()
	s.currentChannel = nil
	s.pending = make(map[TransactionID]*channel)
	s.confirmed = make(map[TransactionID]eth.BlockID)
}

// TxData returns the next frame to submit to L1, along with its
// TransactionID, per spec §4.2.3. It returns ErrExhausted when there is
// nothing new to frame.
func (s *channelManager) TxData(l1Head eth.BlockID) (FrameBytes, TransactionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.readyChannel(l1Head)
	if err != nil {
		return nil, TransactionID{}, err
	}

	td := ch.NextTxData()
	s.pending[td.id] = ch
	s.log.Debug("produced tx data", "id", td.id, "len", td.Len())
	return td.frame, td.id, nil
}

// readyChannel returns a channel with at least one unsent frame, opening a
// new one from pending blocks if necessary. It never returns a channel with
// no tx data; in that case it returns ErrExhausted.
func (s *channelManager) readyChannel(l1Head eth.BlockID) (*channel, error) {
	// Drain frames of already-open channels, in queue order, before
	// starting anything new (spec §4.2.3: drain in frame-number order
	// before opening a new channel; continue a full, partially-sent
	// channel until exhausted).
	for _, ch := range s.channelQueue {
		if ch.HasTxData() {
			return ch, nil
		}
	}

	blocks := s.state.Drain()
	if len(blocks) == 0 {
		return nil, ErrExhausted
	}

	id := fmt.Sprintf("%016x", s.nextChannelNum)
	s.nextChannelNum++

	ch, err := newChannel(id, l1Head, blocks, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	s.channelQueue.Enqueue(ch)
	s.currentChannel = ch

	s.log.Info("opened channel",
		"id", ch.id, "blocks", len(blocks), "frames", ch.TotalFrames(),
		"input_bytes", ch.InputBytes(), "output_bytes", ch.OutputBytes())
	s.metr.RecordChannelOpened(ch.id, len(blocks))
	s.metr.RecordChannelClosed(ch.id, ch.TotalFrames(), ch.InputBytes(), ch.OutputBytes())

	if !ch.HasTxData() {
		return nil, ErrExhausted
	}
	return ch, nil
}

// TxConfirmed marks id as confirmed at the given L1 block, per spec §3
// (ConfirmedTx).
func (s *channelManager) TxConfirmed(id TransactionID, inclusionBlock eth.BlockID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; !ok {
		s.log.Warn("transaction from unknown channel marked as confirmed", "id", id)
		return
	}
	delete(s.pending, id)
	s.confirmed[id] = inclusionBlock
	s.metr.RecordBatchTxSubmitted()
	s.log.Debug("marked transaction as confirmed", "id", id, "block", inclusionBlock)
	s.pruneConfirmedChannels()
}

// pruneConfirmedChannels drops channels from the front of channelQueue once
// every one of their frames has been confirmed, bounding the queue's memory
// to in-flight and unsent channels only.
func (s *channelManager) pruneConfirmedChannels() {
	i := 0
	for ; i < s.channelQueue.Len(); i++ {
		ch, _ := s.channelQueue.PeekN(i)
		if ch.HasTxData() {
			break
		}
		allConfirmed := true
		for fn := uint64(0); fn < uint64(ch.TotalFrames()); fn++ {
			if _, ok := s.confirmed[TransactionID{ChannelID: ch.id, FrameNumber: fn}]; !ok {
				allConfirmed = false
				break
			}
		}
		if !allConfirmed {
			break
		}
	}
	s.channelQueue.DequeueN(i)
}

// TxFailed drops id from the pending set and rewinds the producing channel's
// frame cursor to the failed frame, so the next TxData call hands out that
// frame again, followed by any later frames of the same channel. The frame
// bytes stay in the channel's frame list, so nothing needs re-encoding.
func (s *channelManager) TxFailed(id TransactionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.pending[id]; ok {
		delete(s.pending, id)
		if fn := int(id.FrameNumber); fn < ch.nextFrame {
			ch.nextFrame = fn
		}
		s.log.Warn("transaction failed, will retry", "id", id)
	} else {
		s.log.Warn("transaction from unknown channel marked as failed", "id", id)
	}
}

// PendingCount returns the number of frames handed out but not yet resolved.
func (s *channelManager) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
