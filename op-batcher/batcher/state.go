package batcher

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-rollup/archon-batcher/internal/queue"
	"github.com/archon-rollup/archon-batcher/op-service/eth"
)

// ErrMissingBlockHash is returned by BlockState.Append when the supplied
// block carries no hash, per spec §3: "Block State requires hash and
// parent_hash; a block missing hash is rejected."
var ErrMissingBlockHash = errors.New("block state: block missing hash")

// ErrL2Reorg is returned by BlockState.Append when the new block's parent
// hash does not match the current tip. The name departs from the historical
// "L1Reorg" naming in the design this pipeline is built from (see
// original_source/src/channels.rs), because it signals an L2 reorg.
var ErrL2Reorg = errors.New("block state: l2 reorg detected")

// BlockState is the append-only ordered log of ingested L2 blocks described
// in spec §3. It is owned by the Channel Manager's ingestion loop; the
// forward-path frame producer reads it under the same mutex.
//
// Invariants (spec §8 property 1 and 2):
//  1. for any two adjacent entries, entry[i+1].ParentHash == entry[i].Hash
//  2. Tip() equals the hash of the last entry whenever the log is non-empty
type BlockState struct {
	mu     sync.Mutex
	blocks queue.Queue[eth.L2Block]
	tip    common.Hash
	hasTip bool
}

// NewBlockState constructs an empty Block State.
func NewBlockState() *BlockState {
	return &BlockState{}
}

// Append adds block to the log, enforcing the reorg and missing-hash
// invariants of spec §4.2.2. The caller (the ingestion loop) MUST respond to
// ErrL2Reorg by calling Clear and resetting its own lastStoredBlockNumber to
// zero.
func (s *BlockState) Append(block eth.L2Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if block.MissingHash() {
		return ErrMissingBlockHash
	}
	if s.hasTip && s.tip != block.ParentHash {
		return ErrL2Reorg
	}

	s.blocks.Enqueue(block)
	s.tip = block.Hash
	s.hasTip = true
	return nil
}

// Tip returns the current tip hash and whether the log is non-empty.
func (s *BlockState) Tip() (common.Hash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tip, s.hasTip
}

// Len returns the number of blocks currently held.
func (s *BlockState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks.Len()
}

// Blocks returns a copy of the blocks accumulated since the last Drain,
// leaving the log untouched.
func (s *BlockState) Blocks() []eth.L2Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]eth.L2Block, s.blocks.Len())
	for i := range out {
		out[i], _ = s.blocks.PeekN(i)
	}
	return out
}

// Drain returns every block accumulated so far and removes them from the
// log, leaving the tip untouched (the tip only resets on Clear, so the next
// appended block is still checked for continuity against the last drained
// block).
func (s *BlockState) Drain() []eth.L2Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, _ := s.blocks.DequeueN(s.blocks.Len())
	return out
}

// Clear resets the Block State to empty with an absent tip. It is invoked on
// detected reorg and on explicit administrative request (spec §4.2.4).
func (s *BlockState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks.Clear()
	s.tip = common.Hash{}
	s.hasTip = false
}
