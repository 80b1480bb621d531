package batcher

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/archon-rollup/archon-batcher/op-service/eth"
)

func mkBlock(number uint64, hash, parent common.Hash) eth.L2Block {
	return eth.L2Block{Number: number, Hash: hash, ParentHash: parent, Time: number * 2}
}

func TestBlockStateAppendChain(t *testing.T) {
	s := NewBlockState()

	h0 := common.HexToHash("0x01")
	h1 := common.HexToHash("0x02")
	h2 := common.HexToHash("0x03")

	require.NoError(t, s.Append(mkBlock(0, h0, common.Hash{})))
	require.NoError(t, s.Append(mkBlock(1, h1, h0)))
	require.NoError(t, s.Append(mkBlock(2, h2, h1)))

	tip, ok := s.Tip()
	require.True(t, ok)
	require.Equal(t, h2, tip)
	require.Equal(t, 3, s.Len())
}

func TestBlockStateRejectsMissingHash(t *testing.T) {
	s := NewBlockState()
	err := s.Append(eth.L2Block{Number: 0, ParentHash: common.Hash{}})
	require.ErrorIs(t, err, ErrMissingBlockHash)
}

func TestBlockStateDetectsReorg(t *testing.T) {
	s := NewBlockState()
	h0 := common.HexToHash("0x01")
	h1 := common.HexToHash("0x02")
	require.NoError(t, s.Append(mkBlock(0, h0, common.Hash{})))

	// A block whose parent hash does not match the current tip is a reorg.
	err := s.Append(mkBlock(1, h1, common.HexToHash("0xdead")))
	require.ErrorIs(t, err, ErrL2Reorg)

	// The tip is unaffected by the rejected append.
	tip, ok := s.Tip()
	require.True(t, ok)
	require.Equal(t, h0, tip)
}

func TestBlockStateDrainPreservesTip(t *testing.T) {
	s := NewBlockState()
	h0 := common.HexToHash("0x01")
	h1 := common.HexToHash("0x02")
	require.NoError(t, s.Append(mkBlock(0, h0, common.Hash{})))
	require.NoError(t, s.Append(mkBlock(1, h1, h0)))

	drained := s.Drain()
	require.Len(t, drained, 2)
	require.Equal(t, 0, s.Len())

	tip, ok := s.Tip()
	require.True(t, ok)
	require.Equal(t, h1, tip)

	// The next append must still continue from the preserved tip.
	h2 := common.HexToHash("0x03")
	require.NoError(t, s.Append(mkBlock(2, h2, h1)))
}

func TestBlockStateClearResetsTip(t *testing.T) {
	s := NewBlockState()
	h0 := common.HexToHash("0x01")
	require.NoError(t, s.Append(mkBlock(0, h0, common.Hash{})))

	s.Clear()
	_, ok := s.Tip()
	require.False(t, ok)
	require.Equal(t, 0, s.Len())

	// After Clear, any block (even one with an unrelated parent) is accepted
	// as the new chain start.
	require.NoError(t, s.Append(mkBlock(5, common.HexToHash("0x09"), common.HexToHash("0xff"))))
}
