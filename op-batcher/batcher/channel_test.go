package batcher

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"

	"github.com/archon-rollup/archon-batcher/op-service/eth"
)

func TestTransactionIDOrdering(t *testing.T) {
	a := TransactionID{ChannelID: "0000000000000000", FrameNumber: 3}
	b := TransactionID{ChannelID: "0000000000000000", FrameNumber: 4}
	c := TransactionID{ChannelID: "0000000000000001", FrameNumber: 0}

	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
	require.True(t, b.Less(c))
	require.True(t, a.Less(c))
}

func TestChannelIDsPreserveCreationOrder(t *testing.T) {
	// Channel ids are zero-padded hex counters (the same format the channel
	// manager uses); lexicographic string order must match numeric creation
	// order for TransactionID's total order to hold across many channels.
	var ids []string
	for i := uint64(0); i < 20; i++ {
		ids = append(ids, fmt.Sprintf("%016x", i))
	}
	for i := 1; i < len(ids); i++ {
		require.Less(t, ids[i-1], ids[i])
	}

	blocks := []eth.L2Block{{Number: 1, Hash: common.HexToHash("0x01")}}
	cfg := ChannelConfig{MaxFrameSize: 1024, CompressionAlgo: AlgoZlib}
	ch, err := newChannel(ids[0], eth.BlockID{}, blocks, cfg)
	require.NoError(t, err)
	require.True(t, ch.HasTxData())
}

func TestChannelCodecRoundTrip(t *testing.T) {
	tx := types.NewTx(&types.LegacyTx{Nonce: 0, Value: common.Big0, Gas: 21000, GasPrice: common.Big1})
	blocks := []eth.L2Block{
		{Number: 1, Hash: common.HexToHash("0xaa"), ParentHash: common.HexToHash("0xbb"), Time: 100, Txs: types.Transactions{tx}},
	}

	cfg := ChannelConfig{MaxFrameSize: 64, CompressionAlgo: AlgoZlib}
	ch, err := newChannel("0000000000000000", eth.BlockID{Number: 1}, blocks, cfg)
	require.NoError(t, err)
	require.True(t, ch.TotalFrames() >= 1)

	var frames [][]byte
	var frameNumbers []uint64
	for ch.HasTxData() {
		td := ch.NextTxData()
		frames = append(frames, td.frame)
		frameNumbers = append(frameNumbers, td.id.FrameNumber)
	}
	require.False(t, ch.HasTxData())

	// Frame numbers must be contiguous starting at zero.
	for i, f := range frames {
		require.NotNil(t, f)
		require.Equal(t, uint64(i), frameNumbers[i])
	}

	// Joining the frames and undoing compression and RLP encoding must give
	// back the original block.
	var joined []byte
	for _, f := range frames {
		joined = append(joined, f...)
	}
	zr, err := zlib.NewReader(bytes.NewReader(joined))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	var decoded rlpBlockBatch
	require.NoError(t, rlp.DecodeBytes(raw, &decoded))
	require.Len(t, decoded.Blocks, 1)
	require.Equal(t, blocks[0].Number, decoded.Blocks[0].Number)
	require.Equal(t, [32]byte(blocks[0].Hash), decoded.Blocks[0].Hash)
	require.Len(t, decoded.Blocks[0].TxData, 1)
}

func TestChannelAlwaysProducesAtLeastOneFrame(t *testing.T) {
	cfg := ChannelConfig{MaxFrameSize: 64, CompressionAlgo: AlgoZlib}
	ch, err := newChannel("0000000000000000", eth.BlockID{}, nil, cfg)
	require.NoError(t, err)
	require.Equal(t, 1, ch.TotalFrames())
	require.True(t, ch.HasTxData())
}

func TestBrotliCompressionAlgo(t *testing.T) {
	cfg := ChannelConfig{MaxFrameSize: 64, CompressionAlgo: AlgoBrotli}
	blocks := []eth.L2Block{{Number: 1, Hash: common.HexToHash("0x01")}}
	ch, err := newChannel("0000000000000000", eth.BlockID{}, blocks, cfg)
	require.NoError(t, err)
	require.True(t, ch.HasTxData())
}
