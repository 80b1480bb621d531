package batcher

import (
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/archon-rollup/archon-batcher/op-batcher/metrics"
	"github.com/archon-rollup/archon-batcher/op-service/eth"
)

func newTestChannelManager() *channelManager {
	return NewChannelManager(log.NewLogger(log.DiscardHandler()), metrics.NoopMetrics{}, ChannelConfig{
		MaxFrameSize:    64,
		CompressionAlgo: AlgoZlib,
	})
}

func TestChannelManagerTxDataExhaustedWhenEmpty(t *testing.T) {
	cm := newTestChannelManager()
	_, _, err := cm.TxData(eth.BlockID{Number: 1})
	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, io.EOF)
}

func TestChannelManagerProducesFramesInOrder(t *testing.T) {
	cm := newTestChannelManager()

	h0 := common.HexToHash("0x01")
	require.NoError(t, cm.AddL2Block(eth.L2Block{Number: 0, Hash: h0}))
	require.NoError(t, cm.AddL2Block(eth.L2Block{Number: 1, Hash: common.HexToHash("0x02"), ParentHash: h0}))

	var ids []TransactionID
	for {
		_, id, err := cm.TxData(eth.BlockID{Number: 10})
		if err == ErrExhausted {
			break
		}
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NotEmpty(t, ids)
	for i := 1; i < len(ids); i++ {
		require.True(t, ids[i-1].Less(ids[i]))
	}
}

func TestChannelManagerPrunesConfirmedChannels(t *testing.T) {
	cm := newTestChannelManager()
	require.NoError(t, cm.AddL2Block(eth.L2Block{Number: 0, Hash: common.HexToHash("0x01")}))

	_, id, err := cm.TxData(eth.BlockID{Number: 10})
	require.NoError(t, err)
	require.Equal(t, 1, cm.PendingCount())

	cm.TxConfirmed(id, eth.BlockID{Number: 11})
	require.Equal(t, 0, cm.PendingCount())
	require.Equal(t, 0, cm.channelQueue.Len())
}

func TestChannelManagerTxFailedAllowsRetry(t *testing.T) {
	cm := newTestChannelManager()
	require.NoError(t, cm.AddL2Block(eth.L2Block{Number: 0, Hash: common.HexToHash("0x01")}))

	_, id, err := cm.TxData(eth.BlockID{Number: 10})
	require.NoError(t, err)

	cm.TxFailed(id)
	require.Equal(t, 0, cm.PendingCount())

	_, retryID, err := cm.TxData(eth.BlockID{Number: 10})
	require.NoError(t, err)
	require.Equal(t, id, retryID)
}

func TestChannelManagerClearResetsEverything(t *testing.T) {
	cm := newTestChannelManager()
	require.NoError(t, cm.AddL2Block(eth.L2Block{Number: 0, Hash: common.HexToHash("0x01")}))
	_, _, err := cm.TxData(eth.BlockID{Number: 10})
	require.NoError(t, err)

	cm.Clear()
	require.Equal(t, 0, cm.PendingCount())
	require.Equal(t, 0, cm.channelQueue.Len())
	require.Equal(t, 0, cm.state.Len())
}
