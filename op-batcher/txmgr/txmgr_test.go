package txmgr

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
)

// fakeL1Client is an in-memory stand-in for an Ethereum JSON-RPC client: it
// mines every broadcast transaction into a monotonically increasing block
// immediately, so confirmation waits are driven by simulated block numbers
// rather than wall-clock time.
type fakeL1Client struct {
	mu       sync.Mutex
	nonce    uint64
	gasPrice *big.Int
	headNum  uint64
	receipts map[common.Hash]*types.Receipt
}

func newFakeL1Client() *fakeL1Client {
	return &fakeL1Client{
		gasPrice: big.NewInt(1_000_000_000),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (f *fakeL1Client) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeL1Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeL1Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headNum++
	f.receipts[tx.Hash()] = &types.Receipt{
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(f.headNum),
		BlockHash:   common.BigToHash(new(big.Int).SetUint64(f.headNum)),
		Status:      types.ReceiptStatusSuccessful,
	}
	f.nonce = tx.Nonce() + 1
	return nil
}

func (f *fakeL1Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[txHash]
	if !ok {
		return nil, nil
	}
	return r, nil
}

func (f *fakeL1Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Simulate the chain advancing past the confirmation threshold
	// immediately, since this fake mines on every SendTransaction call.
	return &types.Header{Number: new(big.Int).SetUint64(f.headNum + 10)}, nil
}

func testManager(t *testing.T, client L1Client) *TxManager {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewTxManager(log.NewLogger(log.DiscardHandler()), Config{
		L1ChainID:         big.NewInt(1),
		BatchInboxAddress: common.HexToAddress("0xff00000000000000000000000000000000042069"),
		SenderAddress:     crypto.PubkeyToAddress(key.PublicKey),
		SenderPrivateKey:  key,
		NumConfirmations:  6,
		NetworkTimeout:    5 * time.Second,
	}, client)
}

func TestSendTransactionSucceeds(t *testing.T) {
	client := newFakeL1Client()
	m := testManager(t, client)

	receipt, err := m.SendTransaction(context.Background(), "0000000000000000:0", []byte{0xDE, 0xAD, 0xBE, 0xEF})
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
}

func TestNonceMonotonicallyIncreases(t *testing.T) {
	client := newFakeL1Client()
	m := testManager(t, client)

	var lastNonce uint64
	for i := 0; i < 3; i++ {
		tx, err := m.Craft(context.Background(), []byte{byte(i)})
		require.NoError(t, err)
		if i > 0 {
			require.Greater(t, tx.Nonce(), lastNonce)
		}
		lastNonce = tx.Nonce()

		_, err = m.SendTransaction(context.Background(), fmt.Sprintf("0000000000000000:%d", i), []byte{byte(i)})
		require.NoError(t, err)
	}
}

func TestCraftNeverBroadcasts(t *testing.T) {
	client := newFakeL1Client()
	m := testManager(t, client)

	_, err := m.Craft(context.Background(), []byte("hello"))
	require.NoError(t, err)
	require.Empty(t, client.receipts)
}
