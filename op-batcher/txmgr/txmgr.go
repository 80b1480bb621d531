// Package txmgr turns frame bytes into a confirmed L1 transaction, per spec
// §4.3. It owns the single piece of truly external, non-reorg-recoverable
// state in this pipeline: the sender's L1 nonce.
package txmgr

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrTransactionReceiptNotFound is returned by SendTransaction when a
// transaction reported as confirmed carries no receipt. Confirmation is only
// reported once a receipt has been fetched, so a transaction whose receipt
// never appears is not failed with this error: SendTransaction keeps waiting
// and resubmitting until ctx is done.
var ErrTransactionReceiptNotFound = errors.New("txmgr: transaction receipt not found")

// ErrSendTransactionLocked signals a concurrent send attempt on the same
// sender. Concurrent sends with different ids are serialized by a per-sender
// mutex instead; this error is returned when SendTransaction is called with an
// id whose previous send has not finished yet.
var ErrSendTransactionLocked = errors.New("txmgr: concurrent send on the same sender")

// L1Client is the subset of an Ethereum JSON-RPC client the transaction
// manager needs: nonce and gas-price queries, broadcast, and receipts.
type L1Client interface {
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Config configures the transaction manager, per spec §4.3.
type Config struct {
	L1ChainID         *big.Int
	BatchInboxAddress common.Address
	SenderAddress     common.Address
	SenderPrivateKey  *ecdsa.PrivateKey
	// NumConfirmations is how many L1 confirmations to wait for before
	// treating a submission as final. Spec §4.3.2 specifies 6.
	NumConfirmations uint64
	// NetworkTimeout bounds any single RPC call.
	NetworkTimeout time.Duration
	// ResubmissionInterval is how often the gas escalator re-checks for
	// confirmation and, while the transaction has not confirmed, resubmits at
	// a higher gas price. Spec §4.3.2 allows but does not mandate this.
	ResubmissionInterval time.Duration
	// GasPriceBumpPercent is the percentage increase applied to gas price
	// on each resubmission (e.g. 12 for a 12% bump).
	GasPriceBumpPercent int64
}

func (c Config) senderKey() string {
	return c.SenderAddress.Hex()
}

// TxManager crafts, signs, submits, and confirms L1 transactions to the
// batch inbox. Per spec §4.3.2/§5, at most one send is ever in flight per
// sender — enforced here with a mutex rather than relying on callers'
// discipline.
type TxManager struct {
	cfg    Config
	client L1Client
	log    log.Logger

	// locks serializes SendTransaction calls per sender address. In this
	// service there is exactly one sender (the batcher account), so this
	// degenerates to a single mutex, matching spec §9's "most processes
	// have one batcher account" note.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// inFlight is a bounded LRU of ids currently being sent, giving the
	// at-most-one-in-flight check an O(1) membership test instead of
	// scanning the channel manager's PendingTx map.
	inFlight *lru.Cache[string, struct{}]

	closed bool
	mu     sync.Mutex
}

func NewTxManager(logger log.Logger, cfg Config, client L1Client) *TxManager {
	inFlight, _ := lru.New[string, struct{}](1024)
	return &TxManager{
		cfg:      cfg,
		client:   client,
		log:      logger,
		locks:    make(map[string]*sync.Mutex),
		inFlight: inFlight,
	}
}

func (m *TxManager) senderLock() *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	key := m.cfg.senderKey()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Close marks the manager closed; in-flight sends are allowed to finish,
// but no new ones should be started by callers. SendTransaction itself does
// not consult IsClosed.
func (m *TxManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *TxManager) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Craft builds an unsigned legacy transaction template addressed to the
// batch inbox, per spec §4.3.1. It queries L1 for the current nonce and gas
// price but never broadcasts.
func (m *TxManager) Craft(ctx context.Context, data []byte) (*types.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()

	nonce, err := m.client.NonceAt(ctx, m.cfg.SenderAddress, nil)
	if err != nil {
		return nil, fmt.Errorf("querying nonce: %w", err)
	}
	gasPrice, err := m.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying gas price: %w", err)
	}

	// Default the gas limit to the intrinsic cost of a plain call carrying
	// data: 21000 plus 16 per non-zero and 4 per zero calldata byte.
	gas := uint64(21_000)
	for _, b := range data {
		if b == 0 {
			gas += 4
		} else {
			gas += 16
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &m.cfg.BatchInboxAddress,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	return tx, nil
}

// SendTransaction crafts, signs, submits, and confirms a single transaction
// carrying data, identified by id (typically a TransactionID's string form),
// returning its receipt once NumConfirmations have passed. Per spec
// §4.3.2/§5, at most one caller at a time per sender may be inside this
// method; the per-sender mutex is what actually enforces that, the inFlight
// cache is a defensive second check that catches a caller resubmitting the
// same id before its previous attempt finished.
func (m *TxManager) SendTransaction(ctx context.Context, id string, data []byte) (*types.Receipt, error) {
	if _, dup := m.inFlight.Get(id); dup {
		return nil, ErrSendTransactionLocked
	}
	m.inFlight.Add(id, struct{}{})
	defer m.inFlight.Remove(id)

	lock := m.senderLock()
	lock.Lock()
	defer lock.Unlock()

	tx, err := m.Craft(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("crafting transaction: %w", err)
	}

	signer := types.LatestSignerForChainID(m.cfg.L1ChainID)
	signedTx, err := types.SignTx(tx, signer, m.cfg.SenderPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}

	return m.submitAndConfirm(ctx, signedTx, signer)
}

// submitAndConfirm broadcasts signedTx and waits for NumConfirmations,
// optionally resubmitting at increasing gas price until the transaction is
// included (the gas-escalator policy spec §4.3.2 allows but does not
// mandate). Any resubmission preserves nonce and data, only the gas price
// and signature change.
func (m *TxManager) submitAndConfirm(ctx context.Context, signedTx *types.Transaction, signer types.Signer) (*types.Receipt, error) {
	if err := m.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("broadcasting transaction: %w", err)
	}
	m.log.Info("submitted transaction", "hash", signedTx.Hash(), "nonce", signedTx.Nonce())

	current := signedTx
	resubInterval := m.cfg.ResubmissionInterval
	if resubInterval <= 0 {
		resubInterval = 12 * time.Second
	}
	ticker := time.NewTicker(resubInterval)
	defer ticker.Stop()

	for {
		receipt, confirmed, err := m.checkConfirmations(ctx, current.Hash())
		if err != nil {
			return nil, err
		}
		if confirmed {
			if receipt == nil {
				return nil, ErrTransactionReceiptNotFound
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			bumped, err := m.escalate(current, signer)
			if err != nil {
				m.log.Warn("failed to build escalated transaction, retrying at same gas price", "err", err)
				continue
			}
			if err := m.client.SendTransaction(ctx, bumped); err != nil {
				m.log.Warn("resubmission failed, will retry", "err", err)
				continue
			}
			current = bumped
			m.log.Info("resubmitted transaction at higher gas price",
				"hash", current.Hash(), "nonce", current.Nonce(), "gas_price", current.GasPrice())
		}
	}
}

// escalate rebuilds tx with the same nonce and data but a higher gas price,
// per spec §4.3.2's resubmission contract.
func (m *TxManager) escalate(tx *types.Transaction, signer types.Signer) (*types.Transaction, error) {
	bump := m.cfg.GasPriceBumpPercent
	if bump <= 0 {
		bump = 12
	}
	newPrice := new(big.Int).Mul(tx.GasPrice(), big.NewInt(100+bump))
	newPrice.Div(newPrice, big.NewInt(100))

	replacement := types.NewTx(&types.LegacyTx{
		Nonce:    tx.Nonce(),
		To:       tx.To(),
		Value:    tx.Value(),
		Gas:      tx.Gas(),
		GasPrice: newPrice,
		Data:     tx.Data(),
	})
	return types.SignTx(replacement, signer, m.cfg.SenderPrivateKey)
}

// checkConfirmations polls for a receipt and reports whether the
// transaction has reached NumConfirmations.
func (m *TxManager) checkConfirmations(ctx context.Context, txHash common.Hash) (*types.Receipt, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()

	receipt, err := m.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, false, nil // not yet mined; not an error
	}
	if receipt == nil {
		return nil, false, nil
	}

	head, err := m.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("querying L1 head: %w", err)
	}
	required := m.cfg.NumConfirmations
	if required == 0 {
		required = 6
	}
	if head.Number.Uint64() < receipt.BlockNumber.Uint64()+required-1 {
		return nil, false, nil
	}
	return receipt, true, nil
}

func (m *TxManager) timeout() time.Duration {
	if m.cfg.NetworkTimeout <= 0 {
		return 10 * time.Second
	}
	return m.cfg.NetworkTimeout
}

// PrivateKeyToAddress derives the sender address from a private key, for
// config validation at startup.
func PrivateKeyToAddress(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
