// Package eth holds the small, dependency-light types shared between the
// L1 driver, channel manager, and transaction manager. It mirrors the role
// op-service/eth plays in the wider monorepo this batcher is patterned
// after, trimmed to what the batch-submission pipeline actually needs.
package eth

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BlockID opaquely references a chain block, either by hash or by number.
// It is comparable and usable as a map key.
type BlockID struct {
	Hash   common.Hash
	Number uint64
}

func (id BlockID) String() string {
	if id.Hash != (common.Hash{}) {
		return fmt.Sprintf("%s:%d", id.Hash.TerminalString(), id.Number)
	}
	return fmt.Sprintf("#%d", id.Number)
}

// ToBlockID derives a BlockID from a go-ethereum block, preferring the hash.
func ToBlockID(block *types.Block) BlockID {
	return BlockID{Hash: block.Hash(), Number: block.NumberU64()}
}

// HeaderBlockID derives a BlockID from an L1 header, falling back to the
// block number alone if the header carries no hash (defensive; go-ethereum
// headers always compute a hash, but RPC responses can be malformed).
func HeaderBlockID(h *types.Header) (BlockID, bool) {
	if h == nil {
		return BlockID{}, false
	}
	if h.Hash() != (common.Hash{}) {
		return BlockID{Hash: h.Hash(), Number: h.Number.Uint64()}, true
	}
	if h.Number != nil {
		return BlockID{Number: h.Number.Uint64()}, true
	}
	return BlockID{}, false
}

// ReceiptBlockID derives the BlockID of the L1 block a receipt was included in.
func ReceiptBlockID(r *types.Receipt) BlockID {
	return BlockID{Hash: r.BlockHash, Number: r.BlockNumber.Uint64()}
}

// L2Block is the data the channel manager needs out of a full L2 block body:
// its identity, its parent, and its transactions, to be packed into a channel.
type L2Block struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Time       uint64
	Txs        types.Transactions
}

// MissingHash reports whether the block carries no hash, which the Block
// State append path must reject per spec.
func (b L2Block) MissingHash() bool {
	return b.Hash == (common.Hash{})
}

func (b L2Block) ID() BlockID {
	return BlockID{Hash: b.Hash, Number: b.Number}
}

// L2BlockFromRPC adapts a go-ethereum block (as returned by
// eth_getBlockByNumber with full transactions) into an L2Block.
func L2BlockFromRPC(block *types.Block) L2Block {
	return L2Block{
		Number:     block.NumberU64(),
		Hash:       block.Hash(),
		ParentHash: block.ParentHash(),
		Time:       block.Time(),
		Txs:        block.Transactions(),
	}
}

// SyncStatus is the snapshot returned by the rollup node's
// optimism_syncStatus JSON-RPC method. Every field is a plain block number;
// this intentionally does not carry full L1BlockRef/L2BlockRef objects the
// way upstream op-node's richer sync status does, because the pipeline only
// ever needs the numbers to compute ingestion ranges.
type SyncStatus struct {
	CurrentL1          uint64 `json:"current_l1"`
	CurrentL1Finalized uint64 `json:"current_l1_finalized"`
	HeadL1             uint64 `json:"head_l1"`
	SafeL1             uint64 `json:"safe_l1"`
	FinalizedL1        uint64 `json:"finalized_l1"`
	UnsafeL2           uint64 `json:"unsafe_l2"`
	SafeL2             uint64 `json:"safe_l2"`
	FinalizedL2        uint64 `json:"finalized_l2"`
}

// Valid reports whether the node has synced far enough to trust this status,
// per spec §3: a status with head_l1 == 0 is invalid.
func (s SyncStatus) Valid() bool {
	return s.HeadL1 != 0
}

// BigNum is a convenience for building *big.Int block-number arguments for
// go-ethereum RPC calls without scattering new(big.Int).SetUint64 everywhere.
func BigNum(n uint64) *big.Int {
	return new(big.Int).SetUint64(n)
}
