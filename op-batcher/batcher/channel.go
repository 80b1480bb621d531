package batcher

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/klauspost/compress/zlib"

	"github.com/archon-rollup/archon-batcher/op-service/eth"
)

// CompressionAlgo selects the compressor used when a channel's accumulated
// block data is flushed into frames.
type CompressionAlgo string

const (
	AlgoZlib   CompressionAlgo = "zlib"
	AlgoBrotli CompressionAlgo = "brotli"
)

// ChannelConfig controls how blocks are packed into channels and split into
// frames.
type ChannelConfig struct {
	// MaxFrameSize bounds the size of a single frame's data payload.
	MaxFrameSize int
	// CompressionAlgo picks the compressor applied to the RLP-encoded block batch.
	CompressionAlgo CompressionAlgo
}

func (c ChannelConfig) compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch c.CompressionAlgo {
	case AlgoBrotli:
		w = brotli.NewWriter(&buf)
	case AlgoZlib, "":
		w = zlib.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("unknown compression algo %q", c.CompressionAlgo)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// rlpBlockBatch is the RLP-encodable payload for one channel: the ordered
// transactions of every L2 block folded into it.
type rlpBlockBatch struct {
	Blocks []rlpBlock
}

type rlpBlock struct {
	Number     uint64
	Hash       [32]byte
	ParentHash [32]byte
	Time       uint64
	TxData     [][]byte
}

func encodeBlockBatch(blocks []eth.L2Block) ([]byte, error) {
	batch := rlpBlockBatch{Blocks: make([]rlpBlock, len(blocks))}
	for i, b := range blocks {
		txData := make([][]byte, len(b.Txs))
		for j, tx := range b.Txs {
			raw, err := tx.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("marshaling tx %d of block %d: %w", j, b.Number, err)
			}
			txData[j] = raw
		}
		batch.Blocks[i] = rlpBlock{
			Number:     b.Number,
			Hash:       b.Hash,
			ParentHash: b.ParentHash,
			Time:       b.Time,
			TxData:     txData,
		}
	}
	return rlp.EncodeToBytes(&batch)
}

// FrameBytes is the data payload of a single L1 transaction to the batch
// inbox: one frame of a channel.
type FrameBytes []byte

// TransactionID uniquely identifies a frame within a single process. Its
// total order is defined first by ChannelID (lexicographic) then by
// FrameNumber. Fields are considered opaque by the Transaction
// Manager, which only ever treats the ID as a dedup/tracking key.
type TransactionID struct {
	ChannelID   string
	FrameNumber uint64
}

func (id TransactionID) String() string {
	return fmt.Sprintf("%s:%d", id.ChannelID, id.FrameNumber)
}

// Less orders ids first by ChannelID, then by FrameNumber.
func (id TransactionID) Less(other TransactionID) bool {
	if id.ChannelID != other.ChannelID {
		return id.ChannelID < other.ChannelID
	}
	return id.FrameNumber < other.FrameNumber
}

// txData pairs a frame's bytes with its TransactionID, the unit the channel
// manager hands to the transaction manager.
type txData struct {
	id    TransactionID
	frame FrameBytes
}

func (t txData) ID() TransactionID { return t.id }
func (t txData) Bytes() FrameBytes { return t.frame }
func (t txData) Len() int          { return len(t.frame) }

// channel is one logical grouping of L2 block data, split into frames for
// L1 transport. Channel ids increase monotonically and are formatted so
// their lexicographic order matches creation order, which is what gives
// TransactionID its total order across channels.
type channel struct {
	id        string
	l1Origin  eth.BlockID
	blocks    []eth.L2Block
	frames    [][]byte
	nextFrame int
	inputLen  int
	outputLen int
}

func newChannel(id string, l1Origin eth.BlockID, blocks []eth.L2Block, cfg ChannelConfig) (*channel, error) {
	raw, err := encodeBlockBatch(blocks)
	if err != nil {
		return nil, fmt.Errorf("encoding block batch: %w", err)
	}
	compressed, err := cfg.compress(raw)
	if err != nil {
		return nil, fmt.Errorf("compressing block batch: %w", err)
	}

	maxFrame := cfg.MaxFrameSize
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	var frames [][]byte
	for off := 0; off < len(compressed); off += maxFrame {
		end := off + maxFrame
		if end > len(compressed) {
			end = len(compressed)
		}
		frames = append(frames, compressed[off:end])
	}
	if len(frames) == 0 {
		// Always emit at least one (possibly empty) frame so an opened
		// channel is guaranteed to produce txData.
		frames = [][]byte{{}}
	}

	return &channel{
		id:        id,
		l1Origin:  l1Origin,
		blocks:    blocks,
		frames:    frames,
		inputLen:  len(raw),
		outputLen: len(compressed),
	}, nil
}

// HasTxData reports whether the channel has at least one more unsent frame.
func (c *channel) HasTxData() bool {
	return c.nextFrame < len(c.frames)
}

// NoneSubmitted reports whether no frame of this channel has been handed
// out yet.
func (c *channel) NoneSubmitted() bool {
	return c.nextFrame == 0
}

// NextTxData returns the channel's next frame as txData, advancing the
// internal cursor. Callers must check HasTxData first.
func (c *channel) NextTxData() txData {
	fn := uint64(c.nextFrame)
	data := c.frames[c.nextFrame]
	c.nextFrame++
	return txData{
		id:    TransactionID{ChannelID: c.id, FrameNumber: fn},
		frame: append(FrameBytes(nil), data...),
	}
}

func (c *channel) TotalFrames() int { return len(c.frames) }
func (c *channel) InputBytes() int  { return c.inputLen }
func (c *channel) OutputBytes() int { return c.outputLen }

// DefaultMaxFrameSize is used when a ChannelConfig does not set one.
const DefaultMaxFrameSize = 120_000
