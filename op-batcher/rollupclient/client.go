// Package rollupclient is a thin JSON-RPC client for the rollup node.
// Only SyncStatus is on the hot path; the others are exposed for
// completeness and have no caller in this service.
package rollupclient

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/archon-rollup/archon-batcher/op-service/eth"
)

// Client talks the rollup node's optimism_* JSON-RPC namespace.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to a rollup node's JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: c}, nil
}

// NewClient wraps an already-dialed rpc.Client, for tests that supply an
// in-memory or httptest-backed client.
func NewClient(c *rpc.Client) *Client {
	return &Client{rpc: c}
}

// SyncStatus calls optimism_syncStatus.
func (c *Client) SyncStatus(ctx context.Context) (*eth.SyncStatus, error) {
	var out eth.SyncStatus
	if err := c.rpc.CallContext(ctx, &out, "optimism_syncStatus"); err != nil {
		return nil, err
	}
	return &out, nil
}

// OutputAtBlock calls optimism_outputAtBlock(num).
func (c *Client) OutputAtBlock(ctx context.Context, num uint64) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.rpc.CallContext(ctx, &out, "optimism_outputAtBlock", hexutil.EncodeUint64(num)); err != nil {
		return nil, err
	}
	return out, nil
}

// RollupConfig calls optimism_rollupConfig, returning the opaque config JSON.
func (c *Client) RollupConfig(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.rpc.CallContext(ctx, &out, "optimism_rollupConfig"); err != nil {
		return nil, err
	}
	return out, nil
}

// Version calls optimism_version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out string
	if err := c.rpc.CallContext(ctx, &out, "optimism_version"); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}
