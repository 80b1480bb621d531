package rollupclient

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

// syncStatusAPI backs a tiny in-process JSON-RPC server exposing the
// optimism_* namespace this client talks to.
type syncStatusAPI struct{}

func (syncStatusAPI) SyncStatus(ctx context.Context) (map[string]uint64, error) {
	return map[string]uint64{
		"current_l1":          100,
		"current_l1_finalized": 90,
		"head_l1":             105,
		"safe_l1":             95,
		"finalized_l1":        90,
		"unsafe_l2":           50,
		"safe_l2":             40,
		"finalized_l2":        30,
	}, nil
}

func (syncStatusAPI) Version(ctx context.Context) (string, error) {
	return "v1.2.3", nil
}

func newTestServer(t *testing.T) *rpc.Client {
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("optimism", syncStatusAPI{}))

	httpServer := httptest.NewServer(server)
	t.Cleanup(httpServer.Close)

	client, err := rpc.DialHTTP(httpServer.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestSyncStatusRoundTrip(t *testing.T) {
	rawClient := newTestServer(t)
	c := NewClient(rawClient)

	status, err := c.SyncStatus(context.Background())
	require.NoError(t, err)
	require.True(t, status.Valid())
	require.Equal(t, uint64(105), status.HeadL1)
	require.Equal(t, uint64(40), status.SafeL2)
	require.Equal(t, uint64(50), status.UnsafeL2)
}

func TestVersion(t *testing.T) {
	rawClient := newTestServer(t)
	c := NewClient(rawClient)

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v1.2.3", v)
}
