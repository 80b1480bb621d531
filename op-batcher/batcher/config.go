package batcher

import (
	"crypto/ecdsa"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/go-multierror"
)

// Fatal configuration errors, per spec §7. Each is surfaced at startup,
// before any actor is spawned.
var (
	ErrMissingL1RPC             = errors.New("config: missing L1 RPC URL")
	ErrMissingL2RPC             = errors.New("config: missing L2 RPC URL")
	ErrMissingRollupRPC         = errors.New("config: missing rollup node RPC URL")
	ErrMissingSenderPrivateKey  = errors.New("config: missing batcher sender private key")
	ErrMissingBatchInboxAddress = errors.New("config: missing batch inbox address")
	ErrMissingL1ChainID         = errors.New("config: missing L1 chain id")
)

// Config is the immutable configuration for one batcher process, per spec §3
// and §6. It is constructed once at startup by the archon-batcher command's
// buildConfig and never
// mutated afterward; every actor receives it (or the slice it needs) by value
// or as a read-only reference.
type Config struct {
	L1RPCURL     string
	L2RPCURL     string
	RollupRPCURL string

	BatchInboxAddress common.Address
	L1ChainID         uint64

	SenderPrivateKey *ecdsa.PrivateKey
	SenderAddress    common.Address

	// PollInterval governs both the L1 Driver's polling cadence and the
	// Channel Manager's ingestion-loop cadence, per spec §6 default of 5s.
	PollInterval time.Duration
	// NetworkTimeout bounds any single RPC call made by any actor.
	NetworkTimeout time.Duration

	NumConfirmations uint64

	ChannelConfig ChannelConfig

	MetricsConfig MetricsConfig
}

// MetricsConfig controls the optional metrics HTTP endpoint. The endpoint
// itself is an external collaborator per spec §1, but the flags to enable it
// are part of this service's CLI surface (see SPEC_FULL.md §4).
type MetricsConfig struct {
	Enabled    bool
	ListenAddr string
	ListenPort int
}

// Check validates the fatal-error conditions from spec §7. It does not
// attempt to dial anything; it only checks the shape of the configuration.
// Every missing field is reported at once, rather than stopping at the
// first, so an operator fixing a fresh deployment's flags doesn't have to
// run the process repeatedly just to discover the next missing value.
func (c Config) Check() error {
	var result *multierror.Error
	if c.L1RPCURL == "" {
		result = multierror.Append(result, ErrMissingL1RPC)
	}
	if c.L2RPCURL == "" {
		result = multierror.Append(result, ErrMissingL2RPC)
	}
	if c.RollupRPCURL == "" {
		result = multierror.Append(result, ErrMissingRollupRPC)
	}
	if c.SenderPrivateKey == nil {
		result = multierror.Append(result, ErrMissingSenderPrivateKey)
	}
	if c.BatchInboxAddress == (common.Address{}) {
		result = multierror.Append(result, ErrMissingBatchInboxAddress)
	}
	if c.L1ChainID == 0 {
		result = multierror.Append(result, ErrMissingL1ChainID)
	}
	return result.ErrorOrNil()
}

// WithDerivedSender fills in SenderAddress from SenderPrivateKey if it has
// not already been set explicitly, matching how the real CLI lets an
// operator supply either the key alone or both key and address.
func (c Config) WithDerivedSender() Config {
	if c.SenderAddress == (common.Address{}) && c.SenderPrivateKey != nil {
		c.SenderAddress = crypto.PubkeyToAddress(c.SenderPrivateKey.PublicKey)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.NetworkTimeout <= 0 {
		c.NetworkTimeout = 10 * time.Second
	}
	if c.NumConfirmations == 0 {
		c.NumConfirmations = 6
	}
	if c.ChannelConfig.MaxFrameSize <= 0 {
		c.ChannelConfig.MaxFrameSize = DefaultMaxFrameSize
	}
	if c.ChannelConfig.CompressionAlgo == "" {
		c.ChannelConfig.CompressionAlgo = AlgoZlib
	}
	return c
}
