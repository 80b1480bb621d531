// Package flags defines the archon-batcher's command-line surface, in the
// urfave/cli style hakandemirdev-kroma's batcher command uses, adapted to
// cli/v2's altsrc-friendly flag definitions.
package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

const envPrefix = "ARCHON_BATCHER"

func prefixEnvVar(name string) []string {
	return []string{envPrefix + "_" + name}
}

var (
	L1RPCURLFlag = &cli.StringFlag{
		Name:    "l1-client-rpc-url",
		Usage:   "HTTP or WS RPC URL of the L1 node",
		EnvVars: append([]string{"L1_RPC_URL"}, prefixEnvVar("L1_RPC_URL")...),
	}
	L2RPCURLFlag = &cli.StringFlag{
		Name:    "l2-client-rpc-url",
		Usage:   "HTTP or WS RPC URL of the L2 execution node",
		EnvVars: append([]string{"L2_RPC_URL"}, prefixEnvVar("L2_RPC_URL")...),
	}
	RollupRPCURLFlag = &cli.StringFlag{
		Name:    "rollup-rpc-url",
		Usage:   "HTTP RPC URL of the rollup node's optimism_* namespace",
		EnvVars: prefixEnvVar("ROLLUP_RPC_URL"),
	}
	SequencerPrivateKeyFlag = &cli.StringFlag{
		Name:    "sequencer-private-key",
		Usage:   "Private key of the sequencer account (informational, not used to sign batcher transactions)",
		EnvVars: prefixEnvVar("SEQUENCER_PRIVATE_KEY"),
	}
	SequencerAddressFlag = &cli.StringFlag{
		Name:    "sequencer-address",
		Usage:   "Address of the sequencer account",
		EnvVars: prefixEnvVar("SEQUENCER_ADDRESS"),
	}
	ProposerPrivateKeyFlag = &cli.StringFlag{
		Name:    "proposer-private-key",
		Usage:   "Private key of the output-proposer account (informational)",
		EnvVars: prefixEnvVar("PROPOSER_PRIVATE_KEY"),
	}
	ProposerAddressFlag = &cli.StringFlag{
		Name:    "proposer-address",
		Usage:   "Address of the output-proposer account",
		EnvVars: prefixEnvVar("PROPOSER_ADDRESS"),
	}
	BatcherPrivateKeyFlag = &cli.StringFlag{
		Name:     "batcher-private-key",
		Usage:    "Private key of the batch-submission sender account",
		EnvVars:  prefixEnvVar("BATCHER_PRIVATE_KEY"),
		Required: true,
	}
	BatcherAddressFlag = &cli.StringFlag{
		Name:    "batcher-address",
		Usage:   "Address of the batch-submission sender account, derived from the private key if omitted",
		EnvVars: prefixEnvVar("BATCHER_ADDRESS"),
	}
	BatcherInboxFlag = &cli.StringFlag{
		Name:    "batcher-inbox",
		Usage:   "Address of the L1 batch inbox contract",
		EnvVars: prefixEnvVar("BATCHER_INBOX"),
		Value:   "0xff00000000000000000000000000000000042069",
	}
	L1ChainIDFlag = &cli.Uint64Flag{
		Name:    "l1-chain-id",
		Usage:   "Chain id of the L1 network the batcher submits to",
		EnvVars: prefixEnvVar("L1_CHAIN_ID"),
	}
	DataAvailabilityLayerFlag = &cli.StringFlag{
		Name:    "data-availability-layer",
		Usage:   "Identifier of the data-availability layer this batcher posts to (informational)",
		EnvVars: prefixEnvVar("DATA_AVAILABILITY_LAYER"),
		Value:   "l1-calldata",
	}
	NetworkFlag = &cli.StringFlag{
		Name:    "network",
		Usage:   "Named network preset, if any",
		EnvVars: prefixEnvVar("NETWORK"),
	}
	PollIntervalFlag = &cli.DurationFlag{
		Name:    "polling-interval",
		Usage:   "How often to poll L1, L2, and the rollup node",
		EnvVars: prefixEnvVar("POLL_INTERVAL"),
		Value:   5 * time.Second,
	}
	NumConfirmationsFlag = &cli.Uint64Flag{
		Name:    "num-confirmations",
		Usage:   "L1 confirmations required before a batch transaction is considered final",
		EnvVars: prefixEnvVar("NUM_CONFIRMATIONS"),
		Value:   6,
	}
	MaxFrameSizeFlag = &cli.IntFlag{
		Name:    "max-frame-size",
		Usage:   "Maximum size in bytes of a single frame's data payload",
		EnvVars: prefixEnvVar("MAX_FRAME_SIZE"),
		Value:   120_000,
	}
	CompressionAlgoFlag = &cli.StringFlag{
		Name:    "compression-algo",
		Usage:   "Channel compression algorithm: zlib or brotli",
		EnvVars: prefixEnvVar("COMPRESSION_ALGO"),
		Value:   "zlib",
	}
	LogLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level: trace, debug, info, warn, error, crit",
		EnvVars: prefixEnvVar("LOG_LEVEL"),
		Value:   "info",
	}
	MetricsEnabledFlag = &cli.BoolFlag{
		Name:    "metrics-enabled",
		Usage:   "Enable the Prometheus metrics HTTP endpoint",
		EnvVars: prefixEnvVar("METRICS_ENABLED"),
	}
	MetricsAddrFlag = &cli.StringFlag{
		Name:    "metrics-addr",
		Usage:   "Metrics server listen address",
		EnvVars: prefixEnvVar("METRICS_ADDR"),
		Value:   "127.0.0.1",
	}
	MetricsPortFlag = &cli.IntFlag{
		Name:    "metrics-port",
		Usage:   "Metrics server listen port",
		EnvVars: prefixEnvVar("METRICS_PORT"),
		Value:   8082,
	}
	ConfigFileFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "Path to an optional TOML file overlaying unset flags (flags and env vars always win)",
		EnvVars: prefixEnvVar("CONFIG_FILE"),
	}
)

// Flags is the full flag set registered on the CLI app, informational
// sequencer/proposer flags included even though the batcher itself only
// signs with the batcher key. They round out the process's configuration
// surface for operators who run sequencer, proposer, and batcher together.
var Flags = []cli.Flag{
	L1RPCURLFlag,
	L2RPCURLFlag,
	RollupRPCURLFlag,
	SequencerPrivateKeyFlag,
	SequencerAddressFlag,
	ProposerPrivateKeyFlag,
	ProposerAddressFlag,
	BatcherPrivateKeyFlag,
	BatcherAddressFlag,
	BatcherInboxFlag,
	L1ChainIDFlag,
	DataAvailabilityLayerFlag,
	NetworkFlag,
	PollIntervalFlag,
	NumConfirmationsFlag,
	MaxFrameSizeFlag,
	CompressionAlgoFlag,
	LogLevelFlag,
	MetricsEnabledFlag,
	MetricsAddrFlag,
	MetricsPortFlag,
	ConfigFileFlag,
}

// CheckRequired gives a clearer fatal message than cli/v2's default
// "Required flag" error.
func CheckRequired(ctx *cli.Context) error {
	if !ctx.IsSet(BatcherPrivateKeyFlag.Name) {
		return fmt.Errorf("flag %s is required", BatcherPrivateKeyFlag.Name)
	}
	if !ctx.IsSet(L1RPCURLFlag.Name) {
		return fmt.Errorf("flag %s is required (or set L1_RPC_URL)", L1RPCURLFlag.Name)
	}
	if !ctx.IsSet(L2RPCURLFlag.Name) {
		return fmt.Errorf("flag %s is required (or set L2_RPC_URL)", L2RPCURLFlag.Name)
	}
	if !ctx.IsSet(RollupRPCURLFlag.Name) {
		return fmt.Errorf("flag %s is required", RollupRPCURLFlag.Name)
	}
	if !ctx.IsSet(L1ChainIDFlag.Name) {
		return fmt.Errorf("flag %s is required", L1ChainIDFlag.Name)
	}
	return nil
}
