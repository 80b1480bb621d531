package flags

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"
)

// fileOverlay is the subset of Config fields an operator can set from a
// TOML file instead of flags or environment variables. Every field is
// optional; a field present here only takes effect when the corresponding
// flag was not already set on the command line or via its env var, so
// flags and env vars always take precedence over the file.
type fileOverlay struct {
	L1RPCURL         string `toml:"l1_rpc_url"`
	L2RPCURL         string `toml:"l2_rpc_url"`
	RollupRPCURL     string `toml:"rollup_rpc_url"`
	BatcherInbox     string `toml:"batcher_inbox"`
	L1ChainID        uint64 `toml:"l1_chain_id"`
	PollInterval     string `toml:"polling_interval"`
	NumConfirmations uint64 `toml:"num_confirmations"`
	MaxFrameSize     int    `toml:"max_frame_size"`
	CompressionAlgo  string `toml:"compression_algo"`
	LogLevel         string `toml:"log_level"`
	MetricsEnabled   bool   `toml:"metrics_enabled"`
	MetricsAddr      string `toml:"metrics_addr"`
	MetricsPort      int    `toml:"metrics_port"`
}

// ApplyConfigFile, when ConfigFileFlag is set, decodes the TOML file at
// that path and fills in any flag that the operator didn't set explicitly.
// It is a no-op when the flag is absent.
func ApplyConfigFile(ctx *cli.Context) error {
	path := ctx.String(ConfigFileFlag.Name)
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	var overlay fileOverlay
	if _, err := toml.Decode(string(raw), &overlay); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	setIfUnset(ctx, L1RPCURLFlag.Name, overlay.L1RPCURL)
	setIfUnset(ctx, L2RPCURLFlag.Name, overlay.L2RPCURL)
	setIfUnset(ctx, RollupRPCURLFlag.Name, overlay.RollupRPCURL)
	setIfUnset(ctx, BatcherInboxFlag.Name, overlay.BatcherInbox)
	if overlay.L1ChainID != 0 {
		setIfUnset(ctx, L1ChainIDFlag.Name, strconv.FormatUint(overlay.L1ChainID, 10))
	}
	setIfUnset(ctx, PollIntervalFlag.Name, overlay.PollInterval)
	if overlay.NumConfirmations != 0 {
		setIfUnset(ctx, NumConfirmationsFlag.Name, strconv.FormatUint(overlay.NumConfirmations, 10))
	}
	if overlay.MaxFrameSize != 0 {
		setIfUnset(ctx, MaxFrameSizeFlag.Name, strconv.Itoa(overlay.MaxFrameSize))
	}
	setIfUnset(ctx, CompressionAlgoFlag.Name, overlay.CompressionAlgo)
	setIfUnset(ctx, LogLevelFlag.Name, overlay.LogLevel)
	if overlay.MetricsEnabled {
		setIfUnset(ctx, MetricsEnabledFlag.Name, "true")
	}
	setIfUnset(ctx, MetricsAddrFlag.Name, overlay.MetricsAddr)
	if overlay.MetricsPort != 0 {
		setIfUnset(ctx, MetricsPortFlag.Name, strconv.Itoa(overlay.MetricsPort))
	}
	return nil
}

func setIfUnset(ctx *cli.Context, name, value string) {
	if value == "" || ctx.IsSet(name) {
		return
	}
	// Set errors only on an unknown flag name, which would be a
	// programming error here, not an operator-facing one.
	_ = ctx.Set(name, value)
}
