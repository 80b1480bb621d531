// archon-batcher is the entrypoint process for the batch-submission
// pipeline: it parses CLI flags, constructs the actor pipeline, and runs it
// until an OS signal or a fatal actor error tells it to stop.
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/archon-rollup/archon-batcher/op-batcher/batcher"
	"github.com/archon-rollup/archon-batcher/op-batcher/flags"
	"github.com/archon-rollup/archon-batcher/op-batcher/metrics"
	"github.com/archon-rollup/archon-batcher/op-batcher/rollupclient"
	"github.com/archon-rollup/archon-batcher/op-batcher/txmgr"
	oplog "github.com/archon-rollup/archon-batcher/op-service/log"
	opmetrics "github.com/archon-rollup/archon-batcher/op-service/metrics"
)

var (
	Version   = "v0.0.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	oplog.SetupDefaults()

	app := cli.NewApp()
	app.Name = "archon-batcher"
	app.Usage = "submits L2 batches to a configured L1 batch inbox"
	app.Description = "Long-running service that drains ordered L2 blocks, packages them into " +
		"compressed channels and frames, and publishes them as L1 transactions."
	app.Flags = flags.Flags
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Action = runBatcher

	if err := app.Run(os.Args); err != nil {
		log.Crit("application failed", "err", err)
	}
}

func runBatcher(cliCtx *cli.Context) error {
	if err := flags.ApplyConfigFile(cliCtx); err != nil {
		return err
	}
	if err := flags.CheckRequired(cliCtx); err != nil {
		return err
	}

	logger := oplog.NewLogger(oplog.ParseLevel(cliCtx.String(flags.LogLevelFlag.Name)))

	cfg, err := buildConfig(cliCtx)
	if err != nil {
		return fmt.Errorf("building config: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l1RPC, err := rpc.DialContext(appCtx, cfg.L1RPCURL)
	if err != nil {
		return errors.Wrap(err, "dialing L1 RPC")
	}
	l1Client := ethclient.NewClient(l1RPC)

	l2RPC, err := rpc.DialContext(appCtx, cfg.L2RPCURL)
	if err != nil {
		return errors.Wrap(err, "dialing L2 RPC")
	}
	l2Client := ethclient.NewClient(l2RPC)

	rollupClient, err := rollupclient.Dial(appCtx, cfg.RollupRPCURL)
	if err != nil {
		return errors.Wrap(err, "dialing rollup node RPC")
	}
	defer rollupClient.Close()

	metr := metrics.NewPrometheusMetrics()
	if cfg.MetricsConfig.Enabled {
		go func() {
			srvCfg := opmetrics.Config{
				Enabled:    true,
				ListenAddr: cfg.MetricsConfig.ListenAddr,
				ListenPort: cfg.MetricsConfig.ListenPort,
			}
			if err := opmetrics.ListenAndServe(appCtx, logger, metr.Registry(), srvCfg); err != nil {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
	}

	txManager := txmgr.NewTxManager(logger, txmgr.Config{
		L1ChainID:            new(big.Int).SetUint64(cfg.L1ChainID),
		BatchInboxAddress:    cfg.BatchInboxAddress,
		SenderAddress:        cfg.SenderAddress,
		SenderPrivateKey:     cfg.SenderPrivateKey,
		NumConfirmations:     cfg.NumConfirmations,
		NetworkTimeout:       cfg.NetworkTimeout,
		ResubmissionInterval: cfg.PollInterval * 3,
	}, l1Client)

	orchestrator := batcher.NewOrchestrator(logger, metr, cfg, l1Client, l2Client, rollupClient, txManager)
	if err := orchestrator.Start(appCtx); err != nil {
		return fmt.Errorf("starting orchestrator: %w", err)
	}

	<-appCtx.Done()
	logger.Info("shutdown signal received, stopping orchestrator")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return orchestrator.Stop(stopCtx)
}

// buildConfig translates CLI flags into a batcher.Config, per spec §6/§7.
// L1_RPC_URL and L2_RPC_URL env vars take precedence via the flags package's
// EnvVars ordering; any value still missing here is a fatal config error
// surfaced by Config.Check.
func buildConfig(cliCtx *cli.Context) (batcher.Config, error) {
	key, err := parsePrivateKey(cliCtx.String(flags.BatcherPrivateKeyFlag.Name))
	if err != nil {
		return batcher.Config{}, fmt.Errorf("parsing batcher private key: %w", err)
	}

	cfg := batcher.Config{
		L1RPCURL:          cliCtx.String(flags.L1RPCURLFlag.Name),
		L2RPCURL:          cliCtx.String(flags.L2RPCURLFlag.Name),
		RollupRPCURL:      cliCtx.String(flags.RollupRPCURLFlag.Name),
		BatchInboxAddress: common.HexToAddress(cliCtx.String(flags.BatcherInboxFlag.Name)),
		L1ChainID:         cliCtx.Uint64(flags.L1ChainIDFlag.Name),
		SenderPrivateKey:  key,
		PollInterval:      cliCtx.Duration(flags.PollIntervalFlag.Name),
		NumConfirmations:  cliCtx.Uint64(flags.NumConfirmationsFlag.Name),
		ChannelConfig: batcher.ChannelConfig{
			MaxFrameSize:    cliCtx.Int(flags.MaxFrameSizeFlag.Name),
			CompressionAlgo: batcher.CompressionAlgo(cliCtx.String(flags.CompressionAlgoFlag.Name)),
		},
		MetricsConfig: batcher.MetricsConfig{
			Enabled:    cliCtx.Bool(flags.MetricsEnabledFlag.Name),
			ListenAddr: cliCtx.String(flags.MetricsAddrFlag.Name),
			ListenPort: cliCtx.Int(flags.MetricsPortFlag.Name),
		},
	}
	if addr := cliCtx.String(flags.BatcherAddressFlag.Name); addr != "" {
		cfg.SenderAddress = common.HexToAddress(addr)
	}
	return cfg.WithDerivedSender(), nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("empty private key")
	}
	return crypto.HexToECDSA(hexKey)
}
