// Command observer runs the continuous on-chain FTSO/FDC observer:
// config load, logger setup, chain dial, signing-policy bootstrap, and
// the block-by-block ingestion loop, until an unhandled RPC error or a
// process signal ends it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flare-observer/client/ingest"
	"flare-observer/client/notify"
	"flare-observer/config"
	"flare-observer/epoch"
	"flare-observer/logger"
	"flare-observer/metrics"
)

func main() {
	os.Exit(run())
}

func run() int {
	configFile := flag.String("config", config.CONFIG_FILE, "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return 1
	}

	if err := logger.Configure(logger.Config{
		Level:       cfg.Logger.Level,
		File:        cfg.Logger.File,
		MaxFileSize: cfg.Logger.MaxFileSize,
		Console:     cfg.Logger.Console,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "configure logger:", err)
		return 1
	}
	defer logger.Sync()

	client, err := cfg.Chain.DialETH()
	if err != nil {
		logger.Error("dial chain RPC: %v", err)
		return 1
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.ListenAddr != "" {
		metricsServer = metrics.NewServer(cfg.Metrics.ListenAddr)
		go func() {
			if err := metricsServer.Run(); err != nil {
				logger.Warn("metrics server stopped: %v", err)
			}
		}()
	}

	engine := ingest.New(ingest.Config{
		Client: client,
		Addresses: ingest.Addresses{
			VoterRegistry:  cfg.Contracts.VoterRegistry,
			Calculator:     cfg.Contracts.Calculator,
			Relay:          cfg.Contracts.Relay,
			SystemsManager: cfg.Contracts.SystemsManager,
			FdcHub:         cfg.Contracts.FdcHub,
			Submission:     cfg.Contracts.Submission,
		},
		IdentityAddress: cfg.IdentityAddress,
		ChainID:         cfg.Chain.ChainID,
		Sink:            notify.NewSender(cfg.Notification.ToNotifyConfig()),
		VotingEpochs: &epoch.VotingEpochFactory{
			FirstEpochStartS: cfg.Epoch.VotingEpochFirstStartS,
			EpochDurationS:   cfg.Epoch.VotingEpochDurationS,
		},
		RewardEpochs: &epoch.RewardEpochFactory{
			FirstEpochStartS: cfg.Epoch.RewardEpochFirstStartS,
			EpochDurationS:   cfg.Epoch.RewardEpochDurationS,
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := engine.Bootstrap(ctx, time.Now().Unix()); err != nil {
		logger.Error("bootstrap signing policy: %v", err)
		return 1
	}

	runErr := engine.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	if runErr != nil {
		logger.Error("ingestion loop terminated: %v", runErr)
		return 1
	}
	return 0
}
