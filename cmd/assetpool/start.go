package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/calehh/assetpool/agent"
	"github.com/calehh/assetpool/app"
	"github.com/calehh/assetpool/config"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "assetpool",
	Short: "assetpool runs a governed token pool on CometBFT",
	Long: `A token pool whose members vote on rewards, reward rules and withdrawals.
Calls are relayed with signed nonces so any account can submit them.`,
}

type startArguments struct {
	Home string
}

var startArgs startArguments

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the assetpool node",
	Args:  cobra.NoArgs,
	Run:   startRun,
}

func init() {
	homeFlag(startCmd, &startArgs.Home)
}

func startRun(cmd *cobra.Command, args []string) {
	home := homePath(startArgs.Home)
	cfg, err := config.ReadConfigFile(home, filepath.Join(home, "config", "config.toml"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pv := privval.LoadFilePV(
		cfg.PrivValidatorKeyFile(),
		cfg.PrivValidatorStateFile(),
	)

	nodeKey, err := p2p.LoadNodeKey(cfg.NodeKeyFile())
	if err != nil {
		log.Fatalf("failed to load node's key: %v", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(cfg.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	poolApp, err := app.NewPoolApp(cfg.App, logger, registry)
	if err != nil {
		log.Fatalf("new App err:%v", err)
	}

	node, err := nm.NewNode(
		cfg.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(poolApp),
		nm.DefaultGenesisDocProviderFunc(cfg.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(cfg.Instrumentation),
		logger,
	)
	if err != nil {
		log.Fatalf("Creating node: %v", err)
	}

	poolApp.Start(node.BlockStore())
	err = node.Start()
	if err != nil {
		log.Fatalf("start comet node err %s", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsSrv := &http.Server{
		Addr:    cfg.App.MetricsListenAddr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "err", err)
		}
	}()

	if cfg.App.IndexerEnabled {
		startIndexer(ctx, cfg, logger)
	}

	defer func() {
		log.Println("shut down...")
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = metricsSrv.Close()
			err = node.Stop()
			if err != nil {
				log.Printf("stop comet node err %s", err.Error())
			}
			node.Wait()
			poolApp.Stop()
		}()
		timer := time.NewTimer(time.Second * 10)
		select {
		case <-timer.C:
			os.Exit(1)
		case <-done:
			return
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

func startIndexer(ctx context.Context, cfg *config.Config, logger cmtlog.Logger) {
	rpcUrl, err := url.Parse(cfg.RPC.ListenAddress)
	if err != nil {
		log.Fatalf("parse rpc address err %s", err.Error())
	}
	rpcUrl.Scheme = "http"
	interval := time.Duration(cfg.App.IndexerInterval) * time.Second
	indexer, err := agent.NewChainIndexer(logger, cfg.App.IndexerPath(), rpcUrl.String(), interval)
	if err != nil {
		log.Fatalf("new chain indexer err %s", err.Error())
	}
	go indexer.Start(ctx)

	svc := agent.NewService(cfg.App.ServiceListenAddr, indexer)
	go func() {
		if err := svc.Start(); err != nil {
			logger.Error("indexer service stopped", "err", err)
		}
	}()
}
