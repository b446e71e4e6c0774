// ckbcored is the Chain Core node daemon: it opens the store, bootstraps
// genesis if needed, and runs the Chain Service Pipeline until signalled
// to stop.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shannonlabs/ckbcore/config"
	"github.com/shannonlabs/ckbcore/internal/chain"
	"github.com/shannonlabs/ckbcore/internal/chainstore"
	klog "github.com/shannonlabs/ckbcore/internal/log"
	"github.com/shannonlabs/ckbcore/internal/verify"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// ── 1. Load config (defaults → file → flags) ───────────────────
	cfg, flags, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flags.Help {
		printHelp()
		return nil
	}
	if flags.Version {
		fmt.Println("ckbcored (dev build)")
		return nil
	}

	// ── 2. Init logger ───────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		if err := os.MkdirAll(cfg.LogsDir(), 0755); err != nil {
			return fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = cfg.LogsDir() + "/ckbcored.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	// ── 3. Consensus parameters ──────────────────────────────────────
	consensus := config.ConsensusFor(cfg.Network)
	logger.Info().
		Str("chain_id", consensus.ID).
		Str("network", string(cfg.Network)).
		Msg("Starting ckbcored")

	// ── 4. Open storage ───────────────────────────────────────────────
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()
	store := chainstore.New(db)

	// ── 5. Bootstrap genesis, then build the initial Snapshot ────────
	if err := chain.Bootstrap(store, consensus); err != nil {
		return fmt.Errorf("bootstrapping genesis: %w", err)
	}
	snapshot, err := chain.NewGenesisSnapshot(store, consensus)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	// ── 6. Metrics registry + controller ──────────────────────────────
	registry := prometheus.NewRegistry()
	metrics := chain.NewMetrics(registry)

	// A reorg checkpoint still on disk means the process died mid-reorg
	// last time it ran; repair the tip before the pipeline starts
	// accepting new blocks.
	snapshot, detached, err := chain.RecoverFromCheckpoint(store, metrics, snapshot)
	if err != nil {
		return fmt.Errorf("recovering from reorg checkpoint: %w", err)
	}
	if detached > 0 {
		logger.Warn().Int("blocks_detached", detached).Msg("recovered from a reorg checkpoint left by an earlier crash")
	}

	controller, err := chain.NewController(store, consensus, metrics, snapshot, verify.NopScriptVerifier{})
	if err != nil {
		return fmt.Errorf("building chain controller: %w", err)
	}

	metricsServer := &http.Server{Addr: "127.0.0.1:9090", Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	controller.Start()
	logger.Info().
		Uint64("height", controller.Snapshot().TipNumber).
		Stringer("tip", controller.Snapshot().TipHash).
		Msg("Node started successfully")

	// ── 7. Run until signalled ────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("Shutting down")
	controller.Stop()
	_ = metricsServer.Close()
	logger.Info().Msg("Goodbye!")
	return nil
}

func openDB(cfg *config.Config) (chainstore.DB, error) {
	if cfg.Store.Backend == "memory" {
		return chainstore.NewMemory(), nil
	}
	return chainstore.NewBadger(cfg.BlocksDir())
}

func printHelp() {
	fmt.Println(`ckbcored - Chain Core node daemon

Usage:
  ckbcored [flags]

Flags:
  -network string        mainnet or testnet (default "mainnet")
  -datadir string         data directory
  -config string          path to config file
  -store.backend string   badger or memory
  -log.level string       log level
  -log.file string        log file path
  -log.json               emit JSON logs
  -help                   show this help
  -version                show version`)
}
