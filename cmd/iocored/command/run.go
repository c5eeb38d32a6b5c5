package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/coophouse/iocore/pkg/config"
	"github.com/coophouse/iocore/pkg/datapoint"
	"github.com/coophouse/iocore/pkg/log"
	"github.com/coophouse/iocore/pkg/metrics"
	"github.com/coophouse/iocore/pkg/sqlite"
	"github.com/coophouse/iocore/server"
)

func cmdRun(cliContext *cli.Context) error {
	if err := log.Configure(log.Options{Level: logLevel, FilePath: logFile}); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	cfgOpts := []config.OpOption{
		config.WithDataDir(dataDir),
		config.WithAddress(listenAddress),
		config.WithSimulation(simulate),
	}
	cfg, err := config.DefaultConfig(cfgOpts...)
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	metricsInterval, err := time.ParseDuration(metricsPeriod)
	if err != nil {
		return fmt.Errorf("invalid --metrics-interval: %w", err)
	}

	dbRW, err := sqlite.Open(cfg.DBFile)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer dbRW.Close()
	dbRO, err := sqlite.Open(cfg.DBFile, sqlite.WithReadOnly(true))
	if err != nil {
		return fmt.Errorf("open database read-only: %w", err)
	}
	defer dbRO.Close()

	store := config.NewStore(dbRW, dbRO)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err = store.EnsureSchema(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	mgrOpts := []datapoint.Option{
		datapoint.WithLatencyObserver(metrics.ObserveRequestLatency),
		datapoint.WithCacheObserver(metrics.IncCacheRefresh),
	}
	if cfg.Simulation {
		mgrOpts = append(mgrOpts, datapoint.WithSimulation())
	}

	mgr := datapoint.New(store, store, datapoint.NewDriverFactory(), mgrOpts...)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if err := mgr.Start(rootCtx); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}
	defer mgr.Close()

	watcher := config.NewWatcher(cfg.DBFile, time.Second, func() {
		reloadCtx, reloadCancel := context.WithTimeout(rootCtx, 30*time.Second)
		defer reloadCancel()
		if err := mgr.Reload(reloadCtx); err != nil {
			log.Logger.Errorw("config reload failed", "error", err)
		} else {
			log.Logger.Infow("config reloaded", "data_dir", cfg.DataDir)
		}
	})
	if err := watcher.Start(rootCtx); err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	defer watcher.Close()

	collector := metrics.NewCollector(mgr, metricsInterval)
	collector.Start(rootCtx)
	defer collector.Close()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build server logger: %w", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	srv, err := server.New(mgr, cfg.Address, logger, reg)
	if err != nil {
		return fmt.Errorf("build status server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Logger.Infow("received signal, shutting down", "signal", sig.String())
		rootCancel()
	}()

	log.Logger.Infow("iocored starting", "address", cfg.Address, "data_dir", cfg.DataDir, "simulation", cfg.Simulation)
	if err := srv.ListenAndServe(rootCtx); err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

