package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cellar/internal/config"
	"cellar/internal/daemon"
	"cellar/internal/logging"
	"cellar/internal/recovery"
	"cellar/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	env := storeEnvOverrides()

	// The store must be known-consistent before it is opened for traffic.
	task := recovery.NewPreflightTask(cfg, env, logger)
	ok, err := task.Run(ctx)
	if err != nil {
		logger.Error("store preflight failed", logging.Error(err))
		os.Exit(1)
	}
	if !ok {
		logger.Error("store preflight did not succeed, refusing to start")
		os.Exit(1)
	}

	opts, err := store.OptionsFromConfig(cfg, env, logger)
	if err != nil {
		logger.Error("resolve store options", logging.Error(err))
		os.Exit(1)
	}
	st, err := store.Open(ctx, cfg.StoreLocation(), opts)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		os.Exit(1)
	}
	defer st.Close()

	d, err := daemon.New(cfg, st, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("cellard shutting down")
	d.Stop()
}
