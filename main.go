// ABOUTME: Service entrypoint wiring config, dependencies and lifecycle
// ABOUTME: Shutdown drains the HTTP server, the maintenance runner and the worker pool
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"trailer-engine/bootstrap"
	"trailer-engine/config"
	"trailer-engine/utils/logger"
)

func main() {
	log := logger.Init()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := bootstrap.BuildDependencies(ctx, cfg, log)
	if err != nil {
		log.Error("failed to build dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	deps.Runner.Start(ctx)

	poolDone := make(chan error, 1)
	go func() {
		poolDone <- deps.WorkerPool.Run(ctx)
	}()

	e := bootstrap.NewHTTPServer(deps)
	bootstrap.StartHTTPServer(e, cfg.Server.Port, log)

	log.Info("trailer-engine started",
		"port", cfg.Server.Port,
		"gateway_mode", cfg.Gateway.Mode,
		"worker_concurrency", cfg.Worker.Concurrency)

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	bootstrap.ShutdownHTTPServer(shutdownCtx, e, log)
	deps.Runner.Stop()

	select {
	case err := <-poolDone:
		if err != nil {
			log.Error("worker pool exited with error", "error", err)
		}
	case <-shutdownCtx.Done():
		log.Warn("worker pool did not drain before shutdown deadline")
	}

	log.Info("trailer-engine stopped")
}
