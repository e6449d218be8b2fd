package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/backend"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/cli"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/log"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger, nil)
	factory := backend.NewFactory(logger.Slog())

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	store, err := factory.OpenStore(backendCfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	mirror, err := factory.Mirror(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize mirror", "error", err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(store, mirror, cfg.MirrorBatchSize, logger.Slog())

	// Catch up on records missed while the worker was down.
	logger.Info("Performing startup sync check...")
	if res, err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	} else if res.Errors > 0 {
		logger.Warn("Startup sync check left records unmirrored", "errors", res.Errors, "total", res.Total)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return syncWorker.RunBackfill(gctx, cfg.MirrorInterval)
	})

	if cfg.EventsBackend == string(backend.EventsAMQP) {
		client, err := factory.AMQPClient(cfg)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			err := client.ConsumeExpenseRecorded(gctx, syncWorker.HandleExpenseRecorded)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("Event consumption disabled, relying on periodic backfill", "events", cfg.EventsBackend)
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
