package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/auth"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/backend"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/cache"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/cli"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/config"
	apphttp "github.com/coderwalt570/WaltonsCreativeStudio/internal/http"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/ledger"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/log"
)

// The projects table is maintained elsewhere and changes rarely.
const projectsCacheTTL = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateServer)

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

	publisher, closePublisher, err := factory.Publisher(cfg)
	if err != nil {
		logger.Error("Failed to initialize event publisher", "error", err, "events", cfg.EventsBackend)
		_ = store.Close()
		os.Exit(1)
	}

	opts := []ledger.Option{
		ledger.WithProjects(cache.NewProjects(store, projectsCacheTTL)),
		ledger.WithLogger(logger.WithComponent(log.ComponentLedger).Slog()),
	}
	if publisher != nil {
		opts = append(opts, ledger.WithPublisher(publisher))
	}
	svc := ledger.NewService(store, opts...)

	gate := auth.NewJWTGate(cfg.JWTSecret, cfg.JWTIssuer)
	srv := apphttp.NewServer(":"+cfg.Port, svc, gate, apphttp.Options{
		Logger:            logger,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:    cfg.TrustedProxies,
		Ready:             store.Ping,
	})

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	go func() {
		<-ctx.Done()
		cli.RunCleanup(logger, 30*time.Second, func(shutdownCtx context.Context) {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server shutdown error", "error", err)
			}
		})
	}()

	logger.Info("Starting ledger server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", cfg.EventsBackend)
	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		cancel()
	}

	if err := closePublisher(); err != nil {
		logger.Warn("Failed to close event publisher", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Warn("Failed to close store", "error", err)
	}
	logger.Info("Server stopped gracefully")
}
