package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/zackehh/corba-flood-warning-system/internal/adapter/http"
	kafkaadapter "github.com/zackehh/corba-flood-warning-system/internal/adapter/kafka"
	"github.com/zackehh/corba-flood-warning-system/internal/config"
	"github.com/zackehh/corba-flood-warning-system/internal/coordinator"
	"github.com/zackehh/corba-flood-warning-system/internal/directory"
	"github.com/zackehh/corba-flood-warning-system/internal/observability"
	"github.com/zackehh/corba-flood-warning-system/internal/registry"
	"github.com/zackehh/corba-flood-warning-system/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The durable mirror must be reachable at boot; without it the
	// coordinator cannot recover alerts or answer durable queries.
	st, err := store.Open(ctx, cfg.DatabaseURL, logger, metrics)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Binding the coordinator's name in the directory is the one startup
	// step stations depend on; failure here is fatal.
	dir := directory.NewClient(cfg.DirectoryURL, cfg.DirectoryTimeout, logger)
	if err := dir.Register(ctx, cfg.CoordinatorName, cfg.AdvertiseAddr); err != nil {
		logger.Error("failed to register with directory", "error", err)
		os.Exit(1)
	}

	// Display notifications (feature-flagged via KAFKA_BROKERS / KAFKA_ENABLED).
	var display coordinator.Display = coordinator.NopDisplay{}
	var notifier *kafkaadapter.Notifier
	if cfg.KafkaEnabled {
		notifier = kafkaadapter.NewNotifier(cfg, logger, metrics)
		display = notifier
		logger.Info("display notifications enabled", "topic", cfg.KafkaAlertsTopic)
	} else {
		logger.Info("display notifications disabled")
	}

	svc := coordinator.New(cfg.CoordinatorName, registry.New(), st, dir, display,
		logger, metrics, cfg.DistrictTimeout)

	if cfg.RecoverAlerts {
		if err := svc.RecoverAlerts(ctx); err != nil {
			logger.Warn("alert recovery failed; starting with empty registry", "error", err)
		}
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if notifier != nil {
		if err := notifier.Close(); err != nil {
			logger.Error("kafka notifier close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
