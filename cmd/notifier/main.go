package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/formpack-portal/internal/bootstrap"
	"github.com/kirillkom/formpack-portal/internal/config"
	"github.com/kirillkom/formpack-portal/internal/observability/logging"
	"github.com/kirillkom/formpack-portal/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("notifier", cfg.LogLevel)
	slog.SetDefault(logger)
	if cfg.NATSURL == "" {
		logger.Error("config_invalid", "error", "NATS_URL is required for the notifier")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := bootstrap.NewEventBus(cfg, bootstrap.NewExecutor(cfg, nil), logger)
	if err != nil {
		logger.Error("event_bus_connect_failed", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	notifierMetrics := metrics.NewNotifierMetrics("notifier")
	metricsServer := &http.Server{
		Addr:              ":" + cfg.NotifierMetricsPort,
		Handler:           notifierMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("notifier_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("notifier_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("notifier_subscribed", "subject", cfg.NATSSubject)
	handler := newEventHandler(logger, notifierMetrics, time.Now)
	if err := bus.SubscribePackageEvents(ctx, handler); err != nil {
		logger.Error("notifier_subscribe_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("notifier_stopped")
}
