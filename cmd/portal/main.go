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

	httpadapter "github.com/kirillkom/formpack-portal/internal/adapters/http"
	"github.com/kirillkom/formpack-portal/internal/bootstrap"
	"github.com/kirillkom/formpack-portal/internal/config"
	"github.com/kirillkom/formpack-portal/internal/core/ports"
	"github.com/kirillkom/formpack-portal/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/formpack-portal/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("portal", cfg.LogLevel)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	var onScreens func(int)
	opts := httpadapter.Options{
		StorageURLRoot:   cfg.StorageURLRoot,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		PollInterval:     cfg.PollInterval,
		NotificationTTL:  cfg.NotificationTTL,
		HistoryLimit:     cfg.HistoryLimit,
		RateLimitRPS:     cfg.APIRateLimitRPS,
		RateLimitBurst:   cfg.APIRateLimitBurst,
		MaxInFlight:      cfg.APIMaxInFlight,
		BackpressureWait: cfg.APIBackpressureWait,
		Logger:           logger,
		Export:           xlsx.WriteSubmissions,
	}
	if app.Metrics != nil {
		opts.Metrics = app.Metrics
		onScreens = app.Metrics.SetActiveScreens
	}

	screens := httpadapter.NewScreenRegistry(func() ports.PackageUploader {
		return app.NewUploadScreen()
	}, cfg.ScreenIdleTTL, onScreens, logger)
	defer screens.CloseAll()
	go screens.RunSweeper(ctx, 0)

	router, err := httpadapter.NewRouter(opts, screens, app.QueryUC, app.NewDetailView, app.History, app.Storage)
	if err != nil {
		logger.Error("router_init_failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         ":" + cfg.PortalPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("portal_listening", "addr", server.Addr, "backend_url", cfg.BackendURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("portal_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("portal_shutdown_failed", "error", err)
	}
	logger.Info("portal_stopped")
}
