package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/formpack-portal/internal/config"
	"github.com/kirillkom/formpack-portal/internal/core/ports"
	"github.com/kirillkom/formpack-portal/internal/core/storagepath"
	"github.com/kirillkom/formpack-portal/internal/core/usecase"
	"github.com/kirillkom/formpack-portal/internal/infrastructure/backend/restapi"
	"github.com/kirillkom/formpack-portal/internal/infrastructure/events/nats"
	"github.com/kirillkom/formpack-portal/internal/infrastructure/pdfinfo"
	"github.com/kirillkom/formpack-portal/internal/infrastructure/repository/memory"
	"github.com/kirillkom/formpack-portal/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/formpack-portal/internal/infrastructure/resilience"
	"github.com/kirillkom/formpack-portal/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/formpack-portal/internal/observability/metrics"
)

const memoryHistoryCapacity = 500

type App struct {
	Config config.Config
	Logger *slog.Logger

	Metrics  *metrics.PortalMetrics
	Backend  ports.PackageBackend
	Resolver storagepath.Resolver
	Storage  *localfs.Storage
	History  ports.UploadHistory
	Events   ports.EventPublisher
	QueryUC  *usecase.PackageQueryUseCase

	inspector ports.FileInspector
	closeFn   func()
}

// New wires the portal process. Postgres history and NATS events are only
// connected when their settings are present.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var portalMetrics *metrics.PortalMetrics
	var listener resilience.StateListener
	if cfg.MetricsEnabled {
		portalMetrics = metrics.NewPortalMetrics("portal")
		listener = portalMetrics.RecordBreakerTransition
	}
	executor := NewExecutor(cfg, listener)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var history ports.UploadHistory
	if cfg.HistoryDSN != "" {
		db, err := postgres.OpenDB(cfg.HistoryDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		repo := postgres.NewUploadHistoryRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		history = repo
	} else {
		history = memory.NewUploadHistory(memoryHistoryCapacity)
	}

	var events ports.EventPublisher
	if cfg.NATSURL != "" {
		bus, err := NewEventBus(cfg, executor, logger)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		closers = append(closers, bus.Close)
		events = bus
	}

	backend := NewBackend(cfg, executor)
	resolver := storagepath.New(cfg.StorageURLRoot)

	logger.Info("portal_wired",
		"backend_url", cfg.BackendURL,
		"history", historyKind(cfg),
		"events", cfg.NATSURL != "",
		"metrics", cfg.MetricsEnabled,
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  portalMetrics,
		Backend:  backend,
		Resolver: resolver,
		Storage:  storage,
		History:  history,
		Events:   events,
		QueryUC:  usecase.NewPackageQueryUseCase(backend, resolver),

		inspector: pdfinfo.NewInspector(logger),
		closeFn:   closeAll,
	}, nil
}

// NewExecutor builds the backend resilience policy from cfg.
func NewExecutor(cfg config.Config, listener resilience.StateListener) *resilience.Executor {
	policy := resilience.DefaultPolicy()
	if cfg.BackendRetryMaxAttempts > 0 {
		policy.RetryMaxAttempts = cfg.BackendRetryMaxAttempts
	}
	policy.BreakerEnabled = cfg.BackendBreakerEnabled
	return resilience.NewExecutor(policy, listener)
}

func NewBackend(cfg config.Config, executor *resilience.Executor) *restapi.Client {
	return restapi.New(cfg.BackendURL, restapi.Options{
		Timeout:           cfg.BackendTimeout,
		ValidateResponses: cfg.BackendValidateResponses,
		Executor:          executor,
	})
}

func NewEventBus(cfg config.Config, executor *resilience.Executor, logger *slog.Logger) (*nats.Bus, error) {
	return nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ClientName:         "formpack-portal",
		ResilienceExecutor: executor,
		Logger:             logger,
	})
}

// NewUploadScreen builds one upload screen sharing the app's backend,
// history, events and metrics.
func (a *App) NewUploadScreen() *usecase.UploadScreen {
	opts := usecase.UploadScreenOptions{
		PollInterval:       a.Config.PollInterval,
		PollRequestTimeout: a.Config.PollRequestTimeout,
		NotificationTTL:    a.Config.NotificationTTL,
		Inspector:          a.inspector,
		Events:             a.Events,
		History:            a.History,
		Logger:             a.Logger,
	}
	if a.Metrics != nil {
		opts.Observer = a.Metrics
	}
	return usecase.NewUploadScreen(a.Backend, opts)
}

func (a *App) NewDetailView() ports.PackageDetailScreen {
	return usecase.NewPackageDetailView(a.Backend, a.Resolver, a.Logger)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func historyKind(cfg config.Config) string {
	if cfg.HistoryDSN != "" {
		return "postgres"
	}
	return "memory"
}
