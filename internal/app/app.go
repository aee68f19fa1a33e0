package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ContractFinder/internal/api"
	"ContractFinder/internal/config"
	"ContractFinder/internal/infrastructure/parser"
	"ContractFinder/internal/infrastructure/scheduler"
	"ContractFinder/internal/infrastructure/storage"
	"ContractFinder/internal/infrastructure/telegram"
	"ContractFinder/internal/logging"
	"ContractFinder/internal/ports"
	"ContractFinder/internal/scanner"
	"ContractFinder/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	repository ports.ContractRepository
	pipeline   *usecase.Pipeline
	leads      *usecase.Leads
}

// New opens the configured repository and builds the ingestion and lead use cases.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	repo, err := OpenRepository(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	kytcClient, indotClient := scannerClients(cfg.HTTP)

	registry := scanner.NewRegistry()
	registry.Register(parser.NewKYTCScanner(kytcClient, baseLogger.With("component", "scanner.kytc")).WithUserAgent(cfg.HTTP.UserAgent))
	registry.Register(parser.NewINDOTScanner(indotClient, baseLogger.With("component", "scanner.indot")).WithUserAgent(cfg.HTTP.UserAgent))

	source := parser.NewStrategySource(registry, cfg.Sites, baseLogger.With("component", "source"))

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.Enabled() {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:         source,
		Repository:     repo,
		Notifier:       notifier,
		NotifyMinScore: cfg.Notifications.Telegram.MinScore,
		Logger:         baseLogger.With("component", "pipeline"),
	})

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		repository: repo,
		pipeline:   pipeline,
		leads:      usecase.NewLeads(repo),
	}, nil
}

// scannerClients returns the page clients. KYTC always uses the fixed parser.Timeout;
// http.timeout only applies to INDOT.
func scannerClients(cfg config.HTTPConfig) (kytc, indot *http.Client) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = parser.Timeout
	}
	return &http.Client{Timeout: parser.Timeout}, &http.Client{Timeout: timeout}
}

// OpenRepository selects the storage backend named by the database driver.
func OpenRepository(ctx context.Context, cfg config.DatabaseConfig) (ports.ContractRepository, error) {
	switch cfg.Driver {
	case config.DriverBolt, "":
		repo, err := storage.NewBoltRepository(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open bolt repository: %w", err)
		}
		return repo, nil
	case config.DriverPostgres:
		repo, err := storage.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres repository: %w", err)
		}
		return repo, nil
	case config.DriverMemory:
		return storage.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Ingest performs one pipeline execution. Non-empty lettingDates replace the configured schedule.
func (a *Application) Ingest(ctx context.Context, lettingDates []string) (usecase.IngestResult, error) {
	return a.pipeline.Run(ctx, usecase.RunOptions{LettingDates: lettingDates})
}

// Leads exposes the lead query/status use case.
func (a *Application) Leads() *usecase.Leads {
	return a.leads
}

// Handler builds the HTTP API.
func (a *Application) Handler() http.Handler {
	return api.NewRouter(api.NewHandler(a.pipeline, a.leads), a.logger.With("component", "api"))
}

// Serve runs the HTTP API, plus the ingestion scheduler when enabled, until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sched *usecase.Scheduler
	if a.cfg.Scheduler.Enabled {
		driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval, a.cfg.Scheduler.Location())
		sched = usecase.NewScheduler(driver, a.pipeline, a.logger.With("component", "scheduler"))
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			a.logger.Warn("scheduler stop failed", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown failed", "error", err)
	}

	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

// Close releases the repository.
func (a *Application) Close() error {
	if a.repository == nil {
		return nil
	}
	return a.repository.Close()
}
