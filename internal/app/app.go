// Package app assembles the pipeline engine, its collaborators and
// the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"contentpipe/internal/config"
	"contentpipe/internal/extract"
	"contentpipe/internal/infrastructure"
	"contentpipe/internal/llm"
	"contentpipe/internal/middleware"
	"contentpipe/internal/pipeline"
	"contentpipe/internal/publish"
	"contentpipe/internal/services"
	transporthttp "contentpipe/internal/transport/http"
)

// Application holds all wired components.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	OTel   *infrastructure.OTelProviders

	Store   *pipeline.Store
	Queue   *pipeline.Queue
	Service *services.PipelineService

	Router chi.Router
	server *http.Server

	cleanupCancel context.CancelFunc
}

// NewApplication loads configuration and wires every component.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(logger)
	if err != nil {
		return nil, fmt.Errorf("initialize otel: %w", err)
	}

	metrics, err := infrastructure.NewPipelineMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("create pipeline metrics: %w", err)
	}

	app := &Application{
		Config: cfg,
		Logger: logger,
		OTel:   otelProviders,
	}
	app.initializePipeline(metrics)
	app.setupRouter()
	app.createServer()
	return app, nil
}

// initializePipeline builds the store, collaborators, orchestrator
// and worker pool.
func (a *Application) initializePipeline(metrics pipeline.Metrics) {
	cfg := a.Config
	logger := a.Logger

	a.Store = pipeline.NewStore()

	pipeCfg := cfg.Pipeline
	runner := pipeline.NewRunner(pipeCfg.Retry, pipeCfg.StageTimeout,
		logger.With(slog.String("component", "runner")))

	extractor := extract.New(cfg.Extractor, logger.With(slog.String("component", "extractor")))
	modelClient := llm.NewClient(cfg.Model, logger.With(slog.String("component", "llm")))
	analyzer := llm.NewAnalyzer(modelClient, logger.With(slog.String("component", "analyzer")))
	writer := llm.NewWriter(modelClient, logger.With(slog.String("component", "writer")))
	publisher := publish.NewWeChatPublisher(cfg.WeChat, logger.With(slog.String("component", "publisher")))

	orch := pipeline.NewOrchestrator(a.Store, runner, extractor, analyzer, writer, publisher,
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(logger.With(slog.String("component", "orchestrator"))))

	a.Queue = pipeline.NewQueue(pipeCfg.Workers, pipeCfg.QueueSize, orch, a.Store,
		logger.With(slog.String("component", "queue")))

	a.Service = services.NewPipelineService(a.Store, a.Queue, metrics,
		cfg.WeChat.Enabled(), pipeCfg.TaskRetention,
		logger.With(slog.String("component", "service")))
}

// setupRouter builds the middleware chain and mounts the API.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	otelMiddleware, err := middleware.NewOTelMiddleware(a.OTel)
	if err != nil {
		a.Logger.Error("failed to create otel middleware", slog.String("error", err.Error()))
	} else {
		r.Use(otelMiddleware.Handler)
	}
	r.Use(middleware.StructuredLogger(a.Logger))
	r.Use(middleware.Recoverer(a.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.NewRateLimiter(50, 100, a.Logger).Handler)

	healthHandler := transporthttp.NewHealthHandler(a.Store, a.Logger)
	r.Get("/health", healthHandler.HealthCheck)
	if a.OTel.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTel.PrometheusHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(middleware.Timeout(30*time.Second, a.Logger))
		r.Mount("/", transporthttp.NewPipelineHandler(a.Service, a.Logger).Routes())
	})

	a.Router = r
}

func (a *Application) createServer() {
	a.server = &http.Server{
		Addr:         a.Config.Server.Address(),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout.Std(),
		WriteTimeout: a.Config.Server.WriteTimeout.Std(),
		IdleTimeout:  a.Config.Server.IdleTimeout.Std(),
	}
}

// Start launches the worker pool, the stale-task sweeper and the
// HTTP listener.
func (a *Application) Start(ctx context.Context) error {
	a.Queue.Start(ctx)

	cleanupCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cleanupCancel = cancel
	go a.Service.RunCleanup(cleanupCtx, time.Hour)

	a.Logger.Info("server starting", slog.String("address", a.server.Addr))
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop shuts down the listener, drains the worker pool and flushes
// telemetry within the configured shutdown budget.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.Info("server stopping")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout.Std())
	defer cancel()

	var firstErr error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		firstErr = fmt.Errorf("http shutdown: %w", err)
	}

	if a.cleanupCancel != nil {
		a.cleanupCancel()
	}
	a.Queue.Stop(a.Config.Server.ShutdownTimeout.Std())

	if err := a.OTel.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("otel shutdown: %w", err)
	}
	if err := infrastructure.CloseLogFile(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close log file: %w", err)
	}
	return firstErr
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
		return a.Stop(context.Background())
	}
}
