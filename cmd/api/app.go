package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/edulane/coursegen/internal/api/handlers"
	"github.com/edulane/coursegen/internal/api/middleware"
	"github.com/edulane/coursegen/internal/config"
	"github.com/edulane/coursegen/internal/jobs"
	"github.com/edulane/coursegen/internal/observability"
	"github.com/edulane/coursegen/internal/pipeline"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// setupMetrics creates the meter provider, the /metrics handler (prometheus only) and the collectors.
// When NewMeterProvider returns nil (unsupported exporter), metrics are disabled and everything is nil.
func setupMetrics(cfg *config.Config) (*sdkmetric.MeterProvider, http.Handler, *observability.Metrics, error) {
	mp, handler, err := observability.NewMeterProvider(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	if mp == nil {
		return nil, nil, nil, nil
	}

	metrics, err := observability.NewMetrics(mp.Meter("coursegen"))
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), mp); err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	return mp, handler, metrics, nil
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool, logger *slog.Logger) (_ *App, err error) {
	var (
		meterProvider  *sdkmetric.MeterProvider
		tracerProvider *sdktrace.TracerProvider
		metrics        *observability.Metrics
		metricsHandler http.Handler
	)

	// Undo whatever was started if wiring fails part way.
	defer func() {
		if err == nil {
			return
		}

		if obsErr := shutdownObservability(context.Background(), tracerProvider, meterProvider); obsErr != nil {
			slog.Error("shutdown observability after startup error", "error", obsErr)
		}
	}()

	if cfg.OtelMetricsExporter == "" {
		logger.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		meterProvider, metricsHandler, metrics, err = setupMetrics(cfg)
		if err != nil {
			return nil, err
		}
	}

	if cfg.OtelTracesExporter == "" {
		logger.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tracerProvider, err = observability.NewTracerProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("create tracer provider: %w", err)
		}
	}

	if tracerProvider != nil {
		otel.SetTracerProvider(tracerProvider)
	}

	if meterProvider != nil {
		otel.SetMeterProvider(meterProvider)
	}

	p, err := pipeline.New(ctx, pipeline.Params{
		Config:  cfg,
		Stores:  pipeline.PostgresStores(db),
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	riverClient, err := jobs.NewClient(db, jobs.ClientParams{
		Indexer:           p.Indexer,
		Generator:         p.Orchestrator,
		IndexWorkers:      cfg.RiverWorkers,
		GenerationWorkers: cfg.RiverWorkers,
		MaxAttempts:       cfg.RiverMaxAttempts,
		JobTimeout:        cfg.RiverJobTimeout,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	inserter := jobs.NewRiverJobInserter(riverClient, cfg.RiverMaxAttempts)

	var apiMetrics observability.APIMetrics
	if metrics != nil {
		apiMetrics = metrics.API
	}

	server := newHTTPServer(cfg, routes{
		health:    handlers.NewHealthHandler(db),
		search:    handlers.NewSearchHandler(p.Search, logger),
		sources:   handlers.NewSourcesHandler(p.Stores.Sources, inserter, logger),
		artifacts: handlers.NewArtifactsHandler(p.Stores.Artifacts, logger),
		metrics:   metricsHandler,
	}, apiMetrics, meterProvider, tracerProvider, logger)

	return &App{
		cfg:            cfg,
		db:             db,
		server:         server,
		river:          riverClient,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		metrics:        metrics,
		logger:         logger,
	}, nil
}

type routes struct {
	health    *handlers.HealthHandler
	search    *handlers.SearchHandler
	sources   *handlers.SourcesHandler
	artifacts *handlers.ArtifactsHandler
	metrics   http.Handler
}

// newHTTPServer builds the HTTP server and muxes (no auth on /health and /metrics, API key on /v1/).
// Handler chain: RequestID -> otelhttp -> Logging -> MaxBody -> mux, so access logs carry request_id and trace_id.
func newHTTPServer(
	cfg *config.Config,
	r routes,
	apiMetrics observability.APIMetrics,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
	logger *slog.Logger,
) *http.Server {
	public := http.NewServeMux()
	public.HandleFunc("GET /health", r.health.Check)

	if r.metrics != nil {
		public.Handle("GET /metrics", r.metrics)
	}

	protected := http.NewServeMux()
	protected.HandleFunc("PUT /v1/sources/{type}/{id}", r.sources.Put)
	protected.HandleFunc("POST /v1/sources/{type}/{id}/index", r.sources.Index)
	protected.HandleFunc("POST /v1/sources/{type}/{id}/generations", r.sources.Generate)

	protected.HandleFunc("POST /v1/search", r.search.Search)

	protected.HandleFunc("GET /v1/artifacts", r.artifacts.List)
	protected.HandleFunc("GET /v1/artifacts/{id}", r.artifacts.Get)
	protected.HandleFunc("PATCH /v1/artifacts/{id}/status", r.artifacts.UpdateStatus)
	protected.HandleFunc("POST /v1/artifacts/{id}/questions/{index}/validate", r.artifacts.ValidateAnswer)

	mux := http.NewServeMux()
	mux.Handle("/v1/", middleware.Auth(cfg.APIKey)(protected))
	mux.Handle("/", public)

	otelOpts := []otelhttp.Option{
		// Skip tracing and HTTP metrics for health checks and scrapes.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	var tooLarge middleware.RequestBodyTooLargeRecorder
	if apiMetrics != nil {
		tooLarge = apiMetrics
	}

	// Logging runs inside otelhttp so r.Context() has the span when we log (trace_id/span_id in access logs).
	inner := middleware.Logging(logger)(middleware.MaxBody(cfg.MaxRequestBodyBytes, tooLarge)(mux))
	handler := otelhttp.NewHandler(inner, "coursegen-api", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 15 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and River, then blocks until ctx is cancelled (e.g. signal)
// or a component fails. When ctx is cancelled or a component fails, it cancels the internal
// River context so River and the queue depth poller stop before Run returns. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	if a.metrics != nil && a.metrics.Generation != nil {
		go jobs.RunQueueDepthPoller(riverCtx, a.db, a.metrics.Generation, jobs.DefaultQueueDepthInterval, a.logger)
	}

	go func() {
		if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case runErr <- fmt.Errorf("river: %w", err):
			default:
			}
		}
	}()

	go func() {
		a.logger.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelRiver()

		return err
	case <-ctx.Done():
		cancelRiver()

		return nil
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if tracer != nil {
		if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
			first = err
		}
	}

	if meter != nil {
		if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
			if first == nil {
				first = err
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

// Shutdown stops the server, then River (waiting for running jobs), in order. Call after Run returns.
// Observability is shut down once via defer; its error is returned only when server and River shut down successfully.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if stopErr := a.river.Stop(ctx); stopErr != nil {
			slog.Error("river stop during server shutdown", "error", stopErr)
		}

		return fmt.Errorf("server shutdown: %w", err)
	}

	if err = a.river.Stop(ctx); err != nil {
		return fmt.Errorf("river stop: %w", err)
	}

	return nil
}
