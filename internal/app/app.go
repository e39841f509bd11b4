// Package app wires the service together: configuration, logging,
// metrics, the domain services, the chi router, and the HTTP server
// lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/hungkhanh0709/trading-filter/internal/analysis"
	"github.com/hungkhanh0709/trading-filter/internal/cache"
	"github.com/hungkhanh0709/trading-filter/internal/catalog"
	"github.com/hungkhanh0709/trading-filter/internal/config"
	apierrors "github.com/hungkhanh0709/trading-filter/internal/errors"
	"github.com/hungkhanh0709/trading-filter/internal/infrastructure"
	"github.com/hungkhanh0709/trading-filter/internal/matrix"
	customMiddleware "github.com/hungkhanh0709/trading-filter/internal/middleware"
	"github.com/hungkhanh0709/trading-filter/internal/services"
	"github.com/hungkhanh0709/trading-filter/internal/snapshot"
	transport "github.com/hungkhanh0709/trading-filter/internal/transport/http"
	ws "github.com/hungkhanh0709/trading-filter/internal/websocket"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Application holds all long-lived components of the service.
type Application struct {
	Config  *config.Config
	Paths   *config.Paths
	Logger  *slog.Logger
	Server  *http.Server
	Router  chi.Router
	Hub     *ws.Hub
	Metrics *infrastructure.MetricsProvider

	catalog         *catalog.Catalog
	store           *snapshot.Store
	matrixService   *services.MatrixService
	analysisService *services.AnalysisService
	priceService    *services.PriceService
	healthService   *services.HealthService
	errorHandler    *apierrors.ErrorHandler
	businessMetrics *infrastructure.BusinessMetrics
	upgrader        websocket.Upgrader
}

// New builds a fully wired application from configuration.
func New(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	paths, err := config.ResolvePaths(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	metricsProvider, err := infrastructure.InitializeMetrics(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	businessMetrics, err := infrastructure.CreateBusinessMetrics(metricsProvider.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	a := &Application{
		Config:          cfg,
		Paths:           paths,
		Logger:          logger,
		Metrics:         metricsProvider,
		businessMetrics: businessMetrics,
		errorHandler:    apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	a.initializeServices()
	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices constructs the domain layer bottom-up.
func (a *Application) initializeServices() {
	cfg := a.Config

	a.catalog = catalog.Load(a.Paths, a.Logger)
	a.store = snapshot.NewStore(a.Paths, a.catalog, a.Logger, time.Now)

	builder := matrix.NewBuilder(a.catalog, cfg.Matrix.DefaultExchange)
	a.matrixService = services.NewMatrixService(a.store, builder, a.catalog, cfg.Matrix, a.Logger)

	runner := analysis.NewRunner(
		cfg.Analysis.PythonBin,
		a.Paths.ScriptPath(cfg.Analysis.AnalyzeScript),
		a.Logger,
		a.businessMetrics,
	)
	orchestrator := analysis.NewOrchestrator(runner, cfg.Analysis.BatchDelay, nil, a.Logger, a.businessMetrics)
	resultCache := cache.New[analysis.Result](cfg.Cache.AnalysisTTL, time.Now)
	a.analysisService = services.NewAnalysisService(runner, orchestrator, resultCache, a.Logger, a.businessMetrics)

	fetcher := analysis.NewPriceFetcher(
		cfg.Analysis.PythonBin,
		a.Paths.ScriptPath(cfg.Analysis.PricesScript),
		a.Logger,
	)
	priceCache := cache.NewShared[analysis.Price](cfg.Cache.PriceTTL, time.Now)
	a.priceService = services.NewPriceService(fetcher, priceCache, a.Logger, a.businessMetrics)

	a.Hub = ws.NewHub(a.Logger)
	a.healthService = services.NewHealthService(Version, "", a.Paths, cfg.Analysis, a.Hub, a.Logger)

	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     a.checkWebSocketOrigin,
	}
}

// setupRouter configures the chi router with the middleware chain and
// all API routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.BusinessMetricsMiddleware(a.businessMetrics))
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			Logger:         a.Logger,
		}))
	}

	if a.Config.Security.RateLimit.Enabled {
		limiter := customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		)
		r.Use(limiter.Handler)
	}

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	a.setupAPIRoutes(r)

	r.Get("/ws", a.handleWebSocket)
	r.Handle("/metrics", a.Metrics.PrometheusHTTP)

	a.Router = r
}

func (a *Application) setupAPIRoutes(r chi.Router) {
	healthHandler := transport.NewHealthHandler(a.healthService, a.Logger)
	matrixHandler := transport.NewMatrixHandler(a.matrixService, a.Logger, a.errorHandler)
	analysisHandler := transport.NewAnalysisHandler(a.analysisService, ws.NewBatchSink(a.Hub), a.Logger, a.errorHandler)
	pricesHandler := transport.NewPricesHandler(a.priceService, a.Logger, a.errorHandler)
	snapshotHandler := transport.NewSnapshotHandler(a.store, a.Logger, a.errorHandler, a.businessMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			r.Get("/health", healthHandler.HealthCheck)
			r.Get("/health/ready", healthHandler.ReadinessCheck)
			r.Get("/health/live", healthHandler.LivenessCheck)
			r.Get("/health/stats", healthHandler.SystemStats)
			r.Get("/version", healthHandler.Version)

			r.Mount("/matrix", matrixHandler.Routes())
			r.Mount("/snapshots", snapshotHandler.Routes())
		})

		// Analysis and price routes run external processes; a batch of
		// symbols with throttling delays outlives any request timeout
		// that would make sense for the read paths, so these use the
		// server's write timeout headroom instead.
		r.Mount("/analysis", analysisHandler.Routes())
		r.Mount("/prices", pricesHandler.Routes())
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		// WriteTimeout stays unset: batch NDJSON streams are long-lived
		// by design and are bounded by the client context instead.
	}
}

// Run starts the hub and HTTP server and blocks until the context is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Hub.Run()
		return nil
	})

	g.Go(func() error {
		a.Logger.Info("server starting",
			slog.String("addr", a.Server.Addr),
			slog.String("version", Version))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.Stop()
	})

	return g.Wait()
}

// Stop gracefully shuts the application down.
func (a *Application) Stop() error {
	a.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	a.Hub.Stop()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("server shutdown failed", slog.String("error", err.Error()))
		return err
	}

	if err := a.Metrics.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("metrics shutdown failed", slog.String("error", err.Error()))
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.Warn("log file close failed", slog.String("error", err.Error()))
	}

	a.Logger.Info("shutdown complete")
	return nil
}

// handleWebSocket upgrades /ws connections and hands them to the hub.
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws.ServeWS(a.Hub, a.upgrader, a.Logger, w, r)
}

// checkWebSocketOrigin allows same-host connections and any configured
// CORS origin.
func (a *Application) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range a.Config.Security.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	a.Logger.Warn("websocket origin rejected",
		slog.String("origin", origin),
		slog.String("remote_addr", r.RemoteAddr))
	return false
}
