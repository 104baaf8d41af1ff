package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/janisto/steam-gateway/internal/config"
	"github.com/janisto/steam-gateway/internal/http/health"
	"github.com/janisto/steam-gateway/internal/http/v1/routes"
	steamhandler "github.com/janisto/steam-gateway/internal/http/v1/steam"
	applog "github.com/janisto/steam-gateway/internal/platform/logging"
	"github.com/janisto/steam-gateway/internal/platform/metrics"
	appmiddleware "github.com/janisto/steam-gateway/internal/platform/middleware"
	appotel "github.com/janisto/steam-gateway/internal/platform/otel"
	"github.com/janisto/steam-gateway/internal/platform/respond"
	"github.com/janisto/steam-gateway/internal/service/aggregate"
	"github.com/janisto/steam-gateway/internal/service/steam"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	applog.Configure(applog.Options{
		Level:   cfg.LogLevel,
		Service: cfg.OTel.ServiceName,
		Version: Version,
	})
	defer func() {
		if err := applog.Sync(); err != nil {
			applog.LogError(context.Background(), "logger sync error", err)
		}
	}()
	if err := applog.Err(); err != nil {
		applog.LogError(context.Background(), "logger init error", err)
	}

	shutdownTracing, err := appotel.Setup(context.Background(), appotel.Options{
		ServiceName: cfg.OTel.ServiceName,
		Version:     Version,
		Environment: cfg.Env,
		Endpoint:    cfg.OTel.Endpoint,
		SampleRatio: cfg.OTel.SampleRatio,
	})
	if err != nil {
		applog.LogError(context.Background(), "tracing init failed", err)
		os.Exit(1)
	}

	if cfg.IsProduction() && slices.Contains(cfg.CORSAllowedOrigins, "*") {
		applog.LogWarn(context.Background(), "CORS allows any origin in production")
	}

	registry := metrics.NewRegistry()
	router := newRouter(cfg, newAggregator(cfg, registry), registry)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           otelhttp.NewHandler(router, cfg.OTel.ServiceName),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      writeTimeout(cfg.Steam.Timeout),
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 << 10, // 64 KB
	}

	listenErr := make(chan error, 1)
	go func() {
		applog.LogInfo(context.Background(), "server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("gamesSource", cfg.Steam.GamesSource),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-listenErr:
		applog.LogError(context.Background(), "listen failed", err, zap.String("addr", srv.Addr))
		os.Exit(1)
	case <-stop:
		applog.LogInfo(context.Background(), "shutdown signal received")
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		applog.LogError(ctx, "server shutdown error", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		applog.LogError(ctx, "tracing shutdown error", err)
	}
	applog.LogInfo(context.Background(), "server exited")
}

// newAggregator builds the Steam client, the games provider selected by
// config, and the aggregation service on one shared HTTP client.
func newAggregator(cfg *config.Config, reg prometheus.Registerer) *aggregate.Service {
	httpClient := &http.Client{
		Timeout:   cfg.Steam.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	upstream := metrics.NewUpstreamMetrics(reg)

	client := steam.NewClient(httpClient,
		steam.WithBaseURL(cfg.Steam.BaseURL),
		steam.WithAPIKey(cfg.Steam.APIKey),
		steam.WithMetrics(upstream),
	)

	var provider steam.GamesProvider = client
	if cfg.Steam.GamesSource == config.GamesSourceScrape {
		provider = steam.NewScraper(httpClient, steam.WithScraperMetrics(upstream))
	}

	return aggregate.New(client, provider, aggregate.WithFanoutLimit(cfg.Steam.FanoutLimit))
}

func newRouter(cfg *config.Config, svc steamhandler.Aggregator, reg *prometheus.Registry) chi.Router {
	httpMetrics := metrics.NewHTTPMetrics(reg)

	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	// Base middleware stack
	router.Use(
		appmiddleware.Security("/steam", "/health", "/metrics"),
		appmiddleware.Vary(),
		appmiddleware.CORS(cfg.CORSAllowedOrigins),
		appmiddleware.RequestID(),
		// RealIP extracts client IP from X-Real-IP or X-Forwarded-For headers.
		// SECURITY: Only use behind a trusted reverse proxy (e.g., Cloud Run, nginx).
		// Without a trusted proxy, clients can spoof their IP address.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(1<<20), // 1 MB limit
		applog.RequestLogger(cfg.ProjectID),
		applog.AccessLogger(),
		httpMetrics.Middleware(),
		respond.Recoverer(),
	)

	router.Get("/health", health.NewHandler(Version))
	router.Handle("/metrics", metrics.Handler(reg))

	// Allow JSON fallback for wildcard Accept headers (e.g., */*) since Huma's
	// negotiation uses exact matching and doesn't interpret wildcards per
	// RFC 9110 section 12.5.1. Clients sending unsupported types like text/plain
	// will still receive JSON rather than 406, which is acceptable per RFC 9110
	// section 12.4.1 (servers MAY disregard Accept and return a default).
	humaCfg := routes.NewConfig("Steam Gateway API", Version)
	api := humachi.New(router, humaCfg)

	// Add CBOR content type to OpenAPI requests and responses
	api.OpenAPI().OnAddOperation = append(api.OpenAPI().OnAddOperation, addCBORContent)

	routes.Register(api, svc)

	if cfg.PublicDir != "" {
		router.Handle("/*", http.FileServer(http.Dir(cfg.PublicDir)))
	}

	return router
}

func addCBORContent(_ *huma.OpenAPI, op *huma.Operation) {
	if op.RequestBody != nil && op.RequestBody.Content != nil {
		if jsonContent, ok := op.RequestBody.Content["application/json"]; ok {
			op.RequestBody.Content["application/cbor"] = jsonContent
		}
	}
	for _, resp := range op.Responses {
		if resp.Content == nil {
			continue
		}
		if jsonContent, ok := resp.Content["application/json"]; ok {
			resp.Content["application/cbor"] = jsonContent
		}
	}
}

// writeTimeout leaves room for a profile lookup followed by the games and
// achievements round trips, each bounded by the upstream timeout.
func writeTimeout(upstream time.Duration) time.Duration {
	return max(10*time.Second, 3*upstream+5*time.Second)
}
