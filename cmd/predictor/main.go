// Command predictor serves salary quantile predictions over HTTP.
//
// The predictor loads the latest trained artifact from the registry (or a
// pinned run id), serves predictions, and polls the registry so new
// training runs are picked up without a restart.
//
// The predictor serves an HTTP API on port 8082 (configurable) providing:
//   - POST /v1/predict - Predict salary quantiles for one input row
//   - GET /v1/model - Loaded artifact information
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	predictor \
//	  -listen=:8082 \
//	  -registry=redis -redis-addr=redis:6379
//
// Environment variables:
//
//	LISTEN          - HTTP listen address (default: :8082)
//	REGISTRY        - Artifact registry backend: fs, memory, redis (default: fs)
//	REGISTRY_DIR    - Artifact directory for the fs registry
//	REDIS_ADDR      - Redis server address
//	RUN_ID          - Pin a specific artifact run id (default: latest)
//	RELOAD_INTERVAL - Registry poll interval (default: 30s)
//	LOG_LEVEL       - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT      - Logging format: text, json (default: text)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calibrant/payband/cmd/predictor/config"
	"github.com/calibrant/payband/cmd/predictor/logger"
	"github.com/calibrant/payband/cmd/predictor/metrics"
	"github.com/calibrant/payband/cmd/predictor/router"
	"github.com/calibrant/payband/pkg/httpx"
	"github.com/calibrant/payband/pkg/infer"
	paybandtls "github.com/calibrant/payband/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	log.Info("starting payband predictor",
		"version", version,
		"listen", cfg.Listen,
		"registry", cfg.Registry,
	)

	store, closeStore, err := buildRegistry(cfg)
	if err != nil {
		log.Error("failed to open registry", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	m := metrics.New()
	engine := infer.New(log)
	predictor := NewPredictor(store, engine, cfg, log, m)

	mux := router.SetupRoutes(engine, m, log)
	handler := httpx.RecoveryMiddleware(log)(httpx.LoggingMiddleware(log)(mux))
	httpServer := httpx.NewServer(cfg.Listen, handler, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := predictor.Run(ctx); err != nil && err != context.Canceled {
			log.Error("reload loop failed", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			tlsConfig, err := paybandtls.NewServerTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
			if err != nil {
				serverErr <- err
				return
			}
			httpServer.SetTLSConfig(tlsConfig)
			serverErr <- httpServer.StartTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
		}
	}

	log.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		log.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("shutdown complete")
}
