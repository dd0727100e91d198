// cmd/push-agent/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storefront-push/internal/agent"
	"storefront-push/internal/collaborator"
	"storefront-push/internal/common/config"
	"storefront-push/internal/common/database"
	apphttp "storefront-push/internal/common/http"
	"storefront-push/internal/common/logger"
	"storefront-push/internal/common/observability"
	"storefront-push/internal/platform"
	"storefront-push/internal/platform/memory"
	"storefront-push/internal/platform/rediscache"
	"storefront-push/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting push agent...",
		zap.String("origin", cfg.Agent.Origin),
		zap.String("cache", cfg.Cache.Name()),
	)

	obs := observability.New(cfg.Observability.ServiceName)
	defer obs.Shutdown()

	if cfg.Observability.TracingEnabled {
		tracing, err := observability.NewTracing(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			zapLog.Fatal("tracing init failed", zap.Error(err))
		}
		defer tracing.Shutdown()
		obs.WithTracer(tracing.Tracer("push-agent"))
	}

	ctx := context.Background()

	// --- Cache storage ---
	var caches platform.CacheStorage = memory.NewCacheStorage()
	if cfg.Cache.Backend == "redis" {
		var rc *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			return err
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()
		caches = rediscache.New(rc.GetClient(), cfg.Cache.Prefix)
		zapLog.Info("Redis cache storage connected", zap.String("address", cfg.Database.Redis.Address))
	}

	// --- Precache list ---
	assets := append([]string(nil), cfg.Cache.Assets...)
	if cfg.Cache.ManifestPath != "" {
		manifest, err := registry.LoadManifest(cfg.Cache.ManifestPath)
		if err != nil {
			zapLog.Fatal("precache manifest load failed", zap.String("path", cfg.Cache.ManifestPath), zap.Error(err))
		}
		assets = append(assets, manifest.Paths()...)
	}

	fetcher := apphttp.NewClient(config.GetDuration(cfg.Agent.RequestTimeout))
	server := collaborator.New(cfg.Server.BaseURL, apphttp.NewClient(config.GetDuration(cfg.Server.RequestTimeout)))

	a, err := agent.New(cfg, caches, fetcher, server, assets, obs, log)
	if err != nil {
		zapLog.Fatal("agent init failed", zap.Error(err))
	}
	if err := a.Start(ctx); err != nil {
		zapLog.Fatal("worker failed to activate", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Agent.ListenAddress,
		Handler:           a.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("Agent listening", zap.String("address", srv.Addr), zap.String("publicUrl", cfg.Agent.PublicURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("agent server failed", zap.Error(err))
		}
	}()

	// --- Health & Metrics Server ---
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if !a.Ready() {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "worker": a.Runtime().Status()})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ready", "version": a.Runtime().Version()})
		})
		mux.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Agent.MetricsAddress))
		if err := http.ListenAndServe(cfg.Agent.MetricsAddress, mux); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping agent...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping agent server", zap.Error(err))
	}
	if err := a.Stop(shutdownCtx); err != nil {
		zapLog.Error("Error terminating worker", zap.Error(err))
	}

	zapLog.Info("Push agent stopped")
}
