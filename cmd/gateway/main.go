package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tunetrail/gateway/internal/auth"
	"github.com/tunetrail/gateway/internal/cache"
	"github.com/tunetrail/gateway/internal/config"
	"github.com/tunetrail/gateway/internal/identity"
	"github.com/tunetrail/gateway/internal/metrics"
	"github.com/tunetrail/gateway/internal/proxy"
	"github.com/tunetrail/gateway/internal/ratelimit"
	"github.com/tunetrail/gateway/internal/registry"
	"github.com/tunetrail/gateway/internal/server"
	"github.com/tunetrail/gateway/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("GATEWAY_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("tunetrail-gateway", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	redisClient, err := cache.New(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	reg := registry.New(cfg.Services)
	identityClient := identity.NewClient(cfg.Identity.BaseURL, time.Duration(cfg.Proxy.TimeoutSeconds)*time.Second)
	tokenCache := auth.NewTokenCache(redisClient, time.Duration(cfg.Auth.CacheTTLSeconds)*time.Second)
	gate := auth.NewGate(tokenCache, identityClient, logger)
	limiter := ratelimit.New(redisClient, cfg.RateLimit.Limit, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)

	promRegistry := prometheus.NewRegistry()
	gatewayMetrics := metrics.New(promRegistry)

	srv := server.New(cfg.Server.Port, server.Deps{
		Logger:       logger,
		Registry:     reg,
		Gate:         gate,
		Limiter:      limiter,
		Proxy:        proxy.New(reg, time.Duration(cfg.Proxy.TimeoutSeconds)*time.Second, logger),
		Metrics:      gatewayMetrics,
		Identity:     identityClient,
		PromRegistry: promRegistry,
		ProbeTimeout: time.Duration(cfg.Health.ProbeTimeoutSeconds) * time.Second,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Gateway failed: %v", err)
		}
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("gateway shutdown complete")
}
