package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"autoforms/internal/auth/tokens"
	"autoforms/internal/cache"
	"autoforms/internal/generate"
	"autoforms/internal/notify"
	"autoforms/internal/platform/config"
	"autoforms/internal/platform/logger"
	"autoforms/internal/platform/redis"
	rlConfig "autoforms/internal/ratelimit/config"
	rlMetrics "autoforms/internal/ratelimit/metrics"
	rlMiddleware "autoforms/internal/ratelimit/middleware"
	"autoforms/internal/ratelimit/service"
	"autoforms/internal/ratelimit/store/record"
	"autoforms/internal/ratelimit/workers/reaper"
	httptransport "autoforms/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages; everything here is
// constructed once and passed by reference, so tests can build isolated
// instances of the same pieces.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing autoforms",
		"addr", cfg.Addr,
		"cache_max_size", cfg.CacheMaxSize,
		"redis_configured", cfg.RedisURL != "",
	)

	// Rate limiter.
	limiterMetrics := rlMetrics.New()
	recordStore := record.New()
	limiter, err := service.New(recordStore,
		service.WithLogger(log),
		service.WithConfig(rlConfig.FromEnv()),
		service.WithMetrics(limiterMetrics),
	)
	if err != nil {
		log.Error("failed to build rate limiter", "error", err)
		os.Exit(1)
	}

	// Cache backend: in-memory by default, Redis when configured.
	var backend cache.Backend
	var memCache *cache.Cache
	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		backend = cache.NewRedisStore(redisClient, log)
		defer redisClient.Close() //nolint:errcheck // shutdown path
	} else {
		memCache = cache.New(cfg.CacheMaxSize, cache.WithMetrics(cache.NewMetrics()))
		backend = memCache
	}

	// Services.
	hub := notify.NewHub(log)
	generator, err := generate.New(generate.NewFallbackGenerator(), limiter, backend,
		generate.WithLogger(log),
		generate.WithNotifier(hub),
		generate.WithCacheTTL(cfg.CacheTTLGeneration),
	)
	if err != nil {
		log.Error("failed to build generation service", "error", err)
		os.Exit(1)
	}

	auth, err := tokens.New(cfg.JWTSigningKey, cfg.TokenTTL)
	if err != nil {
		log.Error("failed to build token service", "error", err)
		os.Exit(1)
	}

	// HTTP surface.
	var inspector httptransport.CacheInspector
	if memCache != nil {
		inspector = memCache
	}
	handler := httptransport.NewHandler(generator, limiter, inspector, log)
	router := httptransport.NewRouter(handler, auth, rlMiddleware.New(limiter, log), log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Background maintenance.
	reaperOpts := []reaper.Option{
		reaper.WithLogger(log),
		reaper.WithInterval(cfg.ReaperInterval),
		reaper.WithThreshold(cfg.ReaperThreshold),
		reaper.WithMetrics(limiterMetrics),
	}
	if memCache != nil {
		reaperOpts = append(reaperOpts, reaper.WithCache(memCache))
	}
	sweeper := reaper.New(recordStore, reaperOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := sweeper.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
