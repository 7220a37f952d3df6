package main

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"zeroauth/internal/platform/config"
	"zeroauth/internal/platform/health"
	"zeroauth/internal/platform/logger"
	"zeroauth/internal/platform/metrics"
	"zeroauth/internal/platform/middleware"
	platformredis "zeroauth/internal/platform/redis"
	"zeroauth/internal/session/handler"
	sessionmetrics "zeroauth/internal/session/metrics"
	"zeroauth/internal/session/service"
	"zeroauth/internal/session/store"
	"zeroauth/internal/session/verifier"
	"zeroauth/internal/session/workers/reaper"
	httptransport "zeroauth/internal/transport/http"
	"zeroauth/pkg/platform/circuit"
	"zeroauth/pkg/platform/tracer"
)

const (
	shutdownTimeout   = 10 * time.Second
	poolStatsInterval = 15 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("relay stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	log.Info("initializing zeroauth relay",
		"addr", cfg.Server.Addr(),
		"environment", cfg.Server.Environment,
		"relay_did", cfg.Relay.DID,
	)

	if cfg.IsProduction() && cfg.Server.PublicBaseURL == "" {
		log.Warn("PUBLIC_BASE_URL not set, proof callbacks use the request Host header")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTP(reg)
	relayMetrics := sessionmetrics.New(reg)
	tr := tracer.NewOTel()

	healthHandler := health.New(cfg.Server.Environment)

	redisClient, err := platformredis.New(ctx, cfg.Redis,
		platformredis.WithRegisterer(reg),
		platformredis.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close() //nolint:errcheck // process is exiting
	sessions := store.NewRedis(redisClient.Client)
	healthHandler.RegisterCheck("redis", redisClient.Health)

	keys := verifier.NewKeyRegistry(cfg.Relay.VKeyDir)
	if err := keys.Preload(); err != nil {
		// Keys load lazily on first use; readiness reports the failure until then.
		log.Warn("verification keys not loaded", "dir", cfg.Relay.VKeyDir, "error", err)
	}
	healthHandler.RegisterCheck("verification_keys", func(context.Context) error {
		return keys.Preload()
	})

	proofVerifier := verifier.New(keys, verifier.NewGroth16Engine(),
		verifier.WithTimeout(cfg.Relay.VerifyTimeout),
		verifier.WithBreaker(circuit.New("proof-verifier")),
		verifier.WithLogger(log),
	)

	sessionService := service.New(sessions, proofVerifier,
		service.WithLogger(log),
		service.WithMetrics(relayMetrics),
		service.WithTracer(tr),
		service.WithValidity(cfg.Relay.SessionValidity),
		service.WithRelayDID(cfg.Relay.DID),
	)

	sessionReaper, err := reaper.New(sessions,
		reaper.WithInterval(cfg.Relay.ReaperInterval),
		reaper.WithGrace(cfg.Relay.ReaperGrace),
		reaper.WithLogger(log),
		reaper.WithMetrics(relayMetrics),
		reaper.WithTracer(tr),
	)
	if err != nil {
		return fmt.Errorf("create reaper: %w", err)
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:   log,
		Metrics:  httpMetrics,
		Gatherer: reg,
		Health:   healthHandler,
		RateLimiter: middleware.NewRateLimiter(
			middleware.RateLimitConfig{
				Requests: cfg.Server.RateLimitRequests,
				Window:   cfg.Server.RateLimitWindow,
			},
			middleware.WithRateLimitLogger(log),
			middleware.WithRateLimitMetrics(httpMetrics),
		),
		TrustedProxies: cfg.Server.TrustedProxies,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		API:            []httptransport.RouteRegistrar{handler.New(sessionService, log, cfg.Server.PublicBaseURL)},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      httptransport.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := sessionReaper.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("session reaper: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return redisClient.RunPoolStats(gctx, poolStatsInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
