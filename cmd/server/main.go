package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/parallaxfi/dex-engine/internal/exchange"
	"github.com/parallaxfi/dex-engine/internal/ledger"
	"github.com/parallaxfi/dex-engine/internal/metrics"
	"github.com/parallaxfi/dex-engine/internal/oracle"
	"github.com/parallaxfi/dex-engine/internal/risk"
	"github.com/parallaxfi/dex-engine/internal/store"
)

func envUint(name string, fallback uint64) uint64 {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
		slog.Warn("invalid env value, using default", "name", name, "value", v)
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		slog.Warn("invalid env duration, using default", "name", name, "value", v)
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Token ledger ---
	// In-memory for single-instance deployments; balances reset on restart
	// unless the token side is run against an external program.
	led := ledger.NewMemoryLedger()

	// --- Oracle ---
	// Prices arrive over POST /api/v1/oracle/prices and expire after
	// ORACLE_MAX_AGE. ORACLE_STATIC_PRICE pins a fixed quote instead, for
	// local development.
	var orc oracle.Oracle
	var feed *oracle.Feed
	if v := os.Getenv("ORACLE_STATIC_PRICE"); v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil {
			slog.Error("invalid ORACLE_STATIC_PRICE", "value", v, "err", err)
			os.Exit(1)
		}
		fixed, err := oracle.ToFixed(price)
		if err != nil {
			slog.Error("invalid ORACLE_STATIC_PRICE", "value", v, "err", err)
			os.Exit(1)
		}
		orc = oracle.Static(fixed)
		slog.Info("using static oracle price", "price", price.String())
	} else {
		feed = oracle.NewFeed(envDuration("ORACLE_MAX_AGE", time.Minute))
		orc = feed
	}

	// --- Risk limits ---
	limiter := risk.NewPositionLimiter(
		envUint("MAX_POSITION_NOTIONAL", 0),
		envUint("MAX_ACCOUNT_NOTIONAL", 0),
	)

	// --- WebSocket hub ---
	wsHub := exchange.NewWSHub()
	go wsHub.Run()

	// --- Exchange service ---
	svc := exchange.NewService(st, led, orc, feed, limiter, wsHub)

	// --- Funding scheduler ---
	fundingCtx, stopFunding := context.WithCancel(context.Background())
	defer stopFunding()
	interval := envDuration("FUNDING_INTERVAL", time.Hour)
	go svc.RunFundingLoop(fundingCtx, interval)
	slog.Info("funding scheduler started", "interval", interval.String())

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"dex-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.Routes)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("dex-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopFunding()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down dex-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("dex-engine stopped")
}
