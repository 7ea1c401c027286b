package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/chairbook/internal/api/router"
	"github.com/wolfman30/chairbook/internal/availability"
	"github.com/wolfman30/chairbook/internal/bookings"
	"github.com/wolfman30/chairbook/internal/catalog"
	appconfig "github.com/wolfman30/chairbook/internal/config"
	"github.com/wolfman30/chairbook/internal/http/handlers"
	"github.com/wolfman30/chairbook/internal/observability/metrics"
	"github.com/wolfman30/chairbook/internal/schedule"
	"github.com/wolfman30/chairbook/internal/tenant"
	"github.com/wolfman30/chairbook/pkg/logging"
)

func main() {
	// .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting chairbook API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"memory_store", cfg.UseMemoryStore,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	pool := connectPostgresPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, logger)
	if pool == nil {
		return errors.New("postgres unavailable")
	}
	defer pool.Close()

	sqlDB, err := openSQL(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	redisClient := redis.NewClient(redisOptions(cfg))
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed; tenant lookups will fail until it recovers", "error", err)
	}

	metricsHandler, bookingMetrics := setupMetrics()

	tenants := tenant.NewStore(redisClient)
	services := catalog.NewRepository(pool)
	schedules := schedule.NewRepository(sqlDB)
	store := newBookingStore(cfg, pool, logger)

	avail := availability.NewService(tenants, services, schedules, store, availability.Options{
		Granularity:  cfg.SlotGranularityMinutes,
		MaxDaysAhead: cfg.MaxDaysAhead,
	}, logger, bookingMetrics)
	guard := bookings.NewGuard(store, services, avail, logger, bookingMetrics)

	done := make(chan struct{})
	defer close(done)

	handler := router.New(&router.Config{
		Logger: logger,
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"postgres": handlers.PingFunc(pool.Ping),
			"redis":    handlers.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		}, logger),
		Availability:       handlers.NewAvailabilityHandler(avail, logger),
		Bookings:           handlers.NewBookingsHandler(guard, tenants, services, logger),
		Tenants:            handlers.NewTenantHandler(tenants, services, logger),
		Stats:              handlers.NewStatsHandler(bookings.NewStatsRepository(pool), logger),
		MetricsHandler:     metricsHandler,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		Done:               done,
	})
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes disabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serve(ctx, srv, cfg.ShutdownTimeout, logger)
}

// serve runs srv until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}

// connectPostgresPool returns nil when the URL is empty or the database is unreachable.
func connectPostgresPool(ctx context.Context, url string, maxConns int, logger *logging.Logger) *pgxpool.Pool {
	if url == "" {
		return nil
	}
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		logger.Error("invalid DATABASE_URL", "error", err)
		return nil
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(pingCtx, poolCfg)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// openSQL opens the database/sql handle used by the schedule repository.
func openSQL(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open sql db: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sql db: %w", err)
	}
	return db, nil
}

func redisOptions(cfg *appconfig.Config) *redis.Options {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

func newBookingStore(cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) bookings.Store {
	if cfg.UseMemoryStore {
		logger.Warn("using in-memory booking store; bookings are lost on restart")
		return bookings.NewMemoryStore(cfg.AdmissionLockTimeout)
	}
	return bookings.NewPostgresStore(pool, cfg.AdmissionLockTimeout)
}
