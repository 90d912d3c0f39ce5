package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/slotbook/scheduler/internal/config"
	"github.com/slotbook/scheduler/internal/domain/provider"
	"github.com/slotbook/scheduler/internal/domain/scheduling"
	"github.com/slotbook/scheduler/internal/platform/db"
	"github.com/slotbook/scheduler/internal/platform/events"
	"github.com/slotbook/scheduler/internal/platform/telemetry"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "scheduler-server",
		Short: "Appointment scheduling and availability API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "scheduler-server").Logger()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.OTelEnabled,
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRatio:    cfg.OTelSamplingRatio,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	// Database
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Tracing:  cfg.OTelEnabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	a := &app{cfg: cfg, logger: logger, pool: pool}

	// Redis backs the shared rate limiter and the provider directory cache.
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		a.rdb = redis.NewClient(opts)
		defer a.rdb.Close()
		a.checks = append(a.checks, db.Check{Name: "redis", Fn: func(ctx context.Context) error {
			return a.rdb.Ping(ctx).Err()
		}})
		logger.Info().Str("addr", opts.Addr).Msg("redis configured")
	}

	// Events
	var publisher events.Publisher = events.NopPublisher{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		publisher = events.NewKafkaPublisher(brokers, cfg.KafkaTopicPrefix)
		a.checks = append(a.checks, db.Check{Name: "kafka", Fn: events.ReadyCheck(brokers)})
		logger.Info().Strs("brokers", brokers).Msg("kafka event publishing enabled")
	}
	defer publisher.Close()

	a.wireServices(publisher)

	if cfg.MetricsEnabled {
		a.metrics = telemetry.NewMetrics()
		a.metrics.SetPoolStats(func() (int32, int32, int32) {
			s := pool.Stat()
			return s.AcquiredConns(), s.IdleConns(), s.TotalConns()
		})
	}

	e := a.newEcho()
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           telemetry.WrapHandler(e, "scheduler-server"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("flush traces")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// wireServices builds the repositories and domain services over the pool.
func (a *app) wireServices(publisher events.Publisher) {
	providerRepo := provider.NewRepoPG(a.pool)
	tx := scheduling.NewTransactorPG(a.pool)

	var directory scheduling.ProviderDirectory = providerRepo
	var cached *provider.CachedDirectory
	if a.rdb != nil {
		cached = provider.NewCachedDirectory(providerRepo, a.rdb, a.cfg.ProviderCacheTTL, a.logger)
		directory = cached
	}

	a.scheduling = scheduling.NewService(scheduling.Deps{
		Appointments: scheduling.NewAppointmentRepoPG(a.pool),
		Schedules:    scheduling.NewScheduleRepoPG(a.pool),
		Providers:    directory,
		References:   scheduling.NewReferenceRepoPG(a.pool),
		Tx:           tx,
		Publisher:    publisher,
		Logger:       a.logger,
	})

	a.providers = provider.NewService(providerRepo, tx, a.scheduling.Provisioner(), a.logger)
	if cached != nil {
		a.providers.SetCache(cached)
	}
}
