package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/bioscopeai/bioscope-core/internal/api"
	"github.com/bioscopeai/bioscope-core/internal/api/handler"
	mw "github.com/bioscopeai/bioscope-core/internal/api/middleware"
	app "github.com/bioscopeai/bioscope-core/internal/app/classification"
	"github.com/bioscopeai/bioscope-core/internal/cache"
	"github.com/bioscopeai/bioscope-core/internal/config"
	"github.com/bioscopeai/bioscope-core/internal/infra/eventbus/kafka"
	store "github.com/bioscopeai/bioscope-core/internal/infra/storage/classification/postgres"
	"github.com/bioscopeai/bioscope-core/pkg/common/logger"
	"github.com/bioscopeai/bioscope-core/pkg/common/otel"
)

const serviceType = "core"

func main() {
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		stdlog.Fatalf("failed to get hostname: %v", err)
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("BIOSCOPE-CORE-%s", hostname)
	metadata := map[string]string{
		"service":  svcName,
		"hostname": hostname,
		"app":      serviceType,
	}

	log := logger.NewWithMetadata(os.Stdout, logger.LevelInfo, svcName, traceIDFn, logEvents, metadata)

	if err := run(log, svcName, hostname); err != nil {
		log.Error(context.Background(), "startup failed", "error", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger, svcName, hostname string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Telemetry.
	var tracer trace.Tracer
	if cfg.Telemetry.Enabled {
		tp, telemetryTeardown, err := otel.InitTelemetry(log, otel.Config{
			ServiceName:      svcName,
			ExporterEndpoint: cfg.Telemetry.ExporterEndpoint,
			ExcludedRoutes: map[string]struct{}{
				"/health": {},
				"/ready":  {},
			},
			Probability: cfg.Telemetry.SampleProb,
			ResourceAttributes: map[string]string{
				"library.language": "go",
				"host.name":        hostname,
			},
			InsecureExporter: cfg.Telemetry.InsecureExporter,
		})
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer telemetryTeardown(ctx)
		tracer = tp.Tracer(svcName)
	} else {
		tracer = noop.NewTracerProvider().Tracer(svcName)
	}

	// Database.
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer pool.Close()

	if err := runMigrations(pool); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info(ctx, "Migrations applied successfully")

	// Cache.
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("connecting redis: %w", err)
	}
	defer redisCache.Close()

	// Metrics.
	metrics, err := app.NewPipelineMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	// Kafka.
	kafkaClient, err := kafka.NewClient(&kafka.ClientConfig{
		Brokers:     cfg.Kafka.Brokers,
		GroupID:     cfg.Kafka.GroupID,
		ClientID:    cfg.Kafka.ClientID,
		ServiceType: serviceType,
		TLS: kafka.TLSConfig{
			Enabled:  cfg.Kafka.TLSEnabled,
			CAFile:   cfg.Kafka.TLSCAFile,
			CertFile: cfg.Kafka.TLSCert,
			KeyFile:  cfg.Kafka.TLSKey,
		},
		SASL: kafka.SASLConfig{
			Enabled:   cfg.Kafka.SASLEnabled,
			Username:  cfg.Kafka.SASLUsername,
			Password:  cfg.Kafka.SASLPassword,
			Mechanism: cfg.Kafka.SASLMechanism,
		},
	})
	if err != nil {
		return fmt.Errorf("creating kafka client: %w", err)
	}
	defer kafkaClient.Close()

	eventBus, err := kafka.ConnectEventBus(&kafka.EventBusConfig{
		JobTopic:    cfg.Kafka.JobTopic,
		ResultTopic: cfg.Kafka.ResultTopic,
		GroupID:     cfg.Kafka.GroupID,
		ClientID:    cfg.Kafka.ClientID,
		ServiceType: serviceType,
	}, kafkaClient, log, metrics, tracer)
	if err != nil {
		return fmt.Errorf("connecting event bus: %w", err)
	}

	// Repositories and services.
	jobRepo := store.NewJobStore(pool, tracer)
	resultRepo := store.NewResultStore(pool, tracer)
	imageRepo := store.NewImageStore(pool, tracer)

	jobService := app.NewJobService(jobRepo, imageRepo, eventBus, log, metrics, tracer)
	resultProcessor := app.NewResultProcessor(resultRepo, jobRepo, imageRepo, log, metrics, tracer)
	subscriber := app.NewResultSubscriber(eventBus, resultProcessor, log)
	statsService := app.NewStatsService(resultRepo, redisCache, log, tracer)

	if err := subscriber.StartConsuming(ctx); err != nil {
		return fmt.Errorf("starting result subscriber: %w", err)
	}

	// HTTP surface.
	router := api.NewRouter(api.Dependencies{
		Logger:    log,
		RateLimit: mw.NewRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),

		HealthHandler:    handler.NewHealthHandler(),
		ReadinessHandler: handler.NewReadinessHandler(pool, redisCache),

		RunJob:     handler.NewRunJobHandler(jobService),
		ListJobs:   handler.NewListJobsHandler(jobService),
		GetJob:     handler.NewGetJobHandler(jobService),
		DeleteJob:  handler.NewDeleteJobHandler(jobService),
		JobResults: handler.NewListJobResultsHandler(resultRepo),

		ImageResults:    handler.NewListImageResultsHandler(resultRepo),
		TodayStatistics: handler.NewTodayStatisticsHandler(statsService),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(gctx, "HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			log.Info(gctx, "Received shutdown signal", "signal", sig.String())
		case <-gctx.Done():
			log.Info(gctx, "Shutting down after server failure")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "Failed to shut down HTTP server", "error", err)
		}
		if err := subscriber.StopConsuming(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "Failed to stop result subscriber", "error", err)
		}
		return nil
	})

	err = g.Wait()

	cancel()
	if closeErr := eventBus.Close(); closeErr != nil {
		log.Error(ctx, "Failed to close event bus", "error", closeErr)
	}

	log.Info(context.Background(), "Shutdown complete")
	return err
}

// runMigrations uses golang-migrate to apply all up migrations from
// db/migrations, borrowing a database/sql handle from the pgx pool.
func runMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("could not create pgx driver: %w", err)
	}

	migrationsPath := "file://db/migrations"
	if p := os.Getenv("MIGRATIONS_PATH"); p != "" {
		migrationsPath = p
	}

	m, err := migrate.NewWithDatabaseInstance(migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	return nil
}
