package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	eventapp "github.com/orgextract/backend/internal/application/event"
	orgapp "github.com/orgextract/backend/internal/application/organisation"
	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/cache"
	"github.com/orgextract/backend/internal/infrastructure/config"
	"github.com/orgextract/backend/internal/infrastructure/event"
	"github.com/orgextract/backend/internal/infrastructure/eventstore"
	"github.com/orgextract/backend/internal/infrastructure/gateway"
	"github.com/orgextract/backend/internal/infrastructure/logger"
	"github.com/orgextract/backend/internal/infrastructure/migration"
	"github.com/orgextract/backend/internal/infrastructure/persistence"
	"github.com/orgextract/backend/internal/infrastructure/telemetry"
	"github.com/orgextract/backend/internal/interfaces/http/handler"
	"github.com/orgextract/backend/internal/interfaces/http/middleware"
	"github.com/orgextract/backend/internal/interfaces/http/router"
	"github.com/orgextract/backend/migrations"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Telemetry providers stay no-op unless enabled
	telCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		ExportLogs:        cfg.Telemetry.ExportLogs,
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telCfg, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log := loggerProvider.Bridge(baseLog, zapcore.InfoLevel)
	defer func() {
		_ = log.Sync()
	}()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer shutdownTelemetry(log, loggerProvider, meterProvider, tracerProvider)

	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
	workflowMetrics, err := telemetry.NewWorkflowMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create workflow metrics", zap.Error(err))
	}

	log.Info("Starting organisation backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("transport", cfg.Transport.Driver),
	)

	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg.Database.DSN(), log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Event log, read models and repositories
	eventLog := eventstore.NewGormEventLog(db.DB, log)
	checkpoints := eventstore.NewGormCheckpointStore(db.DB)
	repo := persistence.NewEventSourcedOrganisationRepository(eventLog, log)
	history := persistence.NewGormHistoryRepository(db.DB)

	registry, err := event.NewOrganisationMessageRegistry()
	if err != nil {
		log.Fatal("Failed to build message registry", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Transport.Driver == config.BackendRedis || cfg.Idempotency.Backend == config.BackendRedis {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil && cfg.Transport.Driver == config.BackendRedis {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		if redisClient != nil {
			defer func() {
				if err := redisClient.Close(); err != nil {
					log.Error("Error closing Redis client", zap.Error(err))
				}
			}()
		}
	}

	transport := newTransport(cfg, redisClient, registry, log)

	storeOpts := []cache.IdempotencyStoreFactoryOption{cache.WithLogger(log)}
	if redisClient != nil {
		storeOpts = append(storeOpts, cache.WithRedisClient(redisClient))
	}
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Idempotency, cfg.Redis, storeOpts...).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Application services and consumers
	retrier := orgapp.NewRetrier(orgapp.RetryPolicyFromConfig(cfg.Retry), workflowMetrics, log)
	service := orgapp.NewService(repo, history, retrier, workflowMetrics, log)
	workflow := orgapp.NewWorkflow(repo,
		gateway.NewSimulatedRiskGateway(cfg.Gateway, log),
		gateway.NewSimulatedAsicGateway(cfg.Gateway, log),
		retrier, workflowMetrics, log)

	consumers := append(workflow.Handlers(), orgapp.NewHistoryProjection(history, log))
	idempotency := shared.IdempotencyConfig{TTL: cfg.Idempotency.TTL, Enabled: cfg.Idempotency.Enabled}
	for _, h := range consumers {
		transport.Subscribe(event.NewIdempotentHandler(h.Name(), h, idempotencyStore, log,
			event.WithIdempotencyConfig(idempotency)))
		log.Info("Consumer subscribed", zap.String("consumer", h.Name()), zap.Strings("kinds", h.MessageKinds()))
	}

	if err := transport.Start(ctx); err != nil {
		log.Fatal("Failed to start message transport", zap.Error(err))
	}
	defer func() {
		if err := transport.Stop(context.Background()); err != nil {
			log.Error("Error stopping message transport", zap.Error(err))
		}
	}()

	// Change projector
	projector := event.NewProjector(eventLog, checkpoints, registry, transport, event.ProjectorConfig{
		Name:             cfg.Projector.Name,
		BatchSize:        cfg.Projector.BatchSize,
		PollInterval:     cfg.Projector.PollInterval,
		StartFromPresent: cfg.Projector.StartFromPresent,
	}, log, event.WithProjectorMetrics(workflowMetrics))
	if cfg.Projector.Enabled {
		if err := projector.Start(ctx); err != nil {
			log.Fatal("Failed to start projector", zap.Error(err))
		}
		defer func() {
			if err := projector.Stop(context.Background()); err != nil {
				log.Error("Error stopping projector", zap.Error(err))
			}
		}()
		log.Info("Projector started",
			zap.String("name", cfg.Projector.Name),
			zap.Int("batch_size", cfg.Projector.BatchSize),
			zap.Duration("poll_interval", cfg.Projector.PollInterval),
		)
	}

	// HTTP surface
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Version).
		WithHealthCheck("database", db.Ping).
		WithHealthDetail("database_pool", func(ctx context.Context) (any, error) { return db.Stats() })
	if redisClient != nil {
		systemHandler.WithHealthCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	engine := router.NewEngine(router.EngineConfig{
		Logger: log,
		Meter:  meter,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
	router.Mount(engine, router.Handlers{
		Organisation: handler.NewOrganisationHandler(service),
		Projection: handler.NewProjectionHandler(
			eventapp.NewProjectionService(eventLog, checkpoints, []string{cfg.Projector.Name}, log)),
		System: systemHandler,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newTransport builds the message transport named by the configuration
func newTransport(cfg *config.Config, client *redis.Client, registry *event.MessageRegistry, log *zap.Logger) shared.MessageTransport {
	if cfg.Transport.Driver != config.BackendRedis {
		return event.NewInMemoryMessageBus(log)
	}
	return event.NewRedisMessageTransport(client, registry, event.RedisTransportConfig{
		Stream:       cfg.Transport.Stream,
		Group:        cfg.Transport.Group,
		Consumer:     cfg.Transport.Consumer,
		BatchSize:    cfg.Transport.BatchSize,
		Block:        cfg.Transport.Block,
		MaxLen:       cfg.Transport.MaxLen,
		ClaimMinIdle: cfg.Transport.ClaimMinIdle,
	}, log)
}

// runMigrations applies the embedded migrations on a dedicated connection,
// since closing the migrator closes the database it was given
func runMigrations(dsn string, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrations.FS, log)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer m.Close()
	return m.Up()
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownTelemetry(log *zap.Logger, providers ...shutdowner) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}
}
