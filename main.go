package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/fernlabs/clover/config"
	"github.com/fernlabs/clover/internal/repositories/appointment"
	"github.com/fernlabs/clover/internal/repositories/director"
	"github.com/fernlabs/clover/internal/repositories/networkconnection"
	"github.com/fernlabs/clover/pkg/database"
	"github.com/fernlabs/clover/pkg/events"
	"github.com/fernlabs/clover/pkg/graph"
	"github.com/fernlabs/clover/pkg/httpclient"
	"github.com/fernlabs/clover/pkg/identity"
	cloverkafka "github.com/fernlabs/clover/pkg/kafka"
	"github.com/fernlabs/clover/pkg/middleware"
	"github.com/fernlabs/clover/pkg/network"
	"github.com/fernlabs/clover/pkg/ratelimit"
	"github.com/fernlabs/clover/pkg/redis"
	"github.com/fernlabs/clover/pkg/registry"
	healthroutes "github.com/fernlabs/clover/pkg/routes/health"
	networkroutes "github.com/fernlabs/clover/pkg/routes/network"
	"github.com/fernlabs/clover/pkg/tracing"
	"github.com/fernlabs/clover/pkg/tracing/exporters"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger()
	ctx := context.Background()

	if cfg.TracingEnabled {
		exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.TracingEndpoint,
			Insecure: cfg.TracingInsecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			logger.WithError(err).Error("failed to create trace exporter")
			os.Exit(1)
		}
		provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(provider)
		tracing.SetTracer(provider.Tracer(cfg.AppName))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
	}

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName,
		cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)
	sqlxDB, err := connectWithRetry(cfg.DatabaseDriver, dsn, cfg.StartupMaxAttempts, logger)
	if err != nil {
		logger.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}
	defer sqlxDB.Close()
	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	db := database.NewDatabaseInstance(sqlxDB, logger)

	driver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
	if err != nil {
		logger.WithError(err).Error("failed to create migration driver")
		os.Exit(1)
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	var redisClient *redis.Client
	var limiter ratelimit.Limiter
	if cfg.RedisEnabled {
		redisClient, err = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("failed to connect to redis")
			os.Exit(1)
		}
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient, "registry", int64(cfg.RegistryRateLimit), cfg.RegistryRateWindow)
	} else {
		limiter = ratelimit.NewSlidingWindow(cfg.RegistryRateLimit, cfg.RegistryRateWindow)
	}

	httpClient := httpclient.NewClient(httpclient.Config{
		Timeout:         cfg.RegistryRequestTimeout,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}, logger)

	registryClient := registry.NewClient(registry.Config{
		BaseURL:  cfg.RegistryBaseURL,
		APIKey:   cfg.RegistryAPIKey,
		PageSize: cfg.RegistryPageSize,
	}, httpClient, limiter, logger)

	directorRepo := director.NewRepository(db, logger)
	appointmentRepo := appointment.NewRepository(db, logger)
	connectionRepo := networkconnection.NewRepository(db, logger)

	var identityEvents identity.EventSink
	var networkEvents network.EventSink
	if cfg.KafkaEnabled {
		producer := cloverkafka.NewProducer(cloverkafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
		emitter := events.NewEmitter(producer, logger)
		identityEvents = emitter
		networkEvents = emitter
	}

	nameResolver := identity.NewNameResolver(directorRepo, cfg.IdentityFuzzyThreshold, identityEvents, logger)
	resolver := identity.NewExternalIDResolver(directorRepo, nameResolver, identityEvents, logger)

	var projector network.Projector
	if cfg.GraphEnabled {
		graphClient, err := graph.NewClient(graph.Config{
			Host:     cfg.GraphDBHost,
			Port:     cfg.GraphDBPort,
			Username: cfg.GraphDBUser,
			Password: cfg.GraphDBPassword,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("failed to connect to graph database")
			os.Exit(1)
		}
		defer graphClient.Close(ctx)
		projector = graph.NewProjectionService(graphClient, logger)
	}

	builder := network.NewBuilder(
		registryClient, resolver, appointmentRepo, connectionRepo,
		projector, networkEvents, cfg.BuildCallDelay, logger,
	)
	opportunities := network.NewOpportunityService(connectionRepo, directorRepo, appointmentRepo, logger)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.Recover())

	var redisPing interface{ Ping() error }
	if redisClient != nil {
		redisPing = pinger{client: redisClient}
	}
	budget, _ := limiter.(healthroutes.RateBudget)
	checker := healthroutes.NewChecker(sqlxDB, redisPing, budget, version)
	checker.RegisterRoutes(e)

	networkHandler := networkroutes.NewHandler(builder, opportunities, logger)
	networkHandler.Register(e.Group("/api/v1/network"))

	checker.SetReady(true)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.Start(addr); err != nil {
			logger.WithError(err).Info("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to shut down server cleanly")
	}
}

type pinger struct {
	client *redis.Client
}

func (p pinger) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.client.Ping(ctx)
}

func connectWithRetry(driver, dsn string, maxAttempts int, logger ectologger.Logger) (*sqlx.DB, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var db *sqlx.DB
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		db, err = sqlx.Connect(driver, dsn)
		if err == nil {
			return db, nil
		}
		logger.WithError(err).WithFields(map[string]any{
			"attempt":      attempt,
			"max_attempts": maxAttempts,
		}).Warn("database not ready")
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return nil, err
}

func newLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		line, err := json.Marshal(msg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal log message: %v\n", err)
			return
		}
		fmt.Fprintln(os.Stdout, string(line))
	})
}
