package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hiroki-koketsu/go-task-tracker/internal/auth"
	"github.com/hiroki-koketsu/go-task-tracker/internal/config"
	"github.com/hiroki-koketsu/go-task-tracker/internal/handler"
	"github.com/hiroki-koketsu/go-task-tracker/internal/repository"
	"github.com/hiroki-koketsu/go-task-tracker/internal/service"
	"github.com/hiroki-koketsu/go-task-tracker/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Create a basic logger for startup (before OTel is initialized)
	startupLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		startupLogger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	startupLogger.Info("starting application",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("store", cfg.StoreDriver),
		slog.Bool("otel", cfg.OTelEnabled),
	)

	ctx := context.Background()
	// Released in reverse order after the HTTP server drains.
	var acquired []shutdownStep

	logger := telemetry.NewLocalLogger(os.Stdout, cfg.ServiceName)
	if cfg.OTelEnabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			startupLogger.Error("failed to initialize tracer provider", slog.Any("error", err))
			os.Exit(1)
		}
		acquired = append(acquired, shutdownStep{name: "tracer-provider", run: tp.Shutdown})

		mp, err := telemetry.InitMeterProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			startupLogger.Error("failed to initialize meter provider", slog.Any("error", err))
			os.Exit(1)
		}
		acquired = append(acquired, shutdownStep{name: "meter-provider", run: mp.Shutdown})

		// Initialize logger provider last for log-trace correlation
		lp, otelLogger, err := telemetry.InitLoggerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			startupLogger.Error("failed to initialize logger provider", slog.Any("error", err))
			os.Exit(1)
		}
		acquired = append(acquired, shutdownStep{name: "logger-provider", run: lp.Shutdown})
		logger = otelLogger
	}

	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open account store", slog.Any("error", err))
		os.Exit(1)
	}
	acquired = append(acquired, shutdownStep{name: "account-store", run: closeStore})

	meter := otel.Meter(cfg.ServiceName)
	metrics, err := telemetry.NewMetrics(meter, repo.Count)
	if err != nil {
		logger.Error("failed to create metrics", slog.Any("error", err))
		os.Exit(1)
	}

	tokens := auth.NewTokenManager(auth.TokenConfig{
		SecretKey: cfg.JWTSecret,
		TTL:       cfg.TokenTTL,
		Issuer:    cfg.ServiceName,
	})
	accounts := service.NewAccountService(repo, auth.NewPasswordHasher(cfg.BcryptCost), tokens)
	tasks := service.NewTaskService(repo)

	var taskTokens handler.TokenValidator
	if cfg.AuthRequired {
		taskTokens = tokens
	}

	authHandler := handler.NewAuthHandler(accounts, tokens, logger, metrics)
	taskHandler := handler.NewTaskHandler(tasks, taskTokens, logger, metrics)

	r := middleware.Logger(handler.NewRouter(authHandler, taskHandler))

	// Wrap router with OpenTelemetry HTTP instrumentation
	otelHandler := otelhttp.NewHandler(r, "http-server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			// Skip tracing for health checks
			return r.URL.Path != "/health"
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      otelHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM, then drain the server and release resources
	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"task-tracker": orderedShutdown(logger,
			shutdownStep{name: "http-server", run: server.Shutdown},
			acquired,
		),
	})

	exitCode := <-wait
	logger.Info("server stopped", slog.Int("exit_code", exitCode))
	os.Exit(exitCode)
}

// openStore builds the account repository selected by cfg.StoreDriver and
// returns a func that releases its connections.
func openStore(ctx context.Context, cfg *config.Config) (repository.AccountRepository, func(context.Context) error, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		db, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		return repository.NewGormAccountRepository(db), func(context.Context) error { return sqlDB.Close() }, nil

	case config.StoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := repository.ConnectMongo(connectCtx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		repo, err := repository.NewMongoAccountRepository(connectCtx, client.Database(cfg.MongoDatabase))
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return repo, client.Disconnect, nil

	default:
		return repository.NewMemoryAccountRepository(), func(context.Context) error { return nil }, nil
	}
}
