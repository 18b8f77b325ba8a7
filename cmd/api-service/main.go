package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/auth"
	"github.com/cuongbtq/transcribe-be/internal/api/handler"
	"github.com/cuongbtq/transcribe-be/internal/api/router"
	"github.com/cuongbtq/transcribe-be/internal/api/service"
	"github.com/cuongbtq/transcribe-be/internal/api/storage"
	"github.com/cuongbtq/transcribe-be/internal/config"
	"github.com/cuongbtq/transcribe-be/internal/events"
	"github.com/cuongbtq/transcribe-be/internal/summary"
	"github.com/cuongbtq/transcribe-be/internal/worker"
	"github.com/cuongbtq/transcribe-be/shared/logger"
	"github.com/cuongbtq/transcribe-be/shared/postgresql"
	"github.com/cuongbtq/transcribe-be/shared/rabbitmq"
	"github.com/cuongbtq/transcribe-be/shared/supabase"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				appLogger.Warn("Failed to close resource", slog.Any("error", err))
			}
		}
	}()

	store, closer, err := initStore(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	publisher, closer, err := initPublisher(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	dispatcher := service.NewDispatcher(service.DispatcherConfig{
		Store: store,
		Signer: supabase.NewStorage(supabase.Config{
			URL:        cfg.Storage.URL,
			Bucket:     cfg.Storage.Bucket,
			ServiceKey: cfg.Storage.ServiceKey,
		}),
		Worker: worker.NewClient(worker.Config{
			BaseURL:     cfg.Processor.BaseURL,
			CallbackURL: cfg.Processor.CallbackURL,
			Timeout:     cfg.Processor.HandoffTimeout,
		}, appLogger.Logger),
		Publisher:    publisher,
		Logger:       appLogger.Logger,
		SignedURLTTL: cfg.Storage.SignedURLTTL,
	})

	ingest := service.NewIngest(service.IngestConfig{
		Store:      store,
		Summarizer: initSummarizer(&cfg.Summary, appLogger.Logger),
		Publisher:  publisher,
		Logger:     appLogger.Logger,
	})

	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:         appLogger.Logger,
		Store:          store,
		Dispatcher:     dispatcher,
		Ingest:         ingest,
		Verifier:       verifier,
		ServiceName:    cfg.App.Name,
		CallbackSecret: cfg.Processor.CallbackSecret,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
		slog.String("store", cfg.Database.Driver),
		slog.Bool("events", cfg.RabbitMQ.Enabled),
		slog.String("summary", cfg.Summary.Provider),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableSource,
		NoColor:      cfg.NoColor,
		TimeFormat:   time.RFC3339,
	})
}

// initStore opens the configured job store
func initStore(cfg *config.DatabaseConfig, logger *slog.Logger) (storage.Store, io.Closer, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return storage.NewMemoryStore(), nil, nil
	}

	pg, err := postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStorage(pg, logger)
	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
	}

	logger.Info("Database connection established", slog.String("pool", pg.Stats()))
	return store, pg, nil
}

// initPublisher connects the lifecycle event publisher. Disabled RabbitMQ
// yields a no-op publisher.
func initPublisher(cfg *config.RabbitMQConfig, logger *slog.Logger) (events.Publisher, io.Closer, error) {
	if !cfg.Enabled {
		return events.Noop{}, nil, nil
	}

	client, err := rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		BindingKey:         cfg.BindingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("RabbitMQ connection established", slog.String("exchange", cfg.Exchange.Name))
	return events.NewAMQPPublisher(client, logger), client, nil
}

// initSummarizer selects the summary generator
func initSummarizer(cfg *config.SummaryConfig, logger *slog.Logger) summary.Generator {
	if cfg.Provider == config.ProviderNone {
		return summary.Noop{Reason: "summaries disabled"}
	}
	if cfg.APIKey == "" {
		logger.Warn("Summary API key not set, summaries will be skipped")
	}
	return summary.NewAnthropic(summary.AnthropicConfig{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
		BaseURL:   cfg.BaseURL,
	}, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
