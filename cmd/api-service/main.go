package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/pool-relayer/internal/api/handler"
	"github.com/cuongbtq/pool-relayer/internal/api/router"
	"github.com/cuongbtq/pool-relayer/internal/config"
	"github.com/cuongbtq/pool-relayer/internal/relayer/chain"
	"github.com/cuongbtq/pool-relayer/internal/relayer/jobs"
	"github.com/cuongbtq/pool-relayer/internal/storage"
	"github.com/cuongbtq/pool-relayer/shared/logger"
	"github.com/cuongbtq/pool-relayer/shared/metrics"
	"github.com/cuongbtq/pool-relayer/shared/postgresql"
	"github.com/cuongbtq/pool-relayer/shared/rabbitmq"
	"github.com/ethereum/go-ethereum/common"
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
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
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

	ctx := context.Background()

	store, closeStore, err := storage.Open(ctx, &storage.Options{
		Driver:   cfg.Storage.Driver,
		Postgres: postgresConfig(&cfg.Database),
		Redis:    &storage.RedisConfig{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB, TTL: cfg.Redis.JobTTL},
		Migrate:  true,
		Logger:   appLogger.Component("storage"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}
	defer closeStore()

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Component("rabbitmq"))
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	network, err := lookupNetwork(&cfg.Relayer)
	if err != nil {
		return err
	}

	registry := chain.NewRegistry(nil, appLogger.Component("chain"))
	defer registry.Close()

	client, err := registry.Network(ctx, network)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", network.Name, err)
	}

	m := metrics.New(metrics.Config{Namespace: cfg.Metrics.Namespace, ServiceName: cfg.App.Name})

	r, err := initRouter(cfg, &handler.Dependencies{
		Logger:         appLogger.Component("api"),
		Jobs:           jobs.NewService(store, rabbitClient, appLogger.Component("jobs")),
		Balances:       client,
		Metrics:        m,
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
		ChainID:        network.ChainID,
		RelayerAddress: common.HexToAddress(cfg.Relayer.SenderAddress),
		RewardAddress:  common.HexToAddress(cfg.Relayer.RewardAddress),
		MinimumBalance: network.MinimumBalance,
	}, m)
	if err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
		slog.String("network", network.Name),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	}

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
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
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

func postgresConfig(cfg *config.DatabaseConfig) *postgresql.Config {
	return &postgresql.Config{
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
	}
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		RoutingKey:         cfg.RoutingKey,
		DeadLetterExchange: cfg.DeadLetter.Exchange,
		DeadLetterQueue:    cfg.DeadLetter.Queue,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
}

func lookupNetwork(cfg *config.RelayerConfig) (chain.Network, error) {
	overrides := chain.Overrides{
		RPCURL:      cfg.RPCURL,
		PoolAddress: cfg.PoolAddress,
		GasLimit:    cfg.GasLimit,
	}
	if cfg.MinimumBalance != "" {
		minimum, err := config.ParseWei(cfg.MinimumBalance)
		if err != nil {
			return chain.Network{}, err
		}
		overrides.MinimumBalance = minimum
	}

	network, err := chain.Lookup(cfg.ChainID, overrides)
	if err != nil {
		return chain.Network{}, fmt.Errorf("failed to resolve network: %w", err)
	}
	return network, nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, deps *handler.Dependencies, m *metrics.Metrics) (*gin.Engine, error) {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r, err := router.SetupRouter(deps, m)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
	return r, nil
}
