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

	"github.com/cuongbtq/pool-relayer/internal/config"
	"github.com/cuongbtq/pool-relayer/internal/relayer/chain"
	"github.com/cuongbtq/pool-relayer/internal/storage"
	"github.com/cuongbtq/pool-relayer/internal/worker"
	"github.com/cuongbtq/pool-relayer/shared/logger"
	"github.com/cuongbtq/pool-relayer/shared/metrics"
	"github.com/cuongbtq/pool-relayer/shared/postgresql"
	"github.com/cuongbtq/pool-relayer/shared/rabbitmq"
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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := storage.Open(ctx, &storage.Options{
		Driver:   cfg.Storage.Driver,
		Postgres: postgresConfig(&cfg.Database),
		Redis:    &storage.RedisConfig{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB, TTL: cfg.Redis.JobTTL},
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

	m := metrics.New(metrics.Config{Namespace: cfg.Metrics.Namespace, ServiceName: cfg.App.Name})
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics.Port, m, appLogger.Logger)
	}

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

	relay, err := buildPipeline(cfg, network, client, store, m, appLogger)
	if err != nil {
		return fmt.Errorf("failed to build relay pipeline: %w", err)
	}

	ok, balance, err := chain.CheckSenderBalance(ctx, client, relay.sender, network.MinimumBalance)
	switch {
	case err != nil:
		appLogger.Warn("Could not read relayer balance", slog.String("error", err.Error()))
	case !ok:
		appLogger.Warn("Relayer balance is below the network minimum",
			slog.String("balance", balance.String()),
			slog.String("minimum", network.MinimumBalance.String()),
		)
	}
	m.RecordSenderBalance(err == nil && ok)

	workerInstance, err := worker.NewWorker(&worker.Config{
		Logger:        appLogger.Component("worker"),
		Store:         store,
		Queue:         rabbitClient,
		Handler:       relay.processor,
		Metrics:       m,
		QueueName:     cfg.RabbitMQ.Queue.Name,
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:    cfg.Worker.JobTimeout,
		RequeueDelay:  cfg.Worker.RequeueDelay,
	})
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- workerInstance.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully",
		slog.String("network", network.Name),
		slog.String("relayer", relay.sender.Hex()),
		slog.String("pool", network.PoolAddress.Hex()),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		if err != nil {
			appLogger.Error("Worker error", slog.String("error", err.Error()))
			return err
		}
		appLogger.Warn("Worker stopped consuming")
	}

	cancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics server forced to shutdown", slog.String("error", err.Error()))
		}
	}

	appLogger.Info("Worker service shutdown complete")
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

func startMetricsServer(port int, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("Metrics server listening", slog.String("address", srv.Addr))
	return srv
}
