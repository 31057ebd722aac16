package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// StorageDriverPostgres keeps jobs in PostgreSQL
	StorageDriverPostgres = "postgres"
	// StorageDriverRedis keeps jobs in Redis
	StorageDriverRedis = "redis"

	// RootCheckContract asks the tx records contract whether its root is known
	RootCheckContract = "contract"
	// RootCheckStatic matches both roots against configured allow lists
	RootCheckStatic = "static"
	// RootCheckNone skips root authentication
	RootCheckNone = "none"

	maxBps = 10_000
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Logging    LoggingConfig    `yaml:"logging"`
	Worker     WorkerConfig     `yaml:"worker"`
	Relayer    RelayerConfig    `yaml:"relayer"`
	Fee        FeeConfig        `yaml:"fee"`
	GasOracle  GasOracleConfig  `yaml:"gas_oracle"`
	Compliance ComplianceConfig `yaml:"compliance"`
	IPFS       IPFSConfig       `yaml:"ipfs"`
	TxManager  TxManagerConfig  `yaml:"tx_manager"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	JobTTL   time.Duration `yaml:"job_ttl"`
}

// StorageConfig selects the job store
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	DeadLetter DeadLetterConfig `yaml:"dead_letter"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name    string `yaml:"name"`
	Durable bool   `yaml:"durable"`
}

// DeadLetterConfig names where rejected jobs are routed
type DeadLetterConfig struct {
	Exchange string `yaml:"exchange"`
	Queue    string `yaml:"queue"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	RequeueDelay    time.Duration `yaml:"requeue_delay"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RelayerConfig identifies the network and the relayer's accounts
type RelayerConfig struct {
	ChainID        int64  `yaml:"chain_id"`
	RPCURL         string `yaml:"rpc_url"`
	PoolAddress    string `yaml:"pool_address"`
	PrivateKey     string `yaml:"private_key"`
	SenderAddress  string `yaml:"sender_address"`
	RewardAddress  string `yaml:"reward_address"`
	GasLimit       uint64 `yaml:"gas_limit"`
	MinimumBalance string `yaml:"minimum_balance"`
}

// FeeConfig holds the service fee schedule. Amounts are wei.
type FeeConfig struct {
	Policy               string `yaml:"policy"`
	TransferFlat         string `yaml:"transfer_flat"`
	WithdrawalPercentBps uint64 `yaml:"withdrawal_percent_bps"`
}

// GasOracleConfig holds the gas price oracle endpoint
type GasOracleConfig struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	RetryMax int           `yaml:"retry_max"`
}

// ComplianceConfig holds the compliance proof verifier settings
type ComplianceConfig struct {
	PublicParamsPath string          `yaml:"public_params_path"`
	VerifierURL      string          `yaml:"verifier_url"`
	VerifierTimeout  time.Duration   `yaml:"verifier_timeout"`
	VerifierRetryMax int             `yaml:"verifier_retry_max"`
	RootCheck        RootCheckConfig `yaml:"root_check"`
}

// RootCheckConfig selects how proof roots are authenticated
type RootCheckConfig struct {
	Mode              string   `yaml:"mode"`
	TxRecordsContract string   `yaml:"tx_records_contract"`
	TxRecordsRoots    []string `yaml:"tx_records_roots"`
	AllowedRoots      []string `yaml:"allowed_roots"`
}

// IPFSConfig holds the pinning service credentials
type IPFSConfig struct {
	PinataURL string        `yaml:"pinata_url"`
	APIKey    string        `yaml:"api_key"`
	SecretKey string        `yaml:"secret_key"`
	Timeout   time.Duration `yaml:"timeout"`
}

// TxManagerConfig holds transaction broadcasting settings
type TxManagerConfig struct {
	Confirmations uint64        `yaml:"confirmations"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	BumpAfter     time.Duration `yaml:"bump_after"`
	BumpPercent   uint64        `yaml:"bump_percent"`
	MaxGasPrice   string        `yaml:"max_gas_price"`
}

// MetricsConfig holds the prometheus endpoint settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Namespace string `yaml:"namespace"`
}

// Load reads the configuration file, expands ${VAR} references from the
// environment and parses it
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageDriverPostgres
	}
	if c.Fee.Policy == "" {
		c.Fee.Policy = "proportional"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "relayer"
	}
}

// Validate checks the settings shared by both services
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Database.Host == "" {
			return errors.New("database host is required")
		}
		if err := validatePort("database", c.Database.Port); err != nil {
			return err
		}
		if c.Database.Database == "" {
			return errors.New("database name is required")
		}
	case StorageDriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis addr is required")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.RabbitMQ.Host == "" {
		return errors.New("rabbitmq host is required")
	}
	if err := validatePort("rabbitmq", c.RabbitMQ.Port); err != nil {
		return err
	}
	if c.RabbitMQ.Exchange.Name == "" {
		return errors.New("rabbitmq exchange name is required")
	}
	if c.RabbitMQ.Queue.Name == "" {
		return errors.New("rabbitmq queue name is required")
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}

	if c.Relayer.ChainID <= 0 {
		return errors.New("relayer chain_id is required")
	}
	if !common.IsHexAddress(c.Relayer.RewardAddress) {
		return fmt.Errorf("invalid relayer reward_address %q", c.Relayer.RewardAddress)
	}
	if c.Relayer.PoolAddress != "" && !common.IsHexAddress(c.Relayer.PoolAddress) {
		return fmt.Errorf("invalid relayer pool_address %q", c.Relayer.PoolAddress)
	}
	if c.Relayer.MinimumBalance != "" {
		if _, err := ParseWei(c.Relayer.MinimumBalance); err != nil {
			return fmt.Errorf("invalid relayer minimum_balance: %w", err)
		}
	}

	return nil
}

// ValidateAPIConfig checks the settings the API service needs
func (c *Config) ValidateAPIConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if !common.IsHexAddress(c.Relayer.SenderAddress) {
		return fmt.Errorf("invalid relayer sender_address %q", c.Relayer.SenderAddress)
	}

	return validatePort("server", c.Server.Port)
}

// ValidateWorkerConfig checks the settings the worker service needs
func (c *Config) ValidateWorkerConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Relayer.PrivateKey == "" {
		return errors.New("relayer private_key is required")
	}
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be greater than 0")
	}
	if c.Worker.JobTimeout <= 0 {
		return errors.New("worker job_timeout must be greater than 0")
	}
	if c.Worker.ShutdownTimeout <= 0 {
		return errors.New("worker shutdown_timeout must be greater than 0")
	}
	if c.Metrics.Enabled {
		if err := validatePort("metrics", c.Metrics.Port); err != nil {
			return err
		}
	}

	return c.ValidateRelayerConfig()
}

// ValidateRelayerConfig checks the pipeline settings: fees, compliance
// verification, pinning and transaction management
func (c *Config) ValidateRelayerConfig() error {
	switch c.Fee.Policy {
	case "proportional", "additive":
	default:
		return fmt.Errorf("unknown fee policy %q", c.Fee.Policy)
	}
	if c.Fee.WithdrawalPercentBps > maxBps {
		return fmt.Errorf("fee withdrawal_percent_bps must not exceed %d", maxBps)
	}
	if c.Fee.TransferFlat != "" {
		if _, err := ParseWei(c.Fee.TransferFlat); err != nil {
			return fmt.Errorf("invalid fee transfer_flat: %w", err)
		}
	}

	if c.Compliance.PublicParamsPath == "" {
		return errors.New("compliance public_params_path is required")
	}
	if c.Compliance.VerifierURL == "" {
		return errors.New("compliance verifier_url is required")
	}

	rc := c.Compliance.RootCheck
	switch rc.Mode {
	case RootCheckContract:
		if !common.IsHexAddress(rc.TxRecordsContract) {
			return fmt.Errorf("invalid compliance root_check tx_records_contract %q", rc.TxRecordsContract)
		}
		if len(rc.AllowedRoots) == 0 {
			return errors.New("compliance root_check allowed_roots is required in contract mode")
		}
	case RootCheckStatic:
		if len(rc.TxRecordsRoots) == 0 || len(rc.AllowedRoots) == 0 {
			return errors.New("compliance root_check tx_records_roots and allowed_roots are required in static mode")
		}
	case RootCheckNone:
	case "":
		return errors.New("compliance root_check mode is required")
	default:
		return fmt.Errorf("unknown compliance root_check mode %q", rc.Mode)
	}

	if c.IPFS.APIKey == "" || c.IPFS.SecretKey == "" {
		return errors.New("ipfs api_key and secret_key are required")
	}

	if c.TxManager.MaxGasPrice != "" {
		if _, err := ParseWei(c.TxManager.MaxGasPrice); err != nil {
			return fmt.Errorf("invalid tx_manager max_gas_price: %w", err)
		}
	}

	return nil
}

// ParseWei reads a non-negative decimal wei amount
func ParseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%q is not a non-negative integer", s)
	}
	return v, nil
}

func validatePort(name string, port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("invalid %s port: %d (must be between %d and %d)", name, port, MinPort, MaxPort)
	}
	return nil
}
