package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/cuongbtq/pool-relayer/shared/postgresql"
)

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Options selects and configures a job store
type Options struct {
	Driver   string
	Postgres *postgresql.Config
	Redis    *RedisConfig
	// Migrate creates the jobs table on open; postgres only
	Migrate bool
	Logger  *slog.Logger
}

// Open connects the configured job store. The returned func releases its connection.
func Open(ctx context.Context, opts *Options) (domain.JobStore, func() error, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Driver {
	case DriverPostgres, "":
		client, err := postgresql.NewClient(ctx, opts.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		store := NewPostgresJobStore(client.DB(), logger)
		if opts.Migrate {
			if err := store.Migrate(ctx); err != nil {
				client.Close()
				return nil, nil, err
			}
		}
		return store, client.Close, nil

	case DriverRedis:
		client, err := NewRedisClient(ctx, opts.Redis)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to Redis", slog.String("addr", opts.Redis.Addr))
		return NewRedisJobStore(client, opts.Redis.TTL, logger), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
