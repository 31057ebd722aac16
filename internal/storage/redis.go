package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/go-redis/redis/v8"
)

const jobKeyPrefix = "relayer:job:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL expires finished jobs; zero keeps them
	TTL time.Duration
}

// RedisJobStore keeps job records as JSON documents in Redis
type RedisJobStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg *RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisJobStore creates a new RedisJobStore
func NewRedisJobStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisJobStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisJobStore{client: client, ttl: ttl, logger: logger}
}

func jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

// CreateJob stores a new job; an existing id is an error
func (s *RedisJobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	data, err := encodeJSON(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	ok, err := s.client.SetNX(ctx, jobKey(job.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	if !ok {
		return fmt.Errorf("failed to create job: %s already exists", job.ID)
	}
	return nil
}

// GetJob retrieves a job by its ID
func (s *RedisJobStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	data, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return &job, nil
}

// UpdateJob overwrites an existing job. Terminal jobs get the configured TTL.
func (s *RedisJobStore) UpdateJob(ctx context.Context, job *domain.Job) error {
	data, err := encodeJSON(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	ttl := time.Duration(0)
	if job.Status.IsTerminal() {
		ttl = s.ttl
	}

	ok, err := s.client.SetXX(ctx, jobKey(job.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if !ok {
		return domain.ErrJobNotFound
	}

	s.logger.Debug("Job updated",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)),
	)
	return nil
}
