package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/cuongbtq/pool-relayer/internal/relayer/processor"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue is the consuming side of the job queue
type Queue interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Ack(deliveryTag uint64) error
	Nack(deliveryTag uint64, requeue bool) error
}

// InFlightGauge tracks jobs being processed
type InFlightGauge interface {
	JobStarted() func()
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Store         domain.JobStore
	Queue         Queue
	Handler       processor.Handler
	Metrics       InFlightGauge
	QueueName     string
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
	RequeueDelay  time.Duration
}

// Worker represents the background job worker
type Worker struct {
	logger        *slog.Logger
	store         domain.JobStore
	queue         Queue
	handler       processor.Handler
	metrics       InFlightGauge
	workerID      string
	queueName     string
	concurrency   int
	prefetchCount int
	jobTimeout    time.Duration
	requeueDelay  time.Duration
	jobsChan      chan *domain.JobMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) (*Worker, error) {
	if cfg.Store == nil || cfg.Queue == nil || cfg.Handler == nil {
		return nil, errors.New("worker requires a store, a queue and a handler")
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("worker concurrency must be positive, got %d", cfg.Concurrency)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		logger:        logger,
		store:         cfg.Store,
		queue:         cfg.Queue,
		handler:       cfg.Handler,
		metrics:       cfg.Metrics,
		workerID:      "worker-" + uuid.New().String(),
		queueName:     cfg.QueueName,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		jobTimeout:    cfg.JobTimeout,
		requeueDelay:  cfg.RequeueDelay,
		jobsChan:      make(chan *domain.JobMessage, cfg.Concurrency),
		stopChan:      make(chan struct{}),
	}, nil
}

// Start consumes the queue and blocks until ctx is canceled or the
// delivery channel closes
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	// the dispatcher is the only sender, so workers drain what is left and exit
	close(w.jobsChan)
	w.wg.Wait()

	w.logger.Info("Worker dispatcher exited")
	return nil
}

// Stop gracefully stops the worker and waits for in-flight jobs
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopChan)
		w.wg.Wait()
		w.logger.Info("Worker stopped")
	})
}
