package backend

import (
	"context"
	"errors"
	"fmt"

	"expense-tracker/internal/amqp"
	"expense-tracker/internal/idempotency"
	"expense-tracker/internal/log"
	"expense-tracker/internal/services"
	"expense-tracker/internal/storage"
	"expense-tracker/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend opens the store and connects the optional integrations.
// Broker and Redis failures are logged and the backend runs without them.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.createRepository(config)
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Repository: repo}
	var closers []func() error

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Events = client
			publisher = client
			closers = append(closers, client.Close)
		}
	}

	if config.RedisAddr != "" {
		rdb, err := idempotency.NewRedisClient(ctx, config.RedisAddr)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to connect to Redis, idempotency keys disabled", log.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized Redis idempotency store", "addr", config.RedisAddr)
			result.Idempotency = idempotency.NewRedisStore(rdb)
			closers = append(closers, rdb.Close)
		}
	}

	result.Service = services.NewTransactionService(repo, publisher)
	closers = append(closers, result.Service.Close)

	result.Cleanup = func() error {
		var errs []error
		for _, c := range closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		"type", config.Type,
		"amqp_enabled", result.Events != nil,
		"idempotency_enabled", result.Idempotency != nil)
	return result, nil
}

func (f *DefaultFactory) createRepository(config Config) (storage.Repository, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Opened SQLite store", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Opened Postgres store")
		return repo, nil
	case MemoryBackend:
		f.logger.Warn("Using in-memory store, data is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
