package backend

import (
	"context"

	"expense-tracker/internal/amqp"
	"expense-tracker/internal/idempotency"
	"expense-tracker/internal/services"
	"expense-tracker/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult bundles everything the binaries need from the data layer
type BackendResult struct {
	Repository storage.Repository
	Service    *services.TransactionService
	// Events is nil when no broker is configured or reachable.
	Events *amqp.Client
	// Idempotency is nil when Redis is not configured or reachable.
	Idempotency idempotency.Store
	Cleanup     CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string

	// Optional integrations
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	RedisAddr    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
