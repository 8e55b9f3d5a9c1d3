package backend

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"expense-tracker/internal/config"
	"expense-tracker/internal/core"
	"expense-tracker/internal/log"
)

func quietFactory() Factory {
	return NewFactory(log.New(log.Config{Output: io.Discard}))
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	cfg := &config.Config{DataBackend: "sheets"}
	_, err := FromAppConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "sheets") {
		t.Fatalf("expected invalid backend error, got %v", err)
	}
	if !strings.Contains(err.Error(), "valid: sqlite, postgres, memory") {
		t.Fatalf("error should list the valid backends, got %v", err)
	}

	cfg = &config.Config{
		DataBackend:  config.BackendPostgres,
		DatabaseURL:  "postgres://localhost/tracker",
		AMQPURL:      "amqp://localhost",
		AMQPExchange: "ex",
		AMQPQueue:    "q",
		RedisAddr:    "localhost:6379",
	}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if bc.Type != PostgresBackend || bc.DatabaseURL != cfg.DatabaseURL || bc.RedisAddr != cfg.RedisAddr || bc.AMQPQueue != "q" {
		t.Fatalf("fields not carried over: %+v", bc)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"unknown type", Config{Type: "csv"}, true},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://x", AMQPExchange: "e"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	ctx := context.Background()
	res, err := quietFactory().CreateBackend(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Cleanup()

	if res.Events != nil || res.Idempotency != nil {
		t.Fatal("optional integrations should be disabled without configuration")
	}
	tx, err := res.Service.Create(ctx, core.TransactionInput{Type: core.Credit, Amount: 3})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got, err := res.Repository.Get(ctx, tx.ID); err != nil || got.Amount != 3 {
		t.Fatalf("service and repository should share the store: %+v, %v", got, err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tracker.db")
	res, err := quietFactory().CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if err := res.Service.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
}

func TestUnreachableRedisIsOptional(t *testing.T) {
	res, err := quietFactory().CreateBackend(context.Background(), Config{Type: MemoryBackend, RedisAddr: "127.0.0.1:1"})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Cleanup()
	if res.Idempotency != nil {
		t.Fatal("idempotency should be disabled when Redis is unreachable")
	}
}
