// Package store persists verification receipts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/shadowlock/pkg/config"
	"github.com/Mindburn-Labs/shadowlock/pkg/receipts"
)

var ErrReceiptNotFound = errors.New("receipt not found")

// ReceiptStore defines the interface for persisting and retrieving
// verification receipts. Storing an ID twice keeps the first receipt.
type ReceiptStore interface {
	Store(ctx context.Context, r *receipts.Receipt) error
	Get(ctx context.Context, receiptID string) (*receipts.Receipt, error)
	// List returns the newest receipts first.
	List(ctx context.Context, limit int) ([]*receipts.Receipt, error)
	Close() error
}

// Open selects a backend from cfg.ReceiptStore.
func Open(ctx context.Context, cfg *config.Config) (ReceiptStore, error) {
	switch cfg.ReceiptStore {
	case "", config.StoreMemory:
		return NewMemoryReceiptStore(), nil

	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		s, err := NewSQLiteReceiptStore(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil

	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to reach postgres: %w", err)
		}
		s := NewPostgresReceiptStore(db)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		return NewRedisReceiptStore(client), nil

	default:
		return nil, fmt.Errorf("unknown receipt store %q", cfg.ReceiptStore)
	}
}
