// Package store holds the key-value backends behind the daily cache.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"papa-puns/internal/config"
)

var ErrClosed = errors.New("store is closed")

// Store is a durable key-value store. Implementations are safe for
// concurrent use.
type Store interface {
	// Get reports found=false for a missing key.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open builds the backend selected by cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		return NewPostgres(ctx, cfg.Database)
	case config.DriverSQLite:
		path := cfg.Store.Path
		if path == "" {
			path = filepath.Join(dataDir(), "papa-puns.db")
		}
		return NewSQLite(ctx, path)
	case config.DriverFile:
		dir := cfg.Store.Path
		if dir == "" {
			dir = filepath.Join(dataDir(), "store")
		}
		return NewFile(dir), nil
	case config.DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Store.Driver)
	}
}

func dataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".papa-puns")
	}
	return ".papa-puns"
}
