// Package storageutils builds the configured storage driver.
package storageutils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/kb/pkg/storage"
	"github.com/papercomputeco/kb/pkg/storage/inmemory"
	"github.com/papercomputeco/kb/pkg/storage/postgres"
	"github.com/papercomputeco/kb/pkg/storage/sqlite"
)

const (
	ProviderSQLite   = "sqlite"
	ProviderLibSQL   = "libsql"
	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
)

type NewStorageDriverOpts struct {
	ProviderType string
	SQLitePath   string
	LibSQLPath   string
	PostgresDSN  string
	Dimensions   uint
	Logger       *slog.Logger
}

// NewStorageDriver opens the store selected by o.ProviderType.
func NewStorageDriver(ctx context.Context, o *NewStorageDriverOpts) (storage.Driver, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch o.ProviderType {
	case "", ProviderSQLite:
		path, err := ResolveSQLitePath(o.SQLitePath)
		if err != nil {
			return nil, err
		}
		d, err := sqlite.NewDriver(ctx, sqlite.Config{DBPath: path, Dimensions: o.Dimensions}, logger)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Info("using SQLite storage", "path", path)
		return d, nil

	case ProviderLibSQL:
		if o.LibSQLPath == "" {
			return nil, errors.New("storage.libsql_path is required for the libsql provider")
		}
		d, err := newLibSQL(ctx, o.LibSQLPath, o.Dimensions, logger)
		if err != nil {
			return nil, fmt.Errorf("opening libsql store: %w", err)
		}
		logger.Info("using libSQL storage", "dsn", o.LibSQLPath)
		return d, nil

	case ProviderPostgres:
		if o.PostgresDSN == "" {
			return nil, errors.New("storage.postgres_dsn is required for the postgres provider")
		}
		d, err := postgres.NewDriver(ctx, o.PostgresDSN, o.Dimensions, logger)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return d, nil

	case ProviderMemory:
		if o.Dimensions == 0 {
			return nil, errors.New("dimensions cannot be 0")
		}
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(o.Dimensions), nil

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", o.ProviderType)
	}
}
