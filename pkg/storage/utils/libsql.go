//go:build libsql

package storageutils

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/kb/pkg/storage"
	"github.com/papercomputeco/kb/pkg/storage/libsql"
)

// LibSQLEnabled reports whether this binary was built with libsql support.
const LibSQLEnabled = true

func newLibSQL(ctx context.Context, dsn string, dims uint, logger *slog.Logger) (storage.Driver, error) {
	return libsql.NewDriver(ctx, libsql.Config{DSN: dsn, Dimensions: dims}, logger)
}
