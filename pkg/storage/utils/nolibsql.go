//go:build !libsql

package storageutils

import (
	"context"
	"errors"
	"log/slog"

	"github.com/papercomputeco/kb/pkg/storage"
)

// LibSQLEnabled reports whether this binary was built with libsql support.
// go-libsql and go-sqlite3 both bundle SQLite and cannot link into one binary.
const LibSQLEnabled = false

func newLibSQL(context.Context, string, uint, *slog.Logger) (storage.Driver, error) {
	return nil, errors.New("kb was built without libsql support: rebuild with -tags libsql")
}
