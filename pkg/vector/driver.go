// Package vector defines external vector indexes: engines that hold chunk
// embeddings outside the chunk store and answer cosine kNN queries with
// statement ids.
package vector

import (
	"context"

	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/statement"
)

// Driver is an external vector index kept in step with the chunk store by the
// ingestion pipeline. Hits for statements deleted from the store may briefly
// remain; hybrid search drops ids that no longer hydrate.
type Driver interface {
	index.Vector

	// Upsert stores the embedded chunks keyed by chunk id. Chunks without an
	// embedding are skipped.
	Upsert(ctx context.Context, chunks []statement.Chunk) error

	// DeleteStatement removes every point belonging to a statement.
	DeleteStatement(ctx context.Context, statementID int64) error

	// Close releases any resources held by the driver.
	Close() error
}
