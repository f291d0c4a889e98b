// Package storage defines the Statement Store and Chunk Store contracts.
//
// A Driver persists statements and their derived chunks, enforces the
// statement -> chunk cascade structurally, and serves both sub-indexes of
// hybrid search over the chunks it holds.
package storage

import (
	"context"

	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/statement"
)

// Reader is the read side of the store.
type Reader interface {
	// GetStatement returns the statement with the given id or a NotFoundError.
	GetStatement(ctx context.Context, id int64) (*statement.Statement, error)

	// SelectStatements returns every statement matching all non-empty fields
	// of the pattern, ordered by id.
	SelectStatements(ctx context.Context, pattern statement.Pattern) ([]statement.Statement, error)

	// Chunks returns the chunks of a statement ordered by id.
	Chunks(ctx context.Context, statementID int64) ([]statement.Chunk, error)

	// Stats returns row counts.
	Stats(ctx context.Context) (Stats, error)
}

// Writer is the write side of the store.
type Writer interface {
	// InsertStatement normalizes and inserts a statement. Returns the id and
	// true if newly inserted. A duplicate (subject, predicate, object, context)
	// is not an error: the existing id is returned with false.
	InsertStatement(ctx context.Context, s statement.Statement) (int64, bool, error)

	// InsertChunk stores a chunk and returns its id. A ReferentialError is
	// returned when the statement does not exist, a DimensionMismatchError when
	// a non-nil embedding has the wrong length. A nil embedding stores the
	// chunk for lexical search only.
	InsertChunk(ctx context.Context, c statement.Chunk) (int64, error)

	// DeleteChunks removes every chunk of a statement, returning the count.
	DeleteChunks(ctx context.Context, statementID int64) (int64, error)

	// DeleteStatement removes a statement and, in the same atomic step, all of
	// its chunks. Returns false if no such statement existed. Returns
	// ErrCascadeUnsupported without deleting anything when the engine is not
	// enforcing the cascade.
	DeleteStatement(ctx context.Context, id int64) (bool, error)
}

// Tx is a unit of work: everything done through it commits or rolls back
// together.
type Tx interface {
	Reader
	Writer
}

// Driver is a complete statement and chunk store.
// Each Writer method called on the Driver directly runs in its own transaction.
type Driver interface {
	Reader
	Writer
	index.Lexical
	index.Vector

	// InTx runs fn in a single transaction. The transaction commits if fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the store's resources.
	Close() error
}

// Stats holds store row counts.
type Stats struct {
	Statements     int64 `json:"statements"`
	Chunks         int64 `json:"chunks"`
	EmbeddedChunks int64 `json:"embedded_chunks"`
}
