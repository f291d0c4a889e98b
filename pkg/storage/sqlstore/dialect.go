package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect captures what differs between engines. Shared queries are written
// with '?' placeholders and passed through Rebind.
type Dialect interface {
	// Name is the ent dialect name (dialect.SQLite, dialect.Postgres).
	Name() string

	// Schema returns the DDL statements creating tables, indexes and triggers
	// for embeddings of the given dimension. Every statement must be idempotent.
	Schema(dims uint) []string

	// Rebind rewrites '?' placeholders into the engine's native form.
	Rebind(query string) string

	// EmbeddingValue is the SQL expression a bound embedding is inserted
	// through, e.g. "?" or "vector32(?)".
	EmbeddingValue() string

	// EncodeEmbedding converts a vector to the bound parameter value.
	EncodeEmbedding(v []float32) any

	// EmbeddingColumn is the select expression reading an embedding back as
	// either a little-endian float32 blob or "[x,y,...]" text.
	EmbeddingColumn() string

	// AfterInsertChunk maintains any vector index not kept in sync by the
	// engine itself. Only called for chunks that carry an embedding.
	AfterInsertChunk(ctx context.Context, q Querier, chunkID int64, v []float32) error

	// LexicalQuery builds the full-text query over the terms, returning
	// statement ids best first, one row per statement.
	LexicalQuery(terms []string, limit int) (string, []any)

	// VectorQuery builds the kNN query, returning the statement id of each of
	// the limit nearest chunks, nearest first.
	VectorQuery(v []float32, limit int) (string, []any)

	// IsForeignKeyViolation reports whether err is the engine's foreign key
	// constraint error.
	IsForeignKeyViolation(err error) bool

	// CascadeEnforced reports whether the engine will cascade deletes on the
	// connection behind q.
	CascadeEnforced(ctx context.Context, q Querier) (bool, error)
}

// QuestionRebind leaves '?' placeholders unchanged.
func QuestionRebind(query string) string {
	return query
}

// DollarRebind rewrites '?' placeholders to $1, $2, ...
func DollarRebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := range len(query) {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
