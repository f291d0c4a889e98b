// Package postgres provides a PostgreSQL-backed storage driver: a generated
// tsvector column with a GIN index for lexical search and a pgvector column
// with an HNSW cosine index for vector search.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"entgo.io/ent/dialect"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"

	"github.com/papercomputeco/kb/pkg/storage/sqlstore"
)

// foreignKeyViolation is the SQLSTATE for foreign_key_violation.
const foreignKeyViolation = "23503"

// Driver implements storage.Driver using PostgreSQL with pgvector.
type Driver struct {
	*sqlstore.Store
}

// NewDriver creates a new PostgreSQL-backed store.
// The connStr is a PostgreSQL connection string, e.g.
// "host=localhost port=5432 user=kb password=kb dbname=kb sslmode=disable"
// or a connection URI like "postgres://kb:kb@localhost:5432/kb?sslmode=disable".
func NewDriver(ctx context.Context, connStr string, dims uint, logger *slog.Logger) (*Driver, error) {
	if dims == 0 {
		return nil, errors.New("postgres embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify the connection is reachable
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := sqlstore.Open(ctx, db, Dialect{}, dims, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Driver{Store: store}, nil
}

// Dialect is the PostgreSQL flavor of sqlstore.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return dialect.Postgres }

func (Dialect) Schema(dims uint) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS kb_statements (
			id BIGSERIAL PRIMARY KEY,
			subject TEXT NOT NULL,
			predicate TEXT NOT NULL,
			object TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			term_type TEXT NOT NULL DEFAULT 'NamedNode'
				CHECK (term_type IN ('NamedNode', 'BlankNode', 'Literal', 'Quad')),
			language TEXT NOT NULL DEFAULT '',
			datatype TEXT NOT NULL DEFAULT '',
			UNIQUE (subject, predicate, object, context)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS kb_chunks (
			chunk_id BIGSERIAL PRIMARY KEY,
			statement_id BIGINT NOT NULL REFERENCES kb_statements(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			embedding vector(%d),
			content_tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
		)`, dims),
		`CREATE INDEX IF NOT EXISTS kb_chunks_statement_idx ON kb_chunks(statement_id)`,
		`CREATE INDEX IF NOT EXISTS kb_chunks_fts_idx ON kb_chunks USING GIN (content_tsv)`,
		`CREATE INDEX IF NOT EXISTS kb_chunks_vector_idx ON kb_chunks USING hnsw (embedding vector_cosine_ops)`,
	}
}

func (Dialect) Rebind(query string) string { return sqlstore.DollarRebind(query) }

func (Dialect) EmbeddingValue() string { return "?::vector" }

func (Dialect) EncodeEmbedding(v []float32) any { return sqlstore.VectorText(v) }

func (Dialect) EmbeddingColumn() string { return "embedding::text" }

// AfterInsertChunk is a no-op: the HNSW index is maintained by the engine.
func (Dialect) AfterInsertChunk(context.Context, sqlstore.Querier, int64, []float32) error {
	return nil
}

// LexicalQuery ORs the terms into a tsquery. Terms are already reduced to
// letters and digits so they cannot carry tsquery operators.
func (Dialect) LexicalQuery(terms []string, limit int) (string, []any) {
	return `SELECT statement_id FROM (
			SELECT c.statement_id, MAX(ts_rank(c.content_tsv, q)) AS score
			FROM kb_chunks c, to_tsquery('english', $1) q
			WHERE c.content_tsv @@ q
			GROUP BY c.statement_id
		) r
		ORDER BY score DESC, statement_id
		LIMIT $2`, []any{strings.Join(terms, " | "), limit}
}

func (Dialect) VectorQuery(v []float32, limit int) (string, []any) {
	return `SELECT statement_id
		FROM kb_chunks
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1::vector, chunk_id
		LIMIT $2`, []any{sqlstore.VectorText(v), limit}
}

func (Dialect) IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// CascadeEnforced is always true: PostgreSQL foreign keys cannot be disabled
// per session.
func (Dialect) CascadeEnforced(context.Context, sqlstore.Querier) (bool, error) {
	return true, nil
}
