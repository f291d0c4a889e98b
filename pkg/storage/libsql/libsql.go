// Package libsql provides a libSQL-backed storage driver using libSQL's native
// vector column type and approximate nearest neighbour index alongside FTS5.
package libsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"entgo.io/ent/dialect"
	_ "github.com/tursodatabase/go-libsql" // register the libsql driver as "libsql"

	"github.com/papercomputeco/kb/pkg/storage/sqlstore"
)

const vectorIndex = "kb_chunks_vector_idx"

// Driver implements storage.Driver using libSQL.
type Driver struct {
	*sqlstore.Store
}

// Config holds configuration for the libSQL driver.
type Config struct {
	// DSN is a local database path, ":memory:", or a libsql:// URL.
	DSN string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewDriver opens a libSQL knowledge base.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.DSN == "" {
		return nil, errors.New("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, errors.New("libsql embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("libsql", dsn(c.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store, err := sqlstore.Open(ctx, db, Dialect{}, c.Dimensions, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Driver{Store: store}, nil
}

func dsn(path string) string {
	if path == ":memory:" || strings.Contains(path, "://") || strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path
}

// Dialect is the libSQL flavor of sqlstore.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return dialect.SQLite }

func (Dialect) Schema(dims uint) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS kb_statements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
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
			chunk_id INTEGER PRIMARY KEY AUTOINCREMENT,
			statement_id INTEGER NOT NULL REFERENCES kb_statements(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			embedding F32_BLOB(%d)
		)`, dims),
		`CREATE INDEX IF NOT EXISTS kb_chunks_statement_idx ON kb_chunks(statement_id)`,
		`CREATE INDEX IF NOT EXISTS ` + vectorIndex + ` ON kb_chunks(libsql_vector_idx(embedding, 'metric=cosine'))`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS kb_chunks_fts USING fts5(
			content,
			content='kb_chunks',
			content_rowid='chunk_id',
			tokenize='porter unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS kb_chunks_ai AFTER INSERT ON kb_chunks BEGIN
			INSERT INTO kb_chunks_fts(rowid, content) VALUES (new.chunk_id, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS kb_chunks_ad AFTER DELETE ON kb_chunks BEGIN
			INSERT INTO kb_chunks_fts(kb_chunks_fts, rowid, content) VALUES ('delete', old.chunk_id, old.content);
		END`,
	}
}

func (Dialect) Rebind(query string) string { return sqlstore.QuestionRebind(query) }

func (Dialect) EmbeddingValue() string { return "vector32(?)" }

func (Dialect) EncodeEmbedding(v []float32) any { return sqlstore.VectorText(v) }

func (Dialect) EmbeddingColumn() string {
	return "CASE WHEN embedding IS NULL THEN NULL ELSE vector_extract(embedding) END"
}

// AfterInsertChunk is a no-op: libsql_vector_idx is maintained by the engine.
func (Dialect) AfterInsertChunk(context.Context, sqlstore.Querier, int64, []float32) error {
	return nil
}

func (Dialect) LexicalQuery(terms []string, limit int) (string, []any) {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}

	return `WITH hits AS MATERIALIZED (
			SELECT rowid AS chunk_id, rank AS score
			FROM kb_chunks_fts
			WHERE kb_chunks_fts MATCH ?
		)
		SELECT c.statement_id
		FROM hits
		JOIN kb_chunks c ON c.chunk_id = hits.chunk_id
		GROUP BY c.statement_id
		ORDER BY MIN(hits.score), c.statement_id
		LIMIT ?`, []any{strings.Join(quoted, " OR "), limit}
}

// VectorQuery takes the approximate top k from the index, then orders the
// hits by exact cosine distance so equal-distance ties resolve by chunk id.
func (Dialect) VectorQuery(v []float32, limit int) (string, []any) {
	text := sqlstore.VectorText(v)
	return `SELECT c.statement_id
		FROM vector_top_k('` + vectorIndex + `', vector32(?), ?) AS t
		JOIN kb_chunks c ON c.rowid = t.id
		ORDER BY vector_distance_cos(c.embedding, vector32(?)), c.chunk_id`, []any{text, limit, text}
}

func (Dialect) IsForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func (Dialect) CascadeEnforced(ctx context.Context, q sqlstore.Querier) (bool, error) {
	var on int
	if err := q.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&on); err != nil {
		return false, err
	}
	return on == 1, nil
}
