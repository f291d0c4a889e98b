// Package sqlite provides a SQLite-backed storage driver: statements and chunks
// in ordinary tables, an FTS5 index over chunk content and a sqlite-vec vec0
// index over chunk embeddings.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"entgo.io/ent/dialect"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/kb/pkg/storage/sqlstore"
)

// ErrFTS5Unavailable is returned when go-sqlite3 was compiled without FTS5.
// mattn/go-sqlite3 only includes it under the sqlite_fts5 (or fts5) build tag.
var ErrFTS5Unavailable = errors.New("sqlite was built without FTS5 support: rebuild with -tags sqlite_fts5")

const memoryPath = ":memory:"

// Driver implements storage.Driver using SQLite with FTS5 and sqlite-vec.
type Driver struct {
	*sqlstore.Store
}

// Config holds configuration for the SQLite driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewDriver opens (creating if needed) a SQLite knowledge base.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, errors.New("sqlite embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", dsn(c.DBPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if c.DBPath == memoryPath {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := checkFTS5(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	var vecVersion string
	if err := db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	store, err := sqlstore.Open(ctx, db, Dialect{}, c.Dimensions, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	if logger != nil {
		logger.Debug("opened sqlite knowledge base", "path", c.DBPath, "dimensions", c.Dimensions, "sqlite_vec", vecVersion)
	}

	return &Driver{Store: store}, nil
}

// dsn turns a file path into a go-sqlite3 DSN whose options apply to every
// pooled connection. WAL lets searches read while ingest writes.
func dsn(path string) string {
	if path == memoryPath {
		return path
	}
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
}

func checkFTS5(ctx context.Context, db *sql.DB) error {
	var used int
	if err := db.QueryRowContext(ctx, "SELECT sqlite_compileoption_used('ENABLE_FTS5')").Scan(&used); err != nil {
		return fmt.Errorf("checking sqlite compile options: %w", err)
	}
	if used != 1 {
		return ErrFTS5Unavailable
	}
	return nil
}

// Dialect is the SQLite flavor of sqlstore.Dialect.
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
		`CREATE TABLE IF NOT EXISTS kb_chunks (
			chunk_id INTEGER PRIMARY KEY AUTOINCREMENT,
			statement_id INTEGER NOT NULL REFERENCES kb_statements(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			embedding BLOB
		)`,
		`CREATE INDEX IF NOT EXISTS kb_chunks_statement_idx ON kb_chunks(statement_id)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS kb_chunks_fts USING fts5(
			content,
			content='kb_chunks',
			content_rowid='chunk_id',
			tokenize='porter unicode61'
		)`,
		fmt.Sprintf(
			`CREATE VIRTUAL TABLE IF NOT EXISTS kb_chunks_vec USING vec0(chunk_id INTEGER PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
			dims,
		),
		`CREATE TRIGGER IF NOT EXISTS kb_chunks_ai AFTER INSERT ON kb_chunks BEGIN
			INSERT INTO kb_chunks_fts(rowid, content) VALUES (new.chunk_id, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS kb_chunks_ad AFTER DELETE ON kb_chunks BEGIN
			INSERT INTO kb_chunks_fts(kb_chunks_fts, rowid, content) VALUES ('delete', old.chunk_id, old.content);
			DELETE FROM kb_chunks_vec WHERE chunk_id = old.chunk_id;
		END`,
	}
}

func (Dialect) Rebind(query string) string { return sqlstore.QuestionRebind(query) }

func (Dialect) EmbeddingValue() string { return "?" }

func (Dialect) EncodeEmbedding(v []float32) any { return sqlstore.SerializeFloat32(v) }

func (Dialect) EmbeddingColumn() string { return "embedding" }

func (Dialect) AfterInsertChunk(ctx context.Context, q sqlstore.Querier, chunkID int64, v []float32) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO kb_chunks_vec(chunk_id, embedding) VALUES (?, ?)`,
		chunkID, sqlstore.SerializeFloat32(v),
	)
	return err
}

// LexicalQuery quotes every term so FTS5 operators in user input are inert,
// ORs them and keeps each statement's best rank (bm25, lower is better).
// rank can only be read directly off the full-text table, so the matches
// are materialized before the join.
func (Dialect) LexicalQuery(terms []string, limit int) (string, []any) {
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
		LIMIT ?`, []any{matchExpr(terms), limit}
}

func matchExpr(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// VectorQuery runs the vec0 kNN with the single ORDER BY distance it
// accepts, then re-sorts the hits so equal distances resolve by chunk id.
// A statement appears once per matching chunk.
func (Dialect) VectorQuery(v []float32, limit int) (string, []any) {
	return `WITH knn AS MATERIALIZED (
			SELECT chunk_id, distance
			FROM kb_chunks_vec
			WHERE embedding MATCH ? AND k = ?
			ORDER BY distance
		)
		SELECT c.statement_id
		FROM knn
		JOIN kb_chunks c ON c.chunk_id = knn.chunk_id
		ORDER BY knn.distance, knn.chunk_id`, []any{sqlstore.SerializeFloat32(v), limit}
}

func (Dialect) IsForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

func (Dialect) CascadeEnforced(ctx context.Context, q sqlstore.Querier) (bool, error) {
	var on int
	if err := q.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&on); err != nil {
		return false, err
	}
	return on == 1, nil
}
