// Package sqlstore implements storage.Driver over database/sql. Engine
// differences (DDL, placeholders, vector encoding, full-text and kNN query
// phrasing) live behind a Dialect; pattern selects are built with ent's SQL
// builder.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage"
)

const (
	statementsTable = "kb_statements"
	chunksTable     = "kb_chunks"
)

var statementColumns = []string{"id", "subject", "predicate", "object", "context", "term_type", "language", "datatype"}

// Store is a storage.Driver backed by a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	dims    uint
	logger  *slog.Logger
}

var _ storage.Driver = (*Store)(nil)

// Open creates the schema for embeddings of dims dimensions and returns a
// Store over db. The Store takes ownership of db and closes it on Close.
func Open(ctx context.Context, db *sql.DB, d Dialect, dims uint, logger *slog.Logger) (*Store, error) {
	if dims == 0 {
		return nil, errors.New("embedding dimensions cannot be 0")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	for _, ddl := range d.Schema(dims) {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &Store{db: db, dialect: d, dims: dims, logger: logger}, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dimensions returns the embedding dimension of the vector index.
func (s *Store) Dimensions() uint {
	return s.dims
}

func (s *Store) ops(q Querier) *ops {
	return &ops{q: q, d: s.dialect, dims: s.dims}
}

// InTx runs fn inside a database transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(s.ops(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Store) GetStatement(ctx context.Context, id int64) (*statement.Statement, error) {
	return s.ops(s.db).GetStatement(ctx, id)
}

func (s *Store) SelectStatements(ctx context.Context, pattern statement.Pattern) ([]statement.Statement, error) {
	return s.ops(s.db).SelectStatements(ctx, pattern)
}

func (s *Store) Chunks(ctx context.Context, statementID int64) ([]statement.Chunk, error) {
	return s.ops(s.db).Chunks(ctx, statementID)
}

func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	return s.ops(s.db).Stats(ctx)
}

func (s *Store) InsertStatement(ctx context.Context, st statement.Statement) (int64, bool, error) {
	var (
		id    int64
		isNew bool
	)
	err := s.InTx(ctx, func(tx storage.Tx) error {
		var err error
		id, isNew, err = tx.InsertStatement(ctx, st)
		return err
	})
	return id, isNew, err
}

func (s *Store) InsertChunk(ctx context.Context, c statement.Chunk) (int64, error) {
	var id int64
	err := s.InTx(ctx, func(tx storage.Tx) error {
		var err error
		id, err = tx.InsertChunk(ctx, c)
		return err
	})
	return id, err
}

func (s *Store) DeleteChunks(ctx context.Context, statementID int64) (int64, error) {
	var n int64
	err := s.InTx(ctx, func(tx storage.Tx) error {
		var err error
		n, err = tx.DeleteChunks(ctx, statementID)
		return err
	})
	return n, err
}

func (s *Store) DeleteStatement(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.InTx(ctx, func(tx storage.Tx) error {
		var err error
		deleted, err = tx.DeleteStatement(ctx, id)
		return err
	})
	return deleted, err
}

// SearchLexical runs the dialect's full-text query. Queries without any word
// characters match nothing.
func (s *Store) SearchLexical(ctx context.Context, query string, limit int) ([]index.Candidate, error) {
	terms := index.Terms(query)
	if len(terms) == 0 || limit <= 0 {
		return []index.Candidate{}, nil
	}

	q, args := s.dialect.LexicalQuery(terms, limit)
	ids, err := s.queryIDs(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying lexical index: %w", err)
	}

	s.logger.Debug("lexical search", "terms", len(terms), "candidates", len(ids))
	return index.Rank(ids), nil
}

// SearchVector runs the dialect's kNN query over embedded chunks.
func (s *Store) SearchVector(ctx context.Context, query []float32, limit int) ([]index.Candidate, error) {
	if err := index.CheckDimensions(s.dims, query); err != nil {
		return nil, err
	}
	if index.IsZero(query) || limit <= 0 {
		return []index.Candidate{}, nil
	}

	q, args := s.dialect.VectorQuery(query, limit)
	ids, err := s.queryIDs(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}

	s.logger.Debug("vector search", "k", limit, "candidates", len(ids))
	return index.Rank(ids), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
