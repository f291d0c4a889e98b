package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage"
)

// ops implements storage.Tx against any Querier.
type ops struct {
	q    Querier
	d    Dialect
	dims uint
}

func (o *ops) selectStatements() *entsql.Selector {
	return entsql.Dialect(o.d.Name()).
		Select(statementColumns...).
		From(entsql.Table(statementsTable))
}

func scanStatement(scan func(dest ...any) error) (statement.Statement, error) {
	var (
		s        statement.Statement
		termType string
	)
	err := scan(&s.ID, &s.Subject, &s.Predicate, &s.Object, &s.Context, &termType, &s.Language, &s.Datatype)
	s.TermType = statement.TermType(termType)
	return s, err
}

func (o *ops) GetStatement(ctx context.Context, id int64) (*statement.Statement, error) {
	query, args := o.selectStatements().Where(entsql.EQ("id", id)).Query()

	s, err := scanStatement(o.q.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("getting statement: %w", err)
	}
	return &s, nil
}

func (o *ops) SelectStatements(ctx context.Context, pattern statement.Pattern) ([]statement.Statement, error) {
	pattern = pattern.Normalize()

	var preds []*entsql.Predicate
	for _, field := range [...]struct{ column, value string }{
		{"subject", pattern.Subject},
		{"predicate", pattern.Predicate},
		{"object", pattern.Object},
		{"context", pattern.Context},
	} {
		if field.value != "" {
			preds = append(preds, entsql.EQ(field.column, field.value))
		}
	}

	sel := o.selectStatements()
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	query, args := sel.OrderBy("id").Query()

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting statements: %w", err)
	}
	defer rows.Close()

	out := []statement.Statement{}
	for rows.Next() {
		s, err := scanStatement(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning statement: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (o *ops) Chunks(ctx context.Context, statementID int64) ([]statement.Chunk, error) {
	query := o.d.Rebind(fmt.Sprintf(
		"SELECT chunk_id, statement_id, content, %s FROM %s WHERE statement_id = ? ORDER BY chunk_id",
		o.d.EmbeddingColumn(), chunksTable,
	))

	rows, err := o.q.QueryContext(ctx, query, statementID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	out := []statement.Chunk{}
	for rows.Next() {
		var (
			c   statement.Chunk
			raw any
		)
		if err := rows.Scan(&c.ID, &c.StatementID, &c.Content, &raw); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if c.Embedding, err = DecodeEmbedding(raw); err != nil {
			return nil, fmt.Errorf("decoding chunk %d embedding: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (o *ops) Stats(ctx context.Context) (storage.Stats, error) {
	var st storage.Stats
	err := o.q.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM `+statementsTable+`),
		(SELECT COUNT(*) FROM `+chunksTable+`),
		(SELECT COUNT(*) FROM `+chunksTable+` WHERE embedding IS NOT NULL)`,
	).Scan(&st.Statements, &st.Chunks, &st.EmbeddedChunks)
	if err != nil {
		return st, fmt.Errorf("counting rows: %w", err)
	}
	return st, nil
}

func (o *ops) InsertStatement(ctx context.Context, s statement.Statement) (int64, bool, error) {
	s, err := statement.Normalize(s)
	if err != nil {
		return 0, false, err
	}

	var id int64
	err = o.q.QueryRowContext(ctx, o.d.Rebind(`INSERT INTO `+statementsTable+`
		(subject, predicate, object, context, term_type, language, datatype)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subject, predicate, object, context) DO NOTHING
		RETURNING id`),
		s.Subject, s.Predicate, s.Object, s.Context, string(s.TermType), s.Language, s.Datatype,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("inserting statement: %w", err)
	}

	// Conflict: the statement already exists.
	query, args := entsql.Dialect(o.d.Name()).
		Select("id").
		From(entsql.Table(statementsTable)).
		Where(entsql.And(
			entsql.EQ("subject", s.Subject),
			entsql.EQ("predicate", s.Predicate),
			entsql.EQ("object", s.Object),
			entsql.EQ("context", s.Context),
		)).
		Query()
	if err := o.q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("looking up existing statement: %w", err)
	}
	return id, false, nil
}

func (o *ops) InsertChunk(ctx context.Context, c statement.Chunk) (int64, error) {
	var (
		query string
		args  = []any{c.StatementID, c.Content}
	)
	if c.Embedding != nil {
		if err := index.CheckDimensions(o.dims, c.Embedding); err != nil {
			return 0, err
		}
		query = `INSERT INTO ` + chunksTable + ` (statement_id, content, embedding) VALUES (?, ?, ` + o.d.EmbeddingValue() + `) RETURNING chunk_id`
		args = append(args, o.d.EncodeEmbedding(c.Embedding))
	} else {
		query = `INSERT INTO ` + chunksTable + ` (statement_id, content) VALUES (?, ?) RETURNING chunk_id`
	}

	var id int64
	if err := o.q.QueryRowContext(ctx, o.d.Rebind(query), args...).Scan(&id); err != nil {
		if o.d.IsForeignKeyViolation(err) {
			return 0, storage.ReferentialError{StatementID: c.StatementID}
		}
		return 0, fmt.Errorf("inserting chunk: %w", err)
	}

	if c.Embedding != nil {
		if err := o.d.AfterInsertChunk(ctx, o.q, id, c.Embedding); err != nil {
			return 0, fmt.Errorf("indexing chunk %d: %w", id, err)
		}
	}
	return id, nil
}

func (o *ops) DeleteChunks(ctx context.Context, statementID int64) (int64, error) {
	res, err := o.q.ExecContext(ctx, o.d.Rebind(`DELETE FROM `+chunksTable+` WHERE statement_id = ?`), statementID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	return res.RowsAffected()
}

func (o *ops) DeleteStatement(ctx context.Context, id int64) (bool, error) {
	enforced, err := o.d.CascadeEnforced(ctx, o.q)
	if err != nil {
		return false, fmt.Errorf("checking cascade enforcement: %w", err)
	}
	if !enforced {
		return false, storage.ErrCascadeUnsupported
	}

	res, err := o.q.ExecContext(ctx, o.d.Rebind(`DELETE FROM `+statementsTable+` WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("deleting statement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
