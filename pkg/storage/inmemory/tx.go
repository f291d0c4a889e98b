package inmemory

import (
	"context"
	"slices"

	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage"
)

// txn operates on the driver's maps while the caller holds the write lock.
// Every mutation pushes its inverse onto undo.
type txn struct {
	d    *Driver
	undo []func()
}

func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *txn) GetStatement(_ context.Context, id int64) (*statement.Statement, error) {
	return t.d.getStatement(id)
}

func (t *txn) SelectStatements(_ context.Context, pattern statement.Pattern) ([]statement.Statement, error) {
	return t.d.selectStatements(pattern), nil
}

func (t *txn) Chunks(_ context.Context, statementID int64) ([]statement.Chunk, error) {
	return t.d.chunksOf(statementID), nil
}

func (t *txn) Stats(_ context.Context) (storage.Stats, error) {
	return t.d.stats(), nil
}

func (t *txn) InsertStatement(_ context.Context, s statement.Statement) (int64, bool, error) {
	s, err := statement.Normalize(s)
	if err != nil {
		return 0, false, err
	}

	d := t.d
	if id, ok := d.keys[keyOf(s)]; ok {
		return id, false, nil
	}

	s.ID = d.nextStatementID
	d.nextStatementID++
	d.statements[s.ID] = &s
	d.keys[keyOf(s)] = s.ID

	t.undo = append(t.undo, func() {
		delete(d.statements, s.ID)
		delete(d.keys, keyOf(s))
	})
	return s.ID, true, nil
}

func (t *txn) InsertChunk(_ context.Context, c statement.Chunk) (int64, error) {
	d := t.d
	if _, ok := d.statements[c.StatementID]; !ok {
		return 0, storage.ReferentialError{StatementID: c.StatementID}
	}
	if c.Embedding != nil {
		if err := index.CheckDimensions(d.dims, c.Embedding); err != nil {
			return 0, err
		}
		c.Embedding = slices.Clone(c.Embedding)
	}

	c.ID = d.nextChunkID
	d.nextChunkID++
	d.chunks[c.ID] = &c
	prev := d.byStatement[c.StatementID]
	d.byStatement[c.StatementID] = append(slices.Clone(prev), c.ID)

	t.undo = append(t.undo, func() {
		delete(d.chunks, c.ID)
		if prev == nil {
			delete(d.byStatement, c.StatementID)
		} else {
			d.byStatement[c.StatementID] = prev
		}
	})
	return c.ID, nil
}

func (t *txn) DeleteChunks(_ context.Context, statementID int64) (int64, error) {
	return int64(t.removeChunks(statementID)), nil
}

func (t *txn) DeleteStatement(_ context.Context, id int64) (bool, error) {
	d := t.d
	s, ok := d.statements[id]
	if !ok {
		return false, nil
	}

	t.removeChunks(id)
	delete(d.statements, id)
	delete(d.keys, keyOf(*s))

	t.undo = append(t.undo, func() {
		d.statements[id] = s
		d.keys[keyOf(*s)] = id
	})
	return true, nil
}

func (t *txn) removeChunks(statementID int64) int {
	d := t.d
	ids, ok := d.byStatement[statementID]
	if !ok {
		return 0
	}

	removed := make([]*statement.Chunk, 0, len(ids))
	for _, id := range ids {
		removed = append(removed, d.chunks[id])
		delete(d.chunks, id)
	}
	delete(d.byStatement, statementID)

	t.undo = append(t.undo, func() {
		for _, c := range removed {
			d.chunks[c.ID] = c
		}
		d.byStatement[statementID] = ids
	})
	return len(ids)
}
