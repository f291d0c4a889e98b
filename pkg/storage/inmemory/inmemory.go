// Package inmemory provides a map-backed storage.Driver with a token lexical
// index and an exact cosine vector scan.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage"
)

type statementKey struct {
	subject, predicate, object, context string
}

func keyOf(s statement.Statement) statementKey {
	return statementKey{s.Subject, s.Predicate, s.Object, s.Context}
}

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards all state. Transactions hold the write lock for their whole
	// duration so readers only ever see committed state.
	mu sync.RWMutex

	dims uint

	statements  map[int64]*statement.Statement
	keys        map[statementKey]int64
	chunks      map[int64]*statement.Chunk
	byStatement map[int64][]int64

	nextStatementID int64
	nextChunkID     int64
}

// NewDriver creates a new in-memory store for embeddings of the given
// dimension.
func NewDriver(dims uint) *Driver {
	return &Driver{
		dims:            dims,
		statements:      make(map[int64]*statement.Statement),
		keys:            make(map[statementKey]int64),
		chunks:          make(map[int64]*statement.Chunk),
		byStatement:     make(map[int64][]int64),
		nextStatementID: 1,
		nextChunkID:     1,
	}
}

// Dimensions returns the embedding dimension of the vector index.
func (d *Driver) Dimensions() uint {
	return d.dims
}

// InTx runs fn under the store's write lock, undoing every change if fn fails.
func (d *Driver) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx := &txn{d: d}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (d *Driver) GetStatement(_ context.Context, id int64) (*statement.Statement, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.getStatement(id)
}

func (d *Driver) SelectStatements(_ context.Context, pattern statement.Pattern) ([]statement.Statement, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selectStatements(pattern), nil
}

func (d *Driver) Chunks(_ context.Context, statementID int64) ([]statement.Chunk, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.chunksOf(statementID), nil
}

func (d *Driver) Stats(_ context.Context) (storage.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats(), nil
}

func (d *Driver) InsertStatement(ctx context.Context, s statement.Statement) (int64, bool, error) {
	var (
		id    int64
		isNew bool
	)
	err := d.InTx(ctx, func(tx storage.Tx) error {
		var err error
		id, isNew, err = tx.InsertStatement(ctx, s)
		return err
	})
	return id, isNew, err
}

func (d *Driver) InsertChunk(ctx context.Context, c statement.Chunk) (int64, error) {
	var id int64
	err := d.InTx(ctx, func(tx storage.Tx) error {
		var err error
		id, err = tx.InsertChunk(ctx, c)
		return err
	})
	return id, err
}

func (d *Driver) DeleteChunks(ctx context.Context, statementID int64) (int64, error) {
	var n int64
	err := d.InTx(ctx, func(tx storage.Tx) error {
		var err error
		n, err = tx.DeleteChunks(ctx, statementID)
		return err
	})
	return n, err
}

func (d *Driver) DeleteStatement(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := d.InTx(ctx, func(tx storage.Tx) error {
		var err error
		deleted, err = tx.DeleteStatement(ctx, id)
		return err
	})
	return deleted, err
}

// SearchLexical ranks statements by the number of distinct query terms found
// in their best chunk. Ties go to the lower statement id.
func (d *Driver) SearchLexical(_ context.Context, query string, limit int) ([]index.Candidate, error) {
	terms := index.Terms(query)
	if len(terms) == 0 || limit <= 0 {
		return []index.Candidate{}, nil
	}
	for i, t := range terms {
		terms[i] = stem(t)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	best := make(map[int64]int)
	for _, c := range d.chunks {
		words := make(map[string]struct{})
		for _, w := range index.Terms(c.Content) {
			words[stem(w)] = struct{}{}
		}
		hits := 0
		for _, t := range terms {
			if _, ok := words[t]; ok {
				hits++
			}
		}
		if hits > best[c.StatementID] {
			best[c.StatementID] = hits
		}
	}

	ids := make([]int64, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if best[ids[i]] != best[ids[j]] {
			return best[ids[i]] > best[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return index.Rank(ids), nil
}

// SearchVector scans every embedded chunk and ranks by cosine distance.
// Ties go to the lower chunk id.
func (d *Driver) SearchVector(_ context.Context, query []float32, limit int) ([]index.Candidate, error) {
	if err := index.CheckDimensions(d.dims, query); err != nil {
		return nil, err
	}
	if index.IsZero(query) || limit <= 0 {
		return []index.Candidate{}, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	type hit struct {
		chunk    *statement.Chunk
		distance float64
	}
	hits := make([]hit, 0, len(d.chunks))
	for _, c := range d.chunks {
		if c.Embedding == nil {
			continue
		}
		hits = append(hits, hit{chunk: c, distance: index.CosineDistance(query, c.Embedding)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].chunk.ID < hits[j].chunk.ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.chunk.StatementID
	}
	return index.Rank(ids), nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) getStatement(id int64) (*statement.Statement, error) {
	s, ok := d.statements[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}
	out := *s
	return &out, nil
}

func (d *Driver) selectStatements(pattern statement.Pattern) []statement.Statement {
	pattern = pattern.Normalize()
	out := []statement.Statement{}
	for _, s := range d.statements {
		if pattern.Matches(*s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *Driver) chunksOf(statementID int64) []statement.Chunk {
	ids := d.byStatement[statementID]
	out := make([]statement.Chunk, 0, len(ids))
	for _, id := range ids {
		out = append(out, *d.chunks[id])
	}
	return out
}

func (d *Driver) stats() storage.Stats {
	st := storage.Stats{
		Statements: int64(len(d.statements)),
		Chunks:     int64(len(d.chunks)),
	}
	for _, c := range d.chunks {
		if c.Embedding != nil {
			st.EmbeddedChunks++
		}
	}
	return st
}

// stem folds simple English plurals so "statements" matches "statement".
func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}
