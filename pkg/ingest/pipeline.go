// Package ingest writes statements and their derived chunks.
//
// A statement and its chunks are written in one transaction, so readers never
// see a statement that is missing part of its chunks. Embeddings are computed
// before the transaction opens, batched when the embedder supports it and on
// a bounded goroutine pool otherwise. An embedding that cannot be produced
// leaves its chunk searchable lexically only.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/papercomputeco/kb/pkg/embeddings"
	"github.com/papercomputeco/kb/pkg/eventstream"
	"github.com/papercomputeco/kb/pkg/eventstream/nop"
	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage"
	"github.com/papercomputeco/kb/pkg/vector"
)

// Pipeline is the ingestion pipeline.
type Pipeline struct {
	store     storage.Driver
	embedder  embeddings.Embedder
	vectors   vector.Driver
	publisher eventstream.Publisher
	chunker   *statement.Chunker
	pool      *ants.Pool
	logger    *slog.Logger

	// mirrorFailures counts embedded chunks the external vector index
	// never received.
	mirrorFailures atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithEmbedder sets the embedder. Without one every chunk is stored without
// an embedding.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(p *Pipeline) error {
		p.embedder = e
		return nil
	}
}

// WithVectorDriver mirrors chunk embeddings into an external vector index.
func WithVectorDriver(v vector.Driver) Option {
	return func(p *Pipeline) error {
		p.vectors = v
		return nil
	}
}

// WithPublisher sets the statement event publisher. Default is a no-op.
func WithPublisher(pub eventstream.Publisher) Option {
	return func(p *Pipeline) error {
		if pub != nil {
			p.publisher = pub
		}
		return nil
	}
}

// WithChunker sets how chunk content is derived.
func WithChunker(c *statement.Chunker) Option {
	return func(p *Pipeline) error {
		if c != nil {
			p.chunker = c
		}
		return nil
	}
}

// WithPoolSize sets how many chunks are embedded concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// New creates a pipeline over store.
func New(store storage.Driver, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	size := runtime.NumCPU() / 2
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:     store,
		publisher: nop.NewPublisher(),
		chunker:   statement.NewChunker(0),
		pool:      pool,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Close()
			return nil, err
		}
	}

	p.logger = p.logger.With("component", "ingest")
	return p, nil
}

// Close releases the embedding pool. It does not close the store, embedder,
// vector driver or publisher.
func (p *Pipeline) Close() error {
	if p.pool != nil {
		p.pool.Release()
	}
	return nil
}

// Result describes one ingestion.
type Result struct {
	StatementID int64   `json:"statement_id"`
	IsNew       bool    `json:"is_new"`
	ChunkIDs    []int64 `json:"chunk_ids"`

	// Embedded counts chunks stored with an embedding.
	Embedded int `json:"embedded_chunks"`
}

// InsertStatement stores s without chunks. A duplicate returns the existing
// id with isNew false.
func (p *Pipeline) InsertStatement(ctx context.Context, s statement.Statement) (int64, bool, error) {
	id, isNew, err := p.store.InsertStatement(ctx, s)
	if err != nil {
		return 0, false, err
	}
	if isNew {
		n, _ := statement.Normalize(s)
		n.ID = id
		p.publish(ctx, eventstream.EventTypeStatementIngested, n, &Result{StatementID: id, IsNew: true})
	}
	return id, isNew, nil
}

// InsertStatementWithChunks stores s and its derived chunks atomically. When
// the statement already exists with chunks nothing is written and the
// existing chunk ids are returned.
func (p *Pipeline) InsertStatementWithChunks(ctx context.Context, s statement.Statement) (*Result, error) {
	norm, err := statement.Normalize(s)
	if err != nil {
		return nil, err
	}

	if res, err := p.existing(ctx, norm); err != nil || res != nil {
		return res, err
	}

	chunks, err := p.prepare(ctx, norm)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	err = p.store.InTx(ctx, func(tx storage.Tx) error {
		id, isNew, err := tx.InsertStatement(ctx, norm)
		if err != nil {
			return err
		}
		*res = Result{StatementID: id, IsNew: isNew}

		if !isNew {
			// Lost a race with another writer of the same statement.
			current, err := tx.Chunks(ctx, id)
			if err != nil {
				return err
			}
			if len(current) > 0 {
				res.ChunkIDs = chunkIDs(current)
				chunks = nil
				return nil
			}
		}

		return insertChunks(ctx, tx, id, chunks, res)
	})
	if err != nil {
		return nil, err
	}

	norm.ID = res.StatementID
	p.mirror(ctx, chunks)
	if res.IsNew || len(chunks) > 0 {
		p.publish(ctx, eventstream.EventTypeStatementIngested, norm, res)
	}
	return res, nil
}

// InsertChunksForStatement derives and stores chunks for an existing
// statement that has none.
func (p *Pipeline) InsertChunksForStatement(ctx context.Context, statementID int64) (*Result, error) {
	st, err := p.store.GetStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}

	chunks, err := p.prepare(ctx, *st)
	if err != nil {
		return nil, err
	}

	res := &Result{StatementID: statementID}
	err = p.store.InTx(ctx, func(tx storage.Tx) error {
		current, err := tx.Chunks(ctx, statementID)
		if err != nil {
			return err
		}
		if len(current) > 0 {
			return fmt.Errorf("%w: statement %d", ErrAlreadyChunked, statementID)
		}
		return insertChunks(ctx, tx, statementID, chunks, res)
	})
	if err != nil {
		return nil, err
	}

	p.mirror(ctx, chunks)
	p.publish(ctx, eventstream.EventTypeStatementIngested, *st, res)
	return res, nil
}

// Rechunk atomically replaces a statement's chunks with freshly derived ones.
func (p *Pipeline) Rechunk(ctx context.Context, statementID int64) (*Result, error) {
	st, err := p.store.GetStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}

	chunks, err := p.prepare(ctx, *st)
	if err != nil {
		return nil, err
	}

	res := &Result{StatementID: statementID}
	err = p.store.InTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.DeleteChunks(ctx, statementID); err != nil {
			return err
		}
		return insertChunks(ctx, tx, statementID, chunks, res)
	})
	if err != nil {
		return nil, err
	}

	if p.vectors != nil {
		if err := p.vectors.DeleteStatement(ctx, statementID); err != nil {
			p.logger.Warn("failed to clear external vectors", "statement_id", statementID, "error", err)
		}
	}
	p.mirror(ctx, chunks)
	p.publish(ctx, eventstream.EventTypeStatementIngested, *st, res)
	return res, nil
}

// DeleteStatement deletes a statement and, atomically, its chunks.
func (p *Pipeline) DeleteStatement(ctx context.Context, statementID int64) (bool, error) {
	st, err := p.store.GetStatement(ctx, statementID)
	if err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	deleted, err := p.store.DeleteStatement(ctx, statementID)
	if err != nil || !deleted {
		return deleted, err
	}

	if p.vectors != nil {
		if err := p.vectors.DeleteStatement(ctx, statementID); err != nil {
			p.logger.Warn("failed to delete external vectors", "statement_id", statementID, "error", err)
		}
	}
	p.publish(ctx, eventstream.EventTypeStatementDeleted, *st, nil)
	return true, nil
}

// existing returns the stored result for an already chunked statement, or nil.
func (p *Pipeline) existing(ctx context.Context, s statement.Statement) (*Result, error) {
	found, err := p.store.SelectStatements(ctx, statement.Pattern{
		Subject:   s.Subject,
		Predicate: s.Predicate,
		Object:    s.Object,
		Context:   s.Context,
	})
	if err != nil {
		return nil, err
	}
	for _, f := range found {
		// An empty pattern field means "any", so confirm the exact key.
		if f.Context != s.Context {
			continue
		}
		current, err := p.store.Chunks(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		if len(current) == 0 {
			return nil, nil
		}
		return &Result{StatementID: f.ID, ChunkIDs: chunkIDs(current), Embedded: embedded(current)}, nil
	}
	return nil, nil
}

// prepare derives chunk content and embeds it: in one call when the
// embedder batches, otherwise one chunk per pool task.
func (p *Pipeline) prepare(ctx context.Context, s statement.Statement) ([]statement.Chunk, error) {
	contents := p.chunker.Derive(s)
	chunks := make([]statement.Chunk, len(contents))
	for i, c := range contents {
		chunks[i].Content = c
	}
	if p.embedder == nil {
		return chunks, nil
	}
	if b, ok := p.embedder.(embeddings.Batcher); ok && len(chunks) > 1 {
		return chunks, p.embedBatch(ctx, b, s, chunks)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := range chunks {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			v, err := p.embedder.Embed(ctx, chunks[i].Content)
			if err != nil {
				if err := p.degrade(ctx, s, i, err); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return
			}
			if err := p.accept(&chunks[i], v); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}
		if err := p.pool.Submit(task); err != nil {
			wg.Done()
			return nil, fmt.Errorf("scheduling embedding: %w", err)
		}
	}
	wg.Wait()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return chunks, nil
}

func (p *Pipeline) embedBatch(ctx context.Context, b embeddings.Batcher, s statement.Statement, chunks []statement.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vs, err := b.EmbedBatch(ctx, texts)
	if err == nil && len(vs) != len(chunks) {
		err = fmt.Errorf("%w: %d vectors for %d chunks", embeddings.ErrEmbeddingUnavailable, len(vs), len(chunks))
	}
	if err != nil {
		return p.degrade(ctx, s, -1, err)
	}

	for i, v := range vs {
		if err := p.accept(&chunks[i], v); err != nil {
			return err
		}
	}
	return nil
}

// degrade logs a failed embedding and leaves the chunk lexical-only. It
// returns an error only when the context ended.
func (p *Pipeline) degrade(ctx context.Context, s statement.Statement, chunk int, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !errors.Is(err, embeddings.ErrEmbeddingUnavailable) {
		err = fmt.Errorf("%w: %w", embeddings.ErrEmbeddingUnavailable, err)
	}
	attrs := []any{"subject", s.Subject, "error", err}
	if chunk >= 0 {
		attrs = append(attrs, "chunk", chunk)
	}
	p.logger.Warn("embedding unavailable, indexed lexically only", attrs...)
	return nil
}

// accept stores v on c after checking it fits the store's vector column.
func (p *Pipeline) accept(c *statement.Chunk, v []float32) error {
	if err := index.CheckDimensions(p.store.Dimensions(), v); err != nil {
		return fmt.Errorf("embedder returned %w", err)
	}
	c.Embedding = v
	return nil
}

func insertChunks(ctx context.Context, tx storage.Tx, statementID int64, chunks []statement.Chunk, res *Result) error {
	for i := range chunks {
		chunks[i].StatementID = statementID
		id, err := tx.InsertChunk(ctx, chunks[i])
		if err != nil {
			return err
		}
		chunks[i].ID = id
		res.ChunkIDs = append(res.ChunkIDs, id)
		if chunks[i].Embedding != nil {
			res.Embedded++
		}
	}
	return nil
}

// MirrorFailures returns how many embedded chunks failed to reach the
// external vector index. Rechunk re-mirrors a statement.
func (p *Pipeline) MirrorFailures() int64 {
	return p.mirrorFailures.Load()
}

// mirror upserts embedded chunks into the external vector index, if any.
func (p *Pipeline) mirror(ctx context.Context, chunks []statement.Chunk) {
	if p.vectors == nil {
		return
	}
	embeddedChunks := make([]statement.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Embedding != nil {
			embeddedChunks = append(embeddedChunks, c)
		}
	}
	if len(embeddedChunks) == 0 {
		return
	}
	if err := p.vectors.Upsert(ctx, embeddedChunks); err != nil {
		failed := p.mirrorFailures.Add(int64(len(embeddedChunks)))
		p.logger.Warn("failed to upsert external vectors",
			"statement_id", embeddedChunks[0].StatementID,
			"chunks", len(embeddedChunks),
			"total_failed", failed,
			"error", err,
		)
	}
}

func (p *Pipeline) publish(ctx context.Context, eventType string, s statement.Statement, res *Result) {
	event := eventstream.NewStatementEvent(eventType, s)
	if res != nil {
		event.Ingest = &eventstream.IngestMeta{
			IsNew:          res.IsNew,
			ChunkIDs:       res.ChunkIDs,
			EmbeddedChunks: res.Embedded,
		}
	}
	if err := p.publisher.PublishStatement(ctx, event); err != nil {
		p.logger.Warn("failed to publish statement event", "event_type", eventType, "statement_id", s.ID, "error", err)
	}
}

func chunkIDs(chunks []statement.Chunk) []int64 {
	ids := make([]int64, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

func embedded(chunks []statement.Chunk) int {
	n := 0
	for _, c := range chunks {
		if c.Embedding != nil {
			n++
		}
	}
	return n
}
