// Package cache provides an Embedder that memoizes another Embedder's vectors
// in a badger key-value store. Embeddings are deterministic per model and
// text, so cached vectors never go stale.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/papercomputeco/kb/pkg/embeddings"
	"github.com/papercomputeco/kb/pkg/storage/sqlstore"
)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Config holds configuration for the cache.
type Config struct {
	// Path is the badger directory. Empty keeps the cache in memory.
	Path string

	// Model namespaces cached vectors. Defaults to the inner embedder's model
	// when it implements embeddings.Modeler.
	Model string
}

// Embedder wraps an Embedder with a persistent cache.
type Embedder struct {
	inner  embeddings.Embedder
	db     *badger.DB
	model  string
	logger *slog.Logger
}

var (
	_ embeddings.Embedder = (*Embedder)(nil)
	_ embeddings.Batcher  = (*Embedder)(nil)
)

// New opens the cache and wraps inner.
func New(inner embeddings.Embedder, c Config, logger *slog.Logger) (*Embedder, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var opts badger.Options
	if c.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(c.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		opts = badger.DefaultOptions(c.Path)
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}

	model := c.Model
	if m, ok := inner.(embeddings.Modeler); ok && model == "" {
		model = m.Model()
	}

	return &Embedder{inner: inner, db: db, model: model, logger: logger}, nil
}

func (e *Embedder) key(text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return append([]byte(e.model+"\x00"), sum[:]...)
}

// Embed returns the cached vector for text or computes and stores it.
// A failing cache read or write falls through to the inner embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.lookup(text); ok {
		return v, nil
	}

	v, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.store(text, v)
	return v, nil
}

// EmbedBatch serves cached texts from the cache and embeds only the misses,
// in one batch when the inner embedder supports it.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		misses []string
		at     []int
	)
	for i, t := range texts {
		if v, ok := e.lookup(t); ok {
			out[i] = v
			continue
		}
		misses = append(misses, t)
		at = append(at, i)
	}
	if len(misses) == 0 {
		return out, nil
	}

	vs, err := embeddings.EmbedAll(ctx, e.inner, misses)
	if err != nil {
		return nil, err
	}
	for j, v := range vs {
		out[at[j]] = v
		e.store(misses[j], v)
	}
	return out, nil
}

func (e *Embedder) lookup(text string) ([]float32, bool) {
	var cached []float32
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(e.key(text))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			cached, err = sqlstore.DeserializeFloat32(val)
			return err
		})
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		e.logger.Warn("embedding cache read failed", "error", err)
	}
	return cached, err == nil
}

func (e *Embedder) store(text string, v []float32) {
	if err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(e.key(text), sqlstore.SerializeFloat32(v))
	}); err != nil {
		e.logger.Warn("embedding cache write failed", "error", err)
	}
}

// Model returns the model namespace of the cache.
func (e *Embedder) Model() string {
	return e.model
}

// Close closes the cache and the inner embedder.
func (e *Embedder) Close() error {
	return errors.Join(e.db.Close(), e.inner.Close())
}
