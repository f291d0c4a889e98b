// Package kb is the programmatic surface of the knowledge base. A Service
// composes a statement store, an ingestion pipeline and a hybrid searcher
// behind the operations callers use: insert, select, chunk, search, delete.
package kb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/kb/pkg/config"
	"github.com/papercomputeco/kb/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/kb/pkg/embeddings/utils"
	"github.com/papercomputeco/kb/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/kb/pkg/eventstream/utils"
	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/ingest"
	"github.com/papercomputeco/kb/pkg/ingest/worker"
	"github.com/papercomputeco/kb/pkg/search"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage"
	storageutils "github.com/papercomputeco/kb/pkg/storage/utils"
	"github.com/papercomputeco/kb/pkg/vector"
	vectorutils "github.com/papercomputeco/kb/pkg/vector/utils"
)

// Options wires a Service from already-built components.
type Options struct {
	// Store is required.
	Store storage.Driver

	// Embedder is optional. Without one, chunks are indexed lexically only
	// and queries need an explicit vector for the vector side.
	Embedder embeddings.Embedder

	// Vectors replaces the store's own vector index when set.
	Vectors vector.Driver

	// Publisher defaults to the no-op publisher.
	Publisher eventstream.Publisher

	MaxChunkTokens int
	EmbedWorkers   int

	IngestWorkers   uint
	IngestQueueSize uint

	K          float64
	Oversample int
	Limit      int

	Logger *slog.Logger
}

// Service is an open knowledge base. Close releases everything it owns.
type Service struct {
	store     storage.Driver
	embedder  embeddings.Embedder
	vectors   vector.Driver
	publisher eventstream.Publisher

	pipeline *ingest.Pipeline
	searcher *search.Searcher
	pool     *worker.Pool

	logger *slog.Logger
}

// Stats combines store counts with async ingestion counters.
type Stats struct {
	storage.Stats
	Jobs worker.Stats `json:"jobs"`

	// VectorMirrorFailures counts embedded chunks missing from the external
	// vector index because the upsert failed. Rechunk repairs a statement.
	VectorMirrorFailures int64 `json:"vector_mirror_failures"`
}

// New builds a Service around o.Store. The Service takes ownership of every
// component in o and closes them on Close.
func New(o Options) (*Service, error) {
	if o.Store == nil {
		return nil, ingest.ErrStoreRequired
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	opts := []ingest.Option{
		ingest.WithLogger(o.Logger),
	}
	if o.Embedder != nil {
		opts = append(opts, ingest.WithEmbedder(o.Embedder))
	}
	if o.Vectors != nil {
		opts = append(opts, ingest.WithVectorDriver(o.Vectors))
	}
	if o.Publisher != nil {
		opts = append(opts, ingest.WithPublisher(o.Publisher))
	}
	if o.MaxChunkTokens > 0 {
		opts = append(opts, ingest.WithChunker(statement.NewChunker(o.MaxChunkTokens)))
	}
	if o.EmbedWorkers > 0 {
		opts = append(opts, ingest.WithPoolSize(o.EmbedWorkers))
	}

	pipeline, err := ingest.New(o.Store, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating ingestion pipeline: %w", err)
	}

	var vec index.Vector = o.Store
	if o.Vectors != nil {
		vec = o.Vectors
	}

	searcher := search.New(search.Config{
		Lexical:    o.Store,
		Vector:     vec,
		Statements: o.Store,
		Embedder:   o.Embedder,
		K:          o.K,
		Oversample: o.Oversample,
		Limit:      o.Limit,
		Logger:     o.Logger,
	})

	pool, err := worker.NewPool(&worker.Config{
		Ingester:   pipeline,
		NumWorkers: o.IngestWorkers,
		QueueSize:  o.IngestQueueSize,
		Logger:     o.Logger,
	})
	if err != nil {
		pipeline.Close()
		return nil, fmt.Errorf("creating ingest worker pool: %w", err)
	}

	return &Service{
		store:     o.Store,
		embedder:  o.Embedder,
		vectors:   o.Vectors,
		publisher: o.Publisher,
		pipeline:  pipeline,
		searcher:  searcher,
		pool:      pool,
		logger:    o.Logger,
	}, nil
}

// Open builds every component named by cfg and returns the composed Service.
// On error, whatever was already opened is closed again.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storageutils.NewStorageDriver(ctx, &storageutils.NewStorageDriverOpts{
		ProviderType: cfg.Storage.Provider,
		SQLitePath:   cfg.Storage.SQLitePath,
		LibSQLPath:   cfg.Storage.LibSQLPath,
		PostgresDSN:  cfg.Storage.PostgresDSN,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	closers := []func() error{store.Close}
	fail := func(err error) (*Service, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil {
				logger.Warn("closing after failed open", "error", cerr)
			}
		}
		return nil, err
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		CachePath:    cfg.Embedding.CachePath,
		Logger:       logger,
	})
	if err != nil {
		return fail(err)
	}
	if embedder != nil {
		closers = append(closers, embedder.Close)
	}

	vectors, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    cfg.VectorStore.Target,
		Collection:   cfg.VectorStore.Collection,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       logger,
	})
	if err != nil {
		return fail(err)
	}
	if vectors != nil {
		closers = append(closers, vectors.Close)
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.Brokers,
		Topic:        cfg.Events.Topic,
	})
	if err != nil {
		return fail(err)
	}
	closers = append(closers, publisher.Close)

	svc, err := New(Options{
		Store:           store,
		Embedder:        embedder,
		Vectors:         vectors,
		Publisher:       publisher,
		MaxChunkTokens:  int(cfg.Ingest.MaxChunkTokens),
		IngestWorkers:   cfg.Ingest.Workers,
		IngestQueueSize: cfg.Ingest.QueueSize,
		K:               float64(cfg.Search.RRFK),
		Oversample:      int(cfg.Search.Oversample),
		Limit:           int(cfg.Search.Limit),
		Logger:          logger,
	})
	if err != nil {
		return fail(err)
	}
	return svc, nil
}

// InsertStatement inserts s if absent and returns its id. A duplicate is not
// an error: the existing id comes back with isNew false.
func (s *Service) InsertStatement(ctx context.Context, st statement.Statement) (int64, bool, error) {
	return s.pipeline.InsertStatement(ctx, st)
}

// InsertStatementWithChunks inserts s and every chunk derived from it in one
// transaction.
func (s *Service) InsertStatementWithChunks(ctx context.Context, st statement.Statement) (*ingest.Result, error) {
	return s.pipeline.InsertStatementWithChunks(ctx, st)
}

// InsertChunksForStatement derives and stores chunks for a statement that
// has none yet.
func (s *Service) InsertChunksForStatement(ctx context.Context, statementID int64) (*ingest.Result, error) {
	return s.pipeline.InsertChunksForStatement(ctx, statementID)
}

// Rechunk replaces a statement's chunks.
func (s *Service) Rechunk(ctx context.Context, statementID int64) (*ingest.Result, error) {
	return s.pipeline.Rechunk(ctx, statementID)
}

// DeleteStatement removes a statement and its chunks. Returns false if it did
// not exist.
func (s *Service) DeleteStatement(ctx context.Context, statementID int64) (bool, error) {
	return s.pipeline.DeleteStatement(ctx, statementID)
}

// SelectStatements returns statements matching every non-empty pattern field.
func (s *Service) SelectStatements(ctx context.Context, p statement.Pattern) ([]statement.Statement, error) {
	return s.store.SelectStatements(ctx, p.Normalize())
}

// GetStatement returns one statement by id.
func (s *Service) GetStatement(ctx context.Context, id int64) (*statement.Statement, error) {
	return s.store.GetStatement(ctx, id)
}

// Chunks returns a statement's chunks ordered by id.
func (s *Service) Chunks(ctx context.Context, statementID int64) ([]statement.Chunk, error) {
	return s.store.Chunks(ctx, statementID)
}

// Search runs a hybrid search and returns the full response, warnings
// included.
func (s *Service) Search(ctx context.Context, q search.Query) (*search.Response, error) {
	return s.searcher.Search(ctx, q)
}

// PerformHybridSearch fuses the lexical ranking for queryText with the vector
// ranking for queryVector and returns at most limit hydrated results. Either
// input may be empty, not both. A limit or k of zero selects the default.
func (s *Service) PerformHybridSearch(ctx context.Context, queryText string, queryVector []float32, limit int, k float64) ([]statement.SearchResult, error) {
	resp, err := s.searcher.Search(ctx, search.Query{
		Text:   queryText,
		Vector: queryVector,
		Limit:  limit,
		K:      k,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Enqueue hands a statement to the async ingestion pool. Returns false when
// the job was dropped.
func (s *Service) Enqueue(st statement.Statement, source string) bool {
	return s.pool.Enqueue(worker.Job{Statement: st, Source: source})
}

// Stats returns store counts and async job counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Stats:                st,
		Jobs:                 s.pool.Stats(),
		VectorMirrorFailures: s.pipeline.MirrorFailures(),
	}, nil
}

// Close drains queued jobs, then closes the pipeline and every component.
func (s *Service) Close() error {
	s.pool.Close()

	var errs []error
	if err := s.pipeline.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing publisher: %w", err))
		}
	}
	if s.vectors != nil {
		if err := s.vectors.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing vector driver: %w", err))
		}
	}
	if s.embedder != nil {
		if err := s.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing embedder: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	return errors.Join(errs...)
}
