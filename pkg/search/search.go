// Package search runs hybrid queries: the lexical and vector indexes are
// searched concurrently, their rankings are fused with Reciprocal Rank Fusion,
// and the fused ids are hydrated into statements in fusion order.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/kb/pkg/embeddings"
	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/rrf"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage"
)

const (
	DefaultLimit      = 10
	DefaultOversample = 2
)

var (
	// ErrEmptyQuery is returned when a query has neither text nor a usable vector.
	ErrEmptyQuery = errors.New("empty query: no text and no vector")

	// ErrDeadlineExceeded is returned when the caller's deadline passes before
	// hydration completes. No partial result accompanies it.
	ErrDeadlineExceeded = errors.New("hybrid search deadline exceeded")
)

// StatementGetter hydrates fused ids into statements.
type StatementGetter interface {
	GetStatement(ctx context.Context, id int64) (*statement.Statement, error)
}

// Config wires a Searcher.
type Config struct {
	Lexical    index.Lexical
	Vector     index.Vector
	Statements StatementGetter

	// Embedder turns query text into a vector when a query carries none.
	// Optional.
	Embedder embeddings.Embedder

	// K is the RRF constant. Defaults to rrf.DefaultK.
	K float64

	// Oversample multiplies the limit for each sub-index request. Values
	// below 2 are raised to 2.
	Oversample int

	// Limit is used when a query does not set one.
	Limit int

	Logger *slog.Logger
}

// Query is one hybrid search request.
type Query struct {
	Text   string    `json:"query"`
	Vector []float32 `json:"vector,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	K      float64   `json:"k,omitempty"`
}

// Response holds fused results, best first.
type Response struct {
	Query   string                   `json:"query"`
	Results []statement.SearchResult `json:"results"`

	// Warnings explains a degraded search, such as a failed sub-index.
	Warnings []string `json:"warnings,omitempty"`

	LexicalCandidates int `json:"lexical_candidates"`
	VectorCandidates  int `json:"vector_candidates"`
}

// Searcher performs hybrid search.
type Searcher struct {
	lexical    index.Lexical
	vector     index.Vector
	statements StatementGetter
	embedder   embeddings.Embedder
	k          float64
	oversample int
	limit      int
	logger     *slog.Logger
}

// New creates a Searcher. Either index may be nil.
func New(c Config) *Searcher {
	s := &Searcher{
		lexical:    c.Lexical,
		vector:     c.Vector,
		statements: c.Statements,
		embedder:   c.Embedder,
		k:          c.K,
		oversample: c.Oversample,
		limit:      c.Limit,
		logger:     c.Logger,
	}
	if s.k <= 0 {
		s.k = rrf.DefaultK
	}
	if s.oversample < DefaultOversample {
		s.oversample = DefaultOversample
	}
	if s.limit <= 0 {
		s.limit = DefaultLimit
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// sub is one sub-index run.
type sub struct {
	name  string
	ran   bool
	list  []index.Candidate
	err   error
	fetch func(ctx context.Context, n int) ([]index.Candidate, error)
}

// Search runs q. It fails only when every sub-index that ran failed, when the
// query is empty, or when ctx ends first.
func (s *Searcher) Search(ctx context.Context, q Query) (*Response, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = s.limit
	}
	k := q.K
	if k <= 0 {
		k = s.k
	}

	text := strings.TrimSpace(q.Text)
	if text == "" && index.IsZero(q.Vector) {
		return nil, ErrEmptyQuery
	}
	resp := &Response{Query: q.Text, Results: []statement.SearchResult{}}

	vec := q.Vector
	if len(vec) == 0 && text != "" && s.embedder != nil && s.vector != nil {
		var err error
		vec, err = s.embedder.Embed(ctx, text)
		if err != nil {
			if !errors.Is(err, embeddings.ErrEmbeddingUnavailable) {
				return nil, s.ctxErr(ctx, fmt.Errorf("embedding query: %w", err))
			}
			resp.Warnings = append(resp.Warnings, "query embedding unavailable: searching lexically only")
			s.logger.Warn("query embedding unavailable", "error", err)
			vec = nil
		}
	}

	lex := &sub{name: "lexical", ran: text != "" && s.lexical != nil}
	lex.fetch = func(ctx context.Context, n int) ([]index.Candidate, error) {
		return s.lexical.SearchLexical(ctx, text, n)
	}
	vs := &sub{name: "vector", ran: !index.IsZero(vec) && s.vector != nil}
	vs.fetch = func(ctx context.Context, n int) ([]index.Candidate, error) {
		return s.vector.SearchVector(ctx, vec, n)
	}

	if !vs.ran && len(vec) > 0 {
		s.logger.Debug("zero query vector: skipping vector search")
	}
	if !lex.ran && !vs.ran {
		return nil, fmt.Errorf("%w: no index can serve this query", ErrEmptyQuery)
	}

	fetch := limit * s.oversample
	g, gctx := errgroup.WithContext(ctx)
	for _, sb := range []*sub{lex, vs} {
		if !sb.ran {
			continue
		}
		g.Go(func() error {
			sb.list, sb.err = sb.fetch(gctx, fetch)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, s.ctxErr(ctx, err)
	}

	var (
		lists [][]index.Candidate
		errs  []error
	)
	for _, sb := range []*sub{lex, vs} {
		if !sb.ran {
			continue
		}
		if sb.err != nil {
			errs = append(errs, fmt.Errorf("%s search: %w", sb.name, sb.err))
			continue
		}
		lists = append(lists, sb.list)
	}
	if len(lists) == 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		resp.Warnings = append(resp.Warnings, err.Error())
		s.logger.Warn("degraded hybrid search", "error", err)
	}

	resp.LexicalCandidates = len(lex.list)
	resp.VectorCandidates = len(vs.list)

	fused, err := rrf.Fuse(k, limit, lists...)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fused candidates",
		"lexical", resp.LexicalCandidates,
		"vector", resp.VectorCandidates,
		"fused", len(fused),
	)

	for _, r := range fused {
		st, err := s.statements.GetStatement(ctx, r.ID)
		if err != nil {
			if storage.IsNotFound(err) {
				s.logger.Debug("skipping stale candidate", "statement_id", r.ID)
				continue
			}
			return nil, s.ctxErr(ctx, fmt.Errorf("hydrating statement %d: %w", r.ID, err))
		}
		resp.Results = append(resp.Results, statement.SearchResult{Statement: *st, Score: r.Score})
	}

	if err := ctx.Err(); err != nil {
		return nil, s.ctxErr(ctx, err)
	}

	return resp, nil
}

// ctxErr maps an error observed after ctx ended onto ErrDeadlineExceeded or
// the cancellation cause.
func (s *Searcher) ctxErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrDeadlineExceeded, err)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return err
	}
}
