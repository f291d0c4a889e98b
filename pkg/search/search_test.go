package search_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/logger"
	"github.com/papercomputeco/kb/pkg/rrf"
	"github.com/papercomputeco/kb/pkg/search"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/kb/pkg/utils/test"
)

const dims = 3

var _ = Describe("Searcher", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
	)

	// add stores one statement with a single chunk.
	add := func(object string, embedding []float32) int64 {
		id, _, err := driver.InsertStatement(ctx, statement.Statement{
			Subject:   "http://example.org/" + object,
			Predicate: "http://www.w3.org/2000/01/rdf-schema#label",
			Object:    object,
			TermType:  statement.Literal,
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = driver.InsertChunk(ctx, statement.Chunk{StatementID: id, Content: object, Embedding: embedding})
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	newSearcher := func() *search.Searcher {
		return search.New(search.Config{
			Lexical:    driver,
			Vector:     driver,
			Statements: driver,
			Logger:     logger.Nop(),
		})
	}

	ids := func(resp *search.Response) []int64 {
		out := make([]int64, 0, len(resp.Results))
		for _, r := range resp.Results {
			out = append(out, r.ID)
		}
		return out
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver(dims)
	})

	Describe("lexical-only fallback", func() {
		It("finds a statement by text alone when the query vector is zero", func() {
			ai := add("Artificial Intelligence", []float32{1, 0, 0})
			add("Banana", []float32{0, 1, 0})

			resp, err := newSearcher().Search(ctx, search.Query{Text: "intelligence", Vector: []float32{0, 0, 0}})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(resp)).To(ContainElement(ai))
			Expect(resp.Results[0].ID).To(Equal(ai))
			Expect(resp.VectorCandidates).To(BeZero())
		})

		It("searches lexically when the embedder is unavailable", func() {
			ai := add("Artificial Intelligence", []float32{1, 0, 0})

			embedder := testutils.NewMockEmbedder(dims)
			embedder.FailAll = true
			s := search.New(search.Config{
				Lexical: driver, Vector: driver, Statements: driver,
				Embedder: embedder, Logger: logger.Nop(),
			})

			resp, err := s.Search(ctx, search.Query{Text: "intelligence"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(resp)).To(Equal([]int64{ai}))
			Expect(resp.Warnings).To(ContainElement(ContainSubstring("embedding unavailable")))
		})
	})

	Describe("fusion ordering", func() {
		It("ranks text-and-vector match first, then text match, then vector-only", func() {
			a := add("graph database", []float32{1, 0, 0})
			b := add("graph theory", []float32{0, 0, 1})
			c := add("banana bread", []float32{0, 1, 1})

			resp, err := newSearcher().Search(ctx, search.Query{Text: "graph", Vector: []float32{1, 0.05, 0}})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(resp)).To(Equal([]int64{a, b, c}))
			Expect(resp.Results[0].Score).To(BeNumerically(">", resp.Results[1].Score))
		})

		It("scores by rank only", func() {
			a := add("graph database", []float32{1, 0, 0})
			b := add("graph theory", []float32{0, 0, 1})

			resp, err := newSearcher().Search(ctx, search.Query{Text: "graph", Vector: []float32{1, 0, 0}, K: 60})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Results).To(HaveLen(2))
			Expect(resp.Results[0].ID).To(Equal(a))
			Expect(resp.Results[0].Score).To(BeNumerically("~", 2.0/61, 1e-12))
			Expect(resp.Results[1].ID).To(Equal(b))
			Expect(resp.Results[1].Score).To(BeNumerically("~", 1.0/62+1.0/62, 1e-12))
		})

		It("embeds the query text when no vector is given", func() {
			add("graph theory", []float32{0, 0, 1})
			near := add("banana bread", []float32{0, 1, 0})

			embedder := testutils.NewMockEmbedder(dims)
			embedder.Set("bread", []float32{0, 1, 0})
			s := search.New(search.Config{
				Lexical: driver, Vector: driver, Statements: driver,
				Embedder: embedder, Logger: logger.Nop(),
			})

			resp, err := s.Search(ctx, search.Query{Text: "bread"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Results[0].ID).To(Equal(near))
			Expect(resp.VectorCandidates).To(BeNumerically(">", 0))
			Expect(embedder.Calls()).To(Equal(1))
		})
	})

	Describe("dimension mismatch", func() {
		It("is raised by the vector index", func() {
			_, err := driver.SearchVector(ctx, []float32{1, 0}, 10)
			var dm *index.DimensionMismatchError
			Expect(errors.As(err, &dm)).To(BeTrue())
			Expect(dm.Want).To(Equal(uint(dims)))
			Expect(dm.Got).To(Equal(2))
		})

		It("leaves the lexical side independent", func() {
			ai := add("Artificial Intelligence", []float32{1, 0, 0})

			resp, err := newSearcher().Search(ctx, search.Query{Text: "intelligence", Vector: []float32{1, 0}})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(resp)).To(Equal([]int64{ai}))
			Expect(resp.Warnings).To(ContainElement(ContainSubstring("dimension mismatch")))
		})

		It("fails when the vector was the only usable input", func() {
			add("Artificial Intelligence", []float32{1, 0, 0})

			_, err := newSearcher().Search(ctx, search.Query{Vector: []float32{1, 0}})
			var dm *index.DimensionMismatchError
			Expect(errors.As(err, &dm)).To(BeTrue())
		})
	})

	Describe("failure policy", func() {
		boom := errors.New("engine down")

		It("rejects an empty query", func() {
			_, err := newSearcher().Search(ctx, search.Query{})
			Expect(err).To(MatchError(search.ErrEmptyQuery))

			_, err = newSearcher().Search(ctx, search.Query{Text: "  ", Vector: []float32{0, 0, 0}})
			Expect(err).To(MatchError(search.ErrEmptyQuery))
		})

		It("degrades when one sub-index fails", func() {
			id := add("Banana", []float32{0, 1, 0})

			s := search.New(search.Config{
				Lexical:    &testutils.StaticIndex{Err: boom},
				Vector:     driver,
				Statements: driver,
				Logger:     logger.Nop(),
			})
			resp, err := s.Search(ctx, search.Query{Text: "banana", Vector: []float32{0, 1, 0}})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(resp)).To(Equal([]int64{id}))
			Expect(resp.Warnings).To(ConsistOf(ContainSubstring("lexical search: engine down")))
		})

		It("does not fail when a sub-index has no matches", func() {
			id := add("Banana", []float32{0, 1, 0})

			resp, err := newSearcher().Search(ctx, search.Query{Text: "zeppelin", Vector: []float32{0, 1, 0}})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(resp)).To(Equal([]int64{id}))
			Expect(resp.Warnings).To(BeEmpty())
		})

		It("fails when both sub-indexes fail", func() {
			other := errors.New("vector engine down")
			s := search.New(search.Config{
				Lexical:    &testutils.StaticIndex{Err: boom},
				Vector:     &testutils.StaticIndex{Err: other, Dims: dims},
				Statements: driver,
				Logger:     logger.Nop(),
			})

			resp, err := s.Search(ctx, search.Query{Text: "banana", Vector: []float32{0, 1, 0}})
			Expect(resp).To(BeNil())
			Expect(errors.Is(err, boom)).To(BeTrue())
			Expect(errors.Is(err, other)).To(BeTrue())
		})

		It("returns a timeout error instead of a partial result", func() {
			s := search.New(search.Config{
				Lexical:    &testutils.StaticIndex{Results: index.Rank([]int64{1}), Delay: time.Second},
				Vector:     &testutils.StaticIndex{Results: index.Rank([]int64{1}), Dims: dims},
				Statements: driver,
				Logger:     logger.Nop(),
			})

			tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()

			resp, err := s.Search(tctx, search.Query{Text: "banana", Vector: []float32{0, 1, 0}})
			Expect(resp).To(BeNil())
			Expect(err).To(MatchError(search.ErrDeadlineExceeded))
		})
	})

	Describe("orchestration", func() {
		It("oversamples each sub-index", func() {
			lex := &testutils.StaticIndex{}
			vec := &testutils.StaticIndex{Dims: dims}
			s := search.New(search.Config{Lexical: lex, Vector: vec, Statements: driver, Oversample: 1, Logger: logger.Nop()})

			_, err := s.Search(ctx, search.Query{Text: "x", Vector: []float32{1, 0, 0}, Limit: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(lex.Limits).To(Equal([]int{10}))
			Expect(vec.Limits).To(Equal([]int{10}))
		})

		It("preserves fusion order through hydration and truncates to the limit", func() {
			var all []int64
			for _, o := range []string{"one", "two", "three", "four"} {
				all = append(all, add(o, nil))
			}

			lexical := index.Rank([]int64{all[3], all[2], all[1], all[0]})
			vector := index.Rank([]int64{all[3], all[1]})
			s := search.New(search.Config{
				Lexical:    &testutils.StaticIndex{Results: lexical},
				Vector:     &testutils.StaticIndex{Results: vector, Dims: dims},
				Statements: driver,
				Logger:     logger.Nop(),
			})

			resp, err := s.Search(ctx, search.Query{Text: "x", Vector: []float32{1, 0, 0}, Limit: 3})
			Expect(err).NotTo(HaveOccurred())

			want, err := rrf.Fuse(rrf.DefaultK, 3, lexical, vector)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Results).To(HaveLen(3))
			for i, r := range resp.Results {
				Expect(r.ID).To(Equal(want[i].ID))
				Expect(r.Score).To(Equal(want[i].Score))
			}
		})

		It("skips candidates whose statement no longer exists", func() {
			id := add("Banana", nil)
			s := search.New(search.Config{
				Lexical:    &testutils.StaticIndex{Results: index.Rank([]int64{999, id})},
				Statements: driver,
				Logger:     logger.Nop(),
			})

			resp, err := s.Search(ctx, search.Query{Text: "banana"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(resp)).To(Equal([]int64{id}))
		})

		It("is deterministic for a fixed corpus", func() {
			add("graph database", []float32{1, 0, 0})
			add("graph theory", []float32{0, 0, 1})
			add("banana bread", []float32{0, 1, 1})

			s := newSearcher()
			q := search.Query{Text: "graph", Vector: []float32{1, 0.05, 0}}
			first, err := s.Search(ctx, q)
			Expect(err).NotTo(HaveOccurred())
			for range 5 {
				again, err := s.Search(ctx, q)
				Expect(err).NotTo(HaveOccurred())
				Expect(again.Results).To(Equal(first.Results))
			}
		})
	})
})
