//go:build sqlite_fts5 || fts5

package kb_test

import (
	"context"
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/config"
	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/kb"
	"github.com/papercomputeco/kb/pkg/logger"
	"github.com/papercomputeco/kb/pkg/search"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage/sqlite"
	testutils "github.com/papercomputeco/kb/pkg/utils/test"
)

func label(subject, object string) statement.Statement {
	return statement.Statement{
		Subject:   "http://example.org/" + subject,
		Predicate: "http://www.w3.org/2000/01/rdf-schema#label",
		Object:    object,
		TermType:  statement.Literal,
	}
}

func objects(results []statement.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Object
	}
	return out
}

var _ = Describe("Service over SQLite", func() {
	var (
		ctx      context.Context
		store    *sqlite.Driver
		embedder *testutils.MockEmbedder
		svc      *kb.Service
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		store, err = sqlite.NewDriver(ctx, sqlite.Config{DBPath: ":memory:", Dimensions: dims}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		embedder = testutils.NewMockEmbedder(dims)
		svc, err = kb.New(kb.Options{
			Store:    store,
			Embedder: embedder,
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(svc.Close)
	})

	It("falls back to lexical results with a zero vector", func() {
		embedder.Set("Artificial Intelligence", []float32{1, 0, 0})
		embedder.Set("Banana", []float32{0, 1, 0})
		_, err := svc.InsertStatementWithChunks(ctx, label("ai", "Artificial Intelligence"))
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.InsertStatementWithChunks(ctx, label("banana", "Banana"))
		Expect(err).NotTo(HaveOccurred())

		results, err := svc.PerformHybridSearch(ctx, "intelligence", []float32{0, 0, 0}, 5, 60)
		Expect(err).NotTo(HaveOccurred())
		Expect(objects(results)).To(Equal([]string{"Artificial Intelligence"}))
		Expect(results[0].Score).To(BeNumerically("~", 1.0/61, 1e-12))
	})

	It("ranks text and vector agreement above either alone", func() {
		embedder.Set("apple", []float32{1, 0, 0})
		embedder.Set("apple tart with cream", []float32{0, 1, 0})
		embedder.Set("cherry cake", []float32{0, 0, 1})
		for _, st := range []statement.Statement{
			label("a", "apple"),
			label("b", "apple tart with cream"),
			label("c", "cherry cake"),
		} {
			_, err := svc.InsertStatementWithChunks(ctx, st)
			Expect(err).NotTo(HaveOccurred())
		}

		results, err := svc.PerformHybridSearch(ctx, "apple", []float32{1, 0, 0}, 10, 60)
		Expect(err).NotTo(HaveOccurred())
		Expect(objects(results)).To(Equal([]string{"apple", "apple tart with cream", "cherry cake"}))
		Expect(results[0].Score).To(BeNumerically(">", results[1].Score))
		Expect(results[1].Score).To(BeNumerically(">", results[2].Score))
	})

	It("keeps lexical results when the query vector has the wrong dimension", func() {
		embedder.Set("Banana", []float32{0, 1, 0})
		_, err := svc.InsertStatementWithChunks(ctx, label("banana", "Banana"))
		Expect(err).NotTo(HaveOccurred())

		_, err = store.SearchVector(ctx, []float32{0, 1}, 5)
		var dm *index.DimensionMismatchError
		Expect(errors.As(err, &dm)).To(BeTrue())
		Expect(dm.Want).To(Equal(uint(dims)))

		lexical, err := store.SearchLexical(ctx, "banana", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(lexical).To(HaveLen(1))

		resp, err := svc.Search(ctx, search.Query{Text: "banana", Vector: []float32{0, 1}})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Warnings).NotTo(BeEmpty())
		Expect(objects(resp.Results)).To(Equal([]string{"Banana"}))
	})

	It("removes a deleted statement from both indexes", func() {
		embedder.Set("Banana", []float32{0, 1, 0})
		res, err := svc.InsertStatementWithChunks(ctx, label("banana", "Banana"))
		Expect(err).NotTo(HaveOccurred())

		deleted, err := svc.DeleteStatement(ctx, res.StatementID)
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(BeTrue())

		results, err := svc.PerformHybridSearch(ctx, "banana", []float32{0, 1, 0}, 5, 60)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())
	})
})

var _ = Describe("Open with SQLite", func() {
	It("opens a sqlite store at the configured path", func() {
		cfg := config.NewDefaultConfig()
		cfg.Storage.SQLitePath = filepath.Join(GinkgoT().TempDir(), "kb.db")
		cfg.Embedding.Provider = "none"

		svc, err := kb.Open(context.Background(), cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		defer svc.Close()

		_, err = svc.InsertStatementWithChunks(context.Background(), label("ai", "Artificial Intelligence"))
		Expect(err).NotTo(HaveOccurred())

		results, err := svc.PerformHybridSearch(context.Background(), "artificial", nil, 5, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(objects(results)).To(Equal([]string{"Artificial Intelligence"}))
	})
})
