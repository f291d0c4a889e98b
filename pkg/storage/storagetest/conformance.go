// Package storagetest holds a ginkgo conformance suite shared by every
// storage.Driver implementation.
package storagetest

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage"
)

// Dimensions is the embedding size the suite inserts. Factories must build
// drivers for this dimension.
const Dimensions = 3

var errAbort = errors.New("abort")

func lit(subject, predicate, object string) statement.Statement {
	return statement.Statement{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
		TermType:  statement.Literal,
	}
}

// DescribeDriver registers the conformance specs for drivers built by newDriver.
// A fresh, empty driver is created before every spec and closed after it.
func DescribeDriver(name string, newDriver func() storage.Driver) bool {
	return Describe(name+" conformance", func() {
		var (
			driver storage.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver()
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
			}
		})

		Describe("InsertStatement", func() {
			It("is idempotent for the same key", func() {
				id1, isNew, err := driver.InsertStatement(ctx, lit("s", "p", "o"))
				Expect(err).NotTo(HaveOccurred())
				Expect(isNew).To(BeTrue())

				id2, isNew, err := driver.InsertStatement(ctx, lit("s", "p", "o"))
				Expect(err).NotTo(HaveOccurred())
				Expect(isNew).To(BeFalse())
				Expect(id2).To(Equal(id1))

				all, err := driver.SelectStatements(ctx, statement.Pattern{})
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(HaveLen(1))
			})

			It("distinguishes statements by context", func() {
				a := lit("s", "p", "o")
				b := lit("s", "p", "o")
				b.Context = "http://example.org/graph"

				id1, _, err := driver.InsertStatement(ctx, a)
				Expect(err).NotTo(HaveOccurred())
				id2, isNew, err := driver.InsertStatement(ctx, b)
				Expect(err).NotTo(HaveOccurred())
				Expect(isNew).To(BeTrue())
				Expect(id2).NotTo(Equal(id1))
			})

			It("rewrites the type alias and fills defaults", func() {
				id, _, err := driver.InsertStatement(ctx, statement.Statement{
					Subject:   "http://example.org/alice",
					Predicate: "a",
					Object:    "http://example.org/Person",
				})
				Expect(err).NotTo(HaveOccurred())

				got, err := driver.GetStatement(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Predicate).To(Equal(statement.RDFType))
				Expect(got.TermType).To(Equal(statement.NamedNode))
				Expect(got.Language).To(BeEmpty())
				Expect(got.Datatype).To(BeEmpty())

				byAlias, err := driver.SelectStatements(ctx, statement.Pattern{Predicate: "a"})
				Expect(err).NotTo(HaveOccurred())
				Expect(byAlias).To(HaveLen(1))
			})

			It("keeps literal metadata", func() {
				s := lit("s", "http://www.w3.org/2000/01/rdf-schema#label", "Bonjour")
				s.Language = "fr"
				id, _, err := driver.InsertStatement(ctx, s)
				Expect(err).NotTo(HaveOccurred())

				got, err := driver.GetStatement(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Language).To(Equal("fr"))
				Expect(got.TermType).To(Equal(statement.Literal))
			})
		})

		Describe("GetStatement", func() {
			It("returns a NotFoundError for unknown ids", func() {
				_, err := driver.GetStatement(ctx, 424242)
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})
		})

		Describe("SelectStatements", func() {
			BeforeEach(func() {
				for _, s := range []statement.Statement{
					lit("s1", "p1", "o1"),
					lit("s1", "p2", "o2"),
					lit("s2", "p1", "o1"),
				} {
					_, _, err := driver.InsertStatement(ctx, s)
					Expect(err).NotTo(HaveOccurred())
				}
			})

			It("returns everything for an empty pattern", func() {
				all, err := driver.SelectStatements(ctx, statement.Pattern{})
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(HaveLen(3))
			})

			It("ANDs the supplied fields", func() {
				got, err := driver.SelectStatements(ctx, statement.Pattern{Subject: "s1", Predicate: "p1"})
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(HaveLen(1))
				Expect(got[0].Object).To(Equal("o1"))

				got, err = driver.SelectStatements(ctx, statement.Pattern{Object: "o1"})
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(HaveLen(2))
			})

			It("returns an empty list when nothing matches", func() {
				got, err := driver.SelectStatements(ctx, statement.Pattern{Subject: "nobody"})
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(BeEmpty())
			})
		})

		Describe("InsertChunk", func() {
			It("rejects chunks of unknown statements", func() {
				_, err := driver.InsertChunk(ctx, statement.Chunk{StatementID: 999, Content: "orphan"})
				Expect(storage.IsReferential(err)).To(BeTrue())
			})

			It("rejects embeddings of the wrong dimension", func() {
				id, _, err := driver.InsertStatement(ctx, lit("s", "p", "o"))
				Expect(err).NotTo(HaveOccurred())

				_, err = driver.InsertChunk(ctx, statement.Chunk{StatementID: id, Content: "o", Embedding: []float32{1, 2}})
				var dm *index.DimensionMismatchError
				Expect(errors.As(err, &dm)).To(BeTrue())
			})

			It("stores content and embedding", func() {
				id, _, err := driver.InsertStatement(ctx, lit("s", "p", "o"))
				Expect(err).NotTo(HaveOccurred())

				_, err = driver.InsertChunk(ctx, statement.Chunk{StatementID: id, Content: "with vector", Embedding: []float32{0.5, 0.25, 1}})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.InsertChunk(ctx, statement.Chunk{StatementID: id, Content: "without vector"})
				Expect(err).NotTo(HaveOccurred())

				chunks, err := driver.Chunks(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(chunks).To(HaveLen(2))
				Expect(chunks[0].Content).To(Equal("with vector"))
				Expect(chunks[0].Embedding).To(HaveLen(3))
				Expect(chunks[0].Embedding[1]).To(BeNumerically("~", 0.25, 1e-6))
				Expect(chunks[1].Embedding).To(BeNil())

				st, err := driver.Stats(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(st).To(Equal(storage.Stats{Statements: 1, Chunks: 2, EmbeddedChunks: 1}))
			})
		})

		Describe("DeleteStatement", func() {
			It("cascades to every chunk", func() {
				id, _, err := driver.InsertStatement(ctx, lit("s", "p", "cascade target"))
				Expect(err).NotTo(HaveOccurred())
				keep, _, err := driver.InsertStatement(ctx, lit("s", "p", "survivor"))
				Expect(err).NotTo(HaveOccurred())

				for i := range 4 {
					_, err := driver.InsertChunk(ctx, statement.Chunk{
						StatementID: id,
						Content:     "cascade target",
						Embedding:   []float32{1, float32(i), 0},
					})
					Expect(err).NotTo(HaveOccurred())
				}
				_, err = driver.InsertChunk(ctx, statement.Chunk{StatementID: keep, Content: "survivor", Embedding: []float32{0, 0, 1}})
				Expect(err).NotTo(HaveOccurred())

				deleted, err := driver.DeleteStatement(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(deleted).To(BeTrue())

				chunks, err := driver.Chunks(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(chunks).To(BeEmpty())

				lexical, err := driver.SearchLexical(ctx, "cascade", 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(lexical).To(BeEmpty())

				vector, err := driver.SearchVector(ctx, []float32{1, 0, 0}, 10)
				Expect(err).NotTo(HaveOccurred())
				for _, c := range vector {
					Expect(c.ID).To(Equal(keep))
				}

				st, err := driver.Stats(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(st.Statements).To(Equal(int64(1)))
				Expect(st.Chunks).To(Equal(int64(1)))
			})

			It("reports false for unknown ids", func() {
				deleted, err := driver.DeleteStatement(ctx, 31337)
				Expect(err).NotTo(HaveOccurred())
				Expect(deleted).To(BeFalse())
			})
		})

		Describe("DeleteChunks", func() {
			It("removes chunks but keeps the statement", func() {
				id, _, err := driver.InsertStatement(ctx, lit("s", "p", "o"))
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.InsertChunk(ctx, statement.Chunk{StatementID: id, Content: "o"})
				Expect(err).NotTo(HaveOccurred())

				n, err := driver.DeleteChunks(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(int64(1)))

				_, err = driver.GetStatement(ctx, id)
				Expect(err).NotTo(HaveOccurred())
			})
		})

		Describe("InTx", func() {
			It("rolls back everything when fn fails", func() {
				err := driver.InTx(ctx, func(tx storage.Tx) error {
					id, _, err := tx.InsertStatement(ctx, lit("s", "p", "rolled back"))
					if err != nil {
						return err
					}
					if _, err := tx.InsertChunk(ctx, statement.Chunk{StatementID: id, Content: "rolled back"}); err != nil {
						return err
					}
					return errAbort
				})
				Expect(err).To(MatchError(errAbort))

				st, err := driver.Stats(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(st).To(Equal(storage.Stats{}))
			})

			It("commits everything when fn succeeds", func() {
				var id int64
				err := driver.InTx(ctx, func(tx storage.Tx) error {
					var err error
					id, _, err = tx.InsertStatement(ctx, lit("s", "p", "committed"))
					if err != nil {
						return err
					}
					_, err = tx.InsertChunk(ctx, statement.Chunk{StatementID: id, Content: "committed"})
					return err
				})
				Expect(err).NotTo(HaveOccurred())

				chunks, err := driver.Chunks(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(chunks).To(HaveLen(1))
			})
		})

		Describe("SearchLexical", func() {
			var ai, banana int64

			BeforeEach(func() {
				var err error
				ai, _, err = driver.InsertStatement(ctx, lit("http://example.org/ai", "http://example.org/label", "Artificial Intelligence"))
				Expect(err).NotTo(HaveOccurred())
				banana, _, err = driver.InsertStatement(ctx, lit("http://example.org/banana", "http://example.org/label", "Banana"))
				Expect(err).NotTo(HaveOccurred())

				_, err = driver.InsertChunk(ctx, statement.Chunk{StatementID: ai, Content: "Artificial Intelligence"})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.InsertChunk(ctx, statement.Chunk{StatementID: banana, Content: "Banana"})
				Expect(err).NotTo(HaveOccurred())
			})

			It("matches words case-insensitively", func() {
				got, err := driver.SearchLexical(ctx, "intelligence", 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal([]index.Candidate{{ID: ai, Rank: 1}}))
			})

			It("ORs multiple terms", func() {
				got, err := driver.SearchLexical(ctx, "banana intelligence", 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(HaveLen(2))
			})

			It("returns an empty list for no matches", func() {
				got, err := driver.SearchLexical(ctx, "zeppelin", 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(BeEmpty())
			})

			It("tolerates query syntax characters", func() {
				_, err := driver.SearchLexical(ctx, `"intel*" AND (NOT`, 10)
				Expect(err).NotTo(HaveOccurred())
			})

			It("is deterministic", func() {
				first, err := driver.SearchLexical(ctx, "banana intelligence", 10)
				Expect(err).NotTo(HaveOccurred())
				second, err := driver.SearchLexical(ctx, "banana intelligence", 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(second).To(Equal(first))
			})
		})

		Describe("SearchVector", func() {
			var near, far int64

			BeforeEach(func() {
				var err error
				near, _, err = driver.InsertStatement(ctx, lit("s", "p", "near"))
				Expect(err).NotTo(HaveOccurred())
				far, _, err = driver.InsertStatement(ctx, lit("s", "p", "far"))
				Expect(err).NotTo(HaveOccurred())

				_, err = driver.InsertChunk(ctx, statement.Chunk{StatementID: far, Content: "far", Embedding: []float32{0, 0, 1}})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.InsertChunk(ctx, statement.Chunk{StatementID: near, Content: "near", Embedding: []float32{1, 0.1, 0}})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.InsertChunk(ctx, statement.Chunk{StatementID: near, Content: "near again", Embedding: []float32{1, 0.2, 0}})
				Expect(err).NotTo(HaveOccurred())
			})

			It("ranks nearest first and may repeat statements", func() {
				got, err := driver.SearchVector(ctx, []float32{1, 0, 0}, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal([]index.Candidate{
					{ID: near, Rank: 1},
					{ID: near, Rank: 2},
					{ID: far, Rank: 3},
				}))
			})

			It("honors the limit", func() {
				got, err := driver.SearchVector(ctx, []float32{0, 0, 1}, 1)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal([]index.Candidate{{ID: far, Rank: 1}}))
			})

			It("rejects query vectors of the wrong dimension", func() {
				_, err := driver.SearchVector(ctx, []float32{1, 0}, 10)
				var dm *index.DimensionMismatchError
				Expect(errors.As(err, &dm)).To(BeTrue())
				Expect(dm.Want).To(Equal(uint(Dimensions)))
				Expect(dm.Got).To(Equal(2))
			})
		})
	})
}
