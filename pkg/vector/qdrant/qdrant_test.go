package qdrant_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/vector/qdrant"
)

// address returns the Qdrant gRPC address from environment or skips the test.
func address() string {
	addr := os.Getenv("KB_TEST_QDRANT_ADDR")
	if addr == "" {
		Skip("KB_TEST_QDRANT_ADDR not set, skipping Qdrant tests")
	}
	return addr
}

var _ = Describe("Driver", func() {
	var (
		driver *qdrant.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		driver, err = qdrant.NewDriver(ctx, qdrant.Config{
			Address:    address(),
			Collection: fmt.Sprintf("kb_test_%d", time.Now().UnixNano()),
			Dimensions: 3,
		}, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	It("ranks statements by cosine similarity", func() {
		err := driver.Upsert(ctx, []statement.Chunk{
			{ID: 1, StatementID: 10, Embedding: []float32{1, 0, 0}},
			{ID: 2, StatementID: 20, Embedding: []float32{0, 1, 0}},
			{ID: 3, StatementID: 30},
		})
		Expect(err).NotTo(HaveOccurred())

		got, err := driver.SearchVector(ctx, []float32{0.9, 0.1, 0}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]index.Candidate{{ID: 10, Rank: 1}, {ID: 20, Rank: 2}}))
	})

	It("ranks a statement once by its nearest chunk", func() {
		err := driver.Upsert(ctx, []statement.Chunk{
			{ID: 1, StatementID: 10, Embedding: []float32{1, 0, 0}},
			{ID: 2, StatementID: 10, Embedding: []float32{0.9, 0.2, 0}},
			{ID: 3, StatementID: 20, Embedding: []float32{0, 1, 0}},
		})
		Expect(err).NotTo(HaveOccurred())

		got, err := driver.SearchVector(ctx, []float32{1, 0, 0}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]index.Candidate{{ID: 10, Rank: 1}, {ID: 20, Rank: 2}}))
	})

	It("deletes every point of a statement", func() {
		err := driver.Upsert(ctx, []statement.Chunk{
			{ID: 1, StatementID: 10, Embedding: []float32{1, 0, 0}},
			{ID: 2, StatementID: 10, Embedding: []float32{1, 0.1, 0}},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(driver.DeleteStatement(ctx, 10)).To(Succeed())

		got, err := driver.SearchVector(ctx, []float32{1, 0, 0}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeEmpty())
	})

	It("rejects query vectors of the wrong dimension", func() {
		_, err := driver.SearchVector(ctx, []float32{1, 0}, 10)
		var dm *index.DimensionMismatchError
		Expect(errors.As(err, &dm)).To(BeTrue())
	})
})

var _ = Describe("NewDriver", func() {
	It("requires an address", func() {
		_, err := qdrant.NewDriver(context.Background(), qdrant.Config{Dimensions: 3}, nil)
		Expect(err).To(MatchError(ContainSubstring("address is required")))
	})
})
