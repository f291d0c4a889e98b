package index_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/index"
)

var _ = Describe("CheckDimensions", func() {
	It("accepts matching vectors", func() {
		Expect(index.CheckDimensions(3, []float32{1, 2, 3})).To(Succeed())
	})

	It("reports the expected and actual dimensions", func() {
		err := index.CheckDimensions(3, []float32{1, 2})
		var dm *index.DimensionMismatchError
		Expect(errors.As(err, &dm)).To(BeTrue())
		Expect(dm.Want).To(Equal(uint(3)))
		Expect(dm.Got).To(Equal(2))
	})
})

var _ = Describe("CosineDistance", func() {
	It("is zero for parallel vectors", func() {
		Expect(index.CosineDistance([]float32{1, 1}, []float32{2, 2})).To(BeNumerically("~", 0, 1e-9))
	})

	It("is one for orthogonal vectors", func() {
		Expect(index.CosineDistance([]float32{1, 0}, []float32{0, 1})).To(BeNumerically("~", 1, 1e-9))
	})
})

var _ = Describe("IsZero", func() {
	It("treats empty and all-zero vectors as zero", func() {
		Expect(index.IsZero(nil)).To(BeTrue())
		Expect(index.IsZero([]float32{0, 0})).To(BeTrue())
		Expect(index.IsZero([]float32{0, 0.1})).To(BeFalse())
	})
})

var _ = Describe("Rank", func() {
	It("assigns 1-indexed ranks", func() {
		Expect(index.Rank([]int64{9, 4})).To(Equal([]index.Candidate{{ID: 9, Rank: 1}, {ID: 4, Rank: 2}}))
	})
})

var _ = Describe("Terms", func() {
	It("lowercases, strips punctuation and dedupes", func() {
		Expect(index.Terms(`Artificial "intelligence", AI; ai!`)).To(Equal([]string{"artificial", "intelligence", "ai"}))
	})

	It("returns nothing for punctuation-only queries", func() {
		Expect(index.Terms(`"*"`)).To(BeEmpty())
	})
})
