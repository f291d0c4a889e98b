// Package index defines the dual-index query contract used by hybrid search:
// a lexical (full-text) index and a vector (cosine kNN) index, both answering
// with statement ids in rank order.
package index

import (
	"context"
	"fmt"
	"math"

	"github.com/papercomputeco/kb/pkg/rrf"
)

// Candidate is a statement id at a 1-indexed rank in a sub-index result.
type Candidate = rrf.Candidate[int64]

// Lexical searches chunk content by token/stem match.
type Lexical interface {
	// SearchLexical returns up to limit candidates, best first. A query with
	// no matches returns an empty list and no error.
	SearchLexical(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// Vector searches chunk embeddings by cosine distance.
type Vector interface {
	// SearchVector returns up to limit candidates, nearest first. A statement
	// may appear more than once when several of its chunks are near the query.
	// Returns a DimensionMismatchError when len(query) != Dimensions().
	SearchVector(ctx context.Context, query []float32, limit int) ([]Candidate, error)

	// Dimensions is the embedding dimension of the index.
	Dimensions() uint
}

// DimensionMismatchError reports a query vector whose length differs from the
// index dimension.
type DimensionMismatchError struct {
	Want uint
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: index has %d dimensions, got %d", e.Want, e.Got)
}

// CheckDimensions returns a DimensionMismatchError when v does not have dims
// elements.
func CheckDimensions(dims uint, v []float32) error {
	if uint(len(v)) != dims {
		return &DimensionMismatchError{Want: dims, Got: len(v)}
	}
	return nil
}

// IsZero reports whether v has no direction (empty or all zeros). Cosine
// distance is undefined for such vectors.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// CosineDistance returns 1 - cos(a, b). Vectors must have equal length and be
// non-zero.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Rank assigns consecutive 1-indexed ranks to ids in the given order.
func Rank(ids []int64) []Candidate {
	return rrf.Ranked(ids...)
}
