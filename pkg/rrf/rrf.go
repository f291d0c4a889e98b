// Package rrf implements Reciprocal Rank Fusion over any number of ranked
// candidate lists.
//
// Each entity scores the sum over lists of 1/(k+rank), where rank is the
// entity's 1-indexed position in that list. An entity missing from a list
// contributes nothing from it, so partial coverage still ranks. Only ranks are
// consulted: the native scores of the source engines are never compared.
//
// Fusion is a two-pass in-memory computation (accumulate per entity, then sort)
// using O(total candidates) memory.
package rrf

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultK is the conventional RRF smoothing constant.
const DefaultK = 60.0

// ErrInvalidRank is returned when a list's ranks are not 1, 2, 3, ... in order.
var ErrInvalidRank = errors.New("invalid rank")

// Candidate is one entry of a ranked list. Rank 1 is the best match.
type Candidate[K comparable] struct {
	ID   K
	Rank int
}

// Result is a fused entity and its accumulated score.
type Result[K comparable] struct {
	ID    K
	Score float64
}

// Ranked builds a candidate list from ids in best-first order.
func Ranked[K comparable](ids ...K) []Candidate[K] {
	out := make([]Candidate[K], len(ids))
	for i, id := range ids {
		out[i] = Candidate[K]{ID: id, Rank: i + 1}
	}
	return out
}

// Fuse combines the ranked lists and returns at most limit entities ordered by
// fused score, highest first. Equal scores keep the order in which entities
// were first seen (earlier list first, then earlier position). When an entity
// occurs more than once in a single list only its best occurrence counts.
//
// k <= 0 selects DefaultK. limit <= 0 returns every fused entity.
func Fuse[K comparable](k float64, limit int, lists ...[]Candidate[K]) ([]Result[K], error) {
	if k <= 0 {
		k = DefaultK
	}

	total := 0
	for li, list := range lists {
		for i, c := range list {
			if c.Rank != i+1 {
				return nil, fmt.Errorf("%w: list %d position %d has rank %d", ErrInvalidRank, li, i, c.Rank)
			}
		}
		total += len(list)
	}

	index := make(map[K]int, total)
	results := make([]Result[K], 0, total)

	for _, list := range lists {
		seen := make(map[K]struct{}, len(list))
		for _, c := range list {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}

			contribution := 1.0 / (k + float64(c.Rank))
			if i, ok := index[c.ID]; ok {
				results[i].Score += contribution
				continue
			}
			index[c.ID] = len(results)
			results = append(results, Result[K]{ID: c.ID, Score: contribution})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
