package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/statement"
)

// StaticIndex is a lexical and vector index returning canned results.
type StaticIndex struct {
	mu sync.Mutex

	// Results is returned (truncated to the limit) by both searches.
	Results []index.Candidate

	// Err fails every search when set.
	Err error

	// Delay blocks each search until it elapses or the context ends.
	Delay time.Duration

	// Dims is reported by Dimensions.
	Dims uint

	// Limits records the limit of every call.
	Limits []int
}

func (s *StaticIndex) search(ctx context.Context, limit int) ([]index.Candidate, error) {
	s.mu.Lock()
	s.Limits = append(s.Limits, limit)
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Results) > limit {
		return s.Results[:limit], nil
	}
	return s.Results, nil
}

func (s *StaticIndex) SearchLexical(ctx context.Context, _ string, limit int) ([]index.Candidate, error) {
	return s.search(ctx, limit)
}

func (s *StaticIndex) SearchVector(ctx context.Context, query []float32, limit int) ([]index.Candidate, error) {
	if err := index.CheckDimensions(s.Dims, query); err != nil {
		return nil, err
	}
	return s.search(ctx, limit)
}

func (s *StaticIndex) Dimensions() uint {
	return s.Dims
}

// MockVectorDriver is a test vector driver
type MockVectorDriver struct {
	StaticIndex

	// Upserted holds every chunk passed to Upsert.
	Upserted []statement.Chunk

	// Deleted holds every statement id passed to DeleteStatement.
	Deleted []int64

	// UpsertErr fails Upsert when set.
	UpsertErr error
}

func NewMockVectorDriver(dims uint) *MockVectorDriver {
	return &MockVectorDriver{StaticIndex: StaticIndex{Dims: dims}}
}

func (m *MockVectorDriver) Upsert(_ context.Context, chunks []statement.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.Upserted = append(m.Upserted, chunks...)
	return nil
}

func (m *MockVectorDriver) DeleteStatement(_ context.Context, statementID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, statementID)
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}
