package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/kb/pkg/embeddings"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	mu sync.Mutex

	// Dims is the length of generated default embeddings.
	Dims int

	// Embeddings maps input text to the vector returned for it.
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// FailAll causes every Embed call to fail.
	FailAll bool

	calls atomic.Int64
}

func NewMockEmbedder(dims int) *MockEmbedder {
	return &MockEmbedder{
		Dims:       dims,
		Embeddings: make(map[string][]float32),
	}
}

// Set registers the vector returned for text.
func (m *MockEmbedder) Set(text string, v []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Embeddings[text] = v
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAll || (m.FailOn != "" && text == m.FailOn) {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", embeddings.ErrEmbeddingUnavailable, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Derive a stable non-zero vector from the text.
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	v := make([]float32, m.Dims)
	for i := range v {
		v[i] = float32((seed>>(uint(i)%64))&0xff)/255 + 0.01
	}
	return v, nil
}

// Calls returns how many times Embed was called.
func (m *MockEmbedder) Calls() int {
	return int(m.calls.Load())
}

func (m *MockEmbedder) Model() string {
	return "mock"
}

func (m *MockEmbedder) Close() error {
	return nil
}

// MockBatchEmbedder adds EmbedBatch to MockEmbedder and records every batch
// it receives.
type MockBatchEmbedder struct {
	*MockEmbedder

	mu      sync.Mutex
	batches [][]string
}

func NewMockBatchEmbedder(dims int) *MockBatchEmbedder {
	return &MockBatchEmbedder{MockEmbedder: NewMockEmbedder(dims)}
}

// EmbedBatch embeds each text with Embed and fails as a whole if any text
// fails.
func (m *MockBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	m.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Batches returns the inputs of every EmbedBatch call.
func (m *MockBatchEmbedder) Batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.batches...)
}
