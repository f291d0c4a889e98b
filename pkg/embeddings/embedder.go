// Package embeddings defines the embedding capability: an opaque function from
// text to a fixed-dimension vector.
package embeddings

import (
	"context"
	"errors"
)

// ErrEmbeddingUnavailable is returned when an embedding could not be produced.
// It is recoverable: callers index lexically only and search without vectors.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// Modeler is implemented by embedders that can name the model they use.
type Modeler interface {
	Model() string
}

// Batcher is implemented by embedders that can embed several texts in one
// call. The result has one vector per input, in input order.
type Batcher interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedAll embeds texts with one EmbedBatch call when e supports it and
// one Embed call per text otherwise.
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	if b, ok := e.(Batcher); ok {
		return b.EmbedBatch(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
