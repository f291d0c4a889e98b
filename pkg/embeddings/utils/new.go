// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/kb/pkg/embeddings"
	"github.com/papercomputeco/kb/pkg/embeddings/cache"
	"github.com/papercomputeco/kb/pkg/embeddings/ollama"
)

// ProviderNone disables embeddings: ingestion stores chunks for lexical
// search only and hybrid search runs lexical-only.
const ProviderNone = "none"

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string

	// CachePath enables the badger embedding cache at this directory.
	CachePath string

	Logger *slog.Logger
}

// NewEmbedder returns the configured embedder, or nil for ProviderNone.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		e   embeddings.Embedder
		err error
	)

	switch o.ProviderType {
	case ProviderNone, "":
		return nil, nil
	case "ollama":
		e, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	if o.CachePath == "" {
		return e, nil
	}

	cached, err := cache.New(e, cache.Config{Path: o.CachePath, Model: o.Model}, o.Logger)
	if err != nil {
		e.Close()
		return nil, err
	}
	return cached, nil
}
