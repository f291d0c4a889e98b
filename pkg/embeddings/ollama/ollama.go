// Package ollama embeds text through Ollama's /api/embed endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/kb/pkg/embeddings"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "nomic-embed-text"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 30 * time.Second
)

// Embedder calls a local or remote Ollama server.
type Embedder struct {
	endpoint string
	model    string
	client   *http.Client
}

// EmbedderConfig holds configuration for the Ollama embedder. Zero values
// take the package defaults.
type EmbedderConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Ollama accepts either a string or a list as input; kb always sends a list
// so one code path serves single and batched calls.
type embedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Embedder{
		endpoint: base + "/api/embed",
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

// EmbedBatch embeds all texts in one request. Every failure, including a
// response with the wrong number of vectors, wraps ErrEmbeddingUnavailable.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(embedRequest{Model: e.model, Input: texts, Truncate: true})
	if err != nil {
		return nil, unavailable("marshaling request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, unavailable("creating request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, unavailable("sending request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: ollama returned status %d: %s",
			embeddings.ErrEmbeddingUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, unavailable("decoding response", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: ollama returned %d embeddings for %d inputs",
			embeddings.ErrEmbeddingUnavailable, len(out.Embeddings), len(texts))
	}

	return out.Embeddings, nil
}

func unavailable(step string, err error) error {
	return fmt.Errorf("%w: %s: %v", embeddings.ErrEmbeddingUnavailable, step, err)
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// Close drops idle connections.
func (e *Embedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

var (
	_ embeddings.Embedder = (*Embedder)(nil)
	_ embeddings.Batcher  = (*Embedder)(nil)
	_ embeddings.Modeler  = (*Embedder)(nil)
)
