package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/embeddings"
	"github.com/papercomputeco/kb/pkg/embeddings/ollama"
)

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		received map[string]any
		status   int
		body     string
	)

	BeforeEach(func() {
		received = nil
		status = http.StatusOK
		body = `{"embeddings":[[0.1,0.2,0.3]]}`
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/api/embed"))
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("returns the first embedding", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL + "/", Model: "test-model"})
		Expect(err).NotTo(HaveOccurred())

		v, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal([]float32{0.1, 0.2, 0.3}))
		Expect(received["model"]).To(Equal("test-model"))
		Expect(received["input"]).To(Equal([]any{"hello"}))
		Expect(e.Model()).To(Equal("test-model"))
	})

	It("defaults the model", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Model()).To(Equal(ollama.DefaultEmbeddingModel))
	})

	It("reports non-200 responses as unavailable", func() {
		status = http.StatusInternalServerError
		body = "model not loaded"

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "hello")
		Expect(err).To(MatchError(embeddings.ErrEmbeddingUnavailable))
		Expect(err.Error()).To(ContainSubstring("model not loaded"))
	})

	It("reports empty responses as unavailable", func() {
		body = `{"embeddings":[]}`

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "hello")
		Expect(err).To(MatchError(embeddings.ErrEmbeddingUnavailable))
	})

	Describe("EmbedBatch", func() {
		It("sends every input in one request", func() {
			body = `{"embeddings":[[1,0,0],[0,1,0]]}`
			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())

			vs, err := e.EmbedBatch(context.Background(), []string{"Artificial Intelligence", "Banana"})
			Expect(err).NotTo(HaveOccurred())
			Expect(vs).To(Equal([][]float32{{1, 0, 0}, {0, 1, 0}}))
			Expect(received["input"]).To(Equal([]any{"Artificial Intelligence", "Banana"}))
		})

		It("rejects a response with the wrong number of vectors", func() {
			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.EmbedBatch(context.Background(), []string{"a", "b"})
			Expect(err).To(MatchError(embeddings.ErrEmbeddingUnavailable))
			Expect(err.Error()).To(ContainSubstring("1 embeddings for 2 inputs"))
		})

		It("does nothing for no input", func() {
			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())

			vs, err := e.EmbedBatch(context.Background(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(vs).To(BeEmpty())
			Expect(received).To(BeNil())
		})
	})
})
