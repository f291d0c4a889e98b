package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/ingest"
	"github.com/papercomputeco/kb/pkg/kb"
	"github.com/papercomputeco/kb/pkg/logger"
	"github.com/papercomputeco/kb/pkg/search"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/kb/pkg/utils/test"
)

const aiJSON = `{"subject":"http://example.org/ai","predicate":"http://www.w3.org/2000/01/rdf-schema#label","object":"Artificial Intelligence","term_type":"Literal"}`

func do(server *Server, method, target, body string) (*http.Response, []byte) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())
	out, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, out
}

var _ = Describe("Server", func() {
	var (
		server *Server
		svc    *kb.Service
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder := testutils.NewMockEmbedder(3)
		embedder.Set("Artificial Intelligence", []float32{1, 0, 0})
		embedder.Set("Banana", []float32{0, 1, 0})

		var err error
		svc, err = kb.New(kb.Options{
			Store:    inmemory.NewDriver(3),
			Embedder: embedder,
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(svc.Close)

		server = NewServer(Config{ListenAddr: ":0"}, svc, logger.Nop())
	})

	It("answers ping", func() {
		resp, body := do(server, http.MethodGet, "/ping", "")
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	Describe("POST /v1/statements", func() {
		It("creates a statement with chunks", func() {
			resp, body := do(server, http.MethodPost, "/v1/statements", aiJSON)
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var res ingest.Result
			Expect(json.Unmarshal(body, &res)).To(Succeed())
			Expect(res.IsNew).To(BeTrue())
			Expect(res.ChunkIDs).To(HaveLen(1))
			Expect(res.Embedded).To(Equal(1))
		})

		It("returns 200 for a duplicate", func() {
			do(server, http.MethodPost, "/v1/statements", aiJSON)
			resp, _ := do(server, http.MethodPost, "/v1/statements", aiJSON)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})

		It("inserts without chunks when asked", func() {
			resp, body := do(server, http.MethodPost, "/v1/statements?chunks=false", aiJSON)
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
			Expect(string(body)).To(ContainSubstring(`"statement_id":1`))

			st, err := svc.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Chunks).To(BeZero())
		})

		It("rejects a statement missing its object", func() {
			resp, body := do(server, http.MethodPost, "/v1/statements", `{"subject":"s","predicate":"p"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("missing required statement field"))
		})

		It("rejects malformed JSON", func() {
			resp, _ := do(server, http.MethodPost, "/v1/statements", `{`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("queues a statement with async=true", func() {
			resp, _ := do(server, http.MethodPost, "/v1/statements?async=true", aiJSON)
			Expect(resp.StatusCode).To(Equal(fiber.StatusAccepted))

			Eventually(func() int64 {
				st, err := svc.Stats(ctx)
				Expect(err).NotTo(HaveOccurred())
				return st.Statements
			}).Should(Equal(int64(1)))
		})
	})

	Describe("statement reads", func() {
		var id int64

		BeforeEach(func() {
			res, err := svc.InsertStatementWithChunks(ctx, statement.Statement{
				Subject:   "http://example.org/alice",
				Predicate: "a",
				Object:    "http://example.org/Person",
			})
			Expect(err).NotTo(HaveOccurred())
			id = res.StatementID
		})

		It("selects by pattern with the type alias", func() {
			resp, body := do(server, http.MethodGet, "/v1/statements?predicate=a", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out SelectResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Count).To(Equal(1))
			Expect(out.Statements[0].Predicate).To(Equal(statement.RDFType))
		})

		It("returns an empty list when nothing matches", func() {
			_, body := do(server, http.MethodGet, "/v1/statements?subject=nobody", "")
			Expect(string(body)).To(ContainSubstring(`"statements":[]`))
		})

		It("gets a statement with its chunks", func() {
			resp, body := do(server, http.MethodGet, "/v1/statements/1", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out StatementResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Statement.ID).To(Equal(id))
			Expect(out.Chunks).NotTo(BeEmpty())
			Expect(out.Chunks[0].Embedded).To(BeTrue())
		})

		It("returns 404 for a missing statement", func() {
			resp, _ := do(server, http.MethodGet, "/v1/statements/99", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("returns 400 for a bad id", func() {
			resp, _ := do(server, http.MethodGet, "/v1/statements/abc", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("conflicts when chunking an already chunked statement", func() {
			resp, _ := do(server, http.MethodPost, "/v1/statements/1/chunks", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusConflict))
		})

		It("replaces chunks with replace=true", func() {
			resp, body := do(server, http.MethodPost, "/v1/statements/1/chunks?replace=true", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(string(body)).To(ContainSubstring(`"statement_id":1`))
		})

		It("deletes a statement and its chunks", func() {
			resp, _ := do(server, http.MethodDelete, "/v1/statements/1", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))

			chunks, err := svc.Chunks(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(BeEmpty())

			resp, _ = do(server, http.MethodDelete, "/v1/statements/1", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("/v1/search", func() {
		BeforeEach(func() {
			do(server, http.MethodPost, "/v1/statements", aiJSON)
			do(server, http.MethodPost, "/v1/statements",
				`{"subject":"http://example.org/banana","predicate":"http://www.w3.org/2000/01/rdf-schema#label","object":"Banana","term_type":"Literal"}`)
		})

		It("requires a query on GET", func() {
			resp, body := do(server, http.MethodGet, "/v1/search", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("query parameter is required"))
		})

		It("rejects a non-positive limit", func() {
			resp, _ := do(server, http.MethodGet, "/v1/search?query=ai&limit=0", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("searches by text", func() {
			resp, body := do(server, http.MethodGet, "/v1/search?query=intelligence&limit=1", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out search.Response
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Results).To(HaveLen(1))
			Expect(out.Results[0].Object).To(Equal("Artificial Intelligence"))
		})

		It("searches by vector on POST", func() {
			resp, body := do(server, http.MethodPost, "/v1/search", `{"vector":[0,1,0],"limit":1}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out search.Response
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Results[0].Object).To(Equal("Banana"))
		})

		It("rejects an empty POST query", func() {
			resp, _ := do(server, http.MethodPost, "/v1/search", `{}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects a wrong-sized vector with no text", func() {
			resp, body := do(server, http.MethodPost, "/v1/search", `{"vector":[1,0]}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("dimension"))
		})
	})

	It("reports stats", func() {
		do(server, http.MethodPost, "/v1/statements", aiJSON)
		resp, body := do(server, http.MethodGet, "/v1/stats", "")
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(string(body)).To(ContainSubstring(`"statements":1`))
		Expect(string(body)).To(ContainSubstring(`"jobs"`))
	})

	It("mounts an MCP handler", func() {
		mounted := NewServer(Config{
			MCPHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			}),
		}, svc, logger.Nop())

		resp, _ := do(mounted, http.MethodPost, "/mcp", "{}")
		Expect(resp.StatusCode).To(Equal(http.StatusTeapot))
	})
})

var _ = Describe("statusFor", func() {
	It("maps deadline errors to 504", func() {
		Expect(statusFor(search.ErrDeadlineExceeded)).To(Equal(fiber.StatusGatewayTimeout))
	})

	It("maps unknown errors to 500", func() {
		Expect(statusFor(io.ErrUnexpectedEOF)).To(Equal(fiber.StatusInternalServerError))
	})
})
