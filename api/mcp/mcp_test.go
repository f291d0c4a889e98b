package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kb/pkg/kb"
	"github.com/papercomputeco/kb/pkg/logger"
	"github.com/papercomputeco/kb/pkg/search"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/kb/pkg/utils/test"
)

type brokenService struct{}

func (brokenService) Search(context.Context, search.Query) (*search.Response, error) {
	return nil, errors.New("store offline")
}

func (brokenService) SelectStatements(context.Context, statement.Pattern) ([]statement.Statement, error) {
	return nil, errors.New("store offline")
}

func resultText(res *mcp.CallToolResult) string {
	Expect(res.Content).To(HaveLen(1))
	text, ok := res.Content[0].(*mcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("MCP Server", func() {
	var (
		server *Server
		svc    *kb.Service
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		svc, err = kb.New(kb.Options{
			Store:    inmemory.NewDriver(3),
			Embedder: testutils.NewMockEmbedder(3),
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(svc.Close)

		server, err = NewServer(Config{Service: svc, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when the service is nil", func() {
			_, err := NewServer(Config{Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("service is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := NewServer(Config{Service: svc})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("creates an empty server in noop mode", func() {
			s, err := NewServer(Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("search tool", func() {
		BeforeEach(func() {
			for i, obj := range []string{"Artificial Intelligence", "Banana", "Intelligence agencies"} {
				_, err := svc.InsertStatementWithChunks(ctx, statement.Statement{
					Subject:   fmt.Sprintf("http://example.org/s%d", i),
					Predicate: "http://www.w3.org/2000/01/rdf-schema#label",
					Object:    obj,
					TermType:  statement.Literal,
				})
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("returns fused results as structured and text content", func() {
			res, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "intelligence", Limit: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.Count).To(Equal(len(out.Results)))
			Expect(out.Count).To(BeNumerically(">=", 2))
			Expect(resultText(res)).To(ContainSubstring(`"query":"intelligence"`))
		})

		It("honors the limit", func() {
			_, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "intelligence", Limit: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Results).To(HaveLen(1))
		})

		It("reports an empty query as a tool error", func() {
			res, _, err := server.handleSearch(ctx, nil, SearchInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(resultText(res)).To(ContainSubstring("Search failed"))
		})
	})

	Describe("select_statements tool", func() {
		BeforeEach(func() {
			for _, who := range []string{"alice", "bob"} {
				_, _, err := svc.InsertStatement(ctx, statement.Statement{
					Subject:   "http://example.org/" + who,
					Predicate: "a",
					Object:    "http://example.org/Person",
				})
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("selects with the type alias", func() {
			res, out, err := server.handleSelect(ctx, nil, SelectInput{Predicate: "a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.Count).To(Equal(2))
			Expect(out.Truncated).To(BeFalse())
		})

		It("truncates to the limit", func() {
			_, out, err := server.handleSelect(ctx, nil, SelectInput{Limit: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Statements).To(HaveLen(1))
			Expect(out.Truncated).To(BeTrue())
		})

		It("returns an empty list for no match", func() {
			_, out, err := server.handleSelect(ctx, nil, SelectInput{Subject: "http://example.org/carol"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Statements).To(BeEmpty())
			Expect(out.Count).To(BeZero())
		})
	})

	It("turns service failures into tool errors", func() {
		broken, err := NewServer(Config{Service: brokenService{}, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		res, _, err := broken.handleSelect(ctx, nil, SelectInput{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.IsError).To(BeTrue())
		Expect(resultText(res)).To(ContainSubstring("store offline"))
	})
})
