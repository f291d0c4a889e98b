// Package mcp exposes the knowledge base to agents as Model Context Protocol
// tools served over streamable HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/kb/pkg/search"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/utils"
)

const instructions = "Use search for free-text questions over the knowledge base and " +
	"select_statements to fetch statements matching an exact subject, predicate or object."

var (
	errServiceRequired = errors.New("knowledge base service is required")
	errLoggerRequired  = errors.New("logger is required")
)

// Service is the part of the knowledge base the tools call.
type Service interface {
	Search(ctx context.Context, q search.Query) (*search.Response, error)
	SelectStatements(ctx context.Context, p statement.Pattern) ([]statement.Statement, error)
}

type Config struct {
	// Service answers tool calls.
	Service Service

	// Noop serves the protocol with no tools registered.
	Noop bool

	Logger *slog.Logger
}

// Server holds the MCP server and its HTTP transport.
type Server struct {
	config  Config
	handler http.Handler
}

// NewServer builds a stateless MCP server with the search and
// select_statements tools.
func NewServer(c Config) (*Server, error) {
	if !c.Noop {
		switch {
		case c.Service == nil:
			return nil, errServiceRequired
		case c.Logger == nil:
			return nil, errLoggerRequired
		}
	}

	s := &Server{config: c}
	impl := &mcp.Implementation{Name: "kb", Version: utils.Version}
	srv := mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions})
	if !c.Noop {
		s.register(srv)
	}

	s.handler = mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return srv },
		&mcp.StreamableHTTPOptions{Stateless: true},
	)
	return s, nil
}

func (s *Server) register(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{Name: searchToolName, Description: searchDescription}, s.handleSearch)
	mcp.AddTool(srv, &mcp.Tool{Name: selectToolName, Description: selectDescription}, s.handleSelect)
}

// Handler returns the HTTP handler for the MCP endpoint.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

// textResult mirrors structured output as JSON text for clients that only
// read content blocks.
func textResult(out any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(b)}}}, nil
}
