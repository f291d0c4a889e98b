package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/kb/pkg/search"
	"github.com/papercomputeco/kb/pkg/statement"
)

var (
	searchToolName    = "search"
	searchDescription = "Hybrid search over knowledge base statements. Combines full-text and semantic matches with reciprocal rank fusion and returns the most relevant statements, best first."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query text"`
	Limit int    `json:"limit,omitempty" jsonschema:"number of results to return (default: 10)"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query    string                   `json:"query"`
	Results  []statement.SearchResult `json:"results"`
	Count    int                      `json:"count"`
	Warnings []string                 `json:"warnings,omitempty"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger
	logger.Debug("MCP search request", "query", input.Query, "limit", input.Limit)

	resp, err := s.config.Service.Search(ctx, search.Query{Text: input.Query, Limit: input.Limit})
	if err != nil {
		logger.Error("MCP search failed", "error", err)
		return errorResult("Search failed: %v", err), SearchOutput{}, nil
	}

	output := SearchOutput{
		Query:    input.Query,
		Results:  resp.Results,
		Count:    len(resp.Results),
		Warnings: resp.Warnings,
	}

	res, err := textResult(output)
	if err != nil {
		return errorResult("Failed to serialize results: %v", err), SearchOutput{}, nil
	}
	return res, output, nil
}
