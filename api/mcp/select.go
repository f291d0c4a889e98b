package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/kb/pkg/statement"
)

var (
	selectToolName    = "select_statements"
	selectDescription = "List knowledge base statements matching exact subject, predicate, object or context values. Omitted fields match anything; the predicate \"a\" means rdf:type."
)

// SelectInput is a statement pattern.
type SelectInput struct {
	Subject   string `json:"subject,omitempty" jsonschema:"exact subject IRI"`
	Predicate string `json:"predicate,omitempty" jsonschema:"exact predicate IRI"`
	Object    string `json:"object,omitempty" jsonschema:"exact object IRI or literal"`
	Context   string `json:"context,omitempty" jsonschema:"exact named graph"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum statements to return (default: 100)"`
}

// SelectOutput lists matching statements.
type SelectOutput struct {
	Statements []statement.Statement `json:"statements"`
	Count      int                   `json:"count"`
	Truncated  bool                  `json:"truncated,omitempty"`
}

const defaultSelectLimit = 100

func (s *Server) handleSelect(ctx context.Context, _ *mcp.CallToolRequest, input SelectInput) (*mcp.CallToolResult, SelectOutput, error) {
	pattern := statement.Pattern{
		Subject:   input.Subject,
		Predicate: input.Predicate,
		Object:    input.Object,
		Context:   input.Context,
	}

	statements, err := s.config.Service.SelectStatements(ctx, pattern)
	if err != nil {
		s.config.Logger.Error("MCP select failed", "error", err)
		return errorResult("Select failed: %v", err), SelectOutput{}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSelectLimit
	}

	output := SelectOutput{Statements: statements}
	if len(statements) > limit {
		output.Statements = statements[:limit]
		output.Truncated = true
	}
	if output.Statements == nil {
		output.Statements = []statement.Statement{}
	}
	output.Count = len(output.Statements)

	res, err := textResult(output)
	if err != nil {
		return errorResult("Failed to serialize results: %v", err), SelectOutput{}, nil
	}
	return res, output, nil
}
