package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/kb/pkg/ingest"
	"github.com/papercomputeco/kb/pkg/kb"
	"github.com/papercomputeco/kb/pkg/search"
	"github.com/papercomputeco/kb/pkg/statement"
)

// Service is the knowledge base the server exposes. *kb.Service satisfies it.
type Service interface {
	InsertStatement(ctx context.Context, s statement.Statement) (int64, bool, error)
	InsertStatementWithChunks(ctx context.Context, s statement.Statement) (*ingest.Result, error)
	InsertChunksForStatement(ctx context.Context, statementID int64) (*ingest.Result, error)
	Rechunk(ctx context.Context, statementID int64) (*ingest.Result, error)
	DeleteStatement(ctx context.Context, statementID int64) (bool, error)
	SelectStatements(ctx context.Context, p statement.Pattern) ([]statement.Statement, error)
	GetStatement(ctx context.Context, id int64) (*statement.Statement, error)
	Chunks(ctx context.Context, statementID int64) ([]statement.Chunk, error)
	Search(ctx context.Context, q search.Query) (*search.Response, error)
	Enqueue(s statement.Statement, source string) bool
	Stats(ctx context.Context) (kb.Stats, error)
}

// Server is the API server for the knowledge base.
type Server struct {
	config Config
	kb     Service
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server over svc.
// The service is injected so the serve command can share it with the MCP
// tools and the ingest watcher.
func NewServer(config Config, svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		kb:     svc,
		logger: logger.With("component", "api"),
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/stats", s.handleStats)

	app.Post("/v1/statements", s.handleCreateStatement)
	app.Get("/v1/statements", s.handleSelectStatements)
	app.Get("/v1/statements/:id", s.handleGetStatement)
	app.Delete("/v1/statements/:id", s.handleDeleteStatement)
	app.Post("/v1/statements/:id/chunks", s.handleChunkStatement)

	app.Get("/v1/search", s.handleSearchEndpoint)
	app.Post("/v1/search", s.handleSearchEndpoint)

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
