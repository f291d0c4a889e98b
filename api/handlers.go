package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/kb/pkg/statement"
)

// StatementResponse is a statement with its chunks.
type StatementResponse struct {
	Statement statement.Statement `json:"statement"`
	Chunks    []ChunkView         `json:"chunks"`
}

// ChunkView is a chunk without its embedding vector.
type ChunkView struct {
	ID       int64  `json:"id"`
	Content  string `json:"content"`
	Embedded bool   `json:"embedded"`
}

// SelectResponse lists statements matching a pattern.
type SelectResponse struct {
	Count      int                   `json:"count"`
	Statements []statement.Statement `json:"statements"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStats returns store counts and async ingestion counters.
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.kb.Stats(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(stats)
}

// handleCreateStatement inserts one statement.
// Query parameters:
//   - async (optional): queue the statement for background ingestion
//   - chunks (optional, default true): derive and store chunks with it
func (s *Server) handleCreateStatement(c *fiber.Ctx) error {
	var st statement.Statement
	if err := c.BodyParser(&st); err != nil {
		return badRequest(c, "invalid statement body")
	}
	st.ID = 0

	if c.QueryBool("async") {
		if _, err := statement.Normalize(st); err != nil {
			return s.fail(c, err)
		}
		if !s.kb.Enqueue(st, "api") {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "ingest queue full"})
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true})
	}

	if !c.QueryBool("chunks", true) {
		id, isNew, err := s.kb.InsertStatement(c.UserContext(), st)
		if err != nil {
			return s.fail(c, err)
		}
		return c.Status(createdStatus(isNew)).JSON(fiber.Map{"statement_id": id, "is_new": isNew})
	}

	res, err := s.kb.InsertStatementWithChunks(c.UserContext(), st)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(createdStatus(res.IsNew)).JSON(res)
}

// handleSelectStatements lists statements by exact match on the subject,
// predicate, object and context query parameters.
func (s *Server) handleSelectStatements(c *fiber.Ctx) error {
	pattern := statement.Pattern{
		Subject:   c.Query("subject"),
		Predicate: c.Query("predicate"),
		Object:    c.Query("object"),
		Context:   c.Query("context"),
	}

	statements, err := s.kb.SelectStatements(c.UserContext(), pattern)
	if err != nil {
		return s.fail(c, err)
	}
	if statements == nil {
		statements = []statement.Statement{}
	}
	return c.JSON(SelectResponse{Count: len(statements), Statements: statements})
}

// handleGetStatement returns a statement and its chunks.
func (s *Server) handleGetStatement(c *fiber.Ctx) error {
	id, ok := statementID(c)
	if !ok {
		return badRequest(c, "id must be a positive integer")
	}

	st, err := s.kb.GetStatement(c.UserContext(), id)
	if err != nil {
		return s.fail(c, err)
	}
	chunks, err := s.kb.Chunks(c.UserContext(), id)
	if err != nil {
		return s.fail(c, err)
	}

	views := make([]ChunkView, len(chunks))
	for i, ch := range chunks {
		views[i] = ChunkView{ID: ch.ID, Content: ch.Content, Embedded: ch.Embedding != nil}
	}
	return c.JSON(StatementResponse{Statement: *st, Chunks: views})
}

// handleDeleteStatement deletes a statement and its chunks.
func (s *Server) handleDeleteStatement(c *fiber.Ctx) error {
	id, ok := statementID(c)
	if !ok {
		return badRequest(c, "id must be a positive integer")
	}

	deleted, err := s.kb.DeleteStatement(c.UserContext(), id)
	if err != nil {
		return s.fail(c, err)
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "statement not found"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleChunkStatement derives chunks for an existing statement. With
// replace=true any existing chunks are replaced.
func (s *Server) handleChunkStatement(c *fiber.Ctx) error {
	id, ok := statementID(c)
	if !ok {
		return badRequest(c, "id must be a positive integer")
	}

	if c.QueryBool("replace") {
		res, err := s.kb.Rechunk(c.UserContext(), id)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(res)
	}

	res, err := s.kb.InsertChunksForStatement(c.UserContext(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func statementID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil && id > 0
}

func createdStatus(isNew bool) int {
	if isNew {
		return fiber.StatusCreated
	}
	return fiber.StatusOK
}
