package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/ingest"
	"github.com/papercomputeco/kb/pkg/search"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/storage"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	var dim *index.DimensionMismatchError
	switch {
	case storage.IsNotFound(err):
		return fiber.StatusNotFound
	case errors.Is(err, ingest.ErrAlreadyChunked):
		return fiber.StatusConflict
	case errors.Is(err, statement.ErrMissingField),
		errors.Is(err, statement.ErrInvalidTermType),
		errors.Is(err, search.ErrEmptyQuery),
		errors.As(err, &dim):
		return fiber.StatusBadRequest
	case errors.Is(err, search.ErrDeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, storage.ErrCascadeUnsupported):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}
