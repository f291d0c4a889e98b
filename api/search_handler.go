package api

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/kb/pkg/search"
	"github.com/papercomputeco/kb/pkg/statement"
)

// handleSearchEndpoint handles GET and POST /v1/search requests.
// GET query parameters:
//   - query (required): the search query text
//   - limit (optional): number of results to return
//   - k (optional): RRF constant
//
// POST takes a JSON search.Query, which may also carry a query vector.
func (s *Server) handleSearchEndpoint(c *fiber.Ctx) error {
	var q search.Query
	if c.Method() == fiber.MethodPost {
		if err := c.BodyParser(&q); err != nil {
			return badRequest(c, "invalid search body")
		}
	} else {
		q.Text = c.Query("query")
		if q.Text == "" {
			return badRequest(c, "query parameter is required")
		}
		if v := c.Query("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil || limit <= 0 {
				return badRequest(c, "limit must be a positive integer")
			}
			q.Limit = limit
		}
		if v := c.Query("k"); v != "" {
			k, err := strconv.ParseFloat(v, 64)
			if err != nil || k <= 0 {
				return badRequest(c, "k must be a positive number")
			}
			q.K = k
		}
	}
	if q.Limit < 0 || q.K < 0 {
		return badRequest(c, "limit and k must not be negative")
	}

	ctx := c.UserContext()
	if s.config.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.SearchTimeout)
		defer cancel()
	}

	resp, err := s.kb.Search(ctx, q)
	if err != nil {
		return s.fail(c, err)
	}
	if resp.Results == nil {
		resp.Results = []statement.SearchResult{}
	}
	return c.JSON(resp)
}
