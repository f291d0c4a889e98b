// Package api provides the HTTP API server for ingesting, browsing and
// searching the knowledge base.
package api

import (
	"net/http"
	"time"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// SearchTimeout bounds a single search request. Zero means no deadline
	// beyond the client connection.
	SearchTimeout time.Duration

	// MCPHandler, when set, is mounted at /mcp.
	MCPHandler http.Handler
}
