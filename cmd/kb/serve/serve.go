// Package servecmder provides the serve command, which runs the kb API
// server with its MCP endpoint.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kb/api"
	"github.com/papercomputeco/kb/api/mcp"
	"github.com/papercomputeco/kb/pkg/cliui"
	"github.com/papercomputeco/kb/pkg/config"
	"github.com/papercomputeco/kb/pkg/kb"
	"github.com/papercomputeco/kb/pkg/logger"
)

type serveCommander struct {
	cfg           *config.Config
	searchTimeout time.Duration
	noMCP         bool
	logFile       string
	debug         bool
	logger        *slog.Logger
}

const serveLongDesc string = `Run the kb API server.

Serves the HTTP API under /v1 and an MCP endpoint at /mcp exposing the
search and select_statements tools. Statements posted with ?async=true are
ingested by a background worker pool.

Storage, embedding, vector store and event settings come from flags, KB_*
environment variables and .kb/config.toml, in that order.

Examples:
  kb serve
  kb serve --listen :9000 --storage-provider postgres --postgres postgres://...
  kb serve --embedding-provider none`

const serveShortDesc string = "Run the kb API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadForCommand(cmd, config.StorageFlags, config.ServeFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddFlags(cmd, config.StorageFlags, config.StorageFlagKeys)
	config.AddFlags(cmd, config.ServeFlags, config.ServeFlagKeys)
	cmd.Flags().DurationVar(&cmder.searchTimeout, "search-timeout", 10*time.Second, "Deadline for a single search request (0 disables)")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Disable the /mcp endpoint")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.logger = cliui.NewLogger(c.debug)
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		c.logger = logger.Multi(c.logger, logger.New(
			logger.WithJSON(true),
			logger.WithSource(true),
			logger.WithDebug(c.debug),
			logger.WithWriter(f),
		))
	}

	svc, err := kb.Open(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			c.logger.Error("closing knowledge base", "error", err)
		}
	}()

	mcpServer, err := mcp.NewServer(mcp.Config{
		Service: svc,
		Noop:    c.noMCP,
		Logger:  c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server := api.NewServer(api.Config{
		ListenAddr:    c.cfg.API.Listen,
		SearchTimeout: c.searchTimeout,
		MCPHandler:    mcpServer.Handler(),
	}, svc, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		c.logger.Info("context done, shutting down")
	}

	return server.Shutdown()
}
