// Package ingestcmder provides the ingest command, which loads statements
// from a JSONL file and can follow the file as it grows.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/kb/pkg/cliui"
	"github.com/papercomputeco/kb/pkg/config"
	"github.com/papercomputeco/kb/pkg/dotdir"
	"github.com/papercomputeco/kb/pkg/kb"
)

type ingestCommander struct {
	path      string
	configDir string
	watch     bool
	fromStart bool
	debug     bool

	cfg    *config.Config
	ddm    *dotdir.Manager
	out    io.Writer
	logger *slog.Logger
}

const ingestLongDesc string = `Ingest statements from a JSONL file.

Each line is one statement object:
  {"subject": "http://example.org/ai", "predicate": "a", "object": "http://example.org/Field"}
  {"subject": "http://example.org/ai", "predicate": "http://www.w3.org/2000/01/rdf-schema#label",
   "object": "Artificial Intelligence", "term_type": "Literal", "language": "en"}

Every statement is stored with its derived chunks in one transaction.
Blank lines and lines starting with # are ignored; malformed lines are
logged and skipped.

Progress is remembered per file in .kb/ingest.json, so re-running picks up
where the last run stopped. Use --from-start to ingest the whole file again
(duplicates are detected and not re-embedded). With --watch the command
keeps running and ingests lines as they are appended.

Examples:
  kb ingest facts.jsonl
  kb ingest facts.jsonl --watch
  kb ingest facts.jsonl --from-start --embedding-provider none`

const ingestShortDesc string = "Ingest statements from a JSONL file"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{ddm: dotdir.NewManager()}

	cmd := &cobra.Command{
		Use:   "ingest <file.jsonl>",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadForCommand(cmd, config.StorageFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.path, err = filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving %s: %w", args[0], err)
			}
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.out = cmd.OutOrStdout()
			cmder.logger = cliui.NewLogger(cmder.debug)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var svc *kb.Service
			err = cliui.StepIfTerminal(cmd.ErrOrStderr(), "Opening knowledge base", func() error {
				svc, err = kb.Open(ctx, cmder.cfg, cmder.logger)
				return err
			})
			if err != nil {
				return err
			}
			defer svc.Close()

			return cmder.run(ctx, svc)
		},
	}

	config.AddFlags(cmd, config.StorageFlags, config.StorageFlagKeys)
	cmd.Flags().BoolVar(&cmder.watch, "watch", false, "Keep running and ingest appended lines")
	cmd.Flags().BoolVar(&cmder.fromStart, "from-start", false, "Ignore the saved cursor and ingest the whole file")

	return cmd
}

func (c *ingestCommander) run(ctx context.Context, ins Inserter) error {
	if c.fromStart {
		if err := c.ddm.ClearCursor(c.path, c.configDir); err != nil {
			return err
		}
	}

	if err := c.pass(ctx, ins, !c.watch); err != nil {
		return err
	}
	if !c.watch {
		return nil
	}
	return c.follow(ctx, ins)
}

// pass ingests everything after the saved cursor and advances it.
func (c *ingestCommander) pass(ctx context.Context, ins Inserter, final bool) error {
	cursor, err := c.ddm.LoadCursor(c.path, c.configDir)
	if err != nil {
		return err
	}
	if cursor == nil {
		cursor = &dotdir.Cursor{}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.path, err)
	}
	if info.Size() < cursor.Offset {
		c.logger.Info("file shrank, starting over", "path", c.path, "offset", cursor.Offset, "size", info.Size())
		cursor = &dotdir.Cursor{}
	}

	start := time.Now()
	sum, ingestErr := ingestFrom(ctx, ins, c.path, cursor.Offset, final, c.logger)
	if sum.Offset != cursor.Offset {
		next := &dotdir.Cursor{Offset: sum.Offset, Lines: cursor.Lines + int64(sum.Lines)}
		if err := c.ddm.SaveCursor(c.path, next, c.configDir); err != nil {
			return errors.Join(ingestErr, err)
		}
	}

	if sum.Lines > 0 || !c.watch {
		fmt.Fprintf(c.out, "  %s %s  %d new, %d duplicate, %d skipped, %d chunks embedded %s\n",
			cliui.Mark(ingestErr),
			cliui.KeyStyle.Render(filepath.Base(c.path)),
			sum.Inserted, sum.Duplicates, sum.Skipped, sum.Embedded,
			cliui.StepStyle.Render("("+cliui.FormatDuration(time.Since(start))+")"),
		)
	}
	return ingestErr
}

// follow re-runs pass whenever the file is written or recreated. The parent
// directory is watched so editors that replace the file are followed too.
func (c *ingestCommander) follow(ctx context.Context, ins Inserter) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(c.path), err)
	}
	c.logger.Info("watching for new statements", "path", c.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != c.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := c.pass(ctx, ins, false); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("ingest pass failed", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watcher error", "error", err)
		}
	}
}
