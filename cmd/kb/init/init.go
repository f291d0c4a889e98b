// Package initcmder provides the init command for initializing a local .kb
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kb/pkg/cliui"
	"github.com/papercomputeco/kb/pkg/config"
)

const (
	dirName = ".kb"
)

const initLongDesc string = `Initialize a new .kb/ directory in the current working directory.

Creates a local .kb/ directory that takes precedence over the default
~/.kb/ directory for configuration, the SQLite database, ingest cursors
and the embedding cache.

Use --preset to write a config.toml for a deployment shape:
  local     SQLite with Ollama embeddings (default)
  offline   SQLite, lexical search only
  postgres  PostgreSQL with pgvector and Ollama embeddings
  cluster   PostgreSQL, Qdrant vectors and Kafka statement events

Examples:
  kb init
  kb init --preset offline`

const initShortDesc string = "Initialize a local .kb/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Write a config.toml for a named preset")
	_ = cmd.RegisterFlagCompletionFunc("preset", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runInit(w io.Writer, preset string) error {
	var cfg *config.Config
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
	case err == nil:
		return fmt.Errorf("%s exists and is not a directory", dir)
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .kb directory: %w", err)
		}
		fmt.Fprintf(w, "%s Initialized .kb directory: %s\n", cliui.SuccessMark, dir)
	default:
		return fmt.Errorf("checking .kb directory: %w", err)
	}

	if cfg == nil {
		return nil
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s Wrote %s preset to %s\n", cliui.SuccessMark, preset, cfger.GetTarget())
	return nil
}
