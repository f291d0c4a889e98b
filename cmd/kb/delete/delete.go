// Package deletecmder provides the delete command, which removes statements
// and their chunks.
package deletecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kb/pkg/cliui"
	"github.com/papercomputeco/kb/pkg/config"
	"github.com/papercomputeco/kb/pkg/kb"
)

// Deleter removes a statement with its chunks.
type Deleter interface {
	DeleteStatement(ctx context.Context, statementID int64) (bool, error)
}

type deleteCommander struct {
	ids   []int64
	debug bool

	cfg *config.Config
	out io.Writer
}

const deleteLongDesc string = `Delete statements by id.

Each statement is removed together with its chunks in one transaction.
Missing ids are reported but do not stop the remaining deletes.

Examples:
  kb delete 42
  kb search "deprecated" --quiet | xargs kb delete`

const deleteShortDesc string = "Delete statements and their chunks"

func NewDeleteCmd() *cobra.Command {
	cmder := &deleteCommander{}

	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			cmder.ids = ids

			cfg, err := config.LoadForCommand(cmd, config.StorageFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			svc, err := kb.Open(ctx, cmder.cfg, cliui.NewLogger(cmder.debug))
			if err != nil {
				return err
			}
			defer svc.Close()

			return cmder.run(ctx, svc)
		},
	}

	config.AddFlags(cmd, config.StorageFlags, config.StorageFlagKeys)

	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid statement id: %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ErrSomeMissing is returned when at least one id did not exist.
var ErrSomeMissing = errors.New("some statements were not found")

func (c *deleteCommander) run(ctx context.Context, d Deleter) error {
	missing := false
	for _, id := range c.ids {
		deleted, err := d.DeleteStatement(ctx, id)
		if err != nil {
			fmt.Fprintf(c.out, "  %s %d  %s\n", cliui.FailMark, id, err)
			return err
		}
		if !deleted {
			missing = true
			fmt.Fprintf(c.out, "  %s %d  %s\n", cliui.FailMark, id, cliui.DimStyle.Render("not found"))
			continue
		}
		fmt.Fprintf(c.out, "  %s %d  %s\n", cliui.SuccessMark, id, cliui.DimStyle.Render("deleted"))
	}

	if missing {
		return ErrSomeMissing
	}
	return nil
}
