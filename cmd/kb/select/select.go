// Package selectcmder provides the select command, which lists statements
// matching a subject/predicate/object/context pattern.
package selectcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kb/pkg/cliui"
	"github.com/papercomputeco/kb/pkg/config"
	"github.com/papercomputeco/kb/pkg/kb"
	"github.com/papercomputeco/kb/pkg/statement"
)

// Selector lists statements by pattern.
type Selector interface {
	SelectStatements(ctx context.Context, p statement.Pattern) ([]statement.Statement, error)
}

type selectCommander struct {
	pattern statement.Pattern
	jsonOut bool
	debug   bool

	cfg *config.Config
	out io.Writer
}

const selectLongDesc string = `Select statements by exact match.

Every flag that is set must match; unset flags match anything. With no flags
every statement is listed. The predicate "a" is expanded to rdf:type.

Examples:
  kb select --subject http://example.org/ai
  kb select --predicate a --object http://example.org/Fruit
  kb select --context http://example.org/graph --json`

const selectShortDesc string = "Select statements by pattern"

func NewSelectCmd() *cobra.Command {
	cmder := &selectCommander{}

	cmd := &cobra.Command{
		Use:   "select",
		Short: selectShortDesc,
		Long:  selectLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
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
	cmd.Flags().StringVar(&cmder.pattern.Subject, "subject", "", "Match this subject")
	cmd.Flags().StringVar(&cmder.pattern.Predicate, "predicate", "", "Match this predicate")
	cmd.Flags().StringVar(&cmder.pattern.Object, "object", "", "Match this object")
	cmd.Flags().StringVar(&cmder.pattern.Context, "context", "", "Match this named graph")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Output statements as JSON")

	return cmd
}

func (c *selectCommander) run(ctx context.Context, s Selector) error {
	found, err := s.SelectStatements(ctx, c.pattern.Normalize())
	if err != nil {
		return err
	}

	if c.jsonOut {
		if found == nil {
			found = []statement.Statement{}
		}
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	}

	if len(found) == 0 {
		fmt.Fprintln(c.out, "No statements found.")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	for _, st := range found {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.ID, st.Subject, st.Predicate, st.Object)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, cliui.DimStyle.Render(fmt.Sprintf("%d statements", len(found))))
	return nil
}
