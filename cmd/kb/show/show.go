// Package showcmder provides the show command, which prints one statement
// with its chunks.
package showcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kb/pkg/cliui"
	"github.com/papercomputeco/kb/pkg/config"
	"github.com/papercomputeco/kb/pkg/kb"
	"github.com/papercomputeco/kb/pkg/statement"
)

// Getter reads a statement and its chunks.
type Getter interface {
	GetStatement(ctx context.Context, id int64) (*statement.Statement, error)
	Chunks(ctx context.Context, statementID int64) ([]statement.Chunk, error)
}

// Details is the JSON form of a shown statement.
type Details struct {
	Statement *statement.Statement `json:"statement"`
	Chunks    []statement.Chunk    `json:"chunks"`
}

type showCommander struct {
	id      int64
	jsonOut bool
	debug   bool

	cfg *config.Config
	out io.Writer
}

const showLongDesc string = `Show a statement and the chunks derived from it.

Output is rendered markdown on a terminal and plain markdown otherwise.
Use --json for machine-readable output including chunk embeddings.

Examples:
  kb show 42
  kb show 42 --json`

const showShortDesc string = "Show a statement and its chunks"

func NewShowCmd() *cobra.Command {
	cmder := &showCommander{}

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid statement id: %q", args[0])
			}
			cmder.id = id

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
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Output as JSON")

	return cmd
}

func (c *showCommander) run(ctx context.Context, g Getter) error {
	st, err := g.GetStatement(ctx, c.id)
	if err != nil {
		return err
	}
	chunks, err := g.Chunks(ctx, c.id)
	if err != nil {
		return err
	}

	if c.jsonOut {
		if chunks == nil {
			chunks = []statement.Chunk{}
		}
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(Details{Statement: st, Chunks: chunks})
	}

	md := markdown(st, chunks)
	if f, ok := c.out.(*os.File); ok && cliui.IsTerminal(f) {
		// RenderMarkdown hands back the raw text on failure.
		md, _ = cliui.RenderMarkdown(md)
	}
	_, err = io.WriteString(c.out, md)
	return err
}

func markdown(st *statement.Statement, chunks []statement.Chunk) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Statement %d\n\n", st.ID)
	fmt.Fprintf(&b, "| field | value |\n|---|---|\n")
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "| %s | `%s` |\n", k, strings.ReplaceAll(v, "|", `\|`))
		}
	}
	row("subject", st.Subject)
	row("predicate", st.Predicate)
	row("object", st.Object)
	row("context", st.Context)
	row("term type", string(st.TermType))
	row("language", st.Language)
	row("datatype", st.Datatype)

	fmt.Fprintf(&b, "\n## Chunks (%d)\n\n", len(chunks))
	if len(chunks) == 0 {
		b.WriteString("_none: insert chunks with `POST /v1/statements/:id/chunks`_\n")
		return b.String()
	}
	for _, ch := range chunks {
		embedded := "not embedded"
		if len(ch.Embedding) > 0 {
			embedded = fmt.Sprintf("%d dims", len(ch.Embedding))
		}
		fmt.Fprintf(&b, "- **%d** (%s): %s\n", ch.ID, embedded, ch.Content)
	}
	return b.String()
}
