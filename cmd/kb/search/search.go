// Package searchcmder provides the search command for hybrid search over the
// knowledge base.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kb/pkg/cliui"
	"github.com/papercomputeco/kb/pkg/config"
	"github.com/papercomputeco/kb/pkg/kb"
	"github.com/papercomputeco/kb/pkg/search"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/utils"
)

// Searcher runs a hybrid search in process.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Response, error)
}

type searchCommander struct {
	query   string
	limit   uint
	quiet   bool
	jsonOut bool
	local   bool
	debug   bool

	cfg *config.Config
	out io.Writer
}

const searchLongDesc string = `Search the knowledge base.

The query is matched lexically against statement text and, when an embedding
provider is configured, semantically against chunk embeddings. The two rankings
are fused with reciprocal rank fusion.

By default the query is sent to a running kb server (see "kb serve"). Use
--local to open the configured store directly instead.

Use --quiet to output only statement ids, one per line, for piping into
"kb show" or "kb delete".

Examples:
  kb search "machine learning"
  kb search "machine learning" --limit 20
  kb search "banana" --local --embedding-provider none
  kb search "deprecated" --quiet | xargs -n1 kb delete`

const searchShortDesc string = "Search the knowledge base"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadForCommand(cmd, config.StorageFlags, config.ClientFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			cmder.limit = cfg.Search.Limit
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			cmder.out = cmd.OutOrStdout()
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context())
		},
	}

	config.AddFlags(cmd, config.ClientFlags, config.ClientFlagKeys)
	config.AddFlags(cmd, config.StorageFlags, config.StorageFlagKeys)
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only statement ids, one per line")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Output the raw search response as JSON")
	cmd.Flags().BoolVar(&cmder.local, "local", false, "Search the configured store directly instead of a server")

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		resp *search.Response
		err  error
	)
	if c.local {
		resp, err = c.searchLocal(ctx)
	} else {
		resp, err = SearchAPI(ctx, c.cfg.Client.APITarget, c.query, c.limit)
	}
	if err != nil {
		return err
	}

	return c.render(resp)
}

func (c *searchCommander) searchLocal(ctx context.Context) (*search.Response, error) {
	var svc *kb.Service
	err := cliui.StepIfTerminal(os.Stderr, "Opening knowledge base", func() (err error) {
		svc, err = kb.Open(ctx, c.cfg, cliui.NewLogger(c.debug))
		return err
	})
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	return searchWith(ctx, svc, c.query, c.limit)
}

func searchWith(ctx context.Context, s Searcher, query string, limit uint) (*search.Response, error) {
	return s.Search(ctx, search.Query{Text: query, Limit: int(limit)})
}

func (c *searchCommander) render(resp *search.Response) error {
	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if c.quiet {
		for _, r := range resp.Results {
			fmt.Fprintln(c.out, r.ID)
		}
		return nil
	}

	for _, w := range resp.Warnings {
		fmt.Fprintf(c.out, "%s %s\n", cliui.WarnStyle.Render("warning:"), w)
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(c.out, "No results found.")
		return nil
	}

	fmt.Fprintf(c.out, "\n%s %s\n",
		cliui.HeaderStyle.Render("Search results for:"),
		cliui.KeyStyle.Render(strconv.Quote(resp.Query)),
	)
	fmt.Fprintf(c.out, "%s\n\n", cliui.DimStyle.Render(fmt.Sprintf(
		"%d lexical, %d vector candidates", resp.LexicalCandidates, resp.VectorCandidates)))

	for i, r := range resp.Results {
		printResult(c.out, i+1, r)
	}
	return nil
}

func printResult(w io.Writer, rank int, r statement.SearchResult) {
	fmt.Fprintf(w, "  %s  %s  %s\n",
		cliui.RankStyle.Render(fmt.Sprintf("#%d", rank)),
		cliui.DimStyle.Render(fmt.Sprintf("score: %.4f", r.Score)),
		cliui.KeyStyle.Render(fmt.Sprintf("id %d", r.ID)),
	)
	fmt.Fprintf(w, "  %s\n", cliui.ValueStyle.Render(r.Subject))
	fmt.Fprintf(w, "    %s %s\n\n",
		cliui.DimStyle.Render(utils.Truncate(r.Predicate, 60)),
		cliui.ValueStyle.Render(utils.Truncate(r.Object, 80)),
	)
}

// SearchAPI calls the search endpoint of a kb server and returns the parsed
// response.
func SearchAPI(ctx context.Context, apiTarget, query string, limit uint) (*search.Response, error) {
	searchURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	searchURL.Path = strings.TrimSuffix(searchURL.Path, "/") + "/v1/search"
	q := searchURL.Query()
	q.Set("query", query)
	if limit > 0 {
		q.Set("limit", strconv.FormatUint(uint64(limit), 10))
	}
	searchURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to kb API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output search.Response
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &output, nil
}
