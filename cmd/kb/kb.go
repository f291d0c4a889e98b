// Package kbcmder is the root of the kb command tree.
package kbcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/kb/cmd/kb/config"
	deletecmder "github.com/papercomputeco/kb/cmd/kb/delete"
	ingestcmder "github.com/papercomputeco/kb/cmd/kb/ingest"
	initcmder "github.com/papercomputeco/kb/cmd/kb/init"
	searchcmder "github.com/papercomputeco/kb/cmd/kb/search"
	selectcmder "github.com/papercomputeco/kb/cmd/kb/select"
	servecmder "github.com/papercomputeco/kb/cmd/kb/serve"
	showcmder "github.com/papercomputeco/kb/cmd/kb/show"
	versioncmder "github.com/papercomputeco/kb/cmd/version"
)

const kbLongDesc string = `kb is a knowledge base of RDF statements with hybrid search.

Statements are stored with text chunks that are indexed both lexically and
by embedding. Searches fuse the two rankings with reciprocal rank fusion.

Get started:
  kb init                          Create a .kb/ directory here
  kb ingest statements.jsonl       Load statements from a JSONL file
  kb search "machine learning"     Search a running server
  kb serve                         Run the API and MCP server`

const kbShortDesc string = "kb - hybrid search knowledge base"

func NewKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "kb",
		Short:        kbShortDesc,
		Long:         kbLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .kb/ directory")

	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(selectcmder.NewSelectCmd())
	cmd.AddCommand(showcmder.NewShowCmd())
	cmd.AddCommand(deletecmder.NewDeleteCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
