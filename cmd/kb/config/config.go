// Package configcmder provides the config command for managing persistent
// kb configuration stored in the .kb/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kb/pkg/config"
)

const configLongDesc string = `Manage persistent kb configuration.

Configuration is stored as config.toml in the .kb/ directory and provides
default values for command flags. CLI flags and KB_* environment variables
always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.sqlite_path, storage.libsql_path, storage.postgres_dsn,
  api.listen, client.api_target,
  vector_store.provider, vector_store.target, vector_store.collection,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  embedding.cache_path,
  search.limit, search.rrf_k, search.oversample,
  events.provider, events.brokers, events.topic,
  ingest.workers, ingest.queue_size, ingest.max_chunk_tokens

Use subcommands to get, set, or list configuration values:
  kb config set <key> <value>    Set a configuration value
  kb config get <key>            Get a configuration value
  kb config list                 List all configuration values

Examples:
  kb config set storage.provider postgres
  kb config set embedding.model nomic-embed-text
  kb config get search.rrf_k
  kb config list`

const configShortDesc string = "Manage persistent kb configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
