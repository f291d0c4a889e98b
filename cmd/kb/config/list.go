package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kb/pkg/cliui"
	"github.com/papercomputeco/kb/pkg/config"
)

const listLongDesc string = `List all configuration values.

Prints every key grouped by its config.toml section, with the value
from the config file or the default when the key is unset.

Examples:
  kb config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	printTarget(w, cfger.GetTarget())

	keys := config.ValidConfigKeys()
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	section := ""
	for _, key := range keys {
		if s, _, _ := strings.Cut(key, "."); s != section {
			if section != "" {
				fmt.Fprintln(w)
			}
			section = s
			fmt.Fprintf(w, "  %s\n", cliui.HeaderStyle.Render("["+s+"]"))
		}

		value, err := cfg.Value(key)
		if err != nil {
			return err
		}
		rendered := cliui.ValueStyle.Render(value)
		if value == "" {
			rendered = cliui.DimStyle.Render("<not set>")
		}
		fmt.Fprintf(w, "    %s  %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-*s", width, key)), rendered)
	}
	fmt.Fprintln(w)

	return nil
}
