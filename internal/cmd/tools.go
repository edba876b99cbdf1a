package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/dossier/internal/config"
	"github.com/Iron-Ham/dossier/internal/toolset"
)

var toolsCmd = &cobra.Command{
	Use:   "tools [pattern...]",
	Short: "List research tools or expand tool patterns",
	Long: `List the tools a run may enable.

With arguments, each pattern is expanded against the catalogue exactly as
--tools and run.enabled_tools are, and the selected names are printed.

Examples:
  dossier tools
  dossier tools 'rag_*' web_search`,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	catalog := toolset.FromNames(cfg.Tools.Catalog)
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		names, err := catalog.Select(args)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, t := range catalog {
		desc := t.Description
		if desc == "" {
			desc = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\n", t.Name, desc)
	}
	return tw.Flush()
}
