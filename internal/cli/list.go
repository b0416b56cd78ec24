package cli

import (
	"io"
	"sort"

	"github.com/harun/plughost/pkg/plugin"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered plugins",
	Long: `List every plugin found in the plugin directory together with the
metadata from its package.json. Plugins that failed to load are listed
with their error.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	renderPlugins(cmd.OutOrStdout(), rt.discoverer.Registry().All(), rt.discovery.Result)
	return nil
}

func renderPlugins(w io.Writer, records []*plugin.Record, result plugin.LoadResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Plugin", "Version", "Author", "Status", "Description"})
	for _, r := range records {
		t.AppendRow(table.Row{r.Name, r.Metadata.Version, r.Metadata.Author, r.Metadata.Status, r.Metadata.Description})
	}

	failed := append([]string(nil), result.Failed...)
	sort.Strings(failed)
	for _, name := range failed {
		t.AppendRow(table.Row{name, "", "", "failed", result.Errors[name].Error()})
	}

	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
