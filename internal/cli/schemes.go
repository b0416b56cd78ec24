package cli

import (
	"fmt"
	"io"

	"github.com/harun/plughost/pkg/capability"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var schemesCmd = &cobra.Command{
	Use:   "schemes",
	Short: "List the URL scheme protocols declared by plugins",
	Args:  cobra.NoArgs,
	RunE:  runSchemes,
}

func init() {
	rootCmd.AddCommand(schemesCmd)
}

func runSchemes(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	protocols, err := rt.index.Protocols()
	if err != nil {
		return err
	}
	standard, err := capability.NewRegistrar(rt.index, nil, rt.logger).StandardSchemes()
	if err != nil {
		return err
	}

	renderProtocols(cmd.OutOrStdout(), protocols, standard)
	return nil
}

func renderProtocols(w io.Writer, protocols []*capability.ProtocolDescriptor, standard []string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Scheme", "Standard", "Internal"})
	for _, p := range protocols {
		t.AppendRow(table.Row{p.Scheme, p.IsStandardURL, p.IsInternal})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()

	fmt.Fprintf(w, "\nStandard schemes: %v\n", standard)
}
