package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/harun/plughost/pkg/capability"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var outputFormat string

var manifestsCmd = &cobra.Command{
	Use:   "manifests <scheme>",
	Short: "Show the web API manifests attributed to a scheme",
	Long: `Show every web API attributed to the given scheme whose visibility
matches the scheme's protocol, grouped by the channel each function is
exported on. A trailing colon on the scheme is ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: runManifests,
}

func init() {
	manifestsCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, yaml)")
	rootCmd.AddCommand(manifestsCmd)
}

func runManifests(cmd *cobra.Command, args []string) error {
	if outputFormat != "table" && outputFormat != "yaml" {
		return fmt.Errorf("invalid output format: %s (must be: table, yaml)", outputFormat)
	}

	rt, err := newRuntime(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	manifests, err := capability.NewLookup(rt.index).GetWebAPIManifests(args[0])
	if err != nil {
		return err
	}

	doc := describeManifests(manifests)
	if outputFormat == "yaml" {
		return encodeManifestsAsYAML(cmd.OutOrStdout(), doc)
	}
	renderManifests(cmd.OutOrStdout(), doc)
	return nil
}

// describeManifests maps API name to channel to function to method type,
// leaving out empty channels
func describeManifests(manifests map[string]capability.Manifest) map[string]map[string]map[string]capability.MethodType {
	doc := make(map[string]map[string]map[string]capability.MethodType, len(manifests))
	for name, manifest := range manifests {
		channels := capability.DescribeManifest(&capability.WebAPIDescriptor{Name: name, Manifest: manifest})
		for channel, fns := range channels {
			if len(fns) == 0 {
				delete(channels, channel)
			}
		}
		doc[name] = channels
	}
	return doc
}

func encodeManifestsAsYAML(w io.Writer, doc map[string]map[string]map[string]capability.MethodType) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode manifests: %w", err)
	}
	return enc.Close()
}

func renderManifests(w io.Writer, doc map[string]map[string]map[string]capability.MethodType) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"API", "Channel", "Function", "Type"})

	for _, api := range sortedKeys(doc) {
		channels := doc[api]
		for _, channel := range sortedKeys(channels) {
			fns := channels[channel]
			for _, fn := range sortedKeys(fns) {
				t.AppendRow(table.Row{api, channel, fn, fns[fn]})
			}
		}
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
		{Number: 2, AutoMerge: true},
	})
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
