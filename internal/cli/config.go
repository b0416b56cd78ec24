package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harun/plughost/internal/config"
	"github.com/harun/plughost/pkg/plugin"
	"github.com/spf13/cobra"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the plughost configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Long: `Write the default configuration file and create the plugin directory.
When the plugin directory has no entry manifest, one is written that lists
the plugins built into this binary.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	path := loader.GetConfigPath()

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	if err := loader.Save(config.DefaultConfig()); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s\n", path)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Plugins.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create plugin directory: %w", err)
	}

	if cfg.Plugins.EntryManifest == "" {
		return nil
	}
	manifestPath := filepath.Join(cfg.Plugins.Dir, cfg.Plugins.EntryManifest)
	if _, err := os.Stat(manifestPath); !errors.Is(err, os.ErrNotExist) {
		return err
	}

	names := builtins.Names()
	if len(names) == 0 {
		return nil
	}
	manifest := &plugin.EntryManifest{}
	for _, name := range names {
		manifest.Plugins = append(manifest.Plugins, plugin.Entry{Name: name})
	}
	if err := plugin.WriteEntryManifest(manifestPath, manifest); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s with %d built-in plugin(s)\n", manifestPath, len(manifest.Plugins))
	return nil
}
