package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harun/plughost/pkg/plugin"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the plugin directory for added and removed plugins",
	Long: `Watch the plugin directory and print a line whenever a plugin is added
or removed. Loaded plugins are not reloaded; restart the host to pick up
changes.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	watcher, err := plugin.NewWatcher(cfg.Plugins.Dir, cfg.Plugins.Prefix, log.GetZerolog())
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s\n", cfg.Plugins.Dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-watcher.Changes():
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "%s\t%s\n", change.Kind, change.Name)
		}
	}
}
