package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/harun/plughost/internal/config"
	"github.com/harun/plughost/internal/logger"
	"github.com/harun/plughost/internal/metrics"
	"github.com/harun/plughost/pkg/capability"
	"github.com/harun/plughost/pkg/plugin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// builtins holds in-process plugins compiled into the binary
var builtins = plugin.NewCatalog()

// RegisterBuiltin makes an in-process plugin available to the catalog loader.
// It must be called before Execute.
func RegisterBuiltin(name string, factory plugin.Factory) error {
	return builtins.Register(name, factory)
}

// runtime is the wiring shared by every command that loads plugins
type runtime struct {
	cfg        *config.Config
	log        *logger.Logger
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	process    *plugin.ProcessLoader
	discoverer *plugin.Discoverer
	discovery  *plugin.DiscoveryResult
	index      *capability.Index
}

// loadConfig reads the config file and applies command line overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, err
	}

	if f := cmd.Flag("log-level"); f != nil && f.Changed {
		cfg.Logging.Level = logLevel
	}
	if pluginsDir != "" {
		cfg.Plugins.Dir = pluginsDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// newRuntime loads the config, discovers plugins and builds the capability index
func newRuntime(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:     cfg,
		log:     log,
		logger:  log.GetZerolog(),
		metrics: metrics.NewMetrics(),
	}

	loader := rt.moduleLoader()
	rt.discoverer = plugin.NewDiscoverer(loader, rt.logger,
		plugin.WithPrefix(cfg.Plugins.Prefix),
		plugin.WithEntryManifest(cfg.Plugins.EntryManifest),
		plugin.WithDiscoveryMetrics(rt.metrics),
	)

	rt.discovery, err = rt.discoverer.Discover(ctx, cfg.Plugins.Dir)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to discover plugins: %w", err)
	}

	policy, err := capability.ParseConflictPolicy(cfg.Capabilities.ConflictPolicy)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.index = capability.NewIndex(rt.discoverer.Registry(), rt.logger,
		capability.WithConflictPolicy(policy),
		capability.WithMetrics(rt.metrics),
	)

	return rt, nil
}

func (rt *runtime) moduleLoader() plugin.ModuleLoader {
	switch rt.cfg.Plugins.Loader {
	case "catalog":
		return builtins
	case "process":
		rt.process = plugin.NewProcessLoader(rt.logger)
		return rt.process
	default:
		rt.process = plugin.NewProcessLoader(rt.logger)
		return plugin.NewChainLoader(builtins, rt.process)
	}
}

// Close stops plugin processes and closes the log file
func (rt *runtime) Close() {
	if rt.process != nil {
		if err := rt.process.Close(); err != nil {
			rt.logger.Warn().Err(err).Msg("Failed to stop plugin processes")
		}
	}
	if err := rt.log.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close logger: %v\n", err)
	}
}
