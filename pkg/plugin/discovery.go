package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harun/plughost/internal/metrics"
	"github.com/harun/plughost/pkg/capability"
	"github.com/rs/zerolog"
)

// DefaultPrefix selects plugin directories by name
const DefaultPrefix = "beaker-plugin-"

// LoadResult summarizes one discovery run
type LoadResult struct {
	Loaded []string
	Failed []string
	Errors map[string]error
}

// DiscoveryResult is the outcome of Discover
type DiscoveryResult struct {
	// Modules holds every registered module in load order
	Modules []*capability.Module
	// Metadata is keyed by plugin name
	Metadata map[string]Metadata
	Result   LoadResult
}

// Discoverer finds plugins in a directory and loads them
type Discoverer struct {
	logger        zerolog.Logger
	loader        ModuleLoader
	metadata      *MetadataLoader
	registry      *Registry
	metrics       *metrics.Metrics
	prefix        string
	entryManifest string
}

// DiscovererOption configures a Discoverer
type DiscovererOption func(*Discoverer)

// WithPrefix sets the plugin name prefix
func WithPrefix(prefix string) DiscovererOption {
	return func(d *Discoverer) { d.prefix = prefix }
}

// WithEntryManifest sets the entry manifest file name; empty disables it
func WithEntryManifest(name string) DiscovererOption {
	return func(d *Discoverer) { d.entryManifest = name }
}

// WithDiscoveryMetrics records load outcomes on m
func WithDiscoveryMetrics(m *metrics.Metrics) DiscovererOption {
	return func(d *Discoverer) { d.metrics = m }
}

// NewDiscoverer creates a new plugin discoverer
func NewDiscoverer(loader ModuleLoader, logger zerolog.Logger, opts ...DiscovererOption) *Discoverer {
	d := &Discoverer{
		logger:        logger.With().Str("component", "plugin-discovery").Logger(),
		loader:        loader,
		metadata:      NewMetadataLoader(logger),
		registry:      NewRegistry(),
		prefix:        DefaultPrefix,
		entryManifest: DefaultEntryManifest,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry holding the loaded plugins
func (d *Discoverer) Registry() *Registry {
	return d.registry
}

// Register adds a module without touching the filesystem. A nil metadata
// records the fallback.
func (d *Discoverer) Register(name string, module *capability.Module, metadata *Metadata) error {
	meta := FallbackMetadata(name)
	if metadata != nil {
		meta = *metadata
		meta.Status = StatusInstalled
	}

	if err := d.registry.Register(&Record{Name: name, Module: module, Metadata: meta}); err != nil {
		return err
	}
	d.metrics.PluginLoaded()
	return nil
}

// Discover loads every plugin in dir. A failing plugin is logged, recorded
// in the load result and skipped.
func (d *Discoverer) Discover(ctx context.Context, dir string) (*DiscoveryResult, error) {
	candidates, err := d.Candidates(dir)
	if err != nil {
		return nil, err
	}

	result := LoadResult{Errors: make(map[string]error)}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := d.loadOne(ctx, c); err != nil {
			d.logger.Warn().
				Err(err).
				Str("plugin", c.Name).
				Msg("Failed to load plugin")
			result.Failed = append(result.Failed, c.Name)
			result.Errors[c.Name] = err
			d.metrics.PluginLoadFailed()
			continue
		}

		result.Loaded = append(result.Loaded, c.Name)
		d.metrics.PluginLoaded()
	}

	d.logger.Info().
		Str("dir", dir).
		Int("loaded", len(result.Loaded)).
		Int("failed", len(result.Failed)).
		Msg("Plugin discovery completed")

	return &DiscoveryResult{
		Modules:  d.registry.Modules(),
		Metadata: d.registry.Metadata(),
		Result:   result,
	}, nil
}

func (d *Discoverer) loadOne(ctx context.Context, c Candidate) error {
	if _, exists := d.registry.Get(c.Name); exists {
		return fmt.Errorf("plugin %s already registered", c.Name)
	}

	module, err := d.loader.Load(ctx, c.Name, c.Dir)
	if err != nil {
		return err
	}
	if module == nil {
		return fmt.Errorf("loader returned no module")
	}

	return d.registry.Register(&Record{
		Name:     c.Name,
		Dir:      c.Dir,
		Module:   module,
		Metadata: d.metadata.Load(c.Name, c.Dir),
	})
}

// Candidates lists the plugins Discover would load from dir, in order.
// An entry manifest in dir takes precedence over the directory scan.
func (d *Discoverer) Candidates(dir string) ([]Candidate, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			d.logger.Debug().Str("dir", dir).Msg("Plugin directory does not exist, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	if d.entryManifest != "" {
		manifest, err := ReadEntryManifest(filepath.Join(dir, d.entryManifest))
		switch {
		case err == nil:
			return d.filter(manifest.Candidates(dir)), nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	return d.scan(dir)
}

func (d *Discoverer) scan(dir string) ([]Candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var candidates []Candidate
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), d.prefix) {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		// follows symlinks, which package managers use for linked plugins
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			d.logger.Debug().Str("path", path).Msg("Not a plugin directory, skipping")
			continue
		}

		candidates = append(candidates, Candidate{Name: entry.Name(), Dir: path})
	}
	return candidates, nil
}

func (d *Discoverer) filter(candidates []Candidate) []Candidate {
	kept := candidates[:0]
	for _, c := range candidates {
		if !strings.HasPrefix(c.Name, d.prefix) {
			d.logger.Warn().
				Str("plugin", c.Name).
				Str("prefix", d.prefix).
				Msg("Entry manifest plugin does not match prefix, skipping")
			continue
		}
		kept = append(kept, c)
	}
	return kept
}
