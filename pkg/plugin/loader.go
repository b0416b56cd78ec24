package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/harun/plughost/pkg/capability"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"github.com/rs/zerolog"
)

// ErrNoEntryPoint is returned when a plugin has no executable to launch
var ErrNoEntryPoint = errors.New("plugin has no entry point")

// ModuleLoader turns a plugin directory into a module handle
type ModuleLoader interface {
	Load(ctx context.Context, name, dir string) (*capability.Module, error)
}

// ProcessLoader runs plugins as separate processes over go-plugin net/rpc
type ProcessLoader struct {
	logger   zerolog.Logger
	metadata *MetadataLoader

	mu      sync.Mutex
	clients map[string]*plugin.Client
}

// NewProcessLoader creates a new process loader
func NewProcessLoader(logger zerolog.Logger) *ProcessLoader {
	return &ProcessLoader{
		logger:   logger.With().Str("component", "process-loader").Logger(),
		metadata: NewMetadataLoader(logger),
		clients:  make(map[string]*plugin.Client),
	}
}

// Load launches the plugin's main executable and converts its
// declarations into a module
func (l *ProcessLoader) Load(ctx context.Context, name, dir string) (*capability.Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := l.metadata.ReadEntryPoint(dir)
	if err != nil {
		return nil, err
	}

	// Check if plugin executable exists
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("plugin executable not found: %s", path)
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              exec.Command(path),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
		Logger:           l.pluginLogger(name),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to connect to plugin: %w", err)
	}

	raw, err := rpcClient.Dispense(ModulePluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense plugin: %w", err)
	}

	remote, ok := raw.(RemoteModule)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("unexpected plugin type %T", raw)
	}

	module, err := ModuleFromRemote(name, remote)
	if err != nil {
		client.Kill()
		return nil, err
	}

	l.mu.Lock()
	if old, exists := l.clients[name]; exists {
		old.Kill()
	}
	l.clients[name] = client
	l.mu.Unlock()

	l.logger.Info().
		Str("plugin", name).
		Str("path", path).
		Msg("Plugin process started")

	return module, nil
}

// pluginLogger routes go-plugin's own logging into the zerolog output.
// Plugin stderr is only surfaced at debug level.
func (l *ProcessLoader) pluginLogger(name string) hclog.Logger {
	level := hclog.Warn
	if l.logger.GetLevel() <= zerolog.DebugLevel {
		level = hclog.Debug
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:        name,
		Level:       level,
		Output:      l.logger.With().Str("plugin", name).Logger(),
		DisableTime: true,
	})
}

// Close kills every plugin process started by the loader
func (l *ProcessLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for name, client := range l.clients {
		client.Kill()
		l.logger.Debug().Str("plugin", name).Msg("Plugin process stopped")
	}
	clear(l.clients)
	return nil
}

// ModuleFromRemote converts a remote module's declarations into local
// descriptors whose routines call back into the plugin
func ModuleFromRemote(name string, remote RemoteModule) (*capability.Module, error) {
	desc, err := remote.Describe()
	if err != nil {
		return nil, fmt.Errorf("failed to describe plugin %s: %w", name, err)
	}

	protocols := make([]*capability.ProtocolDescriptor, 0, len(desc.Protocols))
	for _, p := range desc.Protocols {
		scheme := p.Scheme
		protocols = append(protocols, &capability.ProtocolDescriptor{
			Scheme:        scheme,
			IsStandardURL: p.IsStandardURL,
			IsInternal:    p.IsInternal,
			Register: func(ctx context.Context, m capability.Messenger) error {
				return remote.Register(ctx, scheme, m)
			},
		})
	}

	apis := make([]*capability.WebAPIDescriptor, 0, len(desc.WebAPIs))
	for _, w := range desc.WebAPIs {
		manifest := make(capability.Manifest, len(w.Functions))
		for _, fn := range w.Functions {
			convention := capability.ConventionUnspecified
			if fn.Convention != "" {
				c, err := capability.ParseConvention(fn.Convention)
				if err != nil {
					return nil, fmt.Errorf("plugin %s: api %s: %w", name, w.Name, err)
				}
				convention = c
			}

			api, key := w.Name, fn.Key
			manifest[key] = capability.FunctionSpec{
				Convention: convention,
				Type:       capability.MethodType(fn.Type),
				Handler: func(ctx context.Context, args []any) (any, error) {
					return remote.Invoke(ctx, api, key, args)
				},
			}
		}

		apis = append(apis, &capability.WebAPIDescriptor{
			Name:       w.Name,
			Manifest:   manifest,
			Methods:    capability.MethodMetadata(w.Methods),
			Scheme:     w.Scheme,
			Schemes:    w.Schemes,
			IsInternal: w.IsInternal,
		})
	}

	module := capability.NewModule(name)
	if len(protocols) > 0 {
		module.WithProtocols(protocols...)
	}
	if len(apis) > 0 {
		module.WithWebAPIs(apis...)
	}
	return module, nil
}

// ChainLoader tries loaders in order; the first success wins
type ChainLoader struct {
	loaders []ModuleLoader
}

// NewChainLoader creates a loader that falls through loaders in order
func NewChainLoader(loaders ...ModuleLoader) *ChainLoader {
	return &ChainLoader{loaders: loaders}
}

// Load implements ModuleLoader
func (c *ChainLoader) Load(ctx context.Context, name, dir string) (*capability.Module, error) {
	if len(c.loaders) == 0 {
		return nil, fmt.Errorf("no loaders configured for plugin %s", name)
	}

	var errs []error
	for _, loader := range c.loaders {
		module, err := loader.Load(ctx, name, dir)
		if err == nil {
			return module, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}
