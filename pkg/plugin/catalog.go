package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/harun/plughost/pkg/capability"
)

// ErrUnknownPlugin is returned when no factory is registered for a plugin
var ErrUnknownPlugin = errors.New("unknown plugin")

// Factory builds the module of an in-process plugin
type Factory func(ctx context.Context, name, dir string) (*capability.Module, error)

// Catalog loads plugins compiled into the host binary
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		factories: make(map[string]Factory),
	}
}

// Register registers the factory of a plugin
func (c *Catalog) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("plugin %s: factory cannot be nil", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[name]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}
	c.factories[name] = factory
	return nil
}

// Static registers a plugin whose module is already built
func (c *Catalog) Static(module *capability.Module) error {
	if module == nil {
		return fmt.Errorf("module cannot be nil")
	}
	return c.Register(module.Name, func(context.Context, string, string) (*capability.Module, error) {
		return module, nil
	})
}

// Names returns the registered plugin names in lexical order
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load builds the module of the named plugin
func (c *Catalog) Load(ctx context.Context, name, dir string) (*capability.Module, error) {
	c.mu.RLock()
	factory, ok := c.factories[name]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}

	module, err := factory(ctx, name, dir)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, fmt.Errorf("plugin %s: factory returned no module", name)
	}
	if module.Name == "" {
		module.Name = name
	}
	return module, nil
}
