package plugin

import (
	"fmt"
	"sync"
	"time"

	"github.com/harun/plughost/pkg/capability"
)

// Record is a loaded plugin and its metadata
type Record struct {
	Name     string
	Dir      string
	Module   *capability.Module
	Metadata Metadata
	LoadedAt time.Time
}

// Registry tracks loaded plugins in load order
type Registry struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*Record
}

// NewRegistry creates a new plugin registry
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Record),
	}
}

// Register appends a plugin
func (r *Registry) Register(record *Record) error {
	if record == nil || record.Module == nil {
		return fmt.Errorf("plugin record must carry a module")
	}
	if record.Name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.Name]; exists {
		return fmt.Errorf("plugin %s already registered", record.Name)
	}

	if record.LoadedAt.IsZero() {
		record.LoadedAt = time.Now()
	}
	r.records[record.Name] = record
	r.order = append(r.order, record.Name)
	return nil
}

// Get retrieves a plugin by name
func (r *Registry) Get(name string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, exists := r.records[name]
	return record, exists
}

// All returns all plugins in load order
func (r *Registry) All() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*Record, 0, len(r.order))
	for _, name := range r.order {
		records = append(records, r.records[name])
	}
	return records
}

// Modules implements capability.ModuleSource
func (r *Registry) Modules() []*capability.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	modules := make([]*capability.Module, 0, len(r.order))
	for _, name := range r.order {
		modules = append(modules, r.records[name].Module)
	}
	return modules
}

// Metadata returns the metadata of every plugin keyed by plugin name
func (r *Registry) Metadata() map[string]Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta := make(map[string]Metadata, len(r.records))
	for name, record := range r.records {
		meta[name] = record.Metadata
	}
	return meta
}

// Names returns plugin names in load order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Count returns the number of registered plugins
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
