package capability

import (
	"context"
	"slices"
)

// CapabilityKey names a kind of declaration a plugin module can export
type CapabilityKey string

const (
	KeyProtocols CapabilityKey = "protocols"
	KeyWebAPIs   CapabilityKey = "webAPIs"
)

// Descriptor is implemented by every capability declaration kind
type Descriptor interface {
	Kind() CapabilityKey
}

// Messenger sends messages to the host's primary UI surface
type Messenger interface {
	Send(ctx context.Context, channel string, args ...any) error
}

// RegisterFunc is a protocol's setup routine
type RegisterFunc func(ctx context.Context, messenger Messenger) error

// ProtocolDescriptor declares a URL scheme and its registration routine
type ProtocolDescriptor struct {
	Scheme        string
	IsStandardURL bool
	IsInternal    bool
	Register      RegisterFunc
}

// Kind implements Descriptor
func (p *ProtocolDescriptor) Kind() CapabilityKey { return KeyProtocols }

// MethodType is the RPC shape of a manifest function
type MethodType string

const (
	MethodPromise  MethodType = "promise"
	MethodSync     MethodType = "sync"
	MethodReadable MethodType = "readable"
	MethodWritable MethodType = "writable"
	MethodDuplex   MethodType = "duplex"
)

// Function is a remotely callable function implementation
type Function func(ctx context.Context, args []any) (any, error)

// FunctionSpec describes one manifest entry
type FunctionSpec struct {
	Convention CallingConvention
	Type       MethodType
	Handler    Function
}

// Manifest maps function names to their specs
type Manifest map[string]FunctionSpec

// MethodMetadata is passed through to the host export primitive unchanged
type MethodMetadata map[string]any

// WebAPIDescriptor declares a named, remotely callable function manifest
type WebAPIDescriptor struct {
	Name       string
	Manifest   Manifest
	Methods    MethodMetadata
	Scheme     string
	Schemes    []string
	IsInternal bool
}

// Kind implements Descriptor
func (w *WebAPIDescriptor) Kind() CapabilityKey { return KeyWebAPIs }

// MatchesScheme reports whether the API is attributed to scheme
func (w *WebAPIDescriptor) MatchesScheme(scheme string) bool {
	return w.Scheme == scheme || slices.Contains(w.Schemes, scheme)
}

// clone returns a shallow copy whose Schemes slice is not shared
func (w *WebAPIDescriptor) clone() *WebAPIDescriptor {
	c := *w
	c.Schemes = slices.Clone(w.Schemes)
	return &c
}

// Module is a loaded plugin's exported declarations
type Module struct {
	Name    string
	Exports map[CapabilityKey]any
}

// NewModule creates an empty module
func NewModule(name string) *Module {
	return &Module{
		Name:    name,
		Exports: make(map[CapabilityKey]any),
	}
}

// WithProtocols sets the module's protocol declarations
func (m *Module) WithProtocols(protocols ...*ProtocolDescriptor) *Module {
	m.Exports[KeyProtocols] = protocols
	return m
}

// WithWebAPIs sets the module's web API declarations
func (m *Module) WithWebAPIs(apis ...*WebAPIDescriptor) *Module {
	m.Exports[KeyWebAPIs] = apis
	return m
}

// Export returns the raw value exported under key
func (m *Module) Export(key CapabilityKey) (any, bool) {
	if m == nil || m.Exports == nil {
		return nil, false
	}
	v, ok := m.Exports[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ModuleSource provides the loaded modules in discovery order
type ModuleSource interface {
	Modules() []*Module
}

// StaticModules is a fixed ModuleSource
type StaticModules []*Module

// Modules implements ModuleSource
func (s StaticModules) Modules() []*Module { return s }
