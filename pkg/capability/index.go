package capability

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/harun/plughost/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrSchemeConflict is returned when two protocols claim the same scheme
// under the reject policy
var ErrSchemeConflict = errors.New("scheme declared by more than one protocol")

// ConflictPolicy decides what happens when protocol schemes collide
type ConflictPolicy string

const (
	// ConflictWarn keeps every protocol, logs a warning and lets the last
	// registered one win lookups
	ConflictWarn ConflictPolicy = "warn"
	// ConflictReject fails aggregation of protocols
	ConflictReject ConflictPolicy = "reject"
)

// ParseConflictPolicy validates a policy name; empty means warn
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(s) {
	case "", ConflictWarn:
		return ConflictWarn, nil
	case ConflictReject:
		return ConflictReject, nil
	default:
		return "", fmt.Errorf("invalid conflict policy: %s (must be: warn, reject)", s)
	}
}

// Index aggregates capability declarations across loaded modules.
// Each key is computed once on first request and served from the cache after
// that, so modules added to the source later are not observed.
type Index struct {
	source  ModuleSource
	logger  zerolog.Logger
	policy  ConflictPolicy
	metrics *metrics.Metrics

	mu    sync.Mutex
	cache map[CapabilityKey][]Descriptor
}

// IndexOption configures an Index
type IndexOption func(*Index)

// WithConflictPolicy sets the scheme conflict policy
func WithConflictPolicy(policy ConflictPolicy) IndexOption {
	return func(ix *Index) {
		ix.policy = policy
	}
}

// WithMetrics records cache and validation metrics
func WithMetrics(m *metrics.Metrics) IndexOption {
	return func(ix *Index) {
		ix.metrics = m
	}
}

// NewIndex creates a capability index over the given modules
func NewIndex(source ModuleSource, logger zerolog.Logger, opts ...IndexOption) *Index {
	ix := &Index{
		source: source,
		logger: logger.With().Str("component", "capability-index").Logger(),
		policy: ConflictWarn,
		cache:  make(map[CapabilityKey][]Descriptor),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Warm computes and caches the given keys (all known keys if none given)
func (ix *Index) Warm(keys ...CapabilityKey) error {
	if len(keys) == 0 {
		keys = []CapabilityKey{KeyProtocols, KeyWebAPIs}
	}
	for _, key := range keys {
		if _, err := ix.GetAllInfo(key); err != nil {
			return fmt.Errorf("failed to warm %s: %w", key, err)
		}
	}
	return nil
}

// Cached reports whether key has already been aggregated
func (ix *Index) Cached(key CapabilityKey) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	_, ok := ix.cache[key]
	return ok
}

// GetAllInfo returns every descriptor exported under key, in module discovery
// order then declaration order. The returned slice is shared: callers must
// not modify it.
func (ix *Index) GetAllInfo(key CapabilityKey) ([]Descriptor, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if cached, ok := ix.cache[key]; ok {
		ix.metrics.CacheHit(string(key))
		return cached, nil
	}
	ix.metrics.CacheMiss(string(key))

	result := []Descriptor{}
	var modules []*Module
	if ix.source != nil {
		modules = ix.source.Modules()
	}

	for _, module := range modules {
		value, ok := module.Export(key)
		if !ok {
			continue
		}

		values, errs := normalize(key, value)
		for _, err := range errs {
			ix.reject(key, module.Name, err)
		}

		if key == KeyWebAPIs {
			values = ix.backfill(module, values)
		}

		result = append(result, values...)
	}

	if key == KeyProtocols {
		if err := ix.checkConflicts(result, modules); err != nil {
			return nil, err
		}
	}

	ix.cache[key] = result
	ix.logger.Debug().
		Str("key", string(key)).
		Int("modules", len(modules)).
		Int("descriptors", len(result)).
		Msg("Aggregated capability")

	return result, nil
}

func (ix *Index) backfill(module *Module, values []Descriptor) []Descriptor {
	out := values[:0:0]
	for _, d := range values {
		filled, err := backfillScheme(d.(*WebAPIDescriptor), module)
		if err != nil {
			ix.reject(KeyWebAPIs, module.Name, err)
			continue
		}
		out = append(out, filled)
	}
	return out
}

func (ix *Index) reject(key CapabilityKey, plugin string, err error) {
	ix.metrics.DescriptorRejected(string(key))
	ix.logger.Warn().
		Err(err).
		Str("key", string(key)).
		Str("plugin", plugin).
		Msg("Dropping invalid capability descriptor")
}

func (ix *Index) checkConflicts(protocols []Descriptor, modules []*Module) error {
	seen := make(map[string]int, len(protocols))
	var dupes []string
	for _, d := range protocols {
		scheme := d.(*ProtocolDescriptor).Scheme
		seen[scheme]++
		if seen[scheme] == 2 {
			dupes = append(dupes, scheme)
		}
	}
	if len(dupes) == 0 {
		return nil
	}

	if ix.policy == ConflictReject {
		return fmt.Errorf("%w: %s", ErrSchemeConflict, strings.Join(dupes, ", "))
	}

	for _, scheme := range dupes {
		ix.logger.Warn().
			Str("scheme", scheme).
			Int("count", seen[scheme]).
			Strs("plugins", owners(modules, scheme)).
			Msg("Scheme declared by more than one protocol, last registered wins")
	}
	return nil
}

func owners(modules []*Module, scheme string) []string {
	var names []string
	for _, m := range modules {
		for _, s := range moduleSchemes(m) {
			if s == scheme {
				names = append(names, m.Name)
				break
			}
		}
	}
	return names
}

// Protocols returns the aggregated protocol descriptors
func (ix *Index) Protocols() ([]*ProtocolDescriptor, error) {
	all, err := ix.GetAllInfo(KeyProtocols)
	if err != nil {
		return nil, err
	}
	out := make([]*ProtocolDescriptor, 0, len(all))
	for _, d := range all {
		out = append(out, d.(*ProtocolDescriptor))
	}
	return out, nil
}

// WebAPIs returns the aggregated web API descriptors
func (ix *Index) WebAPIs() ([]*WebAPIDescriptor, error) {
	all, err := ix.GetAllInfo(KeyWebAPIs)
	if err != nil {
		return nil, err
	}
	out := make([]*WebAPIDescriptor, 0, len(all))
	for _, d := range all {
		out = append(out, d.(*WebAPIDescriptor))
	}
	return out, nil
}
