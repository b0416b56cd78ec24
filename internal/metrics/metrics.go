package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the plugin host.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Plugin discovery metrics
	PluginsLoadedTotal      prometheus.Counter
	PluginLoadFailuresTotal prometheus.Counter

	// Capability index metrics
	CapabilityCacheHitsTotal   *prometheus.CounterVec
	CapabilityCacheMissesTotal *prometheus.CounterVec
	DescriptorsRejectedTotal   *prometheus.CounterVec

	// Activation metrics
	ProtocolRegistrationsTotal   *prometheus.CounterVec
	ProtocolRegistrationDuration *prometheus.HistogramVec

	// Export metrics
	ChannelsExportedTotal *prometheus.CounterVec

	// Shell metrics
	ShellMessagesSentTotal prometheus.Counter
	ShellClientsConnected  prometheus.Gauge
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		PluginsLoadedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "plugins_loaded_total",
				Help: "Total number of plugin modules loaded",
			},
		),
		PluginLoadFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "plugin_load_failures_total",
				Help: "Total number of plugin modules that failed to load",
			},
		),

		CapabilityCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capability_cache_hits_total",
				Help: "Total number of capability lookups served from the cache",
			},
			[]string{"key"},
		),
		CapabilityCacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capability_cache_misses_total",
				Help: "Total number of capability aggregations",
			},
			[]string{"key"},
		),
		DescriptorsRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capability_descriptors_rejected_total",
				Help: "Total number of invalid capability descriptors dropped during aggregation",
			},
			[]string{"key"},
		),

		ProtocolRegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protocol_registrations_total",
				Help: "Total number of protocol handler registrations",
			},
			[]string{"scheme", "status"},
		),
		ProtocolRegistrationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "protocol_registration_duration_seconds",
				Help:    "Duration of protocol handler registrations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scheme"},
		),

		ChannelsExportedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webapi_channels_exported_total",
				Help: "Total number of web API channels exported",
			},
			[]string{"convention"},
		),

		ShellMessagesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_messages_sent_total",
				Help: "Total number of messages broadcast to the host shell",
			},
		),
		ShellClientsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "shell_clients_connected",
				Help: "Number of currently connected shell clients",
			},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.PluginsLoadedTotal)
	m.registry.MustRegister(m.PluginLoadFailuresTotal)

	m.registry.MustRegister(m.CapabilityCacheHitsTotal)
	m.registry.MustRegister(m.CapabilityCacheMissesTotal)
	m.registry.MustRegister(m.DescriptorsRejectedTotal)

	m.registry.MustRegister(m.ProtocolRegistrationsTotal)
	m.registry.MustRegister(m.ProtocolRegistrationDuration)

	m.registry.MustRegister(m.ChannelsExportedTotal)

	m.registry.MustRegister(m.ShellMessagesSentTotal)
	m.registry.MustRegister(m.ShellClientsConnected)
}

// PluginLoaded records a successful plugin load
func (m *Metrics) PluginLoaded() {
	if m == nil {
		return
	}
	m.PluginsLoadedTotal.Inc()
}

// PluginLoadFailed records a failed plugin load
func (m *Metrics) PluginLoadFailed() {
	if m == nil {
		return
	}
	m.PluginLoadFailuresTotal.Inc()
}

// CacheHit records a capability lookup served from the cache
func (m *Metrics) CacheHit(key string) {
	if m == nil {
		return
	}
	m.CapabilityCacheHitsTotal.WithLabelValues(key).Inc()
}

// CacheMiss records a capability aggregation
func (m *Metrics) CacheMiss(key string) {
	if m == nil {
		return
	}
	m.CapabilityCacheMissesTotal.WithLabelValues(key).Inc()
}

// DescriptorRejected records a dropped descriptor
func (m *Metrics) DescriptorRejected(key string) {
	if m == nil {
		return
	}
	m.DescriptorsRejectedTotal.WithLabelValues(key).Inc()
}

// ProtocolRegistration records the outcome of one register routine
func (m *Metrics) ProtocolRegistration(scheme string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ProtocolRegistrationsTotal.WithLabelValues(scheme, status).Inc()
	m.ProtocolRegistrationDuration.WithLabelValues(scheme).Observe(duration.Seconds())
}

// ChannelExported records one exported web API channel
func (m *Metrics) ChannelExported(convention string) {
	if m == nil {
		return
	}
	m.ChannelsExportedTotal.WithLabelValues(convention).Inc()
}

// ShellMessageSent records one broadcast shell message
func (m *Metrics) ShellMessageSent() {
	if m == nil {
		return
	}
	m.ShellMessagesSentTotal.Inc()
}

// ShellClients sets the number of connected shell clients
func (m *Metrics) ShellClients(n int) {
	if m == nil {
		return
	}
	m.ShellClientsConnected.Set(float64(n))
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
