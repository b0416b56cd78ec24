package capability

import (
	"fmt"

	"github.com/harun/plughost/internal/metrics"
	"github.com/rs/zerolog"
)

// Exporter publishes web API manifests through the host export primitive
type Exporter struct {
	index   *Index
	host    APIExporter
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewExporter creates a web API exporter
func NewExporter(index *Index, host APIExporter, m *metrics.Metrics, logger zerolog.Logger) *Exporter {
	return &Exporter{
		index:   index,
		host:    host,
		metrics: m,
		logger:  logger.With().Str("component", "webapi-exporter").Logger(),
	}
}

// SetupWebAPIs exports four channels per web API, one per calling
// convention. Empty buckets are exported too so consumers always see the
// same channel set.
func (e *Exporter) SetupWebAPIs() error {
	apis, err := e.index.WebAPIs()
	if err != nil {
		return fmt.Errorf("failed to collect web APIs: %w", err)
	}

	for _, api := range apis {
		buckets := Partition(api.Manifest)
		for _, c := range Conventions {
			channel := ChannelName(api.Name, c)
			if err := e.host.ExportAPI(channel, buckets[c], api.Methods); err != nil {
				return fmt.Errorf("failed to export %s: %w", channel, err)
			}
			e.metrics.ChannelExported(c.String())
		}

		e.logger.Debug().
			Str("api", api.Name).
			Str("scheme", api.Scheme).
			Strs("schemes", api.Schemes).
			Int("plain", len(buckets[ConventionPlain])).
			Int("callback", len(buckets[ConventionCallback])).
			Int("async_callback", len(buckets[ConventionAsyncCallback])).
			Int("static", len(buckets[ConventionStaticObject])).
			Msg("Exported web API")
	}

	e.logger.Info().Int("apis", len(apis)).Msg("Web APIs exported")
	return nil
}
