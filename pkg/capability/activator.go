package capability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harun/plughost/internal/metrics"
	"github.com/rs/zerolog"
)

// ActivationError reports the protocol whose registration stopped activation
type ActivationError struct {
	Scheme string
	Index  int
	Err    error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("protocol %s (#%d) registration failed: %v", e.Scheme, e.Index, e.Err)
}

func (e *ActivationError) Unwrap() error {
	return e.Err
}

// Activator runs protocol registration routines one at a time.
// Handlers from different plugins may compete for a shared backend during
// setup, so a routine never starts before the previous one has returned.
type Activator struct {
	index     *Index
	messenger Messenger
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewActivator creates a protocol activator
func NewActivator(index *Index, messenger Messenger, m *metrics.Metrics, logger zerolog.Logger) *Activator {
	return &Activator{
		index:     index,
		messenger: messenger,
		metrics:   m,
		logger:    logger.With().Str("component", "protocol-activator").Logger(),
	}
}

// SetupProtocolHandlers invokes every protocol's register routine in order.
// The first failure stops the sequence; later protocols are not registered.
func (a *Activator) SetupProtocolHandlers(ctx context.Context) error {
	protocols, err := a.index.Protocols()
	if err != nil {
		return fmt.Errorf("failed to collect protocols: %w", err)
	}

	logger := a.logger.With().Str("activation_id", uuid.New().String()).Logger()
	logger.Info().Int("protocols", len(protocols)).Msg("Activating protocol handlers")

	for i, proto := range protocols {
		if err := ctx.Err(); err != nil {
			return &ActivationError{Scheme: proto.Scheme, Index: i, Err: err}
		}

		logger.Debug().Str("scheme", proto.Scheme).Msg("Registering protocol handler")

		start := time.Now()
		err := proto.Register(ctx, a.messenger)
		a.metrics.ProtocolRegistration(proto.Scheme, err, time.Since(start))

		if err != nil {
			logger.Error().
				Err(err).
				Str("scheme", proto.Scheme).
				Int("remaining", len(protocols)-i-1).
				Msg("Protocol registration failed")
			return &ActivationError{Scheme: proto.Scheme, Index: i, Err: err}
		}
	}

	logger.Info().Msg("Protocol handlers activated")
	return nil
}
