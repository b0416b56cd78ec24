package capability

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/plughost/internal/metrics"
	"github.com/rs/zerolog"
)

// StartupConfig holds host-level startup policy
type StartupConfig struct {
	// ContinueOnActivationFailure still exports web APIs when a protocol
	// registration failed. The activation error is returned either way.
	ContinueOnActivationFailure bool
}

// Startup drives the host startup order: warm the index, register standard
// schemes, wait for the host to be ready, activate protocols, export web APIs.
type Startup struct {
	index     *Index
	host      Host
	registrar *Registrar
	activator *Activator
	exporter  *Exporter
	lookup    *Lookup
	config    StartupConfig
	logger    zerolog.Logger
}

// NewStartup wires every consumer to the same index
func NewStartup(index *Index, host Host, m *metrics.Metrics, logger zerolog.Logger, config StartupConfig) *Startup {
	return &Startup{
		index:     index,
		host:      host,
		registrar: NewRegistrar(index, host, logger),
		activator: NewActivator(index, host, m, logger),
		exporter:  NewExporter(index, host, m, logger),
		lookup:    NewLookup(index),
		config:    config,
		logger:    logger.With().Str("component", "startup").Logger(),
	}
}

// Run executes the startup sequence
func (s *Startup) Run(ctx context.Context) error {
	if err := s.index.Warm(); err != nil {
		return err
	}

	if err := s.registrar.RegisterStandardSchemes(); err != nil {
		return err
	}

	if err := s.host.WaitReady(ctx); err != nil {
		return fmt.Errorf("host did not become ready: %w", err)
	}

	activationErr := s.activator.SetupProtocolHandlers(ctx)
	if activationErr != nil && !s.config.ContinueOnActivationFailure {
		return activationErr
	}
	if activationErr != nil {
		s.logger.Warn().Err(activationErr).Msg("Protocol activation failed, exporting web APIs anyway")
	}

	if err := s.exporter.SetupWebAPIs(); err != nil {
		return errors.Join(activationErr, err)
	}

	if activationErr == nil {
		s.logger.Info().Msg("Startup complete")
	}
	return activationErr
}

// Index returns the shared capability index
func (s *Startup) Index() *Index {
	return s.index
}

// Registrar returns the scheme registrar
func (s *Startup) Registrar() *Registrar {
	return s.registrar
}

// Lookup returns the manifest lookup
func (s *Startup) Lookup() *Lookup {
	return s.lookup
}
