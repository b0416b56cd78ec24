package capability

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Registrar registers standard-URL schemes with the host
type Registrar struct {
	index  *Index
	host   SchemeRegistry
	logger zerolog.Logger
}

// NewRegistrar creates a scheme registrar
func NewRegistrar(index *Index, host SchemeRegistry, logger zerolog.Logger) *Registrar {
	return &Registrar{
		index:  index,
		host:   host,
		logger: logger.With().Str("component", "scheme-registrar").Logger(),
	}
}

// StandardSchemes returns the schemes of protocols that request standard URL
// parsing, in aggregation order
func (r *Registrar) StandardSchemes() ([]string, error) {
	protocols, err := r.index.Protocols()
	if err != nil {
		return nil, err
	}

	schemes := []string{}
	for _, p := range protocols {
		if p.IsStandardURL {
			schemes = append(schemes, p.Scheme)
		}
	}
	return schemes, nil
}

// RegisterStandardSchemes registers every standard scheme in one batch call.
// The caller must run it before the host reaches its ready state.
func (r *Registrar) RegisterStandardSchemes() error {
	schemes, err := r.StandardSchemes()
	if err != nil {
		return fmt.Errorf("failed to collect standard schemes: %w", err)
	}

	if err := r.host.RegisterStandardSchemes(schemes); err != nil {
		return fmt.Errorf("failed to register standard schemes: %w", err)
	}

	r.logger.Info().Strs("schemes", schemes).Msg("Registered standard schemes")
	return nil
}
