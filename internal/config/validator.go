package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/harun/plughost/pkg/capability"
	"github.com/rs/zerolog"
)

// LoaderModes lists the supported module loader modes
var LoaderModes = []string{"catalog", "process", "chain"}

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePrefix validates the plugin directory name prefix
func (v *Validator) ValidatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("plugin prefix cannot be empty")
	}
	if strings.ContainsAny(prefix, `/\`) {
		return fmt.Errorf("plugin prefix %q must not contain path separators", prefix)
	}
	return nil
}

// ValidateLoaderMode validates the module loader mode
func (v *Validator) ValidateLoaderMode(mode string) error {
	for _, m := range LoaderModes {
		if mode == m {
			return nil
		}
	}
	return fmt.Errorf("invalid loader mode: %s (must be: %s)", mode, strings.Join(LoaderModes, ", "))
}

// ValidateEntryManifest validates the entry manifest file name.
// Empty disables the entry manifest.
func (v *Validator) ValidateEntryManifest(name string) error {
	if name == "" {
		return nil
	}
	if filepath.Base(name) != name {
		return fmt.Errorf("entry manifest %q must be a file name, not a path", name)
	}
	return nil
}

// ValidateConflictPolicy validates the scheme conflict policy
func (v *Validator) ValidateConflictPolicy(policy string) error {
	_, err := capability.ParseConflictPolicy(policy)
	return err
}

// ValidateLogLevel validates a zerolog level name
func (v *Validator) ValidateLogLevel(level string) error {
	if level == "" {
		return nil
	}
	if _, err := zerolog.ParseLevel(level); err != nil {
		return fmt.Errorf("invalid log level: %s", level)
	}
	return nil
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %d (must be between 1 and 65535)", port)
	}
	return nil
}
