package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// StatusInstalled is the only status a discovered plugin carries
const StatusInstalled = "installed"

// PackageFile is the descriptor file read from every plugin directory
const PackageFile = "package.json"

// Metadata is the normalized descriptor record of a discovered plugin
type Metadata struct {
	Name        string `json:"name,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Homepage    string `json:"homepage,omitempty"`
	Version     string `json:"version,omitempty"`
	Status      string `json:"status"`

	// Main is the entry point executable, relative to the plugin directory
	Main string `json:"main,omitempty"`
}

// FallbackMetadata is the record used when package.json is missing or malformed
func FallbackMetadata(name string) Metadata {
	return Metadata{Name: name, Status: StatusInstalled}
}

// packageJSON mirrors the subset of package.json fields we read
type packageJSON struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Homepage    string          `json:"homepage"`
	Author      json.RawMessage `json:"author"`
	Main        string          `json:"main"`
}

// person is the object form of an npm author
type person struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	URL   string `json:"url"`
}

// MetadataLoader reads and validates plugin package descriptors
type MetadataLoader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewMetadataLoader creates a new metadata loader
func NewMetadataLoader(logger zerolog.Logger) *MetadataLoader {
	return &MetadataLoader{
		logger:       logger.With().Str("component", "metadata-loader").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(PackageSchema),
	}
}

// Load returns the metadata of the plugin in dir. It never fails: a missing
// or malformed descriptor yields FallbackMetadata(name).
func (l *MetadataLoader) Load(name, dir string) Metadata {
	data, err := os.ReadFile(filepath.Join(dir, PackageFile))
	if err != nil {
		return FallbackMetadata(name)
	}

	meta, err := l.Parse(data)
	if err != nil {
		return FallbackMetadata(name)
	}
	return meta
}

// ReadEntryPoint returns the absolute path of the plugin's main executable
func (l *MetadataLoader) ReadEntryPoint(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, PackageFile))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoEntryPoint, err)
	}

	meta, err := l.Parse(data)
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", PackageFile, err)
	}
	if meta.Main == "" {
		return "", fmt.Errorf("%w: %s has no main field", ErrNoEntryPoint, PackageFile)
	}

	if filepath.IsAbs(meta.Main) {
		return meta.Main, nil
	}
	return filepath.Join(dir, meta.Main), nil
}

// Parse validates a package descriptor and extracts its metadata
func (l *MetadataLoader) Parse(data []byte) (Metadata, error) {
	if err := l.validateSchema(data); err != nil {
		return Metadata{}, err
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse package JSON: %w", err)
	}

	if pkg.Version != "" {
		if _, err := semver.StrictNewVersion(pkg.Version); err != nil {
			return Metadata{}, fmt.Errorf("invalid version %q: %w", pkg.Version, err)
		}
	}

	author, err := flattenAuthor(pkg.Author)
	if err != nil {
		return Metadata{}, err
	}

	return Metadata{
		Name:        pkg.Name,
		Author:      author,
		Description: pkg.Description,
		Homepage:    pkg.Homepage,
		Version:     pkg.Version,
		Status:      StatusInstalled,
		Main:        pkg.Main,
	}, nil
}

func (l *MetadataLoader) validateSchema(data []byte) error {
	result, err := gojsonschema.Validate(l.schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}

	return nil
}

// flattenAuthor renders an npm author as "name <email> (url)"
func flattenAuthor(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var p person
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("invalid author: %w", err)
	}

	parts := make([]string, 0, 3)
	if p.Name != "" {
		parts = append(parts, p.Name)
	}
	if p.Email != "" {
		parts = append(parts, "<"+p.Email+">")
	}
	if p.URL != "" {
		parts = append(parts, "("+p.URL+")")
	}
	return strings.Join(parts, " "), nil
}
