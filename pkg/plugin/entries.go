package plugin

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultEntryManifest is the file name of the explicit plugin list
const DefaultEntryManifest = "plugins.yaml"

// EntryManifest lists plugins explicitly instead of scanning a directory
//
//	plugins:
//	  - name: beaker-plugin-dat
//	  - name: beaker-plugin-ipfs
//	    path: vendor/ipfs
type EntryManifest struct {
	Plugins []Entry `yaml:"plugins"`
}

// Entry is one plugin in an entry manifest. Path defaults to the name and
// is resolved against the plugin directory when relative.
type Entry struct {
	Name string `yaml:"name"`
	Path string `yaml:"path,omitempty"`
}

// Candidate is a plugin selected for loading
type Candidate struct {
	Name string
	Dir  string
}

// ReadEntryManifest parses an entry manifest file
func ReadEntryManifest(path string) (*EntryManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var manifest EntryManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse entry manifest %s: %w", path, err)
	}

	for i, e := range manifest.Plugins {
		if e.Name == "" {
			return nil, fmt.Errorf("entry manifest %s: plugin %d has no name", path, i)
		}
	}

	return &manifest, nil
}

// WriteEntryManifest writes manifest to path
func WriteEntryManifest(path string, manifest *EntryManifest) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to encode entry manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write entry manifest %s: %w", path, err)
	}
	return nil
}

// Candidates resolves the manifest entries against dir
func (m *EntryManifest) Candidates(dir string) []Candidate {
	candidates := make([]Candidate, 0, len(m.Plugins))
	for _, e := range m.Plugins {
		p := e.Path
		if p == "" {
			p = e.Name
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		candidates = append(candidates, Candidate{Name: e.Name, Dir: p})
	}
	return candidates
}
