package models

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/scoring"
)

// WeightTolerance bounds how far ensemble weights may drift from summing to one.
const WeightTolerance = 1e-6

// Manifest is the versioned description of an ensemble stored next to its artifacts.
type Manifest struct {
	Version string         `yaml:"version" json:"version"`
	Models  []Descriptor   `yaml:"models" json:"models"`
	Scoring scoring.Config `yaml:"scoring,omitempty" json:"scoring"`

	// baseDir resolves relative artifact paths
	baseDir string
}

// LoadManifest reads and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data, filepath.Dir(path))
}

// ParseManifest decodes a manifest and validates it, resolving relative
// artifact paths against baseDir.
func ParseManifest(data []byte, baseDir string) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	m.baseDir = baseDir

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate enforces the static ensemble invariants.
func (m *Manifest) Validate() error {
	if len(m.Models) == 0 {
		return fmt.Errorf("manifest: at least one model is required")
	}

	names := make(map[string]bool, len(m.Models))
	total := 0.0
	for _, d := range m.Models {
		if err := d.validate(); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		if err := d.validateArtifact(); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		if names[d.Name] {
			return fmt.Errorf("manifest: duplicate model name %q", d.Name)
		}
		names[d.Name] = true
		total += d.Weight

		if _, err := os.Stat(m.ArtifactPath(d)); err != nil {
			return fmt.Errorf("manifest: model %s: artifact not found: %w", d.Name, err)
		}
	}
	if math.Abs(total-1) > WeightTolerance {
		return fmt.Errorf("manifest: model weights sum to %.6f, want 1.0", total)
	}

	if _, err := m.Scoring.Build(); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	return nil
}

// ArtifactPath resolves d.Path relative to the manifest directory.
func (m *Manifest) ArtifactPath(d Descriptor) string {
	if filepath.IsAbs(d.Path) || m.baseDir == "" {
		return d.Path
	}
	return filepath.Join(m.baseDir, d.Path)
}

// Descriptor looks up a model by name.
func (m *Manifest) Descriptor(name string) (Descriptor, bool) {
	for _, d := range m.Models {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}
