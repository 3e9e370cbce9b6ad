package models

import (
	"fmt"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/scoring"
)

// Kind selects the artifact backend
type Kind string

const (
	KindONNX     Kind = "onnx"
	KindLogistic Kind = "logistic"
)

// Supported input layouts.
const (
	LayoutCanonical  = features.Count
	LayoutWithPillar = features.Count + 4
)

// Descriptor identifies one classifier artifact and its place in the ensemble.
type Descriptor struct {
	Name         string   `yaml:"name" json:"name"`
	Kind         Kind     `yaml:"kind" json:"kind"`
	Path         string   `yaml:"path" json:"path"`
	FeatureCount int      `yaml:"feature_count" json:"feature_count"`
	Features     []string `yaml:"features,omitempty" json:"features,omitempty"`
	Weight       float64  `yaml:"weight" json:"weight"`
	Version      string   `yaml:"version,omitempty" json:"version,omitempty"`
}

// CanonicalLayout returns the default feature order for a supported count.
func CanonicalLayout(count int) ([]string, error) {
	switch count {
	case LayoutCanonical:
		return features.Names(), nil
	case LayoutWithPillar:
		names := features.Names()
		for _, p := range scoring.Pillars {
			names = append(names, p.FeatureName())
		}
		return names, nil
	}
	return nil, fmt.Errorf("unsupported feature count %d (want %d or %d)", count, LayoutCanonical, LayoutWithPillar)
}

// ResolveFeatures returns the exact column order the model was fit against,
// falling back to the canonical layout when the descriptor lists none.
func (d Descriptor) ResolveFeatures() ([]string, error) {
	if len(d.Features) == 0 {
		return CanonicalLayout(d.FeatureCount)
	}
	if err := ValidateLayout(d.FeatureCount, d.Features); err != nil {
		return nil, err
	}
	return append([]string(nil), d.Features...), nil
}

// UsesPillars reports whether the model expects pillar scores appended.
func (d Descriptor) UsesPillars() bool {
	return d.FeatureCount == LayoutWithPillar
}

// ValidateLayout checks names against the supported layouts. A 45 layout is
// a permutation of the canonical set; a 49 layout is a permutation of the
// canonical set followed by the pillar scores in CAMP order.
func ValidateLayout(count int, names []string) error {
	if count != LayoutCanonical && count != LayoutWithPillar {
		return fmt.Errorf("unsupported feature count %d (want %d or %d)", count, LayoutCanonical, LayoutWithPillar)
	}
	if len(names) != count {
		return fmt.Errorf("feature list has %d names, feature_count is %d", len(names), count)
	}

	seen := make(map[string]bool, len(names))
	for i, name := range names[:LayoutCanonical] {
		if !features.IsCanonical(name) {
			return fmt.Errorf("feature %d: %q is not a canonical feature", i, name)
		}
		if seen[name] {
			return fmt.Errorf("feature %d: %q listed twice", i, name)
		}
		seen[name] = true
	}

	if count == LayoutWithPillar {
		for i, p := range scoring.Pillars {
			got := names[LayoutCanonical+i]
			if got != p.FeatureName() {
				return fmt.Errorf("feature %d: expected %q, got %q", LayoutCanonical+i, p.FeatureName(), got)
			}
		}
	}
	return nil
}

func (d Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if !(d.Weight > 0) {
		return fmt.Errorf("model %s: weight must be positive", d.Name)
	}
	if _, err := d.ResolveFeatures(); err != nil {
		return fmt.Errorf("model %s: %w", d.Name, err)
	}
	return nil
}

func (d Descriptor) validateArtifact() error {
	switch d.Kind {
	case KindONNX, KindLogistic:
	default:
		return fmt.Errorf("model %s: unknown kind %q", d.Name, d.Kind)
	}
	if d.Path == "" {
		return fmt.Errorf("model %s: path is required", d.Name)
	}
	return nil
}
