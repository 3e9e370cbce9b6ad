package models

import (
	"context"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Transform is applied to a raw column before standardisation
type Transform string

const (
	TransformNone  Transform = ""
	TransformLog10 Transform = "log10" // log10(1 + max(x, 0))
)

// Term is one standardised linear term of a logistic model
type Term struct {
	Feature   string    `yaml:"feature"`
	Transform Transform `yaml:"transform,omitempty"`
	Center    float64   `yaml:"center,omitempty"`
	Scale     float64   `yaml:"scale,omitempty"`
	Coef      float64   `yaml:"coef"`
}

// LogisticArtifact is the on-disk form of a logistic model.
type LogisticArtifact struct {
	Name      string   `yaml:"name"`
	Version   string   `yaml:"version"`
	Features  []string `yaml:"features"`
	Intercept float64  `yaml:"intercept"`
	Terms     []Term   `yaml:"terms"`
}

// Logistic scores rows with a fitted logistic regression.
type Logistic struct {
	artifact LogisticArtifact
	columns  []int
}

// LoadLogistic reads a logistic artifact from path.
func LoadLogistic(path string) (*Logistic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read logistic artifact: %w", err)
	}

	var artifact LogisticArtifact
	if err := yaml.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse logistic artifact: %w", err)
	}
	return NewLogistic(artifact)
}

// NewLogistic binds each term to its column in the artifact's feature list.
func NewLogistic(artifact LogisticArtifact) (*Logistic, error) {
	if len(artifact.Features) == 0 {
		return nil, fmt.Errorf("logistic artifact %q has no feature schema", artifact.Name)
	}
	index := make(map[string]int, len(artifact.Features))
	for i, name := range artifact.Features {
		index[name] = i
	}

	columns := make([]int, len(artifact.Terms))
	for i, term := range artifact.Terms {
		col, ok := index[term.Feature]
		if !ok {
			return nil, fmt.Errorf("term %d references %q which is not in the feature schema", i, term.Feature)
		}
		switch term.Transform {
		case TransformNone, TransformLog10:
		default:
			return nil, fmt.Errorf("term %d: unknown transform %q", i, term.Transform)
		}
		if term.Scale < 0 {
			return nil, fmt.Errorf("term %d: scale must not be negative", i)
		}
		if term.Scale == 0 {
			artifact.Terms[i].Scale = 1
		}
		columns[i] = col
	}
	return &Logistic{artifact: artifact, columns: columns}, nil
}

// FeatureNames returns the column order the model was fit against.
func (l *Logistic) FeatureNames() []string {
	return append([]string(nil), l.artifact.Features...)
}

// Version is the artifact version string.
func (l *Logistic) Version() string { return l.artifact.Version }

// PredictProbability evaluates the sigmoid of the linear predictor.
func (l *Logistic) PredictProbability(ctx context.Context, x []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(x) != len(l.artifact.Features) {
		return 0, fmt.Errorf("logistic: got %d inputs, want %d", len(x), len(l.artifact.Features))
	}

	z := l.artifact.Intercept
	for i, term := range l.artifact.Terms {
		v := x[l.columns[i]]
		if term.Transform == TransformLog10 {
			v = math.Log10(1 + math.Max(v, 0))
		}
		z += term.Coef * (v - term.Center) / term.Scale
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// Close is a no-op; logistic models hold no native resources.
func (l *Logistic) Close() error { return nil }
