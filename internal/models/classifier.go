package models

import (
	"context"
	"fmt"
)

// Classifier produces the positive-class probability for one aligned row.
type Classifier interface {
	PredictProbability(ctx context.Context, x []float64) (float64, error)
	Close() error
}

// Schema is implemented by artifacts that carry their own training column order.
type Schema interface {
	FeatureNames() []string
}

// Model is a loaded classifier paired with its resolved descriptor. The
// descriptor's feature list is always populated.
type Model struct {
	Descriptor
	Classifier
}

// Open loads the artifact described by d from path. When the artifact embeds
// a schema it must agree with the descriptor; when the descriptor lists no
// features the artifact schema is adopted.
func Open(d Descriptor, path string, opts ONNXOptions) (*Model, error) {
	var (
		c   Classifier
		err error
	)
	switch d.Kind {
	case KindLogistic:
		c, err = LoadLogistic(path)
	case KindONNX:
		c, err = LoadONNX(path, d.FeatureCount, opts)
	default:
		return nil, fmt.Errorf("model %s: unknown kind %q", d.Name, d.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", d.Name, err)
	}

	var artifact []string
	if s, ok := c.(Schema); ok {
		artifact = s.FeatureNames()
	}
	resolved, err := resolveSchema(d, artifact)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("model %s: %w", d.Name, err)
	}
	d.Features = resolved
	return &Model{Descriptor: d, Classifier: c}, nil
}

func resolveSchema(d Descriptor, artifact []string) ([]string, error) {
	if len(artifact) == 0 {
		return d.ResolveFeatures()
	}
	if err := ValidateLayout(d.FeatureCount, artifact); err != nil {
		return nil, fmt.Errorf("artifact schema: %w", err)
	}
	if len(d.Features) == 0 {
		return append([]string(nil), artifact...), nil
	}
	for i := range d.Features {
		if artifact[i] != d.Features[i] {
			return nil, fmt.Errorf("artifact schema column %d is %q, descriptor expects %q", i, artifact[i], d.Features[i])
		}
	}
	return append([]string(nil), d.Features...), nil
}
