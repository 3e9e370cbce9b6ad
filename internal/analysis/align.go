package analysis

import (
	"errors"
	"fmt"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/models"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/scoring"
)

// ErrAlignment marks a vector that cannot be shaped into a model's input row.
var ErrAlignment = errors.New("feature alignment failed")

// Align builds the input row for d by looking every column up by name.
// Pillar columns come from pillars; all others from v. It never pads or
// truncates: a row of the wrong width is an error.
func Align(v features.Vector, pillars scoring.PillarScores, d models.Descriptor) ([]float64, error) {
	names, err := d.ResolveFeatures()
	if err != nil {
		return nil, fmt.Errorf("%w: model %s: %v", ErrAlignment, d.Name, err)
	}

	named := pillars.Named()
	row := make([]float64, len(names))
	for i, name := range names {
		if value, ok := named[name]; ok && d.UsesPillars() {
			row[i] = value
			continue
		}
		value, ok := v.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: model %s: feature %q missing from vector", ErrAlignment, d.Name, name)
		}
		row[i] = value
	}

	if len(row) != d.FeatureCount {
		return nil, fmt.Errorf("%w: model %s: built %d columns, expects %d", ErrAlignment, d.Name, len(row), d.FeatureCount)
	}
	return row, nil
}
