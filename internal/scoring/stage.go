package scoring

import (
	"fmt"
	"math"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
)

// WeightTolerance bounds how far a weight table may drift from summing to one.
const WeightTolerance = 1e-6

// Weights is a per-pillar weight distribution
type Weights struct {
	Capital   float64 `yaml:"capital" json:"capital"`
	Advantage float64 `yaml:"advantage" json:"advantage"`
	Market    float64 `yaml:"market" json:"market"`
	People    float64 `yaml:"people" json:"people"`
}

// Sum adds the four pillar weights.
func (w Weights) Sum() float64 {
	return w.Capital + w.Advantage + w.Market + w.People
}

// Apply combines pillar scores with these weights.
func (w Weights) Apply(s PillarScores) float64 {
	return w.Capital*s.Capital + w.Advantage*s.Advantage + w.Market*s.Market + w.People*s.People
}

// StageWeights maps each funding stage to its weight profile
type StageWeights map[string]Weights

// DefaultStageWeights puts more weight on people early and on capital later.
func DefaultStageWeights() StageWeights {
	return StageWeights{
		features.StagePreSeed: {Capital: 0.10, Advantage: 0.30, Market: 0.20, People: 0.40},
		features.StageSeed:    {Capital: 0.15, Advantage: 0.30, Market: 0.25, People: 0.30},
		features.StageSeriesA: {Capital: 0.25, Advantage: 0.25, Market: 0.30, People: 0.20},
		features.StageSeriesB: {Capital: 0.35, Advantage: 0.20, Market: 0.30, People: 0.15},
		features.StageSeriesC: {Capital: 0.40, Advantage: 0.15, Market: 0.30, People: 0.15},
	}
}

// Validate checks that every supported stage has a profile summing to one.
func (sw StageWeights) Validate() error {
	for _, stage := range features.Stages {
		w, ok := sw[stage]
		if !ok {
			return fmt.Errorf("stage weights missing profile for %s", stage)
		}
		if w.Capital < 0 || w.Advantage < 0 || w.Market < 0 || w.People < 0 {
			return fmt.Errorf("stage %s has a negative weight", stage)
		}
		if sum := w.Sum(); math.Abs(sum-1) > WeightTolerance {
			return fmt.Errorf("stage %s weights sum to %.6f, want 1.0", stage, sum)
		}
	}
	for stage := range sw {
		if !features.IsStage(stage) {
			return fmt.Errorf("stage weights reference unknown stage %q", stage)
		}
	}
	return nil
}

// Resolve maps stage onto a configured profile name, using seed for unknown stages.
func (sw StageWeights) Resolve(stage string) string {
	if _, ok := sw[stage]; ok {
		return stage
	}
	return features.StageSeed
}

// For returns the profile used for stage.
func (sw StageWeights) For(stage string) Weights {
	return sw[sw.Resolve(stage)]
}

// Overall is the stage-weighted CAMP score.
func (sw StageWeights) Overall(s PillarScores, stage string) float64 {
	return clip(sw.For(stage).Apply(s), 0, 1)
}
