package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
)

// Pillar names one of the four CAMP dimensions
type Pillar string

const (
	Capital   Pillar = "capital"
	Advantage Pillar = "advantage"
	Market    Pillar = "market"
	People    Pillar = "people"
)

// Pillars is the fixed CAMP order used whenever pillar scores are laid out positionally.
var Pillars = []Pillar{Capital, Advantage, Market, People}

// FeatureName is the name a pillar score takes when appended to a model view.
func (p Pillar) FeatureName() string {
	return string(p) + "_score"
}

// Rule selects how a raw feature value is scaled into [0,1]
type Rule string

const (
	RuleMinMax      Rule = "minmax"
	RuleLog         Rule = "log"
	RuleInverse     Rule = "inverse"
	RulePassthrough Rule = "passthrough"
	RuleLookup      Rule = "lookup"
)

// Normalizer scales one feature for pillar aggregation.
type Normalizer struct {
	Feature string             `yaml:"feature" json:"feature"`
	Rule    Rule               `yaml:"rule" json:"rule"`
	Min     float64            `yaml:"min,omitempty" json:"min,omitempty"`
	Max     float64            `yaml:"max,omitempty" json:"max,omitempty"`
	Lookup  map[string]float64 `yaml:"lookup,omitempty" json:"lookup,omitempty"`
}

// Apply scales the feature value held in v. The result may be NaN when the
// input itself is not a number; callers decide how to treat that.
func (n Normalizer) Apply(v features.Vector) float64 {
	x, ok := v.Get(n.Feature)
	if !ok {
		return math.NaN()
	}
	switch n.Rule {
	case RuleLookup:
		return n.Lookup[v.Category(n.Feature)]
	case RuleLog:
		if math.IsNaN(x) {
			return x
		}
		if x <= n.Min {
			return 0
		}
		return clip((math.Log10(x)-math.Log10(n.Min))/(math.Log10(n.Max)-math.Log10(n.Min)), 0, 1)
	case RuleInverse:
		return 1 - minmax(x, n.Min, n.Max)
	case RulePassthrough:
		return clip(x, 0, 1)
	default:
		return minmax(x, n.Min, n.Max)
	}
}

func (n Normalizer) validate() error {
	f, ok := features.Lookup(n.Feature)
	if !ok {
		return fmt.Errorf("unknown feature %q", n.Feature)
	}
	switch n.Rule {
	case RuleMinMax, RuleInverse:
		if n.Max <= n.Min {
			return fmt.Errorf("feature %s: max must exceed min", n.Feature)
		}
	case RuleLog:
		if n.Min <= 0 || n.Max <= n.Min {
			return fmt.Errorf("feature %s: log range needs 0 < min < max", n.Feature)
		}
	case RulePassthrough:
	case RuleLookup:
		if f.Kind != features.KindCategorical {
			return fmt.Errorf("feature %s: lookup rule needs a categorical feature", n.Feature)
		}
		for category := range n.Lookup {
			if _, ok := f.CategoryCode(category); !ok {
				return fmt.Errorf("feature %s: unknown category %q", n.Feature, category)
			}
		}
	default:
		return fmt.Errorf("feature %s: unknown rule %q", n.Feature, n.Rule)
	}
	return nil
}

// PillarScores holds one [0,1] score per CAMP pillar
type PillarScores struct {
	Capital   float64 `json:"capital"`
	Advantage float64 `json:"advantage"`
	Market    float64 `json:"market"`
	People    float64 `json:"people"`
}

// Get returns the score for p.
func (s PillarScores) Get(p Pillar) float64 {
	switch p {
	case Capital:
		return s.Capital
	case Advantage:
		return s.Advantage
	case Market:
		return s.Market
	case People:
		return s.People
	}
	return 0
}

func (s *PillarScores) set(p Pillar, value float64) {
	switch p {
	case Capital:
		s.Capital = value
	case Advantage:
		s.Advantage = value
	case Market:
		s.Market = value
	case People:
		s.People = value
	}
}

// Named returns the scores keyed by their appended feature name.
func (s PillarScores) Named() map[string]float64 {
	out := make(map[string]float64, len(Pillars))
	for _, p := range Pillars {
		out[p.FeatureName()] = s.Get(p)
	}
	return out
}

// PillarResult is the calculator output for one request
type PillarResult struct {
	Scores      PillarScores `json:"scores"`
	Overall     float64      `json:"overall"`
	Stage       string       `json:"stage"`
	NaNFeatures []string     `json:"nan_features,omitempty"`
}

// Calculator computes CAMP pillar scores from a canonical vector.
type Calculator struct {
	pillars map[Pillar][]Normalizer
	weights StageWeights
}

// NewCalculator validates the pillar table and stage profiles.
func NewCalculator(pillars map[Pillar][]Normalizer, weights StageWeights) (*Calculator, error) {
	for _, p := range Pillars {
		members := pillars[p]
		if len(members) == 0 {
			return nil, fmt.Errorf("pillar %s has no member features", p)
		}
		for _, n := range members {
			if err := n.validate(); err != nil {
				return nil, fmt.Errorf("pillar %s: %w", p, err)
			}
		}
	}
	for p := range pillars {
		if !isPillar(p) {
			return nil, fmt.Errorf("unknown pillar %q", p)
		}
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{pillars: pillars, weights: weights}, nil
}

// Score computes the four pillar scores and the stage-weighted overall score.
// Stage only affects the overall weighting, never pillar membership.
func (c *Calculator) Score(v features.Vector, stage string) PillarResult {
	var (
		result PillarResult
		nans   = make(map[string]bool)
	)
	for _, p := range Pillars {
		members := c.pillars[p]
		sum := 0.0
		for _, n := range members {
			x := n.Apply(v)
			if math.IsNaN(x) || math.IsInf(x, 0) {
				nans[n.Feature] = true
				continue
			}
			sum += x
		}
		result.Scores.set(p, clip(sum/float64(len(members)), 0, 1))
	}

	for name := range nans {
		result.NaNFeatures = append(result.NaNFeatures, name)
	}
	sort.Strings(result.NaNFeatures)

	result.Stage = c.weights.Resolve(stage)
	result.Overall = c.weights.Overall(result.Scores, stage)
	return result
}

// Weights exposes the stage profile table.
func (c *Calculator) Weights() StageWeights {
	return c.weights
}

// Members returns the normalizers configured for p.
func (c *Calculator) Members(p Pillar) []Normalizer {
	return append([]Normalizer(nil), c.pillars[p]...)
}

func isPillar(p Pillar) bool {
	for _, known := range Pillars {
		if p == known {
			return true
		}
	}
	return false
}

func minmax(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return x
	}
	return clip((x-lo)/(hi-lo), 0, 1)
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
