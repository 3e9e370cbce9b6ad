package scoring

import (
	"fmt"
	"math"
)

// Verdict is the business recommendation derived from a probability
type Verdict string

const (
	VerdictPass            Verdict = "PASS"
	VerdictConditionalPass Verdict = "CONDITIONAL PASS"
	VerdictFail            Verdict = "FAIL"
)

// Strength qualifies a verdict
type Strength string

const (
	StrengthStrong   Strength = "Strong"
	StrengthModerate Strength = "Moderate"
	StrengthWeak     Strength = "Weak"
)

// Precision is the number of decimals probabilities are rounded to before banding.
const Precision = 3

// Band is the half-open interval [Min, previous band's Min)
type Band struct {
	Min      float64  `yaml:"min" json:"min"`
	Verdict  Verdict  `yaml:"verdict" json:"verdict"`
	Strength Strength `yaml:"strength" json:"strength"`
}

// Bands is evaluated top-down; the first band whose Min is reached wins.
type Bands []Band

// DefaultBands returns the standard verdict table.
func DefaultBands() Bands {
	return Bands{
		{Min: 0.80, Verdict: VerdictPass, Strength: StrengthStrong},
		{Min: 0.70, Verdict: VerdictPass, Strength: StrengthModerate},
		{Min: 0.60, Verdict: VerdictConditionalPass, Strength: StrengthModerate},
		{Min: 0.50, Verdict: VerdictConditionalPass, Strength: StrengthWeak},
		{Min: 0, Verdict: VerdictFail, Strength: StrengthWeak},
	}
}

// Validate requires strictly descending bounds inside [0,1] ending at a 0 floor.
func (b Bands) Validate() error {
	if len(b) == 0 {
		return fmt.Errorf("verdict bands are empty")
	}
	for i, band := range b {
		if band.Min < 0 || band.Min > 1 {
			return fmt.Errorf("verdict band %d: min %.3f outside [0,1]", i, band.Min)
		}
		if band.Verdict == "" || band.Strength == "" {
			return fmt.Errorf("verdict band %d: verdict and strength are required", i)
		}
		if i > 0 && band.Min >= b[i-1].Min {
			return fmt.Errorf("verdict band %d: bounds must be strictly descending", i)
		}
	}
	if b[len(b)-1].Min != 0 {
		return fmt.Errorf("last verdict band must start at 0")
	}
	return nil
}

// Classify rounds p and returns the verdict of the first band it reaches.
func (b Bands) Classify(p float64) (Verdict, Strength) {
	p = Round(p)
	for _, band := range b {
		if p >= band.Min {
			return band.Verdict, band.Strength
		}
	}
	last := b[len(b)-1]
	return last.Verdict, last.Strength
}

// Classify bands p against the default table.
func Classify(p float64) (Verdict, Strength) {
	return defaultBands.Classify(p)
}

var defaultBands = DefaultBands()

// Round rounds p to Precision decimals.
func Round(p float64) float64 {
	scale := math.Pow(10, Precision)
	return math.Round(p*scale) / scale
}
