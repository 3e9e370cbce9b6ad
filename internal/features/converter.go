package features

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Report records how raw input was projected onto the catalog. It is
// diagnostic only.
type Report struct {
	Defaulted []string `json:"defaulted"`
	Coerced   []string `json:"coerced"`
	Rescaled  []string `json:"rescaled"`
	Ignored   []string `json:"ignored"`
}

// Supplied is the number of canonical fields the client provided.
func (r Report) Supplied() int {
	return Count - len(r.Defaulted)
}

var categoryAliases = map[string]map[string]string{
	FundingStage: {
		"preseed":   StagePreSeed,
		"pre_seed":  StagePreSeed,
		"angel":     StagePreSeed,
		"series_a":  StageSeriesA,
		"seriesa":   StageSeriesA,
		"a":         StageSeriesA,
		"series_b":  StageSeriesB,
		"seriesb":   StageSeriesB,
		"b":         StageSeriesB,
		"series_c":  StageSeriesC,
		"seriesc":   StageSeriesC,
		"c":         StageSeriesC,
		"series_c+": StageSeriesC,
		"series_d":  StageSeriesC,
		"growth":    StageSeriesC,
	},
	"investor_tier_primary": {
		"tier1":   "tier_1",
		"tier2":   "tier_2",
		"tier3":   "tier_3",
		"1":       "tier_1",
		"2":       "tier_2",
		"3":       "tier_3",
		"angels":  "angel",
		"":        "none",
		"unknown": "none",
	},
	"product_stage": {
		"idea":      "concept",
		"prototype": "concept",
		"alpha":     "mvp",
		"beta_test": "beta",
		"ga":        "launched",
		"live":      "launched",
		"launch":    "launched",
		"scaling":   "growth",
		"mature":    "growth",
	},
	"sector": {
		"ai":                      "ai_ml",
		"ml":                      "ai_ml",
		"artificial_intelligence": "ai_ml",
		"health":                  "healthtech",
		"healthcare":              "healthtech",
		"fin_tech":                "fintech",
		"e_commerce":              "ecommerce",
		"retail":                  "ecommerce",
		"b2b_saas":                "saas",
		"software":                "saas",
		"education":               "edtech",
		"deep_tech":               "deeptech",
		"b2c":                     "consumer",
		"b2b":                     "enterprise",
	},
}

// Convert projects loosely typed client input onto the canonical catalog.
// Absent or unusable fields take their defaults; unknown keys are dropped.
func Convert(raw map[string]any) (Vector, Report) {
	v := Defaults()
	var report Report

	for key := range raw {
		if !IsCanonical(key) {
			report.Ignored = append(report.Ignored, key)
		}
	}

	for _, f := range catalog {
		in, present := raw[f.Name]
		if !present || in == nil {
			report.Defaulted = append(report.Defaulted, f.Name)
			continue
		}

		var (
			value    float64
			ok       bool
			rescaled bool
		)
		switch f.Kind {
		case KindCategorical:
			value, ok = convertCategorical(f, in)
		case KindBoolean:
			value, ok = convertBool(in)
		default:
			value, rescaled, ok = convertNumber(f, in)
		}

		if !ok {
			report.Coerced = append(report.Coerced, f.Name)
			continue
		}
		if rescaled {
			report.Rescaled = append(report.Rescaled, f.Name)
		}
		v.values[f.Name] = value
	}

	sort.Strings(report.Ignored)
	return v, report
}

// NormalizeCategory lower-cases and snake-cases a category label.
func NormalizeCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_", "/", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}

func convertCategorical(f Feature, in any) (float64, bool) {
	switch t := in.(type) {
	case string:
		label := NormalizeCategory(t)
		if alias, ok := categoryAliases[f.Name][label]; ok {
			label = alias
		}
		code, ok := f.CategoryCode(label)
		if !ok {
			return 0, false
		}
		return float64(code), true
	default:
		n, ok := asFloat(in)
		// bounded in float; int() of a huge value is implementation defined
		if !ok || n != math.Trunc(n) || n < 0 || n >= float64(len(f.Categories)) {
			return 0, false
		}
		return n, true
	}
}

func convertBool(in any) (float64, bool) {
	switch t := in.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "on", "1", "t":
			return 1, true
		case "false", "no", "n", "off", "0", "f":
			return 0, true
		}
		return 0, false
	default:
		n, ok := asFloat(in)
		if !ok {
			return 0, false
		}
		switch n {
		case 1:
			return 1, true
		case 0:
			return 0, true
		}
		return 0, false
	}
}

func convertNumber(f Feature, in any) (value float64, rescaled, ok bool) {
	hadPercent := false
	switch t := in.(type) {
	case string:
		hadPercent = strings.Contains(t, "%")
		value, ok = parseNumeric(t)
	case bool:
		value, ok = 0, true
		if t {
			value = 1
		}
	default:
		value, ok = asFloat(in)
	}
	if !ok {
		return 0, false, false
	}

	if f.Unit == UnitFraction && (hadPercent || (value > 1 && value <= 100)) {
		value /= 100
		rescaled = true
	}
	if f.Kind == KindInteger {
		value = math.Round(value)
	}
	return value, rescaled, true
}

var numericNoise = strings.NewReplacer("%", "", "$", "", ",", "", "_", "", " ", "", "\t", "")

func parseNumeric(s string) (float64, bool) {
	s = numericNoise.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func asFloat(in any) (float64, bool) {
	var n float64
	switch t := in.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case uint:
		n = float64(t)
	case uint32:
		n = float64(t)
	case uint64:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		return parseNumeric(t)
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
