package features

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	cat := Catalog()
	require.Len(t, cat, Count)

	seen := make(map[string]bool)
	for _, f := range cat {
		assert.False(t, seen[f.Name], "duplicate feature %s", f.Name)
		seen[f.Name] = true

		if f.Kind == KindCategorical {
			require.NotEmpty(t, f.Categories, f.Name)
			assert.Less(t, int(f.Default), len(f.Categories), f.Name)
		}
	}

	f, ok := Lookup("runway_months")
	require.True(t, ok)
	assert.Equal(t, 12.0, f.Default)

	_, ok = Lookup("not_a_feature")
	assert.False(t, ok)
	assert.Equal(t, Names()[0], FundingStage)
}

func TestConvertEmptyInput(t *testing.T) {
	v, report := Convert(map[string]any{})

	assert.Equal(t, Count, v.Len())
	assert.Len(t, report.Defaulted, Count)
	assert.Zero(t, report.Supplied())
	assert.Equal(t, StageSeed, v.Stage())

	runway, ok := v.Get("runway_months")
	require.True(t, ok)
	assert.Equal(t, 12.0, runway)
}

func TestConvertCategorical(t *testing.T) {
	tests := []struct {
		name     string
		feature  string
		input    any
		expected string
		coerced  bool
	}{
		{name: "title case stage", feature: FundingStage, input: "Series A", expected: StageSeriesA},
		{name: "hyphenated stage", feature: FundingStage, input: "Pre-Seed", expected: StagePreSeed},
		{name: "compact alias", feature: FundingStage, input: "preseed", expected: StagePreSeed},
		{name: "padded value", feature: FundingStage, input: "  series_b ", expected: StageSeriesB},
		{name: "numeric code", feature: FundingStage, input: 4.0, expected: StageSeriesC},
		{name: "unknown stage falls back", feature: FundingStage, input: "series z", expected: StageSeed, coerced: true},
		{name: "out of range code", feature: FundingStage, input: 9, expected: StageSeed, coerced: true},
		{name: "huge code", feature: FundingStage, input: 1e19, expected: StageSeed, coerced: true},
		{name: "huge sector code", feature: "sector", input: 1e300, expected: "other", coerced: true},
		{name: "fractional code", feature: FundingStage, input: 1.5, expected: StageSeed, coerced: true},
		{name: "product alias", feature: "product_stage", input: "GA", expected: "launched"},
		{name: "sector alias", feature: "sector", input: "AI", expected: "ai_ml"},
		{name: "investor tier", feature: "investor_tier_primary", input: "Tier 1", expected: "tier_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, report := Convert(map[string]any{tt.feature: tt.input})
			assert.Equal(t, tt.expected, v.Category(tt.feature))

			f, _ := Lookup(tt.feature)
			code, _ := v.Get(tt.feature)
			require.Less(t, code, float64(len(f.Categories)))
			assert.Equal(t, tt.expected, f.Categories[int(code)])
			if tt.coerced {
				assert.Contains(t, report.Coerced, tt.feature)
			} else {
				assert.NotContains(t, report.Coerced, tt.feature)
			}
		})
	}
}

func TestConvertBoolean(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected float64
	}{
		{"bool true", true, 1},
		{"bool false", false, 0},
		{"string true", "true", 1},
		{"string yes", "Yes", 1},
		{"string y", "y", 1},
		{"string on", "on", 1},
		{"int one", 1, 1},
		{"string one", "1", 1},
		{"string no", "no", 0},
		{"float zero", 0.0, 0},
		{"garbage keeps default", "maybe", 0},
		{"two keeps default", 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := Convert(map[string]any{"has_data_moat": tt.input})
			got, _ := v.Get("has_data_moat")
			assert.Equal(t, tt.expected, got)
		})
	}

	// default for key_person_dependency is 1, so garbage must not flip it
	v, report := Convert(map[string]any{"key_person_dependency": "sometimes"})
	got, _ := v.Get("key_person_dependency")
	assert.Equal(t, 1.0, got)
	assert.Contains(t, report.Coerced, "key_person_dependency")
}

func TestConvertNumeric(t *testing.T) {
	tests := []struct {
		name     string
		feature  string
		input    any
		expected float64
	}{
		{"json float", "runway_months", 18.0, 18},
		{"json number", "runway_months", json.Number("24"), 24},
		{"go int", "team_size_full_time", 25, 25},
		{"currency string", "total_capital_raised_usd", "$5,000,000", 5_000_000},
		{"underscored string", "annual_revenue_run_rate", "2_000_000", 2_000_000},
		{"percent string", "gross_margin_percent", "70%", 70},
		{"fraction percent string", "product_retention_30d", "45%", 0.45},
		{"fraction given as percent", "product_retention_90d", 35.0, 0.35},
		{"fraction already scaled", "dau_mau_ratio", 0.4, 0.4},
		{"integer rounding", "founders_count", 2.6, 3},
		{"garbage falls back", "runway_months", "a while", 12},
		{"nan falls back", "runway_months", math.NaN(), 12},
		{"inf falls back", "runway_months", math.Inf(1), 12},
		{"empty string falls back", "runway_months", "", 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := Convert(map[string]any{tt.feature: tt.input})
			got, ok := v.Get(tt.feature)
			require.True(t, ok)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestConvertDropsUnknownKeys(t *testing.T) {
	v, report := Convert(map[string]any{
		"runway_months":   9,
		"favourite_color": "green",
		"ceo_name":        "someone",
	})

	assert.Equal(t, Count, v.Len())
	assert.Equal(t, []string{"ceo_name", "favourite_color"}, report.Ignored)
	_, ok := v.Get("favourite_color")
	assert.False(t, ok)
	assert.Equal(t, 1, report.Supplied())
}

func TestVectorValues(t *testing.T) {
	v, err := FromValues(map[string]float64{"runway_months": 30, "patent_count": 4})
	require.NoError(t, err)

	values, err := v.Values([]string{"patent_count", "runway_months"})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 30}, values)

	_, err = v.Values([]string{"capital_score"})
	assert.Error(t, err)

	_, err = FromValues(map[string]float64{"bogus": 1})
	assert.Error(t, err)
}
