package analysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/models"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/scoring"
)

func reversed(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[len(names)-1-i] = name
	}
	return out
}

func TestAlignCanonicalRoundTrip(t *testing.T) {
	v := scenarioA()
	layout := reversed(features.Names())
	d := models.Descriptor{Name: "rev", FeatureCount: models.LayoutCanonical, Features: layout}

	row, err := Align(v, scoring.PillarScores{}, d)
	require.NoError(t, err)
	require.Len(t, row, models.LayoutCanonical)

	// reading the row back by name reproduces the vector
	back := make(map[string]float64, len(row))
	for i, name := range layout {
		back[name] = row[i]
	}
	if diff := cmp.Diff(v.Map(), back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAlignDefaultLayout(t *testing.T) {
	v := features.Defaults()
	d := models.Descriptor{Name: "plain", FeatureCount: models.LayoutCanonical}

	row, err := Align(v, scoring.PillarScores{}, d)
	require.NoError(t, err)

	want, err := v.Values(features.Names())
	require.NoError(t, err)
	assert.Equal(t, want, row)
}

func TestAlignPillarSuffix(t *testing.T) {
	pillars := scoring.PillarScores{Capital: 0.1, Advantage: 0.2, Market: 0.3, People: 0.4}
	d := models.Descriptor{Name: "meta", FeatureCount: models.LayoutWithPillar}

	row, err := Align(features.Defaults(), pillars, d)
	require.NoError(t, err)
	require.Len(t, row, models.LayoutWithPillar)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, row[models.LayoutCanonical:])
}

func TestAlignRejectsBadLayouts(t *testing.T) {
	names := features.Names()
	duplicate := append([]string(nil), names...)
	duplicate[1] = duplicate[0]
	unknown := append([]string(nil), names...)
	unknown[3] = "twitter_followers"

	tests := []struct {
		name string
		d    models.Descriptor
	}{
		{"unsupported count", models.Descriptor{Name: "x", FeatureCount: 44}},
		{"truncated list", models.Descriptor{Name: "x", FeatureCount: 45, Features: names[:44]}},
		{"duplicate name", models.Descriptor{Name: "x", FeatureCount: 45, Features: duplicate}},
		{"unknown name", models.Descriptor{Name: "x", FeatureCount: 45, Features: unknown}},
		{"pillars out of order", models.Descriptor{Name: "x", FeatureCount: 49, Features: append(append([]string(nil), names...),
			"people_score", "market_score", "advantage_score", "capital_score")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := Align(features.Defaults(), scoring.PillarScores{}, tt.d)
			assert.ErrorIs(t, err, ErrAlignment)
			assert.Nil(t, row)
		})
	}
}

func TestAlignMissingValue(t *testing.T) {
	d := models.Descriptor{Name: "x", FeatureCount: models.LayoutCanonical}
	_, err := Align(features.Vector{}, scoring.PillarScores{}, d)
	assert.ErrorIs(t, err, ErrAlignment)
	assert.Contains(t, err.Error(), "missing from vector")
}
