package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
)

const shippedManifest = "../../models/manifest.yaml"

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeInput(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "company.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestPredictCommand(t *testing.T) {
	input := writeInput(t, `{
		"funding_stage": "series_a",
		"total_capital_raised_usd": 5000000,
		"team_size_full_time": 25,
		"annual_revenue_run_rate": 2000000,
		"revenue_growth_rate_percent": 150,
		"gross_margin_percent": 70,
		"favourite_colour": "blue"
	}`)

	out, err := execute(t, "", "predict", "--manifest", shippedManifest, "--input", input)
	require.NoError(t, err)

	var result struct {
		Probability float64         `json:"success_probability"`
		Verdict     string          `json:"verdict"`
		ModelsUsed  int             `json:"models_used"`
		Conversion  features.Report `json:"conversion"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	assert.InDelta(t, 0.649, result.Probability, 0.002)
	assert.Equal(t, "CONDITIONAL PASS", result.Verdict)
	assert.Equal(t, 4, result.ModelsUsed)
	assert.Contains(t, result.Conversion.Ignored, "favourite_colour")
}

func TestPredictCommandStdinAndStage(t *testing.T) {
	out, err := execute(t, `{"features": {"team_size_full_time": 4}}`,
		"predict", "--manifest", shippedManifest, "--input", "-", "--stage", "Pre-Seed")
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, features.StagePreSeed, result["funding_stage"])
}

func TestPredictCommandErrors(t *testing.T) {
	good := writeInput(t, `{}`)

	tests := []struct {
		name    string
		args    []string
		errText string
	}{
		{"missing input flag", []string{"predict"}, "input"},
		{"unreadable input", []string{"predict", "--manifest", shippedManifest, "--input", "/does/not/exist.json"}, "read input"},
		{"malformed input", []string{"predict", "--manifest", shippedManifest, "--input", writeInput(t, `{"a":`)}, "parse input"},
		{"bad stage", []string{"predict", "--manifest", shippedManifest, "--input", good, "--stage", "series_z"}, "unknown funding stage"},
		{"bad manifest", []string{"predict", "--manifest", "missing.yaml", "--input", good}, "load manifest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "", "validate", "--manifest", shippedManifest)
	require.NoError(t, err)
	assert.Contains(t, out, "version 2024.11.1")
	for _, name := range []string{"dna_pattern", "temporal", "industry", "ensemble_meta"} {
		assert.Contains(t, out, name)
	}
}

func TestValidateCommandRejectsBadWeights(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`version: "x"
models:
  - name: only
    kind: logistic
    path: only.yaml
    feature_count: 45
    weight: 0.5
`), 0o644))

	_, err := execute(t, "", "validate", "--manifest", manifest)
	assert.Error(t, err)
}

func TestFeaturesCommand(t *testing.T) {
	out, err := execute(t, "", "features")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, features.Count+1)
	assert.Contains(t, lines[1], features.Names()[0])

	out, err = execute(t, "", "features", "--json")
	require.NoError(t, err)
	var catalog []features.Feature
	require.NoError(t, json.Unmarshal([]byte(out), &catalog))
	assert.Len(t, catalog, features.Count)
}
