package database

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/analysis"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/scoring"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleResult(id string, p float64, createdAt time.Time) *analysis.PredictionResult {
	verdict, strength := scoring.Classify(p)
	return &analysis.PredictionResult{
		PredictionID:       id,
		SuccessProbability: p,
		Verdict:            verdict,
		Strength:           strength,
		PillarScores:       scoring.PillarScores{Capital: 0.5, Advantage: 0.6, Market: 0.7, People: 0.4},
		OverallScore:       0.55,
		Stage:              features.StageSeriesA,
		ModelPredictions:   map[string]float64{"dna_pattern": p, "temporal": p},
		ExcludedModels:     map[string]string{"industry": analysis.ReasonInvocation},
		ModelsUsed:         2,
		ModelsTotal:        3,
		Confidence:         0.6,
		Degraded:           true,
		ModelVersion:       "2024.11.1",
		CreatedAt:          createdAt,
	}
}

func TestSaveAndGetPrediction(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()

	vector, report := features.Convert(map[string]any{"funding_stage": "Series A", "team_size_full_time": "25"})
	created := time.Date(2024, 11, 2, 10, 30, 0, 123, time.UTC)
	rec := NewPredictionRecord(sampleResult("p-1", 0.649, created), vector, report, "10.0.0.1")

	require.NoError(t, repo.SavePrediction(ctx, rec))

	got, err := repo.GetPrediction(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "2024.11.1", got.ModelVersion)
	assert.Equal(t, scoring.VerdictConditionalPass, got.Verdict)
	assert.Equal(t, scoring.StrengthModerate, got.Strength)
	assert.InDelta(t, 0.649, got.SuccessProbability, 1e-9)
	assert.Equal(t, rec.PillarScores, got.PillarScores)
	assert.Equal(t, rec.ModelPredictions, got.ModelPredictions)
	assert.Equal(t, map[string]string{"industry": "invocation"}, got.ExcludedModels)
	assert.Equal(t, 25.0, got.Features["team_size_full_time"])
	assert.Len(t, got.Features, features.Count)
	require.NotNil(t, got.Conversion)
	assert.Equal(t, report.Coerced, got.Conversion.Coerced)
	assert.True(t, got.Degraded)
	assert.Equal(t, "10.0.0.1", got.ClientIP)
	assert.True(t, created.Equal(got.CreatedAt))

	// ids are unique
	assert.Error(t, repo.SavePrediction(ctx, rec))
}

func TestGetPredictionNotFound(t *testing.T) {
	repo := NewRepository(openTestDB(t))

	_, err := repo.GetPrediction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPredictionNotFound)
}

func TestListAndCountPredictions(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)

	probabilities := []float64{0.2, 0.55, 0.72, 0.3, 0.81}
	for i, p := range probabilities {
		rec := NewPredictionRecord(sampleResult(fmt.Sprintf("p-%d", i), p, base.Add(time.Duration(i)*time.Minute)), features.Defaults(), features.Report{}, "")
		require.NoError(t, repo.SavePrediction(ctx, rec))
	}

	recent, err := repo.ListPredictions(ctx, ListOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"p-4", "p-3", "p-2"}, []string{recent[0].ID, recent[1].ID, recent[2].ID})

	passes, err := repo.ListPredictions(ctx, ListOptions{Verdict: scoring.VerdictPass})
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.Equal(t, "p-4", passes[0].ID)

	counts, err := repo.CountByVerdict(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[scoring.Verdict]int{
		scoring.VerdictPass:            2,
		scoring.VerdictConditionalPass: 1,
		scoring.VerdictFail:            2,
	}, counts)
}

func TestListOptionsLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, DefaultListLimit},
		{-4, DefaultListLimit},
		{7, 7},
		{MaxListLimit + 1, MaxListLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ListOptions{Limit: tt.in}.limit(), "limit %d", tt.in)
	}
}

func TestFiniteDropsNonFiniteValues(t *testing.T) {
	got := finite(map[string]float64{"a": 1, "b": math.NaN(), "c": math.Inf(1)})
	assert.Equal(t, map[string]float64{"a": 1}, got)
}

func TestPredictionServiceSummary(t *testing.T) {
	svc := NewPredictionService(NewRepository(openTestDB(t)), nil)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, sampleResult("s-1", 0.75, time.Now()), features.Defaults(), features.Report{}, ""))
	require.NoError(t, svc.Record(ctx, sampleResult("s-2", 0.1, time.Now()), features.Defaults(), features.Report{}, ""))

	got, err := svc.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, scoring.VerdictPass, got.Verdict)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary["total"])
	assert.Equal(t, map[string]int{"PASS": 1, "FAIL": 1}, summary["by_verdict"])

	recent, err := svc.Recent(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
	assert.Equal(t, "s-2", recent[0].ID)
}

func TestPoolStats(t *testing.T) {
	db := openTestDB(t)
	stats := db.GetPoolStats()
	assert.Equal(t, 8, stats["max_open_connections"])

	_, err := db.Statement("nope")
	assert.Error(t, err)
}

func TestMigrationsAreVersioned(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := NewDB(dir)
	require.NoError(t, err)
	v, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
	require.NoError(t, db.Close())

	// reopening applies nothing and keeps the version
	db, err = NewDB(dir)
	require.NoError(t, err)
	v, err = db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)

	// a store written by a newer binary is refused
	_, err = db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", len(migrations)+1))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = NewDB(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than this binary")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"busy", fmt.Errorf("failed to save prediction: %w", sqlite3.Error{Code: sqlite3.ErrBusy}), true},
		{"locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"plain", fmt.Errorf("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}

func TestRecordDoesNotRetryDuplicates(t *testing.T) {
	svc := NewPredictionService(NewRepository(openTestDB(t)), nil)
	ctx := context.Background()
	result := sampleResult("dup-1", 0.7, time.Now())

	require.NoError(t, svc.Record(ctx, result, features.Defaults(), features.Report{}, "10.0.0.1"))

	err := svc.Record(ctx, result, features.Defaults(), features.Report{}, "10.0.0.1")
	require.Error(t, err)
	assert.False(t, isTransient(err))
}
