package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/scoring"
)

// timeLayout is fixed width so created_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrPredictionNotFound is returned when no prediction has the requested id
var ErrPredictionNotFound = errors.New("prediction not found")

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SavePrediction inserts rec. Saving the same id twice is an error.
func (r *Repository) SavePrediction(ctx context.Context, rec *PredictionRecord) error {
	stmt, err := r.db.Statement(stmtInsertPrediction)
	if err != nil {
		return err
	}

	pillars, err := json.Marshal(rec.PillarScores)
	if err != nil {
		return fmt.Errorf("failed to encode pillar scores: %w", err)
	}
	predictions, err := json.Marshal(finite(rec.ModelPredictions))
	if err != nil {
		return fmt.Errorf("failed to encode model predictions: %w", err)
	}
	values, err := json.Marshal(finite(rec.Features))
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}
	excluded, err := nullableJSON(rec.ExcludedModels, len(rec.ExcludedModels) == 0)
	if err != nil {
		return fmt.Errorf("failed to encode excluded models: %w", err)
	}
	report, err := nullableJSON(rec.Conversion, rec.Conversion == nil)
	if err != nil {
		return fmt.Errorf("failed to encode conversion report: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = stmt.ExecContext(ctx,
		rec.ID, rec.ModelVersion, rec.Stage, rec.SuccessProbability,
		string(rec.Verdict), string(rec.Strength), rec.Confidence, rec.OverallScore,
		rec.Degraded, rec.ModelsUsed, rec.ModelsTotal, string(pillars),
		string(predictions), excluded, string(values), report,
		rec.ClientIP, createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}

	return nil
}

// GetPrediction loads a single prediction by id
func (r *Repository) GetPrediction(ctx context.Context, id string) (*PredictionRecord, error) {
	stmt, err := r.db.Statement(stmtGetPrediction)
	if err != nil {
		return nil, err
	}

	rec, err := scanPrediction(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPredictionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction: %w", err)
	}

	return rec, nil
}

// ListPredictions returns the most recent predictions, newest first
func (r *Repository) ListPredictions(ctx context.Context, opts ListOptions) ([]*PredictionRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if opts.Verdict != "" {
		stmt, serr := r.db.Statement(stmtListByVerdict)
		if serr != nil {
			return nil, serr
		}
		rows, err = stmt.QueryContext(ctx, string(opts.Verdict), opts.limit())
	} else {
		stmt, serr := r.db.Statement(stmtListPredictions)
		if serr != nil {
			return nil, serr
		}
		rows, err = stmt.QueryContext(ctx, opts.limit())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	records := make([]*PredictionRecord, 0, opts.limit())
	for rows.Next() {
		rec, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CountByVerdict returns how many stored predictions fell into each verdict
func (r *Repository) CountByVerdict(ctx context.Context) (map[scoring.Verdict]int, error) {
	stmt, err := r.db.Statement(stmtCountByVerdict)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}
	defer rows.Close()

	counts := make(map[scoring.Verdict]int)
	for rows.Next() {
		var (
			verdict string
			count   int
		)
		if err := rows.Scan(&verdict, &count); err != nil {
			return nil, fmt.Errorf("failed to scan verdict count: %w", err)
		}
		counts[scoring.Verdict(verdict)] = count
	}

	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row scanner) (*PredictionRecord, error) {
	var (
		rec                          PredictionRecord
		verdict, strength, createdAt string
		pillars, predictions, values string
		excluded, report, clientIP   sql.NullString
	)

	err := row.Scan(
		&rec.ID, &rec.ModelVersion, &rec.Stage, &rec.SuccessProbability,
		&verdict, &strength, &rec.Confidence, &rec.OverallScore,
		&rec.Degraded, &rec.ModelsUsed, &rec.ModelsTotal, &pillars,
		&predictions, &excluded, &values, &report,
		&clientIP, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Verdict = scoring.Verdict(verdict)
	rec.Strength = scoring.Strength(strength)
	rec.ClientIP = clientIP.String

	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if err := json.Unmarshal([]byte(pillars), &rec.PillarScores); err != nil {
		return nil, fmt.Errorf("invalid pillar_scores: %w", err)
	}
	if err := json.Unmarshal([]byte(predictions), &rec.ModelPredictions); err != nil {
		return nil, fmt.Errorf("invalid model_predictions: %w", err)
	}
	if err := json.Unmarshal([]byte(values), &rec.Features); err != nil {
		return nil, fmt.Errorf("invalid features: %w", err)
	}
	if excluded.Valid {
		if err := json.Unmarshal([]byte(excluded.String), &rec.ExcludedModels); err != nil {
			return nil, fmt.Errorf("invalid excluded_models: %w", err)
		}
	}
	if report.Valid {
		rec.Conversion = &features.Report{}
		if err := json.Unmarshal([]byte(report.String), rec.Conversion); err != nil {
			return nil, fmt.Errorf("invalid conversion_report: %w", err)
		}
	}

	return &rec, nil
}

func nullableJSON(v any, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// finite drops NaN and infinite values, which JSON cannot carry.
func finite(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[k] = v
	}
	return out
}
