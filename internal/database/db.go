package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// FileName is the database file created under the data directory
const FileName = "camp_predictions.db"

// sqlite serialises writers; a small pool keeps busy waits short
const (
	maxOpenConns    = 8
	maxIdleConns    = 2
	connMaxLifetime = 5 * time.Minute
)

// DB is the prediction store: a pooled sqlite handle plus the statements the
// repository runs on every request.
type DB struct {
	*sql.DB
	path string

	mu         sync.RWMutex
	statements map[string]*sql.Stmt
}

// NewDB opens (creating if needed) the prediction store under dataDir and
// brings its schema up to date.
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	path := filepath.Join(dataDir, FileName)
	dsn := "file:" + path + "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000"

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	db := &DB{DB: sqlDB, path: path, statements: make(map[string]*sql.Stmt)}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	if err := db.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := db.prepare(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	version, _ := db.SchemaVersion(ctx)
	slog.Info("Prediction store ready", "path", path, "schema_version", version)
	return db, nil
}

// migrations are applied in order; index i moves the schema to version i+1
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS predictions (
		id                  TEXT PRIMARY KEY,
		model_version       TEXT NOT NULL,
		funding_stage       TEXT NOT NULL,
		success_probability REAL NOT NULL,
		verdict             TEXT NOT NULL,
		strength            TEXT NOT NULL,
		confidence          REAL NOT NULL,
		overall_score       REAL NOT NULL,
		degraded            BOOLEAN NOT NULL DEFAULT FALSE,
		models_used         INTEGER NOT NULL,
		models_total        INTEGER NOT NULL,
		pillar_scores       TEXT NOT NULL,
		model_predictions   TEXT NOT NULL,
		excluded_models     TEXT,
		features            TEXT NOT NULL,
		conversion_report   TEXT,
		client_ip           TEXT,
		created_at          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_verdict ON predictions(verdict)`,
}

// SchemaVersion returns the number of applied migrations
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func (db *DB) migrate(ctx context.Context) error {
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("%s has schema version %d, newer than this binary (%d)", db.path, current, len(migrations))
	}

	for i := current; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bind parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

const (
	stmtInsertPrediction = "insert_prediction"
	stmtGetPrediction    = "get_prediction"
	stmtListPredictions  = "list_predictions"
	stmtListByVerdict    = "list_predictions_by_verdict"
	stmtCountByVerdict   = "count_by_verdict"
)

const predictionColumns = `id, model_version, funding_stage, success_probability, verdict, strength,
	confidence, overall_score, degraded, models_used, models_total, pillar_scores,
	model_predictions, excluded_models, features, conversion_report, client_ip, created_at`

var statementSQL = map[string]string{
	stmtInsertPrediction: `INSERT INTO predictions (` + predictionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	stmtGetPrediction:   `SELECT ` + predictionColumns + ` FROM predictions WHERE id = ?`,
	stmtListPredictions: `SELECT ` + predictionColumns + ` FROM predictions ORDER BY created_at DESC LIMIT ?`,
	stmtListByVerdict: `SELECT ` + predictionColumns + ` FROM predictions
		WHERE verdict = ? ORDER BY created_at DESC LIMIT ?`,
	stmtCountByVerdict: `SELECT verdict, COUNT(*) FROM predictions GROUP BY verdict`,
}

func (db *DB) prepare(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for name, query := range statementSQL {
		stmt, err := db.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", name, err)
		}
		db.statements[name] = stmt
	}
	return nil
}

// Statement returns a prepared statement by name
func (db *DB) Statement(name string) (*sql.Stmt, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stmt, ok := db.statements[name]
	if !ok {
		return nil, fmt.Errorf("no prepared statement %q", name)
	}
	return stmt, nil
}

// GetPoolStats reports connection pool usage for /metrics
func (db *DB) GetPoolStats() map[string]interface{} {
	s := db.Stats()
	return map[string]interface{}{
		"open_connections":     s.OpenConnections,
		"in_use":               s.InUse,
		"idle":                 s.Idle,
		"max_open_connections": s.MaxOpenConnections,
		"wait_count":           s.WaitCount,
		"wait_duration_ms":     s.WaitDuration.Milliseconds(),
	}
}

// Close releases the prepared statements and the pool
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for name, stmt := range db.statements {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.statements = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
