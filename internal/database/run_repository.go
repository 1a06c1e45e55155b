package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/epitrack/epitrack/internal/models"
)

// Run statuses recorded in forecast_runs.
const (
	RunStatusPending   = "pending"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunRepository persists forecast run history.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a run repository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a pending run and returns its ID. Config is stored as JSONB
// so the run history shows exactly what was requested.
func (r *RunRepository) Create(ctx context.Context, run models.ForecastRun) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunStatusPending
	}

	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run config: %w", err)
	}

	query := `
		INSERT INTO forecast_runs (id, country, target, config, series_start, series_end, series_len, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID, run.Country, run.Target, configJSON,
		nullTime(run.SeriesStart), nullTime(run.SeriesEnd), run.SeriesLen,
		run.Status, run.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create forecast run: %w", err)
	}

	return run.ID, nil
}

// Complete marks a run completed and attaches its result.
func (r *RunRepository) Complete(ctx context.Context, runID string, result *models.ForecastResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run result: %w", err)
	}

	query := `
		UPDATE forecast_runs
		SET status = $1, result = $2, error_message = NULL, completed_at = $3
		WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query, RunStatusCompleted, resultJSON, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("failed to complete forecast run: %w", err)
	}
	return requireRow(res, "forecast run")
}

// Fail marks a run failed with the error that stopped it.
func (r *RunRepository) Fail(ctx context.Context, runID, errorMsg string) error {
	query := `
		UPDATE forecast_runs
		SET status = $1, error_message = $2, completed_at = $3
		WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query, RunStatusFailed, errorMsg, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("failed to mark forecast run failed: %w", err)
	}
	return requireRow(res, "forecast run")
}

// GetByID retrieves one run. Returns nil when the run does not exist.
func (r *RunRepository) GetByID(ctx context.Context, runID string) (*models.ForecastRun, error) {
	query := `
		SELECT id, country, target, config, series_start, series_end, series_len, status, error_message, result, created_at
		FROM forecast_runs
		WHERE id = $1
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get forecast run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, optionally filtered by country.
func (r *RunRepository) List(ctx context.Context, country string, limit int) ([]models.ForecastRun, error) {
	if limit < 1 {
		limit = 20
	}

	query := `
		SELECT id, country, target, config, series_start, series_end, series_len, status, error_message, result, created_at
		FROM forecast_runs
		WHERE ($1 = '' OR country = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, country, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list forecast runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ForecastRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan forecast run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating forecast runs: %w", err)
	}

	return runs, nil
}

// DeleteOlderThan removes runs created before the cutoff and returns the
// number deleted. Used by the scheduler's retention sweep.
func (r *RunRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM forecast_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old forecast runs: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.ForecastRun, error) {
	var run models.ForecastRun
	var configJSON, resultJSON []byte
	var seriesStart, seriesEnd sql.NullTime
	var errorMsg sql.NullString

	err := row.Scan(
		&run.ID, &run.Country, &run.Target, &configJSON,
		&seriesStart, &seriesEnd, &run.SeriesLen,
		&run.Status, &errorMsg, &resultJSON, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(configJSON, &run.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run config: %w", err)
	}
	if len(resultJSON) > 0 {
		var result models.ForecastResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run result: %w", err)
		}
		run.Result = &result
	}
	if seriesStart.Valid {
		run.SeriesStart = seriesStart.Time
	}
	if seriesEnd.Valid {
		run.SeriesEnd = seriesEnd.Time
	}
	if errorMsg.Valid {
		run.Error = errorMsg.String
	}

	return &run, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func requireRow(res sql.Result, what string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s not found", what)
	}
	return nil
}
