package simdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReportRun records one report generation.
type ReportRun struct {
	ID         uuid.UUID
	Started    time.Time
	Finished   *time.Time
	OutputDir  string
	ConfigJSON string
	Error      string
}

// StartRun records a new report run and returns its ID.
func (db *DB) StartRun(ctx context.Context, outputDir, configJSON string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.ExecContext(ctx, `
		INSERT INTO report_runs (run_id, started_unix_nanos, output_dir, config_json) VALUES (?, ?, ?, ?)`,
		id.String(), db.clock.Now().UnixNano(), outputDir, configJSON)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to record report run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run finished, storing runErr if it failed.
func (db *DB) FinishRun(ctx context.Context, id uuid.UUID, runErr error) error {
	var msg sql.NullString
	if runErr != nil {
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := db.ExecContext(ctx, `
		UPDATE report_runs SET finished_unix_nanos = ?, error = ? WHERE run_id = ?`,
		db.clock.Now().UnixNano(), msg, id.String())
	if err != nil {
		return fmt.Errorf("failed to finish report run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("report run %s not found", id)
	}
	return nil
}

// Runs returns recorded runs, newest first.
func (db *DB) Runs(ctx context.Context, limit int) ([]ReportRun, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, started_unix_nanos, finished_unix_nanos, output_dir, config_json, error
		FROM report_runs ORDER BY started_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query report runs: %w", err)
	}
	defer rows.Close()

	var out []ReportRun
	for rows.Next() {
		var (
			r        ReportRun
			id       string
			started  int64
			finished sql.NullInt64
			cfg, msg sql.NullString
		)
		if err := rows.Scan(&id, &started, &finished, &r.OutputDir, &cfg, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan report run: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("bad run id %q: %w", id, err)
		}
		r.Started = time.Unix(0, started)
		if finished.Valid {
			t := time.Unix(0, finished.Int64)
			r.Finished = &t
		}
		r.ConfigJSON = cfg.String
		r.Error = msg.String
		out = append(out, r)
	}
	return out, rows.Err()
}
