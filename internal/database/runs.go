package database

import (
	"database/sql"
	"fmt"

	"investsql/internal/models"
)

// RecordRun stores a generation run and its warnings in one transaction
func (db *DB) RecordRun(run *models.Run) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO runs (run_id, csv_path, output_path, output_sha256, rows_total,
			unique_investors, investments, total_amount, pool_mode, pool_ref, archive_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.CSVPath, run.OutputPath, run.OutputSHA256, run.Rows,
		run.UniqueInvestors, run.Investments, run.TotalAmount, run.PoolMode, run.PoolRef, run.ArchiveName)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	for _, w := range run.Warnings {
		_, err := tx.Exec(`
			INSERT INTO run_warnings (run_id, row_number, field, message)
			VALUES (?, ?, ?, ?)
		`, id, w.Row, w.Field, w.Message)
		if err != nil {
			return 0, fmt.Errorf("insert warning: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	run.ID = id
	return id, nil
}

// ListRuns returns the most recent runs first, without warnings
func (db *DB) ListRuns(limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, run_id, csv_path, output_path, output_sha256, rows_total,
			unique_investors, investments, total_amount, pool_mode, pool_ref, archive_name, created_at
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var r models.Run
		if err := rows.Scan(&r.ID, &r.RunID, &r.CSVPath, &r.OutputPath, &r.OutputSHA256, &r.Rows,
			&r.UniqueInvestors, &r.Investments, &r.TotalAmount, &r.PoolMode, &r.PoolRef, &r.ArchiveName, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a run by its run_id, including warnings
func (db *DB) GetRun(runID string) (*models.Run, error) {
	var r models.Run
	err := db.QueryRow(`
		SELECT id, run_id, csv_path, output_path, output_sha256, rows_total,
			unique_investors, investments, total_amount, pool_mode, pool_ref, archive_name, created_at
		FROM runs
		WHERE run_id = ?
	`, runID).Scan(&r.ID, &r.RunID, &r.CSVPath, &r.OutputPath, &r.OutputSHA256, &r.Rows,
		&r.UniqueInvestors, &r.Investments, &r.TotalAmount, &r.PoolMode, &r.PoolRef, &r.ArchiveName, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	rows, err := db.Query(`
		SELECT row_number, field, message
		FROM run_warnings
		WHERE run_id = ?
		ORDER BY id
	`, r.ID)
	if err != nil {
		return nil, fmt.Errorf("query warnings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var w models.Warning
		if err := rows.Scan(&w.Row, &w.Field, &w.Message); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		r.Warnings = append(r.Warnings, w)
	}
	return &r, rows.Err()
}

// PruneRuns deletes all but the keep most recent runs and returns the
// deleted ones. Their warnings go with them.
func (db *DB) PruneRuns(keep int) ([]models.Run, error) {
	if keep < 0 {
		keep = 0
	}
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, run_id, archive_name
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT -1 OFFSET ?
	`, keep)
	if err != nil {
		return nil, fmt.Errorf("query old runs: %w", err)
	}
	var old []models.Run
	for rows.Next() {
		var r models.Run
		if err := rows.Scan(&r.ID, &r.RunID, &r.ArchiveName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		old = append(old, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range old {
		if _, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, r.ID); err != nil {
			return nil, fmt.Errorf("delete run: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return old, nil
}
