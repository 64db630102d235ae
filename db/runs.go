package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"monitor-pricewatch/models"
)

// Run statuses
const (
	RunInProgress = "in_progress"
	RunDone       = "done"
	RunFailed     = "failed"
)

// Run represents one pipeline run stored in database
type Run struct {
	ID                string
	SnapshotDate      string
	Status            string // "in_progress", "done", "failed"
	TotalProducts     int
	OffendingProducts int
	DeviatedProducts  int
	Undetermined      int
	ComplianceRate    decimal.NullDecimal
	LastError         sql.NullString
	StartedAt         time.Time
	FinishedAt        sql.NullTime
}

// CreateRun records the start of a run for a snapshot date
func (db *DB) CreateRun(ctx context.Context, snapshotDate string) (*Run, error) {
	run := &Run{
		ID:           uuid.NewString(),
		SnapshotDate: snapshotDate,
		Status:       RunInProgress,
		StartedAt:    time.Now().UTC(),
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO runs (id, snapshot_date, status, started_at)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.SnapshotDate, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun stores the run's summary and marks it done
func (db *DB) CompleteRun(ctx context.Context, runID string, summary models.Summary) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE runs
		SET status = $1, total_products = $2, offending_products = $3, deviated_products = $4,
			undetermined_products = $5, compliance_rate = $6, finished_at = $7
		WHERE id = $8
	`, RunDone, summary.TotalProducts, summary.TotalOffendingProducts, summary.TotalDeviatedProducts,
		summary.TotalUndetermined, summary.ComplianceRate.StringFixed(2), time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// FailRun marks the run failed with the error that stopped it
func (db *DB) FailRun(ctx context.Context, runID string, runErr error) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE runs
		SET status = $1, last_error = $2, finished_at = $3
		WHERE id = $4
	`, RunFailed, runErr.Error(), time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return nil
}

func nullAmount(v decimal.NullDecimal, places int32) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Decimal.StringFixed(places)
}

// SaveComparisons stores the reconciled rows of a run in one transaction
func (db *DB) SaveComparisons(ctx context.Context, runID string, rows []models.ReconciledRow) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO comparisons (run_id, product, retailer, retailer_sku, manufacturer_price,
			retailer_price, price_difference, deviation, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx, runID, row.Product, row.Retailer, row.RetailerSKU,
			row.ManufacturerPrice.StringFixed(2), nullAmount(row.RetailerPrice, 2),
			nullAmount(row.PriceDifference, 2), nullAmount(row.Deviation, 4), string(row.Status))
		if err != nil {
			return fmt.Errorf("failed to save comparison for %s at %s: %w", row.Product, row.Retailer, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit comparisons: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, snapshot_date, status, total_products, offending_products, deviated_products,
			undetermined_products, compliance_rate, last_error, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.SnapshotDate, &r.Status, &r.TotalProducts, &r.OffendingProducts,
			&r.DeviatedProducts, &r.Undetermined, &r.ComplianceRate, &r.LastError, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetComparisons returns the stored rows of a run ordered by deviation, unknown deviations last
func (db *DB) GetComparisons(ctx context.Context, runID string) ([]models.ReconciledRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT product, retailer, retailer_sku, manufacturer_price, retailer_price,
			price_difference, deviation, status
		FROM comparisons
		WHERE run_id = $1
		ORDER BY deviation IS NULL, deviation, product, retailer
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comparisons: %w", err)
	}
	defer rows.Close()

	var out []models.ReconciledRow
	for rows.Next() {
		var r models.ReconciledRow
		var status string
		if err := rows.Scan(&r.Product, &r.Retailer, &r.RetailerSKU, &r.ManufacturerPrice, &r.RetailerPrice,
			&r.PriceDifference, &r.Deviation, &status); err != nil {
			return nil, fmt.Errorf("failed to scan comparison: %w", err)
		}
		r.Status = models.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}
