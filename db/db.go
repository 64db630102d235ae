package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB wraps the run history database connection
type DB struct {
	conn   *sql.DB
	driver string
}

// NewDB opens the database for driver (postgres or sqlite) and initializes the schema
func NewDB(ctx context.Context, driver, url string) (*DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	case "":
		driver = DriverPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// every connection to :memory: is a separate database
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, driver: driver}

	if err := db.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist
func (db *DB) initSchema(ctx context.Context) error {
	comparisonID := "SERIAL PRIMARY KEY"
	if db.driver == DriverSQLite {
		comparisonID = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	statements := []struct {
		name string
		sql  string
	}{
		{"runs table", `
			CREATE TABLE IF NOT EXISTS runs (
				id VARCHAR(36) PRIMARY KEY,
				snapshot_date VARCHAR(8) NOT NULL,
				status VARCHAR(20) NOT NULL DEFAULT 'in_progress',
				total_products INTEGER NOT NULL DEFAULT 0,
				offending_products INTEGER NOT NULL DEFAULT 0,
				deviated_products INTEGER NOT NULL DEFAULT 0,
				undetermined_products INTEGER NOT NULL DEFAULT 0,
				compliance_rate NUMERIC(7, 2),
				last_error TEXT,
				started_at TIMESTAMP NOT NULL,
				finished_at TIMESTAMP,
				CONSTRAINT valid_status CHECK (status IN ('in_progress', 'done', 'failed'))
			)
		`},
		{"comparisons table", `
			CREATE TABLE IF NOT EXISTS comparisons (
				id ` + comparisonID + `,
				run_id VARCHAR(36) NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				product TEXT NOT NULL,
				retailer VARCHAR(64) NOT NULL,
				retailer_sku VARCHAR(64) NOT NULL,
				manufacturer_price NUMERIC(12, 2) NOT NULL,
				retailer_price NUMERIC(12, 2),
				price_difference NUMERIC(12, 2),
				deviation NUMERIC(9, 4),
				status VARCHAR(20) NOT NULL
			)
		`},
		{"runs index", `CREATE INDEX IF NOT EXISTS idx_runs_snapshot_date ON runs(snapshot_date)`},
		{"comparisons index", `CREATE INDEX IF NOT EXISTS idx_comparisons_run_id ON comparisons(run_id)`},
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}
