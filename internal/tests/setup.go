// Package tests holds end-to-end tests that drive the full router over HTTP.
package tests

import (
	"context"
	"database/sql"
	"fmt"
)

// TruncateTables empties users and data for a clean Postgres test state.
func TruncateTables(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "TRUNCATE TABLE users, data"); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
