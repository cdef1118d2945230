package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/searchlighthq/searchlight/internal/analysis"
)

// Sync status values mirror the lifecycle of one fetch from the
// reporting API: pending until the fetch loop finishes, then completed
// or failed.
const (
	SyncStatusPending   = "pending"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// SyncRecord is one row of sync bookkeeping.
type SyncRecord struct {
	ID           string
	PropertyID   string
	SyncType     string
	StartDate    time.Time
	EndDate      time.Time
	RowsFetched  int
	Status       string
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// StartSync records the beginning of a sync for a property and window
// and returns the record ID for later completion or failure.
func (d *DB) StartSync(ctx context.Context, propertyID, syncType string, window analysis.Window) (string, error) {
	id := uuid.New().String()
	_, err := d.client.ExecContext(ctx, `
		INSERT INTO sync_history (id, property_id, sync_type, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, propertyID, syncType, window.Start, window.End, SyncStatusPending,
	)
	if err != nil {
		return "", fmt.Errorf("start sync record: %w", err)
	}
	return id, nil
}

// CompleteSync marks a sync as finished with the number of rows landed.
func (d *DB) CompleteSync(ctx context.Context, syncID string, rowsFetched int) error {
	_, err := d.client.ExecContext(ctx, `
		UPDATE sync_history
		SET status = $1, rows_fetched = $2, completed_at = NOW()
		WHERE id = $3`,
		SyncStatusCompleted, rowsFetched, syncID,
	)
	if err != nil {
		return fmt.Errorf("complete sync record: %w", err)
	}
	return nil
}

// FailSync marks a sync as failed with the error that stopped it.
func (d *DB) FailSync(ctx context.Context, syncID string, syncErr error) error {
	message := ""
	if syncErr != nil {
		message = syncErr.Error()
	}
	_, err := d.client.ExecContext(ctx, `
		UPDATE sync_history
		SET status = $1, error_message = $2, completed_at = NOW()
		WHERE id = $3`,
		SyncStatusFailed, message, syncID,
	)
	if err != nil {
		return fmt.Errorf("fail sync record: %w", err)
	}
	return nil
}

// LastCompletedSync returns the most recent successful sync for a
// property, or nil when none exists.
func (d *DB) LastCompletedSync(ctx context.Context, propertyID string) (*SyncRecord, error) {
	var record SyncRecord
	var completedAt sql.NullTime
	var errorMessage sql.NullString

	err := d.client.QueryRowContext(ctx, `
		SELECT id, property_id, sync_type, start_date, end_date, rows_fetched, status, error_message, started_at, completed_at
		FROM sync_history
		WHERE property_id = $1 AND status = $2
		ORDER BY completed_at DESC
		LIMIT 1`,
		propertyID, SyncStatusCompleted,
	).Scan(
		&record.ID, &record.PropertyID, &record.SyncType,
		&record.StartDate, &record.EndDate, &record.RowsFetched,
		&record.Status, &errorMessage, &record.StartedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last completed sync: %w", err)
	}

	if errorMessage.Valid {
		record.ErrorMessage = errorMessage.String
	}
	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}
	return &record, nil
}
