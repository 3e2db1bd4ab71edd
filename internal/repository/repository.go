package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/water-metering-sync/internal/db"
)

// Tx is an alias for pgx.Tx
type Tx = pgx.Tx

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// KnownConnectionIDs returns every pds already present in the clients table
func (r *Repository) KnownConnectionIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT pds FROM clients`)
	if err != nil {
		return nil, fmt.Errorf("failed to query known connections: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan known connections: %w", err)
	}
	return ids, nil
}

// ConsumptionSnapshots returns the latest consumption figures for every
// connection that has at least one reading.
func (r *Repository) ConsumptionSnapshots(ctx context.Context) ([]db.ConsumptionSnapshot, error) {
	query := `
		SELECT pds, last_index, index_daily_differential, index_weekly_differential,
		       last_qmin, qmin_daily_differential, qmin_weekly_differential
		FROM consumption_snapshots
		WHERE last_index IS NOT NULL OR last_qmin IS NOT NULL
		ORDER BY pds
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query consumption snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []db.ConsumptionSnapshot
	for rows.Next() {
		var s db.ConsumptionSnapshot
		if err := rows.Scan(
			&s.PDS,
			&s.LastIndex,
			&s.IndexDailyDifferential,
			&s.IndexWeeklyDifferential,
			&s.LastQmin,
			&s.QminDailyDifferential,
			&s.QminWeeklyDifferential,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return snapshots, nil
}

// AlertRecipients returns the emails of profiles subscribed to the daily
// differential notification.
func (r *Repository) AlertRecipients(ctx context.Context) ([]string, error) {
	query := `
		SELECT email
		FROM profiles
		WHERE daily_differential_warning_notification = TRUE
		ORDER BY email
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert recipients: %w", err)
	}

	emails, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan alert recipients: %w", err)
	}
	return emails, nil
}

// BeginTx starts a new transaction
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}
