package trip

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL trip repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Record inserts the trip into history and adds its savings to the user's
// total. Redelivered trips are ignored.
func (r *PostgresRepository) Record(ctx context.Context, t Trip) error {
	if err := t.Validate(); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	insert := `
		INSERT INTO history (
			id, user_id, parking_id, session_id,
			origin_lat, origin_lon, spot_lat, spot_lon,
			destination_lat, destination_lon,
			saved_time, total_minutes, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, insert,
		t.ID, t.UserID, t.ParkingID, t.SessionID,
		t.Origin.Lat, t.Origin.Lon, t.Spot.Lat, t.Spot.Lon,
		t.Destination.Lat, t.Destination.Lon,
		t.SavedMinutes, t.TotalMinutes, t.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	if tag.RowsAffected() == 1 && t.SavedMinutes != nil {
		update := `
			INSERT INTO users (id, saved_time) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET saved_time = users.saved_time + EXCLUDED.saved_time
		`
		if _, err := tx.Exec(ctx, update, t.UserID, *t.SavedMinutes); err != nil {
			return fmt.Errorf("update saved time: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListByUser returns the user's most recent trips, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Trip, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT
			id, user_id, parking_id, session_id,
			origin_lat, origin_lon, spot_lat, spot_lon,
			destination_lat, destination_lon,
			saved_time, total_minutes, timestamp
		FROM history
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []Trip
	for rows.Next() {
		var t Trip
		err := rows.Scan(
			&t.ID, &t.UserID, &t.ParkingID, &t.SessionID,
			&t.Origin.Lat, &t.Origin.Lon, &t.Spot.Lat, &t.Spot.Lon,
			&t.Destination.Lat, &t.Destination.Lon,
			&t.SavedMinutes, &t.TotalMinutes, &t.StartedAt,
		)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// TotalSaved returns the user's cumulative saved minutes.
func (r *PostgresRepository) TotalSaved(ctx context.Context, userID string) (int, error) {
	var saved int
	err := r.pool.QueryRow(ctx, `SELECT saved_time FROM users WHERE id = $1`, userID).Scan(&saved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return saved, nil
}
