package candidate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
)

// SQLiteRepository reads parking spots from a SQLite parking table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite candidate repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// FetchNear returns the spots within radiusMeters of destination, nearest first.
func (r *SQLiteRepository) FetchNear(ctx context.Context, destination geo.Coordinate, radiusMeters float64) ([]parking.Candidate, error) {
	if r.db == nil {
		return nil, errors.New("sqlite candidate repository: DB is nil")
	}
	if err := validateQuery(destination, radiusMeters); err != nil {
		return nil, err
	}
	box := geo.BoundsAround(destination, radiusMeters)

	query := `
	SELECT id, address, label, capacity, latitude, longitude, parking_type, search_delay_minutes
	FROM parking
	WHERE latitude BETWEEN ? AND ?
	  AND longitude BETWEEN ? AND ?;
	`
	rows, err := r.db.QueryContext(ctx, query, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("fetch near: query parking table: %w", err)
	}
	defer rows.Close()

	spots := make([]parking.Candidate, 0, 32)
	for rows.Next() {
		var (
			c     parking.Candidate
			delay sql.NullFloat64
		)
		err := rows.Scan(&c.ID, &c.Address, &c.Label, &c.Capacity, &c.Coordinate.Lat, &c.Coordinate.Lon, &c.Type, &delay)
		if err != nil {
			return nil, fmt.Errorf("fetch near: scan row: %w", err)
		}
		if delay.Valid {
			c.SearchDelayMinutes = parking.Float(delay.Float64)
		}
		spots = append(spots, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch near: row iteration: %w", err)
	}

	return nearest(destination, radiusMeters, spots), nil
}

// Upsert adds or replaces a spot.
func (r *SQLiteRepository) Upsert(ctx context.Context, c parking.Candidate) error {
	if err := c.Validate(); err != nil {
		return err
	}

	var delay sql.NullFloat64
	if c.SearchDelayMinutes != nil {
		delay = sql.NullFloat64{Float64: *c.SearchDelayMinutes, Valid: true}
	}

	query := `
	INSERT INTO parking (id, address, label, capacity, latitude, longitude, parking_type, search_delay_minutes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		address = excluded.address,
		label = excluded.label,
		capacity = excluded.capacity,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		parking_type = excluded.parking_type,
		search_delay_minutes = excluded.search_delay_minutes;
	`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.Address, c.Label, c.Capacity, c.Coordinate.Lat, c.Coordinate.Lon, c.Type, delay)
	if err != nil {
		return fmt.Errorf("upsert parking %s: %w", c.ID, err)
	}
	return nil
}
