package candidate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
)

// PostgresRepository reads parking spots from the parking table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL candidate repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// FetchNear returns the spots within radiusMeters of destination, nearest first.
func (r *PostgresRepository) FetchNear(ctx context.Context, destination geo.Coordinate, radiusMeters float64) ([]parking.Candidate, error) {
	if err := validateQuery(destination, radiusMeters); err != nil {
		return nil, err
	}
	box := geo.BoundsAround(destination, radiusMeters)

	query := `
		SELECT id, address, label, capacity, latitude, longitude, parking_type, search_delay_minutes
		FROM parking
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
	`

	rows, err := r.pool.Query(ctx, query, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("query parking: %w", err)
	}
	defer rows.Close()

	var spots []parking.Candidate
	for rows.Next() {
		var c parking.Candidate
		err := rows.Scan(
			&c.ID, &c.Address, &c.Label, &c.Capacity,
			&c.Coordinate.Lat, &c.Coordinate.Lon, &c.Type, &c.SearchDelayMinutes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan parking: %w", err)
		}
		spots = append(spots, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parking: %w", err)
	}

	return nearest(destination, radiusMeters, spots), nil
}

// Upsert adds or replaces a spot.
func (r *PostgresRepository) Upsert(ctx context.Context, c parking.Candidate) error {
	if err := c.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO parking (id, address, label, capacity, latitude, longitude, parking_type, search_delay_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			address = EXCLUDED.address,
			label = EXCLUDED.label,
			capacity = EXCLUDED.capacity,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			parking_type = EXCLUDED.parking_type,
			search_delay_minutes = EXCLUDED.search_delay_minutes
	`
	_, err := r.pool.Exec(ctx, query,
		c.ID, c.Address, c.Label, c.Capacity,
		c.Coordinate.Lat, c.Coordinate.Lon, c.Type, c.SearchDelayMinutes,
	)
	if err != nil {
		return fmt.Errorf("upsert parking %s: %w", c.ID, err)
	}
	return nil
}
