package candidate_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkest/parkest/internal/candidate"
	"github.com/parkest/parkest/internal/database"
	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
	"github.com/parkest/parkest/internal/planner"
)

var marienplatz = geo.Coordinate{Lat: 48.13743, Lon: 11.57549}

type repository interface {
	planner.CandidateSource
	Upsert(ctx context.Context, c parking.Candidate) error
}

func ids(cands []parking.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ID
	}
	return out
}

func repositories(t *testing.T) map[string]repository {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, database.SQLiteConfig{Path: filepath.Join(t.TempDir(), "candidates.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.MigrateSQLite(ctx, db))

	return map[string]repository{
		"memory": candidate.NewInMemoryRepository(),
		"sqlite": candidate.NewSQLiteRepository(db),
	}
}

func TestRepositories_FetchNear(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed := candidate.MunichSeed()
			seed[1].SearchDelayMinutes = parking.Float(7.5)
			for _, c := range seed {
				require.NoError(t, repo.Upsert(ctx, c))
			}

			got, err := repo.FetchNear(ctx, marienplatz, 450)
			require.NoError(t, err)
			assert.Equal(t, []string{"muc-002", "muc-001"}, ids(got))

			require.NotNil(t, got[0].SearchDelayMinutes)
			assert.InDelta(t, 7.5, *got[0].SearchDelayMinutes, 1e-9)
			assert.Nil(t, got[1].SearchDelayMinutes, "unknown delay stays nil")
			assert.Equal(t, "Tiefgarage Marienplatz", got[0].Label)
			assert.Equal(t, 362, got[1].Capacity)

			wide, err := repo.FetchNear(ctx, marienplatz, 2000)
			require.NoError(t, err)
			assert.Len(t, wide, 6)

			none, err := repo.FetchNear(ctx, geo.Coordinate{Lat: 52.52, Lon: 13.405}, 1000)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestRepositories_UpsertReplaces(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			spot := parking.Candidate{ID: "p1", Capacity: 10, Coordinate: marienplatz, SearchDelayMinutes: parking.Float(3)}
			require.NoError(t, repo.Upsert(ctx, spot))

			spot.Capacity = 25
			spot.SearchDelayMinutes = nil
			require.NoError(t, repo.Upsert(ctx, spot))

			got, err := repo.FetchNear(ctx, marienplatz, 10)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, 25, got[0].Capacity)
			assert.Nil(t, got[0].SearchDelayMinutes)

			err = repo.Upsert(ctx, parking.Candidate{ID: "bad", Capacity: -1, Coordinate: marienplatz})
			assert.ErrorIs(t, err, parking.ErrInvalidCapacity)
		})
	}
}

func TestRepositories_InvalidQuery(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.FetchNear(context.Background(), geo.Coordinate{Lat: 91}, 100)
			assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)

			_, err = repo.FetchNear(context.Background(), marienplatz, 0)
			assert.ErrorIs(t, err, candidate.ErrInvalidRadius)
		})
	}
}

func TestInMemoryRepository_ResultsAreCopies(t *testing.T) {
	repo := candidate.NewInMemoryRepository(parking.Candidate{ID: "p1", Capacity: 5, Coordinate: marienplatz, SearchDelayMinutes: parking.Float(4)})

	first, err := repo.FetchNear(context.Background(), marienplatz, 50)
	require.NoError(t, err)
	*first[0].SearchDelayMinutes = 99

	second, err := repo.FetchNear(context.Background(), marienplatz, 50)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, *second[0].SearchDelayMinutes, 1e-9)
}

func TestInMemoryRepository_CapsResults(t *testing.T) {
	repo := candidate.NewInMemoryRepository()
	for i := 0; i < candidate.MaxResults+10; i++ {
		c := parking.Candidate{
			ID:         strings.Repeat("x", i+1),
			Capacity:   10,
			Coordinate: geo.Coordinate{Lat: marienplatz.Lat + float64(i)*1e-5, Lon: marienplatz.Lon},
		}
		require.NoError(t, repo.Upsert(context.Background(), c))
	}

	got, err := repo.FetchNear(context.Background(), marienplatz, 5000)
	require.NoError(t, err)
	assert.Len(t, got, candidate.MaxResults)
	assert.Equal(t, "x", got[0].ID)
}

func TestDecodeSeed(t *testing.T) {
	input := `[
		{"id": "a", "label": "A", "parking_type": "garage", "capacity": 100, "latitude": 48.1, "longitude": 11.5},
		{"id": "b", "capacity": 12, "latitude": 48.2, "longitude": 11.6, "search_delay_minutes": 8}
	]`
	spots, err := candidate.DecodeSeed(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, spots, 2)
	assert.Equal(t, "garage", spots[0].Type)
	assert.Nil(t, spots[0].SearchDelayMinutes)
	assert.InDelta(t, 8.0, *spots[1].SearchDelayMinutes, 1e-9)

	_, err = candidate.DecodeSeed(strings.NewReader(`[{"id": "c", "capacity": -4, "latitude": 0, "longitude": 0}]`))
	assert.ErrorIs(t, err, parking.ErrInvalidCapacity)

	_, err = candidate.DecodeSeed(strings.NewReader(`{`))
	assert.Error(t, err)
}
