//go:build integration

package repository

import (
	"context"
	"testing"

	"recycling-bins/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jackc/pgx/v5/pgxpool"
)

func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	ctx := context.Background()

	// Start PostgreSQL container with PostGIS
	req := testcontainers.ContainerRequest{
		Image:        "postgis/postgis:16-3.4",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	postgresC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		postgresC.Terminate(ctx)
	})

	host, err := postgresC.Host(ctx)
	require.NoError(t, err)

	port, err := postgresC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := "postgres://testuser:testpass@" + host + ":" + port.Port() + "/testdb?sslmode=disable"

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
	})

	return pool
}

func testBins() []models.RecyclingBin {
	return []models.RecyclingBin{
		{CityName: "Tel Aviv", StreetName: "דיזנגוף", BuildingNumber: "50", BinTypeName: "Paper", BinCount: 1, Status: "active", UniqueExternalID: "1001-Paper", Latitude: 32.0776, Longitude: 34.7740},
		{CityName: "Tel Aviv", StreetName: "דיזנגוף", BuildingNumber: "50", BinTypeName: "Glass", BinCount: 2, Status: "active", UniqueExternalID: "1001-Glass", Latitude: 32.0776, Longitude: 34.7740},
		{CityName: "Tel Aviv", StreetName: "אבן גבירול", BinTypeName: "Paper", UniqueExternalID: "1002-Paper", Latitude: 32.0870, Longitude: 34.7818},
		{CityName: "Jerusalem", StreetName: "יפו", BuildingNumber: "97", BinTypeName: "Paper", BinCount: 1, Status: "active", UniqueExternalID: "1001-Paper", Latitude: 31.7857, Longitude: 35.2007},
	}
}

func TestRepository_UpsertBins(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDatabase(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx))

	res, err := repo.UpsertBins(ctx, testBins())
	require.NoError(t, err)
	assert.Equal(t, models.UpsertResult{Upserted: 4}, res)

	// the same external id in another city is a different bin
	n, err := repo.CountBins(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	res, err = repo.UpsertBins(ctx, testBins())
	require.NoError(t, err)
	assert.Equal(t, models.UpsertResult{Matched: 4}, res)

	changed := testBins()
	changed[1].BinCount = 3
	changed[2].Latitude = 32.0871
	res, err = repo.UpsertBins(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, models.UpsertResult{Matched: 4, Modified: 2}, res)

	bins, err := repo.SearchBins(ctx, models.BinFilter{City: "Tel Aviv", BinType: models.BinTypeGlass, Limit: 10})
	require.NoError(t, err)
	require.Len(t, bins, 1)
	assert.Equal(t, 3, bins[0].BinCount)
	assert.Equal(t, "50", bins[0].BuildingNumber)
	assert.InDelta(t, 32.0776, bins[0].Latitude, 1e-9)
	assert.InDelta(t, 34.7740, bins[0].Longitude, 1e-9)

	defaults, err := repo.SearchBins(ctx, models.BinFilter{City: "Tel Aviv", Limit: 10})
	require.NoError(t, err)
	require.Len(t, defaults, 3)
	for _, b := range defaults {
		if b.UniqueExternalID == "1002-Paper" {
			assert.Equal(t, "", b.BuildingNumber)
			assert.Equal(t, 1, b.BinCount)
			assert.Equal(t, "active", b.Status)
		}
	}
}

func TestRepository_FindNearbyBins(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDatabase(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.EnsureSchema(ctx))
	_, err := repo.UpsertBins(ctx, testBins())
	require.NoError(t, err)

	tests := []struct {
		name     string
		radius   float64
		binType  models.BinType
		expected []string
	}{
		{name: "nearest first", radius: 2000, expected: []string{"1001-Paper", "1001-Glass", "1002-Paper"}},
		{name: "by type", radius: 2000, binType: models.BinTypeGlass, expected: []string{"1001-Glass"}},
		{name: "small radius", radius: 50, expected: []string{"1001-Paper", "1001-Glass"}},
		{name: "nothing around", radius: 1, binType: models.BinTypeTextile, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bins, err := repo.FindNearbyBins(ctx, 32.0777, 34.7741, tt.radius, tt.binType, 10)
			require.NoError(t, err)

			ids := []string{}
			for _, b := range bins {
				ids = append(ids, b.UniqueExternalID)
				assert.LessOrEqual(t, b.DistanceMeters, tt.radius)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestRepository_DeleteCity(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDatabase(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.EnsureSchema(ctx))
	_, err := repo.UpsertBins(ctx, testBins())
	require.NoError(t, err)

	deleted, err := repo.DeleteCity(ctx, "Tel Aviv")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	n, err := repo.CountBins(ctx, "Jerusalem")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.CountBins(ctx, "Tel Aviv")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
