package repository

import (
	"context"
	"errors"
	"fmt"

	"recycling-bins/internal/apperr"
	"recycling-bins/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// upsertChunk bounds the number of statements sent in one batch.
const upsertChunk = 500

// Repository implements bin storage on PostgreSQL with PostGIS.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const schemaSQL = `
	CREATE EXTENSION IF NOT EXISTS postgis;

	CREATE TABLE IF NOT EXISTS recycling_bins (
		id BIGSERIAL PRIMARY KEY,
		city_name TEXT NOT NULL,
		street_name TEXT NOT NULL,
		building_number TEXT,
		bin_type_name TEXT NOT NULL,
		bin_count INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'active',
		unique_external_id TEXT NOT NULL,
		geom GEOGRAPHY(POINT, 4326) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (city_name, unique_external_id)
	);

	CREATE INDEX IF NOT EXISTS recycling_bins_geom_idx ON recycling_bins USING GIST (geom);
	CREATE INDEX IF NOT EXISTS recycling_bins_city_type_idx ON recycling_bins (city_name, bin_type_name);
`

// EnsureSchema creates the bins table and its indexes if they are missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return apperr.Persistence("repository: failed to create schema", err)
	}
	return nil
}

// A row is only rewritten when one of its values changed, so re-running an
// unchanged import leaves updated_at alone and reports no modifications.
const upsertSQL = `
	INSERT INTO recycling_bins (
		city_name, street_name, building_number, bin_type_name,
		bin_count, status, unique_external_id, geom
	) VALUES (
		$1, $2, NULLIF($3, ''), $4, $5, $6, $7,
		ST_SetSRID(ST_MakePoint($9, $8), 4326)::geography
	)
	ON CONFLICT (city_name, unique_external_id) DO UPDATE SET
		street_name = EXCLUDED.street_name,
		building_number = EXCLUDED.building_number,
		bin_type_name = EXCLUDED.bin_type_name,
		bin_count = EXCLUDED.bin_count,
		status = EXCLUDED.status,
		geom = EXCLUDED.geom,
		updated_at = now()
	WHERE (
		recycling_bins.street_name,
		recycling_bins.building_number,
		recycling_bins.bin_type_name,
		recycling_bins.bin_count,
		recycling_bins.status,
		ST_X(recycling_bins.geom::geometry),
		ST_Y(recycling_bins.geom::geometry)
	) IS DISTINCT FROM (
		EXCLUDED.street_name,
		EXCLUDED.building_number,
		EXCLUDED.bin_type_name,
		EXCLUDED.bin_count,
		EXCLUDED.status,
		ST_X(EXCLUDED.geom::geometry),
		ST_Y(EXCLUDED.geom::geometry)
	)
	RETURNING (xmax = 0) AS inserted
`

// UpsertBins inserts new bins and updates changed ones, keyed by city and external id.
// Matched counts existing rows, Modified the subset that changed.
func (r *Repository) UpsertBins(ctx context.Context, bins []models.RecyclingBin) (models.UpsertResult, error) {
	var total models.UpsertResult
	for start := 0; start < len(bins); start += upsertChunk {
		res, err := r.upsertChunk(ctx, bins[start:min(start+upsertChunk, len(bins))])
		if err != nil {
			return total, err
		}
		total.Add(res)
	}
	return total, nil
}

func (r *Repository) upsertChunk(ctx context.Context, bins []models.RecyclingBin) (models.UpsertResult, error) {
	var res models.UpsertResult

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return res, apperr.Persistence("repository: failed to begin upsert", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, b := range bins {
		status := b.Status
		if status == "" {
			status = models.StatusActive
		}
		count := b.BinCount
		if count <= 0 {
			count = 1
		}
		batch.Queue(upsertSQL,
			b.CityName, b.StreetName, b.BuildingNumber, b.BinTypeName,
			count, status, b.UniqueExternalID, b.Latitude, b.Longitude,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for _, b := range bins {
		var inserted bool
		err := br.QueryRow().Scan(&inserted)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			res.Matched++
		case err != nil:
			br.Close()
			return models.UpsertResult{}, apperr.Persistence(fmt.Sprintf("repository: failed to upsert %s", b.UniqueExternalID), err)
		case inserted:
			res.Upserted++
		default:
			res.Matched++
			res.Modified++
		}
	}
	if err := br.Close(); err != nil {
		return models.UpsertResult{}, apperr.Persistence("repository: failed to close upsert batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.UpsertResult{}, apperr.Persistence("repository: failed to commit upsert", err)
	}
	return res, nil
}

const binColumns = `
	id,
	city_name,
	street_name,
	COALESCE(building_number, ''),
	bin_type_name,
	bin_count,
	status,
	unique_external_id,
	ST_Y(geom::geometry) AS latitude,
	ST_X(geom::geometry) AS longitude,
	updated_at
`

// SearchBins lists bins matching the filter. Empty filter fields match everything.
func (r *Repository) SearchBins(ctx context.Context, filter models.BinFilter) ([]models.RecyclingBin, error) {
	sql := `
		SELECT ` + binColumns + `
		FROM recycling_bins
		WHERE ($1 = '' OR city_name = $1)
		  AND ($2 = '' OR bin_type_name = $2)
		ORDER BY city_name, street_name, id
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, sql, filter.City, string(filter.BinType), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to execute search query: %w", err)
	}
	defer rows.Close()

	bins := []models.RecyclingBin{}
	for rows.Next() {
		var b models.RecyclingBin
		if err := rows.Scan(binFields(&b)...); err != nil {
			return nil, fmt.Errorf("repository: failed to scan bin: %w", err)
		}
		bins = append(bins, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating rows: %w", err)
	}
	return bins, nil
}

// FindNearbyBins returns the bins within radius meters of the point, nearest first.
func (r *Repository) FindNearbyBins(ctx context.Context, lat, lon, radius float64, binType models.BinType, limit int) ([]models.RecyclingBin, error) {
	sql := `
		SELECT ` + binColumns + `,
			ST_Distance(geom, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography) AS distance
		FROM recycling_bins
		WHERE ST_DWithin(geom, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography, $3)
		  AND ($4 = '' OR bin_type_name = $4)
		ORDER BY distance, id
		LIMIT $5
	`

	rows, err := r.db.Query(ctx, sql, lat, lon, radius, string(binType), limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to execute spatial query: %w", err)
	}
	defer rows.Close()

	bins := []models.RecyclingBin{}
	for rows.Next() {
		var b models.RecyclingBin
		if err := rows.Scan(append(binFields(&b), &b.DistanceMeters)...); err != nil {
			return nil, fmt.Errorf("repository: failed to scan bin: %w", err)
		}
		bins = append(bins, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating rows: %w", err)
	}
	return bins, nil
}

func binFields(b *models.RecyclingBin) []any {
	return []any{
		&b.ID,
		&b.CityName,
		&b.StreetName,
		&b.BuildingNumber,
		&b.BinTypeName,
		&b.BinCount,
		&b.Status,
		&b.UniqueExternalID,
		&b.Latitude,
		&b.Longitude,
		&b.UpdatedAt,
	}
}

// CountBins counts the stored bins, optionally restricted to one city.
func (r *Repository) CountBins(ctx context.Context, city string) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM recycling_bins WHERE ($1 = '' OR city_name = $1)`, city).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to count bins: %w", err)
	}
	return n, nil
}

// DeleteCity removes every bin of a city and reports how many were deleted.
func (r *Repository) DeleteCity(ctx context.Context, city string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM recycling_bins WHERE city_name = $1`, city)
	if err != nil {
		return 0, apperr.Persistence("repository: failed to delete city "+city, err)
	}
	return tag.RowsAffected(), nil
}
