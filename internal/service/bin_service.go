package service

import (
	"context"
	"fmt"
	"math"

	"recycling-bins/internal/apperr"
	"recycling-bins/internal/geo"
	"recycling-bins/internal/models"
)

const (
	DefaultLimit  = 100
	MaxLimit      = 1000
	DefaultRadius = 500.0
	MaxRadius     = 10000.0
)

// BinRepository is the read side of bin storage.
type BinRepository interface {
	SearchBins(ctx context.Context, filter models.BinFilter) ([]models.RecyclingBin, error)
	FindNearbyBins(ctx context.Context, lat, lon, radius float64, binType models.BinType, limit int) ([]models.RecyclingBin, error)
}

// BinService answers bin listing and proximity queries.
type BinService struct {
	repo BinRepository
}

// NewBinService creates a new bin service
func NewBinService(repo BinRepository) *BinService {
	return &BinService{repo: repo}
}

// NearbyQuery asks for bins around a point. Zero Radius and Limit use the defaults.
type NearbyQuery struct {
	Latitude  float64
	Longitude float64
	Radius    float64
	BinType   models.BinType
	Limit     int
}

// ListBins returns stored bins matching the filter.
func (s *BinService) ListBins(ctx context.Context, filter models.BinFilter) ([]models.RecyclingBin, error) {
	if err := validateBinType(filter.BinType); err != nil {
		return nil, err
	}
	limit, err := normalizeLimit(filter.Limit)
	if err != nil {
		return nil, err
	}
	filter.Limit = limit

	bins, err := s.repo.SearchBins(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service: failed to search bins: %w", err)
	}
	return bins, nil
}

// FindNearby returns the bins within the query radius, nearest first.
func (s *BinService) FindNearby(ctx context.Context, q NearbyQuery) ([]models.RecyclingBin, error) {
	if !geo.IsValid(q.Latitude, q.Longitude) {
		return nil, apperr.Validation(fmt.Sprintf("coordinates %f,%f are outside the service area", q.Latitude, q.Longitude))
	}
	if err := validateBinType(q.BinType); err != nil {
		return nil, err
	}

	radius := q.Radius
	switch {
	case radius == 0:
		radius = DefaultRadius
	case math.IsNaN(radius) || radius < 0 || radius > MaxRadius:
		return nil, apperr.Validation(fmt.Sprintf("radius must be between 0 and %.0f meters", MaxRadius))
	}
	limit, err := normalizeLimit(q.Limit)
	if err != nil {
		return nil, err
	}

	bins, err := s.repo.FindNearbyBins(ctx, q.Latitude, q.Longitude, radius, q.BinType, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to find nearby bins: %w", err)
	}
	return bins, nil
}

func validateBinType(t models.BinType) error {
	if t != "" && !t.IsCanonical() {
		return apperr.Validation(fmt.Sprintf("unknown bin type %q", t))
	}
	return nil
}

func normalizeLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return DefaultLimit, nil
	case limit < 0 || limit > MaxLimit:
		return 0, apperr.Validation(fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	default:
		return limit, nil
	}
}
