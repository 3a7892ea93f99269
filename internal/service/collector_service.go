package service

import (
	"context"
	"fmt"
	"time"

	"recycling-bins/internal/apperr"
	"recycling-bins/internal/logger"
	"recycling-bins/internal/models"
	"recycling-bins/internal/normalize"
	"recycling-bins/internal/source"

	"github.com/rs/zerolog"
)

// BinWriter persists collected bins.
type BinWriter interface {
	UpsertBins(ctx context.Context, bins []models.RecyclingBin) (models.UpsertResult, error)
	DeleteCity(ctx context.Context, city string) (int64, error)
}

// SourceReport summarizes one source's collection run.
type SourceReport struct {
	Source   string              `json:"source"`
	City     string              `json:"city"`
	Fetched  int                 `json:"fetched"`
	Valid    int                 `json:"valid"`
	Bins     int                 `json:"bins"`
	Deleted  int64               `json:"deleted,omitempty"`
	Result   models.UpsertResult `json:"result"`
	Duration time.Duration       `json:"duration"`
	Err      error               `json:"-"`
}

// RunOptions tunes a collection run.
type RunOptions struct {
	// Reset deletes a city's stored bins before its fresh data is written.
	Reset bool
}

// CollectorService drives each source through normalization into storage.
type CollectorService struct {
	pipeline *normalize.Pipeline
	repo     BinWriter
	log      zerolog.Logger
}

// NewCollectorService creates a collector writing through repo.
func NewCollectorService(pipeline *normalize.Pipeline, repo BinWriter) *CollectorService {
	return &CollectorService{
		pipeline: pipeline,
		repo:     repo,
		log:      logger.For("collector"),
	}
}

// Run collects the sources one after another. A source that fails to fetch is
// reported and skipped; a storage failure or cancellation stops the run and is returned.
func (s *CollectorService) Run(ctx context.Context, adapters []source.Adapter, opts RunOptions) ([]SourceReport, error) {
	reports := make([]SourceReport, 0, len(adapters))
	for _, a := range adapters {
		report := s.Collect(ctx, a, opts)
		reports = append(reports, report)

		if report.Err == nil {
			continue
		}
		if ctx.Err() != nil {
			return reports, fmt.Errorf("service: collection cancelled: %w", ctx.Err())
		}
		if apperr.KindOf(report.Err) == apperr.KindPersistence {
			return reports, fmt.Errorf("service: collection aborted at %s: %w", a.Name(), report.Err)
		}
	}
	return reports, nil
}

// Collect runs a single source end to end.
func (s *CollectorService) Collect(ctx context.Context, a source.Adapter, opts RunOptions) SourceReport {
	start := time.Now()
	log := logger.ForSource(a.Name(), a.City())
	report := SourceReport{Source: a.Name(), City: a.City()}

	items, err := a.FetchRaw(ctx)
	if err != nil {
		report.Err = err
		report.Duration = time.Since(start)
		log.Error().Err(err).Bool("retryable", apperr.IsRetryable(err)).Msg("fetch failed, skipping source")
		return report
	}
	report.Fetched = len(items)

	var bins []models.RecyclingBin
	for loc := range s.pipeline.Locations(items) {
		report.Valid++
		bins = append(bins, loc.Flatten()...)
	}
	report.Bins = len(bins)

	if opts.Reset {
		if a.City() == "" {
			log.Warn().Msg("source spans several cities, reset skipped")
		} else {
			deleted, err := s.repo.DeleteCity(ctx, a.City())
			if err != nil {
				report.Err = err
				report.Duration = time.Since(start)
				log.Error().Err(err).Msg("reset failed")
				return report
			}
			report.Deleted = deleted
		}
	}

	if len(bins) > 0 {
		report.Result, err = s.repo.UpsertBins(ctx, bins)
		if err != nil {
			report.Err = err
			report.Duration = time.Since(start)
			log.Error().Err(err).Int("bins", len(bins)).Msg("upsert failed")
			return report
		}
	}

	report.Duration = time.Since(start)
	log.Info().
		Int("fetched", report.Fetched).
		Int("valid", report.Valid).
		Int("bins", report.Bins).
		Int("matched", report.Result.Matched).
		Int("modified", report.Result.Modified).
		Int("upserted", report.Result.Upserted).
		Dur("took", report.Duration).
		Msg("source collected")
	return report
}

// Totals sums the upsert counters of successful reports.
func Totals(reports []SourceReport) (total models.UpsertResult, failed int) {
	for _, r := range reports {
		if r.Err != nil {
			failed++
			continue
		}
		total.Add(r.Result)
	}
	return total, failed
}
