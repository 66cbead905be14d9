package classification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/bioscopeai/bioscope-core/internal/cache"
	domain "github.com/bioscopeai/bioscope-core/internal/domain/classification"
	"github.com/bioscopeai/bioscope-core/pkg/common/logger"
)

const (
	statsCacheKey = "classification:stats:today"
	statsCacheTTL = time.Minute

	statsWindow      = 24 * time.Hour
	statsRecentLimit = 10
)

// HourlyCount is one hour bucket in the daily statistics.
type HourlyCount struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// ResultSummary is the trimmed result representation embedded in statistics.
type ResultSummary struct {
	ID         uuid.UUID  `json:"id"`
	ImageID    uuid.UUID  `json:"image_id"`
	JobID      *uuid.UUID `json:"classification_id"`
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TodayStatistics aggregates the last 24 hours of classification results.
type TodayStatistics struct {
	ClassifiedLast24Hours int             `json:"classified_last_24_hours"`
	AverageConfidence     float64         `json:"average_confidence"`
	Last10Results         []ResultSummary `json:"last_10_results"`
	HourlyCounts          []HourlyCount   `json:"hourly_counts"`
}

// StatsService computes read-side aggregations over classification results.
// The daily aggregate is cached briefly; dashboards poll it every few
// seconds and the underlying scan is proportional to a day of results.
type StatsService struct {
	results domain.ResultRepository
	cache   cache.Cache

	logger *logger.Logger
	tracer trace.Tracer
}

// NewStatsService creates a statistics service.
func NewStatsService(results domain.ResultRepository, c cache.Cache, log *logger.Logger, tracer trace.Tracer) *StatsService {
	return &StatsService{
		results: results,
		cache:   c,
		logger:  log.With("component", "stats_service"),
		tracer:  tracer,
	}
}

// TodayStatistics returns aggregate counts, mean confidence, the most recent
// results and hour-bucketed volumes over the trailing 24 hours.
func (s *StatsService) TodayStatistics(ctx context.Context) (*TodayStatistics, error) {
	ctx, span := s.tracer.Start(ctx, "stats_service.today_statistics")
	defer span.End()

	if cached, ok, err := s.cache.Get(ctx, statsCacheKey); err != nil {
		// A broken cache degrades to a direct computation.
		s.logger.Warn(ctx, "Stats cache read failed", "error", err)
	} else if ok {
		var stats TodayStatistics
		if err := json.Unmarshal(cached, &stats); err == nil {
			return &stats, nil
		}
		s.logger.Warn(ctx, "Discarding undecodable stats cache entry")
	}

	now := time.Now().UTC()
	results, err := s.results.ListResultsSince(ctx, now.Add(-statsWindow))
	if err != nil {
		return nil, fmt.Errorf("listing results for statistics: %w", err)
	}

	stats := aggregate(now, results)

	if payload, err := json.Marshal(stats); err == nil {
		if err := s.cache.Set(ctx, statsCacheKey, payload, statsCacheTTL); err != nil {
			s.logger.Warn(ctx, "Stats cache write failed", "error", err)
		}
	}

	return stats, nil
}

// aggregate folds a newest-first result list into the daily statistics.
func aggregate(now time.Time, results []*domain.Result) *TodayStatistics {
	count := len(results)

	var confidenceSum float64
	hourly := make(map[string]int)
	for _, r := range results {
		confidenceSum += r.Confidence()
		hourly[hourBucket(r.CreatedAt())]++
	}

	avg := 0.0
	if count > 0 {
		avg = confidenceSum / float64(count)
	}

	recent := make([]ResultSummary, 0, statsRecentLimit)
	for _, r := range results[:min(count, statsRecentLimit)] {
		recent = append(recent, ResultSummary{
			ID:         r.ResultID(),
			ImageID:    r.ImageID(),
			JobID:      r.JobID(),
			Label:      r.Label(),
			Confidence: r.Confidence(),
			CreatedAt:  r.CreatedAt(),
		})
	}

	// 25 buckets: the current partial hour plus the 24 before it.
	buckets := make([]HourlyCount, 0, 25)
	for i := 24; i >= 0; i-- {
		hour := hourBucket(now.Add(-time.Duration(i) * time.Hour))
		buckets = append(buckets, HourlyCount{Hour: hour, Count: hourly[hour]})
	}

	return &TodayStatistics{
		ClassifiedLast24Hours: count,
		AverageConfidence:     avg,
		Last10Results:         recent,
		HourlyCounts:          buckets,
	}
}

func hourBucket(t time.Time) string {
	return t.UTC().Truncate(time.Hour).Format("2006-01-02T15:00:00Z")
}
