package classification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bioscopeai/bioscope-core/internal/domain/classification"
)

// fakeCache is an in-memory Cache that can be forced to fail.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte

	getErr error
	setErr error

	gets int
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = value
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	value, ok := f.entries[key]
	return value, ok, nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func (f *fakeCache) Ping(context.Context) error { return nil }

func storedResult(jobID *uuid.UUID, confidence float64, createdAt time.Time) *domain.Result {
	return domain.ReconstructResult(
		uuid.New(), uuid.New(), jobID, "diatom", confidence, "resnet50", createdAt,
	)
}

func TestStatsService_TodayStatistics(t *testing.T) {
	results := &fakeResultRepo{}
	c := newFakeCache()
	svc := NewStatsService(results, c, testLogger(), testTracer())

	now := time.Now().UTC()
	jobID := uuid.New()
	results.results = []*domain.Result{
		storedResult(&jobID, 0.9, now.Add(-time.Minute)),
		storedResult(nil, 0.7, now.Add(-2*time.Hour)),
	}

	stats, err := svc.TodayStatistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.ClassifiedLast24Hours)
	assert.InDelta(t, 0.8, stats.AverageConfidence, 1e-9)
	assert.Len(t, stats.Last10Results, 2)
	assert.Len(t, stats.HourlyCounts, 25)

	assert.Equal(t, 1, c.sets, "the computed aggregate is cached")
}

func TestStatsService_TodayStatistics_CacheHit(t *testing.T) {
	results := &fakeResultRepo{}
	c := newFakeCache()
	svc := NewStatsService(results, c, testLogger(), testTracer())

	cached := &TodayStatistics{ClassifiedLast24Hours: 42, AverageConfidence: 0.5}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), "classification:stats:today", payload, time.Minute))

	results.results = []*domain.Result{storedResult(nil, 0.99, time.Now())}

	stats, err := svc.TodayStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, stats.ClassifiedLast24Hours, "the cached aggregate wins over a recomputation")
}

func TestStatsService_TodayStatistics_CacheFailureDegrades(t *testing.T) {
	results := &fakeResultRepo{}
	c := newFakeCache()
	c.getErr = errors.New("redis down")
	c.setErr = errors.New("redis down")
	svc := NewStatsService(results, c, testLogger(), testTracer())

	results.results = []*domain.Result{storedResult(nil, 0.6, time.Now().Add(-time.Minute))}

	stats, err := svc.TodayStatistics(context.Background())
	require.NoError(t, err, "a broken cache degrades to direct computation")
	assert.Equal(t, 1, stats.ClassifiedLast24Hours)
}

func TestStatsService_TodayStatistics_RepositoryError(t *testing.T) {
	results := &fakeResultRepo{}
	c := newFakeCache()
	svc := NewStatsService(results, c, testLogger(), testTracer())

	// A cache entry that does not decode falls through to the repository.
	require.NoError(t, c.Set(context.Background(), "classification:stats:today", []byte("{garbage"), time.Minute))

	stats, err := svc.TodayStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ClassifiedLast24Hours)
}

func TestAggregate_Empty(t *testing.T) {
	stats := aggregate(time.Now().UTC(), nil)

	assert.Equal(t, 0, stats.ClassifiedLast24Hours)
	assert.Zero(t, stats.AverageConfidence)
	assert.Empty(t, stats.Last10Results)
	require.Len(t, stats.HourlyCounts, 25)
	for _, bucket := range stats.HourlyCounts {
		assert.Zero(t, bucket.Count)
	}
}

func TestAggregate_HourlyBuckets(t *testing.T) {
	now := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)

	results := []*domain.Result{
		storedResult(nil, 0.9, now.Add(-10*time.Minute)), // current hour
		storedResult(nil, 0.8, now.Add(-20*time.Minute)), // current hour
		storedResult(nil, 0.7, now.Add(-3*time.Hour)),    // three hours back
	}

	stats := aggregate(now, results)

	require.Len(t, stats.HourlyCounts, 25)

	// Buckets run oldest first and end on the current partial hour.
	assert.Equal(t, "2026-08-30T14:00:00Z", stats.HourlyCounts[0].Hour)
	assert.Equal(t, "2026-08-31T14:00:00Z", stats.HourlyCounts[24].Hour)

	assert.Equal(t, 2, stats.HourlyCounts[24].Count)
	assert.Equal(t, 1, stats.HourlyCounts[21].Count)
	assert.Equal(t, 0, stats.HourlyCounts[23].Count)
}

func TestAggregate_RecentLimit(t *testing.T) {
	now := time.Now().UTC()

	results := make([]*domain.Result, 0, 15)
	for i := 0; i < 15; i++ {
		results = append(results, storedResult(nil, 0.5, now.Add(-time.Duration(i)*time.Minute)))
	}

	stats := aggregate(now, results)

	assert.Equal(t, 15, stats.ClassifiedLast24Hours)
	require.Len(t, stats.Last10Results, 10)

	// The repository returns newest first, and the summary preserves that.
	for i := 1; i < len(stats.Last10Results); i++ {
		assert.False(t, stats.Last10Results[i].CreatedAt.After(stats.Last10Results[i-1].CreatedAt),
			fmt.Sprintf("summary entry %d is out of order", i))
	}
}
