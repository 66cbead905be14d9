package classification

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	domain "github.com/bioscopeai/bioscope-core/internal/domain/classification"
	"github.com/bioscopeai/bioscope-core/internal/domain/events"
	"github.com/bioscopeai/bioscope-core/pkg/common/logger"
)

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func testTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("test")
}

// noopMetrics satisfies PipelineMetrics without recording anything.
type noopMetrics struct{}

func (noopMetrics) IncMessagePublished(context.Context, string)      {}
func (noopMetrics) IncMessageConsumed(context.Context, string)       {}
func (noopMetrics) IncMessageSkipped(context.Context, string)        {}
func (noopMetrics) IncPublishError(context.Context, string)          {}
func (noopMetrics) IncConsumeError(context.Context, string)          {}
func (noopMetrics) IncJobsCreated(context.Context)                   {}
func (noopMetrics) IncJobPublishFailures(context.Context)            {}
func (noopMetrics) IncResultsProcessed(context.Context)              {}
func (noopMetrics) IncResultFailures(context.Context)                {}
func (noopMetrics) ObserveResultConfidence(context.Context, float64) {}

// fakeJobRepo is an in-memory JobRepository.
type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job

	createErr error
	updateErr error
	getErr    error

	statusUpdates []domain.JobStatus
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (f *fakeJobRepo) CreateJob(_ context.Context, job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.jobs[job.JobID()] = snapshotJob(job)
	return nil
}

func (f *fakeJobRepo) GetJob(_ context.Context, jobID uuid.UUID) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return snapshotJob(job), nil
}

func (f *fakeJobRepo) UpdateJobStatus(_ context.Context, job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.jobs[job.JobID()]; !ok {
		return domain.ErrJobNotFound
	}
	f.jobs[job.JobID()] = snapshotJob(job)
	f.statusUpdates = append(f.statusUpdates, job.Status())
	return nil
}

func (f *fakeJobRepo) ListJobs(_ context.Context, filter domain.JobFilter) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Job
	for _, job := range f.jobs {
		if filter.Status != nil && job.Status() != *filter.Status {
			continue
		}
		out = append(out, snapshotJob(job))
	}
	return out, nil
}

func (f *fakeJobRepo) DeleteJob(_ context.Context, jobID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[jobID]; !ok {
		return domain.ErrJobNotFound
	}
	delete(f.jobs, jobID)
	return nil
}

func snapshotJob(job *domain.Job) *domain.Job {
	return domain.ReconstructJob(
		job.JobID(), job.DatasetID(), job.ImageID(), job.ModelName(),
		job.Status(), job.CreatedBy(), job.CreatedAt(), job.UpdatedAt(),
	)
}

// fakeResultRepo is an in-memory ResultRepository keyed like the partial
// unique index: one row per (job, image) pair, unlimited ad-hoc rows.
type fakeResultRepo struct {
	mu      sync.Mutex
	results []*domain.Result

	createErr error
}

func (f *fakeResultRepo) CreateResult(_ context.Context, result *domain.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if result.JobID() != nil {
		for _, existing := range f.results {
			if existing.JobID() != nil && *existing.JobID() == *result.JobID() && existing.ImageID() == result.ImageID() {
				return nil // duplicate, no-op
			}
		}
	}
	f.results = append(f.results, result)
	return nil
}

func (f *fakeResultRepo) ListResultsByJob(_ context.Context, jobID uuid.UUID) ([]*domain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Result
	for _, r := range f.results {
		if r.JobID() != nil && *r.JobID() == jobID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResultRepo) ListResultsByImage(_ context.Context, imageID uuid.UUID) ([]*domain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Result
	for _, r := range f.results {
		if r.ImageID() == imageID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResultRepo) ListResultsSince(_ context.Context, since time.Time) ([]*domain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Result
	for _, r := range f.results {
		if !r.CreatedAt().Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResultRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

// fakeImageRepo is an in-memory ImageRepository.
type fakeImageRepo struct {
	mu       sync.Mutex
	devices  map[uuid.UUID]*uuid.UUID
	analyzed map[uuid.UUID]bool

	markErr error
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{
		devices:  make(map[uuid.UUID]*uuid.UUID),
		analyzed: make(map[uuid.UUID]bool),
	}
}

func (f *fakeImageRepo) GetImageDevice(_ context.Context, imageID uuid.UUID) (*uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deviceID, ok := f.devices[imageID]
	if !ok {
		return nil, domain.ErrImageNotFound
	}
	return deviceID, nil
}

func (f *fakeImageRepo) MarkImageAnalyzed(_ context.Context, imageID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.analyzed[imageID] = true
	return nil
}

// fakeEventBus records published envelopes and captures the subscribed
// handler for tests to drive directly.
type fakeEventBus struct {
	mu         sync.Mutex
	published  []publishedEvent
	publishErr error

	handler      events.HandlerFunc
	subscribeErr error
	subscribes   int
}

type publishedEvent struct {
	envelope events.EventEnvelope
	params   events.PublishParams
}

func (f *fakeEventBus) Publish(_ context.Context, evt events.EventEnvelope, opts ...events.PublishOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	var params events.PublishParams
	for _, opt := range opts {
		opt(&params)
	}
	f.published = append(f.published, publishedEvent{envelope: evt, params: params})
	return nil
}

func (f *fakeEventBus) Subscribe(_ context.Context, _ []events.EventType, handler events.HandlerFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handler = handler
	f.subscribes++
	return nil
}

func (f *fakeEventBus) Close() error { return nil }
