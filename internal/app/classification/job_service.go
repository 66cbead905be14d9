// Package classification contains the application services that drive the
// image-classification pipeline: handing jobs to the worker fleet and
// ingesting the results it reports back.
package classification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/bioscopeai/bioscope-core/internal/domain/classification"
	"github.com/bioscopeai/bioscope-core/internal/domain/events"
	"github.com/bioscopeai/bioscope-core/pkg/common/logger"
)

// JobService creates classification jobs and hands them to the worker fleet.
// A job is only ever returned to the caller after both the database row and
// the broker acknowledgement exist; a publish failure leaves a FAILED row
// behind as the durable record of the attempt.
type JobService struct {
	jobs   domain.JobRepository
	images domain.ImageRepository
	bus    events.EventBus

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics PipelineMetrics
}

// NewJobService creates a job service.
func NewJobService(
	jobs domain.JobRepository,
	images domain.ImageRepository,
	bus events.EventBus,
	log *logger.Logger,
	metrics PipelineMetrics,
	tracer trace.Tracer,
) *JobService {
	return &JobService{
		jobs:    jobs,
		images:  images,
		bus:     bus,
		logger:  log.With("component", "job_service"),
		tracer:  tracer,
		metrics: metrics,
	}
}

// CreateAndPublishJob validates the request, persists a PENDING job and
// publishes its description for the worker fleet. Single-image jobs whose
// image has a device association are routed to that device's dedicated topic.
func (s *JobService) CreateAndPublishJob(
	ctx context.Context,
	createdBy uuid.UUID,
	datasetID, imageID *uuid.UUID,
	modelName string,
) (*domain.Job, error) {
	ctx, span := s.tracer.Start(ctx, "job_service.create_and_publish_job")
	defer span.End()

	job, err := domain.NewJob(createdBy, datasetID, imageID, modelName)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("job_id", job.JobID().String()))

	// Resolve routing before any persistence so an unknown image rejects the
	// request instead of stranding a PENDING row.
	var routingKey string
	if imageID != nil {
		deviceID, err := s.images.GetImageDevice(ctx, *imageID)
		if err != nil {
			return nil, err
		}
		if deviceID != nil {
			routingKey = deviceID.String()
		}
	}

	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("persisting job: %w", err)
	}
	s.metrics.IncJobsCreated(ctx)

	envelope := events.EventEnvelope{
		Type:      domain.EventTypeJobRequested,
		Timestamp: time.Now(),
		Payload:   domain.NewJobRequestedEvent(job),
	}

	opts := []events.PublishOption{events.WithKey(job.JobID().String())}
	if routingKey != "" {
		opts = append(opts, events.WithRoutingKey(routingKey))
	}

	if err := s.bus.Publish(ctx, envelope, opts...); err != nil {
		span.RecordError(err)
		s.metrics.IncJobPublishFailures(ctx)
		s.failJob(ctx, job)
		return nil, fmt.Errorf("publishing job %s: %w", job.JobID(), err)
	}

	s.logger.Info(ctx, "Classification job published",
		"job_id", job.JobID(),
		"routing_key", routingKey,
	)

	return job, nil
}

// failJob records a publish failure on the job row. The mark is best effort:
// the publish error is what the caller sees either way.
func (s *JobService) failJob(ctx context.Context, job *domain.Job) {
	if err := job.Fail(); err != nil {
		s.logger.Error(ctx, "Failed to transition job to FAILED", "job_id", job.JobID(), "error", err)
		return
	}
	if err := s.jobs.UpdateJobStatus(ctx, job); err != nil {
		s.logger.Error(ctx, "Failed to persist FAILED status after publish error",
			"job_id", job.JobID(), "error", err)
	}
}

// GetJob retrieves a single job.
func (s *JobService) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	var job *domain.Job
	err := s.traced(ctx, "job_service.get_job", func(ctx context.Context) error {
		var err error
		job, err = s.jobs.GetJob(ctx, jobID)
		return err
	})
	return job, err
}

// ListJobs returns jobs matching the filter, newest first.
func (s *JobService) ListJobs(ctx context.Context, filter domain.JobFilter) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := s.traced(ctx, "job_service.list_jobs", func(ctx context.Context) error {
		var err error
		jobs, err = s.jobs.ListJobs(ctx, filter)
		return err
	})
	return jobs, err
}

// DeleteJob removes a job and its results (cascading in storage).
func (s *JobService) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	return s.traced(ctx, "job_service.delete_job", func(ctx context.Context) error {
		if err := s.jobs.DeleteJob(ctx, jobID); err != nil {
			if !errors.Is(err, domain.ErrJobNotFound) {
				s.logger.Error(ctx, "Failed to delete job", "job_id", jobID, "error", err)
			}
			return err
		}
		s.logger.Info(ctx, "Classification job deleted", "job_id", jobID)
		return nil
	})
}

func (s *JobService) traced(ctx context.Context, spanName string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
