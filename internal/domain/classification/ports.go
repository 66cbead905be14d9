package classification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobFilter narrows job listings. Nil fields are ignored.
type JobFilter struct {
	Status    *JobStatus
	DatasetID *uuid.UUID
	ImageID   *uuid.UUID
	CreatedBy *uuid.UUID
}

// JobRepository provides persistent storage for classification jobs.
type JobRepository interface {
	// CreateJob persists a new job.
	CreateJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by id. Returns ErrJobNotFound when absent.
	GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error)

	// UpdateJobStatus persists a job's current status. The store enforces
	// forward-only transitions so concurrent redeliveries cannot regress a
	// terminal job.
	UpdateJobStatus(ctx context.Context, job *Job) error

	// ListJobs returns jobs matching the filter, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)

	// DeleteJob removes a job. Administrative action, never called by the
	// pipeline. Returns ErrJobNotFound when absent.
	DeleteJob(ctx context.Context, jobID uuid.UUID) error
}

// ResultRepository provides persistent storage for classification results.
type ResultRepository interface {
	// CreateResult persists a result. Inserting a duplicate of an already
	// ingested (job, image) pair is a no-op so redelivered messages do not
	// produce extra rows.
	CreateResult(ctx context.Context, result *Result) error

	// ListResultsByJob returns a job's results, newest first.
	ListResultsByJob(ctx context.Context, jobID uuid.UUID) ([]*Result, error)

	// ListResultsByImage returns an image's results, newest first.
	ListResultsByImage(ctx context.Context, imageID uuid.UUID) ([]*Result, error)

	// ListResultsSince returns results ingested at or after the given time,
	// newest first.
	ListResultsSince(ctx context.Context, since time.Time) ([]*Result, error)
}

// ImageRepository exposes the narrow image capabilities the pipeline needs.
// The wider image CRUD surface lives outside this core.
type ImageRepository interface {
	// GetImageDevice returns the device the image was captured by, or nil
	// when the image has no device. Returns ErrImageNotFound when the image
	// is absent.
	GetImageDevice(ctx context.Context, imageID uuid.UUID) (*uuid.UUID, error)

	// MarkImageAnalyzed flags the image as analyzed. Idempotent.
	MarkImageAnalyzed(ctx context.Context, imageID uuid.UUID) error
}
