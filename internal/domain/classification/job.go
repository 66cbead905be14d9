// Package classification contains the domain model for the asynchronous
// image-classification job pipeline: jobs, their lifecycle state machine,
// and the results ingested back from the worker fleet.
package classification

import (
	"time"

	"github.com/google/uuid"
)

// Job represents a classification request handed off to the worker fleet.
// Exactly one of dataset or image is targeted. The job's status is mutated
// exclusively by the pipeline (publisher and result processor), never by the
// HTTP layer.
type Job struct {
	id        uuid.UUID
	datasetID *uuid.UUID
	imageID   *uuid.UUID
	modelName string
	status    JobStatus
	createdBy uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

// NewJob creates a job in PENDING state for exactly one of datasetID or
// imageID. Both-set and neither-set are rejected before any row or event is
// created.
func NewJob(createdBy uuid.UUID, datasetID, imageID *uuid.UUID, modelName string) (*Job, error) {
	if datasetID == nil && imageID == nil {
		return nil, ErrNoTargetSpecified
	}
	if datasetID != nil && imageID != nil {
		return nil, ErrAmbiguousTarget
	}

	now := time.Now().UTC()
	return &Job{
		id:        uuid.New(),
		datasetID: datasetID,
		imageID:   imageID,
		modelName: modelName,
		status:    JobStatusPending,
		createdBy: createdBy,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructJob rebuilds a job from persistent storage without validation.
func ReconstructJob(
	id uuid.UUID,
	datasetID, imageID *uuid.UUID,
	modelName string,
	status JobStatus,
	createdBy uuid.UUID,
	createdAt, updatedAt time.Time,
) *Job {
	return &Job{
		id:        id,
		datasetID: datasetID,
		imageID:   imageID,
		modelName: modelName,
		status:    status,
		createdBy: createdBy,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// JobID returns the job's unique identifier.
func (j *Job) JobID() uuid.UUID { return j.id }

// DatasetID returns the targeted dataset, if any.
func (j *Job) DatasetID() *uuid.UUID { return j.datasetID }

// ImageID returns the targeted image, if any.
func (j *Job) ImageID() *uuid.UUID { return j.imageID }

// ModelName returns the optional model-name hint for workers.
func (j *Job) ModelName() string { return j.modelName }

// Status returns the job's current lifecycle status.
func (j *Job) Status() JobStatus { return j.status }

// CreatedBy returns the identity of the job's creator.
func (j *Job) CreatedBy() uuid.UUID { return j.createdBy }

// CreatedAt returns the job's creation time.
func (j *Job) CreatedAt() time.Time { return j.createdAt }

// UpdatedAt returns the time of the job's last status change.
func (j *Job) UpdatedAt() time.Time { return j.updatedAt }

// Complete transitions the job to COMPLETED. Completing an already-completed
// job is a no-op so result redelivery stays idempotent.
func (j *Job) Complete() error {
	if j.status == JobStatusCompleted {
		return nil
	}
	return j.transition(JobStatusCompleted)
}

// Fail transitions the job to FAILED. Failing an already-failed job is a
// no-op.
func (j *Job) Fail() error {
	if j.status == JobStatusFailed {
		return nil
	}
	return j.transition(JobStatusFailed)
}

// Start transitions the job to RUNNING.
func (j *Job) Start() error {
	return j.transition(JobStatusRunning)
}

func (j *Job) transition(target JobStatus) error {
	if err := j.status.ValidateTransition(target); err != nil {
		return err
	}
	j.status = target
	j.updatedAt = time.Now().UTC()
	return nil
}
