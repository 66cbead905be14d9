package classification

import (
	"time"

	"github.com/google/uuid"
)

// Result is one classification outcome for an image. A result may arrive
// without a job reference (ad-hoc batch classification). Results are created
// exactly once per consumed message and never mutated afterwards.
type Result struct {
	id         uuid.UUID
	imageID    uuid.UUID
	jobID      *uuid.UUID
	label      string
	confidence float64
	modelName  string
	createdAt  time.Time
}

// NewResult validates and creates a result for the given image.
func NewResult(imageID uuid.UUID, jobID *uuid.UUID, label string, confidence float64, modelName string) (*Result, error) {
	if label == "" {
		return nil, ErrEmptyLabel
	}
	if confidence < 0 || confidence > 1 {
		return nil, ErrInvalidConfidence
	}

	return &Result{
		id:         uuid.New(),
		imageID:    imageID,
		jobID:      jobID,
		label:      label,
		confidence: confidence,
		modelName:  modelName,
		createdAt:  time.Now().UTC(),
	}, nil
}

// ReconstructResult rebuilds a result from persistent storage.
func ReconstructResult(
	id uuid.UUID,
	imageID uuid.UUID,
	jobID *uuid.UUID,
	label string,
	confidence float64,
	modelName string,
	createdAt time.Time,
) *Result {
	return &Result{
		id:         id,
		imageID:    imageID,
		jobID:      jobID,
		label:      label,
		confidence: confidence,
		modelName:  modelName,
		createdAt:  createdAt,
	}
}

// ResultID returns the result's unique identifier.
func (r *Result) ResultID() uuid.UUID { return r.id }

// ImageID returns the classified image.
func (r *Result) ImageID() uuid.UUID { return r.imageID }

// JobID returns the originating job, if any.
func (r *Result) JobID() *uuid.UUID { return r.jobID }

// Label returns the predicted label.
func (r *Result) Label() string { return r.label }

// Confidence returns the prediction confidence in [0, 1].
func (r *Result) Confidence() float64 { return r.confidence }

// ModelName returns the model that produced the result, if reported.
func (r *Result) ModelName() string { return r.modelName }

// CreatedAt returns the ingestion time.
func (r *Result) CreatedAt() time.Time { return r.createdAt }
