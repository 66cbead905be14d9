package classification

import (
	"time"

	"github.com/google/uuid"

	"github.com/bioscopeai/bioscope-core/internal/domain/events"
)

// Domain event type constants for the classification pipeline.
const (
	// EventTypeJobRequested is published when a job's description is handed
	// off to the worker fleet.
	EventTypeJobRequested events.EventType = "ClassificationJobRequested"

	// EventTypeResultReceived is consumed when a worker reports a
	// classification outcome.
	EventTypeResultReceived events.EventType = "ClassificationResultReceived"
)

// JobRequestedEvent is the wire payload describing a classification job.
// It is a snapshot of the job at publish time; consumers do not re-fetch the
// job row.
type JobRequestedEvent struct {
	occurredAt time.Time

	JobID     uuid.UUID  `json:"classification_id"`
	DatasetID *uuid.UUID `json:"dataset_id"`
	ImageID   *uuid.UUID `json:"image_id"`
	ModelName *string    `json:"model_name"`
}

// NewJobRequestedEvent snapshots a job into its wire payload.
func NewJobRequestedEvent(job *Job) JobRequestedEvent {
	var modelName *string
	if name := job.ModelName(); name != "" {
		modelName = &name
	}

	return JobRequestedEvent{
		occurredAt: time.Now().UTC(),
		JobID:      job.JobID(),
		DatasetID:  job.DatasetID(),
		ImageID:    job.ImageID(),
		ModelName:  modelName,
	}
}

// EventType returns the event's type for routing.
func (e JobRequestedEvent) EventType() events.EventType { return EventTypeJobRequested }

// OccurredAt returns when the event was created.
func (e JobRequestedEvent) OccurredAt() time.Time { return e.occurredAt }

// ResultReceivedEvent is the wire payload a worker publishes when it has
// classified an image. The job reference is optional: ad-hoc batch
// classification produces results with no owning job.
type ResultReceivedEvent struct {
	occurredAt time.Time

	ImageID    uuid.UUID  `json:"image_id"`
	JobID      *uuid.UUID `json:"classification_id"`
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	ModelName  *string    `json:"model_name"`
}

// NewResultReceivedEvent creates the wire payload for a classification
// outcome. Primarily used by tests and tooling; in production the worker
// fleet produces these messages.
func NewResultReceivedEvent(imageID uuid.UUID, jobID *uuid.UUID, label string, confidence float64, modelName *string) ResultReceivedEvent {
	return ResultReceivedEvent{
		occurredAt: time.Now().UTC(),
		ImageID:    imageID,
		JobID:      jobID,
		Label:      label,
		Confidence: confidence,
		ModelName:  modelName,
	}
}

// EventType returns the event's type for routing.
func (e ResultReceivedEvent) EventType() events.EventType { return EventTypeResultReceived }

// OccurredAt returns when the event was created.
func (e ResultReceivedEvent) OccurredAt() time.Time { return e.occurredAt }
