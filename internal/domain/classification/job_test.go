package classification

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob_TargetValidation(t *testing.T) {
	creator := uuid.New()
	datasetID := uuid.New()
	imageID := uuid.New()

	tests := []struct {
		name      string
		datasetID *uuid.UUID
		imageID   *uuid.UUID
		wantErr   error
	}{
		{
			name:      "dataset target only",
			datasetID: &datasetID,
		},
		{
			name:    "image target only",
			imageID: &imageID,
		},
		{
			name:    "neither target",
			wantErr: ErrNoTargetSpecified,
		},
		{
			name:      "both targets",
			datasetID: &datasetID,
			imageID:   &imageID,
			wantErr:   ErrAmbiguousTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := NewJob(creator, tt.datasetID, tt.imageID, "resnet50")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, job)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, JobStatusPending, job.Status())
			assert.Equal(t, creator, job.CreatedBy())
			assert.NotEqual(t, uuid.Nil, job.JobID())
		})
	}
}

func TestJob_Complete(t *testing.T) {
	datasetID := uuid.New()

	job, err := NewJob(uuid.New(), &datasetID, nil, "")
	require.NoError(t, err)

	require.NoError(t, job.Complete())
	assert.Equal(t, JobStatusCompleted, job.Status())

	// Completing an already completed job is a no-op, not an error.
	require.NoError(t, job.Complete())
	assert.Equal(t, JobStatusCompleted, job.Status())

	// But a completed job can never fail.
	assert.Error(t, job.Fail())
	assert.Equal(t, JobStatusCompleted, job.Status())
}

func TestJob_Fail(t *testing.T) {
	datasetID := uuid.New()

	job, err := NewJob(uuid.New(), &datasetID, nil, "")
	require.NoError(t, err)

	require.NoError(t, job.Fail())
	assert.Equal(t, JobStatusFailed, job.Status())

	require.NoError(t, job.Fail(), "failing a failed job is a no-op")
	assert.Error(t, job.Complete(), "a failed job can never complete")
	assert.Equal(t, JobStatusFailed, job.Status())
}

func TestJob_Start(t *testing.T) {
	datasetID := uuid.New()

	job, err := NewJob(uuid.New(), &datasetID, nil, "")
	require.NoError(t, err)

	require.NoError(t, job.Start())
	assert.Equal(t, JobStatusRunning, job.Status())

	require.NoError(t, job.Complete())
	assert.Error(t, job.Start(), "a terminal job cannot restart")
}

func TestNewResult_Validation(t *testing.T) {
	imageID := uuid.New()
	jobID := uuid.New()

	tests := []struct {
		name       string
		label      string
		confidence float64
		wantErr    error
	}{
		{name: "valid", label: "diatom", confidence: 0.92},
		{name: "zero confidence", label: "diatom", confidence: 0},
		{name: "full confidence", label: "diatom", confidence: 1},
		{name: "empty label", label: "", confidence: 0.5, wantErr: ErrEmptyLabel},
		{name: "negative confidence", label: "diatom", confidence: -0.1, wantErr: ErrInvalidConfidence},
		{name: "confidence above one", label: "diatom", confidence: 1.1, wantErr: ErrInvalidConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewResult(imageID, &jobID, tt.label, tt.confidence, "resnet50")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, imageID, result.ImageID())
			assert.Equal(t, tt.label, result.Label())
			assert.Equal(t, tt.confidence, result.Confidence())
		})
	}
}
