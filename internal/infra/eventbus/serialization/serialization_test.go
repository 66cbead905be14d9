package serialization

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioscopeai/bioscope-core/internal/domain/classification"
)

func TestSerializePayload_JobRequested(t *testing.T) {
	datasetID := uuid.New()

	job, err := classification.NewJob(uuid.New(), &datasetID, nil, "resnet50")
	require.NoError(t, err)

	data, err := SerializePayload(classification.EventTypeJobRequested, classification.NewJobRequestedEvent(job))
	require.NoError(t, err)

	decoded, err := DeserializePayload(classification.EventTypeJobRequested, data)
	require.NoError(t, err)

	evt, ok := decoded.(classification.JobRequestedEvent)
	require.True(t, ok)
	assert.Equal(t, job.JobID(), evt.JobID)
	require.NotNil(t, evt.DatasetID)
	assert.Equal(t, datasetID, *evt.DatasetID)
	assert.Nil(t, evt.ImageID)
	require.NotNil(t, evt.ModelName)
	assert.Equal(t, "resnet50", *evt.ModelName)
}

func TestSerializePayload_WrongPayloadType(t *testing.T) {
	_, err := SerializePayload(classification.EventTypeJobRequested, "not an event")
	assert.Error(t, err)
}

func TestSerializePayload_UnknownEventType(t *testing.T) {
	_, err := SerializePayload("Bogus", struct{}{})
	assert.Error(t, err)

	_, err = DeserializePayload("Bogus", []byte(`{}`))
	assert.Error(t, err)
}

func TestDeserializePayload_ResultReceived(t *testing.T) {
	jobID := uuid.New()
	imageID := uuid.New()

	raw := []byte(`{
		"image_id": "` + imageID.String() + `",
		"classification_id": "` + jobID.String() + `",
		"label": "copepod",
		"confidence": 0.87,
		"model_name": "resnet50"
	}`)

	decoded, err := DeserializePayload(classification.EventTypeResultReceived, raw)
	require.NoError(t, err)

	evt, ok := decoded.(classification.ResultReceivedEvent)
	require.True(t, ok)
	assert.Equal(t, imageID, evt.ImageID)
	require.NotNil(t, evt.JobID)
	assert.Equal(t, jobID, *evt.JobID)
	assert.Equal(t, "copepod", evt.Label)
	assert.InDelta(t, 0.87, evt.Confidence, 1e-9)
}

func TestDeserializePayload_OptionalFieldsAbsent(t *testing.T) {
	imageID := uuid.New()

	raw := []byte(`{"image_id": "` + imageID.String() + `", "label": "noise", "confidence": 0.1}`)

	decoded, err := DeserializePayload(classification.EventTypeResultReceived, raw)
	require.NoError(t, err)

	evt := decoded.(classification.ResultReceivedEvent)
	assert.Nil(t, evt.JobID)
	assert.Nil(t, evt.ModelName)
}

func TestDeserializePayload_MalformedJSON(t *testing.T) {
	_, err := DeserializePayload(classification.EventTypeResultReceived, []byte(`{"image_id": `))
	assert.Error(t, err)
}
