package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioscopeai/bioscope-core/internal/domain/classification"
	"github.com/bioscopeai/bioscope-core/internal/infra/storage"
)

func TestJobStore_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewJobStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	userID := seedUser(t, pool)
	datasetID := seedDataset(t, pool, userID)

	job, err := classification.NewJob(userID, &datasetID, nil, "resnet50")
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(ctx, job))

	got, err := store.GetJob(ctx, job.JobID())
	require.NoError(t, err)

	assert.Equal(t, job.JobID(), got.JobID())
	require.NotNil(t, got.DatasetID())
	assert.Equal(t, datasetID, *got.DatasetID())
	assert.Nil(t, got.ImageID())
	assert.Equal(t, "resnet50", got.ModelName())
	assert.Equal(t, classification.JobStatusPending, got.Status())
	assert.Equal(t, userID, got.CreatedBy())
}

func TestJobStore_GetJob_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewJobStore(pool, storage.NoOpTracer())

	_, err := store.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, classification.ErrJobNotFound)
}

func TestJobStore_UpdateJobStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewJobStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	userID := seedUser(t, pool)
	datasetID := seedDataset(t, pool, userID)

	job, err := classification.NewJob(userID, &datasetID, nil, "")
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(ctx, job))

	require.NoError(t, job.Complete())
	require.NoError(t, store.UpdateJobStatus(ctx, job))

	got, err := store.GetJob(ctx, job.JobID())
	require.NoError(t, err)
	assert.Equal(t, classification.JobStatusCompleted, got.Status())
}

func TestJobStore_UpdateJobStatus_TerminalStatusWins(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewJobStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	userID := seedUser(t, pool)
	datasetID := seedDataset(t, pool, userID)

	job, err := classification.NewJob(userID, &datasetID, nil, "")
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(ctx, job))

	require.NoError(t, job.Complete())
	require.NoError(t, store.UpdateJobStatus(ctx, job))

	// A concurrent writer holding a stale snapshot tries to fail the job
	// after it completed. The guard swallows the write instead of
	// regressing the terminal status.
	stale := classification.ReconstructJob(
		job.JobID(), &datasetID, nil, "",
		classification.JobStatusFailed, userID,
		job.CreatedAt(), time.Now().UTC(),
	)
	require.NoError(t, store.UpdateJobStatus(ctx, stale))

	got, err := store.GetJob(ctx, job.JobID())
	require.NoError(t, err)
	assert.Equal(t, classification.JobStatusCompleted, got.Status())
}

func TestJobStore_UpdateJobStatus_SameStatusIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewJobStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	userID := seedUser(t, pool)
	datasetID := seedDataset(t, pool, userID)

	job, err := classification.NewJob(userID, &datasetID, nil, "")
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(ctx, job))

	require.NoError(t, job.Complete())
	require.NoError(t, store.UpdateJobStatus(ctx, job))
	require.NoError(t, store.UpdateJobStatus(ctx, job), "rewriting the same terminal status is allowed")

	got, err := store.GetJob(ctx, job.JobID())
	require.NoError(t, err)
	assert.Equal(t, classification.JobStatusCompleted, got.Status())
}

func TestJobStore_UpdateJobStatus_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewJobStore(pool, storage.NoOpTracer())

	userID := seedUser(t, pool)
	datasetID := seedDataset(t, pool, userID)

	job, err := classification.NewJob(userID, &datasetID, nil, "")
	require.NoError(t, err)

	err = store.UpdateJobStatus(context.Background(), job)
	assert.ErrorIs(t, err, classification.ErrJobNotFound)
}

func TestJobStore_ListJobs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewJobStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	alice := seedUser(t, pool)
	bob := seedUser(t, pool)
	datasetID := seedDataset(t, pool, alice)
	imageID := seedImage(t, pool, datasetID, alice, nil)

	datasetJob, err := classification.NewJob(alice, &datasetID, nil, "")
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(ctx, datasetJob))

	imageJob, err := classification.NewJob(bob, nil, &imageID, "")
	require.NoError(t, err)
	require.NoError(t, imageJob.Complete())
	require.NoError(t, store.CreateJob(ctx, imageJob))
	require.NoError(t, store.UpdateJobStatus(ctx, imageJob))

	all, err := store.ListJobs(ctx, classification.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending := classification.JobStatusPending
	byStatus, err := store.ListJobs(ctx, classification.JobFilter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, datasetJob.JobID(), byStatus[0].JobID())

	byDataset, err := store.ListJobs(ctx, classification.JobFilter{DatasetID: &datasetID})
	require.NoError(t, err)
	require.Len(t, byDataset, 1)
	assert.Equal(t, datasetJob.JobID(), byDataset[0].JobID())

	byCreator, err := store.ListJobs(ctx, classification.JobFilter{CreatedBy: &bob})
	require.NoError(t, err)
	require.Len(t, byCreator, 1)
	assert.Equal(t, imageJob.JobID(), byCreator[0].JobID())

	completed := classification.JobStatusCompleted
	byBoth, err := store.ListJobs(ctx, classification.JobFilter{Status: &completed, ImageID: &imageID})
	require.NoError(t, err)
	require.Len(t, byBoth, 1)
	assert.Equal(t, imageJob.JobID(), byBoth[0].JobID())
}

func TestJobStore_DeleteJob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewJobStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	userID := seedUser(t, pool)
	datasetID := seedDataset(t, pool, userID)

	job, err := classification.NewJob(userID, &datasetID, nil, "")
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(ctx, job))

	require.NoError(t, store.DeleteJob(ctx, job.JobID()))

	_, err = store.GetJob(ctx, job.JobID())
	assert.ErrorIs(t, err, classification.ErrJobNotFound)

	err = store.DeleteJob(ctx, job.JobID())
	assert.ErrorIs(t, err, classification.ErrJobNotFound)
}
