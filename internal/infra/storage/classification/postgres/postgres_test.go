package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// The tests in this package run against a disposable PostgreSQL container
// with the real migrations applied, so the SQL guards (the forward-only
// status update, the partial unique index on results) are exercised for real.

func seedUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, email, username, password_hash, first_name, last_name)
		 VALUES ($1, $2, $3, 'x', 'Test', 'User')`,
		id, fmt.Sprintf("%s@example.com", id), id.String())
	require.NoError(t, err)
	return id
}

func seedDevice(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO devices (id, name, hostname) VALUES ($1, 'microscope-1', $2)`,
		id, id.String())
	require.NoError(t, err)
	return id
}

func seedDataset(t *testing.T, pool *pgxpool.Pool, ownerID uuid.UUID) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO datasets (id, name, owner_id) VALUES ($1, 'plankton-2026', $2)`,
		id, ownerID)
	require.NoError(t, err)
	return id
}

func seedImage(t *testing.T, pool *pgxpool.Pool, datasetID, uploadedBy uuid.UUID, deviceID *uuid.UUID) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO images (id, filename, filepath, dataset_id, device_id, uploaded_by)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, id.String()+".png", "/data/"+id.String()+".png", datasetID, deviceID, uploadedBy)
	require.NoError(t, err)
	return id
}
