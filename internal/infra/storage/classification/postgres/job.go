// Package postgres provides PostgreSQL-backed repositories for the
// classification domain.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bioscopeai/bioscope-core/internal/domain/classification"
	"github.com/bioscopeai/bioscope-core/internal/infra/storage"
)

// defaultDBAttributes defines standard OpenTelemetry attributes for database
// operations.
var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

var _ classification.JobRepository = (*jobStore)(nil)

// jobStore implements classification.JobRepository using PostgreSQL as the
// backing store.
type jobStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewJobStore creates a new PostgreSQL-backed job repository with tracing
// capabilities.
func NewJobStore(pool *pgxpool.Pool, tracer trace.Tracer) *jobStore {
	return &jobStore{db: pool, tracer: tracer}
}

const jobColumns = `id, dataset_id, image_id, model_name, status, created_by, created_at, updated_at`

// CreateJob persists a new classification job.
func (r *jobStore) CreateJob(ctx context.Context, job *classification.Job) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("job_id", job.JobID().String()),
		attribute.String("status", string(job.Status())),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.create_classification_job", dbAttrs, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx,
			`INSERT INTO classification_jobs (id, dataset_id, image_id, model_name, status, created_by, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			job.JobID(), job.DatasetID(), job.ImageID(), job.ModelName(),
			string(job.Status()), job.CreatedBy(), job.CreatedAt(), job.UpdatedAt())
		if err != nil {
			return fmt.Errorf("create classification job: %w", err)
		}
		return nil
	})
}

// GetJob retrieves a job by id.
func (r *jobStore) GetJob(ctx context.Context, jobID uuid.UUID) (*classification.Job, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("job_id", jobID.String()))

	var job *classification.Job
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.get_classification_job", dbAttrs, func(ctx context.Context) error {
		row := r.db.QueryRow(ctx,
			`SELECT `+jobColumns+` FROM classification_jobs WHERE id = $1`, jobID)

		j, err := scanJob(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return classification.ErrJobNotFound
			}
			return fmt.Errorf("get classification job: %w", err)
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	return job, nil
}

// UpdateJobStatus persists a job's current status. The WHERE clause only
// matches rows that are either already at the target status or not yet
// terminal, so a concurrent redelivery can never move a terminal job
// backwards.
func (r *jobStore) UpdateJobStatus(ctx context.Context, job *classification.Job) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("job_id", job.JobID().String()),
		attribute.String("status", string(job.Status())),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.update_classification_job_status", dbAttrs, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx,
			`UPDATE classification_jobs
			 SET status = $2, updated_at = $3
			 WHERE id = $1 AND (status = $2 OR status NOT IN ($4, $5))`,
			job.JobID(), string(job.Status()), job.UpdatedAt(),
			string(classification.JobStatusCompleted), string(classification.JobStatusFailed))
		if err != nil {
			return fmt.Errorf("update classification job status: %w", err)
		}

		if tag.RowsAffected() == 0 {
			var exists bool
			if err := r.db.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM classification_jobs WHERE id = $1)`, job.JobID(),
			).Scan(&exists); err != nil {
				return fmt.Errorf("check classification job existence: %w", err)
			}
			if !exists {
				return classification.ErrJobNotFound
			}
			// Row is already terminal at a different status. Treat the update
			// as a no-op; the stored status wins.
			trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("status_update_skipped", true))
		}

		return nil
	})
}

// ListJobs returns jobs matching the filter, newest first.
func (r *jobStore) ListJobs(ctx context.Context, filter classification.JobFilter) ([]*classification.Job, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*filter.Status))
		argIdx++
	}
	if filter.DatasetID != nil {
		conditions = append(conditions, fmt.Sprintf("dataset_id = $%d", argIdx))
		args = append(args, *filter.DatasetID)
		argIdx++
	}
	if filter.ImageID != nil {
		conditions = append(conditions, fmt.Sprintf("image_id = $%d", argIdx))
		args = append(args, *filter.ImageID)
		argIdx++
	}
	if filter.CreatedBy != nil {
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", argIdx))
		args = append(args, *filter.CreatedBy)
		argIdx++
	}

	query := `SELECT ` + jobColumns + ` FROM classification_jobs WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC`

	dbAttrs := append(defaultDBAttributes, attribute.Int("num_filters", len(conditions)-1))

	var jobs []*classification.Job
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.list_classification_jobs", dbAttrs, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list classification jobs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			j, err := scanJob(rows)
			if err != nil {
				return fmt.Errorf("scan classification job: %w", err)
			}
			jobs = append(jobs, j)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return jobs, nil
}

// DeleteJob removes a job.
func (r *jobStore) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	dbAttrs := append(defaultDBAttributes, attribute.String("job_id", jobID.String()))

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.delete_classification_job", dbAttrs, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `DELETE FROM classification_jobs WHERE id = $1`, jobID)
		if err != nil {
			return fmt.Errorf("delete classification job: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return classification.ErrJobNotFound
		}
		return nil
	})
}

// scanJob reconstructs a domain job from a row that selected jobColumns.
func scanJob(row pgx.Row) (*classification.Job, error) {
	var (
		id        uuid.UUID
		datasetID *uuid.UUID
		imageID   *uuid.UUID
		modelName string
		status    string
		createdBy uuid.UUID
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &datasetID, &imageID, &modelName, &status, &createdBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	parsed, err := classification.ParseJobStatus(status)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}

	return classification.ReconstructJob(id, datasetID, imageID, modelName, parsed, createdBy, createdAt, updatedAt), nil
}
