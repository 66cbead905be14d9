package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bioscopeai/bioscope-core/internal/domain/classification"
	"github.com/bioscopeai/bioscope-core/internal/infra/storage"
)

var _ classification.ResultRepository = (*resultStore)(nil)

// resultStore implements classification.ResultRepository using PostgreSQL as
// the backing store.
type resultStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewResultStore creates a new PostgreSQL-backed result repository with
// tracing capabilities.
func NewResultStore(pool *pgxpool.Pool, tracer trace.Tracer) *resultStore {
	return &resultStore{db: pool, tracer: tracer}
}

const resultColumns = `id, image_id, classification_id, label, confidence, model_name, created_at`

// CreateResult persists a result. A partial unique index on
// (classification_id, image_id) makes re-inserting a redelivered job result a
// no-op, so consuming the same message twice never produces duplicate rows.
func (r *resultStore) CreateResult(ctx context.Context, result *classification.Result) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("result_id", result.ResultID().String()),
		attribute.String("image_id", result.ImageID().String()),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.create_classification_result", dbAttrs, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx,
			`INSERT INTO classification_results (id, image_id, classification_id, label, confidence, model_name, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (classification_id, image_id) WHERE classification_id IS NOT NULL DO NOTHING`,
			result.ResultID(), result.ImageID(), result.JobID(), result.Label(),
			result.Confidence(), result.ModelName(), result.CreatedAt())
		if err != nil {
			return fmt.Errorf("create classification result: %w", err)
		}
		if tag.RowsAffected() == 0 {
			trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("duplicate_result", true))
		}
		return nil
	})
}

// ListResultsByJob returns a job's results, newest first.
func (r *resultStore) ListResultsByJob(ctx context.Context, jobID uuid.UUID) ([]*classification.Result, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("job_id", jobID.String()))

	return r.listResults(ctx, "postgres.list_results_by_job", dbAttrs,
		`SELECT `+resultColumns+` FROM classification_results
		 WHERE classification_id = $1 ORDER BY created_at DESC`, jobID)
}

// ListResultsByImage returns an image's results, newest first.
func (r *resultStore) ListResultsByImage(ctx context.Context, imageID uuid.UUID) ([]*classification.Result, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("image_id", imageID.String()))

	return r.listResults(ctx, "postgres.list_results_by_image", dbAttrs,
		`SELECT `+resultColumns+` FROM classification_results
		 WHERE image_id = $1 ORDER BY created_at DESC`, imageID)
}

// ListResultsSince returns results ingested at or after the given time,
// newest first.
func (r *resultStore) ListResultsSince(ctx context.Context, since time.Time) ([]*classification.Result, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("since", since.Format(time.RFC3339)))

	return r.listResults(ctx, "postgres.list_results_since", dbAttrs,
		`SELECT `+resultColumns+` FROM classification_results
		 WHERE created_at >= $1 ORDER BY created_at DESC`, since)
}

func (r *resultStore) listResults(
	ctx context.Context,
	spanName string,
	dbAttrs []attribute.KeyValue,
	query string,
	args ...any,
) ([]*classification.Result, error) {
	var results []*classification.Result
	err := storage.ExecuteAndTrace(ctx, r.tracer, spanName, dbAttrs, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query classification results: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			res, err := scanResult(rows)
			if err != nil {
				return fmt.Errorf("scan classification result: %w", err)
			}
			results = append(results, res)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// scanResult reconstructs a domain result from a row that selected
// resultColumns.
func scanResult(row pgx.Row) (*classification.Result, error) {
	var (
		id         uuid.UUID
		imageID    uuid.UUID
		jobID      *uuid.UUID
		label      string
		confidence float64
		modelName  string
		createdAt  time.Time
	)
	if err := row.Scan(&id, &imageID, &jobID, &label, &confidence, &modelName, &createdAt); err != nil {
		return nil, err
	}

	return classification.ReconstructResult(id, imageID, jobID, label, confidence, modelName, createdAt), nil
}
