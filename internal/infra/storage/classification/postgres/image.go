package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bioscopeai/bioscope-core/internal/domain/classification"
	"github.com/bioscopeai/bioscope-core/internal/infra/storage"
)

var _ classification.ImageRepository = (*imageStore)(nil)

// imageStore implements classification.ImageRepository using PostgreSQL as
// the backing store. It intentionally exposes only the image columns the
// pipeline touches.
type imageStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewImageStore creates a new PostgreSQL-backed image repository with tracing
// capabilities.
func NewImageStore(pool *pgxpool.Pool, tracer trace.Tracer) *imageStore {
	return &imageStore{db: pool, tracer: tracer}
}

// GetImageDevice returns the capturing device for an image, or nil when the
// image has no device association.
func (r *imageStore) GetImageDevice(ctx context.Context, imageID uuid.UUID) (*uuid.UUID, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("image_id", imageID.String()))

	var deviceID *uuid.UUID
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.get_image_device", dbAttrs, func(ctx context.Context) error {
		err := r.db.QueryRow(ctx,
			`SELECT device_id FROM images WHERE id = $1`, imageID,
		).Scan(&deviceID)
		if errors.Is(err, pgx.ErrNoRows) {
			return classification.ErrImageNotFound
		}
		if err != nil {
			return fmt.Errorf("get image device: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deviceID, nil
}

// MarkImageAnalyzed flags the image as analyzed. Re-marking an already
// analyzed image is a no-op; a missing image is not an error here because
// results can reference images deleted after the job was published.
func (r *imageStore) MarkImageAnalyzed(ctx context.Context, imageID uuid.UUID) error {
	dbAttrs := append(defaultDBAttributes, attribute.String("image_id", imageID.String()))

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.mark_image_analyzed", dbAttrs, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx,
			`UPDATE images SET analyzed = TRUE, updated_at = NOW() WHERE id = $1`, imageID)
		if err != nil {
			return fmt.Errorf("mark image analyzed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("image_missing", true))
		}
		return nil
	})
}
