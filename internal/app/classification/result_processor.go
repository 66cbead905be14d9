package classification

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/bioscopeai/bioscope-core/internal/domain/classification"
	"github.com/bioscopeai/bioscope-core/internal/domain/events"
	"github.com/bioscopeai/bioscope-core/pkg/common/logger"
)

// ResultProcessor ingests classification outcomes reported by the worker
// fleet. Processing is idempotent: consuming the same message any number of
// times converges on one result row, a terminal job status and an analyzed
// image flag.
type ResultProcessor struct {
	results domain.ResultRepository
	jobs    domain.JobRepository
	images  domain.ImageRepository

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics PipelineMetrics
}

// NewResultProcessor creates a result processor.
func NewResultProcessor(
	results domain.ResultRepository,
	jobs domain.JobRepository,
	images domain.ImageRepository,
	log *logger.Logger,
	metrics PipelineMetrics,
	tracer trace.Tracer,
) *ResultProcessor {
	return &ResultProcessor{
		results: results,
		jobs:    jobs,
		images:  images,
		logger:  log.With("component", "result_processor"),
		tracer:  tracer,
		metrics: metrics,
	}
}

// Process handles one result message. Errors carry a failure kind: payloads
// that can never become valid are skip errors, while persistence failures
// are retryable so the message is redelivered.
func (p *ResultProcessor) Process(ctx context.Context, evt domain.ResultReceivedEvent) error {
	ctx, span := p.tracer.Start(ctx, "result_processor.process",
		trace.WithAttributes(attribute.String("image_id", evt.ImageID.String())))
	defer span.End()

	modelName := ""
	if evt.ModelName != nil {
		modelName = *evt.ModelName
	}

	result, err := domain.NewResult(evt.ImageID, evt.JobID, evt.Label, evt.Confidence, modelName)
	if err != nil {
		// Semantically invalid content will be invalid on every delivery.
		p.metrics.IncResultFailures(ctx)
		return events.NewSkipError(fmt.Errorf("invalid result payload: %w", err))
	}

	if err := p.results.CreateResult(ctx, result); err != nil {
		p.metrics.IncResultFailures(ctx)
		return events.NewRetryableError(fmt.Errorf("persisting result: %w", err))
	}

	if evt.JobID != nil {
		if err := p.completeJob(ctx, result); err != nil {
			return err
		}
	}

	if err := p.images.MarkImageAnalyzed(ctx, evt.ImageID); err != nil {
		p.metrics.IncResultFailures(ctx)
		return events.NewRetryableError(fmt.Errorf("marking image analyzed: %w", err))
	}

	p.metrics.IncResultsProcessed(ctx)
	p.metrics.ObserveResultConfidence(ctx, result.Confidence())
	p.logger.Info(ctx, "Classification result processed",
		"result_id", result.ResultID(),
		"image_id", result.ImageID(),
		"label", result.Label(),
		"confidence", result.Confidence(),
	)

	return nil
}

// completeJob marks the owning job COMPLETED. Jobs already FAILED keep that
// status: a late result does not resurrect a job an operator or publish
// failure already wrote off. A missing job row (deleted after publish) is
// logged and ignored so the result itself survives.
func (p *ResultProcessor) completeJob(ctx context.Context, result *domain.Result) error {
	jobID := *result.JobID()

	job, err := p.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			p.logger.Warn(ctx, "Result references missing job, keeping result only",
				"job_id", jobID, "result_id", result.ResultID())
			return nil
		}
		p.metrics.IncResultFailures(ctx)
		return events.NewRetryableError(fmt.Errorf("loading job %s: %w", jobID, err))
	}

	if job.Status() == domain.JobStatusFailed {
		p.logger.Warn(ctx, "Result arrived for failed job, status unchanged",
			"job_id", jobID, "result_id", result.ResultID())
		return nil
	}

	if err := job.Complete(); err != nil {
		p.metrics.IncResultFailures(ctx)
		return events.NewSkipError(fmt.Errorf("completing job %s: %w", jobID, err))
	}

	if err := p.jobs.UpdateJobStatus(ctx, job); err != nil {
		p.metrics.IncResultFailures(ctx)
		return events.NewRetryableError(fmt.Errorf("persisting job %s status: %w", jobID, err))
	}

	return nil
}
