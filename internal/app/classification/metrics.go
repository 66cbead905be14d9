package classification

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bioscopeai/bioscope-core/internal/infra/eventbus/kafka"
)

// PipelineMetrics defines metrics operations needed by the classification
// pipeline.
type PipelineMetrics interface {
	// Messaging metrics
	kafka.EventBusMetrics

	// Job metrics
	IncJobsCreated(ctx context.Context)
	IncJobPublishFailures(ctx context.Context)

	// Result metrics
	IncResultsProcessed(ctx context.Context)
	IncResultFailures(ctx context.Context)
	ObserveResultConfidence(ctx context.Context, confidence float64)
}

// pipelineMetrics implements PipelineMetrics.
type pipelineMetrics struct {
	// Messaging metrics
	messagesPublished metric.Int64Counter
	messagesConsumed  metric.Int64Counter
	messagesSkipped   metric.Int64Counter
	publishErrors     metric.Int64Counter
	consumeErrors     metric.Int64Counter

	// Job metrics
	jobsCreated        metric.Int64Counter
	jobPublishFailures metric.Int64Counter

	// Result metrics
	resultsProcessed metric.Int64Counter
	resultFailures   metric.Int64Counter
	resultConfidence metric.Float64Histogram
}

const namespace = "classification_pipeline"

// NewPipelineMetrics creates a new pipeline metrics instance.
func NewPipelineMetrics(mp metric.MeterProvider) (*pipelineMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(pipelineMetrics)
	var err error

	if m.messagesPublished, err = meter.Int64Counter(
		"messages_published_total",
		metric.WithDescription("Total number of messages published"),
	); err != nil {
		return nil, err
	}

	if m.messagesConsumed, err = meter.Int64Counter(
		"messages_consumed_total",
		metric.WithDescription("Total number of messages consumed"),
	); err != nil {
		return nil, err
	}

	if m.messagesSkipped, err = meter.Int64Counter(
		"messages_skipped_total",
		metric.WithDescription("Total number of messages skipped as unprocessable"),
	); err != nil {
		return nil, err
	}

	if m.publishErrors, err = meter.Int64Counter(
		"publish_errors_total",
		metric.WithDescription("Total number of publish errors"),
	); err != nil {
		return nil, err
	}

	if m.consumeErrors, err = meter.Int64Counter(
		"consume_errors_total",
		metric.WithDescription("Total number of consume errors"),
	); err != nil {
		return nil, err
	}

	if m.jobsCreated, err = meter.Int64Counter(
		"jobs_created_total",
		metric.WithDescription("Total number of classification jobs created"),
	); err != nil {
		return nil, err
	}

	if m.jobPublishFailures, err = meter.Int64Counter(
		"job_publish_failures_total",
		metric.WithDescription("Total number of jobs that failed at the publish step"),
	); err != nil {
		return nil, err
	}

	if m.resultsProcessed, err = meter.Int64Counter(
		"results_processed_total",
		metric.WithDescription("Total number of classification results processed"),
	); err != nil {
		return nil, err
	}

	if m.resultFailures, err = meter.Int64Counter(
		"result_failures_total",
		metric.WithDescription("Total number of classification results that failed processing"),
	); err != nil {
		return nil, err
	}

	if m.resultConfidence, err = meter.Float64Histogram(
		"result_confidence",
		metric.WithDescription("Distribution of classification result confidences"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *pipelineMetrics) IncMessagePublished(ctx context.Context, topic string) {
	m.messagesPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *pipelineMetrics) IncMessageConsumed(ctx context.Context, topic string) {
	m.messagesConsumed.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *pipelineMetrics) IncMessageSkipped(ctx context.Context, topic string) {
	m.messagesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *pipelineMetrics) IncPublishError(ctx context.Context, topic string) {
	m.publishErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *pipelineMetrics) IncConsumeError(ctx context.Context, topic string) {
	m.consumeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *pipelineMetrics) IncJobsCreated(ctx context.Context) {
	m.jobsCreated.Add(ctx, 1)
}

func (m *pipelineMetrics) IncJobPublishFailures(ctx context.Context) {
	m.jobPublishFailures.Add(ctx, 1)
}

func (m *pipelineMetrics) IncResultsProcessed(ctx context.Context) {
	m.resultsProcessed.Add(ctx, 1)
}

func (m *pipelineMetrics) IncResultFailures(ctx context.Context) {
	m.resultFailures.Add(ctx, 1)
}

func (m *pipelineMetrics) ObserveResultConfidence(ctx context.Context, confidence float64) {
	m.resultConfidence.Record(ctx, confidence)
}
