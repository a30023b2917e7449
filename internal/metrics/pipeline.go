package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics defines the interface for recording fulfillment pipeline metrics.
// Implementations track stage outcomes, command dispositions and out-of-process
// retry scheduling for observability.
type PipelineMetrics interface {
	// RecordStage records one pipeline stage execution with its status.
	// Pipeline examples: "process_order", "submit_order".
	// Stage examples: "retrieve_details", "build_document", "persist_pending".
	// Status examples: "success", "failure_retriable", "failure_final".
	RecordStage(ctx context.Context, pipeline, stage, status string)

	// RecordStageDuration records the duration of a pipeline stage with its status.
	// Duration is recorded in seconds as a histogram for percentile calculations.
	RecordStageDuration(ctx context.Context, pipeline, stage string, duration time.Duration, status string)

	// RecordCommandHandled records the disposition of one consumed command.
	// Disposition examples: "completed", "retry_scheduled", "dead_lettered".
	RecordCommandHandled(ctx context.Context, kind, disposition string)

	// RecordRetryScheduled records an out-of-process retry with its attempt number.
	RecordRetryScheduled(ctx context.Context, kind string, attempt int)
}

// pipelineMetrics implements PipelineMetrics using OpenTelemetry metrics.
type pipelineMetrics struct {
	stageCounter   metric.Int64Counter
	stageHisto     metric.Float64Histogram
	commandCounter metric.Int64Counter
	retryCounter   metric.Int64Counter
}

// NewPipelineMetrics creates a new PipelineMetrics implementation using the provided meter provider.
// The namespace parameter is used as a prefix for all metric names (e.g., "fulfillment").
// Returns error if meters cannot be initialized.
func NewPipelineMetrics(meterProvider metric.MeterProvider, namespace string) (PipelineMetrics, error) {
	meter := meterProvider.Meter(namespace)

	stageCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_pipeline_stages_total", namespace),
		metric.WithDescription("Total number of pipeline stage executions"),
		metric.WithUnit("{stage}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage counter: %w", err)
	}

	stageHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_pipeline_stage_duration_seconds", namespace),
		metric.WithDescription("Duration of pipeline stages in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage duration histogram: %w", err)
	}

	commandCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_commands_handled_total", namespace),
		metric.WithDescription("Total number of commands consumed, by disposition"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create command counter: %w", err)
	}

	retryCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_command_retries_scheduled_total", namespace),
		metric.WithDescription("Total number of commands re-enqueued with a backoff delay"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry counter: %w", err)
	}

	return &pipelineMetrics{
		stageCounter:   stageCounter,
		stageHisto:     stageHisto,
		commandCounter: commandCounter,
		retryCounter:   retryCounter,
	}, nil
}

// RecordStage increments the stage counter with pipeline, stage, and status labels.
func (p *pipelineMetrics) RecordStage(ctx context.Context, pipeline, stage, status string) {
	p.stageCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("pipeline", pipeline),
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}

// RecordStageDuration records the stage duration in seconds with pipeline, stage, and status labels.
func (p *pipelineMetrics) RecordStageDuration(
	ctx context.Context,
	pipeline, stage string,
	duration time.Duration,
	status string,
) {
	p.stageHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("pipeline", pipeline),
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}

// RecordCommandHandled increments the command counter with kind and disposition labels.
func (p *pipelineMetrics) RecordCommandHandled(ctx context.Context, kind, disposition string) {
	p.commandCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("disposition", disposition),
		),
	)
}

// RecordRetryScheduled increments the retry counter with kind and attempt labels.
func (p *pipelineMetrics) RecordRetryScheduled(ctx context.Context, kind string, attempt int) {
	p.retryCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.Int("attempt", attempt),
		),
	)
}

// NoOpPipelineMetrics is a no-op implementation of PipelineMetrics for when metrics are disabled.
type NoOpPipelineMetrics struct{}

// NewNoOpPipelineMetrics creates a no-op PipelineMetrics implementation.
func NewNoOpPipelineMetrics() PipelineMetrics {
	return &NoOpPipelineMetrics{}
}

// RecordStage does nothing when metrics are disabled.
func (n *NoOpPipelineMetrics) RecordStage(ctx context.Context, pipeline, stage, status string) {
	// No-op
}

// RecordStageDuration does nothing when metrics are disabled.
func (n *NoOpPipelineMetrics) RecordStageDuration(
	ctx context.Context,
	pipeline, stage string,
	duration time.Duration,
	status string,
) {
	// No-op
}

// RecordCommandHandled does nothing when metrics are disabled.
func (n *NoOpPipelineMetrics) RecordCommandHandled(ctx context.Context, kind, disposition string) {
	// No-op
}

// RecordRetryScheduled does nothing when metrics are disabled.
func (n *NoOpPipelineMetrics) RecordRetryScheduled(ctx context.Context, kind string, attempt int) {
	// No-op
}
