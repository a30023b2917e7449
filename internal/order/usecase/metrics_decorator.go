package usecase

import (
	"context"
	"time"

	"github.com/allisson/fulfillment/internal/metrics"
	"github.com/allisson/fulfillment/internal/result"
)

// OrderProcessor is the staging pipeline contract consumed by the workers.
type OrderProcessor interface {
	Process(ctx context.Context, req ProcessRequest) (result.Result[string], error)
}

// OrderSubmitter is the completion pipeline contract consumed by the workers.
type OrderSubmitter interface {
	Submit(ctx context.Context, req SubmitRequest) (result.Result[string], error)
}

// resultStatus maps a pipeline outcome to a metric status label.
func resultStatus(res result.Result[string], err error) string {
	switch {
	case err != nil:
		return "error"
	case res.Succeeded():
		return "success"
	case res.Retriable():
		return "failure_retriable"
	default:
		return "failure_final"
	}
}

// processorWithMetrics decorates OrderProcessor with metrics instrumentation.
type processorWithMetrics struct {
	next    OrderProcessor
	metrics metrics.PipelineMetrics
}

// NewProcessorWithMetrics wraps an OrderProcessor with metrics recording.
func NewProcessorWithMetrics(processor OrderProcessor, m metrics.PipelineMetrics) OrderProcessor {
	return &processorWithMetrics{
		next:    processor,
		metrics: m,
	}
}

// Process records metrics for staging pipeline runs.
func (p *processorWithMetrics) Process(ctx context.Context, req ProcessRequest) (result.Result[string], error) {
	start := time.Now()
	res, err := p.next.Process(ctx, req)

	status := resultStatus(res, err)
	p.metrics.RecordStage(ctx, "process_order", "pipeline", status)
	p.metrics.RecordStageDuration(ctx, "process_order", "pipeline", time.Since(start), status)

	return res, err
}

// submitterWithMetrics decorates OrderSubmitter with metrics instrumentation.
type submitterWithMetrics struct {
	next    OrderSubmitter
	metrics metrics.PipelineMetrics
}

// NewSubmitterWithMetrics wraps an OrderSubmitter with metrics recording.
func NewSubmitterWithMetrics(submitter OrderSubmitter, m metrics.PipelineMetrics) OrderSubmitter {
	return &submitterWithMetrics{
		next:    submitter,
		metrics: m,
	}
}

// Submit records metrics for completion pipeline runs.
func (s *submitterWithMetrics) Submit(ctx context.Context, req SubmitRequest) (result.Result[string], error) {
	start := time.Now()
	res, err := s.next.Submit(ctx, req)

	status := resultStatus(res, err)
	s.metrics.RecordStage(ctx, "submit_order", "pipeline", status)
	s.metrics.RecordStageDuration(ctx, "submit_order", "pipeline", time.Since(start), status)

	return res, err
}
