package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertMetricLine checks that the Prometheus output contains a metric
// matching the given name, partial label pattern, and value. Uses regex to handle
// extra OTel scope labels injected by the Prometheus exporter.
func assertMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func scrapeMetrics(t *testing.T, provider *Provider) string {
	t.Helper()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	provider.Handler().ServeHTTP(recorder, request)

	body, err := io.ReadAll(recorder.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewPipelineMetrics(t *testing.T) {
	t.Run("Success_CreatePipelineMetrics", func(t *testing.T) {
		provider, err := NewProvider("test_app")
		require.NoError(t, err)

		pipelineMetrics, err := NewPipelineMetrics(provider.MeterProvider(), "test_app")

		require.NoError(t, err)
		assert.NotNil(t, pipelineMetrics)
	})
}

func TestPipelineMetrics_RecordStage(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	pm, err := NewPipelineMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)

	pm.RecordStage(context.Background(), "process_order", "retrieve_details", "success")
	pm.RecordStage(context.Background(), "process_order", "persist_pending", "failure_retriable")
	pm.RecordStage(context.Background(), "submit_order", "submit", "failure_final")

	output := scrapeMetrics(t, provider)
	assertMetricLine(t, output, "test_app_pipeline_stages_total",
		`pipeline="process_order",stage="retrieve_details",status="success"`, "1")
	assertMetricLine(t, output, "test_app_pipeline_stages_total",
		`pipeline="submit_order",stage="submit",status="failure_final"`, "1")
}

func TestPipelineMetrics_RecordStageDuration(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	pm, err := NewPipelineMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)

	pm.RecordStageDuration(context.Background(), "process_order", "build_document", 123*time.Millisecond, "success")

	output := scrapeMetrics(t, provider)
	assertMetricLine(t, output, "test_app_pipeline_stage_duration_seconds_count",
		`pipeline="process_order",stage="build_document",status="success"`, "1")
}

func TestPipelineMetrics_RecordCommandHandled(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	pm, err := NewPipelineMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)

	pm.RecordCommandHandled(context.Background(), "process_order", "completed")
	pm.RecordCommandHandled(context.Background(), "process_order", "retry_scheduled")
	pm.RecordCommandHandled(context.Background(), "submit_order_for_production", "dead_lettered")

	output := scrapeMetrics(t, provider)
	assertMetricLine(t, output, "test_app_commands_handled_total",
		`disposition="completed",kind="process_order"`, "1")
	assertMetricLine(t, output, "test_app_commands_handled_total",
		`disposition="dead_lettered",kind="submit_order_for_production"`, "1")
}

func TestPipelineMetrics_RecordRetryScheduled(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	pm, err := NewPipelineMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)

	pm.RecordRetryScheduled(context.Background(), "process_order", 2)

	output := scrapeMetrics(t, provider)
	assertMetricLine(t, output, "test_app_command_retries_scheduled_total",
		`attempt="2",kind="process_order"`, "1")
}

func TestNoOpPipelineMetrics(t *testing.T) {
	pm := NewNoOpPipelineMetrics()

	// None of these should panic
	pm.RecordStage(context.Background(), "process_order", "retrieve_details", "success")
	pm.RecordStageDuration(context.Background(), "process_order", "retrieve_details", time.Second, "success")
	pm.RecordCommandHandled(context.Background(), "process_order", "completed")
	pm.RecordRetryScheduled(context.Background(), "process_order", 1)
}
