package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMetricsInitialization(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cfg := &MetricsConfig{
		ReportInterval: time.Second,
		LogMetrics:     true,
	}

	Initialize(cfg, logger)
	reg := NewRegistry()
	NewPlannerMetrics(reg, "test_handler").QuoteFailures.Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_handler_quote_failures_total 1")
}

func TestMetricsRegisterTwiceOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPlannerMetrics(NewRegistry(), "twice")
		NewScannerMetrics(NewRegistry(), "twice")
		NewPlannerMetrics(NewRegistry(), "twice")
		NewScannerMetrics(NewRegistry(), "twice")
	})

	reg := NewRegistry()
	NewPlannerMetrics(reg, "twice")
	assert.Panics(t, func() { NewPlannerMetrics(reg, "twice") })
}

func TestPlannerMetrics(t *testing.T) {
	metrics := NewPlannerMetrics(NewRegistry(), "test_planner")
	assert.NotNil(t, metrics)

	metrics.RecordOutcome(OutcomeSkipped, 10*time.Millisecond)
	metrics.RecordOutcome(OutcomeSkipped, 10*time.Millisecond)
	metrics.RecordOutcome(OutcomeNoPath, time.Millisecond)
	metrics.RecordOutcome(OutcomeSubmitted, 50*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Outcomes.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Outcomes.WithLabelValues(OutcomeSubmitted)))
	assert.Equal(t, 0.25, testutil.ToFloat64(metrics.ExecutionRatio))

	metrics.QuoteFailures.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.QuoteFailures))

	metrics.Submissions.WithLabelValues("dry_run").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Submissions.WithLabelValues("dry_run")))

	// For histograms, we can only verify that they accept observations
	metrics.NetProfitEther.Observe(-0.02)
	assert.NotNil(t, metrics.NetProfitEther)
}

func TestExecutionRatioWithoutEvaluations(t *testing.T) {
	metrics := NewPlannerMetrics(NewRegistry(), "test_planner_empty")
	metrics.updateExecutionRatio()
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ExecutionRatio))
}

func TestScannerMetrics(t *testing.T) {
	metrics := NewScannerMetrics(NewRegistry(), "test_scanner")
	metrics.Polls.Inc()
	metrics.Duplicates.Add(3)
	metrics.Paused.Set(1)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Polls))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.Duplicates))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Paused))
}
