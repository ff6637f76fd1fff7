package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

var logger *zap.Logger

type MetricsConfig struct {
	ReportInterval time.Duration
	LogMetrics     bool
}

// Initialize sets the logger used for metric debug output
func Initialize(cfg *MetricsConfig, log *zap.Logger) {
	logger = log
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
// Each bot owns one, so building a second bot never collides on registration.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler exposes reg over HTTP
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Evaluation outcome labels
const (
	OutcomeNoPath    = "no_supported_path"
	OutcomeSkipped   = "skipped"
	OutcomeSubmitted = "submitted"
	OutcomeFailed    = "failed"
)

type PlannerMetrics struct {
	Outcomes          *prometheus.CounterVec
	QuoteFailures     prometheus.Counter
	AdvisoryErrors    *prometheus.CounterVec
	NetProfitEther    prometheus.Histogram
	EvaluationLatency prometheus.Histogram
	Submissions       *prometheus.CounterVec
	ExecutionRatio    prometheus.Gauge
	InFlight          prometheus.Gauge

	mu sync.Mutex
}

// NewPlannerMetrics registers the evaluation collectors on reg
func NewPlannerMetrics(reg prometheus.Registerer, namespace string) *PlannerMetrics {
	factory := promauto.With(reg)
	return &PlannerMetrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Opportunity evaluations by outcome",
		}, []string{"outcome"}),
		QuoteFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_failures_total",
			Help:      "Total number of router quotes that failed",
		}),
		AdvisoryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advisory_errors_total",
			Help:      "Advisory responses rejected or unavailable, by stage",
		}, []string{"stage"}),
		NetProfitEther: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "expected_net_profit_ether",
			Help:      "Expected net profit of simulated cycles in ether",
			Buckets:   []float64{-1, -0.1, -0.01, 0, 0.001, 0.01, 0.1, 1, 10},
		}),
		EvaluationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_latency_seconds",
			Help:      "Time spent evaluating one opportunity",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Transactions handed to the submitter, by route",
		}, []string{"route"}),
		ExecutionRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "execution_ratio",
			Help:      "Share of evaluations that ended in a submission",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluations_in_flight",
			Help:      "Evaluations currently running",
		}),
	}
}

// RecordOutcome counts one finished evaluation and refreshes the execution ratio
func (m *PlannerMetrics) RecordOutcome(outcome string, elapsed time.Duration) {
	m.Outcomes.WithLabelValues(outcome).Inc()
	m.EvaluationLatency.Observe(elapsed.Seconds())
	m.updateExecutionRatio()
}

func (m *PlannerMetrics) updateExecutionRatio() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var submitted, total float64
	for _, outcome := range []string{OutcomeNoPath, OutcomeSkipped, OutcomeSubmitted, OutcomeFailed} {
		v := counterValue(m.Outcomes.WithLabelValues(outcome))
		total += v
		if outcome == OutcomeSubmitted {
			submitted = v
		}
	}
	if total > 0 {
		m.ExecutionRatio.Set(submitted / total)
	}
	if logger != nil {
		logger.Debug("Updated execution ratio",
			zap.Float64("submitted", submitted),
			zap.Float64("total", total))
	}
}

// Snapshot is a point-in-time view of the evaluation counters
type Snapshot struct {
	Outcomes       map[string]float64
	QuoteFailures  float64
	ExecutionRatio float64
	InFlight       float64
}

// Snapshot reads the current counter values
func (m *PlannerMetrics) Snapshot() Snapshot {
	snap := Snapshot{Outcomes: make(map[string]float64, 4)}
	for _, outcome := range []string{OutcomeNoPath, OutcomeSkipped, OutcomeSubmitted, OutcomeFailed} {
		snap.Outcomes[outcome] = counterValue(m.Outcomes.WithLabelValues(outcome))
	}
	snap.QuoteFailures = counterValue(m.QuoteFailures)
	snap.ExecutionRatio = gaugeValue(m.ExecutionRatio)
	snap.InFlight = gaugeValue(m.InFlight)
	return snap
}

func gaugeValue(g prometheus.Gauge) float64 {
	metric := &dto.Metric{}
	if err := g.Write(metric); err != nil || metric.Gauge == nil {
		return 0
	}
	return metric.Gauge.GetValue()
}

func counterValue(c prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil || metric.Counter == nil {
		return 0
	}
	return metric.Counter.GetValue()
}

type ScannerMetrics struct {
	Polls      prometheus.Counter
	Emitted    prometheus.Counter
	Duplicates prometheus.Counter
	Paused     prometheus.Gauge
	FeedErrors prometheus.Counter
}

func NewScannerMetrics(reg prometheus.Registerer, namespace string) *ScannerMetrics {
	factory := promauto.With(reg)
	return &ScannerMetrics{
		Polls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scanner_polls_total",
			Help:      "Total number of feed polls",
		}),
		Emitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scanner_opportunities_total",
			Help:      "Opportunities handed to the evaluator",
		}),
		Duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scanner_duplicates_total",
			Help:      "Snapshots dropped as already seen",
		}),
		Paused: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scanner_paused",
			Help:      "1 while the enabled flag is off",
		}),
		FeedErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scanner_feed_errors_total",
			Help:      "Total number of feed read errors",
		}),
	}
}
