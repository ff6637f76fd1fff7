package monitor

import (
	"context"
	"math/big"
	"runtime"
	"time"

	bigmath "github.com/michaelpento.lv/flashplanner/utils/math"
	"github.com/michaelpento.lv/flashplanner/utils/metrics"
	"go.uber.org/zap"
)

// StatsSource supplies the evaluation counters; *metrics.PlannerMetrics satisfies it
type StatsSource interface {
	Snapshot() metrics.Snapshot
}

// BaseFeeSource reports the last live base fee seen; *gas.Estimator satisfies it
type BaseFeeSource interface {
	LastBaseFee() *big.Int
}

// Stats combines pipeline counters with process health
type Stats struct {
	metrics.Snapshot
	// nil until a live base fee has been read
	BaseFee    *big.Int
	Goroutines int
	HeapAlloc  uint64
	HeapObjects uint64
	GCPauseMs  float64
}

// Reporter periodically logs a pipeline summary
type Reporter struct {
	interval time.Duration
	source   StatsSource
	fees     BaseFeeSource
	logger   *zap.Logger
}

// NewReporter creates a reporter. interval must be positive; fees may be nil.
func NewReporter(interval time.Duration, source StatsSource, fees BaseFeeSource, logger *zap.Logger) *Reporter {
	return &Reporter{
		interval: interval,
		source:   source,
		fees:     fees,
		logger:   logger,
	}
}

// Run logs a summary every interval until ctx ends
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.report()
		}
	}
}

// Collect samples the counters and the runtime
func (r *Reporter) Collect() Stats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var baseFee *big.Int
	if r.fees != nil {
		baseFee = r.fees.LastBaseFee()
	}

	return Stats{
		Snapshot:   r.source.Snapshot(),
		BaseFee:    baseFee,
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  memStats.HeapAlloc,
		HeapObjects: memStats.HeapObjects,
		GCPauseMs:  float64(memStats.PauseNs[(memStats.NumGC+255)%256]) / float64(time.Millisecond),
	}
}

func (r *Reporter) report() {
	stats := r.Collect()
	baseFee := "unknown"
	if stats.BaseFee != nil {
		baseFee = bigmath.FormatGwei(stats.BaseFee)
	}
	r.logger.Info("pipeline.report",
		zap.String("base_fee_gwei", baseFee),
		zap.Float64("submitted", stats.Outcomes[metrics.OutcomeSubmitted]),
		zap.Float64("skipped", stats.Outcomes[metrics.OutcomeSkipped]),
		zap.Float64("no_supported_path", stats.Outcomes[metrics.OutcomeNoPath]),
		zap.Float64("failed", stats.Outcomes[metrics.OutcomeFailed]),
		zap.Float64("quote_failures", stats.QuoteFailures),
		zap.Float64("execution_ratio", stats.ExecutionRatio),
		zap.Float64("in_flight", stats.InFlight),
		zap.Int("goroutines", stats.Goroutines),
		zap.Uint64("heap_alloc", stats.HeapAlloc),
		zap.Float64("gc_pause_ms", stats.GCPauseMs))
}
