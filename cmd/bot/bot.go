package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/michaelpento.lv/flashplanner/apperror"
	"github.com/michaelpento.lv/flashplanner/config"
	"github.com/michaelpento.lv/flashplanner/control"
	"github.com/michaelpento.lv/flashplanner/scanner"
	"github.com/michaelpento.lv/flashplanner/types"
	"github.com/michaelpento.lv/flashplanner/utils/metrics"
	"github.com/michaelpento.lv/flashplanner/utils/monitor"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultSpoolDir = "var/opportunities"

// Bot runs the scanner and a pool of evaluators until its context ends
type Bot struct {
	cfg        *config.Config
	components *Components
	scanner    *scanner.Scanner
	flag       *control.Flag
	metrics    *metrics.PlannerMetrics
	registry   *prometheus.Registry
	logger     *zap.Logger
}

// New creates a bot instance
func New(ctx context.Context, cfg *config.Config, chain Chain, logger *zap.Logger) (*Bot, error) {
	metrics.Initialize(&metrics.MetricsConfig{
		ReportInterval: cfg.Metrics.ReportInterval,
		LogMetrics:     cfg.Metrics.Enabled,
	}, logger)
	registry := metrics.NewRegistry()
	plannerMetrics := metrics.NewPlannerMetrics(registry, cfg.Metrics.Namespace)
	scannerMetrics := metrics.NewScannerMetrics(registry, cfg.Metrics.Namespace)

	components, err := NewComponents(ctx, cfg, chain, plannerMetrics, logger)
	if err != nil {
		return nil, err
	}

	spoolDir := cfg.Scanner.SpoolDir
	if spoolDir == "" {
		spoolDir = defaultSpoolDir
	}
	flag := control.NewFlag(cfg.Scanner.EnableFile, logger)

	scan, err := scanner.NewScanner(scanner.Config{
		PollInterval:    cfg.Scanner.PollInterval,
		DisabledBackoff: cfg.Scanner.DisabledBackoff,
		DedupeSize:      cfg.Scanner.DedupeSize,
	}, scanner.NewSpoolFeed(spoolDir, logger), flag, scannerMetrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	return &Bot{
		cfg:        cfg,
		components: components,
		scanner:    scan,
		flag:       flag,
		metrics:    plannerMetrics,
		registry:   registry,
		logger:     logger,
	}, nil
}

// Metrics returns the evaluation counters
func (b *Bot) Metrics() *metrics.PlannerMetrics {
	return b.metrics
}

// Start blocks until ctx is cancelled or the metrics server fails
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting flash loan planner...",
		zap.Uint64("chain_id", b.cfg.ChainID),
		zap.Bool("dry_run", b.cfg.DryRun),
		zap.Bool("mev_protect", b.cfg.MEVProtect),
		zap.Int("workers", b.cfg.Workers),
		zap.String("premium", b.components.Premium.String()),
		zap.Strings("venues", b.components.Registry.Venues()))
	if !b.cfg.DryRun {
		b.logger.Info("Signing account", zap.String("from", b.components.Submitter.From().Hex()))
	}

	g, ctx := errgroup.WithContext(ctx)

	opportunities := b.scanner.Run(ctx)

	workers := b.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for opp := range opportunities {
				b.evaluate(ctx, opp)
			}
			return nil
		})
	}

	if b.cfg.Metrics.Enabled {
		g.Go(func() error {
			return b.serveMetrics(ctx)
		})
	}
	if b.cfg.Metrics.ReportInterval > 0 {
		reporter := monitor.NewReporter(b.cfg.Metrics.ReportInterval, b.metrics, b.components.Gas, b.logger)
		g.Go(func() error {
			return reporter.Run(ctx)
		})
	}

	err := g.Wait()
	b.logger.Info("Stopping flash loan planner...")
	return err
}

// evaluate runs one opportunity under the evaluation deadline. Errors never escape.
func (b *Bot) evaluate(ctx context.Context, opp types.Opportunity) {
	timeout := b.cfg.EvaluationTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := b.components.Arbitrator.Evaluate(ctx, opp)
	if err == nil {
		return
	}

	fields := []zap.Field{
		zap.String("opportunity_id", opp.ID),
		zap.Error(err),
	}
	if result != nil {
		fields = append(fields,
			zap.String("trace_id", result.TraceID),
			zap.String("outcome", string(result.Outcome)))
	}

	switch {
	case apperror.HasCode(err, apperror.CodeEvaluationTimeout):
		b.logger.Warn("Opportunity evaluation timed out", fields...)
	case errors.Is(err, context.Canceled):
		b.logger.Debug("Opportunity evaluation cancelled", fields...)
	default:
		b.logger.Error("Failed to evaluate opportunity", fields...)
	}
}

func (b *Bot) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(b.registry))

	server := &http.Server{
		Addr:              b.cfg.Metrics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	b.logger.Info("Serving metrics", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
