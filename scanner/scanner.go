package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/michaelpento.lv/flashplanner/types"
	"github.com/michaelpento.lv/flashplanner/utils/metrics"
	"go.uber.org/zap"
)

// FlagReader reports the process-wide enable switch
type FlagReader interface {
	Enabled() bool
}

type Config struct {
	PollInterval    time.Duration
	DisabledBackoff time.Duration
	DedupeSize      int
}

// Scanner polls a Feed while enabled and hands each unseen opportunity downstream once
type Scanner struct {
	cfg     Config
	feed    Feed
	flag    FlagReader
	seen    *lru.Cache
	metrics *metrics.ScannerMetrics
	logger  *zap.Logger
}

// NewScanner creates a scanner. flag and m may be nil.
func NewScanner(cfg Config, feed Feed, flag FlagReader, m *metrics.ScannerMetrics, logger *zap.Logger) (*Scanner, error) {
	if feed == nil {
		return nil, fmt.Errorf("feed is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.DisabledBackoff <= 0 {
		cfg.DisabledBackoff = 2 * time.Second
	}
	if cfg.DedupeSize <= 0 {
		cfg.DedupeSize = 4096
	}
	seen, err := lru.New(cfg.DedupeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &Scanner{
		cfg:     cfg,
		feed:    feed,
		flag:    flag,
		seen:    seen,
		metrics: m,
		logger:  logger,
	}, nil
}

// Fingerprint derives a stable id from a snapshot, ignoring insignificant whitespace
func Fingerprint(snapshot json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, snapshot); err != nil {
		buf.Reset()
		buf.Write(snapshot)
	}
	return fmt.Sprintf("snap-%016x", xxhash.Sum64(buf.Bytes()))
}

// Run starts polling and returns the opportunity stream. The channel closes when ctx ends.
func (s *Scanner) Run(ctx context.Context) <-chan types.Opportunity {
	out := make(chan types.Opportunity)
	go func() {
		defer close(out)
		for {
			wait := s.cfg.PollInterval
			if s.flag != nil && !s.flag.Enabled() {
				s.setPaused(true)
				wait = s.cfg.DisabledBackoff
			} else {
				s.setPaused(false)
				if !s.pollOnce(ctx, out) {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()
	return out
}

// pollOnce forwards one batch; it reports false when ctx ended mid-send
func (s *Scanner) pollOnce(ctx context.Context, out chan<- types.Opportunity) bool {
	if s.metrics != nil {
		s.metrics.Polls.Inc()
	}
	opps, err := s.feed.Poll(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.FeedErrors.Inc()
		}
		s.logger.Error("feed poll failed", zap.Error(err))
		return true
	}

	for _, opp := range opps {
		if opp.ID == "" {
			opp.ID = Fingerprint(opp.Snapshot)
		}
		if ok, _ := s.seen.ContainsOrAdd(opp.ID, struct{}{}); ok {
			if s.metrics != nil {
				s.metrics.Duplicates.Inc()
			}
			s.logger.Debug("dropping already seen opportunity", zap.String("opportunity_id", opp.ID))
			continue
		}
		if opp.ReceivedAt.IsZero() {
			opp.ReceivedAt = time.Now()
		}

		select {
		case <-ctx.Done():
			return false
		case out <- opp:
			if s.metrics != nil {
				s.metrics.Emitted.Inc()
			}
		}
	}
	return true
}

func (s *Scanner) setPaused(paused bool) {
	if s.metrics == nil {
		return
	}
	if paused {
		s.metrics.Paused.Set(1)
	} else {
		s.metrics.Paused.Set(0)
	}
}
