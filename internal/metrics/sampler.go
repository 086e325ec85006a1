package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aevon-lab/rollup/internal/core/aggregation"
)

// Source is the aggregator state a Sampler reads.
type Source interface {
	Days() int
	RecordCount() int
	BucketCount(g aggregation.Granularity) int
}

// Sampler periodically copies aggregator state into gauges.
type Sampler struct {
	interval time.Duration
	source   Source
	metrics  *Metrics
}

// NewSampler creates a sampler. A non-positive interval defaults to 15s.
func NewSampler(interval time.Duration, source Source, m *Metrics) *Sampler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Sampler{interval: interval, source: source, metrics: m}
}

// Start samples immediately and then on every tick until ctx is cancelled.
func (s *Sampler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Sampler] Starting state sampler", "interval", s.interval)
	s.Sample()

	for {
		select {
		case <-ticker.C:
			s.Sample()
		case <-ctx.Done():
			slog.Info("[Sampler] Stopping (context cancelled)",
				"days", s.source.Days(),
				"records", s.source.RecordCount(),
			)
			return nil
		}
	}
}

// Sample updates the gauges once.
func (s *Sampler) Sample() {
	s.metrics.days.Set(float64(s.source.Days()))
	s.metrics.retained.Set(float64(s.source.RecordCount()))
	for _, g := range aggregation.Granularities {
		s.metrics.buckets.WithLabelValues(g.String()).Set(float64(s.source.BucketCount(g)))
	}
}
