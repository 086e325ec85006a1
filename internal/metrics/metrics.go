package metrics

import (
	"time"

	"github.com/aevon-lab/rollup/internal/core/aggregation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rollup"

// Metrics holds the service's collectors. It implements aggregation.Observer.
type Metrics struct {
	recordsAdded      prometheus.Counter
	recomputes        *prometheus.CounterVec
	recomputeDuration *prometheus.HistogramVec
	recomputeRecords  *prometheus.HistogramVec

	days     prometheus.Gauge
	retained prometheus.Gauge
	buckets  *prometheus.GaugeVec
}

var _ aggregation.Observer = (*Metrics)(nil)

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		recordsAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_added_total",
			Help:      "Records inserted into the stateful aggregator.",
		}),
		recomputes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bucket_recomputes_total",
			Help:      "Bucket rebuilds by granularity.",
		}, []string{"granularity"}),
		recomputeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bucket_recompute_duration_seconds",
			Help:      "Time spent rebuilding one bucket.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"granularity"}),
		recomputeRecords: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bucket_recompute_records",
			Help:      "Raw records reduced per bucket rebuild.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"granularity"}),
		days: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retained_days",
			Help:      "Days holding raw records.",
		}),
		retained: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retained_records",
			Help:      "Raw records retained for recomputation.",
		}),
		buckets: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buckets",
			Help:      "Stored buckets by granularity.",
		}, []string{"granularity"}),
	}
}

func (m *Metrics) RecordsAdded(n int) {
	m.recordsAdded.Add(float64(n))
}

func (m *Metrics) BucketRecomputed(g aggregation.Granularity, records int, elapsed time.Duration) {
	label := g.String()
	m.recomputes.WithLabelValues(label).Inc()
	m.recomputeDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	m.recomputeRecords.WithLabelValues(label).Observe(float64(records))
}
