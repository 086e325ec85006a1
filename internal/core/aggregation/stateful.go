package aggregation

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aevon-lab/rollup/internal/core/partition"
)

// DateSelector extracts the timestamp a record is bucketed by.
type DateSelector[R any] func(r R) time.Time

// Observer receives notifications about stateful aggregation work.
type Observer interface {
	RecordsAdded(n int)
	BucketRecomputed(g Granularity, records int, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) RecordsAdded(int)                                  {}
func (noopObserver) BucketRecomputed(Granularity, int, time.Duration) {}

// StatefulOptions controls bucketing and instrumentation of a Stateful aggregator.
type StatefulOptions struct {
	// Location defines calendar boundaries. Defaults to UTC.
	Location *time.Location
	Logger   *slog.Logger
	Observer Observer
}

func (o StatefulOptions) normalized() StatefulOptions {
	n := o
	if n.Location == nil {
		n.Location = time.UTC
	}
	if n.Logger == nil {
		n.Logger = slog.Default()
	}
	if n.Observer == nil {
		n.Observer = noopObserver{}
	}
	return n
}

// Stateful keeps day, week, month and year reductions of a record stream
// consistent as records arrive.
//
// Every insert appends to the raw buffer of the record's day and then rebuilds
// the four buckets containing that day from their full raw membership. Buckets
// are never merged from partial results, so Min, Max, Average and custom
// reducers stay exact.
//
// Inserts for different days proceed concurrently. Rebuilds of the same bucket
// are serialized and read the raw buffers only after taking the bucket's lock,
// so the last rebuild to run always sees every record appended before it and
// the stored buckets converge once inserts stop.
type Stateful[R any] struct {
	schema   *Schema[R]
	config   *Configuration
	selector DateSelector[R]
	opts     StatefulOptions

	raw     *partition.Map[[]R]
	buckets [Yearly + 1]*partition.Map[R]
	rebuild [Yearly + 1][partition.Count]sync.Mutex
}

// NewStateful creates an empty stateful aggregator.
func NewStateful[R any](schema *Schema[R], config *Configuration, selector DateSelector[R], opts StatefulOptions) *Stateful[R] {
	if config == nil {
		config = NewConfiguration()
	}
	s := &Stateful[R]{
		schema:   schema,
		config:   config,
		selector: selector,
		opts:     opts.normalized(),
		raw:      partition.NewMap[[]R](),
	}
	for i := range s.buckets {
		s.buckets[i] = partition.NewMap[R]()
	}
	return s
}

// Add inserts one record and rebuilds the buckets containing its day.
// Nil records are ignored.
func (s *Stateful[R]) Add(record R) {
	if isNil(record) {
		return
	}
	day := s.dayOf(record)
	s.raw.Update(dayKey(day), func(cur []R, _ bool) []R {
		return append(cur, record)
	})
	s.opts.Observer.RecordsAdded(1)

	for _, g := range Granularities {
		s.recompute(g, BucketStart(day, g))
	}
}

// AddRange inserts a batch. Records are grouped by day first so each affected
// bucket is rebuilt once for the whole batch.
func (s *Stateful[R]) AddRange(records []R) {
	var order []int64
	days := make(map[int64]time.Time)
	groups := make(map[int64][]R)
	added := 0
	for _, r := range records {
		if isNil(r) {
			continue
		}
		day := s.dayOf(r)
		k := dayKey(day)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
			days[k] = day
		}
		groups[k] = append(groups[k], r)
		added++
	}
	if added == 0 {
		return
	}

	for _, k := range order {
		batch := groups[k]
		s.raw.Update(k, func(cur []R, _ bool) []R {
			return append(cur, batch...)
		})
	}
	s.opts.Observer.RecordsAdded(added)

	for _, g := range Granularities {
		done := make(map[int64]struct{})
		for _, k := range order {
			start := BucketStart(days[k], g)
			sk := dayKey(start)
			if _, ok := done[sk]; ok {
				continue
			}
			done[sk] = struct{}{}
			s.recompute(g, start)
		}
	}
}

// recompute rebuilds one bucket from the raw buffers of the days it spans.
func (s *Stateful[R]) recompute(g Granularity, start time.Time) {
	key := dayKey(start)
	mu := &s.rebuild[g][partition.For(key)]
	mu.Lock()
	defer mu.Unlock()

	began := time.Now()
	end := BucketEnd(start, g)

	agg := NewAggregator(s.schema, s.config)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if recs, ok := s.raw.Load(dayKey(d)); ok {
			agg.AddRange(recs)
		}
	}

	result, err := agg.Result()
	if err != nil {
		s.opts.Logger.Warn("[Stateful] Bucket stored with unaggregated fields",
			"schema", s.schema.Name(),
			"granularity", g.String(),
			"bucket_start", start,
			"error", err,
		)
	}
	s.buckets[g].Store(key, result)
	s.opts.Observer.BucketRecomputed(g, agg.Len(), time.Since(began))
}

// Aggregate returns the reduced record of the g-bucket containing t.
func (s *Stateful[R]) Aggregate(g Granularity, t time.Time) (R, bool) {
	if g < Daily || g > Yearly {
		var zero R
		return zero, false
	}
	start := BucketStart(t.In(s.opts.Location), g)
	return s.buckets[g].Load(dayKey(start))
}

// Daily returns the reduction of the day containing t.
func (s *Stateful[R]) Daily(t time.Time) (R, bool) { return s.Aggregate(Daily, t) }

// Weekly returns the reduction of the week containing t.
func (s *Stateful[R]) Weekly(t time.Time) (R, bool) { return s.Aggregate(Weekly, t) }

// Monthly returns the reduction of the month containing t.
func (s *Stateful[R]) Monthly(t time.Time) (R, bool) { return s.Aggregate(Monthly, t) }

// Yearly returns the reduction of the year containing t.
func (s *Stateful[R]) Yearly(t time.Time) (R, bool) { return s.Aggregate(Yearly, t) }

// All returns a snapshot of every g-bucket keyed by bucket start. The map is
// owned by the caller.
func (s *Stateful[R]) All(g Granularity) map[time.Time]R {
	out := make(map[time.Time]R)
	if g < Daily || g > Yearly {
		return out
	}
	for k, v := range s.buckets[g].Snapshot() {
		out[s.keyTime(k)] = v
	}
	return out
}

// AllDaily returns a snapshot of every daily bucket.
func (s *Stateful[R]) AllDaily() map[time.Time]R { return s.All(Daily) }

// AllWeekly returns a snapshot of every weekly bucket.
func (s *Stateful[R]) AllWeekly() map[time.Time]R { return s.All(Weekly) }

// AllMonthly returns a snapshot of every monthly bucket.
func (s *Stateful[R]) AllMonthly() map[time.Time]R { return s.All(Monthly) }

// AllYearly returns a snapshot of every yearly bucket.
func (s *Stateful[R]) AllYearly() map[time.Time]R { return s.All(Yearly) }

// Buckets returns a snapshot of every g-bucket ordered by start.
func (s *Stateful[R]) Buckets(g Granularity) []Bucket[R] {
	all := s.All(g)
	out := make([]Bucket[R], 0, len(all))
	for start, rec := range all {
		out = append(out, Bucket[R]{
			Granularity: g,
			Start:       start,
			End:         BucketEnd(start, g),
			Record:      rec,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Days returns the number of days holding raw records.
func (s *Stateful[R]) Days() int {
	return s.raw.Len()
}

// BucketCount returns the number of stored g-buckets.
func (s *Stateful[R]) BucketCount(g Granularity) int {
	if g < Daily || g > Yearly {
		return 0
	}
	return s.buckets[g].Len()
}

// RecordCount returns the number of raw records retained.
func (s *Stateful[R]) RecordCount() int {
	n := 0
	for _, recs := range s.raw.Snapshot() {
		n += len(recs)
	}
	return n
}

// Location returns the location calendar boundaries are computed in.
func (s *Stateful[R]) Location() *time.Location {
	return s.opts.Location
}

// Schema returns the record schema.
func (s *Stateful[R]) Schema() *Schema[R] {
	return s.schema
}

// Configuration returns the shared aggregation configuration.
func (s *Stateful[R]) Configuration() *Configuration {
	return s.config
}

func (s *Stateful[R]) dayOf(r R) time.Time {
	return BucketStart(s.selector(r).In(s.opts.Location), Daily)
}

func (s *Stateful[R]) keyTime(k int64) time.Time {
	year, month, day := time.Unix(k, 0).UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, s.opts.Location)
}

// dayKey identifies a calendar date independent of its location's offset.
func dayKey(t time.Time) int64 {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix()
}
