package aggregation

import (
	"math"
	"sort"
	"strings"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/shopspring/decimal"
)

// sketchAccuracy is the relative accuracy of quantile sketches.
const sketchAccuracy = 0.01

// ReducerRegistry resolves custom reducers by name, e.g. from policy files.
type ReducerRegistry map[string]Reducer

// Lookup returns the reducer registered under name (case-insensitive).
func (r ReducerRegistry) Lookup(name string) (Reducer, bool) {
	red, ok := r[strings.ToLower(strings.TrimSpace(name))]
	return red, ok
}

// Register adds or replaces a named reducer.
func (r ReducerRegistry) Register(name string, reducer Reducer) {
	r[strings.ToLower(strings.TrimSpace(name))] = reducer
}

// DefaultReducers returns the built-in named reducers:
// median/p50, p90, p95, p99, range and distinct.
func DefaultReducers() ReducerRegistry {
	return ReducerRegistry{
		"median":   QuantileReducer(0.5),
		"p50":      QuantileReducer(0.5),
		"p90":      QuantileReducer(0.9),
		"p95":      QuantileReducer(0.95),
		"p99":      QuantileReducer(0.99),
		"range":    rangeReducer,
		"distinct": distinctReducer,
	}
}

// QuantileReducer returns the nearest-rank q-quantile: the value at 1-based
// rank ceil(q*n) of the sorted input. Inputs of up to exactQuantileLimit values
// are ranked exactly. Larger inputs go through a DDSketch and the input value
// closest to its estimate is returned, so the result is always an input value
// and lies within the sketch's relative accuracy of the exact one.
func QuantileReducer(q float64) Reducer {
	return func(values []decimal.Decimal) decimal.Decimal {
		if len(values) == 0 {
			return decimal.Zero
		}
		if len(values) <= exactQuantileLimit {
			return exactQuantile(values, q)
		}

		estimate, err := sketchQuantile(values, q)
		if err != nil {
			return exactQuantile(values, q)
		}

		best := values[0]
		bestDist := best.Sub(estimate).Abs()
		for _, v := range values[1:] {
			if d := v.Sub(estimate).Abs(); d.LessThan(bestDist) {
				best, bestDist = v, d
			}
		}
		return best
	}
}

// exactQuantileLimit is the largest input ranked by sorting.
const exactQuantileLimit = 1024

func sketchQuantile(values []decimal.Decimal, q float64) (decimal.Decimal, error) {
	sketch, err := ddsketch.NewDefaultDDSketch(sketchAccuracy)
	if err != nil {
		return decimal.Zero, err
	}
	for _, v := range values {
		if err := sketch.Add(v.InexactFloat64()); err != nil {
			return decimal.Zero, err
		}
	}
	est, err := sketch.GetValueAtQuantile(q)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(est), nil
}

// nearestRank returns the 0-based index of the q-quantile in n sorted values.
func nearestRank(q float64, n int) int {
	idx := int(math.Ceil(q*float64(n))) - 1
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

// exactQuantile is the nearest-rank quantile over a sorted copy.
func exactQuantile(values []decimal.Decimal, q float64) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	return sorted[nearestRank(q, len(sorted))]
}

// rangeReducer is max minus min.
func rangeReducer(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Max(values[0], values[1:]...).Sub(decimal.Min(values[0], values[1:]...))
}

// distinctReducer counts distinct values.
func distinctReducer(values []decimal.Decimal) decimal.Decimal {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		// Normalize so 1.0 and 1.00 collapse.
		seen[v.Truncate(16).String()] = struct{}{}
	}
	return decimal.NewFromInt(int64(len(seen)))
}
