package aggregation

import (
	"errors"
	"reflect"

	"github.com/shopspring/decimal"
)

// Sample is one record's value for a field.
type Sample struct {
	Value   decimal.Decimal
	Present bool
}

// Operator defines the reduce semantics of a built-in method over the samples of
// one field, in insertion order. ok is false when the method yields no value and
// the field must be left unset.
type Operator interface {
	Reduce(samples []Sample) (v decimal.Decimal, ok bool)
}

// Operators is the registry of built-in methods. Custom is resolved through the
// configuration's reducer instead.
var Operators = map[Method]Operator{
	MethodSum:     sumOp{},
	MethodMin:     minOp{},
	MethodMax:     maxOp{},
	MethodAverage: avgOp{},
	MethodFirst:   firstOp{},
	MethodLast:    lastOp{},
	MethodCount:   countOp{},
}

// sumOp adds all values; absent counts as zero.
type sumOp struct{}

func (sumOp) Reduce(samples []Sample) (decimal.Decimal, bool) {
	total := decimal.Zero
	for _, s := range samples {
		if s.Present {
			total = total.Add(s.Value)
		}
	}
	return total, true
}

// minOp tracks the lowest present value.
type minOp struct{}

func (minOp) Reduce(samples []Sample) (decimal.Decimal, bool) {
	var cur decimal.Decimal
	found := false
	for _, s := range samples {
		if !s.Present {
			continue
		}
		if !found || s.Value.LessThan(cur) {
			cur = s.Value
			found = true
		}
	}
	return cur, found
}

// maxOp tracks the highest present value.
type maxOp struct{}

func (maxOp) Reduce(samples []Sample) (decimal.Decimal, bool) {
	var cur decimal.Decimal
	found := false
	for _, s := range samples {
		if !s.Present {
			continue
		}
		if !found || s.Value.GreaterThan(cur) {
			cur = s.Value
			found = true
		}
	}
	return cur, found
}

// avgOp divides the sum by the full record count; absent values are zeros, not skipped.
type avgOp struct{}

func (avgOp) Reduce(samples []Sample) (decimal.Decimal, bool) {
	if len(samples) == 0 {
		return decimal.Zero, false
	}
	total, _ := sumOp{}.Reduce(samples)
	return total.Div(decimal.NewFromInt(int64(len(samples)))), true
}

// firstOp takes the value of the earliest inserted record.
type firstOp struct{}

func (firstOp) Reduce(samples []Sample) (decimal.Decimal, bool) {
	if len(samples) == 0 || !samples[0].Present {
		return decimal.Zero, false
	}
	return samples[0].Value, true
}

// lastOp takes the value of the latest inserted record.
type lastOp struct{}

func (lastOp) Reduce(samples []Sample) (decimal.Decimal, bool) {
	if len(samples) == 0 || !samples[len(samples)-1].Present {
		return decimal.Zero, false
	}
	return samples[len(samples)-1].Value, true
}

// countOp counts records regardless of their values.
type countOp struct{}

func (countOp) Reduce(samples []Sample) (decimal.Decimal, bool) {
	return decimal.NewFromInt(int64(len(samples))), true
}

// Aggregator reduces one batch of records into a single record according to a
// Configuration. It is not safe for concurrent use.
type Aggregator[R any] struct {
	schema  *Schema[R]
	config  *Configuration
	records []R
}

// NewAggregator creates an empty aggregator.
func NewAggregator[R any](schema *Schema[R], config *Configuration) *Aggregator[R] {
	if config == nil {
		config = NewConfiguration()
	}
	return &Aggregator[R]{schema: schema, config: config}
}

// Add retains one record. Nil records are ignored.
func (a *Aggregator[R]) Add(record R) {
	if isNil(record) {
		return
	}
	a.records = append(a.records, record)
}

// AddRange retains all non-nil records, preserving their order.
func (a *Aggregator[R]) AddRange(records []R) {
	for _, r := range records {
		a.Add(r)
	}
}

// Len returns the number of retained records.
func (a *Aggregator[R]) Len() int {
	return len(a.records)
}

// Result reduces every retained record into a newly constructed record.
//
// With no records the result is the schema's zero record. Fields that are
// excluded or read-only are left as constructed. A returned error joins every
// *ConversionError raised while assigning values; the record is still usable
// and the failed fields are left unaggregated.
func (a *Aggregator[R]) Result() (R, error) {
	result := a.schema.New()
	if len(a.records) == 0 {
		return result, nil
	}

	var errs []error
	for _, f := range a.schema.fields {
		if !f.Writable() || a.config.IsExcluded(f.Name) {
			continue
		}

		v, ok := a.reduceField(f)
		if !ok {
			continue
		}

		updated, err := f.Set(result, v)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result = updated
	}
	return result, errors.Join(errs...)
}

func (a *Aggregator[R]) reduceField(f Field[R]) (decimal.Decimal, bool) {
	method := a.config.Method(f.Name)

	// Count never reads the field.
	if method == MethodCount {
		return decimal.NewFromInt(int64(len(a.records))), true
	}

	if method == MethodCustom {
		reducer := a.config.Reducer(f.Name)
		if reducer == nil {
			return decimal.Zero, false
		}
		values := make([]decimal.Decimal, len(a.records))
		for i, r := range a.records {
			if v, ok := f.Get(r); ok {
				values[i] = v
			}
		}
		return reducer(values), true
	}

	op, ok := Operators[method]
	if !ok {
		return decimal.Zero, false
	}
	samples := make([]Sample, len(a.records))
	for i, r := range a.records {
		v, present := f.Get(r)
		samples[i] = Sample{Value: v, Present: present}
	}
	return op.Reduce(samples)
}

// isNil reports whether r is a nil pointer, map, slice, func, chan or interface.
func isNil[R any](r R) bool {
	v := reflect.ValueOf(any(r))
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
