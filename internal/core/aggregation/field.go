package aggregation

import (
	"math"

	"github.com/shopspring/decimal"
)

// Getter reads a field from a record. present is false when the record carries
// no value for the field.
type Getter[R any] func(r R) (v decimal.Decimal, present bool)

// Setter writes a reduced value onto a result record and returns the updated record.
// It returns a *ConversionError when v cannot be represented in the field's kind.
type Setter[R any] func(r R, v decimal.Decimal) (R, error)

// Field describes one numeric field of a record type.
type Field[R any] struct {
	Name string
	Kind NumericKind
	Get  Getter[R]
	Set  Setter[R] // nil for read-only fields
}

// Writable reports whether reduced values can be assigned to this field.
func (f Field[R]) Writable() bool {
	return f.Set != nil
}

// Schema is the registration-time field table of a record type. Field lookup and
// kind dispatch are resolved once here, not per reduction.
type Schema[R any] struct {
	name      string
	newRecord func() R
	fields    []Field[R]
	index     map[string]int
}

// NewSchema builds a schema from its fields. newRecord must return a fresh,
// zero-valued record on every call; results are built on top of it.
func NewSchema[R any](name string, newRecord func() R, fields ...Field[R]) (*Schema[R], error) {
	if newRecord == nil {
		newRecord = func() R {
			var zero R
			return zero
		}
	}

	s := &Schema[R]{
		name:      name,
		newRecord: newRecord,
		fields:    make([]Field[R], 0, len(fields)),
		index:     make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, &ConfigurationError{Op: "schema " + name, Err: errEmptyFieldName}
		}
		if f.Get == nil {
			return nil, &ConfigurationError{Op: "schema " + name, Field: f.Name, Err: errNilGetter}
		}
		if _, exists := s.index[f.Name]; exists {
			return nil, &ConfigurationError{Op: "schema " + name, Field: f.Name, Err: ErrDuplicateField}
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error. Intended for package-level
// schema declarations.
func MustSchema[R any](name string, newRecord func() R, fields ...Field[R]) *Schema[R] {
	s, err := NewSchema(name, newRecord, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema[R]) Name() string { return s.name }

// Fields returns the fields in registration order.
func (s *Schema[R]) Fields() []Field[R] {
	out := make([]Field[R], len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by name.
func (s *Schema[R]) Field(name string) (Field[R], bool) {
	i, ok := s.index[name]
	if !ok {
		return Field[R]{}, false
	}
	return s.fields[i], true
}

// Has reports whether the schema declares the named field.
func (s *Schema[R]) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// New returns a fresh zero-valued record.
func (s *Schema[R]) New() R {
	return s.newRecord()
}

// Int32Field registers an int32 field.
func Int32Field[R any](name string, get func(R) int32, set func(R, int32) R) Field[R] {
	f := Field[R]{
		Name: name,
		Kind: KindInt32,
		Get:  func(r R) (decimal.Decimal, bool) { return decimal.NewFromInt32(get(r)), true },
	}
	if set != nil {
		f.Set = func(r R, v decimal.Decimal) (R, error) {
			n, err := ToInt32(name, v)
			if err != nil {
				return r, err
			}
			return set(r, n), nil
		}
	}
	return f
}

// Int64Field registers an int64 field.
func Int64Field[R any](name string, get func(R) int64, set func(R, int64) R) Field[R] {
	f := Field[R]{
		Name: name,
		Kind: KindInt64,
		Get:  func(r R) (decimal.Decimal, bool) { return decimal.NewFromInt(get(r)), true },
	}
	if set != nil {
		f.Set = func(r R, v decimal.Decimal) (R, error) {
			n, err := ToInt64(name, v)
			if err != nil {
				return r, err
			}
			return set(r, n), nil
		}
	}
	return f
}

// OptionalInt64Field registers a nullable int64 field; a nil pointer is absent.
func OptionalInt64Field[R any](name string, get func(R) *int64, set func(R, int64) R) Field[R] {
	f := Int64Field(name, func(R) int64 { return 0 }, set)
	f.Get = func(r R) (decimal.Decimal, bool) {
		p := get(r)
		if p == nil {
			return decimal.Zero, false
		}
		return decimal.NewFromInt(*p), true
	}
	return f
}

// Float32Field registers a float32 field. NaN and infinities read as absent.
func Float32Field[R any](name string, get func(R) float32, set func(R, float32) R) Field[R] {
	f := Field[R]{
		Name: name,
		Kind: KindFloat32,
		Get:  func(r R) (decimal.Decimal, bool) { return fromFloat32(get(r)) },
	}
	if set != nil {
		f.Set = func(r R, v decimal.Decimal) (R, error) {
			n, err := ToFloat32(name, v)
			if err != nil {
				return r, err
			}
			return set(r, n), nil
		}
	}
	return f
}

// Float64Field registers a float64 field. NaN and infinities read as absent.
func Float64Field[R any](name string, get func(R) float64, set func(R, float64) R) Field[R] {
	f := Field[R]{
		Name: name,
		Kind: KindFloat64,
		Get:  func(r R) (decimal.Decimal, bool) { return fromFloat(get(r)) },
	}
	if set != nil {
		f.Set = func(r R, v decimal.Decimal) (R, error) {
			n, err := ToFloat64(name, v)
			if err != nil {
				return r, err
			}
			return set(r, n), nil
		}
	}
	return f
}

// OptionalFloat64Field registers a nullable float64 field; a nil pointer is absent.
func OptionalFloat64Field[R any](name string, get func(R) *float64, set func(R, float64) R) Field[R] {
	f := Float64Field(name, func(R) float64 { return 0 }, set)
	f.Get = func(r R) (decimal.Decimal, bool) {
		p := get(r)
		if p == nil {
			return decimal.Zero, false
		}
		return fromFloat(*p)
	}
	return f
}

// DecimalField registers a fixed-point decimal field.
func DecimalField[R any](name string, get func(R) decimal.Decimal, set func(R, decimal.Decimal) R) Field[R] {
	f := Field[R]{
		Name: name,
		Kind: KindDecimal,
		Get:  func(r R) (decimal.Decimal, bool) { return get(r), true },
	}
	if set != nil {
		f.Set = func(r R, v decimal.Decimal) (R, error) {
			return set(r, v), nil
		}
	}
	return f
}

func fromFloat(v float64) (decimal.Decimal, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(v), true
}

// fromFloat32 uses the shortest float32 representation, as DecimalOf does.
func fromFloat32(v float32) (decimal.Decimal, bool) {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat32(v), true
}
