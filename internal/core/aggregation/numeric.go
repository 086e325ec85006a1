package aggregation

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// NumericKind is the closed set of scalar kinds a schema field may declare.
// Reductions run on decimal.Decimal and are converted back to the field's kind
// on assignment:
//
//	Int32, Int64  exact; fractional or out-of-range values fail
//	Float32       nearest float32; magnitudes above MaxFloat32 fail
//	Float64       nearest float64; magnitudes above MaxFloat64 fail
//	Decimal       identity
type NumericKind int

const (
	KindInt32 NumericKind = iota
	KindInt64
	KindFloat32
	KindFloat64
	KindDecimal
)

func (k NumericKind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindDecimal:
		return "decimal"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

var (
	minInt32   = decimal.NewFromInt(math.MinInt32)
	maxInt32   = decimal.NewFromInt(math.MaxInt32)
	minInt64   = decimal.NewFromInt(math.MinInt64)
	maxInt64   = decimal.NewFromInt(math.MaxInt64)
	maxFloat32 = decimal.NewFromFloat(math.MaxFloat32)
	maxFloat64 = decimal.NewFromFloat(math.MaxFloat64)
)

// checkConvertible reports whether v can be stored in kind k without loss
// beyond the kind's own precision.
func checkConvertible(field string, k NumericKind, v decimal.Decimal) error {
	fail := func(err error) error {
		return &ConversionError{Field: field, Kind: k, Value: v, Err: err}
	}

	switch k {
	case KindInt32, KindInt64:
		if !v.IsInteger() {
			return fail(ErrNotIntegral)
		}
		lo, hi := minInt32, maxInt32
		if k == KindInt64 {
			lo, hi = minInt64, maxInt64
		}
		if v.LessThan(lo) || v.GreaterThan(hi) {
			return fail(ErrOutOfRange)
		}
	case KindFloat32:
		if v.Abs().GreaterThan(maxFloat32) {
			return fail(ErrOutOfRange)
		}
	case KindFloat64:
		if v.Abs().GreaterThan(maxFloat64) {
			return fail(ErrOutOfRange)
		}
	case KindDecimal:
	default:
		return fail(fmt.Errorf("unsupported kind"))
	}
	return nil
}

// ToInt32 converts v exactly or returns a *ConversionError.
func ToInt32(field string, v decimal.Decimal) (int32, error) {
	if err := checkConvertible(field, KindInt32, v); err != nil {
		return 0, err
	}
	return int32(v.IntPart()), nil
}

// ToInt64 converts v exactly or returns a *ConversionError.
func ToInt64(field string, v decimal.Decimal) (int64, error) {
	if err := checkConvertible(field, KindInt64, v); err != nil {
		return 0, err
	}
	return v.IntPart(), nil
}

// ToFloat32 converts v to the nearest float32 or returns a *ConversionError.
func ToFloat32(field string, v decimal.Decimal) (float32, error) {
	if err := checkConvertible(field, KindFloat32, v); err != nil {
		return 0, err
	}
	return float32(v.InexactFloat64()), nil
}

// ToFloat64 converts v to the nearest float64 or returns a *ConversionError.
func ToFloat64(field string, v decimal.Decimal) (float64, error) {
	if err := checkConvertible(field, KindFloat64, v); err != nil {
		return 0, err
	}
	return v.InexactFloat64(), nil
}
