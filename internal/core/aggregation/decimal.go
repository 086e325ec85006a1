package aggregation

import (
	"math"

	"github.com/shopspring/decimal"
)

// DecimalOf converts a dynamically typed scalar into a decimal.
// Returns false for nil, NaN, infinities, unparsable strings and non-numeric types.
// Floats convert through their shortest decimal representation.
func DecimalOf(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(val), true
	case float32:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case int32:
		return decimal.NewFromInt32(val), true
	case string:
		d, err := decimal.NewFromString(val)
		if err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}
