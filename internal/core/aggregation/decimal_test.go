package aggregation

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDecimalOf(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   decimal.Decimal
		wantOK bool
	}{
		{name: "nil", value: nil, want: decimal.Zero},
		{name: "float64", value: 12.5, want: decimal.RequireFromString("12.5"), wantOK: true},
		{name: "float32", value: float32(7.25), want: decimal.RequireFromString("7.25"), wantOK: true},
		{name: "int", value: 7, want: decimal.NewFromInt(7), wantOK: true},
		{name: "int32", value: int32(8), want: decimal.NewFromInt(8), wantOK: true},
		{name: "int64", value: int64(9), want: decimal.NewFromInt(9), wantOK: true},
		{name: "decimal", value: decimal.RequireFromString("1.001"), want: decimal.RequireFromString("1.001"), wantOK: true},
		{name: "valid decimal string", value: "42.125", want: decimal.RequireFromString("42.125"), wantOK: true},
		{name: "invalid string", value: "not-a-number", want: decimal.Zero},
		{name: "NaN", value: math.NaN(), want: decimal.Zero},
		{name: "infinity", value: math.Inf(1), want: decimal.Zero},
		{name: "unsupported type", value: true, want: decimal.Zero},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DecimalOf(tc.value)
			require.Equal(t, tc.wantOK, ok)
			require.True(t, tc.want.Equal(got), "want=%s got=%s", tc.want.String(), got.String())
		})
	}
}

func TestConversionTable(t *testing.T) {
	tests := []struct {
		name    string
		kind    NumericKind
		value   string
		wantErr error
	}{
		{name: "int32 integral", kind: KindInt32, value: "42"},
		{name: "int32 fractional", kind: KindInt32, value: "4.5", wantErr: ErrNotIntegral},
		{name: "int32 overflow", kind: KindInt32, value: "2147483648", wantErr: ErrOutOfRange},
		{name: "int32 min", kind: KindInt32, value: "-2147483648"},
		{name: "int64 large", kind: KindInt64, value: "9223372036854775807"},
		{name: "int64 overflow", kind: KindInt64, value: "9223372036854775808", wantErr: ErrOutOfRange},
		{name: "int64 trailing zeros", kind: KindInt64, value: "10.000"},
		{name: "float32 fits", kind: KindFloat32, value: "3.5"},
		{name: "float32 overflow", kind: KindFloat32, value: "1e39", wantErr: ErrOutOfRange},
		{name: "float64 fits", kind: KindFloat64, value: "1e300"},
		{name: "float64 overflow", kind: KindFloat64, value: "-1e309", wantErr: ErrOutOfRange},
		{name: "decimal always", kind: KindDecimal, value: "0.1234567890123456789"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := checkConvertible("f", tc.kind, decimal.RequireFromString(tc.value))
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
			var convErr *ConversionError
			require.ErrorAs(t, err, &convErr)
			require.Equal(t, "f", convErr.Field)
			require.Equal(t, tc.kind, convErr.Kind)
		})
	}
}
