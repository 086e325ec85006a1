package aggregation

import (
	"time"

	"github.com/shopspring/decimal"
)

type reading struct {
	At       time.Time
	Station  string
	Kwh      float64
	PeakKw   float32
	Sessions int32
	Seconds  int64
	Cost     decimal.Decimal
	TempC    *float64
}

var readingSchema = MustSchema("readings",
	func() *reading { return &reading{} },
	Float64Field("kwh",
		func(r *reading) float64 { return r.Kwh },
		func(r *reading, v float64) *reading { r.Kwh = v; return r }),
	Float32Field("peak_kw",
		func(r *reading) float32 { return r.PeakKw },
		func(r *reading, v float32) *reading { r.PeakKw = v; return r }),
	Int32Field("sessions",
		func(r *reading) int32 { return r.Sessions },
		func(r *reading, v int32) *reading { r.Sessions = v; return r }),
	Int64Field("seconds",
		func(r *reading) int64 { return r.Seconds },
		func(r *reading, v int64) *reading { r.Seconds = v; return r }),
	DecimalField("cost",
		func(r *reading) decimal.Decimal { return r.Cost },
		func(r *reading, v decimal.Decimal) *reading { r.Cost = v; return r }),
	OptionalFloat64Field("temp_c",
		func(r *reading) *float64 { return r.TempC },
		func(r *reading, v float64) *reading { r.TempC = &v; return r }),
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func kwh(ts time.Time, v float64) *reading {
	return &reading{At: ts, Kwh: v}
}

func ptr(v float64) *float64 { return &v }

func readingTime(r *reading) time.Time { return r.At }
