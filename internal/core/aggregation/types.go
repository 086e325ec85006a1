package aggregation

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Method is the rule used to combine one field's values across a record set.
type Method int

// Supported reduction methods. Sum is the default for unconfigured fields.
const (
	MethodSum Method = iota
	MethodMin
	MethodMax
	MethodAverage
	MethodFirst
	MethodLast
	MethodCount
	MethodCustom
)

var methodNames = map[Method]string{
	MethodSum:     "sum",
	MethodMin:     "min",
	MethodMax:     "max",
	MethodAverage: "avg",
	MethodFirst:   "first",
	MethodLast:    "last",
	MethodCount:   "count",
	MethodCustom:  "custom",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod resolves a method name. "average" is accepted as an alias of "avg".
func ParseMethod(s string) (Method, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "average" {
		return MethodAverage, nil
	}
	for m, n := range methodNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// Reducer is a user-supplied reduction. It receives one field's values in
// insertion order, with absent values passed as zero.
type Reducer func(values []decimal.Decimal) decimal.Decimal

// Bucket is one reduced record for a calendar period.
type Bucket[R any] struct {
	Granularity Granularity
	Start       time.Time // inclusive
	End         time.Time // exclusive
	Record      R
}
