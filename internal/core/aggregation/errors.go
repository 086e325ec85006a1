package aggregation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyKey is returned when a composite key is declared with no fields.
	ErrEmptyKey = errors.New("key must name at least one field")

	// ErrDuplicateField is returned when a schema registers the same field name twice.
	ErrDuplicateField = errors.New("duplicate field")

	// ErrUnknownField is returned when a configuration names a field the schema lacks.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownMethod is returned when a method or reducer name cannot be resolved.
	ErrUnknownMethod = errors.New("unknown aggregation method")

	// ErrNotIntegral is returned when a fractional result targets an integer field.
	ErrNotIntegral = errors.New("value is not integral")

	// ErrOutOfRange is returned when a result does not fit the field's kind.
	ErrOutOfRange = errors.New("value out of range")

	errEmptyFieldName = errors.New("field name must not be empty")
	errNilGetter      = errors.New("field has no getter")
)

// ConfigurationError reports an invalid aggregation configuration or schema declaration.
type ConfigurationError struct {
	Op    string
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %v", e.Op, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ConversionError reports that a reduced value could not be assigned to a field
// without losing information. The field is left unaggregated on the result.
type ConversionError struct {
	Field string
	Kind  NumericKind
	Value decimal.Decimal
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s to %s for field %q: %v", e.Value.String(), e.Kind, e.Field, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
