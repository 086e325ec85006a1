package protobuf

import (
	"errors"
	"fmt"
	"time"

	"github.com/aevon-lab/rollup/internal/core/aggregation"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const timestampFullName = "google.protobuf.Timestamp"

// ErrNoTimestamp is returned when a record does not carry a usable timestamp.
var ErrNoTimestamp = errors.New("record has no timestamp")

// TimeField reads the bucketing timestamp of a record. Supported field types are
// google.protobuf.Timestamp, int64 unix seconds and RFC 3339 strings.
type TimeField struct {
	fd protoreflect.FieldDescriptor
}

// NewTimeField resolves field (proto or JSON name) on md.
func NewTimeField(md protoreflect.MessageDescriptor, field string) (*TimeField, error) {
	fd := md.Fields().ByName(protoreflect.Name(field))
	if fd == nil {
		fd = md.Fields().ByJSONName(field)
	}
	if fd == nil {
		return nil, fmt.Errorf("timestamp field %q not found on %s", field, md.FullName())
	}
	if fd.IsList() || fd.IsMap() {
		return nil, fmt.Errorf("timestamp field %q must be singular", field)
	}

	switch fd.Kind() {
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind, protoreflect.StringKind:
	case protoreflect.MessageKind:
		if fd.Message().FullName() != timestampFullName {
			return nil, fmt.Errorf("timestamp field %q has message type %s, want %s", field, fd.Message().FullName(), timestampFullName)
		}
	default:
		return nil, fmt.Errorf("timestamp field %q has unsupported kind %s", field, fd.Kind())
	}
	return &TimeField{fd: fd}, nil
}

// Name returns the proto field name.
func (t *TimeField) Name() string {
	return string(t.fd.Name())
}

// Time extracts the timestamp of m.
func (t *TimeField) Time(m protoreflect.Message) (time.Time, error) {
	if !m.Has(t.fd) {
		return time.Time{}, fmt.Errorf("%w: %s is unset", ErrNoTimestamp, t.fd.Name())
	}
	v := m.Get(t.fd)

	switch t.fd.Kind() {
	case protoreflect.StringKind:
		ts, err := time.Parse(time.RFC3339Nano, v.String())
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s: %v", ErrNoTimestamp, t.fd.Name(), err)
		}
		return ts, nil
	case protoreflect.MessageKind:
		msg := v.Message()
		fields := msg.Descriptor().Fields()
		seconds := msg.Get(fields.ByName("seconds")).Int()
		nanos := msg.Get(fields.ByName("nanos")).Int()
		return time.Unix(seconds, nanos).UTC(), nil
	default:
		return time.Unix(v.Int(), 0).UTC(), nil
	}
}

// Selector adapts the field to a date selector. Records without a readable
// timestamp map to the zero time; Codec rejects them before they get that far.
func (t *TimeField) Selector() aggregation.DateSelector[Record] {
	return func(m Record) time.Time {
		ts, err := t.Time(m)
		if err != nil {
			return time.Time{}
		}
		return ts
	}
}
