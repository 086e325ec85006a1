package protobuf

import (
	"fmt"

	"github.com/aevon-lab/rollup/internal/core/aggregation"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Record is a dynamically typed record of the compiled message.
type Record = *dynamicpb.Message

// NewSchema derives an aggregation schema from a message descriptor. Every
// singular numeric field becomes an aggregatable field:
//
//	int32, sint32, sfixed32  Int32
//	int64, sint64, sfixed64  Int64
//	float                    Float32
//	double                   Float64
//
// Other fields (strings, messages, repeated, unsigned) are carried on records
// but not reduced. A field with explicit presence that is unset reads as absent.
func NewSchema(md protoreflect.MessageDescriptor) (*aggregation.Schema[Record], error) {
	var fields []aggregation.Field[Record]

	fds := md.Fields()
	for i := 0; i < fds.Len(); i++ {
		fd := fds.Get(i)
		if fd.IsList() || fd.IsMap() {
			continue
		}
		kind, ok := numericKind(fd.Kind())
		if !ok {
			continue
		}
		fields = append(fields, aggregation.Field[Record]{
			Name: string(fd.Name()),
			Kind: kind,
			Get:  getter(fd),
			Set:  setter(fd, kind),
		})
	}

	return aggregation.NewSchema(string(md.FullName()), func() Record {
		return dynamicpb.NewMessage(md)
	}, fields...)
}

func numericKind(k protoreflect.Kind) (aggregation.NumericKind, bool) {
	switch k {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return aggregation.KindInt32, true
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return aggregation.KindInt64, true
	case protoreflect.FloatKind:
		return aggregation.KindFloat32, true
	case protoreflect.DoubleKind:
		return aggregation.KindFloat64, true
	}
	return 0, false
}

func getter(fd protoreflect.FieldDescriptor) aggregation.Getter[Record] {
	return func(m Record) (decimal.Decimal, bool) {
		if fd.HasPresence() && !m.Has(fd) {
			return decimal.Zero, false
		}
		return aggregation.DecimalOf(m.Get(fd).Interface())
	}
}

func setter(fd protoreflect.FieldDescriptor, kind aggregation.NumericKind) aggregation.Setter[Record] {
	name := string(fd.Name())
	return func(m Record, v decimal.Decimal) (Record, error) {
		var value protoreflect.Value
		switch kind {
		case aggregation.KindInt32:
			n, err := aggregation.ToInt32(name, v)
			if err != nil {
				return m, err
			}
			value = protoreflect.ValueOfInt32(n)
		case aggregation.KindInt64:
			n, err := aggregation.ToInt64(name, v)
			if err != nil {
				return m, err
			}
			value = protoreflect.ValueOfInt64(n)
		case aggregation.KindFloat32:
			f, err := aggregation.ToFloat32(name, v)
			if err != nil {
				return m, err
			}
			value = protoreflect.ValueOfFloat32(f)
		case aggregation.KindFloat64:
			f, err := aggregation.ToFloat64(name, v)
			if err != nil {
				return m, err
			}
			value = protoreflect.ValueOfFloat64(f)
		default:
			return m, fmt.Errorf("field %q: unsupported kind %s", name, kind)
		}
		m.Set(fd, value)
		return m, nil
	}
}

// FieldSet answers membership for every field of a message, numeric or not.
// Key fields are usually identifiers, so configurations are validated against
// it rather than against the numeric schema.
type FieldSet struct {
	md protoreflect.MessageDescriptor
}

// NewFieldSet wraps md.
func NewFieldSet(md protoreflect.MessageDescriptor) FieldSet {
	return FieldSet{md: md}
}

// Has reports whether md declares a field with the given proto name.
func (f FieldSet) Has(name string) bool {
	return f.md.Fields().ByName(protoreflect.Name(name)) != nil
}
