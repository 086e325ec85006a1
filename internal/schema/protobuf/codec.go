package protobuf

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// RecordError reports which element of a batch failed to decode.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Codec converts between JSON and dynamic records of one message type.
type Codec struct {
	md        protoreflect.MessageDescriptor
	timeField *TimeField
	unmarshal protojson.UnmarshalOptions
	marshal   protojson.MarshalOptions
}

// NewCodec creates a codec for md. When timeField is set, decoded records must
// carry a readable timestamp.
func NewCodec(md protoreflect.MessageDescriptor, timeField *TimeField) *Codec {
	return &Codec{
		md:        md,
		timeField: timeField,
		unmarshal: protojson.UnmarshalOptions{},
		marshal: protojson.MarshalOptions{
			UseProtoNames:   true,
			EmitUnpopulated: true,
		},
	}
}

// Descriptor returns the record message descriptor.
func (c *Codec) Descriptor() protoreflect.MessageDescriptor {
	return c.md
}

// Decode parses one JSON object into a record.
func (c *Codec) Decode(data []byte) (Record, error) {
	m := dynamicpb.NewMessage(c.md)
	if err := c.unmarshal.Unmarshal(data, m); err != nil {
		return nil, err
	}
	if c.timeField != nil {
		if _, err := c.timeField.Time(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// DecodeBatch parses a JSON array of records. The first failing element is
// reported as a *RecordError.
func (c *Codec) DecodeBatch(data []byte) ([]Record, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("expected a JSON array of records: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for i, item := range raw {
		m, err := c.Decode(item)
		if err != nil {
			return nil, &RecordError{Index: i, Err: err}
		}
		records = append(records, m)
	}
	return records, nil
}

// Encode renders a record as JSON with proto field names.
func (c *Codec) Encode(m Record) (json.RawMessage, error) {
	b, err := c.marshal.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
