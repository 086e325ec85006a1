package projection

import (
	"encoding/json"
	"time"
)

// BucketView is one reduced bucket rendered for the API.
type BucketView struct {
	Granularity string          `json:"granularity"`
	BucketStart time.Time       `json:"bucket_start"`
	BucketEnd   time.Time       `json:"bucket_end"`
	Record      json.RawMessage `json:"record"`
}

// BucketListResponse lists every bucket of one granularity, oldest first.
type BucketListResponse struct {
	Granularity string       `json:"granularity"`
	Count       int          `json:"count"`
	Buckets     []BucketView `json:"buckets"`
}

// FieldPolicy describes how one schema field is reduced.
type FieldPolicy struct {
	Field    string `json:"field"`
	Kind     string `json:"kind"`
	Method   string `json:"method"`
	Excluded bool   `json:"excluded"`
}

// PolicyResponse describes the active aggregation configuration.
type PolicyResponse struct {
	Name         string        `json:"name,omitempty"`
	Fingerprint  string        `json:"fingerprint,omitempty"`
	Schema       string        `json:"schema"`
	KeyFields    []string      `json:"key_fields"`
	CompositeKey bool          `json:"composite_key"`
	Excluded     []string      `json:"excluded"`
	Fields       []FieldPolicy `json:"fields"`
}
