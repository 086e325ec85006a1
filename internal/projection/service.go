package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aevon-lab/rollup/internal/core/aggregation"
	"github.com/aevon-lab/rollup/internal/schema/protobuf"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidQuery marks request validation errors that should return HTTP 400.
	ErrInvalidQuery = errors.New("invalid aggregate query")

	// ErrBucketNotFound is returned when no record falls in the requested bucket.
	ErrBucketNotFound = errors.New("bucket not found")
)

// Store is the read side of the stateful aggregator.
type Store interface {
	Aggregate(g aggregation.Granularity, t time.Time) (protobuf.Record, bool)
	Buckets(g aggregation.Granularity) []aggregation.Bucket[protobuf.Record]
	Schema() *aggregation.Schema[protobuf.Record]
	Configuration() *aggregation.Configuration
	Location() *time.Location
}

// Encoder renders records as JSON.
type Encoder interface {
	Encode(m protobuf.Record) (json.RawMessage, error)
}

// Service implements the query layer over in-memory buckets.
type Service struct {
	store   Store
	encoder Encoder
	policy  *aggregation.Policy

	// lists coalesces concurrent full listings of the same granularity.
	lists singleflight.Group
}

// NewService creates a projection service. policy may be nil when the
// configuration was built in code.
func NewService(store Store, encoder Encoder, policy *aggregation.Policy) *Service {
	return &Service{
		store:   store,
		encoder: encoder,
		policy:  policy,
	}
}

// BucketAt returns the g-bucket containing at.
func (s *Service) BucketAt(_ context.Context, granularity string, at time.Time) (*BucketView, error) {
	g, err := parseGranularity(granularity)
	if err != nil {
		return nil, err
	}

	rec, ok := s.store.Aggregate(g, at)
	if !ok {
		return nil, fmt.Errorf("%w: %s bucket containing %s", ErrBucketNotFound, g, at.Format(time.RFC3339))
	}

	start := aggregation.BucketStart(at.In(s.store.Location()), g)
	return s.render(aggregation.Bucket[protobuf.Record]{
		Granularity: g,
		Start:       start,
		End:         aggregation.BucketEnd(start, g),
		Record:      rec,
	})
}

// ListBuckets returns every g-bucket ordered by start.
func (s *Service) ListBuckets(ctx context.Context, granularity string) (*BucketListResponse, error) {
	g, err := parseGranularity(granularity)
	if err != nil {
		return nil, err
	}

	ch := s.lists.DoChan(g.String(), func() (interface{}, error) {
		buckets := s.store.Buckets(g)
		resp := &BucketListResponse{
			Granularity: g.String(),
			Count:       len(buckets),
			Buckets:     make([]BucketView, 0, len(buckets)),
		}
		for _, b := range buckets {
			view, err := s.render(b)
			if err != nil {
				return nil, err
			}
			resp.Buckets = append(resp.Buckets, *view)
		}
		return resp, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*BucketListResponse), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Policy describes the active configuration against the record schema.
func (s *Service) Policy() *PolicyResponse {
	schema := s.store.Schema()
	cfg := s.store.Configuration()

	resp := &PolicyResponse{
		Schema:       schema.Name(),
		KeyFields:    cfg.KeyFields(),
		CompositeKey: cfg.IsCompositeKey(),
		Excluded:     cfg.ExcludedFields(),
	}
	if s.policy != nil {
		resp.Name = s.policy.Name
		resp.Fingerprint = s.policy.Fingerprint
	}
	for _, f := range schema.Fields() {
		resp.Fields = append(resp.Fields, FieldPolicy{
			Field:    f.Name,
			Kind:     f.Kind.String(),
			Method:   cfg.Method(f.Name).String(),
			Excluded: cfg.IsExcluded(f.Name),
		})
	}
	return resp
}

func (s *Service) render(b aggregation.Bucket[protobuf.Record]) (*BucketView, error) {
	record, err := s.encoder.Encode(b.Record)
	if err != nil {
		return nil, fmt.Errorf("encode %s bucket %s: %w", b.Granularity, b.Start.Format(time.RFC3339), err)
	}
	return &BucketView{
		Granularity: b.Granularity.String(),
		BucketStart: b.Start,
		BucketEnd:   b.End,
		Record:      record,
	}, nil
}

func parseGranularity(s string) (aggregation.Granularity, error) {
	g, err := aggregation.ParseGranularity(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return g, nil
}
