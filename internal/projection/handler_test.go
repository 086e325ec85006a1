package projection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aevon-lab/rollup/internal/core/aggregation"
	httperr "github.com/aevon-lab/rollup/internal/core/errors"
	"github.com/aevon-lab/rollup/internal/schema/protobuf"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const meterProto = `
syntax = "proto3";
package meter.v1;

message Reading {
  string meter_id = 1;
  string recorded_at = 2;
  double kwh = 3;
  int64 pulses = 4;
}
`

const meterPolicy = `
name: meters
key: [meter_id]
exclude: [pulses]
fields:
  kwh: sum
`

type fixture struct {
	svc      *Service
	stateful *aggregation.Stateful[protobuf.Record]
	codec    *protobuf.Codec
	router   *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	md, err := protobuf.CompileSource(context.Background(), "meter.proto", meterProto, "")
	require.NoError(t, err)
	tf, err := protobuf.NewTimeField(md, "recorded_at")
	require.NoError(t, err)
	schema, err := protobuf.NewSchema(md)
	require.NoError(t, err)
	policy, err := aggregation.ParsePolicy([]byte(meterPolicy), nil)
	require.NoError(t, err)

	codec := protobuf.NewCodec(md, tf)
	stateful := aggregation.NewStateful(schema, policy.Config, tf.Selector(), aggregation.StatefulOptions{})
	svc := NewService(stateful, codec, policy)

	r := gin.New()
	svc.RegisterRoutes(r)
	return &fixture{svc: svc, stateful: stateful, codec: codec, router: r}
}

func (f *fixture) ingest(t *testing.T, body string) {
	t.Helper()
	records, err := f.codec.DecodeBatch([]byte(body))
	require.NoError(t, err)
	f.stateful.AddRange(records)
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

const energyBatch = `[
	{"meter_id": "m-1", "recorded_at": "2023-01-01T08:00:00Z", "kwh": 10.5, "pulses": 3},
	{"meter_id": "m-1", "recorded_at": "2023-01-01T19:00:00Z", "kwh": 8.2, "pulses": 4},
	{"meter_id": "m-2", "recorded_at": "2023-01-02T07:00:00Z", "kwh": 12.7, "pulses": 5}
]`

func TestHandleQueryAggregates_BucketAt(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, energyBatch)

	tests := []struct {
		name      string
		path      string
		wantStart time.Time
		wantEnd   time.Time
		wantKwh   float64
	}{
		{
			name:      "daily",
			path:      "/v1/aggregates/daily?at=2023-01-01T12:00:00Z",
			wantStart: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
			wantKwh:   18.7,
		},
		{
			name:      "weekly alias",
			path:      "/v1/aggregates/week?at=2023-01-05T00:00:00Z",
			wantStart: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2023, 1, 8, 0, 0, 0, 0, time.UTC),
			wantKwh:   31.4,
		},
		{
			name:      "yearly",
			path:      "/v1/aggregates/yearly?at=2023-07-01T00:00:00Z",
			wantStart: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantKwh:   31.4,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.get(tc.path)
			require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

			var view struct {
				BucketStart time.Time `json:"bucket_start"`
				BucketEnd   time.Time `json:"bucket_end"`
				Record      struct {
					Kwh    float64 `json:"kwh"`
					Pulses string  `json:"pulses"`
				} `json:"record"`
			}
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
			require.True(t, tc.wantStart.Equal(view.BucketStart), view.BucketStart.String())
			require.True(t, tc.wantEnd.Equal(view.BucketEnd), view.BucketEnd.String())
			require.Equal(t, tc.wantKwh, view.Record.Kwh)
			require.Equal(t, "0", view.Record.Pulses, "excluded fields are not aggregated")
		})
	}
}

func TestHandleQueryAggregates_List(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, energyBatch)

	resp := f.get("/v1/aggregates/daily")
	require.Equal(t, http.StatusOK, resp.Code)

	var list BucketListResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Equal(t, "daily", list.Granularity)
	require.Equal(t, 2, list.Count)
	require.Len(t, list.Buckets, 2)
	require.True(t, list.Buckets[0].BucketStart.Before(list.Buckets[1].BucketStart))
	require.Contains(t, string(list.Buckets[1].Record), "12.7")
}

func TestHandleQueryAggregates_StatusMapping(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, energyBatch)

	tests := []struct {
		name         string
		path         string
		expectedCode int
		expectedType string
	}{
		{name: "unknown granularity", path: "/v1/aggregates/hourly", expectedCode: http.StatusBadRequest, expectedType: httperr.HttpInvalidQueryError},
		{name: "bad at", path: "/v1/aggregates/daily?at=yesterday", expectedCode: http.StatusBadRequest, expectedType: httperr.HttpInvalidQueryError},
		{name: "empty bucket", path: "/v1/aggregates/daily?at=2023-02-01T00:00:00Z", expectedCode: http.StatusNotFound, expectedType: httperr.HttpNotFoundError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.get(tc.path)
			require.Equal(t, tc.expectedCode, resp.Code)

			var errResp httperr.ErrorResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
			require.Equal(t, tc.expectedType, errResp.ErrorType)
		})
	}
}

func TestHandlePolicy(t *testing.T) {
	f := newFixture(t)

	resp := f.get("/v1/policy")
	require.Equal(t, http.StatusOK, resp.Code)

	var policy PolicyResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &policy))
	require.Equal(t, "meters", policy.Name)
	require.Len(t, policy.Fingerprint, 64)
	require.Equal(t, "meter.v1.Reading", policy.Schema)
	require.Equal(t, []string{"meter_id"}, policy.KeyFields)
	require.False(t, policy.CompositeKey)
	require.Equal(t, []string{"pulses"}, policy.Excluded)
	require.Equal(t, []FieldPolicy{
		{Field: "kwh", Kind: "float64", Method: "sum"},
		{Field: "pulses", Kind: "int64", Method: "sum", Excluded: true},
	}, policy.Fields)
}

type failingEncoder struct{}

func (failingEncoder) Encode(protobuf.Record) (json.RawMessage, error) {
	return nil, errors.New("boom")
}

func TestListBuckets_EncodeFailure(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, energyBatch)

	svc := NewService(f.stateful, failingEncoder{}, nil)
	r := gin.New()
	svc.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/v1/aggregates/monthly", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestListBuckets_ConcurrentCallers(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, energyBatch)

	var wg sync.WaitGroup
	results := make([]*BucketListResponse, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.ListBuckets(context.Background(), "weekly")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		require.NotNil(t, res)
		require.Equal(t, 1, res.Count)
	}
}

func TestListBuckets_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Either the listing wins the race or the cancellation does; neither may hang.
	_, err := f.svc.ListBuckets(ctx, "daily")
	if err != nil {
		require.ErrorIs(t, err, context.Canceled)
	}
}
