//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/aevon-lab/rollup/internal/app"
	corecfg "github.com/aevon-lab/rollup/internal/core/config"
	"github.com/stretchr/testify/require"
)

type integrationHarness struct {
	baseURL string
	client  *http.Client
	app     *app.App
	cancel  context.CancelFunc
	appDone chan error
}

func (h *integrationHarness) close(t *testing.T) {
	t.Helper()

	h.cancel()
	select {
	case err := <-h.appDone:
		require.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Log("app shutdown timed out")
	}
}

type reading struct {
	StationID   string    `json:"station_id"`
	ConnectorID string    `json:"connector_id"`
	RecordedAt  time.Time `json:"recorded_at"`
	EnergyKwh   float64   `json:"energy_kwh"`
	PeakKw      float32   `json:"peak_kw"`
	Sessions    int32     `json:"sessions"`
	DurationS   int64     `json:"duration_s,string"`
	Voltage     float64   `json:"voltage"`
}

type bucketView struct {
	BucketStart time.Time       `json:"bucket_start"`
	BucketEnd   time.Time       `json:"bucket_end"`
	Record      json.RawMessage `json:"record"`
}

func TestCoreAPI_IngestAndQuery(t *testing.T) {
	h := startHarness(t)
	defer h.close(t)

	base := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	batch := []reading{
		{StationID: "st-1", ConnectorID: "c-1", RecordedAt: base.Add(8 * time.Hour), EnergyKwh: 10.5, PeakKw: 7, Sessions: 1, DurationS: 3600, Voltage: 230},
		{StationID: "st-1", ConnectorID: "c-1", RecordedAt: base.Add(19 * time.Hour), EnergyKwh: 8.2, PeakKw: 11, Sessions: 2, DurationS: 1800, Voltage: 231},
		{StationID: "st-1", ConnectorID: "c-2", RecordedAt: base.Add(31 * time.Hour), EnergyKwh: 12.7, PeakKw: 22, Sessions: 1, DurationS: 5400, Voltage: 229},
	}

	status, body := postJSON(t, h.client, h.baseURL+"/v1/records", batch)
	require.Equal(t, http.StatusAccepted, status, string(body))

	var daily bucketView
	getJSON(t, h, "/v1/aggregates/daily", base.Add(12*time.Hour), &daily)
	require.True(t, base.Equal(daily.BucketStart))

	var dailyRecord reading
	require.NoError(t, json.Unmarshal(daily.Record, &dailyRecord))
	require.Equal(t, 18.7, dailyRecord.EnergyKwh)
	require.Equal(t, float32(11), dailyRecord.PeakKw)
	require.Equal(t, int32(3), dailyRecord.Sessions)
	require.Equal(t, int64(5400), dailyRecord.DurationS)
	require.Zero(t, dailyRecord.Voltage, "voltage is excluded by the policy")

	var weekly bucketView
	getJSON(t, h, "/v1/aggregates/weekly", base.Add(72*time.Hour), &weekly)

	var weeklyRecord reading
	require.NoError(t, json.Unmarshal(weekly.Record, &weeklyRecord))
	require.Equal(t, 31.4, weeklyRecord.EnergyKwh)
	require.Equal(t, float32(22), weeklyRecord.PeakKw)
	require.Equal(t, int64(10800), weeklyRecord.DurationS)
}

func TestCoreAPI_RejectsRecordWithoutTimestamp(t *testing.T) {
	h := startHarness(t)
	defer h.close(t)

	status, body := postJSON(t, h.client, h.baseURL+"/v1/records", []map[string]interface{}{
		{"station_id": "st-1", "energy_kwh": 1.5},
	})
	require.Equal(t, http.StatusBadRequest, status, string(body))
	require.Zero(t, h.app.Stateful.RecordCount())
}

func startHarness(t *testing.T) *integrationHarness {
	t.Helper()

	root := projectRoot(t)
	t.Setenv("ROLLUP_SERVER__HOST", "127.0.0.1")
	t.Setenv("ROLLUP_SERVER__PORT", fmt.Sprintf("%d", freePort(t)))
	t.Setenv("ROLLUP_SCHEMA__PROTO_PATH", filepath.Join(root, "config", "reading.proto"))
	t.Setenv("ROLLUP_AGGREGATION__POLICY_PATH", filepath.Join(root, "config", "policy.yaml"))
	t.Setenv("ROLLUP_AGGREGATION__SAMPLE_INTERVAL", "100ms")

	cfg, err := corecfg.Load(filepath.Join(root, "rollup.yaml"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	a, err := app.Build(ctx, cfg, nil)
	if err != nil {
		cancel()
		require.NoError(t, err)
	}

	appDone := make(chan error, 1)
	go func() { appDone <- a.Run(ctx) }()

	baseURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	waitForHealthy(t, baseURL)

	return &integrationHarness{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		app:     a,
		cancel:  cancel,
		appDone: appDone,
	}
}

func waitForHealthy(t *testing.T, baseURL string) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("server did not become healthy at %s", baseURL)
}

func postJSON(t *testing.T, client *http.Client, endpoint string, payload interface{}) (int, []byte) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, respBody
}

func getJSON(t *testing.T, h *integrationHarness, path string, at time.Time, out interface{}) {
	t.Helper()

	query := url.Values{}
	query.Set("at", at.Format(time.RFC3339))

	resp, err := h.client.Get(h.baseURL + path + "?" + query.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, out))
}

func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRoot(t *testing.T) string {
	t.Helper()

	root, err := filepath.Abs(filepath.Join("..", ".."))
	require.NoError(t, err)
	return root
}
