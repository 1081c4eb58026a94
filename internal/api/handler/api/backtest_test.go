package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/newthinker/rotator/internal/api/job"
	"github.com/newthinker/rotator/internal/api/response"
	"github.com/newthinker/rotator/internal/backtest"
	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/metrics"
	"github.com/newthinker/rotator/internal/report"
	"github.com/newthinker/rotator/internal/storage/archive"
	"github.com/newthinker/rotator/internal/strategy/factory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockProvider serves a rising SPY and a flat AGG for any range.
type MockProvider struct {
	err error
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	if m.err != nil {
		return nil, m.err
	}
	var bars []core.OHLCV
	i := 0
	for d := core.TruncateDay(start); !d.After(end); d = d.AddDate(0, 0, 1) {
		price := 50.0
		if symbol == "SPY" {
			price = 100 * (1 + 0.002*float64(i))
		}
		bars = append(bars, core.OHLCV{Symbol: symbol, Close: price, Time: d})
		i++
	}
	return bars, nil
}

func baseStrategy() config.StrategyConfig {
	cfg := config.DefaultStrategy()
	cfg.LookbackPeriod = 5
	cfg.RebalanceFrequency = config.FrequencyWeekly
	return cfg
}

func newHandler(t *testing.T, prov *MockProvider, opts ...Option) (*BacktestHandler, *job.Store, http.Handler) {
	t.Helper()
	jobStore := job.NewStore(100, time.Hour)
	h := NewBacktestHandler(jobStore, prov, factory.NewRegistry(nil), baseStrategy(), opts...)

	r := chi.NewRouter()
	r.Post("/api/v1/backtests", h.Create)
	r.Get("/api/v1/backtests", h.List)
	r.Get("/api/v1/backtests/{id}", h.Get)
	return h, jobStore, r
}

func post(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/backtests", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp response.SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "unexpected data %T", resp.Data)
	return data
}

func waitDone(t *testing.T, store *job.Store, id string) *job.Job {
	t.Helper()
	var j *job.Job
	require.Eventually(t, func() bool {
		var err error
		j, err = store.Get(id)
		return err == nil && j.Status.Done()
	}, 5*time.Second, 10*time.Millisecond)
	return j
}

func TestBacktestHandler_Create(t *testing.T) {
	dir := t.TempDir()
	store, err := archive.NewLocalFS(dir)
	require.NoError(t, err)
	reg := metrics.NewRegistry()

	_, jobStore, router := newHandler(t, &MockProvider{}, WithArchive(store), WithMetrics(reg))

	w := post(t, router, `{"start": "2023-01-02", "end": "2023-06-30", "strategy": {"universe": ["SPY"], "safe_asset": "AGG"}}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	data := decodeData(t, w)
	jobID, _ := data["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "pending", data["status"])

	j := waitDone(t, jobStore, jobID)
	require.Equal(t, job.StatusComplete, j.Status, "job error: %v", j.Error)

	res, ok := j.Result.(*backtest.Result)
	require.True(t, ok)
	assert.Equal(t, jobID, res.RunID)
	assert.NotEmpty(t, res.EquityCurve)
	assert.NotEmpty(t, res.Trades)

	exists, err := store.Exists(context.Background(), "runs/"+jobID+"/summary.json")
	require.NoError(t, err)
	assert.True(t, exists, "finished runs are archived")

	req := httptest.NewRequest("GET", "/api/v1/backtests/"+jobID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeData(t, w)
	assert.Equal(t, "complete", data["status"])
	assert.NotNil(t, data["result"])
}

func TestBacktestHandler_Create_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing dates", `{"strategy": {}}`, "CONFIG_MISSING"},
		{"invalid date", `{"start": "invalid-date", "end": "2024-01-01"}`, "CONFIG_INVALID"},
		{"end before start", `{"start": "2024-01-01", "end": "2023-01-01"}`, "CONFIG_INVALID"},
		{"unknown field", `{"start": "2023-01-01", "end": "2024-01-01", "symbol": "AAPL"}`, "CONFIG_INVALID"},
		{"malformed json", `{"start":`, "CONFIG_INVALID"},
		{"unknown variant", `{"start": "2023-01-01", "end": "2024-01-01", "strategy": {"variant": "trend"}}`, "CONFIG_INVALID"},
		{"negative positions", `{"start": "2023-01-01", "end": "2024-01-01", "strategy": {"position_count": -1}}`, "CONFIG_INVALID"},
		{"empty universe", `{"start": "2023-01-01", "end": "2024-01-01", "strategy": {"universe": []}}`, "CONFIG_MISSING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, jobStore, router := newHandler(t, &MockProvider{})
			w := post(t, router, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp response.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Empty(t, jobStore.List(), "rejected requests create no job")
		})
	}
}

func TestBacktestHandler_DoesNotMutateBase(t *testing.T) {
	h, _, router := newHandler(t, &MockProvider{})
	w := post(t, router, `{"start": "2023-01-02", "end": "2023-02-01", "strategy": {"universe": ["QQQ", "EFA"]}}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"SPY"}, h.base.Universe)
}

func TestBacktestHandler_FailedJob(t *testing.T) {
	_, jobStore, router := newHandler(t, &MockProvider{err: errors.New("upstream down")})

	w := post(t, router, `{"start": "2023-01-02", "end": "2023-03-01"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	jobID := decodeData(t, w)["job_id"].(string)

	j := waitDone(t, jobStore, jobID)
	assert.Equal(t, job.StatusFailed, j.Status)

	req := httptest.NewRequest("GET", "/api/v1/backtests/"+jobID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	data := decodeData(t, w)
	errDetail, ok := data["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "PROVIDER_FAILED", errDetail["code"])
}

func TestBacktestHandler_GetStatus(t *testing.T) {
	_, jobStore, router := newHandler(t, &MockProvider{})

	// Create a job directly
	j := jobStore.Create("backtest")

	req := httptest.NewRequest("GET", "/api/v1/backtests/"+j.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	data := decodeData(t, w)
	if data["job_id"] != j.ID {
		t.Errorf("expected job_id %s, got %s", j.ID, data["job_id"])
	}
	if data["result"] != nil {
		t.Error("pending jobs carry no result")
	}
}

func TestBacktestHandler_GetStatus_NotFound(t *testing.T) {
	_, _, router := newHandler(t, &MockProvider{})

	req := httptest.NewRequest("GET", "/api/v1/backtests/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestBacktestHandler_GetFromArchive(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	_, err = report.Archive(context.Background(), store, &backtest.Result{
		RunID:  "old-run",
		Config: baseStrategy(),
		EquityCurve: []core.EquityPoint{
			{Date: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), TotalValue: 100000, Cash: 100000},
		},
	})
	require.NoError(t, err)

	_, _, router := newHandler(t, &MockProvider{}, WithArchive(store))

	req := httptest.NewRequest("GET", "/api/v1/backtests/old-run", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "archive", data["source"])
	assert.Equal(t, "complete", data["status"])
}

func TestBacktestHandler_List(t *testing.T) {
	_, jobStore, router := newHandler(t, &MockProvider{})
	jobStore.Create("backtest")
	jobStore.Create("backtest")

	req := httptest.NewRequest("GET", "/api/v1/backtests", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp response.SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	list, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, list, 2)
}
