package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/rotator/internal/api/response"
	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/metrics"
	"github.com/newthinker/rotator/internal/strategy/factory"
	"go.uber.org/zap"
)

type nopProvider struct{}

func (nopProvider) Name() string { return "nop" }
func (nopProvider) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	return nil, nil
}

func testDeps() Dependencies {
	return Dependencies{
		Provider:   nopProvider{},
		Generators: factory.NewRegistry(nil),
		Strategy:   config.DefaultStrategy(),
	}
}

func newTestServer(t *testing.T, cfg Config, deps Dependencies) *Server {
	t.Helper()
	srv, err := NewServer(cfg, deps, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, Config{Host: "localhost", Port: 0, APIKey: "test-key"}, testDeps())

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 without key, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestServer_RequiresDependencies(t *testing.T) {
	deps := testDeps()
	deps.Provider = nil
	if _, err := NewServer(Config{}, deps, zap.NewNop()); err == nil {
		t.Error("expected error without provider")
	}
	deps = testDeps()
	deps.Generators = nil
	if _, err := NewServer(Config{}, deps, zap.NewNop()); err == nil {
		t.Error("expected error without generators")
	}
}

func TestServer_APIAuth_Required(t *testing.T) {
	srv := newTestServer(t, Config{Host: "localhost", Port: 0, APIKey: "test-key"}, testDeps())

	// Without API key
	req := httptest.NewRequest("GET", "/api/v1/backtests", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Code)
	}
}

func TestServer_APIAuth_ValidKey(t *testing.T) {
	srv := newTestServer(t, Config{Host: "localhost", Port: 0, APIKey: "test-key"}, testDeps())

	// With API key
	req := httptest.NewRequest("GET", "/api/v1/backtests", nil)
	req.Header.Set("X-API-Key", "test-key")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", w.Code)
	}
}

func TestServer_APIAuth_Disabled(t *testing.T) {
	// Empty APIKey = disabled auth
	srv := newTestServer(t, Config{Host: "localhost", Port: 0}, testDeps())

	req := httptest.NewRequest("GET", "/api/v1/backtests", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with disabled auth, got %d", w.Code)
	}
}

func TestServer_BacktestNotFound(t *testing.T) {
	srv := newTestServer(t, Config{}, testDeps())

	req := httptest.NewRequest("GET", "/api/v1/backtests/missing", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	var resp response.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "JOB_NOT_FOUND" {
		t.Errorf("expected JOB_NOT_FOUND, got %s", resp.Error.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	deps := testDeps()
	deps.Metrics = metrics.NewRegistry()

	cfg := ConfigFrom(&config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Metrics: config.MetricsConfig{Enabled: true},
	})
	if cfg.MetricsPath != "/metrics" {
		t.Fatalf("expected default metrics path, got %q", cfg.MetricsPath)
	}
	srv := newTestServer(t, cfg, deps)

	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/health", nil))

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `path="/api/v1/health"`) {
		t.Error("expected health request to be recorded")
	}
}
