package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/faultctx/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Register(checker ports.HealthChecker) error {
	return m.Called(checker).Error(0)
}

func (m *mockRegistry) CheckAll(ctx context.Context) *ports.HealthResult {
	res, _ := m.Called(ctx).Get(0).(*ports.HealthResult)
	return res
}

func newHealthEngine(h *HealthHandler) *gin.Engine {
	engine := gin.New()
	h.Register(engine)

	return engine
}

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	return w
}

func TestNewBuildInfo(t *testing.T) {
	bi := NewBuildInfo("1.0.0", "abc123", "2026-01-15T10:00:00Z")

	assert.Equal(t, BuildInfo{
		Version:   "1.0.0",
		Commit:    "abc123",
		BuildTime: "2026-01-15T10:00:00Z",
		GoVersion: runtime.Version(),
	}, bi)
}

func TestHealthHandler_Liveness(t *testing.T) {
	registry := &mockRegistry{}
	engine := newHealthEngine(NewHealthHandler(registry, BuildInfo{}))

	w := get(engine, "/-/live")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	registry.AssertNotCalled(t, "CheckAll", mock.Anything)
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		result     *ports.HealthResult
		wantStatus int
		wantBody   string
	}{
		{
			name: "all healthy",
			result: &ports.HealthResult{
				Status: ports.HealthStatusHealthy,
				Checks: map[string]*ports.CheckResult{
					"collector": {Status: ports.HealthStatusHealthy},
				},
			},
			wantStatus: http.StatusOK,
			wantBody:   "healthy",
		},
		{
			name: "one unhealthy",
			result: &ports.HealthResult{
				Status: ports.HealthStatusUnhealthy,
				Checks: map[string]*ports.CheckResult{
					"collector": {Status: ports.HealthStatusUnhealthy, Message: "circuit open"},
				},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := &mockRegistry{}
			registry.On("CheckAll", mock.Anything).Return(tt.result)
			engine := newHealthEngine(NewHealthHandler(registry, BuildInfo{}))

			w := get(engine, "/-/ready")

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp statusResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantBody, resp.Status)
			assert.Contains(t, resp.Checks, "collector")
			registry.AssertExpectations(t)
		})
	}
}

func TestHealthHandler_Build(t *testing.T) {
	bi := NewBuildInfo("2.0.0", "def456", "now")
	engine := newHealthEngine(NewHealthHandler(&mockRegistry{}, bi))

	w := get(engine, "/-/build")

	assert.Equal(t, http.StatusOK, w.Code)

	var got BuildInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, bi, got)
}

func TestHealthHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "handlers_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	engine := newHealthEngine(NewHealthHandler(&mockRegistry{}, BuildInfo{}).WithGatherer(reg))

	w := get(engine, "/-/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "handlers_test_total 1")
}
