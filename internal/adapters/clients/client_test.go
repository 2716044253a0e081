package clients

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/faultctx/internal/adapters/http/middleware"
	"github.com/jsamuelsen/faultctx/internal/platform/config"
)

func newTestClient(t *testing.T, baseURL string, maxFailures int) *Client {
	t.Helper()

	c, err := New(&Config{
		BaseURL:     baseURL,
		ServiceName: "collector",
		Timeout:     time.Second,
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   maxFailures,
			Timeout:       time.Minute,
			HalfOpenLimit: 1,
		},
		Headers: map[string]string{"X-Notifier": "faultctx"},
	})
	require.NoError(t, err)

	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	_, err = New(&Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service name")
}

func TestClient_Post(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/notices", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/", 5)

	ctx := middleware.ContextWithRequestID(context.Background(), "req-1")
	ctx = middleware.ContextWithCorrelationID(ctx, "corr-1")

	resp, err := c.Post(ctx, "v1/notices", "application/json", []byte(`{"ok":true}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(gotBody))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "faultctx", gotHeader.Get("X-Notifier"))
	assert.Equal(t, "req-1", gotHeader.Get(middleware.HeaderRequestID))
	assert.Equal(t, "corr-1", gotHeader.Get(middleware.HeaderCorrelationID))
}

func TestClient_SingleAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 5)

	resp, err := c.Post(context.Background(), "/notices", "application/json", []byte("{}"))
	require.Error(t, err)
	require.NotNil(t, resp)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 1)

	_, err := c.Post(context.Background(), "/notices", "application/json", []byte("{}"))
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, StateClosed, c.CircuitState())
}

func TestClient_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 2)

	for range 2 {
		_, err := c.Post(context.Background(), "/notices", "application/json", []byte("{}"))
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, c.CircuitState())

	_, err := c.Post(context.Background(), "/notices", "application/json", []byte("{}"))
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_TransportErrorCountsAsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, url, 1)

	_, err := c.Post(context.Background(), "/notices", "application/json", []byte("{}"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Equal(t, StateOpen, c.CircuitState())
}

func TestClient_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Post(ctx, "/notices", "application/json", []byte("{}"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_BuildURL(t *testing.T) {
	c := newTestClient(t, "https://collector.example.com/", 1)

	assert.Equal(t, "https://collector.example.com", c.buildURL(""))
	assert.Equal(t, "https://collector.example.com/v1", c.buildURL("v1"))
	assert.Equal(t, "https://collector.example.com/v1", c.buildURL("/v1"))
}
