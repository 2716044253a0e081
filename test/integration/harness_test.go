//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/faultctx/internal/adapters/clients"
	"github.com/jsamuelsen/faultctx/internal/adapters/collector"
	httpadapter "github.com/jsamuelsen/faultctx/internal/adapters/http"
	"github.com/jsamuelsen/faultctx/internal/adapters/http/handlers"
	"github.com/jsamuelsen/faultctx/internal/platform/config"
	"github.com/jsamuelsen/faultctx/internal/ports"
)

// fakeCollector records the notices posted to it.
type fakeCollector struct {
	server *httptest.Server

	mu      sync.Mutex
	notices []collector.Notice
	status  int
}

func newFakeCollector() *fakeCollector {
	fc := &fakeCollector{status: http.StatusCreated}
	fc.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n collector.Notice
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		fc.mu.Lock()
		fc.notices = append(fc.notices, n)
		status := fc.status
		fc.mu.Unlock()

		w.WriteHeader(status)
	}))

	return fc
}

func (fc *fakeCollector) setStatus(status int) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.status = status
}

func (fc *fakeCollector) received() []collector.Notice {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return append([]collector.Notice(nil), fc.notices...)
}

// waitFor polls until at least n notices arrived or the deadline passes.
func (fc *fakeCollector) waitFor(n int, timeout time.Duration) ([]collector.Notice, error) {
	deadline := time.Now().Add(timeout)
	for {
		got := fc.received()
		if len(got) >= n {
			return got, nil
		}
		if time.Now().After(deadline) {
			return got, fmt.Errorf("collector received %d notices, want %d", len(got), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// service is the whole service running in process against a fake collector.
type service struct {
	server    *httptest.Server
	collector *fakeCollector
	notifier  *collector.Notifier
	client    *clients.Client
}

func startService() (*service, error) {
	gin.SetMode(gin.TestMode)

	fc := newFakeCollector()

	client, err := clients.New(&clients.Config{
		BaseURL:     fc.server.URL,
		ServiceName: "collector",
		Timeout:     2 * time.Second,
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   3,
			Timeout:       time.Minute,
			HalfOpenLimit: 1,
		},
	})
	if err != nil {
		fc.server.Close()
		return nil, err
	}

	notifier, err := collector.New(collector.NewHTTPSender(client, "/notices"), collector.Config{
		Environment: collector.Environment{
			Version:   "test",
			Name:      "test",
			Hostname:  "integration",
			Component: "faultctx",
		},
		QueueSize:   64,
		Workers:     2,
		SendTimeout: 2 * time.Second,
		Registerer:  prometheus.NewRegistry(),
	})
	if err != nil {
		fc.server.Close()
		return nil, err
	}
	notifier.Start(context.Background())

	registry := ports.NewHealthRegistry()
	if err := registry.Register(notifier); err != nil {
		fc.server.Close()
		return nil, err
	}

	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.RouterConfig{
		ServiceName:   "faultctx-integration",
		Reporter:      notifier,
		HealthHandler: handlers.NewHealthHandler(registry, handlers.NewBuildInfo("test", "none", "now")),
		ErrorWait:     50 * time.Millisecond,
		Timeout:       2 * time.Second,
	})

	return &service{
		server:    httptest.NewServer(engine),
		collector: fc,
		notifier:  notifier,
		client:    client,
	}, nil
}

func (s *service) close() {
	s.server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.notifier.Shutdown(ctx)

	s.collector.server.Close()
}
