package benchmark

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	httpadapter "github.com/jsamuelsen/faultctx/internal/adapters/http"
	"github.com/jsamuelsen/faultctx/internal/adapters/http/handlers"
	"github.com/jsamuelsen/faultctx/internal/adapters/http/middleware"
	"github.com/jsamuelsen/faultctx/internal/app/reqctx"
	"github.com/jsamuelsen/faultctx/internal/ports"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func browserRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Gecko/20100101 Firefox/130.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("X-Request-Id", "bench-request")
	req.Header.Add("X-Forwarded-For", "10.0.0.1")
	req.Header.Add("X-Forwarded-For", "10.0.0.2")

	return req
}

// BenchmarkFromRequest measures folding a typical header set.
func BenchmarkFromRequest(b *testing.B) {
	req := browserRequest("/")

	b.ReportAllocs()

	for b.Loop() {
		_ = reqctx.FromRequest(req)
	}
}

// BenchmarkHeaderKey measures key derivation for one header name.
func BenchmarkHeaderKey(b *testing.B) {
	b.ReportAllocs()

	for b.Loop() {
		_ = reqctx.HeaderKey("X-Forwarded-For")
	}
}

// BenchmarkScopedPoll measures the cost Scoped adds to one Poll.
func BenchmarkScopedPoll(b *testing.B) {
	rc := reqctx.FromRequest(browserRequest("/"))
	inner := reqctx.FutureFunc[int](func(context.Context) reqctx.Poll[int] {
		return reqctx.Ready(1, nil)
	})
	f := reqctx.Scoped(inner, rc)
	ctx := context.Background()

	b.ReportAllocs()

	for b.Loop() {
		_ = f.Poll(ctx)
	}
}

// BenchmarkErrorContextMiddleware measures ErrorContext alone.
func BenchmarkErrorContextMiddleware(b *testing.B) {
	router := gin.New()
	router.Use(middleware.ErrorContext(middleware.ErrorContextConfig{}))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := browserRequest("/test")

	b.ReportAllocs()

	for b.Loop() {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

// BenchmarkRouter_Ping measures the full middleware chain.
func BenchmarkRouter_Ping(b *testing.B) {
	router := gin.New()
	httpadapter.SetupRouter(router, httpadapter.RouterConfig{
		ServiceName: "bench",
		Reporter:    ports.FaultReporterFunc(func(context.Context, any, []uintptr) {}),
	})

	req := browserRequest("/ping")

	b.ReportAllocs()

	for b.Loop() {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

// BenchmarkReadinessHandler measures readiness with two registered checks.
func BenchmarkReadinessHandler(b *testing.B) {
	registry := ports.NewHealthRegistry()
	_ = registry.Register(&staticChecker{name: "collector"})
	_ = registry.Register(&staticChecker{name: "telemetry"})

	router := gin.New()
	handlers.NewHealthHandler(registry, handlers.NewBuildInfo("1.0.0", "abc123", "now")).Register(router)

	req := httptest.NewRequest(http.MethodGet, "/-/ready", http.NoBody)

	b.ReportAllocs()

	for b.Loop() {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

type staticChecker struct {
	name string
}

func (s *staticChecker) Name() string { return s.name }

func (s *staticChecker) Check(context.Context) error { return nil }
