package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/faultctx/internal/adapters/http/dto"
	"github.com/jsamuelsen/faultctx/internal/adapters/http/handlers"
	"github.com/jsamuelsen/faultctx/internal/adapters/http/middleware"
	"github.com/jsamuelsen/faultctx/internal/app/reqctx"
	"github.com/jsamuelsen/faultctx/internal/platform/telemetry"
	"github.com/jsamuelsen/faultctx/internal/ports"
)

// RouterConfig holds what SetupRouter wires together.
type RouterConfig struct {
	// ServiceName names the service in trace spans.
	ServiceName string

	// Reporter receives panics and handler errors.
	Reporter ports.FaultReporter

	// ContextOptions control header folding into the request context.
	ContextOptions []reqctx.Option

	// HealthHandler serves /-/ endpoints. Optional.
	HealthHandler *handlers.HealthHandler

	// ErrorWait is how long /error_wait suspends before panicking.
	ErrorWait time.Duration

	// Timeout is the deadline of /api/v1 requests. Zero disables it.
	Timeout time.Duration
}

// SetupRouter installs middleware and routes on engine. Middleware runs in
// this order:
//
//  1. Recovery: answers 500 for panics that reach it
//  2. RequestID and CorrelationID
//  3. Tracing and server metrics
//  4. Logging (skips /-/ paths and /ping)
//  5. ErrorContext: establishes the request context
//  6. CaptureFaults: reports faults while the context is established
//
// /api/v1 routes additionally get a Timeout. Unknown routes are answered
// with a NOT_FOUND envelope.
//
// ContextWithFallback is switched on so that a *gin.Context handed down as
// a context.Context still resolves the request context.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.ContextWithFallback = true

	reporter := cfg.Reporter
	if reporter == nil {
		reporter = ports.FaultReporterFunc(func(context.Context, any, []uintptr) {})
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.TracingMiddleware(cfg.ServiceName),
		telemetry.Middleware(),
		middleware.Logging("/ping"),
		middleware.ErrorContext(middleware.ErrorContextConfig{Options: cfg.ContextOptions}),
		middleware.CaptureFaults(reporter),
	)

	engine.NoRoute(func(c *gin.Context) {
		AbortWithErrorCode(c, dto.ErrorCodeNotFound, "route not found")
	})

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.Register(engine)
	}

	demo := handlers.NewDemoHandler(RespondWithError, cfg.ErrorWait)
	engine.GET("/", demo.Hello)
	engine.GET("/ping", demo.Ping)
	engine.GET("/error", demo.Error)
	engine.GET("/error_wait", demo.ErrorAfterWait)

	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Timeout(cfg.Timeout))
	}

	apiV1.GET("/context", demo.Context)
	apiV1.GET("/fanout", demo.FanOut)
	apiV1.GET("/fail", demo.Fail)
}
