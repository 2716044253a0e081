package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/faultctx/internal/platform/logging"
)

const instrumentationName = "github.com/jsamuelsen/faultctx/telemetry"

// HeaderTraceID carries the trace ID of a sampled request back to the caller.
const HeaderTraceID = "X-Trace-ID"

var faultMetrics = sync.OnceValue(func() *Metrics {
	m, err := NewMetrics()
	if err != nil {
		otel.Handle(err)
		return nil
	}

	return m
})

// Metrics holds HTTP server instruments.
type Metrics struct {
	requestDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
	faults          metric.Int64Counter
}

// NewMetrics creates the HTTP server instruments on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	faults, err := meter.Int64Counter(
		"faultctx.faults",
		metric.WithDescription("Faults captured while serving requests"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration: requestDuration,
		activeRequests:  activeRequests,
		faults:          faults,
	}, nil
}

// Middleware records request metrics, echoes the trace ID in the
// X-Trace-ID response header and adds it to the context logger. It expects
// TracingMiddleware to run first.
func Middleware() gin.HandlerFunc {
	metrics, err := NewMetrics()
	if err != nil {
		otel.Handle(err)
	}

	return func(c *gin.Context) {
		if traceID := TraceIDFromContext(c.Request.Context()); traceID != "" {
			c.Header(HeaderTraceID, traceID)
			c.Request = c.Request.WithContext(logging.WithTraceID(c.Request.Context(), traceID))
		}

		if metrics == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		start := time.Now()
		inflight := metric.WithAttributes(attribute.String("http.request.method", c.Request.Method))

		metrics.activeRequests.Add(ctx, 1, inflight)
		defer metrics.activeRequests.Add(ctx, -1, inflight)

		c.Next()

		metrics.requestDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("http.request.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
			attribute.Int("http.response.status_code", c.Writer.Status()),
		))
	}
}

// TracingMiddleware starts a server span for every request.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceIDFromContext returns the trace ID of the span in ctx, or "" when
// there is none.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}

	return sc.TraceID().String()
}

// RecordFault marks the current span as failed and counts the fault.
// kind is "panic" or "error".
func RecordFault(ctx context.Context, kind string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("fault.kind", kind)))
	span.SetStatus(codes.Error, err.Error())

	if m := faultMetrics(); m != nil {
		m.faults.Add(ctx, 1, metric.WithAttributes(attribute.String("fault.kind", kind)))
	}
}
