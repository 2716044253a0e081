package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/faultctx/internal/adapters/http/dto"
	"github.com/jsamuelsen/faultctx/internal/platform/logging"
	"github.com/jsamuelsen/faultctx/internal/platform/telemetry"
)

// Recovery returns middleware that recovers from panics. It logs the panic
// with its stack trace and answers 500 with the standard error envelope,
// including the trace ID when one exists.
//
// Recovery must be first in the chain. It only shapes the response; faults
// are reported to the collector by CaptureFaults further down the chain.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			if r == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity, as net/http does
				panic(r)
			}

			ctx := c.Request.Context()
			traceID := telemetry.TraceIDFromContext(ctx)

			logging.FromContext(ctx).Error("panic recovered",
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
				slog.String("path", c.Request.URL.Path),
				slog.String("method", c.Request.Method),
				slog.String("trace_id", traceID),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError,
				dto.NewErrorResponse(dto.ErrorCodeInternal, "an internal error occurred").WithTraceID(traceID))
		}()

		c.Next()
	}
}
