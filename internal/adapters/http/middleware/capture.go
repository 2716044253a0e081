package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/faultctx/internal/platform/telemetry"
	"github.com/jsamuelsen/faultctx/internal/ports"
)

// maxPanicFrames bounds the program counters captured for a panic.
const maxPanicFrames = 64

// CaptureFaults returns middleware that hands request failures to reporter
// while the request's context is still established. It must run after
// ErrorContext.
//
// A panic is reported and then re-raised with the same value, so Recovery
// (or net/http) still produces the response. http.ErrAbortHandler is passed
// through without a report. Errors attached with c.Error are reported once
// the chain has returned.
func CaptureFaults(reporter ports.FaultReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			if r != http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity, as net/http does
				ctx := c.Request.Context()
				reporter.ReportPanic(ctx, r, panicCallers())
				telemetry.RecordFault(ctx, "panic", fmt.Errorf("panic: %v", r))
			}

			panic(r)
		}()

		c.Next()

		ctx := c.Request.Context()
		for _, e := range c.Errors.ByType(gin.ErrorTypePrivate) {
			reporter.ReportError(ctx, e.Err)
			telemetry.RecordFault(ctx, "error", e.Err)
		}
	}
}

// panicCallers returns the stack of the panicking goroutine. Deferred
// functions run before the stack unwinds, so the panic site is included.
func panicCallers() []uintptr {
	pcs := make([]uintptr, maxPanicFrames)
	// Skip runtime.Callers, panicCallers and the deferred closure.
	n := runtime.Callers(3, pcs)

	return pcs[:n]
}
