package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/faultctx/internal/app/reqctx"
)

// ErrorContextConfig configures ErrorContext.
type ErrorContextConfig struct {
	// Options control header folding (duplicate and invalid byte policies).
	Options []reqctx.Option
}

// ErrorContext returns middleware that captures the request's metadata into
// a reqctx.RequestContext and establishes it for the rest of the chain.
//
// The context is installed before c.Next runs, so synchronous work and
// goroutines started with reqctx.Go or the app concurrency helpers all see
// it. When the chain returns or panics, c.Request is put back to the request
// this middleware received, so middleware running earlier in the chain sees
// its previous context again. Panics are not recovered here.
//
// Route and request ID are taken from the gin.Context, so RequestID must run
// earlier in the chain for the ID to be present.
func ErrorContext(cfg ErrorContextConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := reqctx.FromRequest(c.Request, cfg.Options...).WithMeta(reqctx.Meta{
			Route:     c.FullPath(),
			RequestID: GetRequestID(c),
		})

		prev := c.Request
		defer func() {
			c.Request = prev
		}()

		c.Request = prev.WithContext(reqctx.WithContext(prev.Context(), rc))

		c.Next()
	}
}
