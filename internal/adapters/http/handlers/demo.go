package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/faultctx/internal/adapters/http/dto"
	"github.com/jsamuelsen/faultctx/internal/adapters/http/middleware"
	"github.com/jsamuelsen/faultctx/internal/app"
	"github.com/jsamuelsen/faultctx/internal/app/reqctx"
)

// Defaults of the demo endpoints.
const (
	DefaultErrorWait = time.Second
	maxFanOut        = 32
	fanOutWorkers    = 4
)

var (
	// ErrExplicitFailure is the error reported by /api/v1/fail.
	ErrExplicitFailure = errors.New("explicit failure requested")

	errInvalidQuery = errors.New("invalid query parameter")
)

// ErrorResponder writes an error response. It is the http package's
// RespondWithError; handlers take it as a function to avoid an import cycle.
type ErrorResponder func(c *gin.Context, err error)

// DemoHandler serves endpoints that exercise request-context propagation:
// plain responses, panics before and after waiting, context inspection and
// fan-out.
type DemoHandler struct {
	respond ErrorResponder
	wait    time.Duration
}

// NewDemoHandler creates a DemoHandler. A wait of zero uses
// DefaultErrorWait.
func NewDemoHandler(respond ErrorResponder, wait time.Duration) *DemoHandler {
	if wait <= 0 {
		wait = DefaultErrorWait
	}

	return &DemoHandler{respond: respond, wait: wait}
}

// Hello answers "Hello, world!".
func (h *DemoHandler) Hello(c *gin.Context) {
	c.String(http.StatusOK, "Hello, world!")
}

// Ping answers "pong".
func (h *DemoHandler) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// Error panics straight away.
func (h *DemoHandler) Error(*gin.Context) {
	panic("error endpoint called")
}

// ErrorAfterWait suspends on a background task and panics once it
// completes, so the fault is raised after the request has waited.
func (h *DemoHandler) ErrorAfterWait(c *gin.Context) {
	ctx := c.Request.Context()

	task := reqctx.Go(ctx, func(ctx context.Context) (struct{}, error) {
		timer := time.NewTimer(h.wait)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
		}

		return struct{}{}, nil
	})

	if _, err := task.Wait(ctx); err != nil {
		h.respond(c, err)
		return
	}

	panic("error_wait endpoint called")
}

// Context answers with the request context established for the request.
func (h *DemoHandler) Context(c *gin.Context) {
	rc, _ := middleware.RequestContextFromGin(c)
	c.JSON(http.StatusOK, dto.NewContextResponse(rc))
}

// FanOut spreads n items over workers and reports what each observed.
func (h *DemoHandler) FanOut(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "4"))
	if err != nil || n < 1 || n > maxFanOut {
		h.respond(c, dto.NewStatusError(dto.ErrorCodeValidation, errInvalidQuery).
			WithDetails(map[string]string{"n": "must be an integer between 1 and " + strconv.Itoa(maxFanOut)}))
		return
	}

	items := make([]int, n)
	for i := range items {
		items[i] = i
	}

	branches := make([]dto.BranchResult, n)
	err = app.FanOut(c.Request.Context(), fanOutWorkers, items, func(ctx context.Context, i int) error {
		rc := reqctx.Current(ctx)
		agent, _ := rc.Header("User-Agent")
		branches[i] = dto.BranchResult{
			Index:     i,
			RequestID: rc.Meta().RequestID,
			UserAgent: agent,
		}

		return nil
	})
	if err != nil {
		h.respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FanOutResponse{Branches: branches})
}

// Fail reports an explicit error through the error responder.
func (h *DemoHandler) Fail(c *gin.Context) {
	h.respond(c, ErrExplicitFailure)
}
