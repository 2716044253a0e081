package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/faultctx/internal/adapters/http/dto"
	"github.com/jsamuelsen/faultctx/internal/platform/logging"
	"github.com/jsamuelsen/faultctx/internal/platform/telemetry"
)

// MapError maps err to a status and error envelope. A *dto.StatusError
// anywhere in the chain selects the status; other errors get a generic
// message so internals are not leaked.
func MapError(err error) (int, *dto.ErrorResponse) {
	if err == nil {
		return http.StatusOK, nil
	}

	var se *dto.StatusError
	if errors.As(err, &se) {
		return dto.HTTPStatusFromCode(se.Code), dto.NewErrorResponseWithDetails(se.Code, se.Error(), se.Details)
	}

	return http.StatusInternalServerError,
		dto.NewErrorResponse(dto.ErrorCodeInternal, "an internal error occurred")
}

// RespondWithError writes the error envelope for err.
//
// Server errors are attached to c with c.Error, so CaptureFaults reports
// them with the request's context once the handler returns.
func RespondWithError(c *gin.Context, err error) {
	status, resp := MapError(err)
	if resp == nil {
		return
	}

	ctx := c.Request.Context()
	resp.WithTraceID(telemetry.TraceIDFromContext(ctx))

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		logging.FromContext(ctx).Error("internal error",
			slog.String("error", err.Error()),
			slog.String("trace_id", resp.TraceID),
		)
	}

	c.JSON(status, resp)
}

// AbortWithErrorCode aborts the chain with a specific error code.
func AbortWithErrorCode(c *gin.Context, code, message string) {
	resp := dto.NewErrorResponse(code, message).
		WithTraceID(telemetry.TraceIDFromContext(c.Request.Context()))

	c.AbortWithStatusJSON(dto.HTTPStatusFromCode(code), resp)
}
