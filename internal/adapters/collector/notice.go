// Package collector turns request faults into notices and delivers them to
// an external error collector.
package collector

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/faultctx/internal/adapters/http/middleware"
	"github.com/jsamuelsen/faultctx/internal/app/reqctx"
	"github.com/jsamuelsen/faultctx/internal/platform/telemetry"
)

// NotifierName identifies this library in every notice.
const NotifierName = "faultctx"

// Notice is a fault record with the request context captured for it.
type Notice struct {
	ID       string       `json:"id"`
	Notifier NotifierInfo `json:"notifier"`
	Error    ErrorInfo    `json:"error"`
	Request  *RequestInfo `json:"request,omitempty"`
	Server   ServerInfo   `json:"server"`
}

// NotifierInfo describes the reporting library.
type NotifierInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ErrorInfo describes the fault.
type ErrorInfo struct {
	Class     string  `json:"class"`
	Message   string  `json:"message"`
	Backtrace []Frame `json:"backtrace,omitempty"`
}

// Frame is one backtrace entry, innermost first.
type Frame struct {
	File   string `json:"file"`
	Number int    `json:"number"`
	Method string `json:"method"`
}

// RequestInfo is the request payload attached to a notice. CGIData holds
// the RequestContext fields.
type RequestInfo struct {
	URL       string            `json:"url,omitempty"`
	Method    string            `json:"method,omitempty"`
	Component string            `json:"component,omitempty"`
	CGIData   map[string]string `json:"cgi_data"`
	Context   RequestIDs        `json:"context"`
}

// RequestIDs are the identifiers of the failing request.
type RequestIDs struct {
	RequestID     string `json:"request_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	TraceID       string `json:"trace_id,omitempty"`
}

// ServerInfo describes the process that captured the fault.
type ServerInfo struct {
	EnvironmentName string    `json:"environment_name"`
	Hostname        string    `json:"hostname"`
	Revision        string    `json:"revision,omitempty"`
	Time            time.Time `json:"time"`
}

// Environment holds the process-wide parts of every notice.
type Environment struct {
	Version   string
	Name      string
	Hostname  string
	Revision  string
	Component string

	// Now defaults to time.Now.
	Now func() time.Time
}

// BuildNotice creates a notice for fault, which is a recovered panic value
// or an error. The request section is filled from the RequestContext
// established in ctx and omitted when there is none.
func (e Environment) BuildNotice(ctx context.Context, fault any, pcs []uintptr) *Notice {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	class, message := describe(fault)

	n := &Notice{
		ID:       uuid.NewString(),
		Notifier: NotifierInfo{Name: NotifierName, Version: e.Version},
		Error: ErrorInfo{
			Class:     class,
			Message:   message,
			Backtrace: backtrace(pcs),
		},
		Server: ServerInfo{
			EnvironmentName: e.Name,
			Hostname:        e.Hostname,
			Revision:        e.Revision,
			Time:            now().UTC(),
		},
	}

	rc, ok := reqctx.FromContext(ctx)
	if !ok {
		return n
	}

	meta := rc.Meta()
	component := meta.Route
	if component == "" {
		component = e.Component
	}

	requestID := meta.RequestID
	if requestID == "" {
		requestID = middleware.RequestIDFromContext(ctx)
	}

	n.Request = &RequestInfo{
		URL:       meta.URL,
		Method:    meta.Method,
		Component: component,
		CGIData:   rc.Fields(),
		Context: RequestIDs{
			RequestID:     requestID,
			CorrelationID: middleware.CorrelationIDFromContext(ctx),
			TraceID:       telemetry.TraceIDFromContext(ctx),
		},
	}

	return n
}

// describe returns the class and message of a fault. For errors the class
// is the dynamic type of the outermost error.
func describe(fault any) (class, message string) {
	switch v := fault.(type) {
	case nil:
		return "nil", ""
	case error:
		return fmt.Sprintf("%T", v), v.Error()
	case fmt.Stringer:
		return fmt.Sprintf("%T", v), v.String()
	default:
		return fmt.Sprintf("%T", v), fmt.Sprint(v)
	}
}

// backtrace resolves program counters into frames. Frames of the runtime
// itself, such as runtime.gopanic, are left out.
func backtrace(pcs []uintptr) []Frame {
	if len(pcs) == 0 {
		return nil
	}

	out := make([]Frame, 0, len(pcs))
	frames := runtime.CallersFrames(pcs)
	for {
		f, more := frames.Next()
		if f.Function != "" && !strings.HasPrefix(f.Function, "runtime.") {
			out = append(out, Frame{File: f.File, Number: f.Line, Method: f.Function})
		}
		if !more {
			break
		}
	}

	return out
}
