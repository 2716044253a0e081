// Package ports defines the contracts between the HTTP layer and the
// adapters that serve it. Context is always the first parameter.
package ports

import "context"

// FaultReporter is the narrow interface of the fault-capturing collaborator.
//
// Both methods are called synchronously while the failing request's scope is
// still active, so ctx carries the request's reqctx.RequestContext.
// Implementations must not block the request for the transmission itself.
type FaultReporter interface {
	// ReportPanic records a recovered panic value together with the program
	// counters of the panicking goroutine, as returned by runtime.Callers.
	ReportPanic(ctx context.Context, value any, pcs []uintptr)

	// ReportError records an explicit handler error.
	ReportError(ctx context.Context, err error)
}

// FaultReporterFunc adapts a single function to FaultReporter. The function
// receives the panic value or the error as fault, and pcs is nil for errors.
type FaultReporterFunc func(ctx context.Context, fault any, pcs []uintptr)

// ReportPanic calls f.
func (f FaultReporterFunc) ReportPanic(ctx context.Context, value any, pcs []uintptr) {
	f(ctx, value, pcs)
}

// ReportError calls f.
func (f FaultReporterFunc) ReportError(ctx context.Context, err error) {
	f(ctx, err, nil)
}
