// Package reqctx captures request metadata into an immutable RequestContext
// and makes it visible to all code running underneath a request, including
// code that resumes after waiting and code running on goroutines spawned for
// the request.
//
// # Building a RequestContext
//
// Headers are folded into a CGI-style mapping. The key for a header is
// "HTTP_" followed by the upper-cased name with every '-' replaced by '_':
//
//	rc := reqctx.New([]reqctx.Header{
//	    {Name: "X-Request-Id", Value: []byte("abc")},
//	})
//	v, _ := rc.Field("HTTP_X_REQUEST_ID") // "abc"
//
// Values are decoded as UTF-8; invalid bytes become U+FFFD. When a name
// appears more than once the last value wins. Both policies can be changed
// with WithDuplicatePolicy and WithInvalidBytePolicy.
//
// # The ambient slot
//
// The currently established RequestContext lives in a context.Context:
//
//	ctx = reqctx.WithContext(ctx, rc)
//	...
//	if rc, ok := reqctx.FromContext(ctx); ok {
//	    notice.CGIData = rc.Fields()
//	}
//
// A context.Context is never mutated, so establishing a value for a callee
// leaves the caller's view untouched. Leaving a scope, whether by return,
// panic or cancellation, always brings the enclosing value back.
//
// # Scoped futures
//
// Executors that drive work in steps use Future and Scoped. Scoped installs
// its RequestContext for each call to Poll, and only for that call:
//
//	f := reqctx.Scoped(inner, rc)
//	for {
//	    p := f.Poll(ctx) // inner observes rc
//	    if p.Done {
//	        return p.Value, p.Err
//	    }
//	    <-p.Wake
//	}
//
// Go starts a goroutine that inherits the caller's RequestContext and returns
// a Task, which is itself a Future. A panic inside the goroutine is re-raised
// unchanged in whoever waits on the Task, so the request's fault handling
// still sees it with the request's context established.
package reqctx
