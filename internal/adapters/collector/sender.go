package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/jsamuelsen/faultctx/internal/adapters/clients"
	"github.com/jsamuelsen/faultctx/internal/adapters/http/middleware"
)

// Sender delivers one notice. It is called from the Notifier's workers.
type Sender interface {
	Send(ctx context.Context, n *Notice) error
}

// HTTPSender posts notices as JSON through a clients.Client. Each notice
// is sent once; a non-2xx response is a failure.
type HTTPSender struct {
	client *clients.Client
	path   string
}

// NewHTTPSender creates a sender posting to path relative to the client's
// base URL.
func NewHTTPSender(client *clients.Client, path string) *HTTPSender {
	return &HTTPSender{client: client, path: path}
}

// Send posts n. The originating request and correlation IDs are forwarded
// as headers.
func (s *HTTPSender) Send(ctx context.Context, n *Notice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notice: %w", err)
	}

	if n.Request != nil {
		ctx = middleware.ContextWithRequestID(ctx, n.Request.Context.RequestID)
		ctx = middleware.ContextWithCorrelationID(ctx, n.Request.Context.CorrelationID)
	}

	resp, err := s.client.Post(ctx, s.path, "application/json", body)
	if err != nil {
		return fmt.Errorf("sending notice %s: %w", n.ID, err)
	}
	defer resp.Body.Close()

	// Drain so the keep-alive connection goes back to the pool.
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// Check reports the collector as unhealthy while the client's circuit is open.
func (s *HTTPSender) Check(context.Context) error {
	if s.client.CircuitState() == clients.StateOpen {
		return clients.ErrCircuitOpen
	}

	return nil
}

// LogSender writes notices as structured log records. It is used when no
// collector endpoint is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger means slog.Default().
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogSender{logger: logger}
}

// Send logs n at error level. Request fields are logged one attribute per
// key so the logger's redaction applies to each of them.
func (s *LogSender) Send(ctx context.Context, n *Notice) error {
	attrs := []any{
		slog.String("notice_id", n.ID),
		slog.String("class", n.Error.Class),
		slog.String("message", n.Error.Message),
	}
	if len(n.Error.Backtrace) > 0 {
		top := n.Error.Backtrace[0]
		attrs = append(attrs, slog.String("origin", fmt.Sprintf("%s:%d", top.File, top.Number)))
	}

	if r := n.Request; r != nil {
		fields := make([]any, 0, len(r.CGIData))
		for _, k := range slices.Sorted(maps.Keys(r.CGIData)) {
			fields = append(fields, slog.String(k, r.CGIData[k]))
		}

		attrs = append(attrs,
			slog.String("url", r.URL),
			slog.String("method", r.Method),
			slog.String("component", r.Component),
			slog.String("request_id", r.Context.RequestID),
			slog.Group("cgi_data", fields...),
		)
	}

	s.logger.ErrorContext(ctx, "fault captured", attrs...)

	return nil
}
