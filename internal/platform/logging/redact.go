package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

var (
	jwtPattern        = regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`)
	bearerPattern     = regexp.MustCompile(`(?i)^bearer\s+.+$`)
	basicAuthPattern  = regexp.MustCompile(`(?i)^basic\s+.+$`)
	secretFieldPrefix = []string{"secret", "private"}
)

// sensitiveFields are attribute keys whose values are always redacted.
var sensitiveFields = []string{
	"password", "secret", "token", "credential", "credentials",
	"apiKey", "apikey", "api_key",
	"accessToken", "access_token", "refreshToken", "refresh_token",
	"privateKey", "private_key", "secretKey", "secret_key",
	"authorization", "auth", "bearer", "cookie", "session",
}

// sensitiveHeaderFields are the request context keys of headers that carry
// credentials. Notices logged by the collector expose them as attributes.
var sensitiveHeaderFields = []string{
	"HTTP_AUTHORIZATION",
	"HTTP_PROXY_AUTHORIZATION",
	"HTTP_COOKIE",
	"HTTP_SET_COOKIE",
	"HTTP_X_API_KEY",
}

// DefaultRedactOptions returns the masq options applied by every handler
// created by New.
func DefaultRedactOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(sensitiveFields)+len(sensitiveHeaderFields)+len(secretFieldPrefix)+3)

	for _, name := range sensitiveFields {
		opts = append(opts, masq.WithFieldName(name))
	}
	for _, name := range sensitiveHeaderFields {
		opts = append(opts, masq.WithFieldName(name))
	}
	for _, prefix := range secretFieldPrefix {
		opts = append(opts, masq.WithFieldPrefix(prefix))
	}

	return append(opts,
		masq.WithRegex(jwtPattern),
		masq.WithRegex(bearerPattern),
		masq.WithRegex(basicAuthPattern),
	)
}

// NewReplaceAttr returns a slog ReplaceAttr that redacts everything matched
// by DefaultRedactOptions and opts.
func NewReplaceAttr(opts ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(DefaultRedactOptions(), opts...)...)
}
