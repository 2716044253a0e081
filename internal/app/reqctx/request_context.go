package reqctx

import (
	"maps"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// HeaderKeyPrefix prefixes every header-derived field key.
const HeaderKeyPrefix = "HTTP_"

// Header is a single request header as received from the wire.
// Value holds raw bytes and is not guaranteed to be valid UTF-8.
type Header struct {
	Name  string
	Value []byte
}

// Meta holds the typed request attributes kept outside the field mapping.
type Meta struct {
	Method    string
	URL       string
	Route     string
	RequestID string
}

// RequestContext is an immutable snapshot of one request's metadata.
// The zero value is an empty context.
type RequestContext struct {
	fields map[string]string
	meta   Meta
}

// New builds a RequestContext from an ordered header sequence.
// It never fails: invalid bytes are decoded lossily.
func New(headers []Header, opts ...Option) *RequestContext {
	o := newOptions(opts)

	fields := make(map[string]string, len(headers))
	for _, h := range headers {
		key := HeaderKey(h.Name)
		if o.duplicates == FirstWins {
			if _, seen := fields[key]; seen {
				continue
			}
		}

		fields[key] = decodeValue(h.Value, o.invalidBytes)
	}

	return &RequestContext{fields: fields}
}

// FromRequest builds a RequestContext from a net/http request.
//
// net/http moves the Host header out of r.Header into r.Host; it is put back
// as the first header. The remaining names are visited in the order of their
// field keys and multiple values of one name in the order they arrived.
//
// http.Header does not record arrival order across names. Keys that fold to
// the same field, such as "x-foo" and "X-Foo" set directly on the map, are
// visited with the canonical spelling last, so under LastWins the value
// stored by Header.Add or Header.Set is kept.
func FromRequest(r *http.Request, opts ...Option) *RequestContext {
	headers := make([]Header, 0, len(r.Header)+1)
	if r.Host != "" {
		headers = append(headers, Header{Name: "Host", Value: []byte(r.Host)})
	}

	for _, name := range headerNames(r.Header) {
		for _, v := range r.Header[name] {
			headers = append(headers, Header{Name: name, Value: []byte(v)})
		}
	}

	rc := New(headers, opts...)
	rc.meta = Meta{
		Method: r.Method,
		URL:    requestURL(r),
	}

	return rc
}

// HeaderKey returns the field key for a header name.
// Only ASCII letters are upper-cased, so the result does not depend on the
// case of the original name.
func HeaderKey(name string) string {
	var b strings.Builder
	b.Grow(len(HeaderKeyPrefix) + len(name))
	b.WriteString(HeaderKeyPrefix)

	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '-':
			c = '_'
		case 'a' <= c && c <= 'z':
			c -= 'a' - 'A'
		}
		b.WriteByte(c)
	}

	return b.String()
}

// Field returns the value stored under key.
func (rc *RequestContext) Field(key string) (string, bool) {
	if rc == nil {
		return "", false
	}

	v, ok := rc.fields[key]
	return v, ok
}

// Header returns the value captured for the named header.
func (rc *RequestContext) Header(name string) (string, bool) {
	return rc.Field(HeaderKey(name))
}

// Fields returns a copy of the field mapping.
func (rc *RequestContext) Fields() map[string]string {
	if rc == nil {
		return map[string]string{}
	}

	return maps.Clone(rc.fields)
}

// Len reports the number of fields.
func (rc *RequestContext) Len() int {
	if rc == nil {
		return 0
	}

	return len(rc.fields)
}

// Meta returns the typed request attributes.
func (rc *RequestContext) Meta() Meta {
	if rc == nil {
		return Meta{}
	}

	return rc.meta
}

// WithMeta returns a copy of rc whose non-empty Meta attributes are
// replaced by those of m. The receiver is left unchanged.
func (rc *RequestContext) WithMeta(m Meta) *RequestContext {
	out := &RequestContext{}
	if rc != nil {
		out.fields = rc.fields
		out.meta = rc.meta
	}

	if m.Method != "" {
		out.meta.Method = m.Method
	}
	if m.URL != "" {
		out.meta.URL = m.URL
	}
	if m.Route != "" {
		out.meta.Route = m.Route
	}
	if m.RequestID != "" {
		out.meta.RequestID = m.RequestID
	}

	return out
}

// headerNames orders the keys of h by field key. Within one field key the
// canonical spelling comes last and the others are sorted.
func headerNames(h http.Header) []string {
	names := slices.Collect(maps.Keys(h))
	slices.SortFunc(names, func(a, b string) int {
		if c := strings.Compare(HeaderKey(a), HeaderKey(b)); c != 0 {
			return c
		}

		aCanonical := a == http.CanonicalHeaderKey(a)
		bCanonical := b == http.CanonicalHeaderKey(b)
		switch {
		case aCanonical && !bCanonical:
			return 1
		case !aCanonical && bCanonical:
			return -1
		}

		return strings.Compare(a, b)
	})

	return names
}

// decodeValue converts raw header bytes to text according to policy.
func decodeValue(v []byte, policy InvalidBytePolicy) string {
	if utf8.Valid(v) {
		return string(v)
	}

	if policy == StripInvalid {
		return strings.ToValidUTF8(string(v), "")
	}

	s, err := unicode.UTF8.NewDecoder().Bytes(v)
	if err != nil {
		return strings.ToValidUTF8(string(v), string(utf8.RuneError))
	}

	return string(s)
}

// requestURL reconstructs the absolute URL of an inbound request.
func requestURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}

	if r.URL.IsAbs() {
		return r.URL.String()
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	u := *r.URL
	u.Scheme = scheme
	u.Host = r.Host

	return u.String()
}
