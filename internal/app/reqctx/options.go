package reqctx

import "fmt"

// DuplicatePolicy decides which value is kept when a header name repeats.
type DuplicatePolicy string

const (
	// LastWins keeps the value of the last occurrence.
	LastWins DuplicatePolicy = "last"

	// FirstWins keeps the value of the first occurrence.
	FirstWins DuplicatePolicy = "first"
)

// InvalidBytePolicy decides how bytes that are not valid UTF-8 are decoded.
type InvalidBytePolicy string

const (
	// ReplaceInvalid substitutes U+FFFD for each invalid sequence.
	ReplaceInvalid InvalidBytePolicy = "replace"

	// StripInvalid drops invalid sequences.
	StripInvalid InvalidBytePolicy = "strip"
)

type options struct {
	duplicates   DuplicatePolicy
	invalidBytes InvalidBytePolicy
}

// Option configures RequestContext construction.
type Option func(*options)

// WithDuplicatePolicy sets the duplicate header policy. Unknown values
// fall back to LastWins.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(o *options) {
		if p != FirstWins {
			p = LastWins
		}
		o.duplicates = p
	}
}

// WithInvalidBytePolicy sets the invalid byte policy. Unknown values fall
// back to ReplaceInvalid.
func WithInvalidBytePolicy(p InvalidBytePolicy) Option {
	return func(o *options) {
		if p != StripInvalid {
			p = ReplaceInvalid
		}
		o.invalidBytes = p
	}
}

// ParseOptions turns configuration strings into Options.
func ParseOptions(duplicates, invalidBytes string) ([]Option, error) {
	var opts []Option

	switch DuplicatePolicy(duplicates) {
	case "", LastWins:
	case FirstWins:
		opts = append(opts, WithDuplicatePolicy(FirstWins))
	default:
		return nil, fmt.Errorf("unknown duplicate header policy %q", duplicates)
	}

	switch InvalidBytePolicy(invalidBytes) {
	case "", ReplaceInvalid:
	case StripInvalid:
		opts = append(opts, WithInvalidBytePolicy(StripInvalid))
	default:
		return nil, fmt.Errorf("unknown invalid byte policy %q", invalidBytes)
	}

	return opts, nil
}

func newOptions(opts []Option) options {
	o := options{
		duplicates:   LastWins,
		invalidBytes: ReplaceInvalid,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}
