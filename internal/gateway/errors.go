package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies why a request could not be resolved.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindKeyTooShort
	KindKeyTooLong
	KindUnauthorized
	KindInvalidContent
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindKeyTooShort:
		return "key_too_short"
	case KindKeyTooLong:
		return "key_too_long"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidContent:
		return "invalid_content"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is returned for every expected failure of Resolve and Ensure.
// Storage failures are returned unwrapped.
type Error struct {
	Kind Kind
	// Content holds the rejected generation output for KindInvalidContent.
	// It is nil when the model produced nothing decodable.
	Content *string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway: %s: %v", e.Kind, e.Err)
	}
	return "gateway: " + e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err, or 0 when err is not a gateway error.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return 0
}
