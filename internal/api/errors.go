package api

import (
	"errors"
	"fmt"
	"time"
)

type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindNotFound
	KindForbidden
	KindRateLimited
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	case KindMalformed:
		return "malformed"
	default:
		return "transient"
	}
}

// Error is a classified failure from the Codeforces API. RetryAfter carries
// the server-provided cool-down hint when the server sent one.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("codeforces api %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("codeforces api %s: %s", e.Kind, e.Message)
}

// Terminal reports whether retrying cannot help.
func (e *Error) Terminal() bool {
	return e.Kind == KindNotFound || e.Kind == KindForbidden
}

func kindOf(err error) (ErrorKind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

func IsForbidden(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindForbidden
}

func IsRateLimited(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindRateLimited
}
