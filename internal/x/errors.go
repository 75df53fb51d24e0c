package x

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a platform failure. Only the kind survives into the audit
// log; the pipeline treats all kinds as "publish failed".
type Kind string

const (
	KindRateLimited Kind = "rate-limited"
	KindAuth        Kind = "auth"
	KindNetwork     Kind = "network"
	KindPlatform    Kind = "platform"
)

type Error struct {
	Kind       Kind
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("x: %s: %v", e.Kind, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("x: %s (status %d): %s", e.Kind, e.StatusCode, e.Detail)
	default:
		return fmt.Sprintf("x: %s (status %d)", e.Kind, e.StatusCode)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func newStatusError(statusCode int, detail string) *Error {
	kind := KindPlatform
	switch statusCode {
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuth
	}
	return &Error{Kind: kind, StatusCode: statusCode, Detail: detail}
}

// ErrorKind extracts the failure kind from any error returned by this
// package; unknown errors map to "network" so the audit trail always has a
// kind.
func ErrorKind(err error) Kind {
	var xerr *Error
	if errors.As(err, &xerr) {
		return xerr.Kind
	}
	return KindNetwork
}
