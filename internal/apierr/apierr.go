// Package apierr defines the typed error kinds returned by the tile
// pipeline and the HTTP status each maps to at the edge.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so the router can pick the right status
// code without string-matching error text.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindBackend       Kind = "backend"
	KindCodec         Kind = "codec"
	KindConfiguration Kind = "configuration"
	KindTimeout       Kind = "timeout"
	KindNoData        Kind = "no_data"
)

// statusFor maps each Kind to its HTTP status. NoData never reaches the
// edge as an HTTP response on its own; callers translate it into an
// empty tile before it leaves the assembler.
var statusFor = map[Kind]int{
	KindValidation:    http.StatusBadRequest,
	KindBackend:       http.StatusServiceUnavailable,
	KindCodec:         http.StatusInternalServerError,
	KindConfiguration: http.StatusInternalServerError,
	KindTimeout:       http.StatusGatewayTimeout,
	KindNoData:        http.StatusInternalServerError,
}

// Error is the single error type the service uses above the storage
// and codec layers. It carries a machine-readable Kind plus whatever
// underlying cause triggered it.
type Error struct {
	Kind    Kind
	Op      string // component/operation that raised it, e.g. "store.GetTile"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP status code this error should surface as.
func (e *Error) Status() int {
	if s, ok := statusFor[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func new(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Cause: cause}
}

func Validation(op, msg string, cause error) *Error    { return new(KindValidation, op, msg, cause) }
func Backend(op, msg string, cause error) *Error       { return new(KindBackend, op, msg, cause) }
func Codec(op, msg string, cause error) *Error         { return new(KindCodec, op, msg, cause) }
func Configuration(op, msg string, cause error) *Error { return new(KindConfiguration, op, msg, cause) }
func Timeout(op, msg string, cause error) *Error       { return new(KindTimeout, op, msg, cause) }
func NoData(op, msg string) *Error                     { return new(KindNoData, op, msg, nil) }

// As extracts an *Error from the chain, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusCode resolves the HTTP status for any error, defaulting
// unclassified errors to 500.
func StatusCode(err error) int {
	if e, ok := As(err); ok {
		return e.Status()
	}
	return http.StatusInternalServerError
}

// IsNoData reports whether err (or something in its chain) represents
// an empty-result condition rather than a true failure.
func IsNoData(err error) bool {
	e, ok := As(err)
	return ok && e.Kind == KindNoData
}
