// Package corpuserr defines the error taxonomy shared by the corpus store
// and its HTTP surface. Callers classify with errors.As/KindOf; handlers map
// kinds to wire codes via Code and HTTPStatus.
package corpuserr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	// NotFound: the referenced entity does not exist for this tenant.
	NotFound Kind = iota + 1
	// Conflict: the request contradicts stored state (e.g. an evidence
	// bundle spanning corpus versions, or a closed ingestion run).
	Conflict
	// Unavailable: the store or search backend is unreachable or timed out.
	Unavailable
	// ValidationFailed: malformed input at the ingestion boundary.
	ValidationFailed
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: NotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &Error{Kind: Conflict, Msg: fmt.Sprintf(format, args...)}
}

func Unavailablef(format string, args ...any) error {
	return &Error{Kind: Unavailable, Msg: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) error {
	return &Error{Kind: ValidationFailed, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying store error.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind carried by err, or 0 when err is untyped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsNotFound(err error) bool    { return KindOf(err) == NotFound }
func IsConflict(err error) bool    { return KindOf(err) == Conflict }
func IsUnavailable(err error) bool { return KindOf(err) == Unavailable }

// Code is the SCREAMING_SNAKE wire code for err.
func Code(err error) string {
	switch KindOf(err) {
	case NotFound:
		return "NOT_FOUND"
	case Conflict:
		return "CONFLICT"
	case Unavailable:
		return "UNAVAILABLE"
	case ValidationFailed:
		return "VALIDATION_FAILED"
	default:
		return "DB_ERROR"
	}
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Unavailable:
		return http.StatusServiceUnavailable
	case ValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
