package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies failures so callers can decide between retrying, skipping and aborting.
type Kind string

const (
	KindFetch       Kind = "fetch"
	KindRateLimit   Kind = "rate_limit"
	KindParse       Kind = "parse"
	KindPersistence Kind = "persistence"
	KindValidation  Kind = "validation"
)

// Error is a classified failure attributed to a source or component.
type Error struct {
	Kind    Kind
	Source  string
	Message string
	Status  int
	Err     error
	Time    time.Time
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Source != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Kind, e.Source, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the operation may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimit:
		return true
	case KindFetch:
		return e.Status == 0 || e.Status >= 500
	default:
		return false
	}
}

func New(kind Kind, source, message string, err error) *Error {
	return &Error{Kind: kind, Source: source, Message: message, Err: err, Time: time.Now()}
}

func Fetch(source, message string, err error) *Error {
	return New(KindFetch, source, message, err)
}

// HTTPStatus builds a fetch or rate-limit error from a non-2xx response.
func HTTPStatus(source string, status int, url string) *Error {
	kind := KindFetch
	if status == 429 {
		kind = KindRateLimit
	}
	e := New(kind, source, fmt.Sprintf("unexpected status %d from %s", status, url), nil)
	e.Status = status
	return e
}

func Parse(source, message string, err error) *Error {
	return New(KindParse, source, message, err)
}

func Persistence(message string, err error) *Error {
	return New(KindPersistence, "", message, err)
}

func Validation(message string) *Error {
	return New(KindValidation, "", message, nil)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err carries a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}
