// Package errors provides the structured error type shared across the
// gateway client, plus a registry of the platform's gateway status codes so
// callers get a named reason instead of a bare number.
package errors

import (
	"errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryGateway   Category = "gateway"
	CategoryProtocol  Category = "protocol"
	CategoryTransport Category = "transport"
	CategoryConfig    Category = "config"
	CategoryUpload    Category = "upload"
)

// Error is a structured error with a category and, for gateway failures,
// the platform status code.
type Error struct {
	// Category is the error type (gateway, protocol, transport, ...).
	Category Category

	// Code is the platform status code, 0 when not applicable.
	Code int

	// Message is a short description of the error.
	Message string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var msg string
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (%d): %s", e.Category, e.Code, e.Message)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Category, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Wrap attaches an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// registry maps gateway status codes to their documented meanings.
var registry = map[int]string{
	40100: "missing parameter",
	40101: "invalid token",
	40102: "token verification failed",
	40103: "token expired, reconnect required",
	40106: "resume failed: missing parameter",
	40107: "resume failed: session expired",
	40108: "resume failed: invalid or unknown sn",
}

// FromCode builds a gateway error from a registered status code.
func FromCode(code int) *Error {
	msg, ok := registry[code]
	if !ok {
		msg = "unknown gateway status"
	}
	return &Error{Category: CategoryGateway, Code: code, Message: msg}
}

// Newf creates an error with a formatted message.
func Newf(category Category, format string, args ...any) *Error {
	return &Error{Category: category, Message: fmt.Sprintf(format, args...)}
}

// IsCategory reports whether err is an *Error of the given category.
func IsCategory(err error, category Category) bool {
	var e *Error
	return errors.As(err, &e) && e.Category == category
}
