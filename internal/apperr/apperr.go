// Package apperr defines the engine's error taxonomy. Errors carry a
// stable machine-readable code and a user-displayable message, and wrap an
// optional cause for errors.Is/errors.As chains.
package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeUpstreamTimeout     Code = "upstream_timeout"
	CodeInvalidInput        Code = "invalid_input"
	CodeInternal            Code = "internal"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two apperr errors by code, so sentinel-style checks like
// errors.Is(err, apperr.New(apperr.CodeNotFound, "")) work across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the taxonomy code from an error chain. Unclassified
// errors report CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func IsNotFound(err error) bool     { return CodeOf(err) == CodeNotFound }
func IsConflict(err error) bool     { return CodeOf(err) == CodeConflict }
func IsInvalidInput(err error) bool { return CodeOf(err) == CodeInvalidInput }

// IsUpstream reports whether the error is an upstream availability or
// timeout failure. Bulk processing captures these per item instead of
// propagating them.
func IsUpstream(err error) bool {
	c := CodeOf(err)
	return c == CodeUpstreamUnavailable || c == CodeUpstreamTimeout
}
