// Copyright (c) 2024 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package errors defines the engine's typed error, modeled on
// go.uber.org/yarpc/yarpcerrors: a small Code enum plus a concrete error
// type that carries one, so the sensor and the errors collaborator can
// branch on Code() instead of string-matching.
package errors

import (
	"fmt"

	"go.uber.org/yarpc/internal/qos/response"
)

// Code classifies why a request failed, independent of the HTTP status an
// Errors collaborator eventually renders it as.
type Code int

const (
	// CodeUnknown is what CodeOf reports for any error that is not an
	// *Error, including handler panics, body-read I/O failures and errors
	// recovered in the worker loop.
	CodeUnknown Code = iota
	// CodeInternal classifies an *Error built for an internal failure.
	CodeInternal
	// CodeResourceExhausted is carried by the error ByteLengthExceeded
	// builds.
	CodeResourceExhausted
)

func (c Code) String() string {
	switch c {
	case CodeInternal:
		return "internal"
	case CodeResourceExhausted:
		return "resource-exhausted"
	default:
		return "unknown"
	}
}

// Error is the engine's typed error, always constructed with a Code so
// downstream collaborators can render an appropriate response.
type Error struct {
	code    Code
	message string
	cause   error
}

// Newf builds an *Error of the given code with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given code around a pre-existing error,
// preserving it as Unwrap() so errors.Is/As keep working.
func Wrap(code Code, cause error) *Error {
	return &Error{code: code, message: cause.Error(), cause: cause}
}

func (e *Error) Error() string {
	return fmt.Sprintf("code=%s: %s", e.code, e.message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the Code of err, or CodeUnknown if err is not an *Error
// (possibly wrapped).
func CodeOf(err error) Code {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return CodeUnknown
}

// ByteLengthExceeded builds the CodeResourceExhausted error raised by the
// input adapter when the body exceeds its declared limit.
func ByteLengthExceeded(limit int) *Error {
	return Newf(CodeResourceExhausted, "request body exceeded limit of %d bytes", limit)
}

// Negotiator is the external collaborator that renders a *response.Response
// for a given failure, negotiated against the request's Accept headers.
// The core never decides a response body's content type itself; it always
// asks this collaborator, matching the out-of-scope boundary the
// specification draws around HTTP error-body negotiation.
type Negotiator interface {
	// InternalError renders a response body for an internal failure,
	// given the id the Sensor produced so the caller can report it back.
	InternalError(acceptHeaders []string, correlationID string) *response.Response
	// ByteLengthExceeded renders a response body for a request body that
	// exceeded limit.
	ByteLengthExceeded(acceptHeaders []string, limit int) *response.Response
}

// BareInternalError is the last-resort response synthesised when the
// Negotiator itself fails while shaping an internal error.
func BareInternalError() *response.Response {
	return response.NewResponse(500, []byte("internal server error"))
}
