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

package qosengine

import (
	"fmt"
	"net/http"

	qoserrors "go.uber.org/yarpc/internal/qos/errors"
	"go.uber.org/yarpc/internal/qos/response"
	"go.uber.org/yarpc/internal/qos/sensor"
)

// Sensor is the capability the engine reports error events to. The JSON
// parser/writer/attribute library and the HTTP error-body negotiation DSL
// a production caller would use to implement Negotiator are themselves out
// of this engine's scope; Sensor and Negotiator are only the seams those
// collaborators plug into.
type Sensor = sensor.Sensor

// Negotiator renders an HTTP response body for a failure, negotiated
// against the request's Accept headers. Applications that need content
// negotiation supply their own; PlainTextNegotiator is the engine's
// zero-value default.
type Negotiator = qoserrors.Negotiator

// PlainTextNegotiator is the default Negotiator: it ignores Accept headers
// entirely and always renders text/plain, which is enough to keep the
// engine usable without a real negotiation collaborator wired in.
type PlainTextNegotiator struct{}

// InternalError implements Negotiator.
func (PlainTextNegotiator) InternalError(_ []string, correlationID string) *response.Response {
	resp := response.NewResponse(http.StatusInternalServerError,
		[]byte(fmt.Sprintf("internal error (correlation id %s)", correlationID)))
	resp.AddHeader("Content-Type", "text/plain; charset=utf-8")
	return resp
}

// ByteLengthExceeded implements Negotiator.
func (PlainTextNegotiator) ByteLengthExceeded(_ []string, limit int) *response.Response {
	resp := response.NewResponse(http.StatusRequestEntityTooLarge,
		[]byte(fmt.Sprintf("request body exceeded %d bytes", limit)))
	resp.AddHeader("Content-Type", "text/plain; charset=utf-8")
	return resp
}

// serviceUnavailable is the response serveHTTP writes directly (bypassing
// the engine entirely) when the shutdown gate has already closed.
func serviceUnavailable() *response.Response {
	resp := response.NewResponse(http.StatusServiceUnavailable, []byte("service is shutting down"))
	resp.AddHeader("Content-Type", "text/plain; charset=utf-8")
	return resp
}
