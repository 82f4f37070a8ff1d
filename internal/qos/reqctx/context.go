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

// Package reqctx defines the per-request mutable state threaded through the
// queue, the interpreter, the I/O adapters and the external-boundary
// adapters. A Context has exactly one logical owner at any moment -- the
// queue, the worker running the interpreter, an I/O adapter goroutine, or
// an external-boundary callback -- so its fields need no locking of their
// own; only the transfer points (enqueue, callback entry, I/O completion)
// matter, and those are serialized by the channel/queue handoff itself.
package reqctx

import (
	"io"
	"time"

	"go.uber.org/yarpc/internal/qos/cleaner"
	"go.uber.org/yarpc/internal/qos/response"
	"go.uber.org/yarpc/internal/qos/step"
)

// Request is the narrow slice of the embedding HTTP adapter's request that
// the engine and a handler's context-only operations need. The adapter
// (e.g. qosengine's net/http front end) is responsible for satisfying it;
// the core never constructs one itself except as the poison sentinel (nil).
type Request interface {
	Method() string
	Header(name string) (string, bool)
	HeaderNames() []string
	Cookie(name string) (string, bool)
	Param(name string) (string, bool)
	ParamNames() []string

	// Body is the request's byte stream; ioadapt.Input reads it off the
	// worker goroutine that suspended on ReadInputBytes.
	Body() io.Reader
	// ResponseWriter is the sink ioadapt.Output writes the final response
	// to, and notifies once the response is complete.
	ResponseWriter() ResponseWriter
}

// ResponseWriter is the narrow slice of the embedding HTTP adapter's
// response the output adapter needs: set status and headers/cookies once,
// then stream the body, then signal completion so the adapter can release
// whatever made the request asynchronous (e.g. net/http's CloseNotify /
// Flusher machinery, or an explicit "async context" complete() call).
type ResponseWriter interface {
	SetStatusCode(code int)
	AddHeader(name, value string)
	SetCookie(c response.Cookie)
	io.Writer
	// Complete notifies the HTTP adapter that the response is finished.
	Complete()
}

// Context is the per-request state threaded through the engine.
type Context struct {
	// BaseRequest is nil for the poison sentinel that tells a worker to
	// stop; for every real request it is the HTTP adapter's view of the
	// inbound request.
	BaseRequest Request

	// Serial is unique and monotonically increasing within one engine.
	Serial uint64

	// AdmittedAt is when the request was pushed onto the queue, used to
	// report end-to-end latency once the response completes. It is the
	// zero Time for the poison sentinel.
	AdmittedAt time.Time

	// Qos is mutable: SetQos changes it and re-enqueues the context so a
	// worker reconsiders its position relative to other pending work.
	Qos interface{}

	// InitialPath is the request path as segments, fixed at creation.
	InitialPath []string
	// EffectivePath is consumed by routing (Path/Continue); it starts
	// equal to InitialPath and shrinks as segments are matched.
	EffectivePath []string

	// ExtraHeaders accumulates in call order; AddHeaders(h1); AddHeaders(h2)
	// yields h1 followed by h2 on the final response.
	ExtraHeaders []response.Header
	Cookies      []response.Cookie

	Cleaner cleaner.List

	// NextSteps is the suspended continuation to resume. A worker clears
	// it (to nil) before running it, so a context is never observed with
	// a stale continuation while it is also enqueued.
	NextSteps *step.Step
}

// IsPoison reports whether this is the shutdown sentinel rather than a
// real request.
func (c *Context) IsPoison() bool {
	return c.BaseRequest == nil
}

// TakeNextSteps clears and returns the suspended continuation, so exactly
// one worker ever resumes it.
func (c *Context) TakeNextSteps() step.Step {
	s := c.NextSteps
	c.NextSteps = nil
	return *s
}

// SetNextSteps installs the continuation to resume the next time a worker
// picks this context up (from the queue or directly, for an in-worker
// trampoline step).
func (c *Context) SetNextSteps(s step.Step) {
	c.NextSteps = &s
}
