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

// Package qosengine -- this file is the handler-facing capability surface:
// every function a Handler calls to touch the request suspends through a
// Step rather than touching *reqctx.Context directly, so the interpreter
// stays the only thing that ever mutates a Context, from the single worker
// that currently owns it.
package qosengine

import (
	"io"

	"go.uber.org/yarpc/internal/qos/boundary"
	"go.uber.org/yarpc/internal/qos/cleaner"
	"go.uber.org/yarpc/internal/qos/reqctx"
	"go.uber.org/yarpc/internal/qos/response"
	"go.uber.org/yarpc/internal/qos/step"
)

// Step is the suspendable computation a Handler returns. See
// internal/qos/step for its shape: either a finished value or a pending
// Operation paired with the continuation to resume once it resolves.
type Step = step.Step

// Handler is an application's request-handling coroutine. It runs until it
// returns a Step that is Done (a *response.Response) or suspended on one of
// the operations built by this file's functions.
type Handler func(ctx *Ctx) Step

// Completable and Scheduled are the external-boundary capabilities a
// Handler can suspend on; see internal/qos/boundary for their contract.
type Completable = boundary.Completable
type Scheduled = boundary.Scheduled

// Ctx is the per-request capability handle passed to a Handler. It has
// exactly one logical owner at a time -- the worker currently running the
// interpreter over the underlying Context -- so none of its methods lock;
// they just build the Operation the interpreter discharges next.
type Ctx struct {
	raw          *reqctx.Context
	knownMethods map[string]struct{}
}

func newCtx(raw *reqctx.Context, knownMethods map[string]struct{}) *Ctx {
	return &Ctx{raw: raw, knownMethods: knownMethods}
}

// IsKnownMethod reports whether method is one of the engine's configured
// HTTP methods (qosengine.KnownMethods), for a routing fallback to tell a
// no-matching-route 404 apart from a no-matching-method 405.
func (c *Ctx) IsKnownMethod(method string) bool {
	_, ok := c.knownMethods[method]
	return ok
}

// Cleaner is a handle to a registered cleanup closure, letting a Handler
// unregister it early if the resource it guards was already released
// through some other path.
type Cleaner struct {
	node *cleaner.Node
	list *cleaner.List
}

// Unregister removes the cleanup from the chain without running it. It is
// idempotent.
func (cl *Cleaner) Unregister() {
	cl.list.Unregister(cl.node)
}

// GetQos resumes k with the request's current priority.
func (c *Ctx) GetQos(k func(qos interface{}) Step) Step {
	return step.Suspend(step.Operation{
		Kind:      step.ContextOperation,
		ContextFn: func(interface{}) interface{} { return c.raw.Qos },
	}, func(v interface{}) Step { return k(v) })
}

// SetQos changes the request's priority and yields the worker so a
// higher-priority peer gets a chance to run before this request continues.
func (c *Ctx) SetQos(qos interface{}, k step.Cont) Step {
	return step.Suspend(step.Operation{Kind: step.SetQos, Qos: qos}, k)
}

// Serial resumes k with the request's unique, monotonically increasing
// serial number.
func (c *Ctx) Serial(k func(serial uint64) Step) Step {
	return step.Suspend(step.Operation{
		Kind:      step.ContextOperation,
		ContextFn: func(interface{}) interface{} { return c.raw.Serial },
	}, func(v interface{}) Step { return k(v.(uint64)) })
}

// Method resumes k with the request's HTTP method.
func (c *Ctx) Method(k func(method string) Step) Step {
	return step.Suspend(step.Operation{
		Kind:      step.ContextOperation,
		ContextFn: func(interface{}) interface{} { return c.raw.BaseRequest.Method() },
	}, func(v interface{}) Step { return k(v.(string)) })
}

type headerResult struct {
	value string
	ok    bool
}

// Header resumes k with the named request header, if present.
func (c *Ctx) Header(name string, k func(value string, ok bool) Step) Step {
	return step.Suspend(step.Operation{
		Kind: step.ContextOperation,
		ContextFn: func(interface{}) interface{} {
			v, ok := c.raw.BaseRequest.Header(name)
			return headerResult{value: v, ok: ok}
		},
	}, func(v interface{}) Step {
		r := v.(headerResult)
		return k(r.value, r.ok)
	})
}

// HeaderNames resumes k with the names of every header present on the
// request.
func (c *Ctx) HeaderNames(k func(names []string) Step) Step {
	return step.Suspend(step.Operation{
		Kind:      step.ContextOperation,
		ContextFn: func(interface{}) interface{} { return c.raw.BaseRequest.HeaderNames() },
	}, func(v interface{}) Step { return k(v.([]string)) })
}

// Cookie resumes k with the named request cookie, if present.
func (c *Ctx) Cookie(name string, k func(value string, ok bool) Step) Step {
	return step.Suspend(step.Operation{
		Kind: step.ContextOperation,
		ContextFn: func(interface{}) interface{} {
			v, ok := c.raw.BaseRequest.Cookie(name)
			return headerResult{value: v, ok: ok}
		},
	}, func(v interface{}) Step {
		r := v.(headerResult)
		return k(r.value, r.ok)
	})
}

// Param resumes k with the named routing parameter, if present.
func (c *Ctx) Param(name string, k func(value string, ok bool) Step) Step {
	return step.Suspend(step.Operation{
		Kind: step.ContextOperation,
		ContextFn: func(interface{}) interface{} {
			v, ok := c.raw.BaseRequest.Param(name)
			return headerResult{value: v, ok: ok}
		},
	}, func(v interface{}) Step {
		r := v.(headerResult)
		return k(r.value, r.ok)
	})
}

// ParamNames resumes k with the names of every routing parameter present.
func (c *Ctx) ParamNames(k func(names []string) Step) Step {
	return step.Suspend(step.Operation{
		Kind:      step.ContextOperation,
		ContextFn: func(interface{}) interface{} { return c.raw.BaseRequest.ParamNames() },
	}, func(v interface{}) Step { return k(v.([]string)) })
}

// AddHeader appends a header to the eventual response, in call order:
// AddHeader(h1, ...); AddHeader(h2, ...) yields h1 followed by h2.
func (c *Ctx) AddHeader(name, value string, k step.Cont) Step {
	return step.Suspend(step.Operation{
		Kind: step.ContextOperation,
		ContextFn: func(interface{}) interface{} {
			c.raw.ExtraHeaders = append(c.raw.ExtraHeaders, response.Header{Name: name, Value: value})
			return nil
		},
	}, k)
}

// AddCookie sets a cookie on the eventual response.
func (c *Ctx) AddCookie(ck response.Cookie, k step.Cont) Step {
	return step.Suspend(step.Operation{
		Kind: step.ContextOperation,
		ContextFn: func(interface{}) interface{} {
			c.raw.Cookies = append(c.raw.Cookies, ck)
			return nil
		},
	}, k)
}

// AddCleaner registers fn to run once the response completes, in LIFO order
// relative to every other cleaner registered on this request, and resumes k
// with a handle the Handler can Unregister if it releases the resource
// through some other path first.
func (c *Ctx) AddCleaner(fn func(), k func(cl *Cleaner) Step) Step {
	return step.Suspend(step.Operation{
		Kind:      step.ContextOperation,
		ContextFn: func(interface{}) interface{} { return c.raw.Cleaner.Register(fn) },
	}, func(v interface{}) Step {
		return k(&Cleaner{node: v.(*cleaner.Node), list: &c.raw.Cleaner})
	})
}

// AddCloser is the resource-bound variant of AddCleaner: it registers
// resource.Close, reporting any error it returns through the cleaner
// chain's fail-continue path (see internal/qos/cleaner.Drain) rather than
// letting it abort sibling cleanups.
func (c *Ctx) AddCloser(resource io.Closer, k func(cl *Cleaner) Step) Step {
	return c.AddCleaner(func() {
		if err := resource.Close(); err != nil {
			panic(err)
		}
	}, k)
}

// Abort finishes the request immediately with resp, skipping whatever
// remains of the handler's computation.
func Abort(resp *response.Response) Step {
	return step.Suspend(step.Operation{Kind: step.Abort, AbortResponse: resp}, func(interface{}) Step {
		return step.Done(resp)
	})
}

// Raise routes err through the engine's error-shaping path instead of
// producing a response directly.
func Raise(err error) Step {
	return step.Suspend(step.Operation{Kind: step.Raise, Err: err}, func(interface{}) Step {
		return step.Done(nil)
	})
}

// ReadBody suspends until up to limit bytes of the request body have been
// read (handed off to ioadapt so no worker blocks on client I/O), and
// resumes k with the accumulated bytes. A body larger than limit raises
// byteLengthExceeded instead of calling k.
func (c *Ctx) ReadBody(limit int, k func(body []byte) Step) Step {
	return step.Suspend(step.Operation{Kind: step.ReadInputBytes, ReadLimit: limit}, func(v interface{}) Step {
		return k(v.([]byte))
	})
}

// RunCompletable hands control to a fire-and-resume external subsystem and
// resumes k with its result once exactly one of the subsystem's callbacks
// fires.
func (c *Ctx) RunCompletable(boundaryCall Completable, k step.Cont) Step {
	return step.Suspend(boundary.RunCompletable(boundaryCall), k)
}

// RunScheduled hands control to a priority-aware external subsystem,
// propagating this request's current qos and serial, and resumes k with
// its result.
func (c *Ctx) RunScheduled(boundaryCall Scheduled, k step.Cont) Step {
	return step.Suspend(boundary.RunScheduled(boundaryCall), k)
}

// Path selects a Handler by matching the unconsumed segments of the
// request's effective path against match, a partial function over path
// segments. If match does not recognize the remaining path, notFound runs
// instead. The routing DSL that builds match is outside this engine's
// scope; Path only supplies the suspension primitive it compiles down to.
func (c *Ctx) Path(match func(remaining []string) (Handler, bool), notFound Handler) Step {
	return step.Suspend(step.Operation{
		Kind: step.ComplexContextOperation,
		ComplexFn: func(interface{}) Step {
			h, ok := match(c.raw.EffectivePath)
			if !ok {
				h = notFound
			}
			return h(c)
		},
	}, step.Done)
}

// Continue replaces the request's effective path (what routing sees as the
// unconsumed remainder) and resumes processing with sub, e.g. after a
// router has matched and stripped a path prefix.
func (c *Ctx) Continue(effectivePath []string, sub Handler) Step {
	return step.Suspend(step.Operation{
		Kind: step.ComplexContextOperation,
		ComplexFn: func(interface{}) Step {
			c.raw.EffectivePath = effectivePath
			return sub(c)
		},
	}, step.Done)
}
