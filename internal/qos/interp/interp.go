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

// Package interp implements the coroutine interpreter: the part of the
// engine that drives one request's Step one link at a time, decides
// in-worker continuation vs. re-enqueue vs. hand-off to I/O or an external
// boundary, and shapes errors into responses. It is intentionally decoupled
// from how a context is queued (Requeuer) and how a response is actually
// written (OutputFunc) or a body actually read (InputFunc), both supplied
// by the caller, so this package has no dependency on ioadapt or pool and
// there is no import cycle.
package interp

import (
	"fmt"

	qoserrors "go.uber.org/yarpc/internal/qos/errors"
	"go.uber.org/yarpc/internal/qos/reqctx"
	"go.uber.org/yarpc/internal/qos/response"
	"go.uber.org/yarpc/internal/qos/sensor"
	"go.uber.org/yarpc/internal/qos/step"
)

// Requeuer is the subset of the priority queue the interpreter needs to
// re-enqueue a context after SetQos or after an external boundary resumes
// it.
type Requeuer interface {
	Push(ctx *reqctx.Context)
}

// InputFunc starts an asynchronous, bounded body read. It must arrange for
// the read's outcome to eventually call Interpreter.ResumeValue (with the
// accumulated bytes) or Interpreter.RaiseSizeTooLarge (on overrun) or
// Interpreter.ResumeError (on I/O failure).
type InputFunc func(ctx *reqctx.Context, limit int, k step.Cont)

// OutputFunc starts an asynchronous response write and, once the response
// is fully written, notifies the HTTP adapter and drains ctx's cleaners.
type OutputFunc func(ctx *reqctx.Context, resp *response.Response)

// Interpreter runs request coroutines to completion: it drives a context's
// Step one link at a time, deciding for each suspension whether to continue
// in this worker, re-enqueue, or hand off to I/O or an external boundary.
type Interpreter struct {
	Queue      Requeuer
	Sensor     sensor.Sensor
	Negotiator qoserrors.Negotiator
	Input      InputFunc
	Output     OutputFunc
}

// Run advances ctx's suspended continuation until it finishes, aborts,
// raises, or hands off to I/O, an external boundary, or a re-enqueue. It
// must only ever be called by the single worker that currently owns ctx.
func (ip *Interpreter) Run(ctx *reqctx.Context) {
	defer func() {
		if r := recover(); r != nil {
			ip.RaiseInternalError(ctx, panicToError(r))
		}
	}()

	s := ctx.TakeNextSteps()
	for {
		if s.IsDone() {
			resp, ok := s.Value().(*response.Response)
			if !ok {
				ip.RaiseInternalError(ctx, fmt.Errorf("handler finished with non-Response value %T", s.Value()))
				return
			}
			ip.Output(ctx, resp)
			return
		}

		op := s.Operation()
		k := s.Next()

		switch op.Kind {
		case step.Abort:
			ip.Output(ctx, op.AbortResponse)
			return

		case step.Raise:
			ip.RaiseInternalError(ctx, op.Err)
			return

		case step.ReadInputBytes:
			ip.Input(ctx, op.ReadLimit, k)
			return

		case step.SetQos:
			ctx.Qos = op.Qos
			ctx.SetNextSteps(step.Resume(nil, k))
			ip.Queue.Push(ctx)
			return

		case step.RunCompletable:
			ip.runCompletable(ctx, op, k)
			return

		case step.RunScheduled:
			ip.runScheduled(ctx, op, k)
			return

		case step.ContextOperation:
			v := op.ContextFn(ctx)
			s = k(v)

		case step.ComplexContextOperation:
			inner := op.ComplexFn(ctx)
			s = step.Chain(inner, k)

		default:
			ip.RaiseInternalError(ctx, fmt.Errorf("unknown operation kind %d", op.Kind))
			return
		}
	}
}

// runCompletable discharges a fire-and-resume external boundary call. The
// success/failure callbacks may run synchronously (before Run returns) or
// later from any thread; either way they only ever re-enqueue ctx, never
// invoke handler code directly.
func (ip *Interpreter) runCompletable(ctx *reqctx.Context, op step.Operation, k step.Cont) {
	op.Completable.Run(
		func(value interface{}) { ip.ResumeValue(ctx, value, k) },
		func(err error) { ip.ResumeError(ctx, err) },
	)
}

// runScheduled discharges a priority-aware external boundary call,
// propagating ctx's current qos and serial so the subsystem can order its
// own work consistently with the engine.
func (ip *Interpreter) runScheduled(ctx *reqctx.Context, op step.Operation, k step.Cont) {
	op.Scheduled.Run(
		ctx.Qos, ctx.Serial,
		func(value interface{}) { ip.ResumeValue(ctx, value, k) },
		func(err error) { ip.ResumeError(ctx, err) },
	)
}

// ResumeValue hands ctx back to the queue with k(value) as its next step.
// Called by ioadapt on a completed body read and by external-boundary
// success callbacks. A boundary that calls back synchronously runs it on
// the worker that suspended ctx, inside Run; Run returns right after the
// hand-off without touching ctx again.
func (ip *Interpreter) ResumeValue(ctx *reqctx.Context, value interface{}, k step.Cont) {
	ctx.SetNextSteps(step.Resume(value, k))
	ip.Queue.Push(ctx)
}

// ResumeError hands ctx back to the queue with a Raise(err) as its next
// step, so error shaping happens on a worker rather than on whatever
// thread the failure was observed on.
func (ip *Interpreter) ResumeError(ctx *reqctx.Context, err error) {
	ctx.SetNextSteps(step.Suspend(step.Operation{Kind: step.Raise, Err: err}, discard))
	ip.Queue.Push(ctx)
}

func discard(interface{}) step.Step { return step.Done(nil) }

// RaiseInternalError shapes err into a response via the Sensor and the
// Negotiator, falling back to a bare 500 if either of those themselves
// fail, and finishes ctx with whatever response results.
func (ip *Interpreter) RaiseInternalError(ctx *reqctx.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			ip.Sensor.InvisibleError(ctx.Serial, fmt.Errorf("error shaping failed: %v", r))
			ip.Output(ctx, qoserrors.BareInternalError())
		}
	}()
	id := ip.Sensor.InternalError(ctx.Serial, err)
	resp := ip.Negotiator.InternalError(acceptHeaders(ctx), id)
	ip.Output(ctx, resp)
}

// RaiseSizeTooLarge shapes a byte-length-exceeded failure into a response
// without involving the Sensor: an oversized body is a user-caused,
// non-invisible failure, not an operational one.
func (ip *Interpreter) RaiseSizeTooLarge(ctx *reqctx.Context, limit int) {
	resp := ip.Negotiator.ByteLengthExceeded(acceptHeaders(ctx), limit)
	ip.Output(ctx, resp)
}

func acceptHeaders(ctx *reqctx.Context) []string {
	if ctx.BaseRequest == nil {
		return nil
	}
	if v, ok := ctx.BaseRequest.Header("Accept"); ok {
		return []string{v}
	}
	return nil
}

func panicToError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
