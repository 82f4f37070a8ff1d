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

// Package step models a handler's request-processing computation as a
// suspendable coroutine: a value already computed, or a pending Operation
// paired with a continuation that resumes once the operation's result is
// known. The interpreter (internal/qos/interp) drives one link of the chain
// at a time. Building a chain with Chain does not recurse, but resuming a
// Step built from n left-nested Chain calls nests n continuation calls on
// the Go call stack, so stack use grows with the nesting depth.
//
// Step is untyped (its resolved value is interface{}) rather than generic.
// The engine only ever drives one concrete instantiation end to end -- the
// per-request continuation, whose final value is always a
// *response.Response -- so nothing is lost by boxing; it is the same trick
// ContextFn and Completable/Scheduled results already rely on.
package step

import "go.uber.org/yarpc/internal/qos/response"

// Kind discriminates the variant carried by an Operation.
type Kind uint8

const (
	// Abort finishes the request immediately with the given response.
	Abort Kind = iota
	// ReadInputBytes suspends until up to ReadLimit bytes of the request body
	// have been read, or raises byteLengthExceeded.
	ReadInputBytes
	// SetQos changes the context's priority and yields the worker so a
	// higher-priority peer gets a chance to run first.
	SetQos
	// RunCompletable hands control to a fire-and-resume external subsystem.
	RunCompletable
	// RunScheduled hands control to a priority-aware external subsystem.
	RunScheduled
	// Raise routes an application error through the error-shaping path.
	Raise
	// ContextOperation runs a bounded, non-blocking function of the context
	// and resumes in the same worker with its result.
	ContextOperation
	// ComplexContextOperation is like ContextOperation, but the function
	// itself returns a further suspendable Step rather than a plain value.
	ComplexContextOperation
)

// Completable is a fire-and-resume external boundary call. Run must invoke
// exactly one of onSuccess or onFailure, exactly once, from any thread,
// possibly before Run itself returns.
type Completable struct {
	Run func(onSuccess func(value interface{}), onFailure func(err error))
}

// Scheduled is a priority-aware external boundary call. Run receives the
// context's current qos and serial so the external subsystem can order its
// own work consistently with the engine. Run must not execute on the
// calling thread.
type Scheduled struct {
	Run func(qos interface{}, serial uint64, onSuccess func(value interface{}), onFailure func(err error))
}

// Operation is the tagged variant an interpreter decodes at each suspension
// point. Ctx is passed as interface{} to avoid a cycle with reqctx; the
// interpreter is the only caller and always passes a *reqctx.Context.
type Operation struct {
	Kind Kind

	AbortResponse *response.Response
	ReadLimit     int
	Qos           interface{}
	Completable   Completable
	Scheduled     Scheduled
	Err           error
	ContextFn     func(ctx interface{}) interface{}
	ComplexFn     func(ctx interface{}) Step
}

// Cont resumes a suspended computation with the resolved value of the
// operation that suspended it.
type Cont func(value interface{}) Step

// Step is either a finished value, or an Operation paired with the
// continuation to run once that operation resolves.
type Step struct {
	done  bool
	value interface{}
	op    *Operation
	next  Cont
}

// Done builds a Step that has already produced its final value. For the
// per-request top-level Step, value is always a *response.Response; nested
// Steps produced by ComplexContextOperation may carry any type their
// continuation expects.
func Done(value interface{}) Step {
	return Step{done: true, value: value}
}

// Suspend builds a Step that is waiting on op, to be resumed with next.
func Suspend(op Operation, next Cont) Step {
	return Step{op: &op, next: next}
}

// Resume applies a continuation directly, without an intervening
// suspension. It is the Go-pragmatic stand-in for `pure(value).bind(k)`:
// since Step is always specialized to the handler's ultimate Response type,
// binding a pure value into a continuation is just calling it.
func Resume(value interface{}, k Cont) Step {
	return k(value)
}

// IsDone reports whether the Step already carries its final value.
func (s Step) IsDone() bool {
	return s.done
}

// Value returns the final value. Only valid when IsDone is true.
func (s Step) Value() interface{} {
	return s.value
}

// Operation returns the pending Operation. Only valid when IsDone is false.
func (s Step) Operation() Operation {
	return *s.op
}

// Next returns the continuation to resume once Operation resolves. Only
// valid when IsDone is false.
func (s Step) Next() Cont {
	return s.next
}

// Chain composes a Step[U] with a continuation U -> Step[T]: the `bind` of
// the design notes, implemented by chaining closures. Composing does not
// recurse; resuming the result calls each nested level's continuation in
// turn, one Go stack frame per level of nesting.
func Chain(inner Step, k Cont) Step {
	if inner.IsDone() {
		return Resume(inner.value, k)
	}
	innerNext := inner.next
	return Suspend(*inner.op, func(value interface{}) Step {
		return Chain(innerNext(value), k)
	})
}
