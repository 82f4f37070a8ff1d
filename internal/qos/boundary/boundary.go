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

// Package boundary defines the two capabilities an external subsystem (a DB
// client, a cache, anything that completes asynchronously) implements to be
// called from a handler coroutine, and builds the Operation a handler
// suspends on to invoke one. The interpreter (internal/qos/interp) is the
// only thing that discharges these operations; this package only shapes
// them.
package boundary

import "go.uber.org/yarpc/internal/qos/step"

// Completable is a fire-and-resume external boundary: OnComplete must
// invoke exactly one of onSuccess or onFailure, exactly once, from any
// thread, possibly synchronously before OnComplete itself returns.
type Completable interface {
	OnComplete(onSuccess func(value interface{}), onFailure func(err error))
}

// Scheduled is a priority-aware external boundary: Apply receives the
// calling context's current qos and serial so the subsystem can order its
// own internal work consistently with the engine (lower ordinal is higher
// priority within a qos class). Apply must not invoke either callback on
// the calling goroutine.
type Scheduled interface {
	Apply(qos interface{}, ordinal uint64, onSuccess func(value interface{}), onFailure func(error))
}

// CompletableFunc adapts a plain function to Completable.
type CompletableFunc func(onSuccess func(value interface{}), onFailure func(err error))

// OnComplete implements Completable.
func (f CompletableFunc) OnComplete(onSuccess func(value interface{}), onFailure func(err error)) {
	f(onSuccess, onFailure)
}

// ScheduledFunc adapts a plain function to Scheduled.
type ScheduledFunc func(qos interface{}, ordinal uint64, onSuccess func(value interface{}), onFailure func(err error))

// Apply implements Scheduled.
func (f ScheduledFunc) Apply(qos interface{}, ordinal uint64, onSuccess func(value interface{}), onFailure func(err error)) {
	f(qos, ordinal, onSuccess, onFailure)
}

// RunCompletable builds the Operation a handler suspends on to run c and
// resume with its result.
func RunCompletable(c Completable) step.Operation {
	return step.Operation{
		Kind:        step.RunCompletable,
		Completable: step.Completable{Run: c.OnComplete},
	}
}

// RunScheduled builds the Operation a handler suspends on to run s,
// propagating the calling context's qos and serial.
func RunScheduled(s Scheduled) step.Operation {
	return step.Operation{
		Kind:      step.RunScheduled,
		Scheduled: step.Scheduled{Run: s.Apply},
	}
}
