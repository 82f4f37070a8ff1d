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

package interp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	qoserrors "go.uber.org/yarpc/internal/qos/errors"
	"go.uber.org/yarpc/internal/qos/reqctx"
	"go.uber.org/yarpc/internal/qos/response"
	"go.uber.org/yarpc/internal/qos/step"
)

type fakeQueue struct {
	pushed []*reqctx.Context
}

func (q *fakeQueue) Push(ctx *reqctx.Context) { q.pushed = append(q.pushed, ctx) }

type fakeSensor struct {
	internalErrors  []error
	invisibleErrors []error
	genericErrors   []error
}

func (s *fakeSensor) InternalError(requestID uint64, err error) string {
	s.internalErrors = append(s.internalErrors, err)
	return "correlation-id"
}

func (s *fakeSensor) InvisibleError(requestID uint64, err error) {
	s.invisibleErrors = append(s.invisibleErrors, err)
}

func (s *fakeSensor) GenericError(err error) {
	s.genericErrors = append(s.genericErrors, err)
}

type fakeNegotiator struct {
	internalErrorCalls int
	byteLimitCalls     int
}

func (n *fakeNegotiator) InternalError(acceptHeaders []string, correlationID string) *response.Response {
	n.internalErrorCalls++
	return response.NewResponse(500, []byte(correlationID))
}

func (n *fakeNegotiator) ByteLengthExceeded(acceptHeaders []string, limit int) *response.Response {
	n.byteLimitCalls++
	return response.NewResponse(413, nil)
}

func newTestInterp() (*Interpreter, *fakeQueue, *fakeSensor, *fakeNegotiator, *[]*response.Response) {
	q := &fakeQueue{}
	sen := &fakeSensor{}
	neg := &fakeNegotiator{}
	written := []*response.Response{}
	ip := &Interpreter{
		Queue:      q,
		Sensor:     sen,
		Negotiator: neg,
		Output: func(ctx *reqctx.Context, resp *response.Response) {
			written = append(written, resp)
		},
	}
	return ip, q, sen, neg, &written
}

func TestRunDrivesDoneStepToOutput(t *testing.T) {
	ip, _, _, _, written := newTestInterp()
	ctx := &reqctx.Context{Serial: 1}
	resp := response.NewResponse(200, []byte("ok"))
	ctx.SetNextSteps(step.Done(resp))

	ip.Run(ctx)

	assert.Len(t, *written, 1)
	assert.Same(t, resp, (*written)[0])
}

func TestRunRejectsNonResponseDoneValue(t *testing.T) {
	ip, _, sen, _, written := newTestInterp()
	ctx := &reqctx.Context{Serial: 1}
	ctx.SetNextSteps(step.Done("not a response"))

	ip.Run(ctx)

	assert.Len(t, sen.internalErrors, 1)
	assert.Len(t, *written, 1)
}

func TestRunHandlesAbort(t *testing.T) {
	ip, _, _, _, written := newTestInterp()
	ctx := &reqctx.Context{Serial: 1}
	resp := response.NewResponse(403, nil)
	ctx.SetNextSteps(step.Suspend(step.Operation{Kind: step.Abort, AbortResponse: resp}, step.Done))

	ip.Run(ctx)

	assert.Same(t, resp, (*written)[0])
}

func TestRunHandlesRaiseViaNegotiator(t *testing.T) {
	ip, _, sen, neg, written := newTestInterp()
	ctx := &reqctx.Context{Serial: 9}
	cause := errors.New("boom")
	ctx.SetNextSteps(step.Suspend(step.Operation{Kind: step.Raise, Err: cause}, step.Done))

	ip.Run(ctx)

	assert.Equal(t, []error{cause}, sen.internalErrors)
	assert.Equal(t, 1, neg.internalErrorCalls)
	assert.Len(t, *written, 1)
}

func TestRunContextOperationContinuesInSameWorker(t *testing.T) {
	ip, q, _, _, written := newTestInterp()
	ctx := &reqctx.Context{Serial: 1, Qos: 7}
	ctx.SetNextSteps(step.Suspend(step.Operation{
		Kind:      step.ContextOperation,
		ContextFn: func(raw interface{}) interface{} { return raw.(*reqctx.Context).Qos },
	}, func(v interface{}) step.Step {
		assert.Equal(t, 7, v)
		return step.Done(response.NewResponse(200, nil))
	}))

	ip.Run(ctx)

	assert.Len(t, *written, 1)
	assert.Empty(t, q.pushed, "a pure context operation must not touch the queue")
}

func TestRunSetQosMutatesAndRequeues(t *testing.T) {
	ip, q, _, _, written := newTestInterp()
	ctx := &reqctx.Context{Serial: 1, Qos: 1}
	ctx.SetNextSteps(step.Suspend(step.Operation{Kind: step.SetQos, Qos: 5}, func(v interface{}) step.Step {
		return step.Done(response.NewResponse(200, nil))
	}))

	ip.Run(ctx)

	assert.Equal(t, 5, ctx.Qos)
	assert.Len(t, q.pushed, 1, "SetQos must re-enqueue rather than continue in-worker")
	assert.Empty(t, *written, "SetQos must not write a response itself")
}

func TestRunReadInputBytesDelegatesToInputFunc(t *testing.T) {
	ip, _, _, _, _ := newTestInterp()
	var gotLimit int
	var gotK step.Cont
	ip.Input = func(ctx *reqctx.Context, limit int, k step.Cont) {
		gotLimit = limit
		gotK = k
	}
	ctx := &reqctx.Context{Serial: 1}
	ctx.SetNextSteps(step.Suspend(step.Operation{Kind: step.ReadInputBytes, ReadLimit: 100}, step.Done))

	ip.Run(ctx)

	assert.Equal(t, 100, gotLimit)
	assert.NotNil(t, gotK)
}

func TestRunRecoversPanicFromHandler(t *testing.T) {
	ip, _, sen, _, written := newTestInterp()
	ctx := &reqctx.Context{Serial: 3}
	ctx.SetNextSteps(step.Suspend(step.Operation{
		Kind:      step.ContextOperation,
		ContextFn: func(interface{}) interface{} { panic("handler exploded") },
	}, step.Done))

	assert.NotPanics(t, func() { ip.Run(ctx) })
	assert.Len(t, sen.internalErrors, 1)
	assert.Len(t, *written, 1)
}

func TestRunFallsBackToBareResponseWhenNegotiatorPanics(t *testing.T) {
	ip, _, _, _, written := newTestInterp()
	ip.Negotiator = panicyNegotiator{}
	ctx := &reqctx.Context{Serial: 4}
	ctx.SetNextSteps(step.Suspend(step.Operation{Kind: step.Raise, Err: errors.New("x")}, step.Done))

	ip.Run(ctx)

	assert.Len(t, *written, 1)
	assert.Equal(t, 500, (*written)[0].StatusCode)
}

type panicyNegotiator struct{}

func (panicyNegotiator) InternalError([]string, string) *response.Response {
	panic("negotiator exploded")
}
func (panicyNegotiator) ByteLengthExceeded([]string, int) *response.Response {
	return response.NewResponse(413, nil)
}

func TestRunRunCompletableResumesOnSuccess(t *testing.T) {
	ip, q, _, _, _ := newTestInterp()
	ctx := &reqctx.Context{Serial: 1}
	ctx.SetNextSteps(step.Suspend(step.Operation{
		Kind: step.RunCompletable,
		Completable: step.Completable{
			Run: func(onSuccess func(interface{}), onFailure func(error)) {
				onSuccess("hello")
			},
		},
	}, func(v interface{}) step.Step { return step.Done(v) }))

	ip.Run(ctx)

	assert.Len(t, q.pushed, 1)
	assert.Same(t, ctx, q.pushed[0])
	resumed := ctx.TakeNextSteps()
	assert.True(t, resumed.IsDone())
	assert.Equal(t, "hello", resumed.Value())
}

func TestRunRunScheduledPropagatesQosAndSerial(t *testing.T) {
	ip, q, _, _, _ := newTestInterp()
	ctx := &reqctx.Context{Serial: 42, Qos: 3}
	var gotQos interface{}
	var gotSerial uint64
	ctx.SetNextSteps(step.Suspend(step.Operation{
		Kind: step.RunScheduled,
		Scheduled: step.Scheduled{
			Run: func(qos interface{}, serial uint64, onSuccess func(interface{}), onFailure func(error)) {
				gotQos = qos
				gotSerial = serial
				onSuccess(nil)
			},
		},
	}, step.Done))

	ip.Run(ctx)

	assert.Equal(t, 3, gotQos)
	assert.Equal(t, uint64(42), gotSerial)
	assert.Len(t, q.pushed, 1)
}

func TestResumeErrorRoutesThroughRaiseOnRequeue(t *testing.T) {
	ip, q, _, _, _ := newTestInterp()
	ctx := &reqctx.Context{Serial: 1}
	cause := errors.New("io failure")

	ip.ResumeError(ctx, cause)

	assert.Len(t, q.pushed, 1)
	resumed := ctx.TakeNextSteps()
	assert.False(t, resumed.IsDone())
	assert.Equal(t, step.Raise, resumed.Operation().Kind)
	assert.Equal(t, cause, resumed.Operation().Err)
}

func TestRaiseSizeTooLargeSkipsSensor(t *testing.T) {
	ip, _, sen, neg, written := newTestInterp()
	ctx := &reqctx.Context{Serial: 1}

	ip.RaiseSizeTooLarge(ctx, 1024)

	assert.Empty(t, sen.internalErrors, "a user-caused oversized body must not be reported as an internal error")
	assert.Equal(t, 1, neg.byteLimitCalls)
	assert.Len(t, *written, 1)
}

func TestCodeOfClassifiesByteLengthExceeded(t *testing.T) {
	err := qoserrors.ByteLengthExceeded(10)
	assert.Equal(t, qoserrors.CodeResourceExhausted, qoserrors.CodeOf(err))
}
