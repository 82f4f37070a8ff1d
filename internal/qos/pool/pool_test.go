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

package pool

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go.uber.org/yarpc/internal/qos/control"
	"go.uber.org/yarpc/internal/qos/interp"
	"go.uber.org/yarpc/internal/qos/queue"
	"go.uber.org/yarpc/internal/qos/reqctx"
	"go.uber.org/yarpc/internal/qos/response"
	"go.uber.org/yarpc/internal/qos/step"
)

type noopRequest struct{}

func (noopRequest) Method() string                   { return "GET" }
func (noopRequest) Header(string) (string, bool)     { return "", false }
func (noopRequest) HeaderNames() []string            { return nil }
func (noopRequest) Cookie(string) (string, bool)     { return "", false }
func (noopRequest) Param(string) (string, bool)      { return "", false }
func (noopRequest) ParamNames() []string             { return nil }
func (noopRequest) Body() io.Reader                  { return nil }
func (noopRequest) ResponseWriter() reqctx.ResponseWriter { return nil }

type recordingSensor struct {
	mu     sync.Mutex
	errors []error
}

func (s *recordingSensor) InternalError(uint64, error) string { return "" }
func (s *recordingSensor) InvisibleError(uint64, error)       {}
func (s *recordingSensor) GenericError(err error) {
	s.mu.Lock()
	s.errors = append(s.errors, err)
	s.mu.Unlock()
}

func intLess(a, b interface{}) bool { return a.(int) < b.(int) }

func newTestPool(workers int) (*Pool, *queue.Queue, *control.Control, *recordingSensor) {
	q := queue.New(intLess, 8)
	ctrl := control.New()
	sen := &recordingSensor{}
	ip := &interp.Interpreter{
		Queue:  q,
		Sensor: sen,
		Output: func(ctx *reqctx.Context, resp *response.Response) {
			ctrl.RequestComplete()
		},
	}
	p := New(workers, q, ctrl, ip, nil)
	return p, q, ctrl, sen
}

func TestPoolRunsAdmittedRequestsToCompletion(t *testing.T) {
	p, q, ctrl, _ := newTestPool(2)
	p.Start()

	const n = 20
	for i := 0; i < n; i++ {
		ctrl.ShouldProcessRequest()
		ctx := &reqctx.Context{BaseRequest: noopRequest{}, Serial: uint64(i)}
		ctx.SetNextSteps(step.Done(response.NewResponse(200, nil)))
		q.Push(ctx)
	}

	// Stop blocks until control's in-flight counter has drained, which only
	// happens once every pushed request has run through the interpreter.
	assert.NoError(t, p.Stop())
	assert.Equal(t, 0, ctrl.ActiveRequestCount())
}

func TestPoolStopJoinsEveryWorker(t *testing.T) {
	p, _, _, _ := newTestPool(4)
	p.Start()
	assert.NoError(t, p.Stop())
}

func TestPoolRecoversPanicFromInterpreterRun(t *testing.T) {
	q := queue.New(intLess, 8)
	ctrl := control.New()
	sen := &recordingSensor{}
	ip := &interp.Interpreter{Queue: q, Sensor: sen}
	p := New(1, q, ctrl, ip, nil)
	p.Start()

	ctrl.ShouldProcessRequest()
	ctx := &reqctx.Context{BaseRequest: noopRequest{}, Serial: 1}
	// A nil NextSteps makes TakeNextSteps panic (dereferencing a nil
	// *step.Step). Run's own recover tries to shape it, but this
	// interpreter has no Negotiator or Output, so shaping panics too and
	// runOne's recover must turn that into a GenericError report rather
	// than killing the worker goroutine.
	q.Push(ctx)
	// runOne does not finish a request whose run panicked, so the test
	// releases the admission itself before waiting for termination.
	ctrl.RequestComplete()

	ctrl.RequestTermination()
	assert.NoError(t, ctrl.AwaitTermination())
	assert.NoError(t, p.Stop())

	sen.mu.Lock()
	defer sen.mu.Unlock()
	assert.Len(t, sen.errors, 1)
}

func TestPoolLiveRequestCountTracksRunningWorkers(t *testing.T) {
	q := queue.New(intLess, 8)
	ctrl := control.New()
	sen := &recordingSensor{}
	started := make(chan struct{})
	release := make(chan struct{})
	ip := &interp.Interpreter{
		Queue:  q,
		Sensor: sen,
		Output: func(ctx *reqctx.Context, resp *response.Response) {
			close(started)
			<-release
			ctrl.RequestComplete()
		},
	}
	p := New(1, q, ctrl, ip, nil)
	p.Start()

	ctrl.ShouldProcessRequest()
	ctx := &reqctx.Context{BaseRequest: noopRequest{}, Serial: 1}
	ctx.SetNextSteps(step.Done(response.NewResponse(200, nil)))
	q.Push(ctx)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("worker never started processing")
	}
	assert.Equal(t, 1, p.LiveRequestCount())
	close(release)

	ctrl.RequestTermination()
	assert.NoError(t, ctrl.AwaitTermination())
	assert.NoError(t, p.Stop())
	assert.Equal(t, 0, p.LiveRequestCount())
}
