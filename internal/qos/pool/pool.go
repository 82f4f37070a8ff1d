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

// Package pool implements the fixed-size worker pool draining the priority
// queue, grounded on middleware/x/inboundbuffermiddleware.Buffer's own
// Start/Stop/worker-goroutine lifecycle: Start spawns the workers, each
// one loops on a blocking dequeue, and Stop is a
// two-phase shutdown (close the admission gate, then wake every blocked
// worker with a sentinel) rather than a context cancellation, since a
// worker's blocking Pop has no way to observe a context being done.
package pool

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"go.uber.org/yarpc/internal/qos/control"
	"go.uber.org/yarpc/internal/qos/interp"
	"go.uber.org/yarpc/internal/qos/queue"
	"go.uber.org/yarpc/internal/qos/reqctx"
)

// Pool is the fixed set of worker goroutines that drain Queue and run the
// interpreter over each dequeued context.
type Pool struct {
	queue   *queue.Queue
	control *control.Control
	interp  *interp.Interpreter
	log     *zap.Logger

	workers      int
	live         atomic.Int64
	wg           sync.WaitGroup
	poisonSerial atomic.Uint64
}

// New builds a Pool of the given worker count. Start must be called to
// actually spawn the worker goroutines.
func New(workers int, q *queue.Queue, ctrl *control.Control, ip *interp.Interpreter, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		queue:   q,
		control: ctrl,
		interp:  ip,
		log:     log,
		workers: workers,
	}
}

// Start spawns the worker goroutines. It must be called exactly once.
func (p *Pool) Start() {
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.loop(i)
	}
	p.log.Debug("qos worker pool started", zap.Int("workers", p.workers))
}

// Stop requests termination (closing admission), waits for every already
// admitted request to finish, then wakes and joins every worker goroutine
// by pushing one poison context per worker -- the number of workers is
// known, so this is unambiguous regardless of how many are currently
// blocked in Pop versus mid-request.
func (p *Pool) Stop() error {
	p.control.RequestTermination()
	if err := p.control.AwaitTermination(); err != nil {
		return err
	}
	for i := 0; i < p.workers; i++ {
		p.queue.PushPoison(&reqctx.Context{Serial: p.poisonSerial.Inc()})
	}
	p.wg.Wait()
	p.log.Debug("qos worker pool stopped")
	return nil
}

// LiveRequestCount returns the number of workers currently executing the
// interpreter (as opposed to blocked in Pop), backing the engine's
// liveRequestCount metric.
func (p *Pool) LiveRequestCount() int {
	return int(p.live.Load())
}

func (p *Pool) loop(id int) {
	defer p.wg.Done()
	for {
		ctx := p.queue.Pop()
		if ctx.IsPoison() {
			return
		}
		p.live.Inc()
		p.runOne(ctx)
		p.live.Dec()
	}
}

func (p *Pool) runOne(ctx *reqctx.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.interp.Sensor.GenericError(toError(r))
		}
	}()
	p.interp.Run(ctx)
}

func toError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic in qos worker: %v", r)
}
