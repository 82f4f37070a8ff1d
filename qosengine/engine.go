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
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"go.uber.org/yarpc/internal/qos/control"
	qoserrors "go.uber.org/yarpc/internal/qos/errors"
	"go.uber.org/yarpc/internal/qos/interp"
	"go.uber.org/yarpc/internal/qos/ioadapt"
	qmetrics "go.uber.org/yarpc/internal/qos/metrics"
	"go.uber.org/yarpc/internal/qos/pool"
	"go.uber.org/yarpc/internal/qos/queue"
	"go.uber.org/yarpc/internal/qos/reqctx"
	"go.uber.org/yarpc/internal/qos/response"
	qossensor "go.uber.org/yarpc/internal/qos/sensor"
)

const sampleInterval = 250 * time.Millisecond

// Engine is the QoS-aware HTTP request execution engine: a fixed worker
// pool draining a priority queue of in-flight requests, each running a
// Handler as a suspendable coroutine.
type Engine struct {
	handler      Handler
	queue        *queue.Queue
	control      *control.Control
	interpreter  *interp.Interpreter
	pool         *pool.Pool
	metrics      *qmetrics.Metrics
	log          *zap.Logger
	defaultQos   interface{}
	knownMethods map[string]struct{}

	serial atomic.Uint64

	stopOnce sync.Once
	sampleWg sync.WaitGroup
	stopSamp chan struct{}
}

// New builds and starts an Engine that runs handler for every admitted
// request. The worker pool is started before New returns.
func New(handler Handler, opts ...Option) (*Engine, error) {
	o := defaultOptions
	for _, opt := range opts {
		opt.apply(&o)
	}

	log := o.logger
	if log == nil {
		log = zap.NewNop()
	}
	negotiator := o.errors
	if negotiator == nil {
		negotiator = PlainTextNegotiator{}
	}
	sen := o.sensor
	if sen == nil {
		sen = qossensor.New(log)
	}
	met := qmetrics.New(o.meter)
	sen = &meteredSensor{Sensor: sen, metrics: met}

	q := queue.New(o.less, 64)
	ctrl := control.New()
	ip := &interp.Interpreter{Queue: q, Sensor: sen, Negotiator: negotiator}
	out := ioadapt.NewOutput(sen, ctrl)
	ip.Output = func(ctx *reqctx.Context, resp *response.Response) {
		if !ctx.AdmittedAt.IsZero() {
			// Registered last, so it is the first cleaner drained once the
			// response has been written and completed.
			admittedAt := ctx.AdmittedAt
			ctx.Cleaner.Register(func() { met.ObserveLatency(time.Since(admittedAt)) })
		}
		out.Start(ctx, resp)
	}
	ip.Input = ioadapt.NewInput(ip).Start

	p := pool.New(o.workers, q, ctrl, ip, log)

	e := &Engine{
		handler:      handler,
		queue:        q,
		control:      ctrl,
		interpreter:  ip,
		pool:         p,
		metrics:      met,
		log:          log,
		defaultQos:   o.defaultQos,
		knownMethods: o.knownMethods,
		stopSamp:     make(chan struct{}),
	}

	p.Start()
	e.sampleWg.Add(1)
	go e.sampleMetrics()

	return e, nil
}

// Handler returns an http.Handler that admits each request into the
// engine. The returned handler blocks until the request's response has
// been completely written, since net/http requires the serving goroutine
// to keep the ResponseWriter alive for that long; the engine's own worker
// pool processes the request concurrently with other admitted work.
func (e *Engine) Handler() http.Handler {
	return http.HandlerFunc(e.serveHTTP)
}

func (e *Engine) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if !e.control.ShouldProcessRequest() {
		resp := serviceUnavailable()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
		return
	}

	rw := newHTTPResponseWriter(w)
	path := splitPath(r.URL.Path)
	rc := &reqctx.Context{
		BaseRequest:   &httpRequest{r: r, rw: rw},
		Serial:        e.serial.Inc(),
		Qos:           e.defaultQos,
		InitialPath:   path,
		EffectivePath: path,
		AdmittedAt:    time.Now(),
	}
	rc.SetNextSteps(e.handler(newCtx(rc, e.knownMethods)))

	e.queue.Push(rc)
	<-rw.done
}

// ActiveRequestCount is the number of requests admitted and not yet
// complete (control.Control.ActiveRequestCount).
func (e *Engine) ActiveRequestCount() int { return e.control.ActiveRequestCount() }

// LiveRequestCount is the number of workers currently executing the
// interpreter.
func (e *Engine) LiveRequestCount() int { return e.pool.LiveRequestCount() }

// QueuedRequestCount is the current priority queue size.
func (e *Engine) QueuedRequestCount() int { return e.queue.Len() }

func (e *Engine) sampleMetrics() {
	defer e.sampleWg.Done()
	t := time.NewTicker(sampleInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			e.metrics.SetActiveRequestCount(e.ActiveRequestCount())
			e.metrics.SetLiveRequestCount(e.LiveRequestCount())
			e.metrics.SetQueuedRequestCount(e.QueuedRequestCount())
		case <-e.stopSamp:
			return
		}
	}
}

// Stop requests termination (closing admission to new requests), waits for
// every already-admitted request to finish, then joins every worker
// goroutine. It is safe to call more than once; only the first call does
// anything. ctx is not consulted: Stop always waits until every
// already-admitted request has run to completion, since the engine has no
// per-request cancellation.
func (e *Engine) Stop(ctx context.Context) error {
	var err error
	e.stopOnce.Do(func() {
		err = e.pool.Stop()
		close(e.stopSamp)
		e.sampleWg.Wait()
	})
	return err
}

// meteredSensor decorates a Sensor with the errors counter, tagging every
// internal or generic error by its qoserrors.Code before delegating to the
// wrapped Sensor for logging.
type meteredSensor struct {
	qossensor.Sensor
	metrics *qmetrics.Metrics
}

func (s *meteredSensor) InternalError(requestID uint64, err error) string {
	s.metrics.IncError(qoserrors.CodeOf(err))
	return s.Sensor.InternalError(requestID, err)
}

func (s *meteredSensor) GenericError(err error) {
	s.metrics.IncError(qoserrors.CodeOf(err))
	s.Sensor.GenericError(err)
}
