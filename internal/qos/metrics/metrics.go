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

// Package metrics wires the engine's activeRequestCount, liveRequestCount and
// queuedRequestCount gauges, a per-error-kind counter and a request-latency
// histogram onto a go.uber.org/net/metrics Scope, the same facade
// internal/observability registers dispatcher-level call metrics against
// (see internal/observability/public.go and middleware.go). A nil Scope is
// accepted everywhere and turns every method into a no-op, matching
// registerHeaderMetrics' own "m == nil" guard.
package metrics

import (
	"time"

	"go.uber.org/net/metrics"

	qoserrors "go.uber.org/yarpc/internal/qos/errors"
)

// Metrics is the set of gauges/counters/histogram the engine reports through.
type Metrics struct {
	active    *metrics.Gauge
	live      *metrics.Gauge
	queued    *metrics.Gauge
	errors    *metrics.CounterVector
	latencies *metrics.Histogram
}

// New registers the engine's metrics against scope. scope may be nil, in
// which case every recorded value is simply discarded.
func New(scope *metrics.Scope) *Metrics {
	m := &Metrics{}
	if scope == nil {
		return m
	}

	m.active, _ = scope.Gauge(metrics.Spec{
		Name: "qos_active_requests",
		Help: "Number of requests admitted and not yet complete.",
	})
	m.live, _ = scope.Gauge(metrics.Spec{
		Name: "qos_live_requests",
		Help: "Number of requests currently executing inside the interpreter.",
	})
	m.queued, _ = scope.Gauge(metrics.Spec{
		Name: "qos_queued_requests",
		Help: "Number of requests waiting in the priority queue.",
	})
	m.errors, _ = scope.CounterVector(metrics.Spec{
		Name:      "qos_errors",
		Help:      "Total number of errors reported by the engine, by code.",
		VarTags:   []string{"code"},
		ConstTags: map[string]string{"component": "qos-engine"},
	})
	m.latencies, _ = scope.Histogram(metrics.HistogramSpec{
		Spec: metrics.Spec{
			Name: "qos_request_latency_ms",
			Help: "Request latency from admission to response completion.",
		},
		Unit:    time.Millisecond,
		Buckets: []int64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})
	return m
}

// SetActiveRequestCount records the current activeRequestCount gauge.
func (m *Metrics) SetActiveRequestCount(n int) {
	if m.active != nil {
		m.active.Store(int64(n))
	}
}

// SetLiveRequestCount records the current liveRequestCount gauge.
func (m *Metrics) SetLiveRequestCount(n int) {
	if m.live != nil {
		m.live.Store(int64(n))
	}
}

// SetQueuedRequestCount records the current queuedRequestCount gauge.
func (m *Metrics) SetQueuedRequestCount(n int) {
	if m.queued != nil {
		m.queued.Store(int64(n))
	}
}

// IncError increments the counter for one error of the given code.
func (m *Metrics) IncError(code qoserrors.Code) {
	if m.errors == nil {
		return
	}
	if c, err := m.errors.Get("code", code.String()); c != nil && err == nil {
		c.Inc()
	}
}

// ObserveLatency records the time from admission to response completion.
func (m *Metrics) ObserveLatency(d time.Duration) {
	if m.latencies != nil {
		m.latencies.Observe(int64(d / time.Millisecond))
	}
}
