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
	"go.uber.org/net/metrics"
	"go.uber.org/zap"

	qoserrors "go.uber.org/yarpc/internal/qos/errors"
)

var defaultOptions = options{
	workers:    8,
	defaultQos: 0,
	less:       func(a, b interface{}) bool { return a.(int) < b.(int) },
	knownMethods: map[string]struct{}{
		"GET": {}, "POST": {}, "PUT": {}, "PATCH": {}, "DELETE": {}, "HEAD": {},
	},
}

type options struct {
	workers      int
	defaultQos   interface{}
	less         func(a, b interface{}) bool
	knownMethods map[string]struct{}
	logger       *zap.Logger
	meter        *metrics.Scope
	sensor       Sensor
	errors       qoserrors.Negotiator
}

// Option configures a qosengine.Engine (see New).
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// Workers overrides the number of worker goroutines draining the priority
// queue. The default is 8.
func Workers(n int) Option {
	return optionFunc(func(o *options) { o.workers = n })
}

// DefaultQos overrides the priority assigned to every request on admission.
// The default is 0.
func DefaultQos(qos interface{}) Option {
	return optionFunc(func(o *options) { o.defaultQos = qos })
}

// QosOrder overrides the total order over the engine's Qos type: less(a, b)
// reports whether a is strictly higher priority than b. The default treats
// Qos as an int, lower value meaning higher priority.
func QosOrder(less func(a, b interface{}) bool) Option {
	return optionFunc(func(o *options) { o.less = less })
}

// KnownMethods overrides the set of HTTP methods the routing fallback
// recognizes when no Path match consumes the request.
func KnownMethods(methods ...string) Option {
	return optionFunc(func(o *options) {
		m := make(map[string]struct{}, len(methods))
		for _, name := range methods {
			m[name] = struct{}{}
		}
		o.knownMethods = m
	})
}

// Logger overrides the structured logger the engine and its worker pool log
// through. The default is a no-op logger.
func Logger(log *zap.Logger) Option {
	return optionFunc(func(o *options) { o.logger = log })
}

// Meter overrides the metrics scope activeRequestCount, liveRequestCount,
// queuedRequestCount, per-error-kind counters and the request latency
// histogram are registered against. The default records nothing.
func Meter(scope *metrics.Scope) Option {
	return optionFunc(func(o *options) { o.meter = scope })
}

// WithSensor overrides the Sensor error events are reported to. The default
// is a zap-backed Sensor logging through the configured Logger.
func WithSensor(sensor Sensor) Option {
	return optionFunc(func(o *options) { o.sensor = sensor })
}

// WithErrors overrides the Negotiator used to render error responses
// negotiated against a request's Accept headers. The default renders plain
// text.
func WithErrors(negotiator qoserrors.Negotiator) Option {
	return optionFunc(func(o *options) { o.errors = negotiator })
}
