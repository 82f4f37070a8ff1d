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

// Package qosengine is the public facade over internal/qos: a QoS-aware HTTP
// request execution engine backed by a fixed worker pool draining a
// priority queue, where each request's handler is a suspendable computation
// over Ctx rather than a plain net/http.HandlerFunc.
//
// A Handler suspends by returning a Step built from one of the functions in
// ops.go (GetQos, ReadBody, AddCleaner, Abort, ...); the engine resumes it
// with the suspended operation's result, possibly after re-queueing the
// request by priority or handing it off to asynchronous I/O. See
// internal/qos/step for the shape of Step and internal/qos/interp for how it
// is driven.
package qosengine
