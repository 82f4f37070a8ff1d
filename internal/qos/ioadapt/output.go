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

package ioadapt

import (
	"go.uber.org/yarpc/internal/qos/control"
	"go.uber.org/yarpc/internal/qos/reqctx"
	"go.uber.org/yarpc/internal/qos/response"
	"go.uber.org/yarpc/internal/qos/sensor"
)

const writeChunkSize = 2048

// Output is the OutputFunc collaborator wired into interp.Interpreter. It
// writes the response on a dedicated goroutine, then finishes the request:
// notifies the adapter, drains cleaners, and decrements the in-flight
// counter exactly once per accepted request.
type Output struct {
	sensor  sensor.Sensor
	control *control.Control
}

// NewOutput builds an Output adapter that reports write failures through
// sen and decrements ctrl once each request finishes.
func NewOutput(sen sensor.Sensor, ctrl *control.Control) *Output {
	return &Output{sensor: sen, control: ctrl}
}

// Start implements interp.OutputFunc.
func (o *Output) Start(ctx *reqctx.Context, resp *response.Response) {
	go o.write(ctx, resp)
}

func (o *Output) write(ctx *reqctx.Context, resp *response.Response) {
	rw := ctx.BaseRequest.ResponseWriter()
	rw.SetStatusCode(resp.StatusCode)
	for _, h := range ctx.ExtraHeaders {
		rw.AddHeader(h.Name, h.Value)
	}
	for _, h := range resp.Headers {
		rw.AddHeader(h.Name, h.Value)
	}
	for _, c := range ctx.Cookies {
		rw.SetCookie(c)
	}

	if len(resp.Body) > 0 {
		for off := 0; off < len(resp.Body); off += writeChunkSize {
			end := off + writeChunkSize
			if end > len(resp.Body) {
				end = len(resp.Body)
			}
			if _, err := rw.Write(resp.Body[off:end]); err != nil {
				o.sensor.InvisibleError(ctx.Serial, err)
				break
			}
		}
	}

	o.finish(ctx, rw)
}

// finish notifies the adapter the response is complete, drains cleaners in
// LIFO order (a failing cleaner is reported but never stops the rest), and
// decrements the in-flight counter.
func (o *Output) finish(ctx *reqctx.Context, rw reqctx.ResponseWriter) {
	rw.Complete()
	ctx.Cleaner.Drain(func(err error) {
		o.sensor.InvisibleError(ctx.Serial, err)
	})
	o.control.RequestComplete()
}
