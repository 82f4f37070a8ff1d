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

// Package ioadapt implements the engine's asynchronous body-read and
// response-write adapters. Both run the blocking net/http stream calls on
// their own goroutine rather than a worker, so a slow client can never tie
// up a worker slot; the request is handed back to the pool (via
// interp.Interpreter.ResumeValue/ResumeError) only once the I/O finishes.
// This is the Go-idiomatic stand-in for callback-driven NIO streams:
// spawning a goroutine per in-flight read/write is what transport/http's
// own server already does for the accept loop, and it gives the same
// "does not block a worker" property without needing a separate reactor.
package ioadapt

import (
	"io"

	"go.uber.org/yarpc/internal/qos/interp"
	"go.uber.org/yarpc/internal/qos/reqctx"
	"go.uber.org/yarpc/internal/qos/step"
)

const readChunkSize = 4096

// Input is the InputFunc collaborator wired into interp.Interpreter.
type Input struct {
	interp *interp.Interpreter
}

// NewInput builds an Input adapter that resumes requests through ip.
func NewInput(ip *interp.Interpreter) *Input {
	return &Input{interp: ip}
}

// Start implements interp.InputFunc: on a dedicated goroutine it reads
// ctx's body in readChunkSize chunks until EOF, an I/O error, or more than
// limit bytes have arrived, and resumes the interpreter with the result.
func (in *Input) Start(ctx *reqctx.Context, limit int, k step.Cont) {
	go in.read(ctx, limit, k)
}

func (in *Input) read(ctx *reqctx.Context, limit int, k step.Cont) {
	body := ctx.BaseRequest.Body()
	if body == nil || limit <= 0 {
		in.interp.ResumeValue(ctx, []byte{}, k)
		return
	}

	buf := make([]byte, 0, limit)
	chunk := make([]byte, readChunkSize)
	remaining := limit

	for {
		n, err := body.Read(chunk)
		if n > 0 {
			remaining -= n
			if remaining < 0 {
				in.interp.RaiseSizeTooLarge(ctx, limit)
				return
			}
			buf = append(buf, chunk[:n]...)
		}
		if err == io.EOF {
			in.interp.ResumeValue(ctx, buf, k)
			return
		}
		if err != nil {
			in.interp.ResumeError(ctx, err)
			return
		}
	}
}
