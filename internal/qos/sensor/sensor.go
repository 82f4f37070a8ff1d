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

// Package sensor defines the capability the engine reports error events to,
// and a default zap-backed implementation grounded on
// internal/observability's call-level logging: one *zap.Logger threaded in
// at construction (never a package-level global), structured fields rather
// than formatted strings, and a correlation id on every internal error so
// an operator can join a user-visible id back to the log line that explains
// it.
package sensor

import (
	"go.uber.org/yarpc/internal/qos/errors"
	"go.uber.org/zap"

	"github.com/google/uuid"
)

// Sensor is the capability the engine produces error events to. It is
// expected to be thread-safe: internalError and invisibleError are called
// from worker goroutines and from the I/O adapters' goroutines,
// genericError from the worker loop.
type Sensor interface {
	// InternalError reports an error the application or the engine raised
	// while serving requestID and returns a correlation id safe to surface
	// to the caller.
	InternalError(requestID uint64, err error) string
	// InvisibleError reports an error that must not change what the caller
	// observes (a failed response write, a failing cleaner). The default
	// Zap implementation logs it at Warn level without a correlation id.
	InvisibleError(requestID uint64, err error)
	// GenericError reports an error with no associated request, such as a
	// worker loop recovering from a panic.
	GenericError(err error)
}

// Zap is the default Sensor, logging through a *zap.Logger exactly as
// internal/observability's call type logs RPC edges: one structured Warn
// or Error per event, never a bare fmt.Print.
type Zap struct {
	log *zap.Logger
}

// New builds a Zap sensor logging through log.
func New(log *zap.Logger) *Zap {
	if log == nil {
		log = zap.NewNop()
	}
	return &Zap{log: log}
}

// InternalError logs err at Error level tagged with a fresh correlation id
// and the Code the engine's typed error carries, and returns that id.
func (s *Zap) InternalError(requestID uint64, err error) string {
	id := uuid.New().String()
	s.log.Error("internal error serving request",
		zap.Uint64("requestID", requestID),
		zap.String("correlationID", id),
		zap.Stringer("code", errors.CodeOf(err)),
		zap.Error(err),
	)
	return id
}

// InvisibleError logs err at Warn level: the caller already has (or will
// get) a response, so this is purely an operator-facing signal.
func (s *Zap) InvisibleError(requestID uint64, err error) {
	s.log.Warn("invisible error serving request",
		zap.Uint64("requestID", requestID),
		zap.Error(err),
	)
}

// GenericError logs err at Error level with no request context.
func (s *Zap) GenericError(err error) {
	s.log.Error("unhandled error in qos engine worker", zap.Error(err))
}
