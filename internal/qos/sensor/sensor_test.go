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

package sensor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewDefaultsToNopLogger(t *testing.T) {
	s := New(nil)
	assert.NotPanics(t, func() { s.GenericError(errors.New("x")) })
}

func TestInternalErrorReturnsNonEmptyCorrelationID(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := New(zap.New(core))

	id := s.InternalError(7, errors.New("boom"))

	assert.NotEmpty(t, id)
	assert.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "internal error serving request", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, id, fields["correlationID"])
	assert.EqualValues(t, 7, fields["requestID"])
}

func TestInternalErrorReturnsDistinctIDsPerCall(t *testing.T) {
	s := New(zap.NewNop())
	id1 := s.InternalError(1, errors.New("a"))
	id2 := s.InternalError(1, errors.New("b"))
	assert.NotEqual(t, id1, id2)
}

func TestInvisibleErrorLogsAtWarnWithoutCorrelationID(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := New(zap.New(core))

	s.InvisibleError(3, errors.New("write failed"))

	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "invisible error serving request", logs.All()[0].Message)
}

func TestGenericErrorLogsWithoutRequestID(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := New(zap.New(core))

	s.GenericError(errors.New("worker panic"))

	assert.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "unhandled error in qos engine worker", entry.Message)
	_, hasRequestID := entry.ContextMap()["requestID"]
	assert.False(t, hasRequestID)
}
