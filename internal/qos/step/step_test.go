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

package step

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDoneIsDone(t *testing.T) {
	s := Done(42)
	assert.True(t, s.IsDone())
	assert.Equal(t, 42, s.Value())
}

func TestSuspendIsNotDone(t *testing.T) {
	s := Suspend(Operation{Kind: Raise}, Done)
	assert.False(t, s.IsDone())
	assert.Equal(t, Raise, s.Operation().Kind)
}

func TestResumeCallsContinuationDirectly(t *testing.T) {
	called := false
	s := Resume(7, func(v interface{}) Step {
		called = true
		return Done(v.(int) * 2)
	})
	assert.True(t, called)
	assert.Equal(t, 14, s.Value())
}

func TestChainOnDoneStepResumesImmediately(t *testing.T) {
	inner := Done(1)
	out := Chain(inner, func(v interface{}) Step {
		return Done(v.(int) + 1)
	})
	assert.True(t, out.IsDone())
	assert.Equal(t, 2, out.Value())
}

func TestChainOnSuspendedStepPreservesOperationAndDefersContinuation(t *testing.T) {
	inner := Suspend(Operation{Kind: Raise}, func(v interface{}) Step {
		return Done(v.(int) + 1)
	})
	out := Chain(inner, func(v interface{}) Step {
		return Done(v.(int) * 10)
	})

	assert.False(t, out.IsDone())
	assert.Equal(t, Raise, out.Operation().Kind)

	resumed := out.Next()(5)
	assert.True(t, resumed.IsDone())
	assert.Equal(t, 60, resumed.Value())
}

func TestChainIsStackSafeForLongPipelines(t *testing.T) {
	// Build a deep chain of binds entirely from suspended steps, the way a
	// long handler pipeline of AddHeader/AddCleaner/etc. calls would, and
	// confirm a 10000-deep chain resumes to completion with the right value.
	const depth = 10000

	leaf := Suspend(Operation{Kind: Raise}, func(v interface{}) Step {
		return Done(v.(int))
	})

	chained := leaf
	for i := 0; i < depth; i++ {
		chained = Chain(chained, func(v interface{}) Step {
			return Done(v.(int) + 1)
		})
	}

	assert.False(t, chained.IsDone())
	result := chained.Next()(0)
	assert.True(t, result.IsDone())
	assert.Equal(t, depth, result.Value())
}

func TestOperationCarriesReadLimit(t *testing.T) {
	op := Operation{Kind: ReadInputBytes, ReadLimit: 1024}
	s := Suspend(op, Done)
	assert.Equal(t, 1024, s.Operation().ReadLimit)
}
