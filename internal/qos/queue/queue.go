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

// Package queue implements the engine's thread-safe priority queue of
// in-flight request contexts, ordered by (qos, serial) under a caller
// supplied total order over qos.
//
// middleware/x/inboundbuffermiddleware reimplements a heap by hand over
// parallel index arrays to avoid reflection and support O(1) eviction by
// entity index, but it does so for a *fixed-capacity* bounded buffer with
// eviction policies this engine's queue does not have: admission is gated
// upstream by the shutdown control, not by queue capacity, and this queue
// is meant to grow unbounded. container/heap is the idiomatic fit for an
// unbounded growable heap keyed by a caller-supplied order, so Queue wraps
// it instead of porting the array-heap; peer/pendingheap.heap and
// inboundbuffermiddleware/heap.go are the grounding for "min-heap ordered
// by (priority, tie-break)", not code reused as-is.
package queue

import (
	"container/heap"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/yarpc/internal/qos/reqctx"
)

// Less reports whether a has strictly higher priority than b under the
// caller's total order over the Qos type (smaller means higher priority,
// per the engine's convention).
type Less func(a, b interface{}) bool

// Queue is a thread-safe min-priority queue of *reqctx.Context.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items itemHeap
	less  Less
	size  atomic.Int64
}

type item struct {
	ctx     *reqctx.Context
	qos     interface{}
	serial  uint64
	poison  bool
	heapIdx int
}

// New builds an empty Queue ordered by less, with the given initial
// capacity hint (the heap grows past it as needed).
func New(less Less, capacityHint int) *Queue {
	q := &Queue{
		less:  less,
		items: make(itemHeap, 0, capacityHint),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues ctx, ordered by (ctx.Qos, ctx.Serial).
func (q *Queue) Push(ctx *reqctx.Context) {
	q.push(&item{ctx: ctx, qos: ctx.Qos, serial: ctx.Serial})
}

// PushPoison enqueues a sentinel that sorts ahead of every real request, so
// the next Pop returns it even if real work is still queued.
func (q *Queue) PushPoison(ctx *reqctx.Context) {
	q.push(&item{ctx: ctx, poison: true, serial: ctx.Serial})
}

func (q *Queue) push(it *item) {
	q.mu.Lock()
	heap.Push(&queueHeap{q}, it)
	q.mu.Unlock()
	q.size.Inc()
	q.cond.Signal()
}

// Pop blocks until a context is available and returns the highest-priority
// one. It never returns nil; the only way to unblock a worker for shutdown
// is to push a poison context (see PushPoison).
func (q *Queue) Pop() *reqctx.Context {
	q.mu.Lock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	it := heap.Pop(&queueHeap{q}).(*item)
	q.mu.Unlock()
	q.size.Dec()
	return it.ctx
}

// Len returns the current queue size (queuedRequestCount).
func (q *Queue) Len() int {
	return int(q.size.Load())
}

// higherPriority reports whether a must be dequeued before b: poison before
// real work, then by the caller's qos order, then by ascending serial.
func (q *Queue) higherPriority(a, b *item) bool {
	if a.poison != b.poison {
		return a.poison
	}
	if a.poison {
		return a.serial < b.serial
	}
	aLessB := q.less == nil || q.less(a.qos, b.qos)
	bLessA := q.less == nil || q.less(b.qos, a.qos)
	if aLessB != bLessA {
		return aLessB
	}
	return a.serial < b.serial
}

// itemHeap is the backing slice container/heap operates on directly.
type itemHeap []*item

func (h itemHeap) Len() int      { return len(h) }
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h itemHeap) Less(i, j int) bool {
	panic("itemHeap.Less must not be called directly; use queueHeap")
}

func (h *itemHeap) Push(x interface{}) {
	*h = append(*h, x.(*item))
}

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// queueHeap adapts Queue's caller-supplied ordering onto heap.Interface
// without making the ordering available to anyone who only holds the bare
// itemHeap slice.
type queueHeap struct {
	q *Queue
}

func (h *queueHeap) Len() int      { return len(h.q.items) }
func (h *queueHeap) Swap(i, j int) { h.q.items.Swap(i, j) }
func (h *queueHeap) Less(i, j int) bool {
	return h.q.higherPriority(h.q.items[i], h.q.items[j])
}
func (h *queueHeap) Push(x interface{}) { h.q.items.Push(x) }
func (h *queueHeap) Pop() interface{}   { return h.q.items.Pop() }
