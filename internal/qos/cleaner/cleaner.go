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

// Package cleaner implements the per-request doubly linked list of cleanup
// closures that a handler registers to release resources on completion.
//
// The list is intrusive (List is itself the head/tail pointers; each Node
// is its own prev/next) rather than backed by container/list, because
// Unregister must be O(1) given only the Node returned from Register, and
// because the whole-context drain on finish needs LIFO order with no
// allocation on the hot path. It is mutated only by the worker currently
// holding the owning context, so it needs no locking.
package cleaner

// Node is one registered cleanup closure in a request's cleaner chain.
type Node struct {
	prev, next *Node
	fn         func()
	done       bool
}

// List is the head of a request's cleaner chain. The zero value is an
// empty list.
type List struct {
	head *Node
}

// Register pushes fn at the head of the list and returns the Node so the
// caller can Unregister it later (e.g. once the resource it guards has been
// released through some other path).
func (l *List) Register(fn func()) *Node {
	n := &Node{fn: fn, next: l.head}
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	return n
}

// Unregister removes n from the list without running its closure. It is
// idempotent: unregistering an already-run or already-unregistered node is
// a no-op.
func (l *List) Unregister(n *Node) {
	if n == nil || n.done {
		return
	}
	n.done = true
	if n.prev != nil {
		n.prev.next = n.next
	} else if l.head == n {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	n.prev, n.next = nil, nil
}

// PerformCleanup runs n's closure exactly once. The caller must have
// already unregistered n (or be draining the whole list via Drain), so
// PerformCleanup does not touch list structure.
func (n *Node) PerformCleanup() {
	if n.done {
		return
	}
	n.done = true
	n.fn()
	n.fn = nil
}

// Drain runs every registered cleanup from head (most recently registered)
// to tail (oldest), i.e. LIFO order, reporting any panic recovered from a
// cleanup via onError instead of letting it abort the remaining cleanups.
// The list is empty once Drain returns.
func (l *List) Drain(onError func(err error)) {
	for n := l.head; n != nil; {
		next := n.next
		n.prev, n.next = nil, nil
		runCleanup(n, onError)
		n = next
	}
	l.head = nil
}

func runCleanup(n *Node, onError func(err error)) {
	defer func() {
		if r := recover(); r != nil {
			if onError != nil {
				onError(panicToError(r))
			}
		}
	}()
	n.PerformCleanup()
}

func panicToError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &cleanupPanic{value: r}
}

type cleanupPanic struct {
	value interface{}
}

func (p *cleanupPanic) Error() string {
	return "cleaner panicked: " + formatPanic(p.value)
}

func formatPanic(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(interface{ Error() string }); ok {
		return s.Error()
	}
	return "non-error panic value"
}
