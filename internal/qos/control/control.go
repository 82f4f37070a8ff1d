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

// Package control implements the engine's shutdown gate: a single counter
// that does double duty as an admission test and an in-flight-request
// tally, plus the condition variable that lets Stop() block until the
// tally has drained. The single-counter-plus-watermark trick is the only
// branch-free way to make ShouldProcessRequest simultaneously "increment"
// and "observe we are still open for business" as one atomic step; see
// middleware/x/inboundbuffermiddleware.Buffer.concurrency for the sibling
// pattern this is grounded on (an atomic.Int64 guarding admission under
// concurrent Start/Stop).
package control

import (
	"errors"
	"sync"

	"go.uber.org/atomic"
)

// watermark is a sentinel large enough that adding it to any plausible
// positive in-flight count still leaves the sum negative, so a single
// comparison (`inFlight < 0`) distinguishes "accepting requests" from
// "draining after Stop" without a second flag on the hot path.
const watermark = -(1 << 62)

// ErrNotStopping is returned by AwaitTermination when RequestTermination
// has not yet been called.
var ErrNotStopping = errors.New("control: awaitTermination called before requestTermination")

// Control is the shutdown gate and in-flight counter shared by every
// request admitted into one engine.
type Control struct {
	inFlight atomic.Int64
	stopping atomic.Bool

	mu sync.Mutex
	cv *sync.Cond
}

// New builds a Control ready to admit requests.
func New() *Control {
	c := &Control{}
	c.cv = sync.NewCond(&c.mu)
	return c
}

// ShouldProcessRequest attempts to admit one more request. It returns false
// once RequestTermination has been called. If termination lands between the
// load and the increment, the increment is undone through RequestComplete,
// so the counter still reaches watermark exactly once every admitted
// request has completed.
func (c *Control) ShouldProcessRequest() bool {
	if c.inFlight.Load() < 0 {
		return false
	}
	cnt := c.inFlight.Inc()
	if cnt > 0 {
		return true
	}
	c.RequestComplete()
	return false
}

// RequestTermination flips the gate closed exactly once; subsequent calls
// are no-ops. Every ShouldProcessRequest call from this point on observes
// inFlight < 0 and returns false.
func (c *Control) RequestTermination() {
	if !c.stopping.CAS(false, true) {
		return
	}
	c.inFlight.Add(watermark)
}

// RequestComplete records that one previously admitted request has
// finished. Once the gate is closed and every admitted request has
// completed, it wakes any goroutine blocked in AwaitTermination.
func (c *Control) RequestComplete() {
	cnt := c.inFlight.Dec()
	if cnt == watermark {
		c.mu.Lock()
		c.cv.Broadcast()
		c.mu.Unlock()
	}
}

// AwaitTermination blocks until every request admitted before
// RequestTermination was called has completed. It fails if
// RequestTermination has not been called yet.
func (c *Control) AwaitTermination() error {
	if !c.stopping.Load() {
		return ErrNotStopping
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.inFlight.Load() != watermark {
		c.cv.Wait()
	}
	return nil
}

// ActiveRequestCount returns the number of requests currently admitted and
// not yet completed, regardless of whether the gate is open or closed.
func (c *Control) ActiveRequestCount() int {
	n := c.inFlight.Load()
	if n >= 0 {
		return int(n)
	}
	return int(n - watermark)
}
