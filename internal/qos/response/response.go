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

// Package response defines the value a handler coroutine ultimately produces.
package response

// Cookie mirrors the subset of http.Cookie fields the output adapter copies
// onto the outbound HTTP response.
type Cookie struct {
	Name     string
	Value    string
	MaxAge   *int
	Path     *string
	Secure   *bool
	HTTPOnly *bool
}

// Header is a single outgoing response header, kept as a pair rather than a
// map so that repeated names are appended in call order (see AddHeaders).
type Header struct {
	Name  string
	Value string
}

// Response is the final value of a request-handling coroutine.
type Response struct {
	StatusCode int
	Headers    []Header
	Body       []byte
}

// NewResponse builds a Response with the given status and body and no
// additional headers.
func NewResponse(statusCode int, body []byte) *Response {
	return &Response{StatusCode: statusCode, Body: body}
}

// AddHeader appends a header, preserving the order in which it was added
// relative to any other header already present.
func (r *Response) AddHeader(name, value string) {
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
}
