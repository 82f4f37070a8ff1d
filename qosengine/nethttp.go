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

// nethttp.go adapts net/http onto reqctx.Request/ResponseWriter -- the one
// concrete embedding HTTP server binding the core engine deliberately stays
// independent of. It is grounded on transport/http/handler.go's own
// responseWriter adapter, minus tracing/span machinery that belongs to
// yarpc's dispatcher, not this engine.
package qosengine

import (
	"io"
	"net/http"
	"strings"

	"go.uber.org/yarpc/internal/qos/reqctx"
	"go.uber.org/yarpc/internal/qos/response"
)

// httpRequest adapts an inbound *http.Request and its http.ResponseWriter
// into a reqctx.Request. The request's routing parameters are supplied
// externally (e.g. by a router wrapping Engine.Handler) since the routing
// DSL itself is out of scope here; absent that, Param/ParamNames simply
// report nothing.
type httpRequest struct {
	r      *http.Request
	params map[string]string
	rw     *httpResponseWriter
}

func (h *httpRequest) Method() string { return h.r.Method }

func (h *httpRequest) Header(name string) (string, bool) {
	values, ok := h.r.Header[http.CanonicalHeaderKey(name)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (h *httpRequest) HeaderNames() []string {
	names := make([]string, 0, len(h.r.Header))
	for name := range h.r.Header {
		names = append(names, name)
	}
	return names
}

func (h *httpRequest) Cookie(name string) (string, bool) {
	c, err := h.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (h *httpRequest) Param(name string) (string, bool) {
	v, ok := h.params[name]
	return v, ok
}

func (h *httpRequest) ParamNames() []string {
	names := make([]string, 0, len(h.params))
	for name := range h.params {
		names = append(names, name)
	}
	return names
}

func (h *httpRequest) Body() io.Reader { return h.r.Body }

func (h *httpRequest) ResponseWriter() reqctx.ResponseWriter { return h.rw }

// httpResponseWriter adapts http.ResponseWriter into reqctx.ResponseWriter.
// done is closed exactly once, by Complete, to release the blocked
// ServeHTTP goroutine -- net/http requires the handler goroutine itself to
// keep the response alive until every write has happened, which is the one
// place this adapter must bridge the engine's asynchronous worker model
// back into net/http's synchronous handler contract.
type httpResponseWriter struct {
	w           http.ResponseWriter
	wroteHeader bool
	status      int
	done        chan struct{}
}

func newHTTPResponseWriter(w http.ResponseWriter) *httpResponseWriter {
	return &httpResponseWriter{w: w, status: http.StatusOK, done: make(chan struct{})}
}

func (rw *httpResponseWriter) SetStatusCode(code int) { rw.status = code }

func (rw *httpResponseWriter) AddHeader(name, value string) {
	rw.w.Header().Add(name, value)
}

func (rw *httpResponseWriter) SetCookie(c response.Cookie) {
	cookie := &http.Cookie{Name: c.Name, Value: c.Value}
	if c.MaxAge != nil {
		cookie.MaxAge = *c.MaxAge
	}
	if c.Path != nil {
		cookie.Path = *c.Path
	}
	if c.Secure != nil {
		cookie.Secure = *c.Secure
	}
	if c.HTTPOnly != nil {
		cookie.HttpOnly = *c.HTTPOnly
	}
	http.SetCookie(rw.w, cookie)
}

func (rw *httpResponseWriter) Write(p []byte) (int, error) {
	if !rw.wroteHeader {
		rw.w.WriteHeader(rw.status)
		rw.wroteHeader = true
	}
	return rw.w.Write(p)
}

func (rw *httpResponseWriter) Complete() {
	if !rw.wroteHeader {
		rw.w.WriteHeader(rw.status)
		rw.wroteHeader = true
	}
	close(rw.done)
}

// splitPath splits an HTTP request path into routing segments, dropping the
// leading and any trailing empty segment so "/", "/a/b", and "/a/b/" all
// behave predictably as InitialPath/EffectivePath.
func splitPath(p string) []string {
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
