// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package xregistry

import (
	"bytes"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xregistry/package-registries/log"
)

// Pipeline wraps the route surface in the fixed middleware chain:
// trailing-slash normalization, $details stripping, content negotiation,
// conditional responses, CORS, authentication and request logging, in that
// order.
func Pipeline(next http.Handler, apiKey string, m *Metrics) http.Handler {
	h := requestLog(next, m)
	h = authenticate(h, apiKey)
	h = cors(h)
	h = conditional(h)
	h = negotiate(h)
	h = dollarDetails(h)
	h = trailingSlash(h)
	return h
}

// trailingSlash rewrites any path longer than "/" that ends in a slash to
// the slashless form, preserving the query string. The rewrite works on the
// raw path so percent-encoded identifiers survive untouched.
func trailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) > 1 && strings.HasSuffix(r.URL.Path, "/") {
			r.URL.Path = strings.TrimRight(r.URL.Path, "/")
			if r.URL.RawPath != "" {
				r.URL.RawPath = strings.TrimRight(r.URL.RawPath, "/")
			}
		}
		next.ServeHTTP(w, r)
	})
}

// dollarDetails strips the literal $details suffix from the path and marks
// the response.
func dollarDetails(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "$details") {
			r.URL.Path = strings.TrimSuffix(r.URL.Path, "$details")
			if r.URL.RawPath != "" {
				r.URL.RawPath = strings.TrimSuffix(r.URL.RawPath, "$details")
			}
			w.Header().Set("X-XRegistry-Details", "true")
		}
		next.ServeHTTP(w, r)
	})
}

// negotiate rejects Accept headers that exclude the xRegistry JSON media
// type. Browsers asking for text/html still get JSON.
func negotiate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept := r.Header.Get("Accept")
		if !acceptsJSON(accept) {
			WriteProblem(w, NewProblem(ErrNotAcceptable, r.URL.Path,
				"this endpoint only serves application/json"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func acceptsJSON(accept string) bool {
	if accept == "" {
		return true
	}
	for part := range strings.SplitSeq(accept, ",") {
		mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		switch strings.ToLower(strings.TrimSpace(mediaType)) {
		case "*/*", "text/html", "application/json", "application/*":
			return true
		}
	}
	return false
}

// bufferingWriter holds back the response so the conditional middleware can
// turn it into a 304 after the handler has produced the validators.
type bufferingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (b *bufferingWriter) WriteHeader(status int) { b.status = status }

func (b *bufferingWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// conditional intercepts successful GET responses and answers 304 when the
// client's validators still match, with identity headers only.
func conditional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		bw := &bufferingWriter{ResponseWriter: w}
		next.ServeHTTP(bw, r)
		if bw.status == 0 {
			bw.status = http.StatusOK
		}

		if bw.status == http.StatusOK && notModified(r, w.Header()) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.WriteHeader(bw.status)
		_, _ = w.Write(bw.body.Bytes())
	})
}

func notModified(r *http.Request, h http.Header) bool {
	if etag := h.Get("ETag"); etag != "" {
		if match := r.Header.Get("If-None-Match"); match != "" {
			for part := range strings.SplitSeq(match, ",") {
				if strings.TrimSpace(part) == etag || strings.TrimSpace(part) == "*" {
					return true
				}
			}
		}
	}
	if lastMod := h.Get("Last-Modified"); lastMod != "" {
		if since := r.Header.Get("If-Modified-Since"); since != "" {
			modTime, err1 := http.ParseTime(lastMod)
			sinceTime, err2 := http.ParseTime(since)
			if err1 == nil && err2 == nil && !modTime.After(sinceTime) {
				return true
			}
		}
	}
	return false
}

// cors answers preflight requests and allows any origin on reads.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Max-Age", "86400")
			h.Set("Access-Control-Expose-Headers", "Link")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Expose-Headers", "Link")
		next.ServeHTTP(w, r)
	})
}

// authenticate enforces bearer auth when an API key is configured. OPTIONS
// requests pass through, and /model stays reachable from loopback addresses
// so container health checks keep working without credentials.
func authenticate(next http.Handler, apiKey string) http.Handler {
	if apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/model") && isLoopback(r.RemoteAddr) {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token != apiKey {
			WriteProblem(w, NewProblem(ErrUnauthorized, r.URL.Path, "missing or invalid API key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// statusWriter records status and bytes for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusWriter) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusWriter) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.bytes += n
	return n, err
}

// requestLog attaches a request ID, propagates the W3C trace context and
// writes structured start/end log lines.
func requestLog(next http.Handler, m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-Id", reqID)
		if tp := r.Header.Get("traceparent"); tp != "" {
			w.Header().Set("traceparent", tp)
		}

		start := time.Now()
		log.Debugf("request start id=%s method=%s path=%s", reqID, r.Method, r.URL.Path)

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		elapsed := time.Since(start)
		log.Infof("request end id=%s method=%s path=%s status=%d bytes=%d duration=%s",
			reqID, r.Method, r.URL.Path, sw.status, sw.bytes, elapsed)
		if m != nil {
			m.Observe(r.Method, sw.status, elapsed)
		}
	})
}
