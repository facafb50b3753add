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

// Package clienttest provides mock upstream servers for testing registry
// clients.
package clienttest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// MockHTTPServer is a mock upstream registry. Responses are registered per
// URL path; unregistered paths return 404.
type MockHTTPServer struct {
	// URL of the mock server, to be used as the registry endpoint.
	URL string

	mu        sync.RWMutex
	responses map[string][]byte
	hits      map[string]int
}

// NewMockHTTPServer starts a MockHTTPServer that is shut down when the test
// finishes.
func NewMockHTTPServer(t *testing.T) *MockHTTPServer {
	t.Helper()
	mock := &MockHTTPServer{
		responses: make(map[string][]byte),
		hits:      make(map[string]int),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		mock.mu.Lock()
		mock.hits[path]++
		resp, ok := mock.responses[path]
		mock.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(resp)
	}))
	t.Cleanup(srv.Close)
	mock.URL = srv.URL
	return mock
}

// SetResponse sets the response body served for the given path.
func (m *MockHTTPServer) SetResponse(t *testing.T, path string, response []byte) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[strings.TrimPrefix(path, "/")] = response
}

// Hits returns how often the given path has been requested.
func (m *MockHTTPServer) Hits(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits[strings.TrimPrefix(path, "/")]
}
