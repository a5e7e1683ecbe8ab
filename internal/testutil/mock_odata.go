// Package testutil provides testing utilities for the OData connector.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

// RequestRecord captures one request seen by the mock upstream, in arrival
// order.
type RequestRecord struct {
	Method string
	Path   string
}

// MockOData is a configurable mock upstream for tests: an OData service,
// a token endpoint, or both, depending on the handlers installed.
type MockOData struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RequestRecord
}

// NewMockOData creates a started mock upstream.
func NewMockOData() *MockOData {
	mock := &MockOData{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests = append(mock.requests, RequestRecord{Method: r.Method, Path: r.URL.Path})
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if !exists {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockOData) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOData) Close() {
	m.server.Close()
}

// SetHandler installs a custom handler for a path.
func (m *MockOData) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetJSON installs a fixed JSON response for a path.
func (m *MockOData) SetJSON(path string, status int, body string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != "" {
			w.Write([]byte(body))
		}
	})
}

// Requests returns a copy of the request log in arrival order.
func (m *MockOData) Requests() []RequestRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RequestRecord, len(m.requests))
	copy(out, m.requests)
	return out
}

// CountRequests returns how many requests matched method and path.
func (m *MockOData) CountRequests(method, path string) int {
	count := 0
	for _, rec := range m.Requests() {
		if rec.Method == method && rec.Path == path {
			count++
		}
	}
	return count
}

// Reset clears the request log.
func (m *MockOData) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}
