// Package testutil provides testing utilities for the search client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// DefaultToken is the continuation token issued by the default handler.
const DefaultToken = "4-test-vqd"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSearch is a configurable mock search backend.
//
// The default /search handler serves a corpus of Total generated records,
// paged by the s (offset) and n (count) query parameters, and issues
// DefaultToken with every page. Tokens listed in RejectTokens get a token
// error envelope.
type MockSearch struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Corpus
	total        int
	rejectTokens map[string]bool

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	Queries           []url.Values
}

// NewMockSearch creates a mock backend serving total records.
func NewMockSearch(total int) *MockSearch {
	mock := &MockSearch{
		handlers:     make(map[string]func(w http.ResponseWriter, r *http.Request)),
		total:        total,
		rejectTokens: make(map[string]bool),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.Queries = append(mock.Queries, r.URL.Query())
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockSearch) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSearch) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSearch) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.Queries = nil
}

// RejectToken makes the default handler reject token.
func (m *MockSearch) RejectToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectTokens[token] = true
}

// SetHandler sets a custom handler for a specific path.
func (m *MockSearch) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockSearch) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, responseHandler(resp))
}

// SetSequence answers successive requests on path with resps in order.
// Once exhausted, requests fall through to the default handler.
func (m *MockSearch) SetSequence(path string, resps ...MockResponse) {
	var (
		mu   sync.Mutex
		next int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		i := next
		next++
		mu.Unlock()

		if i < len(resps) {
			responseHandler(resps[i])(w, r)
			return
		}
		m.defaultHandler(w, r)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSearch) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetQueries returns a copy of the query parameters of every request.
func (m *MockSearch) GetQueries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]url.Values(nil), m.Queries...)
}

// defaultHandler serves the generated corpus.
func (m *MockSearch) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	q := r.URL.Query()

	m.mu.RLock()
	rejected := m.rejectTokens[q.Get("vqd")]
	total := m.total
	m.mu.RUnlock()

	if rejected {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"error": "invalid vqd token"}`))
		return
	}

	offset, _ := strconv.Atoi(q.Get("s"))
	count, err := strconv.Atoi(q.Get("n"))
	if err != nil || count <= 0 {
		count = 10
	}

	results := make([]map[string]any, 0, count)
	for i := offset; i < offset+count && i < total; i++ {
		results = append(results, map[string]any{
			"id":    i,
			"title": fmt.Sprintf("%s result %d", q.Get("q"), i),
			"url":   fmt.Sprintf("https://example.com/%d", i),
		})
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"results": results,
		"vqd":     DefaultToken,
	})
}

func responseHandler(resp MockResponse) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		// Add delay if specified
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}
}

// NewPageResponse creates a 200 OK response carrying n records and token.
func NewPageResponse(n int, token string) MockResponse {
	results := make([]map[string]any, n)
	for i := range results {
		results[i] = map[string]any{"id": i, "title": fmt.Sprintf("result %d", i)}
	}
	body, _ := json.Marshal(map[string]any{"results": results, "vqd": token})

	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfterSeconds int) MockResponse {
	headers := map[string]string{"Content-Type": "application/json; charset=utf-8"}
	if retryAfterSeconds > 0 {
		headers["Retry-After"] = strconv.Itoa(retryAfterSeconds)
	}
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers:    headers,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewUnavailableResponse creates a 503 Service Unavailable response.
func NewUnavailableResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"error": "Service unavailable"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewTokenErrorResponse creates a 200 response whose envelope rejects the token.
func NewTokenErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"error": "invalid vqd token"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewMalformedResponse creates a 200 response with an unparseable body.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"results": [`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
