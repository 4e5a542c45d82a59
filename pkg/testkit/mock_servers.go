package testkit

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// BackendPrefix is the path the panel backend is mounted under.
const BackendPrefix = "/backend"

// Reply is one scripted backend response.
type Reply struct {
	Status int
	// Body is JSON-encoded unless it is a string, which is written raw.
	Body   any
	Cookie *http.Cookie
	Delay  time.Duration
	// Gate, when set, holds the response until it is closed or the client gives up.
	Gate chan struct{}
}

// RecordedRequest is a request the mock backend received.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	// Files maps multipart field to uploaded filename.
	Files   map[string]string
	JSON    map[string]any
	Cookies []*http.Cookie
}

// MockBackend is an httptest server that answers panel endpoints from a script.
type MockBackend struct {
	server   *httptest.Server
	mu       sync.Mutex
	routes   map[string][]Reply
	requests []RecordedRequest
}

// NewMockBackend starts a scripted backend. Unscripted routes answer 404.
func NewMockBackend() *MockBackend {
	m := &MockBackend{routes: make(map[string][]Reply)}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL is the backend root to hand to a transport.
func (m *MockBackend) URL() string {
	return m.server.URL + BackendPrefix
}

// Close shuts the server down.
func (m *MockBackend) Close() {
	m.server.CloseClientConnections()
	m.server.Close()
}

// On scripts replies for method and path (relative to the backend root).
// Replies are served in order; the last one repeats.
func (m *MockBackend) On(method, path string, replies ...Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[routeKey(method, path)] = append([]Reply(nil), replies...)
}

// Requests returns the recorded requests for method and path.
func (m *MockBackend) Requests(method, path string) []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RecordedRequest
	for _, r := range m.requests {
		if r.Method == method && r.Path == strings.Trim(path, "/") {
			out = append(out, r)
		}
	}
	return out
}

// Count returns how many requests hit method and path.
func (m *MockBackend) Count(method, path string) int {
	return len(m.Requests(method, path))
}

func routeKey(method, path string) string {
	return method + " " + strings.Trim(path, "/")
}

func (m *MockBackend) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, BackendPrefix), "/")
	rec := RecordedRequest{
		Method:  r.Method,
		Path:    path,
		Query:   r.URL.Query(),
		Cookies: r.Cookies(),
	}
	readBody(r, &rec)

	m.mu.Lock()
	m.requests = append(m.requests, rec)
	key := routeKey(r.Method, path)
	replies := m.routes[key]
	var reply Reply
	scripted := len(replies) > 0
	if scripted {
		reply = replies[0]
		if len(replies) > 1 {
			m.routes[key] = replies[1:]
		}
	}
	m.mu.Unlock()

	if !scripted {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
		return
	}

	if reply.Gate != nil {
		select {
		case <-reply.Gate:
		case <-r.Context().Done():
			return
		}
	}
	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-r.Context().Done():
			return
		}
	}
	if reply.Cookie != nil {
		http.SetCookie(w, reply.Cookie)
	}

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	if raw, ok := reply.Body.(string); ok {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, raw)
		return
	}
	writeJSON(w, status, reply.Body)
}

func readBody(r *http.Request, rec *RecordedRequest) {
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "multipart/form-data"):
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return
		}
		rec.Form = url.Values(r.MultipartForm.Value)
		rec.Files = make(map[string]string)
		for field, headers := range r.MultipartForm.File {
			if len(headers) > 0 {
				rec.Files[field] = headers[0].Filename
			}
		}
	case strings.HasPrefix(ct, "application/json"):
		_ = json.NewDecoder(r.Body).Decode(&rec.JSON)
	case strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err == nil {
			rec.Form = r.PostForm
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}
