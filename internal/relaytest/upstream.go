package relaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Upstream is a fake vendor API server. Responses are configured per
// path; unconfigured paths return 404.
type Upstream struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string]UpstreamResponse
	requests  []*http.Request
}

// UpstreamResponse configures one endpoint of the fake server.
type UpstreamResponse struct {
	Status int

	// Body is marshalled as JSON unless SSELines is set.
	Body any

	// SSELines, when set, are written verbatim as an event stream,
	// each line followed by a blank line.
	SSELines []string

	// Hang blocks the handler before any headers are written, until
	// the client gives up. Simulates a black-holed upstream.
	Hang bool

	// HangAfter keeps the connection open after SSELines have been
	// written, until the client gives up. Simulates a stalled stream.
	HangAfter bool

	Headers map[string]string
}

// NewUpstream starts the fake server.
func NewUpstream() *Upstream {
	u := &Upstream{responses: make(map[string]UpstreamResponse)}
	u.server = httptest.NewServer(http.HandlerFunc(u.handler))
	return u
}

// URL returns the server's base URL.
func (u *Upstream) URL() string { return u.server.URL }

// Close stops the server.
func (u *Upstream) Close() { u.server.Close() }

// Respond configures the response for a path.
func (u *Upstream) Respond(path string, resp UpstreamResponse) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.responses[path] = resp
}

// Requests returns the requests received so far.
func (u *Upstream) Requests() []*http.Request {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*http.Request, len(u.requests))
	copy(out, u.requests)
	return out
}

func (u *Upstream) handler(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.requests = append(u.requests, r.Clone(r.Context()))
	resp, ok := u.responses[r.URL.Path]
	u.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if resp.Hang {
		<-r.Context().Done()
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	if resp.SSELines != nil {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(status)
		flusher, _ := w.(http.Flusher)
		if flusher != nil {
			flusher.Flush()
		}
		for _, line := range resp.SSELines {
			_, _ = w.Write([]byte(line + "\n\n"))
			if flusher != nil {
				flusher.Flush()
			}
		}
		if resp.HangAfter {
			<-r.Context().Done()
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if resp.Body != nil {
		_ = json.NewEncoder(w).Encode(resp.Body)
	}
}
