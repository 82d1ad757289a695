package image

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
)

// pngBytes starts with the PNG signature so content sniffing reports image/png.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, 96)...)

func pngDataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

type capturedRequest struct {
	method string
	path   string
	header http.Header
	body   []byte
}

type responseStub struct {
	status int
	header http.Header
	body   []byte
}

// captureTransport records every request and answers from a queue of stubs
// keyed by "METHOD path". The last stub of a queue is reused once reached.
type captureTransport struct {
	mu        sync.Mutex
	responses map[string][]responseStub
	requests  []capturedRequest
}

func newCaptureTransport() *captureTransport {
	return &captureTransport{responses: map[string][]responseStub{}}
}

func (c *captureTransport) client() *http.Client {
	return &http.Client{Transport: c}
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, capturedRequest{
		method: req.Method,
		path:   req.URL.Path,
		header: req.Header.Clone(),
		body:   body,
	})
	key := req.Method + " " + req.URL.Path
	queue := c.responses[key]
	if len(queue) == 0 {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader("not found")),
		}, nil
	}
	stub := queue[0]
	if len(queue) > 1 {
		c.responses[key] = queue[1:]
	}
	return stub.toResponse(), nil
}

func (c *captureTransport) onJSON(method, path string, status int, payload any) {
	body, _ := json.Marshal(payload)
	c.on(method, path, responseStub{
		status: status,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	})
}

func (c *captureTransport) on(method, path string, stub responseStub) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := method + " " + path
	c.responses[key] = append(c.responses[key], stub)
}

func (c *captureTransport) count(method, path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.requests {
		if r.method == method && r.path == path {
			n++
		}
	}
	return n
}

func (c *captureTransport) last(method, path string) (capturedRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.requests) - 1; i >= 0; i-- {
		if r := c.requests[i]; r.method == method && r.path == path {
			return r, true
		}
	}
	return capturedRequest{}, false
}

func (s responseStub) toResponse() *http.Response {
	header := http.Header{}
	for k, values := range s.header {
		header[k] = append([]string(nil), values...)
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}
}
