// Package providertest runs a fake LLM provider for tests. It answers with
// canned JSON or Server-Sent-Events bodies and records what it received.
package providertest

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Event is one Server-Sent-Event. Name is written as an "event:" line when
// set.
type Event struct {
	Name string
	Data string
}

// Response configures the answer for one path.
type Response struct {
	StatusCode int               // default 200
	Body       any               // string, []byte, or a value encoded as JSON
	Headers    map[string]string // extra response headers
	Gzip       bool              // gzip the body and set Content-Encoding

	// Events makes the response an SSE stream. Body is ignored.
	Events []Event
	// Done appends the "data: [DONE]" sentinel to Events.
	Done bool
}

// Request is a request the server received.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Server is a fake provider.
type Server struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string]Response
	requests  []Request
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{responses: make(map[string]Response)}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

// URL returns the base URL.
func (s *Server) URL() string {
	return s.server.URL
}

// SetResponse sets the answer for requests to path.
func (s *Server) SetResponse(path string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = resp
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	resp, ok := s.responses[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}

	var out io.Writer = w
	if resp.Gzip {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		out = gz
	}

	if len(resp.Events) > 0 || resp.Done {
		s.stream(w, out, resp)
		return
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(statusOf(resp))

	switch v := resp.Body.(type) {
	case nil:
	case string:
		_, _ = io.WriteString(out, v)
	case []byte:
		_, _ = out.Write(v)
	default:
		_ = json.NewEncoder(out).Encode(v)
	}
}

func (s *Server) stream(w http.ResponseWriter, out io.Writer, resp Response) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(statusOf(resp))

	flush := func() {
		if gz, ok := out.(*gzip.Writer); ok {
			_ = gz.Flush()
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}

	for _, ev := range resp.Events {
		if ev.Name != "" {
			fmt.Fprintf(out, "event: %s\n", ev.Name)
		}
		fmt.Fprintf(out, "data: %s\n\n", ev.Data)
		flush()
	}
	if resp.Done {
		fmt.Fprint(out, "data: [DONE]\n\n")
		flush()
	}
}

func statusOf(resp Response) int {
	if resp.StatusCode == 0 {
		return http.StatusOK
	}
	return resp.StatusCode
}

// OpenAICompletion is a chat completion body.
func OpenAICompletion(content, model string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-123",
		"object":  "chat.completion",
		"created": 1718000000,
		"model":   model,
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	}
}

// OpenAIStream is a chat completion stream that delivers parts in order.
func OpenAIStream(model string, parts ...string) Response {
	events := make([]Event, 0, len(parts))
	for _, p := range parts {
		chunk, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-123",
			"object":  "chat.completion.chunk",
			"created": 1718000000,
			"model":   model,
			"choices": []map[string]any{
				{"index": 0, "delta": map[string]any{"content": p}},
			},
		})
		events = append(events, Event{Data: string(chunk)})
	}
	return Response{Events: events, Done: true}
}

// AnthropicMessage is a messages API body.
func AnthropicMessage(content, model string) map[string]any {
	return map[string]any{
		"id":          "msg_123",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": content}},
		"model":       model,
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 20},
	}
}

// AnthropicStream is a messages stream that delivers parts as text deltas.
func AnthropicStream(model string, parts ...string) Response {
	start, _ := json.Marshal(map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id": "msg_123", "type": "message", "role": "assistant", "model": model,
			"content": []any{}, "usage": map[string]any{"input_tokens": 10, "output_tokens": 0},
		},
	})
	events := []Event{
		{Name: "message_start", Data: string(start)},
		{Name: "content_block_start", Data: `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
	}
	for _, p := range parts {
		delta, _ := json.Marshal(map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": p},
		})
		events = append(events, Event{Name: "content_block_delta", Data: string(delta)})
	}
	events = append(events,
		Event{Name: "content_block_stop", Data: `{"type":"content_block_stop","index":0}`},
		Event{Name: "message_delta", Data: `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":20}}`},
		Event{Name: "message_stop", Data: `{"type":"message_stop"}`},
	)
	return Response{Events: events}
}

// ErrorResponse is a provider error body with the given status.
func ErrorResponse(statusCode int, message string) Response {
	return Response{
		StatusCode: statusCode,
		Body: map[string]any{
			"error": map[string]any{"message": message, "type": "invalid_request_error"},
		},
	}
}
