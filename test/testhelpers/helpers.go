// Package testhelpers provides common utilities and helper functions for
// testing the Nexus chat server.
//
// This package contains reusable test utilities that are shared across
// integration tests. It provides functions for creating test servers, dialing
// WebSocket connections, and exchanging protocol events to reduce code
// duplication in test files.
package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one protocol frame as seen on the wire.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
// It fails the test with a descriptive error message if the status codes don't match.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
// It fails the test with a descriptive error message if the content types don't match.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// WebSocketURL converts an httptest server URL into the ws:// URL of the
// chat endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// DialWebSocket opens a WebSocket connection to the chat endpoint with the
// given Origin header and registers cleanup for it.
func DialWebSocket(t *testing.T, serverURL, origin string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(WebSocketURL(serverURL), header)
	if err != nil {
		t.Fatalf("Failed to dial WebSocket: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendEvent marshals and sends one protocol event on the connection.
func SendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to marshal %s payload: %v", event, err)
	}
	frame, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		t.Fatalf("Failed to marshal %s frame: %v", event, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("Failed to send %s event: %v", event, err)
	}
}

// EventReader reads protocol events off a WebSocket connection. The server
// may batch several newline-separated frames into one WebSocket message, so
// the reader keeps a queue of decoded events.
//
// Reads happen on a background goroutine because a read deadline expiring on
// a gorilla connection is a sticky error that poisons all later reads; a
// timeout in Next must leave the connection usable.
type EventReader struct {
	conn   *websocket.Conn
	queue  []Event
	frames chan readResult
}

type readResult struct {
	raw []byte
	err error
}

// NewEventReader wraps a connection for event-at-a-time reading.
func NewEventReader(conn *websocket.Conn) *EventReader {
	r := &EventReader{conn: conn, frames: make(chan readResult, 1)}
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			r.frames <- readResult{raw: raw, err: err}
			if err != nil {
				return
			}
		}
	}()
	return r
}

// Next returns the next event, waiting up to timeout for one to arrive.
func (r *EventReader) Next(timeout time.Duration) (Event, error) {
	if len(r.queue) > 0 {
		ev := r.queue[0]
		r.queue = r.queue[1:]
		return ev, nil
	}

	var raw []byte
	select {
	case res := <-r.frames:
		if res.err != nil {
			return Event{}, res.err
		}
		raw = res.raw
	case <-time.After(timeout):
		return Event{}, fmt.Errorf("timed out after %v waiting for event", timeout)
	}

	for _, line := range strings.Split(string(raw), "\n") {
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return Event{}, fmt.Errorf("undecodable frame %q: %w", line, err)
		}
		r.queue = append(r.queue, ev)
	}

	if len(r.queue) == 0 {
		return Event{}, fmt.Errorf("empty WebSocket message")
	}

	ev := r.queue[0]
	r.queue = r.queue[1:]
	return ev, nil
}

// Expect returns the next event and fails the test unless it has the given
// event name.
func (r *EventReader) Expect(t *testing.T, event string) json.RawMessage {
	t.Helper()

	ev, err := r.Next(2 * time.Second)
	if err != nil {
		t.Fatalf("Waiting for %s event: %v", event, err)
	}
	if ev.Event != event {
		t.Fatalf("Received %s event, want %s (data %s)", ev.Event, event, ev.Data)
	}
	return ev.Data
}

// ExpectNone fails the test if any event arrives within the timeout.
func (r *EventReader) ExpectNone(t *testing.T, timeout time.Duration) {
	t.Helper()

	ev, err := r.Next(timeout)
	if err == nil {
		t.Fatalf("Expected no event, received %s (data %s)", ev.Event, ev.Data)
	}
}
