// Package testhelpers provides common utilities for testing the LanShare server.
//
// It wraps websocket connections so tests can send room events and read them
// back one at a time even when the server batches several events into a single
// frame, and it builds multipart uploads the way browsers send them.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestOrigin is the Origin header sent by ConnectWebSocket.
const TestOrigin = "http://localhost:5000"

// Event is a decoded frame envelope.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode unmarshals the event data into dst.
func (e Event) Decode(dst any) error {
	return json.Unmarshal(e.Data, dst)
}

// WSClient is a test websocket client that splits batched frames into events.
type WSClient struct {
	Conn    *websocket.Conn
	pending []Event
}

// BuildWebSocketURL converts an http test server URL into its /ws endpoint.
func BuildWebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// ConnectWebSocket dials the websocket endpoint with the test origin.
func ConnectWebSocket(url string) (*WSClient, error) {
	return ConnectWebSocketWithOrigin(url, TestOrigin)
}

// ConnectWebSocketWithOrigin dials the websocket endpoint; an empty origin
// sends no Origin header.
func ConnectWebSocketWithOrigin(url, origin string) (*WSClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &WSClient{Conn: conn}, nil
}

// MustConnect dials the endpoint, reads the welcome event, and returns the
// client with its connection id.
func MustConnect(t *testing.T, url string) (*WSClient, string) {
	t.Helper()
	client, err := ConnectWebSocket(url)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	welcome, err := client.WaitFor("welcome", 2*time.Second)
	if err != nil {
		t.Fatalf("No welcome event: %v", err)
	}
	var payload struct {
		Device struct {
			ID string `json:"id"`
		} `json:"device"`
	}
	if err := welcome.Decode(&payload); err != nil {
		t.Fatalf("Invalid welcome payload: %v", err)
	}
	return client, payload.Device.ID
}

// Send writes one event frame.
func (c *WSClient) Send(event string, data any) error {
	return c.Conn.WriteJSON(map[string]any{"event": event, "data": data})
}

// SendRaw writes one raw text frame.
func (c *WSClient) SendRaw(data []byte) error {
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Next returns the next event, reading a new frame when none is pending.
func (c *WSClient) Next(timeout time.Duration) (Event, error) {
	if len(c.pending) == 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return Event{}, err
		}
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			return Event{}, err
		}
		for _, line := range bytes.Split(frame, []byte{'\n'}) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				return Event{}, fmt.Errorf("invalid event %q: %w", line, err)
			}
			c.pending = append(c.pending, ev)
		}
		if len(c.pending) == 0 {
			return Event{}, errors.New("empty frame")
		}
	}
	ev := c.pending[0]
	c.pending = c.pending[1:]
	return ev, nil
}

// WaitFor skips events until one with the given name arrives.
func (c *WSClient) WaitFor(event string, timeout time.Duration) (Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Event{}, fmt.Errorf("timed out waiting for %q", event)
		}
		ev, err := c.Next(remaining)
		if err != nil {
			return Event{}, fmt.Errorf("waiting for %q: %w", event, err)
		}
		if ev.Event == event {
			return ev, nil
		}
	}
}

// ExpectNone fails the test if an event with the given name arrives within
// the window. A websocket read that timed out cannot be resumed, so this must be
// the last read on the client.
func (c *WSClient) ExpectNone(t *testing.T, event string, window time.Duration) {
	t.Helper()
	if ev, err := c.WaitFor(event, window); err == nil {
		t.Errorf("Unexpected %q event: %s", event, ev.Data)
	}
}

// Close sends a normal close frame and closes the connection.
func (c *WSClient) Close() error {
	_ = c.Conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.Conn.Close()
}

// UploadFile posts a multipart upload with the connection id field before the
// file part.
func UploadFile(baseURL, connectionID, filename string, content []byte) (*http.Response, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if connectionID != "" {
		if err := writer.WriteField("connection_id", connectionID); err != nil {
			return nil, err
		}
	}
	if err := writer.WriteField("size", fmt.Sprint(len(content))); err != nil {
		return nil, err
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	return client.Post(baseURL+"/upload", writer.FormDataContentType(), &body)
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ReadBody reads and closes the response body.
func ReadBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	return body
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}
