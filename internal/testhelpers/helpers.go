// Package testhelpers provides helpers shared by the HTTP and WebSocket tests:
// test servers, event frames and assertions on what a connection receives.
package testhelpers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// TestOrigin is the Origin header sent by ConnectWebSocket. It is part of the
// default allow-list.
const TestOrigin = "http://localhost:8080"

// readTimeout bounds every read made by the helpers.
const readTimeout = 2 * time.Second

// Event is a decoded server frame.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the event payload into dst.
func (e Event) Decode(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(e.Payload, dst), "decode %s payload", e.Type)
}

// CreateTestServer starts an httptest server closed at the end of the test.
func CreateTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// WebSocketURL converts an http test server URL into its /ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// ConnectWebSocket dials url with the allowed test origin. The connection is
// closed at the end of the test.
func ConnectWebSocket(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, err := DialWebSocket(url, TestOrigin)
	require.NoError(t, err, "dial %s", url)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// DialWebSocket dials url with the given Origin header.
func DialWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendEvent writes one event frame.
func SendEvent(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(Event{Type: eventType, Payload: body})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// SendRawMessage writes an arbitrary frame.
func SendRawMessage(t *testing.T, conn *websocket.Conn, data []byte) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// ReadEvent reads the next frame and fails the test if none arrives in time.
func ReadEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err, "read event")

	var evt Event
	require.NoError(t, json.Unmarshal(data, &evt), "frame %q is not an event", data)
	return evt
}

// ExpectEvent reads the next frame and asserts its type.
func ExpectEvent(t *testing.T, conn *websocket.Conn, eventType string) Event {
	t.Helper()
	evt := ReadEvent(t, conn)
	require.Equal(t, eventType, evt.Type, "unexpected event payload %s", evt.Payload)
	return evt
}

// ExpectNoEvent asserts that nothing arrives within wait. A timed out read
// leaves the connection unreadable, so call it last on conn.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no event, got %s", data)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

// CloseWebSocket sends a close frame and closes the connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// Eventually polls cond until it holds or the read timeout elapses.
func Eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, readTimeout, 10*time.Millisecond, msg)
}
