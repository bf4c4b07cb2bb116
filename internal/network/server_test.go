package network

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu          sync.Mutex
	connected   []string
	tokens      []string
	messages    []Message
	invalid     int
	disconnects map[string]int
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{disconnects: make(map[string]int)}
}

func (h *recordingHandler) OnConnect(_ context.Context, p Peer) {
	h.mu.Lock()
	h.connected = append(h.connected, p.ID())
	h.tokens = append(h.tokens, p.Token())
	h.mu.Unlock()
}

func (h *recordingHandler) OnMessage(p Peer, msg Message) {
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	h.mu.Unlock()

	reply, _ := NewMessage("echo", map[string]string{"type": msg.Type})
	p.Send(reply)
}

func (h *recordingHandler) OnInvalid(p Peer, err error) {
	h.mu.Lock()
	h.invalid++
	h.mu.Unlock()
	p.Send(Message{Type: "error"})
}

func (h *recordingHandler) OnDisconnect(p Peer) {
	h.mu.Lock()
	h.disconnects[p.ID()]++
	h.mu.Unlock()
}

func (h *recordingHandler) disconnectCount(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disconnects[id]
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServerRoundTrip(t *testing.T) {
	handler := newRecordingHandler()
	server := NewServer(handler, Options{})
	mux := http.NewServeMux()
	mux.Handle("/ws", server)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dial(t, srv, "?session_id=tok-1")
	require.Eventually(t, func() bool { return server.Hub().Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join_game","payload":{"player_name":"ana"}}`)))
	reply := readMessage(t, conn)
	assert.Equal(t, "echo", reply.Type)
	assert.JSONEq(t, `{"type":"join_game"}`, string(reply.Payload))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Equal(t, "error", readMessage(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"payload":{}}`)))
	assert.Equal(t, "error", readMessage(t, conn).Type)

	handler.mu.Lock()
	require.Len(t, handler.connected, 1)
	id := handler.connected[0]
	assert.Equal(t, []string{"tok-1"}, handler.tokens)
	assert.Equal(t, 2, handler.invalid)
	handler.mu.Unlock()

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	require.Eventually(t, func() bool { return handler.disconnectCount(id) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, server.Hub().Count())
}

func TestServerCloseAll(t *testing.T) {
	handler := newRecordingHandler()
	server := NewServer(handler, Options{})
	srv := httptest.NewServer(server)
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return server.Hub().Count() == 1 }, time.Second, 10*time.Millisecond)

	server.Hub().CloseAll()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool { return server.Hub().Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?session_id=from-query", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	assert.Equal(t, "from-query", TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Basic xyz")
	assert.Empty(t, TokenFromRequest(r))
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage("point_scored", map[string]int{"player": 2})
	require.NoError(t, err)
	assert.Equal(t, "point_scored", msg.Type)
	assert.JSONEq(t, `{"player":2}`, string(msg.Payload))

	msg, err = NewMessage("waiting_for_opponent", nil)
	require.NoError(t, err)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"waiting_for_opponent"}`, string(raw))

	_, err = NewMessage("bad", func() {})
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"paddle_move","payload":{"y":12.5}}`))
	require.NoError(t, err)
	assert.Equal(t, "paddle_move", msg.Type)

	_, err = Decode([]byte(`{"payload":1}`))
	assert.ErrorIs(t, err, ErrMissingType)

	_, err = Decode([]byte(`{`))
	assert.Error(t, err)
}

// syncBuffer lets the test read log output written by the client goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServerLogsRemoteAddress(t *testing.T) {
	var logs syncBuffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	server := NewServer(newRecordingHandler(), Options{Logger: logger})
	srv := httptest.NewServer(server)
	defer srv.Close()

	conn := dial(t, srv, "")
	remote := conn.LocalAddr().String()
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "client connected")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, logs.String(), "remote="+remote)

	conn.Close()
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "client disconnected")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, strings.Count(logs.String(), "remote="+remote))
}
