package sink

import (
	"chat-relay/errors"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var testConfig = WebsocketConfig{
	BufferSize:     4,
	WriteTimeout:   time.Second,
	PongWait:       time.Second,
	PingPeriod:     500 * time.Millisecond,
	MaxMessageSize: 1024,
}

// newPair returns the server side sink and the client side connection.
func newPair(t *testing.T) (*WebsocketSink, *websocket.Conn) {
	t.Helper()
	sinks := make(chan *WebsocketSink, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		sinks <- NewWebsocketSink(conn, logs.GetLoggerFromLevel(slog.LevelDebug), testConfig)
	}))
	t.Cleanup(server.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case s := <-sinks:
		return s, client
	case <-time.After(2 * time.Second):
		t.Fatal("no server side connection")
		return nil, nil
	}
}

func readText(t *testing.T, client *websocket.Conn) string {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestWebsocketSink_Delivers_In_Order(t *testing.T) {
	req := require.New(t)
	s, client := newPair(t)

	req.NoError(s.Send(context.Background(), []byte("welcome")))
	req.NoError(s.Deliver([]byte("one")))
	req.NoError(s.Deliver([]byte("two")))

	req.Equal("welcome", readText(t, client))
	req.Equal("one", readText(t, client))
	req.Equal("two", readText(t, client))
}

func TestWebsocketSink_Receives_Text(t *testing.T) {
	req := require.New(t)
	s, client := newPair(t)

	req.NoError(client.WriteMessage(websocket.TextMessage, []byte("hi")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	text, err := s.Receive(ctx)
	req.NoError(err)
	req.Equal("hi", text)
}

func TestWebsocketSink_Peer_Close_Is_Reported(t *testing.T) {
	req := require.New(t)
	s, client := newPair(t)

	req.NoError(client.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.Receive(ctx)
	req.ErrorIs(err, errors.ErrConnectionClosed)

	// Nothing can be queued anymore
	req.ErrorIs(s.Deliver([]byte("late")), errors.ErrConnectionClosed)
	req.ErrorIs(s.Send(context.Background(), []byte("late")), errors.ErrConnectionClosed)
}

func TestWebsocketSink_Close_Sends_Code_And_Reason(t *testing.T) {
	req := require.New(t)
	s, client := newPair(t)

	req.NoError(s.Deliver([]byte("last words")))
	req.NoError(s.Close(1008, "Authentication failed: missing token"))

	// Pending events are flushed before the close frame
	req.Equal("last words", readText(t, client))
	_, _, err := client.ReadMessage()
	var closeErr *websocket.CloseError
	req.ErrorAs(err, &closeErr)
	req.Equal(websocket.ClosePolicyViolation, closeErr.Code)
	req.Equal("Authentication failed: missing token", closeErr.Text)

	req.ErrorIs(s.Close(1000, ""), errors.ErrConnectionClosed)
}

func TestWebsocketSink_Slow_Consumer(t *testing.T) {
	req := require.New(t)
	s := &WebsocketSink{
		outbound: make(chan []byte, 1),
		closed:   make(chan struct{}),
	}

	req.NoError(s.Deliver([]byte("one")))
	req.ErrorIs(s.Deliver([]byte("two")), errors.ErrSlowConsumer)
}

func TestWebsocketSink_Send_Aborts_When_Closed(t *testing.T) {
	req := require.New(t)
	s := &WebsocketSink{
		outbound: make(chan []byte),
		closed:   make(chan struct{}),
	}

	time.AfterFunc(20*time.Millisecond, func() { close(s.closed) })

	req.ErrorIs(s.Send(context.Background(), []byte("blocked")), errors.ErrConnectionClosed)
}

func TestWebsocketSink_Oversized_Frame_Ends_Connection(t *testing.T) {
	req := require.New(t)
	s, client := newPair(t)

	req.NoError(client.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 2048))))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.Receive(ctx)
	req.Error(err)
	req.NotErrorIs(err, errors.ErrConnectionClosed)
}

func TestTruncateReason(t *testing.T) {
	req := require.New(t)
	req.Equal("short", truncateReason("short"))
	req.Len(truncateReason(strings.Repeat("a", 200)), maxCloseReason)
	// Never cut a rune in half
	truncated := truncateReason(strings.Repeat("é", 100))
	req.LessOrEqual(len(truncated), maxCloseReason)
	req.True(strings.HasSuffix(truncated, "é"))
}
