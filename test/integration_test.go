package test

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/http/server"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/sink"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

const password = "Sup3r-Secret-Pass"

type stack struct {
	url          string
	auth         *services.AuthService
	users        repositories.IUserRepository
	rooms        repositories.IRoomRepository
	participants repositories.IParticipantRepository
	registry     *runtime.Registry
}

// newStack wires the relay the way cmd/relay does, on a temporary badger.
func newStack(t *testing.T) stack {
	t.Helper()
	// Reduced to 16 Mo for testing
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	metrics := observability.NewMetrics()
	gatherer := prometheus.NewRegistry()
	metrics.Register(gatherer)

	messageRepository := repositories.NewMessageRepository(db, log, lo.ToPtr(100))
	participantRepository := repositories.NewParticipantRepository(db)
	userRepository := repositories.NewUserRepository(db)
	authService := services.NewAuthService(userRepository,
		auth.NewTokenManager("integration-secret-key", "chat-relay"), time.Hour)
	chatService := services.NewChatService(messageRepository, participantRepository, userRepository, log)

	registry := runtime.NewRegistry(log, metrics)
	dispatcher := runtime.NewDispatcher(registry, log, metrics)
	handler := runtime.NewHandler(authService, chatService, chatService, chatService, registry, dispatcher, log, metrics)
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log), registry, dispatcher, handler)

	chat := server.NewChatHandler(log, orchestrator, sink.WebsocketConfig{
		BufferSize:     16,
		WriteTimeout:   time.Second,
		PongWait:       5 * time.Second,
		PingPeriod:     2 * time.Second,
		MaxMessageSize: 4096,
	})
	httpServer := httptest.NewServer(server.NewRouter(log, chat, registry, gatherer))

	t.Cleanup(func() {
		httpServer.Close()
		_ = db.Close()
	})

	return stack{
		url:          httpServer.URL,
		auth:         authService,
		users:        userRepository,
		rooms:        repositories.NewRoomRepository(db),
		participants: participantRepository,
		registry:     registry,
	}
}

// member registers a user and makes it a participant of the room.
func (s stack) member(t *testing.T, username string, roomID domain.RoomID) string {
	t.Helper()
	token, err := s.auth.Register(username, password)
	require.NoError(t, err)
	user, err := s.users.GetUserByUsername(username)
	require.NoError(t, err)
	_, _, err = s.participants.AddParticipant(roomID, user.ID)
	require.NoError(t, err)
	return string(token)
}

func (s stack) dial(t *testing.T, roomID domain.RoomID, token string) *websocket.Conn {
	t.Helper()
	endpoint := "ws" + strings.TrimPrefix(s.url, "http") + "/chat/ws/" + url.PathEscape(string(roomID)) +
		"?token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func next(t *testing.T, conn *websocket.Conn) event.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	evt, err := event.Decode(data)
	require.NoError(t, err)
	return evt
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	require.Eventually(t, condition, 3*time.Second, 10*time.Millisecond)
}

func Test_Scenario(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	// Given a room with alice and bob as participants
	room, err := s.rooms.CreateRoom("general")
	req.NoError(err)
	aliceToken := s.member(t, "alice", room.ID)
	bobToken := s.member(t, "bob", room.ID)

	// When both connect
	alice := s.dial(t, room.ID, aliceToken)
	req.Equal(event.WelcomeContent, next(t, alice).Content)
	bob := s.dial(t, room.ID, bobToken)
	req.Equal(event.WelcomeContent, next(t, bob).Content)
	waitFor(t, func() bool { return s.registry.Size(room.ID) == 2 })

	// Then a message from alice reaches both, alice included
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte("hi")))
	for _, conn := range []*websocket.Conn{alice, bob} {
		evt := next(t, conn)
		req.Equal(event.MessageType, evt.Type)
		req.Equal("alice", evt.Username)
		req.Equal("hi", evt.Content)
	}

	// When bob leaves, alice alone is told
	req.NoError(bob.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	departure := next(t, alice)
	req.Equal(event.SystemType, departure.Type)
	req.Equal("User bob disconnected from chat", departure.Content)
	waitFor(t, func() bool { return s.registry.Size(room.ID) == 1 })

	// Then bob reconnecting gets the welcome followed by the stored history
	bob = s.dial(t, room.ID, bobToken)
	req.Equal(event.WelcomeContent, next(t, bob).Content)
	replayed := next(t, bob)
	req.Equal(event.MessageType, replayed.Type)
	req.Equal("alice", replayed.Username)
	req.Equal("hi", replayed.Content)
}

func Test_Rejections(t *testing.T) {
	s := newStack(t)
	room, err := s.rooms.CreateRoom("private")
	require.NoError(t, err)
	token := s.member(t, "alice", room.ID)

	// A registered user who is not a participant
	outsider, err := s.auth.Register("mallory", password)
	require.NoError(t, err)

	testCases := []struct {
		name   string
		roomID domain.RoomID
		token  string
		reason string
	}{
		{name: "no token", roomID: room.ID, token: "", reason: "Authentication failed: missing token"},
		{name: "garbage token", roomID: room.ID, token: "abc", reason: "Authentication failed: malformed token"},
		{name: "not a participant", roomID: room.ID, token: string(outsider), reason: "Authentication failed: user is not a participant of this chat"},
		{name: "unknown room", roomID: "nowhere", token: token, reason: "Authentication failed: user is not a participant of this chat"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			conn := s.dial(t, tc.roomID, tc.token)

			req.NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
			_, _, err := conn.ReadMessage()

			var closeErr *websocket.CloseError
			req.ErrorAs(err, &closeErr)
			req.Equal(websocket.ClosePolicyViolation, closeErr.Code)
			req.True(strings.HasPrefix(closeErr.Text, tc.reason), closeErr.Text)
			req.Zero(s.registry.RoomCount())
		})
	}
}
