package server

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/runtime"
	"chat-relay/sink"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// SessionServer runs a connection from handshake to close.
type SessionServer interface {
	Serve(ctx context.Context, transport contract.Transport, roomID domain.RoomID, token string) runtime.State
}

// ChatHandler upgrades /chat/ws/{roomId} and hands the connection to a session.
// Setup failures are reported with a close frame, never with an HTTP status.
type ChatHandler struct {
	log        *slog.Logger
	sessions   SessionServer
	upgrader   websocket.Upgrader
	sinkConfig sink.WebsocketConfig
}

func NewChatHandler(log *slog.Logger, sessions SessionServer, sinkConfig sink.WebsocketConfig) *ChatHandler {
	return &ChatHandler{
		log:      log,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sinkConfig: sinkConfig,
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(mux.Vars(r)["roomId"])
	token := bearerToken(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade error", "room", roomID, "error", err)
		return
	}

	transport := sink.NewWebsocketSink(conn, h.log, h.sinkConfig)
	state := h.sessions.Serve(r.Context(), transport, roomID, token)
	h.log.Debug("Connection handled", "room", roomID, "connection", transport.ID(), "state", state)
}

// bearerToken reads the token query parameter, then the Authorization header.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
