package main

import (
	"bufio"
	"chat-relay/domain/event"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	RoomID        string `env:"CHAT_ROOM_ID,required=true"`
	Token         string `env:"CHAT_TOKEN,required=true"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run connects to a room, prints every event it receives and sends each
// line typed on stdin as a chat message.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	endpoint := url.URL{
		Scheme:   "ws",
		Host:     config.ServerAddress,
		Path:     "/chat/ws/" + url.PathEscape(config.RoomID),
		RawQuery: url.Values{"token": {config.Token}}.Encode(),
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	log.Info(fmt.Sprintf(">>> Connected to %s! Room %s (Ctrl+C to quit)...", config.ServerAddress, config.RoomID))

	go readStdin(ctx, conn, log.Error)

	received := make(chan error, 1)
	go func() { received <- printEvents(conn) }()

	select {
	case <-ctx.Done():
		log.Info("Stopping client...")
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		return exitOK, nil
	case err = <-received:
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
			return exitOK, nil
		}
		return exitRuntime, fmt.Errorf("connection ended: %w", err)
	}
}

func readStdin(ctx context.Context, conn *websocket.Conn, logError func(string, ...any)) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, scanner.Bytes()); err != nil {
			logError("Unable to send message", "error", err)
			return
		}
	}
}

func printEvents(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		evt, err := event.Decode(data)
		if err != nil {
			color.Warn.Printf("unreadable frame: %s\n", data)
			continue
		}
		at := evt.Timestamp.Local().Format(time.TimeOnly)
		switch evt.Type {
		case event.MessageType:
			color.Printf("<gray>[%s]</> <cyan>%s</>: %s\n", at, evt.Username, evt.Content)
		case event.ErrorType:
			color.Red.Printf("[%s] %s\n", at, evt.Content)
		default:
			color.Yellow.Printf("[%s] * %s\n", at, evt.Content)
		}
	}
}
