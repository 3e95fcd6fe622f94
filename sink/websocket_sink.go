package sink

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// maxCloseReason is the room left for a reason in a close frame (125 minus the code).
const maxCloseReason = 123

type WebsocketConfig struct {
	BufferSize     int
	WriteTimeout   time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

// WebsocketSink is the transport of one WebSocket connection.
// A reader goroutine feeds Receive. A writer goroutine drains a FIFO queue
// so that events reach the peer in the order they were enqueued.
type WebsocketSink struct {
	id       domain.ConnectionID
	conn     *websocket.Conn
	log      *slog.Logger
	cfg      WebsocketConfig
	outbound chan []byte
	inbound  chan string

	closed      chan struct{}
	closeOnce   sync.Once
	writerDone  chan struct{}
	mu          sync.Mutex
	readErr     error
	closeCode   int
	closeReason string
}

func NewWebsocketSink(conn *websocket.Conn, log *slog.Logger, cfg WebsocketConfig) *WebsocketSink {
	id := domain.ConnectionID(uuid.NewString())
	s := &WebsocketSink{
		id:         id,
		conn:       conn,
		log:        log.With("connection", id),
		cfg:        cfg,
		outbound:   make(chan []byte, cfg.BufferSize),
		inbound:    make(chan string),
		closed:     make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	go s.readPump()
	go s.writePump()
	return s
}

func (s *WebsocketSink) ID() domain.ConnectionID {
	return s.id
}

// Deliver enqueues without blocking. A full queue drops the payload.
func (s *WebsocketSink) Deliver(payload []byte) error {
	select {
	case <-s.closed:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case s.outbound <- payload:
		return nil
	default:
		return fmt.Errorf("%w: %d pending", errors.ErrSlowConsumer, len(s.outbound))
	}
}

// Send waits for room in the queue. It gives up as soon as the connection closes.
func (s *WebsocketSink) Send(ctx context.Context, payload []byte) error {
	select {
	case <-s.closed:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case s.outbound <- payload:
		return nil
	case <-s.closed:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next inbound text frame.
// A peer closing normally is reported as ErrConnectionClosed.
func (s *WebsocketSink) Receive(ctx context.Context) (string, error) {
	select {
	case text := <-s.inbound:
		return text, nil
	case <-s.closed:
		return "", s.err()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close flushes what is queued, sends a close frame then drops the connection.
// Only the first call has an effect.
func (s *WebsocketSink) Close(code int, reason string) error {
	first := false
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closeCode, s.closeReason = code, truncateReason(reason)
		s.mu.Unlock()
		close(s.closed)
		first = true
	})
	if !first {
		return errors.ErrConnectionClosed
	}

	select {
	case <-s.writerDone:
	case <-time.After(2 * s.cfg.WriteTimeout):
		s.log.Warn("Writer did not stop in time, dropping connection")
		return s.conn.Close()
	}
	return nil
}

func (s *WebsocketSink) readPump() {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(err)
			return
		}
		if messageType != websocket.TextMessage {
			s.log.Debug("Ignoring non text frame", "type", messageType)
			continue
		}
		select {
		case s.inbound <- string(data):
		case <-s.closed:
			return
		}
	}
}

func (s *WebsocketSink) writePump() {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
		close(s.writerDone)
	}()

	for {
		select {
		case payload := <-s.outbound:
			if err := s.write(payload); err != nil {
				s.fail(err)
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				s.fail(err)
				return
			}
		case <-s.closed:
			s.flush()
			return
		}
	}
}

func (s *WebsocketSink) write(payload []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// flush writes whatever is still queued then the close frame, if we initiated the close.
func (s *WebsocketSink) flush() {
	for done := false; !done; {
		select {
		case payload := <-s.outbound:
			if err := s.write(payload); err != nil {
				s.log.Debug("Unable to flush pending event", "error", err)
				return
			}
		default:
			done = true
		}
	}

	s.mu.Lock()
	code, reason := s.closeCode, s.closeReason
	s.mu.Unlock()
	if code == 0 {
		return
	}
	message := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		s.log.Debug("Unable to send close frame", "error", err)
	}
}

// fail records why the connection ended, unless it was already closed.
func (s *WebsocketSink) fail(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.readErr = classify(err)
		s.mu.Unlock()
		close(s.closed)
	})
}

func (s *WebsocketSink) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr == nil {
		return errors.ErrConnectionClosed
	}
	return s.readErr
}

func classify(err error) error {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		return fmt.Errorf("%w: %v", errors.ErrConnectionClosed, err)
	case stdErrors.Is(err, net.ErrClosed):
		return errors.ErrConnectionClosed
	default:
		return err
	}
}

func truncateReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	cut := maxCloseReason
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
