package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	stdErrors "errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// fakeTransport records what it is sent and is fed inbound text by the test.
type fakeTransport struct {
	id          domain.ConnectionID
	mu          sync.Mutex
	received    []event.Event
	inbound     chan string
	closed      chan struct{}
	closeOnce   sync.Once
	closeCode   int
	closeReason string
	failDeliver bool
	onSend      func(sent int)
}

func newFakeTransport(id string) *fakeTransport {
	return &fakeTransport{
		id:      domain.ConnectionID(id),
		inbound: make(chan string, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) ID() domain.ConnectionID { return f.id }

func (f *fakeTransport) Deliver(payload []byte) error {
	if f.failDeliver {
		return errors.ErrSlowConsumer
	}
	select {
	case <-f.closed:
		return errors.ErrConnectionClosed
	default:
	}
	f.record(payload)
	return nil
}

func (f *fakeTransport) Send(ctx context.Context, payload []byte) error {
	select {
	case <-f.closed:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	sent := f.record(payload)
	if f.onSend != nil {
		f.onSend(sent)
	}
	return nil
}

func (f *fakeTransport) Receive(ctx context.Context) (string, error) {
	select {
	case text := <-f.inbound:
		return text, nil
	case <-f.closed:
		return "", errors.ErrConnectionClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeTransport) Close(code int, reason string) error {
	err := errors.ErrConnectionClosed
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closeCode, f.closeReason = code, reason
		f.mu.Unlock()
		close(f.closed)
		err = nil
	})
	return err
}

func (f *fakeTransport) record(payload []byte) int {
	evt, err := event.Decode(payload)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, evt)
	return len(f.received)
}

func (f *fakeTransport) events() []event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.Event(nil), f.received...)
}

func (f *fakeTransport) closeStatus() (int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode, f.closeReason
}

func (f *fakeTransport) waitForEvents(t *testing.T, n int) []event.Event {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.events()) >= n }, 2*time.Second, 5*time.Millisecond)
	return f.events()
}

// fakeBackend plays every collaborator of a session from memory.
type fakeBackend struct {
	mu          sync.Mutex
	identities  map[string]domain.Identity // token -> identity
	members     map[domain.RoomID]map[string]bool
	messages    map[domain.RoomID][]domain.Message
	names       map[string]string
	failAppend  bool
	panicAppend bool
	resolved    map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		identities: make(map[string]domain.Identity),
		members:    make(map[domain.RoomID]map[string]bool),
		messages:   make(map[domain.RoomID][]domain.Message),
		names:      make(map[string]string),
		resolved:   make(map[string]int),
	}
}

func (b *fakeBackend) addUser(token, userID, name string, rooms ...domain.RoomID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.identities[token] = domain.Identity{UserID: userID, DisplayName: name}
	b.names[userID] = name
	for _, room := range rooms {
		if b.members[room] == nil {
			b.members[room] = make(map[string]bool)
		}
		b.members[room][userID] = true
	}
}

func (b *fakeBackend) ValidateCredential(_ context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, errors.ErrMissingToken
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	identity, ok := b.identities[token]
	if !ok {
		return domain.Identity{}, errors.ErrExpiredOrInvalidSignature
	}
	return identity, nil
}

func (b *fakeBackend) IsMember(_ context.Context, userID string, roomID domain.RoomID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.members[roomID][userID], nil
}

func (b *fakeBackend) LoadHistory(_ context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Message(nil), b.messages[roomID]...), nil
}

func (b *fakeBackend) AppendMessage(_ context.Context, roomID domain.RoomID, userID, content string) (domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.panicAppend {
		panic("storage exploded")
	}
	if b.failAppend {
		return domain.Message{}, stdErrors.Join(errors.ErrPersistence, stdErrors.New("disk full"))
	}
	message := domain.Message{ID: uuid.New(), Room: roomID, SenderID: userID, Content: content, CreatedAt: time.Now().UTC()}
	b.messages[roomID] = append(b.messages[roomID], message)
	return message, nil
}

func (b *fakeBackend) ResolveDisplayName(_ context.Context, userID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolved[userID]++
	name, ok := b.names[userID]
	if !ok {
		return "", errors.ErrUserNotFound
	}
	return name, nil
}

func (b *fakeBackend) seed(roomID domain.RoomID, userID string, contents ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, content := range contents {
		b.messages[roomID] = append(b.messages[roomID], domain.Message{
			ID: uuid.New(), Room: roomID, SenderID: userID, Content: content,
			CreatedAt: at.Add(time.Duration(len(b.messages[roomID])) * time.Second),
		})
	}
}

type relay struct {
	backend  *fakeBackend
	registry *Registry
	handler  *Handler
	metrics  *observability.Metrics
}

func newRelay() relay {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	metrics := observability.NewMetrics()
	backend := newFakeBackend()
	registry := NewRegistry(log, metrics)
	dispatcher := NewDispatcher(registry, log, metrics)
	handler := NewHandler(backend, backend, backend, backend, registry, dispatcher, log, metrics)
	return relay{backend: backend, registry: registry, handler: handler, metrics: metrics}
}

// connect runs a session in the background. The returned channel yields its final state.
func (r relay) connect(transport *fakeTransport, roomID domain.RoomID, token string) <-chan State {
	done := make(chan State, 1)
	go func() {
		done <- r.handler.Serve(context.Background(), transport, roomID, token)
	}()
	return done
}

func waitClosed(t *testing.T, done <-chan State) State {
	t.Helper()
	select {
	case state := <-done:
		return state
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
		return Closed
	}
}
