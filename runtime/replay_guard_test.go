package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func encoded(t *testing.T, evt event.Event) []byte {
	t.Helper()
	payload, err := evt.Encode()
	require.NoError(t, err)
	return payload
}

func TestReplayGuard_Holds_Live_Events_Until_Released(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport("alice")
	guard := newReplayGuard(transport)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	replayed := domain.Message{ID: uuid.New(), Content: "old", CreatedAt: at}
	guard.markReplayed([]domain.Message{replayed})

	// Given live events arriving during the replay
	covered := event.NewStoredMessage("bob", "old", replayed.ID, at)
	fresh := event.NewStoredMessage("bob", "new", uuid.New(), at.Add(time.Second))
	departure := event.NewDeparture("clara", at.Add(2*time.Second))
	for _, evt := range []event.Event{covered, fresh, departure} {
		req.NoError(guard.DeliverEvent(evt, encoded(t, evt)))
	}
	req.Empty(transport.events())

	// When the replay ends
	req.NoError(guard.release(context.Background()))

	// Then what the replay covered is gone and the rest keeps its order
	req.Equal([]string{"new", "User clara disconnected from chat"}, contents(transport.events()))
}

func TestReplayGuard_Drops_Replayed_Message_Arriving_After_Release(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport("alice")
	guard := newReplayGuard(transport)
	id := uuid.New()
	guard.markReplayed([]domain.Message{{ID: id, Content: "old"}})
	req.NoError(guard.release(context.Background()))

	late := event.NewStoredMessage("bob", "old", id, time.Now())
	req.NoError(guard.DeliverEvent(late, encoded(t, late)))
	req.Empty(transport.events())

	// Plain payloads carry no message id and always pass
	req.NoError(guard.Deliver(encoded(t, event.NewSystem("hello", time.Now()))))
	req.Equal([]string{"hello"}, contents(transport.events()))
}

func TestReplayGuard_Bounds_Held_Events(t *testing.T) {
	req := require.New(t)
	guard := newReplayGuard(newFakeTransport("alice"))
	payload := encoded(t, event.NewSystem("hello", time.Now()))

	for i := 0; i < maxHeldEvents; i++ {
		req.NoError(guard.Deliver(payload))
	}
	req.ErrorIs(guard.Deliver(payload), errors.ErrSlowConsumer)
}

func TestReplayGuard_Release_Stops_On_Closed_Transport(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport("alice")
	guard := newReplayGuard(transport)
	req.NoError(guard.Deliver(encoded(t, event.NewSystem("hello", time.Now()))))
	_ = transport.Close(CloseNormal, "")

	req.ErrorIs(guard.release(context.Background()), errors.ErrConnectionClosed)
}
