package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const maxHeldEvents = 1024

type heldEvent struct {
	messageID uuid.UUID
	payload   []byte
}

// replayGuard stands for a session's transport in the registry.
// Live events are held while the history is replayed, and a live message
// already sent by the replay is dropped, so each message reaches the
// connection once.
type replayGuard struct {
	contract.Transport
	mu        sync.Mutex
	replaying bool
	pending   []heldEvent
	replayed  map[uuid.UUID]struct{}
}

func newReplayGuard(transport contract.Transport) *replayGuard {
	return &replayGuard{Transport: transport, replaying: true}
}

func (g *replayGuard) Deliver(payload []byte) error {
	return g.deliver(uuid.Nil, payload)
}

func (g *replayGuard) DeliverEvent(evt event.Event, payload []byte) error {
	return g.deliver(evt.MessageID, payload)
}

// deliver never blocks: it holds, drops or enqueues.
func (g *replayGuard) deliver(messageID uuid.UUID, payload []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.replaying {
		if len(g.pending) >= maxHeldEvents {
			return fmt.Errorf("%w: %d held during replay", errors.ErrSlowConsumer, len(g.pending))
		}
		g.pending = append(g.pending, heldEvent{messageID: messageID, payload: payload})
		return nil
	}
	if g.seen(messageID) {
		return nil
	}
	return g.Transport.Deliver(payload)
}

// markReplayed records the messages the replay is about to send.
func (g *replayGuard) markReplayed(messages []domain.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replayed = make(map[uuid.UUID]struct{}, len(messages))
	for _, message := range messages {
		g.replayed[message.ID] = struct{}{}
	}
}

// seen reports a replayed message and forgets it: a message is dispatched at most once.
// Callers hold mu.
func (g *replayGuard) seen(messageID uuid.UUID) bool {
	if messageID == uuid.Nil {
		return false
	}
	if _, ok := g.replayed[messageID]; !ok {
		return false
	}
	delete(g.replayed, messageID)
	return true
}

// release sends what was held, in arrival order, then lets live events through.
// The lock is never held while sending.
func (g *replayGuard) release(ctx context.Context) error {
	for {
		g.mu.Lock()
		batch := g.pending
		g.pending = nil
		if len(batch) == 0 {
			g.replaying = false
			g.mu.Unlock()
			return nil
		}
		payloads := make([][]byte, 0, len(batch))
		for _, held := range batch {
			if !g.seen(held.messageID) {
				payloads = append(payloads, held.payload)
			}
		}
		g.mu.Unlock()

		for _, payload := range payloads {
			if err := g.Transport.Send(ctx, payload); err != nil {
				return err
			}
		}
	}
}
