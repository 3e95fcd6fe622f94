package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"context"
	"log/slog"
)

// Dispatcher fans an event out to every member of a room.
type Dispatcher struct {
	registry contract.IRegistry
	log      *slog.Logger
	metrics  *observability.Metrics
}

func NewDispatcher(registry contract.IRegistry, log *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, log: log, metrics: metrics}
}

// Dispatch encodes the event once and enqueues it on every member of the
// room except exclude (pass "" to exclude nobody). Deliveries never block:
// a member that cannot take the payload is logged and skipped.
// It returns how many members accepted the payload.
func (d *Dispatcher) Dispatch(_ context.Context, roomID domain.RoomID, exclude domain.ConnectionID, evt event.Event) int {
	payload, err := evt.Encode()
	if err != nil {
		d.log.Error("Unable to encode event", "room", roomID, "type", evt.Type, "error", err)
		return 0
	}
	d.metrics.DispatchedEvents.WithLabelValues(string(evt.Type)).Inc()

	members := d.registry.MembersOf(roomID)
	if len(members) == 0 {
		d.log.Debug("No member to dispatch to", "room", roomID, "type", evt.Type)
		return 0
	}

	delivered := 0
	for _, member := range members {
		if exclude != "" && member.ID() == exclude {
			continue
		}
		if d.deliver(roomID, member, evt, payload) {
			delivered++
		}
	}
	return delivered
}

// deliver isolates one destination: an error or a panic from the
// member only affects that member.
func (d *Dispatcher) deliver(roomID domain.RoomID, member contract.Member, evt event.Event, payload []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Delivery panicked", "room", roomID, "connection", member.ID(), "panic", r)
			d.metrics.DeliveryFailures.Inc()
			ok = false
		}
	}()
	var err error
	if eventMember, isEventMember := member.(contract.EventMember); isEventMember {
		err = eventMember.DeliverEvent(evt, payload)
	} else {
		err = member.Deliver(payload)
	}
	if err != nil {
		d.log.Warn("Skipping destination", "room", roomID, "connection", member.ID(), "error", err)
		d.metrics.DeliveryFailures.Inc()
		return false
	}
	d.metrics.Deliveries.Inc()
	return true
}
